//go:build integration

package containers

import (
	"sync"
	"testing"
)

// Manager shares one container per backend across all integration suites in a
// test binary. Containers are started lazily on first use and reaped by Ryuk
// when the binary exits.
type Manager struct {
	postgresOnce sync.Once
	postgres     *PostgresContainer

	mongoOnce sync.Once
	mongo     *MongoContainer

	redisOnce sync.Once
	redis     *RedisContainer
}

var manager = &Manager{}

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	return manager
}

// GetPostgres returns the shared Postgres container, starting it if needed.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.postgresOnce.Do(func() {
		m.postgres = NewPostgresContainer(t)
	})
	if m.postgres == nil {
		t.Fatal("postgres container failed to start in an earlier test")
	}
	return m.postgres
}

// GetMongo returns the shared MongoDB container, starting it if needed.
func (m *Manager) GetMongo(t *testing.T) *MongoContainer {
	t.Helper()
	m.mongoOnce.Do(func() {
		m.mongo = NewMongoContainer(t)
	})
	if m.mongo == nil {
		t.Fatal("mongo container failed to start in an earlier test")
	}
	return m.mongo
}

// GetRedis returns the shared Redis container, starting it if needed.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.redisOnce.Do(func() {
		m.redis = NewRedisContainer(t)
	})
	if m.redis == nil {
		t.Fatal("redis container failed to start in an earlier test")
	}
	return m.redis
}
