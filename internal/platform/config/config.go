package config

import (
	"os"
	"strconv"
	"time"
)

// Storage drivers selectable through STORAGE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	StorageDriver string
	PostgresDSN   string
	MongoURI      string
	MongoDB       string
	Redis         Redis
}

// Redis captures connection settings for the optional directory cache.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("AMPARO_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	driver := os.Getenv("STORAGE_DRIVER")
	if driver == "" {
		driver = DriverMemory
	}

	mongoDB := os.Getenv("MONGO_DB")
	if mongoDB == "" {
		mongoDB = "amparo"
	}

	return Server{
		Addr:          addr,
		StorageDriver: driver,
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDB:       mongoDB,
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
