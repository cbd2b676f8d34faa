package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	participant "amparo/internal/participant/models"
	"amparo/internal/scheduling/metrics"
	id "amparo/pkg/domain"
)

// ParticipantDirectory answers "is this participant registered with this
// role". The participant service implements it directly.
type ParticipantDirectory interface {
	Exists(ctx context.Context, participantID id.ParticipantID, role participant.Role) (bool, error)
}

const (
	directoryKeyPrefix = "dir:"
	directoryCacheTTL  = 5 * time.Minute
)

// CachedDirectory caches positive directory answers in Redis. Only positive
// results are cached: a freshly registered participant must become bookable
// immediately, while a removed one lingers at most the TTL before bookings
// against them fail at read time. Redis errors degrade to the underlying
// directory.
type CachedDirectory struct {
	next    ParticipantDirectory
	client  *redis.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewCachedDirectory wraps a directory with a Redis positive-result cache.
func NewCachedDirectory(next ParticipantDirectory, client *redis.Client, logger *slog.Logger, m *metrics.Metrics) *CachedDirectory {
	return &CachedDirectory{next: next, client: client, logger: logger, metrics: m}
}

func (d *CachedDirectory) Exists(ctx context.Context, participantID id.ParticipantID, role participant.Role) (bool, error) {
	key := directoryKeyPrefix + string(role) + ":" + participantID.String()

	_, err := d.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		d.lookupOutcome("hit")
		return true, nil
	case errors.Is(err, redis.Nil):
		d.lookupOutcome("miss")
	default:
		d.lookupOutcome("bypass")
		if d.logger != nil {
			d.logger.WarnContext(ctx, "directory cache read failed", "error", err)
		}
	}

	exists, err := d.next.Exists(ctx, participantID, role)
	if err != nil || !exists {
		return exists, err
	}
	if err := d.client.Set(ctx, key, "1", directoryCacheTTL).Err(); err != nil && d.logger != nil {
		d.logger.WarnContext(ctx, "directory cache write failed", "error", err)
	}
	return true, nil
}

func (d *CachedDirectory) lookupOutcome(outcome string) {
	if d.metrics != nil {
		d.metrics.IncrementDirectoryLookup(outcome)
	}
}
