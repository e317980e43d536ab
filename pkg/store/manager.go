package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound indicates no archive is stored under the key
	ErrNotFound = errors.New("archive not found")

	// ErrInvalidEntry indicates the stored entry is corrupted
	ErrInvalidEntry = errors.New("invalid archive entry")
)

// Manager stores archives in Redis.
type Manager struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewManager creates a new archive store with Redis backend.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &Manager{
		redis:  redisClient,
		logger: log.With().Str("component", "wanikani-store").Logger(),
	}
}

// Get retrieves the archive stored under key.
// Returns ErrNotFound if nothing is stored.
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			StoreMisses.Inc()
			return nil, ErrNotFound
		}
		StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if !entry.valid() {
		StoreErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: size %d does not match %d data bytes", ErrInvalidEntry, entry.Size, len(entry.Data))
	}

	StoreHits.Inc()
	m.logger.Debug().
		Str("key", key.String()).
		Int("size", entry.Size).
		Dur("age", entry.Age()).
		Msg("Archive served from store")

	return &entry, nil
}

// Save stores data under key. A ttl of 0 keeps the archive until it is
// deleted or replaced.
func (m *Manager) Save(ctx context.Context, key Key, data []byte, ttl time.Duration) error {
	if len(data) == 0 {
		return fmt.Errorf("archive data cannot be empty")
	}
	if ttl < 0 {
		return fmt.Errorf("ttl cannot be negative: %s", ttl)
	}

	raw, err := json.Marshal(Entry{
		Data:      data,
		Revision:  key.Revision,
		Size:      len(data),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		StoreErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("marshal archive entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), raw, ttl).Err(); err != nil {
		StoreErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	m.logger.Debug().
		Str("key", key.String()).
		Int("size", len(data)).
		Dur("ttl", ttl).
		Msg("Archive saved")

	return nil
}

// Delete removes a stored archive. Deleting a missing key is not an error.
func (m *Manager) Delete(ctx context.Context, key Key) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		StoreErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// TTL returns the remaining lifetime of a stored archive, or 0 when the
// archive does not expire.
func (m *Manager) TTL(ctx context.Context, key Key) (time.Duration, error) {
	ttl, err := m.redis.TTL(ctx, key.String()).Result()
	if err != nil {
		StoreErrors.WithLabelValues("ttl").Inc()
		return 0, fmt.Errorf("redis ttl: %w", err)
	}
	switch {
	case ttl == -2:
		return 0, ErrNotFound
	case ttl < 0:
		return 0, nil
	}
	return ttl, nil
}
