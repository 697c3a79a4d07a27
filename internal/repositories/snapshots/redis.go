package snapshots

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/clock"
	redisclient "github.com/KirkDiggler/hexhaven-api/internal/redis"
)

// Key pattern: snapshot:room:{room_id}
const snapshotKeyPrefix = "snapshot:room:"

// RedisConfig holds the configuration for the Redis repository
type RedisConfig struct {
	Client redisclient.Client
	Clock  clock.Clock
}

// Validate ensures all required dependencies are provided
func (c *RedisConfig) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.Client == nil {
		vb.RequiredField("client")
	}
	if c.Clock == nil {
		vb.RequiredField("clock")
	}
	return vb.Build()
}

type redisRepository struct {
	client redisclient.Client
	clock  clock.Clock
}

// NewRedis creates a Redis backed snapshot repository
func NewRedis(cfg *RedisConfig) (Repository, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &redisRepository{client: cfg.Client, clock: cfg.Clock}, nil
}

// Ensure redisRepository implements Repository
var _ Repository = (*redisRepository)(nil)

// Save overwrites the room's snapshot and resets its TTL
func (r *redisRepository) Save(ctx context.Context, input SaveInput) (*SaveOutput, error) {
	if err := validateSave(input); err != nil {
		return nil, err
	}

	ttl := input.TTL
	if ttl == 0 {
		ttl = defaultTTL
	}
	now := r.clock.Now().UTC()
	record := &Record{
		RoomID:    input.RoomID,
		Round:     input.Round,
		Snapshot:  input.Snapshot,
		SavedAt:   now,
		ExpiresAt: now.Add(ttl),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal snapshot of room %s", input.RoomID)
	}
	if err := r.client.Set(ctx, r.buildKey(input.RoomID), data, ttl).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to store snapshot in Redis")
	}

	return &SaveOutput{Record: record}, nil
}

// Get reads the room's latest snapshot
func (r *redisRepository) Get(ctx context.Context, input GetInput) (*GetOutput, error) {
	if input.RoomID == "" {
		return nil, errors.InvalidArgument(errRoomIDEmpty)
	}

	data, err := r.client.Get(ctx, r.buildKey(input.RoomID)).Bytes()
	if err != nil {
		if err == redisclient.Nil {
			return nil, errors.NotFoundf("no snapshot for room %s", input.RoomID)
		}
		return nil, errors.Wrapf(err, "failed to get snapshot from Redis")
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal snapshot of room %s", input.RoomID)
	}

	return &GetOutput{Record: &record}, nil
}

// buildKey creates the Redis key for a room snapshot
func (r *redisRepository) buildKey(roomID string) string {
	return fmt.Sprintf("%s%s", snapshotKeyPrefix, roomID)
}
