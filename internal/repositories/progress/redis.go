package progress

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/clock"
	redisclient "github.com/KirkDiggler/hexhaven-api/internal/redis"
)

const (
	// Key pattern: progress:player:{player_id}
	playerKeyPrefix = "progress:player:"
	// Key pattern: progress:applied:{room_id}
	appliedKeyPrefix = "progress:applied:"

	defaultAppliedTTL = 7 * 24 * time.Hour

	fieldGold      = "gold"
	fieldXP        = "xp"
	fieldCompleted = "scenarios_completed"
	fieldUpdatedAt = "updated_at"

	errRoomIDEmpty   = "room ID cannot be empty"
	errPlayerIDEmpty = "player ID cannot be empty"
)

// RedisConfig holds the configuration for the Redis repository
type RedisConfig struct {
	Client redisclient.Client
	Clock  clock.Clock
	// AppliedTTL is how long a room's applied marker is kept
	AppliedTTL time.Duration
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
	if c.AppliedTTL < 0 {
		vb.InvalidField("applied_ttl", "must not be negative")
	}
	return vb.Build()
}

type redisRepository struct {
	client     redisclient.Client
	clock      clock.Clock
	appliedTTL time.Duration
}

// NewRedis creates a Redis backed progress repository
func NewRedis(cfg *RedisConfig) (Repository, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	ttl := cfg.AppliedTTL
	if ttl == 0 {
		ttl = defaultAppliedTTL
	}

	return &redisRepository{
		client:     cfg.Client,
		clock:      cfg.Clock,
		appliedTTL: ttl,
	}, nil
}

// Ensure redisRepository implements Repository
var _ Repository = (*redisRepository)(nil)

// ApplyRewards claims the room's applied marker and then increments every
// player hash in one transaction. If the transaction fails the marker is
// released so a retry can apply.
func (r *redisRepository) ApplyRewards(ctx context.Context, input ApplyRewardsInput) (*ApplyRewardsOutput, error) {
	if input.RoomID == "" {
		return nil, errors.InvalidArgument(errRoomIDEmpty)
	}
	for _, reward := range input.Rewards {
		if reward.PlayerID == "" {
			return nil, errors.InvalidArgumentf("reward for %s has no player", reward.CharacterID)
		}
	}

	appliedKey := appliedKeyPrefix + input.RoomID
	claimed, err := r.client.SetNX(ctx, appliedKey, r.clock.Now().UTC().Format(time.RFC3339), r.appliedTTL).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to claim rewards for room %s", input.RoomID)
	}
	if !claimed {
		return &ApplyRewardsOutput{Applied: false}, nil
	}

	now := strconv.FormatInt(r.clock.Now().Unix(), 10)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, reward := range input.Rewards {
			key := r.buildKey(reward.PlayerID)
			pipe.HIncrBy(ctx, key, fieldGold, int64(reward.Gold))
			pipe.HIncrBy(ctx, key, fieldXP, int64(reward.XP))
			if input.Victory {
				pipe.HIncrBy(ctx, key, fieldCompleted, 1)
			}
			pipe.HSet(ctx, key, fieldUpdatedAt, now)
		}
		return nil
	})
	if err != nil {
		_ = r.client.Del(ctx, appliedKey).Err()
		return nil, errors.Wrapf(err, "failed to apply rewards for room %s", input.RoomID)
	}

	return &ApplyRewardsOutput{Applied: true}, nil
}

// Get reads a player's totals
func (r *redisRepository) Get(ctx context.Context, input GetInput) (*GetOutput, error) {
	if input.PlayerID == "" {
		return nil, errors.InvalidArgument(errPlayerIDEmpty)
	}

	fields, err := r.client.HGetAll(ctx, r.buildKey(input.PlayerID)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get progress from Redis")
	}
	if len(fields) == 0 {
		return nil, errors.NotFoundf("no progress for player %s", input.PlayerID)
	}

	p := &Progress{PlayerID: input.PlayerID}
	for field, dst := range map[string]*int{
		fieldGold:      &p.Gold,
		fieldXP:        &p.XP,
		fieldCompleted: &p.ScenariosCompleted,
	} {
		raw, ok := fields[field]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "corrupt %s for player %s", field, input.PlayerID)
		}
		*dst = n
	}
	if raw, ok := fields[fieldUpdatedAt]; ok {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "corrupt %s for player %s", fieldUpdatedAt, input.PlayerID)
		}
		p.UpdatedAt = time.Unix(secs, 0).UTC()
	}

	return &GetOutput{Progress: p}, nil
}

// buildKey creates the Redis key for a player's progress
func (r *redisRepository) buildKey(playerID string) string {
	return fmt.Sprintf("%s%s", playerKeyPrefix, playerID)
}
