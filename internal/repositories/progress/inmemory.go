package progress

import (
	"context"
	"sync"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/clock"
)

// InMemoryRepository keeps progress in process. It is used when no Redis
// endpoint is configured.
type InMemoryRepository struct {
	mu      sync.Mutex
	clock   clock.Clock
	players map[string]*Progress
	applied map[string]bool
}

// Ensure InMemoryRepository implements Repository
var _ Repository = (*InMemoryRepository)(nil)

// NewInMemory creates an empty in-memory repository
func NewInMemory(clk clock.Clock) *InMemoryRepository {
	if clk == nil {
		clk = clock.New()
	}
	return &InMemoryRepository{
		clock:   clk,
		players: make(map[string]*Progress),
		applied: make(map[string]bool),
	}
}

// ApplyRewards implements Repository
func (r *InMemoryRepository) ApplyRewards(_ context.Context, input ApplyRewardsInput) (*ApplyRewardsOutput, error) {
	if input.RoomID == "" {
		return nil, errors.InvalidArgument(errRoomIDEmpty)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.applied[input.RoomID] {
		return &ApplyRewardsOutput{Applied: false}, nil
	}
	for _, reward := range input.Rewards {
		if reward.PlayerID == "" {
			return nil, errors.InvalidArgumentf("reward for %s has no player", reward.CharacterID)
		}
	}

	now := r.clock.Now().UTC()
	for _, reward := range input.Rewards {
		p, ok := r.players[reward.PlayerID]
		if !ok {
			p = &Progress{PlayerID: reward.PlayerID}
			r.players[reward.PlayerID] = p
		}
		p.Gold += reward.Gold
		p.XP += reward.XP
		if input.Victory {
			p.ScenariosCompleted++
		}
		p.UpdatedAt = now
	}
	r.applied[input.RoomID] = true

	return &ApplyRewardsOutput{Applied: true}, nil
}

// Get implements Repository
func (r *InMemoryRepository) Get(_ context.Context, input GetInput) (*GetOutput, error) {
	if input.PlayerID == "" {
		return nil, errors.InvalidArgument(errPlayerIDEmpty)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[input.PlayerID]
	if !ok {
		return nil, errors.NotFoundf("no progress for player %s", input.PlayerID)
	}
	out := *p
	return &GetOutput{Progress: &out}, nil
}
