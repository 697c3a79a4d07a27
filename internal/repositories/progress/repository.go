// Package progress stores what players have earned across scenarios
package progress

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mock/mock_repository.go -package=progressmock github.com/KirkDiggler/hexhaven-api/internal/repositories/progress Repository

// Progress is a player's running totals
type Progress struct {
	PlayerID string

	Gold int
	XP   int

	// ScenariosCompleted counts victories only
	ScenariosCompleted int

	UpdatedAt time.Time
}

// Reward is one character's share of a finished scenario
type Reward struct {
	PlayerID    string
	CharacterID string
	Gold        int
	XP          int
}

// ApplyRewardsInput contains the rewards of one finished scenario
type ApplyRewardsInput struct {
	// RoomID makes the write idempotent: a room's rewards apply once
	RoomID  string
	Victory bool
	Rewards []Reward
}

// ApplyRewardsOutput reports whether this call applied the rewards
type ApplyRewardsOutput struct {
	Applied bool
}

// GetInput contains parameters for reading a player's progress
type GetInput struct {
	PlayerID string
}

// GetOutput contains a player's progress
type GetOutput struct {
	Progress *Progress
}

// Repository defines player progress storage
type Repository interface {
	// ApplyRewards adds each reward to its player's totals. Applying the
	// same room twice is a no-op.
	ApplyRewards(ctx context.Context, input ApplyRewardsInput) (*ApplyRewardsOutput, error)

	// Get returns a player's totals
	Get(ctx context.Context, input GetInput) (*GetOutput, error)
}
