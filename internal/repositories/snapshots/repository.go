// Package snapshots stores room snapshots taken at round boundaries so a
// crashed or closed room can be inspected afterwards
package snapshots

import (
	"context"
	"time"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
)

//go:generate mockgen -destination=mock/mock_repository.go -package=snapshotsmock github.com/KirkDiggler/hexhaven-api/internal/repositories/snapshots Repository

// Record is the latest saved snapshot of a room
type Record struct {
	RoomID    string                `json:"roomId"`
	Round     int                   `json:"round"`
	Snapshot  *replication.Snapshot `json:"snapshot"`
	SavedAt   time.Time             `json:"savedAt"`
	ExpiresAt time.Time             `json:"expiresAt"`
}

// SaveInput contains a snapshot to store
type SaveInput struct {
	RoomID   string
	Round    int
	Snapshot *replication.Snapshot
	// TTL defaults to 24 hours
	TTL time.Duration
}

// SaveOutput contains the stored record
type SaveOutput struct {
	Record *Record
}

// GetInput names the room to read
type GetInput struct {
	RoomID string
}

// GetOutput contains the latest record of a room
type GetOutput struct {
	Record *Record
}

// Repository defines snapshot storage. Only the latest snapshot of a room
// is kept.
type Repository interface {
	Save(ctx context.Context, input SaveInput) (*SaveOutput, error)
	Get(ctx context.Context, input GetInput) (*GetOutput, error)
}

const (
	defaultTTL = 24 * time.Hour

	errRoomIDEmpty  = "room ID cannot be empty"
	errSnapshotNil  = "snapshot cannot be nil"
	errNegativeTTL  = "ttl cannot be negative"
	errRoundInvalid = "round cannot be negative"
)

func validateSave(input SaveInput) error {
	vb := errors.NewValidationBuilder()
	if input.RoomID == "" {
		vb.Field("room_id", errRoomIDEmpty)
	}
	if input.Snapshot == nil {
		vb.Field("snapshot", errSnapshotNil)
	}
	if input.TTL < 0 {
		vb.Field("ttl", errNegativeTTL)
	}
	if input.Round < 0 {
		vb.Field("round", errRoundInvalid)
	}
	return vb.Build()
}
