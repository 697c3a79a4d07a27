package snapshots

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/clock"
)

// InMemoryRepository keeps snapshots in process. Records are stored encoded
// so callers never share state with the room that saved them.
type InMemoryRepository struct {
	mu      sync.Mutex
	clock   clock.Clock
	records map[string][]byte
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
		records: make(map[string][]byte),
	}
}

// Save implements Repository
func (r *InMemoryRepository) Save(_ context.Context, input SaveInput) (*SaveOutput, error) {
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

	r.mu.Lock()
	r.records[input.RoomID] = data
	r.mu.Unlock()

	return &SaveOutput{Record: record}, nil
}

// Get implements Repository. Expired records read as not found.
func (r *InMemoryRepository) Get(_ context.Context, input GetInput) (*GetOutput, error) {
	if input.RoomID == "" {
		return nil, errors.InvalidArgument(errRoomIDEmpty)
	}

	r.mu.Lock()
	data, ok := r.records[input.RoomID]
	r.mu.Unlock()
	if !ok {
		return nil, errors.NotFoundf("no snapshot for room %s", input.RoomID)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal snapshot of room %s", input.RoomID)
	}
	if r.clock.Now().After(record.ExpiresAt) {
		r.mu.Lock()
		delete(r.records, input.RoomID)
		r.mu.Unlock()
		return nil, errors.NotFoundf("snapshot of room %s has expired", input.RoomID)
	}

	return &GetOutput{Record: &record}, nil
}
