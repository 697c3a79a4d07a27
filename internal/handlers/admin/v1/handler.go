// Package v1 implements the hexhaven.admin.v1.RoomAdmin gRPC service used by
// operators to inspect and close rooms.
package v1

import (
	"context"
	"log/slog"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/registry"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
)

// HandlerConfig holds dependencies for the admin handler
type HandlerConfig struct {
	Registry registry.Service
}

// Validate ensures all required dependencies are present
func (c *HandlerConfig) Validate() error {
	if c.Registry == nil {
		return errors.InvalidArgument("registry is required")
	}
	return nil
}

// Handler implements RoomAdminServer
type Handler struct {
	registry registry.Service
}

// Ensure Handler implements RoomAdminServer
var _ RoomAdminServer = (*Handler)(nil)

// NewHandler creates a new admin handler with the given configuration
func NewHandler(cfg *HandlerConfig) (*Handler, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Handler{registry: cfg.Registry}, nil
}

// ListRooms lists running rooms
func (h *Handler) ListRooms(ctx context.Context, req *ListRoomsRequest) (*ListRoomsResponse, error) {
	out, err := h.registry.ListRooms(ctx, &registry.ListRoomsInput{
		Phase: replication.Phase(req.Phase),
	})
	if err != nil {
		return nil, errors.ToGRPCError(err)
	}

	resp := &ListRoomsResponse{Rooms: make([]*Room, 0, len(out.Rooms))}
	for _, s := range out.Rooms {
		resp.Rooms = append(resp.Rooms, &Room{
			RoomID:       s.RoomID,
			ScenarioID:   s.ScenarioID,
			ScenarioName: s.ScenarioName,
			Phase:        string(s.Phase),
			Round:        s.Round,
			Seq:          s.Seq,
			Outcome:      string(s.Outcome),
			Players:      s.Players,
			Connected:    s.Connected,
			CreatedAt:    s.CreatedAt,
		})
	}
	return resp, nil
}

// GetSnapshot returns the live or last persisted state of a room
func (h *Handler) GetSnapshot(ctx context.Context, req *GetSnapshotRequest) (*GetSnapshotResponse, error) {
	if req.RoomID == "" {
		return nil, errors.ToGRPCError(errors.InvalidArgument("room_id is required"))
	}

	out, err := h.registry.GetSnapshot(ctx, &registry.GetSnapshotInput{RoomID: req.RoomID})
	if err != nil {
		return nil, errors.ToGRPCError(err)
	}

	resp := &GetSnapshotResponse{Live: out.Live, Snapshot: out.Snapshot}
	if !out.Live {
		resp.SavedAt = &out.SavedAt
	}
	return resp, nil
}

// CloseRoom stops a room and disconnects its clients
func (h *Handler) CloseRoom(ctx context.Context, req *CloseRoomRequest) (*CloseRoomResponse, error) {
	if req.RoomID == "" {
		return nil, errors.ToGRPCError(errors.InvalidArgument("room_id is required"))
	}

	if _, err := h.registry.CloseRoom(ctx, &registry.CloseRoomInput{
		RoomID: req.RoomID,
		Reason: req.Reason,
	}); err != nil {
		return nil, errors.ToGRPCError(err)
	}

	slog.Info("Room closed by admin", "room_id", req.RoomID, "reason", req.Reason)
	return &CloseRoomResponse{}, nil
}
