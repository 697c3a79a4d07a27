// Package httpapi exposes room lifecycle over HTTP and mounts the websocket
// endpoint.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/KirkDiggler/hexhaven-api/internal/content"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/registry"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
)

const maxBodyBytes = 1 << 20

// HandlerConfig holds dependencies for the HTTP API
type HandlerConfig struct {
	Registry registry.Service
	// WebSocket serves GET /rooms/{roomID}/ws
	WebSocket http.Handler
}

// Validate ensures all required dependencies are provided
func (c *HandlerConfig) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.Registry == nil {
		vb.RequiredField("Registry")
	}
	if c.WebSocket == nil {
		vb.RequiredField("WebSocket")
	}

	return vb.Build()
}

// Handler implements the room HTTP endpoints
type Handler struct {
	registry  registry.Service
	websocket http.Handler
}

// NewHandler creates an HTTP API handler
func NewHandler(cfg *HandlerConfig) (*Handler, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &Handler{
		registry:  cfg.Registry,
		websocket: cfg.WebSocket,
	}, nil
}

// Routes builds the router
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", Healthz)
	r.Route("/rooms", func(r chi.Router) {
		r.Post("/", h.CreateRoom)
		r.Get("/", h.ListRooms)
		r.Get("/{roomID}/snapshot", h.GetSnapshot)
		r.Method(http.MethodGet, "/{roomID}/ws", h.websocket)
	})
	return r
}

type seatRequest struct {
	PlayerID  string             `json:"playerId"`
	ClassType entities.ClassType `json:"classType"`
	Name      string             `json:"name,omitempty"`
}

type createRoomRequest struct {
	ScenarioID string        `json:"scenarioId"`
	Players    []seatRequest `json:"players"`
}

type roomResponse struct {
	RoomID       string              `json:"roomId"`
	ScenarioID   string              `json:"scenarioId"`
	ScenarioName string              `json:"scenarioName"`
	Phase        replication.Phase   `json:"phase"`
	Round        int                 `json:"round"`
	Seq          int64               `json:"seq"`
	Outcome      replication.Outcome `json:"outcome,omitempty"`
	Players      []string            `json:"players"`
	Connected    int                 `json:"connected"`
	CreatedAt    time.Time           `json:"createdAt"`
}

type listRoomsResponse struct {
	Rooms []roomResponse `json:"rooms"`
}

type snapshotResponse struct {
	// Live is false when the room has stopped and the last persisted
	// round snapshot is returned instead
	Live     bool                  `json:"live"`
	SavedAt  *time.Time            `json:"savedAt,omitempty"`
	Snapshot *replication.Snapshot `json:"snapshot"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// CreateRoom handles POST /rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, errors.InvalidArgumentf("malformed request body: %v", err))
		return
	}

	seats := make([]content.Seat, 0, len(req.Players))
	for _, p := range req.Players {
		seats = append(seats, content.Seat{PlayerID: p.PlayerID, ClassType: p.ClassType, Name: p.Name})
	}

	out, err := h.registry.CreateRoom(r.Context(), &registry.CreateRoomInput{
		ScenarioID: req.ScenarioID,
		Players:    seats,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRoomResponse(out.Summary))
}

// ListRooms handles GET /rooms with an optional phase filter
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	out, err := h.registry.ListRooms(r.Context(), &registry.ListRoomsInput{
		Phase: replication.Phase(r.URL.Query().Get("phase")),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := listRoomsResponse{Rooms: make([]roomResponse, 0, len(out.Rooms))}
	for _, summary := range out.Rooms {
		resp.Rooms = append(resp.Rooms, toRoomResponse(summary))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSnapshot handles GET /rooms/{roomID}/snapshot
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	out, err := h.registry.GetSnapshot(r.Context(), &registry.GetSnapshotInput{
		RoomID: chi.URLParam(r, "roomID"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	resp := snapshotResponse{Live: out.Live, Snapshot: out.Snapshot}
	if !out.Live {
		resp.SavedAt = &out.SavedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// Healthz reports liveness
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func toRoomResponse(s *registry.RoomSummary) roomResponse {
	players := s.Players
	if players == nil {
		players = []string{}
	}
	return roomResponse{
		RoomID:       s.RoomID,
		ScenarioID:   s.ScenarioID,
		ScenarioName: s.ScenarioName,
		Phase:        s.Phase,
		Round:        s.Round,
		Seq:          s.Seq,
		Outcome:      s.Outcome,
		Players:      players,
		Connected:    s.Connected,
		CreatedAt:    s.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{
		Code:    string(code),
		Kind:    string(errors.GetKind(err)),
		Message: message(err),
	})
}

// message joins the messages along a wrapped error chain
func message(err error) string {
	var parts []string
	for err != nil {
		var e *errors.Error
		if !errors.As(err, &e) {
			parts = append(parts, err.Error())
			break
		}
		parts = append(parts, e.Message)
		err = e.Cause
	}
	return strings.Join(parts, ": ")
}

// requestLogger logs one line per request
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		slog.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
