// Package ws serves the room event stream over websockets.
//
// A connection must open with a hello command naming the player. After the
// room accepts the join every room event is written as one text frame and
// every text frame read is decoded as a command and submitted to the room.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/registry"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/room"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/idgen"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
)

const (
	// DefaultHandshakeTimeout bounds the wait for hello
	DefaultHandshakeTimeout = 5 * time.Second
	// DefaultWriteTimeout bounds a single frame write
	DefaultWriteTimeout = 3 * time.Second

	// RoomIDParam is the chi URL parameter holding the room id
	RoomIDParam = "roomID"

	readLimit      = 64 << 10
	maxCloseReason = 120
)

// HandlerConfig holds dependencies for the websocket handler
type HandlerConfig struct {
	Registry         registry.Service
	IDGenerator      idgen.Generator
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// OriginPatterns are passed to websocket.Accept. Empty allows same
	// origin only.
	OriginPatterns []string
}

// Validate ensures all required dependencies are provided
func (c *HandlerConfig) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.Registry == nil {
		vb.RequiredField("Registry")
	}
	if c.IDGenerator == nil {
		vb.RequiredField("IDGenerator")
	}
	if c.HandshakeTimeout < 0 {
		vb.InvalidField("HandshakeTimeout", "must not be negative")
	}
	if c.WriteTimeout < 0 {
		vb.InvalidField("WriteTimeout", "must not be negative")
	}

	return vb.Build()
}

// Handler upgrades GET /rooms/{roomID}/ws
type Handler struct {
	registry         registry.Service
	idGen            idgen.Generator
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	originPatterns   []string
}

// NewHandler creates a websocket handler
func NewHandler(cfg *HandlerConfig) (*Handler, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	h := &Handler{
		registry:         cfg.Registry,
		idGen:            cfg.IDGenerator,
		handshakeTimeout: cfg.HandshakeTimeout,
		writeTimeout:     cfg.WriteTimeout,
		originPatterns:   cfg.OriginPatterns,
	}
	if h.handshakeTimeout == 0 {
		h.handshakeTimeout = DefaultHandshakeTimeout
	}
	if h.writeTimeout == 0 {
		h.writeTimeout = DefaultWriteTimeout
	}
	return h, nil
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, RoomIDParam)
	got, err := h.registry.GetRoom(r.Context(), &registry.GetRoomInput{RoomID: roomID})
	if err != nil {
		http.Error(w, errors.GetMessage(err), errors.GetCode(err).HTTPStatus())
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		slog.Warn("Websocket upgrade failed", "room_id", roomID, "error", err)
		return
	}
	conn.SetReadLimit(readLimit)

	s := &stream{
		handler:  h,
		conn:     conn,
		room:     got.Room,
		clientID: h.idGen.Generate(),
	}
	s.serve(r.Context())
}

type stream struct {
	handler  *Handler
	conn     *websocket.Conn
	room     *room.Room
	clientID string
	playerID string
}

func (s *stream) serve(ctx context.Context) {
	defer func() { _ = s.conn.CloseNow() }()

	joined, err := s.handshake(ctx)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	defer func() {
		if err := s.room.Leave(context.Background(), s.clientID); err != nil && err != room.ErrClosed {
			slog.Warn("Failed to leave room", "room_id", s.room.ID(), "client_id", s.clientID, "error", err)
		}
	}()

	slog.Info("Client connected",
		"room_id", s.room.ID(),
		"client_id", s.clientID,
		"player_id", s.playerID,
		"character_id", joined.CharacterID,
	)

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.write(readCtx, cancel, joined.Events)

	s.read(readCtx)
}

// handshake waits for hello and joins the room
func (s *stream) handshake(ctx context.Context) (*room.JoinOutput, error) {
	helloCtx, cancel := context.WithTimeout(ctx, s.handler.handshakeTimeout)
	defer cancel()

	typ, data, err := s.conn.Read(helloCtx)
	if err != nil {
		if helloCtx.Err() != nil {
			return nil, errors.ProtocolViolation("no hello before handshake timeout")
		}
		return nil, errors.Wrap(err, "failed to read hello")
	}
	if typ != websocket.MessageText {
		return nil, errors.ProtocolViolation("commands must be text frames")
	}

	cmd, err := replication.DecodeCommand(data)
	if err != nil {
		return nil, err
	}
	hello, ok := cmd.(*replication.Hello)
	if !ok {
		return nil, errors.ProtocolViolationf("expected hello, got %s", cmd.CommandType())
	}
	s.playerID = hello.PlayerID

	return s.room.Join(ctx, room.JoinInput{ClientID: s.clientID, PlayerID: hello.PlayerID})
}

// write forwards room events until the room closes the stream
func (s *stream) write(ctx context.Context, cancel context.CancelFunc, events <-chan replication.Envelope) {
	defer cancel()

	for env := range events {
		if err := s.send(ctx, env); err != nil {
			slog.Debug("Websocket write failed", "client_id", s.clientID, "error", err)
			return
		}
	}

	if ctx.Err() != nil {
		return
	}
	// A closed stream means the room dropped this client or stopped
	reason := "room closed"
	select {
	case <-s.room.Done():
	default:
		reason = "connection too slow"
	}
	_ = s.conn.Close(websocket.StatusGoingAway, reason)
}

// read submits commands until the connection fails
func (s *stream) read(ctx context.Context) {
	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				slog.Info("Client disconnected", "room_id", s.room.ID(), "client_id", s.clientID)
			default:
				slog.Debug("Websocket read ended", "client_id", s.clientID, "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			s.reject(ctx, errors.ProtocolViolation("commands must be text frames"))
			continue
		}

		cmd, err := replication.DecodeCommand(data)
		if err != nil {
			s.reject(ctx, err)
			continue
		}
		if err := s.room.Submit(ctx, s.clientID, cmd); err != nil {
			// The writer closes the connection when the room stops
			if err == room.ErrClosed {
				return
			}
			slog.Warn("Failed to submit command", "client_id", s.clientID, "error", err)
			return
		}
	}
}

// reject answers a bad frame with an error event to this client only
func (s *stream) reject(ctx context.Context, err error) {
	if sendErr := s.send(ctx, replication.NewEnvelope(0, replication.ErrorEvent(err))); sendErr != nil {
		slog.Debug("Failed to send error event", "client_id", s.clientID, "error", sendErr)
	}
}

func (s *stream) send(ctx context.Context, env replication.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, s.handler.writeTimeout)
	defer cancel()
	return s.conn.Write(writeCtx, websocket.MessageText, data)
}

// fail reports a handshake error and closes the connection
func (s *stream) fail(ctx context.Context, err error) {
	slog.Warn("Websocket handshake failed",
		"room_id", s.room.ID(),
		"client_id", s.clientID,
		"error", err,
	)
	s.reject(ctx, err)

	status := websocket.StatusPolicyViolation
	if errors.IsUnavailable(err) {
		status = websocket.StatusGoingAway
	}
	_ = s.conn.Close(status, closeReason(errors.GetMessage(err)))
}

// closeReason fits a close frame's 123 byte reason limit without splitting
// a UTF-8 sequence
func closeReason(msg string) string {
	if len(msg) <= maxCloseReason {
		return msg
	}
	cut := maxCloseReason
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
