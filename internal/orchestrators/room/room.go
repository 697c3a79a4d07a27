// Package room runs one scenario session behind a single-writer actor.
// Every join, leave, command and persistence result goes through the
// room's inbox and is handled by one goroutine, so the session itself
// needs no locking and events leave the room in sequence order.
package room

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/session"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/clock"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/progress"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/snapshots"
)

const (
	tracerName = "github.com/KirkDiggler/hexhaven-api/internal/orchestrators/room"

	// DefaultReconnectGrace is how long a player may be gone before the
	// room reports them disconnected
	DefaultReconnectGrace = 10 * time.Second
	// DefaultOutboxSize bounds each client's pending events
	DefaultOutboxSize = 256
	// DefaultPersistTimeout bounds one persistence job
	DefaultPersistTimeout = 5 * time.Second

	inboxSize = 64
)

// ErrClosed is returned by calls on a room that has stopped
var ErrClosed = errors.Unavailable("room is closed")

// Config wires a room to its session and collaborators
type Config struct {
	Session   *session.Session
	Progress  progress.Repository
	Snapshots snapshots.Repository
	Clock     clock.Clock

	ReconnectGrace time.Duration
	OutboxSize     int
	PersistTimeout time.Duration
	SnapshotTTL    time.Duration

	// Tracer defaults to the global provider
	Tracer trace.Tracer
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.Session == nil {
		vb.RequiredField("session")
	}
	if c.Progress == nil {
		vb.RequiredField("progress")
	}
	if c.Snapshots == nil {
		vb.RequiredField("snapshots")
	}
	if c.Clock == nil {
		vb.RequiredField("clock")
	}
	if c.ReconnectGrace < 0 {
		vb.InvalidField("reconnect_grace", "must not be negative")
	}
	if c.OutboxSize < 0 {
		vb.InvalidField("outbox_size", "must not be negative")
	}
	if c.PersistTimeout < 0 {
		vb.InvalidField("persist_timeout", "must not be negative")
	}
	return vb.Build()
}

type client struct {
	id       string
	playerID string
	out      chan replication.Envelope
}

// pendingDisconnect is a running reconnect grace timer. gen tells a stale
// expiry from the current one.
type pendingDisconnect struct {
	gen  int
	stop func() bool
}

// Room owns a session and the clients watching it
type Room struct {
	id        string
	sess      *session.Session
	progress  progress.Repository
	snapshots snapshots.Repository
	clock     clock.Clock
	tracer    trace.Tracer

	grace          time.Duration
	outboxSize     int
	persistTimeout time.Duration
	snapshotTTL    time.Duration

	inbox   chan message
	clients map[string]*client
	away    map[string]pendingDisconnect
	gen     int
	// inflight counts persistence jobs whose result has not come back
	inflight int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// New starts a room. The room runs until Shutdown, ctx is cancelled or an
// invariant violation stops it. It also stops by itself once the scenario
// has ended and its persistence jobs are done, or once every player's
// reconnect grace has run out.
func New(ctx context.Context, cfg *Config) (*Room, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	r := &Room{
		id:             cfg.Session.ID(),
		sess:           cfg.Session,
		progress:       cfg.Progress,
		snapshots:      cfg.Snapshots,
		clock:          cfg.Clock,
		tracer:         cfg.Tracer,
		grace:          cfg.ReconnectGrace,
		outboxSize:     cfg.OutboxSize,
		persistTimeout: cfg.PersistTimeout,
		snapshotTTL:    cfg.SnapshotTTL,
		inbox:          make(chan message, inboxSize),
		clients:        make(map[string]*client),
		away:           make(map[string]pendingDisconnect),
		done:           make(chan struct{}),
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	if r.grace == 0 {
		r.grace = DefaultReconnectGrace
	}
	if r.outboxSize == 0 {
		r.outboxSize = DefaultOutboxSize
	}
	if r.persistTimeout == 0 {
		r.persistTimeout = DefaultPersistTimeout
	}
	r.ctx, r.cancel = context.WithCancel(ctx)

	go r.loop()

	slog.Info("Room opened", "room_id", r.id, "phase", r.sess.Phase())
	return r, nil
}

// ID returns the room id
func (r *Room) ID() string { return r.id }

// Done is closed once the room has stopped
func (r *Room) Done() <-chan struct{} { return r.done }

// Err returns why the room stopped. It is nil while the room runs and
// after a clean shutdown.
func (r *Room) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// JoinInput identifies a connection and the player behind it
type JoinInput struct {
	ClientID string
	PlayerID string
}

// JoinOutput carries the connection's event stream. The first event is
// game_started. The channel is closed when the room drops the client or
// stops.
type JoinOutput struct {
	CharacterID string
	Events      <-chan replication.Envelope
}

// Join attaches a connection for a player who has a character in the room.
// Joining again with the same player replaces the old connection.
func (r *Room) Join(ctx context.Context, input JoinInput) (*JoinOutput, error) {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("client_id", input.ClientID, vb)
	errors.ValidateRequired("player_id", input.PlayerID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	reply := make(chan joinResult, 1)
	if err := r.send(ctx, join{input: input, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case res := <-reply:
		return res.out, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return nil, ErrClosed
	}
}

// Leave detaches a connection. The player's reconnect grace starts once
// their last connection is gone.
func (r *Room) Leave(ctx context.Context, clientID string) error {
	return r.send(ctx, leave{clientID: clientID})
}

// Submit queues a command from a connection. Results arrive on the
// connection's event stream: broadcast events for accepted commands and a
// seq 0 reply for rejected ones.
func (r *Room) Submit(ctx context.Context, clientID string, cmd replication.Command) error {
	if cmd == nil {
		return errors.ProtocolViolation("command is required")
	}
	return r.send(ctx, submit{ctx: ctx, clientID: clientID, cmd: cmd})
}

// View is a consistent read of the room taken inside the actor
type View struct {
	Snapshot *replication.Snapshot
	Clients  int
	Players  []string
}

// Snapshot returns the room state
func (r *Room) Snapshot(ctx context.Context) (*View, error) {
	reply := make(chan *View, 1)
	if err := r.send(ctx, snapshot{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.done:
		return nil, ErrClosed
	}
}

// Shutdown stops the room and waits for it to finish. Persistence jobs
// already running are not waited for.
func (r *Room) Shutdown(ctx context.Context, reason string) error {
	if err := r.send(ctx, shutdown{reason: reason}); err != nil {
		if err == ErrClosed {
			return nil
		}
		return err
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) send(ctx context.Context, m message) error {
	select {
	case <-r.done:
		return ErrClosed
	default:
	}
	select {
	case r.inbox <- m:
		return nil
	case <-r.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.stop(nil, "context cancelled")
			return
		case m := <-r.inbox:
			if stopped := r.dispatch(m); stopped {
				return
			}
		}
	}
}

// dispatch handles one message and reports whether the room stopped. A
// panic anywhere in the handlers closes this room only.
func (r *Room) dispatch(m message) (stopped bool) {
	defer func() {
		if p := recover(); p != nil {
			err := errors.InvariantViolationf("room %s panicked: %v", r.id, p)
			slog.Error("Room panicked",
				"room_id", r.id,
				"panic", fmt.Sprint(p),
			)
			r.broadcast(replication.NewEnvelope(0, replication.ErrorEvent(err)))
			r.stop(err, "panic")
			stopped = true
		}
	}()

	switch msg := m.(type) {
	case join:
		r.handleJoin(msg)
	case leave:
		r.handleLeave(msg.clientID)
	case submit:
		return r.handleSubmit(msg)
	case snapshot:
		msg.reply <- r.view()
	case persistResult:
		return r.handlePersistResult(msg)
	case disconnectExpired:
		return r.handleDisconnectExpired(msg)
	case shutdown:
		r.stop(nil, msg.reason)
		return true
	}
	return false
}

func (r *Room) handleJoin(msg join) {
	charID, ok := r.sess.CharacterForPlayer(msg.input.PlayerID)
	if !ok {
		msg.reply <- joinResult{err: errors.IllegalActionf("player %s has no character in room %s", msg.input.PlayerID, r.id)}
		return
	}

	if _, exists := r.clients[msg.input.ClientID]; exists {
		msg.reply <- joinResult{err: errors.AlreadyExistsf("client %s already joined room %s", msg.input.ClientID, r.id)}
		return
	}
	for id, c := range r.clients {
		if c.playerID == msg.input.PlayerID {
			slog.Info("Replacing connection",
				"room_id", r.id,
				"player_id", c.playerID,
				"old_client_id", id,
			)
			r.drop(id)
		}
	}
	if pending, ok := r.away[msg.input.PlayerID]; ok {
		pending.stop()
		delete(r.away, msg.input.PlayerID)
	}

	c := &client{
		id:       msg.input.ClientID,
		playerID: msg.input.PlayerID,
		out:      make(chan replication.Envelope, r.outboxSize),
	}
	snap := r.sess.Snapshot()
	c.out <- replication.NewEnvelope(snap.Seq, &replication.GameStarted{Snapshot: *snap})
	r.clients[c.id] = c

	slog.Info("Player joined",
		"room_id", r.id,
		"player_id", c.playerID,
		"character_id", charID,
		"client_id", c.id,
		"seq", snap.Seq,
	)
	msg.reply <- joinResult{out: &JoinOutput{CharacterID: charID, Events: c.out}}
}

func (r *Room) handleLeave(clientID string) {
	c, ok := r.clients[clientID]
	if !ok {
		return
	}
	r.drop(clientID)
	slog.Info("Player left", "room_id", r.id, "player_id", c.playerID, "client_id", clientID)
	r.startGrace(c.playerID)
}

// startGrace arms the reconnect timer once a player has no connection left
func (r *Room) startGrace(playerID string) {
	if r.sess.Ended() || r.connected(playerID) {
		return
	}
	if _, ok := r.away[playerID]; ok {
		return
	}

	r.gen++
	gen := r.gen
	stop := r.clock.AfterFunc(r.grace, func() {
		_ = r.send(context.Background(), disconnectExpired{playerID: playerID, gen: gen})
	})
	r.away[playerID] = pendingDisconnect{gen: gen, stop: stop}
}

func (r *Room) handleDisconnectExpired(msg disconnectExpired) bool {
	pending, ok := r.away[msg.playerID]
	if !ok || pending.gen != msg.gen {
		return false
	}
	delete(r.away, msg.playerID)
	if r.connected(msg.playerID) {
		return false
	}

	charID, _ := r.sess.CharacterForPlayer(msg.playerID)
	slog.Warn("Player disconnected",
		"room_id", r.id,
		"player_id", msg.playerID,
		"character_id", charID,
	)
	r.broadcast(r.sess.Record(&replication.PlayerDisconnected{PlayerID: msg.playerID, CharacterID: charID}))

	if len(r.clients) == 0 && len(r.away) == 0 {
		r.stop(nil, "abandoned")
		return true
	}
	return false
}

// finishIfEnded stops an ended room once nothing is left to persist
func (r *Room) finishIfEnded() bool {
	if !r.sess.Ended() || r.inflight > 0 {
		return false
	}
	r.stop(nil, "scenario ended")
	return true
}

func (r *Room) handleSubmit(msg submit) bool {
	c, ok := r.clients[msg.clientID]
	if !ok {
		slog.Warn("Command from unknown client", "room_id", r.id, "client_id", msg.clientID)
		return false
	}

	ctx, span := r.startCommandSpan(msg.ctx, c.playerID, msg.cmd)
	defer span.End()

	envs, err := r.sess.Handle(c.playerID, msg.cmd)
	if err != nil {
		recordSpanError(span, err)
	}

	switch {
	case err == nil:
		r.broadcast(envs...)
		r.runJobs(ctx)
		return r.finishIfEnded()

	case errors.IsInvariantViolation(err):
		slog.Error("Invariant violated, closing room",
			"room_id", r.id,
			"player_id", c.playerID,
			"command", msg.cmd.CommandType(),
			"error", err,
		)
		r.broadcast(envs...)
		r.broadcast(replication.NewEnvelope(0, replication.ErrorEvent(err)))
		r.stop(err, "invariant violation")
		return true

	case errors.IsStateReference(err):
		slog.Warn("Command references missing state",
			"room_id", r.id,
			"player_id", c.playerID,
			"command", msg.cmd.CommandType(),
			"error", err,
		)

	case errors.IsIllegalAction(err):
		slog.Info("Command rejected",
			"room_id", r.id,
			"player_id", c.playerID,
			"command", msg.cmd.CommandType(),
			"error", err,
		)
		r.reply(c, rejection(msg.cmd, err))

	default:
		slog.Warn("Malformed command",
			"room_id", r.id,
			"player_id", c.playerID,
			"command", msg.cmd.CommandType(),
			"error", err,
		)
		r.reply(c, replication.ErrorEvent(err))
	}
	return false
}

// rejection is the reply to a refused command. A refused card action is
// reported as a failed card_action_executed so the client can restore its
// targeting UI.
func rejection(cmd replication.Command, err error) replication.Event {
	if use, ok := cmd.(*replication.UseCardAction); ok {
		return &replication.CardActionExecuted{
			CharacterID: use.CharacterID,
			CardID:      use.CardID,
			Position:    use.Position,
			Success:     false,
			Error:       errors.GetMessage(err),
		}
	}
	return replication.ErrorEvent(err)
}

func (r *Room) view() *View {
	v := &View{
		Snapshot: r.sess.Snapshot(),
		Clients:  len(r.clients),
	}
	seen := make(map[string]bool)
	for _, c := range r.clients {
		if !seen[c.playerID] {
			seen[c.playerID] = true
			v.Players = append(v.Players, c.playerID)
		}
	}
	slices.Sort(v.Players)
	return v
}

// broadcast sends envs to every client. A client whose outbox is full is
// dropped and has to rejoin.
func (r *Room) broadcast(envs ...replication.Envelope) {
	for _, env := range envs {
		for id, c := range r.clients {
			select {
			case c.out <- env:
			default:
				slog.Warn("Dropping slow client",
					"room_id", r.id,
					"player_id", c.playerID,
					"client_id", id,
					"seq", env.Seq,
				)
				r.drop(id)
				r.startGrace(c.playerID)
			}
		}
	}
}

// reply sends a seq 0 event to one client
func (r *Room) reply(c *client, ev replication.Event) {
	select {
	case c.out <- replication.NewEnvelope(0, ev):
	default:
		slog.Warn("Dropping slow client", "room_id", r.id, "player_id", c.playerID, "client_id", c.id)
		r.drop(c.id)
		r.startGrace(c.playerID)
	}
}

func (r *Room) drop(clientID string) {
	c, ok := r.clients[clientID]
	if !ok {
		return
	}
	close(c.out)
	delete(r.clients, clientID)
}

func (r *Room) connected(playerID string) bool {
	for _, c := range r.clients {
		if c.playerID == playerID {
			return true
		}
	}
	return false
}

// stop marks the room done, then closes every client stream and cancels
// pending grace timers. Streams close after Done so readers can tell a
// stopped room from a dropped client.
func (r *Room) stop(err error, reason string) {
	r.err = err
	close(r.done)
	for id := range r.clients {
		r.drop(id)
	}
	for playerID, pending := range r.away {
		pending.stop()
		delete(r.away, playerID)
	}
	r.cancel()

	if err != nil {
		slog.Error("Room closed", "room_id", r.id, "reason", reason, "error", err)
		return
	}
	slog.Info("Room closed", "room_id", r.id, "reason", reason)
}
