package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/hexhaven-api/internal/content"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/handlers/ws"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/registry"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/clock"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/idgen"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/progress"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/snapshots"
)

type HandlerTestSuite struct {
	suite.Suite
	ctx      context.Context
	cancel   context.CancelFunc
	registry registry.Service
	server   *httptest.Server
	roomID   string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func (s *HandlerTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Second)

	lib, err := content.Load()
	s.Require().NoError(err)
	clk := clock.New()
	s.registry, err = registry.NewOrchestrator(&registry.Config{
		Content:     lib,
		Progress:    progress.NewInMemory(clk),
		Snapshots:   snapshots.NewInMemory(clk),
		Clock:       clk,
		IDGenerator: idgen.NewSequential("room"),
	})
	s.Require().NoError(err)

	out, err := s.registry.CreateRoom(s.ctx, &registry.CreateRoomInput{
		ScenarioID: "black-barrow",
		Players: []content.Seat{
			{PlayerID: "p1", ClassType: entities.ClassBrute},
			{PlayerID: "p2", ClassType: entities.ClassSpellweaver},
		},
	})
	s.Require().NoError(err)
	s.roomID = out.Room.ID()

	s.server = s.newServer(200 * time.Millisecond)
}

func (s *HandlerTestSuite) TearDownTest() {
	s.server.Close()
	s.NoError(s.registry.Shutdown(context.Background()))
	s.cancel()
}

func (s *HandlerTestSuite) newServer(handshake time.Duration) *httptest.Server {
	h, err := ws.NewHandler(&ws.HandlerConfig{
		Registry:         s.registry,
		IDGenerator:      idgen.NewSequential("conn"),
		HandshakeTimeout: handshake,
	})
	s.Require().NoError(err)

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/rooms/{roomID}/ws", h)
	return httptest.NewServer(r)
}

func (s *HandlerTestSuite) url(roomID string) string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + "/rooms/" + roomID + "/ws"
}

func (s *HandlerTestSuite) dial() *websocket.Conn {
	conn, _, err := websocket.Dial(s.ctx, s.url(s.roomID), nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func (s *HandlerTestSuite) write(conn *websocket.Conn, cmd replication.Command) {
	data, err := replication.EncodeCommand(cmd)
	s.Require().NoError(err)
	s.Require().NoError(conn.Write(s.ctx, websocket.MessageText, data))
}

func (s *HandlerTestSuite) read(conn *websocket.Conn) replication.Envelope {
	_, data, err := conn.Read(s.ctx)
	s.Require().NoError(err)
	env, err := replication.DecodeEnvelope(data)
	s.Require().NoError(err)
	return env
}

// connect dials and completes the hello handshake
func (s *HandlerTestSuite) connect(playerID string) *websocket.Conn {
	conn := s.dial()
	s.write(conn, &replication.Hello{PlayerID: playerID})

	env := s.read(conn)
	s.Require().Equal(replication.EventGameStarted, env.Type)
	started := env.Payload.(*replication.GameStarted)
	s.Equal(s.roomID, started.RoomID)
	s.Equal(started.Seq, env.Seq)
	return conn
}

func (s *HandlerTestSuite) assertClosedWith(conn *websocket.Conn, status websocket.StatusCode) {
	for {
		_, _, err := conn.Read(s.ctx)
		if err != nil {
			s.Equal(status, websocket.CloseStatus(err), err.Error())
			return
		}
	}
}

func (s *HandlerTestSuite) TestConfigValidation() {
	_, err := ws.NewHandler(nil)
	s.True(errors.IsInvalidArgument(err))

	_, err = ws.NewHandler(&ws.HandlerConfig{})
	s.Require().Error(err)
	s.Contains(err.Error(), "Registry")
}

func (s *HandlerTestSuite) TestHelloJoinsRoom() {
	s.connect("p1")
}

func (s *HandlerTestSuite) TestCommandsAreBroadcast() {
	brute := s.connect("p1")
	sage := s.connect("p2")

	s.write(brute, &replication.SelectCards{
		CharacterID:      "brute",
		Top:              "brute-trample",
		Bottom:           "brute-eye-for-an-eye",
		InitiativeCardID: "brute-trample",
	})

	for _, conn := range []*websocket.Conn{brute, sage} {
		env := s.read(conn)
		s.Equal(replication.EventCardsSelected, env.Type)
		s.Equal(int64(1), env.Seq)
		s.Equal("brute", env.Payload.(*replication.CardsSelected).CharacterID)
	}
}

func (s *HandlerTestSuite) TestMalformedCommandGetsErrorEvent() {
	conn := s.connect("p1")

	s.Require().NoError(conn.Write(s.ctx, websocket.MessageText, []byte(`{"type":"teleport","payload":{}}`)))

	env := s.read(conn)
	s.Equal(replication.EventError, env.Type)
	s.Zero(env.Seq)
	s.Equal(string(errors.KindProtocolViolation), env.Payload.(*replication.Error).Kind)
}

func (s *HandlerTestSuite) TestFirstFrameMustBeHello() {
	conn := s.dial()
	s.write(conn, &replication.DeclareLongRest{CharacterID: "brute"})

	env := s.read(conn)
	s.Equal(replication.EventError, env.Type)
	s.Equal(string(errors.KindProtocolViolation), env.Payload.(*replication.Error).Kind)
	s.assertClosedWith(conn, websocket.StatusPolicyViolation)
}

func (s *HandlerTestSuite) TestUnknownPlayerIsRejected() {
	conn := s.dial()
	s.write(conn, &replication.Hello{PlayerID: "p9"})

	env := s.read(conn)
	s.Equal(replication.EventError, env.Type)
	s.Equal(string(errors.KindIllegalAction), env.Payload.(*replication.Error).Kind)
	s.assertClosedWith(conn, websocket.StatusPolicyViolation)
}

func (s *HandlerTestSuite) TestHandshakeTimeout() {
	conn := s.dial()

	start := time.Now()
	_, _, err := conn.Read(s.ctx)
	s.Require().Error(err)
	s.Less(time.Since(start), 2*time.Second)
}

func (s *HandlerTestSuite) TestUnknownRoom() {
	_, resp, err := websocket.Dial(s.ctx, s.url("missing"), nil)
	s.Require().Error(err)
	s.Require().NotNil(resp)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *HandlerTestSuite) TestRoomCloseEndsStream() {
	conn := s.connect("p1")

	_, err := s.registry.CloseRoom(s.ctx, &registry.CloseRoomInput{RoomID: s.roomID})
	s.Require().NoError(err)

	s.assertClosedWith(conn, websocket.StatusGoingAway)
}
