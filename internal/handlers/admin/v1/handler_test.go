package v1_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	adminv1 "github.com/KirkDiggler/hexhaven-api/internal/handlers/admin/v1"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/registry"
	registrymock "github.com/KirkDiggler/hexhaven-api/internal/orchestrators/registry/mock"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
)

type HandlerTestSuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	registry *registrymock.MockService
	server   *grpc.Server
	conn     *grpc.ClientConn
	client   adminv1.RoomAdminClient
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func (s *HandlerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.registry = registrymock.NewMockService(s.ctrl)

	h, err := adminv1.NewHandler(&adminv1.HandlerConfig{Registry: s.registry})
	s.Require().NoError(err)

	lis := bufconn.Listen(1 << 20)
	s.server = grpc.NewServer()
	adminv1.RegisterRoomAdminServer(s.server, h)
	go func() { _ = s.server.Serve(lis) }()

	s.conn, err = grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	s.Require().NoError(err)
	s.client = adminv1.NewRoomAdminClient(s.conn)
}

func (s *HandlerTestSuite) TearDownTest() {
	_ = s.conn.Close()
	s.server.Stop()
}

func (s *HandlerTestSuite) TestNewHandlerRequiresRegistry() {
	_, err := adminv1.NewHandler(&adminv1.HandlerConfig{})
	s.True(errors.IsInvalidArgument(err))
}

func (s *HandlerTestSuite) TestListRooms() {
	created := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.registry.EXPECT().
		ListRooms(gomock.Any(), &registry.ListRoomsInput{Phase: replication.PhaseRound}).
		Return(&registry.ListRoomsOutput{Rooms: []*registry.RoomSummary{{
			RoomID:     "room_1",
			ScenarioID: "black-barrow",
			Phase:      replication.PhaseRound,
			Round:      2,
			Seq:        41,
			Players:    []string{"p1", "p2"},
			Connected:  1,
			CreatedAt:  created,
		}}}, nil)

	resp, err := s.client.ListRooms(s.ctx, &adminv1.ListRoomsRequest{Phase: "round"})
	s.Require().NoError(err)
	s.Require().Len(resp.Rooms, 1)

	got := resp.Rooms[0]
	s.Equal("room_1", got.RoomID)
	s.Equal("round", got.Phase)
	s.Equal(int64(41), got.Seq)
	s.Equal([]string{"p1", "p2"}, got.Players)
	s.True(created.Equal(got.CreatedAt))
}

func (s *HandlerTestSuite) TestGetSnapshot() {
	saved := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.registry.EXPECT().
		GetSnapshot(gomock.Any(), &registry.GetSnapshotInput{RoomID: "room_1"}).
		Return(&registry.GetSnapshotOutput{
			Snapshot: &replication.Snapshot{RoomID: "room_1", RoundNumber: 4, Phase: replication.PhaseSelection},
			SavedAt:  saved,
		}, nil)

	resp, err := s.client.GetSnapshot(s.ctx, &adminv1.GetSnapshotRequest{RoomID: "room_1"})
	s.Require().NoError(err)
	s.False(resp.Live)
	s.Require().NotNil(resp.SavedAt)
	s.True(saved.Equal(*resp.SavedAt))
	s.Equal(4, resp.Snapshot.RoundNumber)
}

func (s *HandlerTestSuite) TestGetSnapshotNotFound() {
	s.registry.EXPECT().
		GetSnapshot(gomock.Any(), gomock.Any()).
		Return(nil, errors.NotFound("room room_9 not found"))

	_, err := s.client.GetSnapshot(s.ctx, &adminv1.GetSnapshotRequest{RoomID: "room_9"})
	s.Equal(codes.NotFound, status.Code(err))
	s.True(errors.IsNotFound(errors.FromGRPCError(err)))
}

func (s *HandlerTestSuite) TestCloseRoom() {
	s.registry.EXPECT().
		CloseRoom(gomock.Any(), &registry.CloseRoomInput{RoomID: "room_1", Reason: "maintenance"}).
		Return(&registry.CloseRoomOutput{}, nil)

	_, err := s.client.CloseRoom(s.ctx, &adminv1.CloseRoomRequest{RoomID: "room_1", Reason: "maintenance"})
	s.NoError(err)
}

func (s *HandlerTestSuite) TestRequiresRoomID() {
	_, err := s.client.CloseRoom(s.ctx, &adminv1.CloseRoomRequest{})
	s.Equal(codes.InvalidArgument, status.Code(err))

	_, err = s.client.GetSnapshot(s.ctx, &adminv1.GetSnapshotRequest{})
	s.Equal(codes.InvalidArgument, status.Code(err))
}
