package v1

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/KirkDiggler/hexhaven-api/internal/replication"
)

// ServiceName is the fully qualified RoomAdmin service name
const ServiceName = "hexhaven.admin.v1.RoomAdmin"

const (
	listRoomsMethod   = "/" + ServiceName + "/ListRooms"
	getSnapshotMethod = "/" + ServiceName + "/GetSnapshot"
	closeRoomMethod   = "/" + ServiceName + "/CloseRoom"
)

// ListRoomsRequest filters rooms by phase when Phase is set
type ListRoomsRequest struct {
	Phase string `json:"phase,omitempty"`
}

// Room summarizes one running room
type Room struct {
	RoomID       string    `json:"roomId"`
	ScenarioID   string    `json:"scenarioId"`
	ScenarioName string    `json:"scenarioName"`
	Phase        string    `json:"phase"`
	Round        int       `json:"round"`
	Seq          int64     `json:"seq"`
	Outcome      string    `json:"outcome,omitempty"`
	Players      []string  `json:"players"`
	Connected    int       `json:"connected"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ListRoomsResponse lists rooms in creation order
type ListRoomsResponse struct {
	Rooms []*Room `json:"rooms"`
}

// GetSnapshotRequest names a room
type GetSnapshotRequest struct {
	RoomID string `json:"roomId"`
}

// GetSnapshotResponse carries the room state
type GetSnapshotResponse struct {
	Live     bool                  `json:"live"`
	SavedAt  *time.Time            `json:"savedAt,omitempty"`
	Snapshot *replication.Snapshot `json:"snapshot"`
}

// CloseRoomRequest names the room to close
type CloseRoomRequest struct {
	RoomID string `json:"roomId"`
	Reason string `json:"reason,omitempty"`
}

// CloseRoomResponse is empty
type CloseRoomResponse struct{}

// RoomAdminServer is the server API for the RoomAdmin service
type RoomAdminServer interface {
	ListRooms(ctx context.Context, req *ListRoomsRequest) (*ListRoomsResponse, error)
	GetSnapshot(ctx context.Context, req *GetSnapshotRequest) (*GetSnapshotResponse, error)
	CloseRoom(ctx context.Context, req *CloseRoomRequest) (*CloseRoomResponse, error)
}

// RoomAdminServiceDesc describes RoomAdmin for grpc.Server.RegisterService.
// It has no file descriptor and is left out of server reflection.
var RoomAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RoomAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListRooms", Handler: listRoomsHandler},
		{MethodName: "GetSnapshot", Handler: getSnapshotHandler},
		{MethodName: "CloseRoom", Handler: closeRoomHandler},
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterRoomAdminServer registers srv on s
func RegisterRoomAdminServer(s grpc.ServiceRegistrar, srv RoomAdminServer) {
	s.RegisterService(&RoomAdminServiceDesc, srv)
}

func listRoomsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListRoomsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RoomAdminServer).ListRooms(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listRoomsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RoomAdminServer).ListRooms(ctx, req.(*ListRoomsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getSnapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetSnapshotRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RoomAdminServer).GetSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getSnapshotMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RoomAdminServer).GetSnapshot(ctx, req.(*GetSnapshotRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func closeRoomHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CloseRoomRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RoomAdminServer).CloseRoom(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: closeRoomMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RoomAdminServer).CloseRoom(ctx, req.(*CloseRoomRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RoomAdminClient is the client API for the RoomAdmin service
type RoomAdminClient interface {
	ListRooms(ctx context.Context, req *ListRoomsRequest, opts ...grpc.CallOption) (*ListRoomsResponse, error)
	GetSnapshot(ctx context.Context, req *GetSnapshotRequest, opts ...grpc.CallOption) (*GetSnapshotResponse, error)
	CloseRoom(ctx context.Context, req *CloseRoomRequest, opts ...grpc.CallOption) (*CloseRoomResponse, error)
}

type roomAdminClient struct {
	cc grpc.ClientConnInterface
}

// NewRoomAdminClient returns a client that always calls with the JSON codec
func NewRoomAdminClient(cc grpc.ClientConnInterface) RoomAdminClient {
	return &roomAdminClient{cc: cc}
}

func (c *roomAdminClient) ListRooms(ctx context.Context, req *ListRoomsRequest, opts ...grpc.CallOption) (*ListRoomsResponse, error) {
	out := new(ListRoomsResponse)
	if err := c.cc.Invoke(ctx, listRoomsMethod, req, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *roomAdminClient) GetSnapshot(ctx context.Context, req *GetSnapshotRequest, opts ...grpc.CallOption) (*GetSnapshotResponse, error) {
	out := new(GetSnapshotResponse)
	if err := c.cc.Invoke(ctx, getSnapshotMethod, req, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *roomAdminClient) CloseRoom(ctx context.Context, req *CloseRoomRequest, opts ...grpc.CallOption) (*CloseRoomResponse, error) {
	out := new(CloseRoomResponse)
	if err := c.cc.Invoke(ctx, closeRoomMethod, req, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
