package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	adminv1 "github.com/KirkDiggler/hexhaven-api/internal/handlers/admin/v1"
)

var (
	serverAddr    string
	clientTimeout time.Duration
	phaseFilter   string
	closeReason   string
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Admin commands against a running server",
	Long:  `Client commands call the RoomAdmin gRPC service and print the responses as JSON.`,
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List running rooms",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		return withAdmin(func(ctx context.Context, c adminv1.RoomAdminClient) (any, error) {
			return c.ListRooms(ctx, &adminv1.ListRoomsRequest{Phase: phaseFilter})
		})
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <room-id>",
	Short: "Print a room's current or last saved state",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, c adminv1.RoomAdminClient) (any, error) {
			return c.GetSnapshot(ctx, &adminv1.GetSnapshotRequest{RoomID: args[0]})
		})
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <room-id>",
	Short: "Close a room and disconnect its players",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withAdmin(func(ctx context.Context, c adminv1.RoomAdminClient) (any, error) {
			return c.CloseRoom(ctx, &adminv1.CloseRoomRequest{RoomID: args[0], Reason: closeReason})
		})
	},
}

func init() {
	clientCmd.PersistentFlags().StringVar(&serverAddr, "server", "localhost:50051", "gRPC server address")
	clientCmd.PersistentFlags().DurationVar(&clientTimeout, "timeout", 10*time.Second, "Request timeout")

	roomsCmd.Flags().StringVar(&phaseFilter, "phase", "", "Only list rooms in this phase")
	closeCmd.Flags().StringVar(&closeReason, "reason", "", "Reason sent to connected players")

	clientCmd.AddCommand(roomsCmd)
	clientCmd.AddCommand(snapshotCmd)
	clientCmd.AddCommand(closeCmd)
}

// withAdmin dials the server, runs call and prints its response
func withAdmin(call func(context.Context, adminv1.RoomAdminClient) (any, error)) error {
	conn, err := grpc.NewClient(serverAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), clientTimeout)
	defer cancel()

	resp, err := call(ctx, adminv1.NewRoomAdminClient(conn))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
