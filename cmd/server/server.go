package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/reflection/grpc_reflection_v1"
	"google.golang.org/grpc/status"

	grpc_logging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"

	"github.com/KirkDiggler/hexhaven-api/internal/config"
	"github.com/KirkDiggler/hexhaven-api/internal/content"
	adminv1 "github.com/KirkDiggler/hexhaven-api/internal/handlers/admin/v1"
	"github.com/KirkDiggler/hexhaven-api/internal/handlers/httpapi"
	"github.com/KirkDiggler/hexhaven-api/internal/handlers/ws"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/registry"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/clock"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/idgen"
	redisclient "github.com/KirkDiggler/hexhaven-api/internal/redis"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/progress"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/snapshots"
	"github.com/KirkDiggler/hexhaven-api/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

var (
	httpAddr      string
	grpcAddr      string
	redisEndpoint string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the game server",
	Long: `Start the HTTP room API, the websocket event stream and the gRPC admin service.
Settings come from HEXHAVEN_* environment variables; flags override them.`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides HEXHAVEN_HTTP_ADDR)")
	serverCmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address (overrides HEXHAVEN_GRPC_ADDR)")
	serverCmd.Flags().StringVar(&redisEndpoint, "redis", "", "Redis endpoint (overrides HEXHAVEN_REDIS_ENDPOINT)")
}

type repositories struct {
	progress  progress.Repository
	snapshots snapshots.Repository
	close     func() error
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("http-addr") {
		cfg.HTTPAddr = httpAddr
	}
	if cmd.Flags().Changed("grpc-addr") {
		cfg.GRPCAddr = grpcAddr
	}
	if cmd.Flags().Changed("redis") {
		cfg.RedisEndpoint = redisEndpoint
		cfg.RedisClusterEndpoints = nil
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, &telemetry.Config{
		Endpoint:    cfg.OtelEndpoint,
		ServiceName: cfg.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	clk := clock.New()
	repos, err := newRepositories(cfg, clk)
	if err != nil {
		return err
	}
	defer func() {
		if err := repos.close(); err != nil {
			slog.Warn("Failed to close repositories", "error", err)
		}
	}()

	lib, err := content.Load()
	if err != nil {
		return fmt.Errorf("failed to load content: %w", err)
	}

	rooms, err := registry.NewOrchestrator(&registry.Config{
		Content:     lib,
		Progress:    repos.progress,
		Snapshots:   repos.snapshots,
		Clock:       clk,
		IDGenerator: idgen.NewUUID("room"),
		Rules:       cfg.RestRules(),
		LogSize:     cfg.LogSize,
		MaxRooms:    cfg.MaxRooms,
		Room: registry.RoomOptions{
			ReconnectGrace: cfg.ReconnectGrace,
			OutboxSize:     cfg.OutboxSize,
			PersistTimeout: cfg.PersistTimeout,
			SnapshotTTL:    cfg.SnapshotTTL,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create room registry: %w", err)
	}

	wsHandler, err := ws.NewHandler(&ws.HandlerConfig{
		Registry:         rooms,
		IDGenerator:      idgen.NewUUID("conn"),
		HandshakeTimeout: cfg.HandshakeTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create websocket handler: %w", err)
	}

	apiHandler, err := httpapi.NewHandler(&httpapi.HandlerConfig{
		Registry:  rooms,
		WebSocket: wsHandler,
	})
	if err != nil {
		return fmt.Errorf("failed to create http handler: %w", err)
	}

	adminHandler, err := adminv1.NewHandler(&adminv1.HandlerConfig{Registry: rooms})
	if err != nil {
		return fmt.Errorf("failed to create admin handler: %w", err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apiHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcSrv := newGRPCServer(adminHandler)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}

	errChan := make(chan error, 2)
	go func() {
		slog.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server failed: %w", err)
		}
	}()
	go func() {
		slog.Info("gRPC server starting", "addr", cfg.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			errChan <- fmt.Errorf("grpc server failed: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal, gracefully stopping")
	case serveErr = <-errChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Rooms first so connected players get a close frame before the
	// listeners go away
	if err := rooms.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Room shutdown incomplete", "error", err)
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	stopGRPC(shutdownCtx, grpcSrv)

	slog.Info("Server stopped")
	return serveErr
}

func newRepositories(cfg *config.Config, clk clock.Clock) (*repositories, error) {
	if !cfg.UseRedis() {
		slog.Info("Using in-memory repositories")
		return &repositories{
			progress:  progress.NewInMemory(clk),
			snapshots: snapshots.NewInMemory(clk),
			close:     func() error { return nil },
		}, nil
	}

	endpoints := cfg.RedisClusterEndpoints
	if cfg.RedisEndpoint != "" {
		endpoints = []string{cfg.RedisEndpoint}
	}
	client, err := redisclient.Connect(endpoints, &redisclient.Options{
		PoolSize: cfg.RedisPoolSize,
		UseTLS:   cfg.RedisTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}

	progressRepo, err := progress.NewRedis(&progress.RedisConfig{Client: client, Clock: clk})
	if err != nil {
		return nil, err
	}
	snapshotRepo, err := snapshots.NewRedis(&snapshots.RedisConfig{Client: client, Clock: clk})
	if err != nil {
		return nil, err
	}

	slog.Info("Using redis repositories", "endpoints", endpoints)
	return &repositories{
		progress:  progressRepo,
		snapshots: snapshotRepo,
		close:     client.Close,
	}, nil
}

func newGRPCServer(admin adminv1.RoomAdminServer) *grpc.Server {
	logger := grpc_logging.LoggerFunc(logFunc)
	recovery := grpc_recovery.WithRecoveryHandler(func(p any) error {
		slog.Error("Recovered from panic in gRPC handler", "panic", p)
		return status.Error(codes.Internal, "internal error")
	})

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpc_logging.UnaryServerInterceptor(logger),
			grpc_recovery.UnaryServerInterceptor(recovery),
		),
		grpc.ChainStreamInterceptor(
			grpc_logging.StreamServerInterceptor(logger),
			grpc_recovery.StreamServerInterceptor(recovery),
		),
	)

	adminv1.RegisterRoomAdminServer(srv, admin)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(adminv1.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	grpc_reflection_v1.RegisterServerReflectionServer(srv, reflection.NewServerV1(reflection.ServerOptions{
		Services: protoServices{srv: srv},
	}))
	return srv
}

// protoServices lists the services reflection can describe. RoomAdmin
// speaks JSON and has no descriptor, so reflection would fail on it.
type protoServices struct {
	srv *grpc.Server
}

func (p protoServices) GetServiceInfo() map[string]grpc.ServiceInfo {
	info := p.srv.GetServiceInfo()
	delete(info, adminv1.ServiceName)
	return info
}

func stopGRPC(ctx context.Context, srv *grpc.Server) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		slog.Warn("Graceful gRPC shutdown timeout exceeded, forcing stop")
		srv.Stop()
	case <-stopped:
	}
}

// logFunc bridges interceptor logs onto slog. The middleware levels share
// slog's numbering.
func logFunc(ctx context.Context, level grpc_logging.Level, msg string, fields ...any) {
	slog.Default().Log(ctx, slog.Level(level), msg, fields...)
}
