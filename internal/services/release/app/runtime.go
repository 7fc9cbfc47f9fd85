// Package app wires the release runtime: workflow engine, event channel
// publisher, stale-task detector, health monitor, and the live activity
// stream.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/releaseline/internal/channel"
	"github.com/louisbranch/releaseline/internal/services/release/domain"
	"github.com/louisbranch/releaseline/internal/services/release/event"
	releasesqlite "github.com/louisbranch/releaseline/internal/services/release/storage/sqlite"
	"github.com/louisbranch/releaseline/internal/services/release/stream"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls release runtime startup and background loop
// behavior.
type RuntimeConfig struct {
	Port            int
	DBPath          string
	ChannelDBPath   string
	StaleThreshold  time.Duration
	StaleInterval   time.Duration
	MonitorInterval time.Duration
	Developers      string
}

const (
	defaultReleasePort      = 8090
	defaultReleaseDB        = "data/release.db"
	defaultChannelDB        = "data/channel.db"
	storeDownErrorCode      = "STORE_DOWN"
	channelDownErrorCode    = "CHANNEL_DOWN"
	releaseHealthServiceKey = "release.runtime"
)

// Runtime holds the wired release service dependencies.
type Runtime struct {
	cfg          RuntimeConfig
	releaseStore *releasesqlite.Store
	channelStore *channel.Store
	engine       *domain.Engine
	broadcaster  *stream.Broadcaster
	detector     *StaleTaskDetector
	monitor      *HealthMonitor
}

// New opens runtime storage and wires the engine and background loops.
// Callers own the returned runtime and must Close it.
func New(cfg RuntimeConfig) (*Runtime, error) {
	if cfg.Port <= 0 {
		cfg.Port = defaultReleasePort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultReleaseDB
	}
	if strings.TrimSpace(cfg.ChannelDBPath) == "" {
		cfg.ChannelDBPath = defaultChannelDB
	}

	for _, path := range []string{cfg.DBPath, cfg.ChannelDBPath} {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
	}

	releaseStore, err := releasesqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open release sqlite store: %w", err)
	}
	channelStore, err := channel.Open(cfg.ChannelDBPath)
	if err != nil {
		_ = releaseStore.Close()
		return nil, fmt.Errorf("open channel sqlite store: %w", err)
	}

	directory := ParseDirectory(cfg.Developers)
	publisher := event.NewPublisher(channelStore, nil)
	broadcaster := stream.NewBroadcaster(nil)
	engine := domain.NewEngine(releaseStore, publisher, broadcaster, directory, nil, nil)
	detector := NewStaleTaskDetector(releaseStore, publisher, directory, cfg.StaleThreshold, cfg.StaleInterval, nil, nil)
	monitor := NewHealthMonitor(
		[]HealthCheck{
			{Code: storeDownErrorCode, Pinger: releaseStore},
			{Code: channelDownErrorCode, Pinger: channelStore},
		},
		publisher,
		cfg.MonitorInterval,
		nil,
		nil,
	)

	return &Runtime{
		cfg:          cfg,
		releaseStore: releaseStore,
		channelStore: channelStore,
		engine:       engine,
		broadcaster:  broadcaster,
		detector:     detector,
		monitor:      monitor,
	}, nil
}

// Engine returns the workflow engine for embedding callers.
func (r *Runtime) Engine() *domain.Engine {
	if r == nil {
		return nil
	}
	return r.engine
}

// Stream returns the live activity broadcaster.
func (r *Runtime) Stream() *stream.Broadcaster {
	if r == nil {
		return nil
	}
	return r.broadcaster
}

// Close releases runtime resources.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	r.broadcaster.Close()
	var firstErr error
	if err := r.channelStore.Close(); err != nil {
		firstErr = err
	}
	if err := r.releaseStore.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Run starts the background loops and the health gRPC server and blocks
// until ctx is canceled.
func (r *Runtime) Run(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("release runtime is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on release port %d: %w", r.cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(releaseHealthServiceKey, grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	go func() {
		if err := r.detector.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("stale task detector stopped: %v", err)
		}
	}()
	go func() {
		if err := r.monitor.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("health monitor stopped: %v", err)
		}
	}()

	log.Printf("release server listening at %v", listener.Addr())
	<-ctx.Done()
	return nil
}

// Run opens the runtime, starts it, and closes it on shutdown.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	runtime, err := New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := runtime.Close(); closeErr != nil {
			log.Printf("close release runtime: %v", closeErr)
		}
	}()
	return runtime.Run(ctx)
}
