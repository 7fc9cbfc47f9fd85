// Package app wires the notifier runtime: two channel consumers feeding the
// notification service, the SMTP sender, and the audit log store.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/releaseline/internal/channel"
	"github.com/louisbranch/releaseline/internal/platform/mail"
	notifierdomain "github.com/louisbranch/releaseline/internal/services/notifier/domain"
	notifiersqlite "github.com/louisbranch/releaseline/internal/services/notifier/storage/sqlite"
	"github.com/louisbranch/releaseline/internal/services/release/event"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls notifier runtime startup and consumer behavior.
type RuntimeConfig struct {
	Port          int
	DBPath        string
	ChannelDBPath string
	PollInterval  time.Duration
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	MailFrom      string
	MailDomain    string
}

const (
	defaultNotifierPort      = 8091
	defaultNotifierDB        = "data/notifier.db"
	defaultChannelDB         = "data/channel.db"
	notifierHealthServiceKey = "notifier.runtime"
)

// Run starts notifier runtime dependencies and the consumer loops.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Port <= 0 {
		cfg.Port = defaultNotifierPort
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = defaultNotifierDB
	}
	if strings.TrimSpace(cfg.ChannelDBPath) == "" {
		cfg.ChannelDBPath = defaultChannelDB
	}

	for _, path := range []string{cfg.DBPath, cfg.ChannelDBPath} {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create storage dir: %w", err)
			}
		}
	}

	auditStore, err := notifiersqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open notifier sqlite store: %w", err)
	}
	defer func() {
		if closeErr := auditStore.Close(); closeErr != nil {
			log.Printf("close notifier sqlite store: %v", closeErr)
		}
	}()

	channelStore, err := channel.Open(cfg.ChannelDBPath)
	if err != nil {
		return fmt.Errorf("open channel sqlite store: %w", err)
	}
	defer func() {
		if closeErr := channelStore.Close(); closeErr != nil {
			log.Printf("close channel sqlite store: %v", closeErr)
		}
	}()

	sender := mail.New(mail.Config{
		Host:          cfg.SMTPHost,
		Port:          cfg.SMTPPort,
		Username:      cfg.SMTPUsername,
		Password:      cfg.SMTPPassword,
		From:          cfg.MailFrom,
		DefaultDomain: cfg.MailDomain,
	}, nil)
	service := notifierdomain.NewService(auditStore, sender, nil, nil, nil)

	policy := channel.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.RetryBackoff,
		MaxDelay:    cfg.RetryMaxDelay,
	}
	taskConsumer := channel.NewConsumer(
		channelStore,
		event.ChannelTaskRelay,
		func(ctx context.Context, msg channel.Message) error {
			return service.HandleTaskEvent(ctx, msg.RoutingKey, msg.Payload, strconv.FormatInt(msg.ID, 10))
		},
		policy,
		cfg.PollInterval,
		nil,
	)
	systemConsumer := channel.NewConsumer(
		channelStore,
		event.ChannelSystemEvents,
		func(ctx context.Context, msg channel.Message) error {
			return service.HandleSystemEvent(ctx, msg.RoutingKey, msg.Payload, strconv.FormatInt(msg.ID, 10))
		},
		policy,
		cfg.PollInterval,
		nil,
	)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on notifier port %d: %w", cfg.Port, err)
	}
	defer listener.Close()

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(notifierHealthServiceKey, grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	defer func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}()

	consumerErr := make(chan error, 2)
	go func() {
		consumerErr <- taskConsumer.Run(ctx)
	}()
	go func() {
		consumerErr <- systemConsumer.Run(ctx)
	}()

	log.Printf("notifier server listening at %v", listener.Addr())
	for i := 0; i < 2; i++ {
		if err := <-consumerErr; err != nil {
			return err
		}
	}
	return nil
}
