package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/cartridge/replaybuffer/internal/config"
	"github.com/cartridge/replaybuffer/internal/events"
	httpServer "github.com/cartridge/replaybuffer/internal/http"
	"github.com/cartridge/replaybuffer/internal/metrics"
	"github.com/cartridge/replaybuffer/internal/middleware"
	"github.com/cartridge/replaybuffer/internal/service"
	"github.com/cartridge/replaybuffer/internal/storage"
	replayv1 "github.com/cartridge/replaybuffer/pkg/api/replay/v1"
)

var rootCmd = &cobra.Command{
	Use:   "replay-server",
	Short: "Cartridge prioritized replay buffer service",
	Long: `Replay service that stores transitions in a fixed-capacity ring and
serves uniform and prioritized n-step samples over gRPC.

Flags may also be set through REPLAY_* environment variables, for example
REPLAY_CAPACITY=65536.`,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	defaults := config.Default()
	flags := rootCmd.Flags()

	// Endpoints
	flags.String("grpc-addr", defaults.GRPCAddr, "gRPC listen address")
	flags.String("http-addr", defaults.HTTPAddr, "HTTP listen address for health, stats and metrics (empty disables)")

	// Buffer shape
	flags.Int("capacity", defaults.Capacity, "Maximum number of transitions to store")
	flags.Int("observation-dim", defaults.ObservationDim, "Observation vector length")
	flags.Int("action-dim", defaults.ActionDim, "Action vector length")

	// Prioritization
	flags.Float64("alpha", defaults.Alpha, "Priority exponent (0 = uniform)")
	flags.Int("max-resample-attempts", defaults.MaxResampleAttempts, "Draws per band before sampling gives up")
	flags.Int64("seed", defaults.Seed, "Sampling seed (0 seeds from the clock)")

	// Events
	flags.String("nats-url", defaults.NATSURL, "NATS server URL for phase events (empty disables)")
	flags.String("nats-subject", defaults.NATSSubject, "Subject prefix for phase events")

	flags.Duration("shutdown-timeout", defaults.ShutdownTimeout, "Graceful shutdown timeout")
	flags.String("log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
}

func runServer(cmd *cobra.Command, args []string) error {
	v := viper.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", "replay").Logger()

	opts := cfg.BufferOptions()
	opts.Logger = logger
	buffer, err := storage.NewPrioritizedBuffer(opts)
	if err != nil {
		return fmt.Errorf("create buffer: %w", err)
	}
	logger.Info().
		Str("buffer_id", buffer.ID()).
		Int("capacity", cfg.Capacity).
		Int("observation_dim", cfg.ObservationDim).
		Int("action_dim", cfg.ActionDim).
		Float64("alpha", cfg.Alpha).
		Msg("Replay buffer created")

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer func() {
			if err := natsPublisher.Close(); err != nil {
				logger.Error().Err(err).Msg("Error closing NATS publisher")
			}
		}()
		publisher = natsPublisher
	}

	collector := metrics.NewCollector(logger)
	replayService := service.NewReplayService(buffer, collector, publisher, logger)
	collector.ObserveBuffer(replayService.Snapshot())

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(middleware.UnaryLogger(logger)),
	)
	replayv1.RegisterReplayServer(grpcServer, replayService)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", lis.Addr().String()).Msg("Replay gRPC server listening")
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		h := httpServer.NewServer(replayService, collector.Handler(), &logger)
		httpSrv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           h.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", cfg.HTTPAddr).Msg("Replay HTTP server listening")
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http serve: %w", err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var serveErr error
	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("Shutting down gracefully...")
	case serveErr = <-errCh:
		logger.Error().Err(serveErr).Msg("Server failed, shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if httpSrv != nil {
		if err := httpSrv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("HTTP graceful shutdown failed")
		}
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		logger.Warn().Msg("Shutdown timeout exceeded, forcing stop")
		grpcServer.Stop()
	case <-stopped:
		logger.Info().Msg("Server stopped gracefully")
	}

	stats := replayService.Snapshot()
	logger.Info().
		Int("size", stats.Size).
		Uint64("total_transitions", stats.TotalTransitions).
		Msg("Replay service stopped")
	return serveErr
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
