package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/document-extractor/internal/app"
	"github.com/joseph-ayodele/document-extractor/internal/async"
	"github.com/joseph-ayodele/document-extractor/internal/common"
	"github.com/joseph-ayodele/document-extractor/internal/ingest"
	"github.com/joseph-ayodele/document-extractor/internal/logging"
	"github.com/joseph-ayodele/document-extractor/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger, logCloser := logging.New(cfg.Log)
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if cfg.AICore.ClientSecret == "" {
		logger.Warn("AI_CORE_CLIENT_SECRET is not set; runs will fail with AUTH_ERROR")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.DB.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	var (
		queue  async.Queue
		worker *async.AsynqWorker
	)
	switch cfg.Queue.Backend {
	case "asynq":
		queue = async.NewAsynqQueue(cfg.Redis, cfg.Queue.ProcessTimeout, logger)
		worker = async.NewAsynqWorker(cfg.Redis, cfg.Queue.Workers, a.Processor, logger)
		if err := worker.Start(); err != nil {
			logger.Error("failed to start asynq worker", "error", err)
			os.Exit(1)
		}
	default:
		queue = async.NewProcessorQueue(a.Processor, logger,
			async.WithWorkers(cfg.Queue.Workers),
			async.WithQueueSize(cfg.Queue.Size),
			async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
		)
	}

	if !strings.EqualFold(cfg.Log.Level, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(server.Deps{
		Documents:      a.Documents,
		Processor:      a.Processor,
		Queue:          queue,
		Export:         a.Export,
		Feedback:       a.Feedback,
		Health:         a.DB,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			logger.Info("grpc health listening", "addr", cfg.Server.GRPCAddr)
			return grpcServer.Serve(lis)
		})
	}

	if cfg.Inbox.Dir != "" {
		inbox := ingest.NewInbox(cfg.Inbox, a.Documents, queue, logger)
		g.Go(func() error {
			if err := inbox.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if cfg.Sweep.Interval > 0 {
		g.Go(func() error {
			sweep(gctx, a, cfg.Sweep, logger)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "error", err)
		}
		grpcServer.GracefulStop()
		queue.Shutdown(shutdownCtx)
		if worker != nil {
			worker.Shutdown()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

// sweep resets documents left in PROCESSING by a crashed or cancelled run.
func sweep(ctx context.Context, a *app.App, cfg common.SweepConfig, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Processor.SweepStuck(ctx, cfg.StuckAfter)
			if err != nil {
				logger.Warn("sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("sweep reset stuck documents", "count", n)
			}
		}
	}
}
