package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	googlegrpc "google.golang.org/grpc"

	"github.com/mtr002/Job-Client/internal/api"
	"github.com/mtr002/Job-Client/internal/config"
	"github.com/mtr002/Job-Client/internal/grpc"
	"github.com/mtr002/Job-Client/internal/logger"
	"github.com/mtr002/Job-Client/internal/master"
	"github.com/mtr002/Job-Client/internal/nats"
	"github.com/mtr002/Job-Client/internal/worker"
)

const serviceName = "job-master"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	logger.Init(serviceName)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to load config")
	}
	logger.Logger.Info().
		Str("http_port", cfg.Master.HTTPPort).
		Str("grpc_port", cfg.Master.GRPCPort).
		Int("workers", cfg.Master.Workers).
		Bool("nats", cfg.Master.EnableNATS).
		Msg("Starting job master")

	manager := master.NewManager(cfg.Master.QueueSize)
	workerPool := worker.NewPool(manager, &worker.DefaultJobRunner{}, cfg.Master.Workers)
	workerPool.Start()

	httpServer := api.NewServer(manager, serviceName, cfg.Master.HTTPPort)

	var natsServer *nats.Server
	if cfg.Master.EnableNATS {
		natsServer, err = nats.NewServer(cfg.NATS.URL, cfg.NATS.Subject, manager)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to create NATS server")
		}
		if err := natsServer.Subscribe(); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to subscribe to NATS")
		}
		httpServer.AddReadinessCheck("nats", natsServer.IsConnected)
		logger.Logger.Info().Str("url", cfg.NATS.URL).Str("subject", cfg.NATS.Subject).Msg("NATS responder started")
	}

	lis, err := net.Listen("tcp", ":"+cfg.Master.GRPCPort)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to listen")
	}
	grpcServer := grpc.NewServer(manager)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, googlegrpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(httpServer.Start)
	g.Go(func() error {
		<-ctx.Done()
		logger.Logger.Info().Msg("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
		}
		if natsServer != nil {
			natsServer.Close()
		}
		grpcServer.Stop()
		workerPool.Stop()
		manager.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Logger.Error().Err(err).Msg("Job master exited with error")
		os.Exit(1)
	}
	logger.Logger.Info().Msg("Job master stopped")
}
