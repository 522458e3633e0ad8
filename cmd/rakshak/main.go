package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/api"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/cache"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/camera"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/capture"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/config"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/database"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/face"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/match"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/notify"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/registry"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/repository"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/stream"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/synchronizer"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/verification"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/ws"
)

// drainTimeout bounds how long pending match notifications may take on shutdown
const drainTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := config.NewLogger(cfg.Environment, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting Rakshak",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.Int("cameras", len(cfg.Cameras)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	version, err := database.MigrateUp(cfg.DatabaseURL, database.DatabaseName(pool), logger)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("database ready", slog.Uint64("schema_version", uint64(version)))

	detector, err := face.NewDetector(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create detector: %w", err)
	}
	extractor, err := face.NewExtractor(cfg)
	if err != nil {
		return fmt.Errorf("failed to create extractor: %w", err)
	}

	reg := registry.New()
	coordinator := match.NewCoordinator(reg, logger)
	hub := ws.NewHub()

	// Registry sync
	persons := repository.NewPersonRepository(pool)
	feed := repository.NewPersonFeed(pool, persons)
	syncer := synchronizer.New(
		persons,
		synchronizer.FeedFunc(func(ctx context.Context) (synchronizer.Subscription, error) {
			sub, err := feed.Subscribe(ctx)
			if err != nil {
				return nil, err
			}
			return sub, nil
		}),
		extractor,
		coordinator,
		synchronizer.Config{
			ResyncInterval: cfg.ResyncInterval,
			ReconnectMin:   synchronizer.DefaultConfig().ReconnectMin,
			ReconnectMax:   synchronizer.DefaultConfig().ReconnectMax,
		},
		logger,
		synchronizer.WithCache(cache.NewEmbeddingCache(pool, face.ModelName(cfg))),
		synchronizer.WithResolved(coordinator),
		synchronizer.WithBroadcaster(hub),
	)
	if err := syncer.LoadInitial(ctx); err != nil {
		return fmt.Errorf("failed to load persons: %w", err)
	}

	// Match notifications
	dispatcher := notify.NewDispatcher(notify.Config{
		URL:       cfg.NotifyURL,
		Secret:    cfg.NotifySecret,
		Timeout:   cfg.NotifyTimeout,
		QueueSize: cfg.NotifyQueueSize,
		Workers:   cfg.NotifyWorkers,
	}, coordinator, logger, notify.WithBroadcaster(hub))
	dispatcher.Start()

	// Cameras
	frames := stream.NewPublisher()
	deps := camera.Deps{
		Registry:    reg,
		Coordinator: coordinator,
		Detector:    detector,
		Extractor:   extractor,
		Dispatcher:  dispatcher,
		Publisher:   frames,
		Logger:      logger,
	}
	workers := make([]*camera.Worker, 0, len(cfg.Cameras))
	for _, cam := range cfg.Cameras {
		workers = append(workers, camera.NewWorker(camera.Config{
			Name:              cam.Name,
			DetectionInterval: cfg.DetectionInterval,
			Threshold:         cfg.SimilarityThreshold,
			RetryDelay:        cfg.CaptureRetryDelay,
			SnapshotMaxSize:   cfg.SnapshotMaxSize,
		}, capture.NewDevice(cam.Device), deps))
	}
	cameras := camera.NewManager(workers, logger)

	verifier := verification.NewService(extractor, reg, verification.Config{
		ConsistencyThreshold: cfg.VerificationThreshold,
		DuplicateThreshold:   cfg.DuplicateThreshold,
	}, logger)

	router := api.NewRouter(logger, &api.Dependencies{
		Verifier:    verifier,
		Cameras:     cameras,
		Frames:      frames,
		Coordinator: coordinator,
		Registry:    reg,
		CheckDB: func(ctx context.Context) error {
			return database.HealthCheck(ctx, pool)
		},
		Hub:             hub,
		StreamInterval:  cfg.StreamInterval,
		VerifyRateLimit: cfg.VerifyRateLimit,
	})
	router.Setup()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return syncer.Watch(gctx)
	})
	g.Go(func() error {
		syncer.RunPeriodicResync(gctx)
		return nil
	})

	cameras.Start(gctx)

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		// No new matches once the cameras have stopped
		cameras.Wait()

		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := dispatcher.Close(drainCtx); err != nil {
			logger.Warn("pending notifications abandoned", slog.Any("error", err))
		}

		if err := router.Shutdown(); err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
		return nil
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("server stopped")
	return nil
}
