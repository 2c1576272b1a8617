package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"bluecut/internal/adapter/repo"
	"bluecut/internal/events"
	"bluecut/internal/http/handlers"
	httpapi "bluecut/internal/http/httpapi"
	"bluecut/internal/infra"
	"bluecut/internal/jobs"
	"bluecut/internal/ratelimit"
	"bluecut/internal/storage"
	"bluecut/internal/worker"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply the database schema before serving")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	if *migrate {
		if err := infra.Migrate(ctx, runner); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply schema")
		}
		logger.Info().Msg("schema applied")
	}

	var limiterStore ratelimit.Store = ratelimit.NewMemoryStore(nil)
	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	if rdb != nil {
		defer rdb.Close()
		limiterStore = ratelimit.NewRedisStore(rdb)
		logger.Info().Msg("rate limits stored in redis")
	}

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}

	bus := events.NewBus(logger)
	w := worker.FromConfig(cfg, bus, logger)
	svc := jobs.NewService(repo.NewStore(runner), storage.NewGateway(files), w, bus, logger, jobs.Config{
		StandardCost:    cfg.JobCreditsCost,
		MonthlyIncluded: cfg.MonthlyIncludedJobs,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		MaxOutputBytes:  cfg.MaxOutputBytes,
		Location:        cfg.Location,
	})

	app := &handlers.App{
		Jobs:         svc,
		Events:       bus,
		Logger:       logger,
		WorkerSecret: cfg.WorkerSharedSecret,
		DB:           dbpool,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:  cfg.JWTSecret,
		AppURL:     cfg.AppURL,
		Production: cfg.IsProduction(),
		Limiter:    ratelimit.New(limiterStore),
		Logger:     logger,
	})
	server := infra.NewHTTPServer(cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Bool("mock_worker", cfg.MockWorker).Msg("API listening")
		return server.Run(gctx)
	})
	g.Go(func() error {
		if cfg.StuckJobTimeout <= 0 {
			return nil
		}
		logger.Info().Dur("timeout", cfg.StuckJobTimeout).Msg("stuck job sweep enabled")
		return svc.WatchStuck(gctx, cfg.StuckJobSweepInterval, cfg.StuckJobTimeout)
	})
	if rw, ok := w.(*worker.RemoteWorker); ok {
		g.Go(func() error {
			<-gctx.Done()
			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.WorkerDispatchTimeout)
			defer cancel()
			if err := rw.Close(closeCtx); err != nil {
				logger.Warn().Err(err).Msg("abandoned in-flight worker notifications")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
