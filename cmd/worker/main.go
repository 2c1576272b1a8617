package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"bluecut/internal/infra"
)

// Reference worker: answers POST /start, fetches the input, and calls back
// with the same bytes as output. It exercises the wire protocol end to end
// without a segmentation model.
func main() {
	_ = godotenv.Load()

	appEnv := envOr("APP_ENV", "development")
	logger := infra.NewLogger(appEnv).With().Str("cmd", "worker").Logger()

	secret := os.Getenv("WORKER_SHARED_SECRET")
	if secret == "" {
		logger.Warn().Msg("worker: WORKER_SHARED_SECRET is empty; every /start will be rejected")
	}
	concurrency, err := strconv.Atoi(envOr("WORKER_CONCURRENCY", "4"))
	if err != nil || concurrency <= 0 {
		concurrency = 4
	}
	maxInput := int64(10) << 20
	if mb, err := strconv.Atoi(os.Getenv("MAX_UPLOAD_MB")); err == nil && mb > 0 {
		maxInput = int64(mb) << 20
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newPassthrough(passthroughConfig{
		Secret:      secret,
		Concurrency: concurrency,
		MaxInput:    maxInput,
		HTTPClient:  &http.Client{Timeout: 60 * time.Second},
	}, logger)

	srv := &http.Server{
		Addr:              ":" + envOr("WORKER_PORT", "8090"),
		Handler:           p.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.run(gctx) })
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Int("concurrency", concurrency).Msg("worker: listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
