package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"bluecut/internal/adapter/repo"
	"bluecut/internal/infra"
	"bluecut/internal/jobs"
	"bluecut/internal/ledger"
	"bluecut/internal/middleware"
	"bluecut/internal/storage"
	"bluecut/internal/worker"
)

func main() {
	var (
		idFlag       string
		emailFlag    string
		amountFlag   int
		sweepFlag    int
		tokenFlag    bool
		tokenTTLFlag time.Duration
	)

	flag.StringVar(&idFlag, "id", "", "user ID (UUID)")
	flag.StringVar(&emailFlag, "email", "", "user email")
	flag.IntVar(&amountFlag, "amount", 0, "credits to grant (negative values are rejected)")
	flag.IntVar(&sweepFlag, "sweep-minutes", 0, "fail and refund processing jobs idle for this many minutes, then exit")
	flag.BoolVar(&tokenFlag, "token", false, "print a bearer token for the user")
	flag.DurationVar(&tokenTTLFlag, "token-ttl", 24*time.Hour, "lifetime of the printed token")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "credits").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	store := repo.NewStore(infra.NewSQLRunner(pool, logger))

	if sweepFlag > 0 {
		files, err := storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			exitWithError(fmt.Errorf("failed to open storage: %w", err))
		}
		svc := jobs.NewService(store, storage.NewGateway(files), worker.Unconfigured{}, nil, logger, jobs.Config{
			StandardCost:    cfg.JobCreditsCost,
			MonthlyIncluded: cfg.MonthlyIncludedJobs,
			MaxUploadBytes:  cfg.MaxUploadBytes,
			MaxOutputBytes:  cfg.MaxOutputBytes,
			Location:        cfg.Location,
		})
		n, err := svc.FailStuck(ctx, time.Duration(sweepFlag)*time.Minute)
		if err != nil {
			exitWithError(fmt.Errorf("sweep: %w", err))
		}
		fmt.Printf("failed %d stuck job(s)\n", n)
		return
	}

	userID := strings.TrimSpace(idFlag)
	email := strings.TrimSpace(strings.ToLower(emailFlag))
	if userID == "" && email == "" {
		exitWithError(errors.New("either -id or -email must be provided"))
	}
	if userID == "" {
		userID, err = repo.NewUserRepository(infra.NewSQLRunner(pool, logger)).IDByEmail(ctx, email)
		if err != nil {
			exitWithError(fmt.Errorf("failed to find user %q: %w", email, err))
		}
	}

	switch {
	case amountFlag < 0:
		exitWithError(errors.New("-amount must not be negative"))
	case amountFlag > 0:
		balance, err := ledger.Grant(ctx, store, userID, amountFlag)
		if err != nil {
			exitWithError(fmt.Errorf("failed to grant credits: %w", err))
		}
		fmt.Printf("User %s granted %d credits, balance=%d\n", userID, amountFlag, balance)
	default:
		user, err := store.Users().GetByID(ctx, userID)
		if err != nil {
			exitWithError(fmt.Errorf("failed to load user: %w", err))
		}
		fmt.Printf("User %s balance=%d\n", user.ID, user.Credits)
	}

	if tokenFlag {
		token, err := middleware.SignJWT(cfg.JWTSecret, middleware.TokenClaims{
			Sub:   userID,
			Email: email,
			Exp:   time.Now().Add(tokenTTLFlag).Unix(),
		})
		if err != nil {
			exitWithError(fmt.Errorf("failed to sign token: %w", err))
		}
		fmt.Println(token)
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
