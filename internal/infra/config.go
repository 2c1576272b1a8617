package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	DBMaxConns  int
	JWTSecret   string
	AppURL      string
	Location    *time.Location
	StoragePath string
	RedisURL    string

	WorkerURL              string
	WorkerSharedSecret     string
	MockWorker             bool
	WorkerDispatchAttempts int
	WorkerDispatchTimeout  time.Duration
	WorkerDispatchRPS      float64

	JobCreditsCost      int
	MonthlyIncludedJobs int
	MaxUploadBytes      int64
	MaxOutputBytes      int64

	StuckJobTimeout       time.Duration
	StuckJobSweepInterval time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        port,
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 20),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		AppURL:      strings.TrimRight(getEnv("APP_URL", "http://localhost:"+port), "/"),
		StoragePath: getEnv("STORAGE_PATH", "./storage"),
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),

		WorkerURL:              strings.TrimRight(strings.TrimSpace(os.Getenv("WORKER_URL")), "/"),
		WorkerSharedSecret:     os.Getenv("WORKER_SHARED_SECRET"),
		WorkerDispatchAttempts: getEnvInt("WORKER_DISPATCH_ATTEMPTS", 3),
		WorkerDispatchTimeout:  time.Second * time.Duration(getEnvInt("WORKER_DISPATCH_TIMEOUT_SECONDS", 10)),
		WorkerDispatchRPS:      float64(getEnvInt("WORKER_DISPATCH_RPS", 20)),

		JobCreditsCost:      getEnvInt("JOB_CREDITS_COST", 50),
		MonthlyIncludedJobs: getEnvInt("MONTHLY_INCLUDED_JOBS", 100),
		MaxUploadBytes:      int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,
		MaxOutputBytes:      int64(getEnvInt("MAX_OUTPUT_MB", 15)) << 20,

		StuckJobTimeout:       time.Minute * time.Duration(getEnvInt("STUCK_JOB_TIMEOUT_MINUTES", 0)),
		StuckJobSweepInterval: time.Second * time.Duration(getEnvInt("STUCK_JOB_SWEEP_SECONDS", 60)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}
	cfg.MockWorker = MockWorkerEnabled(cfg.AppEnv, cfg.WorkerURL, os.Getenv("MOCK_WORKER"))

	loc, err := time.LoadLocation(getEnv("APP_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.JobCreditsCost < 0 || cfg.MonthlyIncludedJobs < 0 {
		return nil, fmt.Errorf("JOB_CREDITS_COST and MONTHLY_INCLUDED_JOBS must not be negative")
	}
	if cfg.MaxUploadBytes <= 0 || cfg.MaxOutputBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB and MAX_OUTPUT_MB must be positive")
	}

	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MockWorkerEnabled applies the MOCK_WORKER rules: "false" always disables,
// "true" always enables, otherwise a missing worker URL outside production
// enables the in-process pass-through.
func MockWorkerEnabled(appEnv, workerURL, flag string) bool {
	flag = strings.ToLower(strings.TrimSpace(flag))
	if flag == "false" {
		return false
	}
	return flag == "true" || (workerURL == "" && appEnv != "production")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}
