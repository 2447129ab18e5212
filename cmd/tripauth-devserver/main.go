// Command tripauth-devserver runs the local development backend: OTP request and
// verification, token issuance, a placeholder itinerary planner, /health and /metrics.
//
// Codes are written to the log. Without -redis-url (or REDIS_URL) an in-process
// miniredis is used.
//
// Run:
//
//	go run ./cmd/tripauth-devserver -addr :8000
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/travelplanner/tripauth"
	"github.com/travelplanner/tripauth/internal/devserver"
	"go.uber.org/zap"
)

const devSecret = "tripauth-devserver-insecure-secret"

func main() {
	_ = godotenv.Load()

	var (
		addr        = flag.String("addr", getEnv("TRIPAUTH_DEVSERVER_ADDR", ":8000"), "listen address")
		redisURL    = flag.String("redis-url", os.Getenv("REDIS_URL"), "redis URL; if empty, miniredis is used")
		secret      = flag.String("secret", os.Getenv("JWT_SECRET_KEY"), "HS256 signing secret")
		open        = flag.Bool("open", false, "serve /api/generate-itinerary without a bearer token")
		logLevel    = flag.String("log-level", getEnv("TRIPAUTH_LOG_LEVEL", "info"), "log level")
		development = flag.Bool("dev-log", true, "human-readable logs")
		shutdown    = flag.Duration("shutdown-timeout", 10*time.Second, "graceful shutdown period")
	)
	flag.Parse()

	logger, err := tripauth.NewLogger(*logLevel, *development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	rdb, cleanup, err := openRedis(*redisURL, logger)
	if err != nil {
		logger.Error("connect redis", zap.Error(err))
		os.Exit(1)
	}
	defer cleanup()

	cfg := devserver.DefaultConfig()
	cfg.RequireAuth = !*open
	if *secret == "" {
		logger.Warn("JWT_SECRET_KEY not set, using an insecure development secret")
		*secret = devSecret
	}
	cfg.JWTSecret = []byte(*secret)

	server, err := devserver.New(cfg, rdb, devserver.WithLogger(logger))
	if err != nil {
		logger.Error("build server", zap.Error(err))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srvErrCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		srvErrCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-srvErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), *shutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server exited cleanly")
}

func openRedis(rawURL string, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	if rawURL == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		logger.Info("using miniredis", zap.String("addr", mr.Addr()))
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("using redis", zap.String("addr", opts.Addr))
	return client, func() { _ = client.Close() }, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
