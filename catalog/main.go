package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pipetapasco/microservices-delivery-hub/common/config"
)

func main() {
	bootLog := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	serviceName := config.GetEnv("SERVICE_NAME", "catalog")
	instanceID := fmt.Sprintf("%s-%d", serviceName, os.Getpid())

	pgUser := config.MustGetEnv(bootLog, "POSTGRES_USER")
	pgPass := config.MustGetEnv(bootLog, "POSTGRES_PASSWORD")
	pgHost := config.GetEnv("POSTGRES_HOST", "localhost")
	pgPort := config.GetEnv("POSTGRES_PORT", "5432")
	pgDB := config.GetEnv("POSTGRES_DB", "catalog")
	postgresDSN := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", pgUser, pgPass, pgHost, pgPort, pgDB)

	cfg := Config{
		ServiceName:  serviceName,
		InstanceID:   instanceID,
		HTTPAddr:     config.GetEnv("HTTP_ADDR", ":8083"),
		ConsulAddr:   config.GetEnv("CONSUL_ADDR", ""),
		PostgresDSN:  postgresDSN,
		RedisAddr:    config.GetEnv("REDIS_ADDR", "localhost:6379"),
		ItemCacheTTL: 5 * time.Minute,
	}

	app, err := NewApp(cfg)
	if err != nil {
		bootLog.Error("failed to build app", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			bootLog.Error("server exited with error", slog.Any("error", err))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		bootLog.Error("shutdown error", slog.Any("error", err))
		os.Exit(2)
	}
}
