package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/pipetapasco/microservices-delivery-hub/common/config"
	"github.com/pipetapasco/microservices-delivery-hub/common/logger"
	"github.com/pipetapasco/microservices-delivery-hub/common/tracing"
)

func main() {
	serviceName := config.GetEnv("SERVICE_NAME", "drivers")
	log := logger.NewLogger(serviceName)

	pgUser := config.MustGetEnv(log, "POSTGRES_USER")
	pgPass := config.MustGetEnv(log, "POSTGRES_PASSWORD")
	pgHost := config.GetEnv("POSTGRES_HOST", "localhost")
	pgPort := config.GetEnv("POSTGRES_PORT", "5432")
	pgDB := config.GetEnv("POSTGRES_DB", "drivers")

	cfg := Config{
		ServiceName:      serviceName,
		InstanceID:       config.GetEnv("INSTANCE_ID", "drivers-1"),
		HTTPAddr:         config.GetEnv("HTTP_ADDR", ":9002"),
		ConsulAddr:       config.GetEnv("CONSUL_ADDR", "localhost:8500"),
		AMQPUser:         config.GetEnv("AMQP_USER", "guest"),
		AMQPPass:         config.GetEnv("AMQP_PASS", "guest"),
		AMQPHost:         config.GetEnv("AMQP_HOST", "localhost"),
		AMQPPort:         config.GetEnv("AMQP_PORT", "5672"),
		PostgresDSN:      fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", pgUser, pgPass, pgHost, pgPort, pgDB),
		RedisAddr:        config.GetEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:        "",
		WatchdogInterval: 30 * time.Second,
		WatchdogGrace:    2 * time.Minute,
	}

	cfg.JWTSecret = config.MustGetEnv(log, "JWT_SECRET_KEY_DRIVERS")

	log.Info("starting service", slog.String("instance_id", cfg.InstanceID), slog.String("http_addr", cfg.HTTPAddr))

	shutdown, err := tracing.InitTracer(cfg.ServiceName)
	if err != nil {
		log.Error("failed to initialize tracer", slog.Any("error", err))
		os.Exit(1)
	}
	defer shutdown()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	if err := db.Ping(); err != nil {
		log.Error("failed to ping database", slog.Any("error", err))
		os.Exit(1)
	}

	app, err := NewApp(cfg, db)
	if err != nil {
		log.Error("failed to create app", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		log.Info("received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", slog.Any("error", err))
		}
	}()

	if err := app.Start(ctx); err != nil {
		log.Error("failed to start app", slog.Any("error", err))
		os.Exit(1)
	}
}
