package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pipetapasco/microservices-delivery-hub/common/config"
	"github.com/pipetapasco/microservices-delivery-hub/common/logger"
	"github.com/pipetapasco/microservices-delivery-hub/common/tracing"
)

func main() {
	cfg := Config{
		ServiceName:      config.GetEnv("SERVICE_NAME", "chatbot"),
		InstanceID:       config.GetEnv("INSTANCE_ID", "chatbot-1"),
		HTTPAddr:         config.GetEnv("HTTP_ADDR", ":8084"),
		ConsulAddr:       config.GetEnv("CONSUL_ADDR", "localhost:8500"),
		AMQPUser:         config.GetEnv("AMQP_USER", "guest"),
		AMQPPass:         config.GetEnv("AMQP_PASS", "guest"),
		AMQPHost:         config.GetEnv("AMQP_HOST", "localhost"),
		AMQPPort:         config.GetEnv("AMQP_PORT", "5672"),
		RedisAddr:        config.GetEnv("REDIS_ADDR", "localhost:6379"),
		MaxBodyBytes:     1 << 20,
		AudioStoragePath: config.GetEnv("AUDIO_STORAGE_PATH", "/tmp/chatbot-audio"),
		MaxAudioMB:       10,
	}

	log := logger.NewLogger(cfg.ServiceName)
	cfg.WebhookSecret = config.MustGetEnv(log, "WEBHOOK_SHARED_SECRET")

	log.Info("starting service", slog.String("instance_id", cfg.InstanceID), slog.String("http_addr", cfg.HTTPAddr))

	shutdown, err := tracing.InitTracer(cfg.ServiceName)
	if err != nil {
		log.Error("failed to initialize tracer", slog.Any("error", err))
		os.Exit(1)
	}
	defer shutdown()

	app, err := NewApp(cfg)
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
