package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pipetapasco/microservices-delivery-hub/common/logger"
	"github.com/pipetapasco/microservices-delivery-hub/discovery"
	"github.com/pipetapasco/microservices-delivery-hub/discovery/consul"
)

type Config struct {
	ServiceName  string
	InstanceID   string
	HTTPAddr     string
	ConsulAddr   string
	PostgresDSN  string
	RedisAddr    string
	ItemCacheTTL time.Duration
}

type App struct {
	config       Config
	log          *slog.Logger
	registry     discovery.Registry
	store        *postgresStore
	cache        *itemCache
	httpServer   *http.Server
	instanceID   string
}

func NewApp(cfg Config) (*App, error) {
	log := logger.NewLogger(cfg.ServiceName)

	var registry discovery.Registry
	if cfg.ConsulAddr != "" {
		r, err := consul.NewRegistry(cfg.ConsulAddr)
		if err != nil {
			return nil, fmt.Errorf("consul registry: %w", err)
		}
		registry = r
	}

	store, err := newPostgresStore(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	cache, err := newItemCache(cfg.RedisAddr, store, cfg.ItemCacheTTL)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &App{config: cfg, log: log, registry: registry, store: store, cache: cache}, nil
}

func (a *App) Start(ctx context.Context) error {
	if a.registry != nil {
		if err := a.registry.Register(ctx, a.config.InstanceID, a.config.ServiceName, a.config.HTTPAddr); err != nil {
			return fmt.Errorf("register: %w", err)
		}
		a.instanceID = a.config.InstanceID
		go a.healthCheckLoop(ctx)
	}

	handler := newHTTPHandler(a.store, a.cache, a.log)
	mux := http.NewServeMux()
	handler.registerRoutes(mux)

	a.httpServer = &http.Server{Addr: a.config.HTTPAddr, Handler: mux}
	a.log.Info("starting http server", slog.String("addr", a.config.HTTPAddr))
	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) healthCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.registry.HealthCheck(a.instanceID, a.config.ServiceName); err != nil {
				a.log.Error("health check failed", slog.Any("error", err))
			}
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down")

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.log.Error("http server shutdown error", slog.Any("error", err))
		}
	}

	a.cache.Close()
	a.store.Close()

	if a.registry != nil && a.instanceID != "" {
		return a.registry.Deregister(ctx, a.instanceID, a.config.ServiceName)
	}
	return nil
}
