package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pipetapasco/microservices-delivery-hub/common/broker"
	"github.com/pipetapasco/microservices-delivery-hub/common/logger"
	"github.com/pipetapasco/microservices-delivery-hub/common/metrics"
	"github.com/pipetapasco/microservices-delivery-hub/discovery"
	"github.com/pipetapasco/microservices-delivery-hub/discovery/consul"
)

type Config struct {
	ServiceName      string
	InstanceID       string
	HTTPAddr         string
	ConsulAddr       string
	AMQPUser         string
	AMQPPass         string
	AMQPHost         string
	AMQPPort         string
	PostgresDSN      string
	RedisAddr        string
	JWTSecret        string
	WatchdogInterval time.Duration
	WatchdogGrace    time.Duration
}

type App struct {
	config        Config
	logger        *slog.Logger
	registry      discovery.Registry
	registration  *ServiceRegistration
	channel       *amqp.Channel
	closeRabbitMQ func() error
	db            *sql.DB
	locations     *locationStore
	httpServer    *http.Server
}

func NewApp(config Config, db *sql.DB) (*App, error) {
	log := logger.NewLogger(config.ServiceName)

	registry, err := createRegistry(config.ConsulAddr, log)
	if err != nil {
		return nil, err
	}

	log.Info("connecting to rabbitmq", slog.String("host", config.AMQPHost))
	ch, closeFn, err := broker.Connect(config.AMQPUser, config.AMQPPass, config.AMQPHost, config.AMQPPort)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	locations, err := newLocationStore(config.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &App{
		config:        config,
		logger:        log,
		registry:      registry,
		channel:       ch,
		closeRabbitMQ: closeFn,
		db:            db,
		locations:     locations,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	registration, err := RegisterService(ctx, a.registry, a.config.InstanceID, a.config.ServiceName, a.config.HTTPAddr, a.logger)
	if err != nil {
		return err
	}
	a.registration = registration

	store := NewStore(a.db)
	dispatchMetrics := metrics.NewDispatchMetrics(a.config.ServiceName)
	connRegistry := newConnectionRegistry(a.logger)
	acceptance := NewAcceptanceService(store, a.channel, dispatchMetrics, a.logger)

	consumer := NewConsumer(store, connRegistry, dispatchMetrics, a.logger)
	go consumer.Listen(a.channel)

	wd := newWatchdog(store, a.config.WatchdogInterval, a.config.WatchdogGrace, dispatchMetrics, a.logger)
	go wd.Run(ctx)

	wsHandler := newLocationHandler([]byte(a.config.JWTSecret), connRegistry, a.locations, a.logger)
	handler := newHTTPHandler(store, acceptance, []byte(a.config.JWTSecret), a.logger)

	mux := http.NewServeMux()
	handler.registerRoutes(mux, wsHandler)

	a.httpServer = &http.Server{Addr: a.config.HTTPAddr, Handler: mux}
	a.logger.Info("starting http server", slog.String("addr", a.config.HTTPAddr))
	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down gracefully")

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Error("error shutting down http server", slog.Any("error", err))
		}
	}
	if a.closeRabbitMQ != nil {
		if err := a.closeRabbitMQ(); err != nil {
			a.logger.Error("error closing rabbitmq", slog.Any("error", err))
		}
	}
	if a.locations != nil {
		a.locations.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.registration != nil {
		return a.registration.Deregister(ctx)
	}
	return nil
}

func createRegistry(addr string, log *slog.Logger) (discovery.Registry, error) {
	if addr == "" {
		log.Info("consul address not provided, service discovery disabled")
		return nil, nil
	}
	registry, err := consul.NewRegistry(addr)
	if err != nil {
		return nil, fmt.Errorf("consul registry: %w", err)
	}
	return registry, nil
}
