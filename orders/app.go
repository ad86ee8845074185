package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pipetapasco/microservices-delivery-hub/common/broker"
	"github.com/pipetapasco/microservices-delivery-hub/common/logger"
	"github.com/pipetapasco/microservices-delivery-hub/discovery"
	"github.com/pipetapasco/microservices-delivery-hub/discovery/consul"
)

type App struct {
	registry      discovery.Registry
	httpServer    *http.Server
	registration  *ServiceRegistration
	channel       *amqp.Channel
	closeRabbitMQ func() error
	db            *sql.DB
	config        Config
	logger        *slog.Logger
}

type Config struct {
	ServiceName string
	InstanceID  string
	HTTPAddr    string
	ConsulAddr  string
	AMQPUser    string
	AMQPPass    string
	AMQPHost    string
	AMQPPort    string
	PostgresDSN string
}

func NewApp(config Config, db *sql.DB) (*App, error) {
	log := logger.NewLogger(config.ServiceName)

	registry, err := createRegistry(config.ConsulAddr, log)
	if err != nil {
		return nil, err
	}

	log.Info("connecting to rabbitmq", slog.String("host", config.AMQPHost), slog.String("port", config.AMQPPort))
	ch, closeFn, err := broker.Connect(config.AMQPUser, config.AMQPPass, config.AMQPHost, config.AMQPPort)
	if err != nil {
		log.Error("failed to connect to rabbitmq", slog.Any("error", err))
		return nil, err
	}
	log.Info("rabbitmq connected successfully")

	return &App{
		registry:      registry,
		channel:       ch,
		closeRabbitMQ: closeFn,
		db:            db,
		config:        config,
		logger:        log,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	registration, err := RegisterService(ctx, a.registry, a.config.InstanceID, a.config.ServiceName, a.config.HTTPAddr, a.logger)
	if err != nil {
		return err
	}
	a.registration = registration

	store := NewStore(a.db)
	svc := NewService(store, a.channel, a.logger)

	consumer := NewConsumer(svc, a.logger)
	go consumer.Listen(a.channel)

	createConsumer := NewOrderCreateConsumer(svc, a.logger)
	go createConsumer.Listen(a.channel)

	handler := newHTTPHandler(svc, a.logger)
	mux := http.NewServeMux()
	handler.registerRoutes(mux)

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

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("error closing database", slog.Any("error", err))
		}
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
