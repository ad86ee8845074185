package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pipetapasco/microservices-delivery-hub/common/broker"
	"github.com/pipetapasco/microservices-delivery-hub/common/logger"
	"github.com/pipetapasco/microservices-delivery-hub/common/metrics"
	"github.com/pipetapasco/microservices-delivery-hub/common/session"
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
	RedisAddr        string
	WebhookSecret    string
	MaxBodyBytes     int64
	AudioStoragePath string
	MaxAudioMB       int64
}

type App struct {
	config        Config
	logger        *slog.Logger
	registry      discovery.Registry
	registration  *ServiceRegistration
	channel       *amqp.Channel
	closeRabbitMQ func() error
	sessions      *session.Store
	httpServer    *http.Server
}

func NewApp(config Config) (*App, error) {
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

	sessions, err := session.NewStore(config.RedisAddr, log)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &App{
		config:        config,
		logger:        log,
		registry:      registry,
		channel:       ch,
		closeRabbitMQ: closeFn,
		sessions:      sessions,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	registration, err := RegisterService(ctx, a.registry, a.config.InstanceID, a.config.ServiceName, a.config.HTTPAddr, a.logger)
	if err != nil {
		return err
	}
	a.registration = registration

	sessionMetrics := metrics.NewSessionMetrics(a.config.ServiceName)

	audio := newAudioDownloader(a.config.AudioStoragePath, a.config.MaxAudioMB)
	transcriber := newTranscriptionPool(noopTranscriber{})
	sender := noopChatSender{}
	extractor := noopExtractor{}

	inbound := newInboundConsumer(a.sessions, extractor, audio, transcriber, sender, a.channel, sessionMetrics, a.logger)
	go inbound.Listen(a.channel)

	outbound := newOutboundConsumer(sender, a.logger)
	go outbound.Listen(a.channel)

	handler := newWebhookHandler(a.config.WebhookSecret, a.config.MaxBodyBytes, a.sessions, a.channel, sessionMetrics, a.logger)
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
	if a.sessions != nil {
		a.sessions.Close()
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
