package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/pipetapasco/microservices-delivery-hub/discovery"
)

// ServiceRegistration wraps a Consul registration with a background
// TTL refresh loop, so the caller only deals with Register/Deregister.
type ServiceRegistration struct {
	registry    discovery.Registry
	instanceID  string
	serviceName string
	logger      *slog.Logger
	stopChan    chan struct{}
}

func RegisterService(ctx context.Context, registry discovery.Registry, instanceID, serviceName, addr string, logger *slog.Logger) (*ServiceRegistration, error) {
	if registry == nil {
		return nil, nil
	}

	if err := registry.Register(ctx, instanceID, serviceName, addr); err != nil {
		return nil, err
	}

	sr := &ServiceRegistration{
		registry:    registry,
		instanceID:  instanceID,
		serviceName: serviceName,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}
	go sr.startHealthCheck()
	return sr, nil
}

func (sr *ServiceRegistration) startHealthCheck() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sr.stopChan:
			return
		case <-ticker.C:
			if err := sr.registry.HealthCheck(sr.instanceID, sr.serviceName); err != nil {
				sr.logger.Error("health check failed", slog.Any("error", err))
			}
		}
	}
}

func (sr *ServiceRegistration) Deregister(ctx context.Context) error {
	close(sr.stopChan)
	return sr.registry.Deregister(ctx, sr.instanceID, sr.serviceName)
}
