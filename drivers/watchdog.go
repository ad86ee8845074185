package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/pipetapasco/microservices-delivery-hub/common/domain"
	"github.com/pipetapasco/microservices-delivery-hub/common/metrics"
)

// watchdog resolves spec §9's "losing-driver stuck state" open
// question: a driver whose app crashes or loses connectivity mid-service
// never gets the chance to release its own en_servicio state. A
// periodic sweep releases any driver that has been en_servicio past a
// grace period back to disponible, so the platform doesn't silently
// lose driver capacity forever. No original_source/ analogue — the
// Python services never ran a background sweep for this; the decision
// to add one is recorded in DESIGN.md.
type watchdog struct {
	store    DriversStore
	interval time.Duration
	grace    time.Duration
	metrics  *metrics.DispatchMetrics
	logger   *slog.Logger
}

func newWatchdog(store DriversStore, interval, grace time.Duration, m *metrics.DispatchMetrics, logger *slog.Logger) *watchdog {
	return &watchdog{store: store, interval: interval, grace: grace, metrics: m, logger: logger}
}

func (w *watchdog) Run(ctx context.Context) {
	w.logger.Info("watchdog started", slog.Duration("interval", w.interval), slog.Duration("grace", w.grace))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *watchdog) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.grace)

	stale, err := w.store.ListStaleInService(ctx, cutoff)
	if err != nil {
		w.logger.Error("watchdog sweep failed to list stale drivers", slog.Any("error", err))
		return
	}

	for _, driver := range stale {
		released, err := w.store.SetAvailability(ctx, driver.DriverID, domain.AvailabilityOnService, domain.AvailabilityAvailable, "")
		if err != nil {
			w.logger.Error("watchdog failed to release driver", slog.String("driver_id", driver.DriverID), slog.Any("error", err))
			continue
		}
		if released {
			w.metrics.WatchdogReleases.Inc()
			w.logger.Warn("watchdog released stuck driver",
				slog.String("driver_id", driver.DriverID),
				slog.String("assigned_order_id", driver.AssignedOrderID),
			)
		}
	}
}
