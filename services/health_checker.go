package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/krshsl/staffline/integrations"
	"github.com/krshsl/staffline/models"
	"github.com/krshsl/staffline/repository"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultHealthInterval = 5 * time.Minute
	healthCheckTimeout    = 20 * time.Second
	healthCheckWorkers    = 4
)

// HealthChecker periodically tests every active or errored integration and
// records the outcome.
type HealthChecker struct {
	repo     *repository.GORMRepository
	registry *integrations.Registry
	interval time.Duration
}

func NewHealthChecker(repo *repository.GORMRepository, registry *integrations.Registry, interval time.Duration) *HealthChecker {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	return &HealthChecker{repo: repo, registry: registry, interval: interval}
}

// Run sweeps until ctx is cancelled.
func (h *HealthChecker) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	slog.Info("Integration health checker started", "interval", h.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Integration health checker stopped")
			return
		case <-ticker.C:
			h.sweep(ctx)
		}
	}
}

func (h *HealthChecker) sweep(ctx context.Context) {
	due, err := h.repo.IntegrationsDueForCheck(ctx)
	if err != nil {
		slog.Error("Failed to load integrations for health check", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(healthCheckWorkers)
	for i := range due {
		in := &due[i]
		g.Go(func() error {
			if _, err := h.Check(gctx, in); err != nil {
				slog.Error("Failed to record health check", "error", err, "integration_id", in.ID)
			}
			return nil
		})
	}
	_ = g.Wait()
	slog.Debug("Integration health sweep finished", "checked", len(due))
}

// Check tests one integration's connection and stores the result.
func (h *HealthChecker) Check(ctx context.Context, in *models.Integration) (*models.Integration, error) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	res := h.Probe(ctx, in)
	result := "healthy"
	if !res.Healthy {
		result = "unhealthy"
		slog.Warn("Integration health check failed", "integration_id", in.ID, "provider", in.Provider, "message", res.Message)
	}
	healthChecks.WithLabelValues(in.Provider, result).Inc()
	return h.repo.RecordHealthCheck(ctx, in, res)
}

// Probe tests in's connection without recording anything. in need not be
// saved.
func (h *HealthChecker) Probe(ctx context.Context, in *models.Integration) repository.HealthResult {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	p, err := h.registry.Build(ctx, in)
	if err != nil {
		return repository.HealthResult{Healthy: false, Duration: time.Since(start), Message: err.Error()}
	}
	if err := p.TestConnection(ctx); err != nil {
		return repository.HealthResult{Healthy: false, Duration: time.Since(start), Message: err.Error()}
	}
	return repository.HealthResult{Healthy: true, Duration: time.Since(start)}
}
