package health

import (
	"context"
	"time"

	"github.com/Ayash-Bera/shopassist/backend/internal/database"
	"github.com/Ayash-Bera/shopassist/backend/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Status values, matching the system_health check constraint.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const checkTimeout = 5 * time.Second

// Check probes one dependency. A failing non-critical check degrades the
// service instead of marking it unhealthy.
type Check struct {
	Name     string
	Critical bool
	Ping     func(ctx context.Context) error
}

// Pinger is anything with a liveness probe, such as the LLM client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker manages health checks for all services
type HealthChecker struct {
	checks     []Check
	cache      *database.Cache
	healthRepo models.SystemHealthRepository
	logger     *logrus.Logger
	startTime  time.Time
}

// ServiceHealth represents the health status of a service
type ServiceHealth struct {
	Name         string `json:"name"`
	Status       string `json:"status"`
	ResponseTime int    `json:"response_time_ms"`
	Error        string `json:"error,omitempty"`
	LastChecked  string `json:"last_checked"`
}

// OverallHealth represents the overall system health
type OverallHealth struct {
	Status   string            `json:"status"`
	Services []ServiceHealth   `json:"services"`
	Uptime   string            `json:"uptime"`
	Cache    map[string]string `json:"cache,omitempty"`
}

// NewHealthChecker checks Postgres, Redis when enabled, and the chat model
// endpoint. healthRepo may be nil.
func NewHealthChecker(dbManager *database.Manager, healthRepo models.SystemHealthRepository, llm Pinger, logger *logrus.Logger) *HealthChecker {
	checks := []Check{
		{Name: "postgresql", Critical: true, Ping: dbManager.PingDatabase},
	}
	if dbManager.Redis != nil {
		checks = append(checks, Check{Name: "redis", Ping: dbManager.PingRedis})
	}
	if llm != nil {
		checks = append(checks, Check{Name: "llm", Ping: llm.Ping})
	}
	return NewChecker(checks, database.NewCache(dbManager.Redis, logger), healthRepo, logger)
}

func NewChecker(checks []Check, cache *database.Cache, healthRepo models.SystemHealthRepository, logger *logrus.Logger) *HealthChecker {
	return &HealthChecker{
		checks:     checks,
		cache:      cache,
		healthRepo: healthRepo,
		logger:     logger,
		startTime:  time.Now(),
	}
}

func (h *HealthChecker) run(ctx context.Context, check Check) ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := check.Ping(ctx)
	responseTime := int(time.Since(start).Milliseconds())

	status := StatusHealthy
	errorMsg := ""
	if err != nil {
		status = StatusDegraded
		if check.Critical {
			status = StatusUnhealthy
		}
		errorMsg = err.Error()
		h.logger.WithError(err).WithField("service", check.Name).Error("Health check failed")
	}

	return ServiceHealth{
		Name:         check.Name,
		Status:       status,
		ResponseTime: responseTime,
		Error:        errorMsg,
		LastChecked:  time.Now().Format(time.RFC3339),
	}
}

// CheckAll performs health checks on all services concurrently.
func (h *HealthChecker) CheckAll(ctx context.Context) OverallHealth {
	services := make([]ServiceHealth, len(h.checks))

	var g errgroup.Group
	for i, check := range h.checks {
		i, check := i, check
		g.Go(func() error {
			services[i] = h.run(ctx, check)
			return nil
		})
	}
	_ = g.Wait()

	report := OverallHealth{
		Status:   overallStatus(services),
		Services: services,
		Uptime:   h.getUptime(),
	}
	if h.cache.Enabled() {
		if stats, err := h.cache.GetCacheStats(ctx); err == nil {
			report.Cache = stats
		}
	}
	return report
}

func overallStatus(services []ServiceHealth) string {
	status := StatusHealthy
	for _, service := range services {
		if service.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if service.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}

// CheckCached returns cached health status if available
func (h *HealthChecker) CheckCached(ctx context.Context) (*OverallHealth, error) {
	cachedHealth, err := h.cache.GetCachedSystemHealth(ctx)
	if err != nil {
		return nil, err
	}

	services := make([]ServiceHealth, len(cachedHealth))
	for i, health := range cachedHealth {
		services[i] = ServiceHealth{
			Name:         health.ServiceName,
			Status:       health.Status,
			ResponseTime: health.ResponseTimeMs,
			Error:        health.ErrorMessage,
			LastChecked:  health.CheckedAt.Format(time.RFC3339),
		}
	}

	return &OverallHealth{
		Status:   overallStatus(services),
		Services: services,
		Uptime:   h.getUptime(),
	}, nil
}

func (h *HealthChecker) getUptime() string {
	return time.Since(h.startTime).Round(time.Second).String()
}

// Record stores a snapshot in system_health and the Redis cache.
func (h *HealthChecker) Record(ctx context.Context, health OverallHealth, ttl time.Duration) {
	snapshot := make([]models.SystemHealth, len(health.Services))
	for i, service := range health.Services {
		checkedAt, _ := time.Parse(time.RFC3339, service.LastChecked)
		snapshot[i] = models.SystemHealth{
			ServiceName:    service.Name,
			Status:         service.Status,
			ResponseTimeMs: service.ResponseTime,
			ErrorMessage:   service.Error,
			CheckedAt:      checkedAt,
		}

		if h.healthRepo != nil {
			if err := h.healthRepo.UpdateServiceHealth(ctx, service.Name, service.Status, service.ResponseTime, service.Error); err != nil {
				h.logger.WithError(err).WithField("service", service.Name).Warn("Failed to record health status")
			}
		}
	}

	if err := h.cache.CacheSystemHealth(ctx, snapshot, ttl); err != nil {
		h.logger.WithError(err).Error("Failed to cache health status")
	}
}

// PeriodicHealthCheck runs health checks until ctx is done.
func (h *HealthChecker) PeriodicHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tick := func() {
		health := h.CheckAll(ctx)
		recordCtx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		h.Record(recordCtx, health, 2*interval)
		cancel()
		h.logger.WithField("status", health.Status).Debug("Periodic health check completed")
	}

	tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}
