package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/bitlifehost4tvegesdgames/flux-keyauth/internal/store"
)

// HealthService reports service liveness and store reachability.
type HealthService struct {
	version   string
	store     *store.Store
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus is the health check response body.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]string      `json:"services,omitempty"`
}

// NewHealthService creates a health service over the store.
func NewHealthService(version string, st *store.Store, logger *slog.Logger) *HealthService {
	return &HealthService{
		version:   version,
		store:     st,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// Check returns the current health status. A store fault degrades the
// overall status but still returns a full report.
func (h *HealthService) Check(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Runtime: map[string]interface{}{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
		},
		Services: map[string]string{},
	}

	if err := h.store.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "store health check failed", slog.String("error", err.Error()))
		status.Status = "degraded"
		status.Services["store"] = "unreachable"
	} else {
		status.Services["store"] = "ok"
	}

	return status
}
