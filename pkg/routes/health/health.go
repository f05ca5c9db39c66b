package health

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/crmforge/dedupe/pkg/metrics"
	"github.com/crmforge/dedupe/pkg/models"
	"github.com/crmforge/dedupe/pkg/store"
)

// Checker handles health check and metrics endpoints
type Checker struct {
	store     store.Store
	monitor   *metrics.Monitor
	version   string
	startTime time.Time
	ready     atomic.Bool
}

// NewChecker creates a new health checker
func NewChecker(st store.Store, monitor *metrics.Monitor, version string) *Checker {
	return &Checker{
		store:     st,
		monitor:   monitor,
		version:   version,
		startTime: time.Now(),
	}
}

// SetReady sets the readiness state
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// RegisterRoutes registers health and metrics endpoints
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", c.Health)
	e.GET("/api/v1/health/live", c.Live)
	e.GET("/api/v1/health/ready", c.Ready)
	e.GET("/api/v1/metrics", c.Metrics)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	Monitor    any                     `json:"monitor,omitempty"`
	ReportedAt time.Time               `json:"reported_at"`
}

// CheckResult represents an individual check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health returns the overall health status
func (c *Checker) Health(ctx echo.Context) error {
	response := &HealthResponse{
		Status:     "healthy",
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     make(map[string]*CheckResult),
		ReportedAt: time.Now(),
	}

	reqCtx := ctx.Request().Context()

	start := time.Now()
	if err := c.store.Ping(reqCtx); err != nil {
		response.Status = "unhealthy"
		response.Checks["store"] = &CheckResult{
			Status:  "unhealthy",
			Message: err.Error(),
		}
	} else {
		response.Checks["store"] = &CheckResult{
			Status:  "healthy",
			Latency: time.Since(start).String(),
		}
	}

	if c.monitor != nil {
		verdict := c.monitor.Health(reqCtx)
		response.Monitor = verdict
		response.Checks["metrics"] = &CheckResult{Status: string(verdict.Status)}
		if verdict.Status != models.HealthHealthy && response.Status == "healthy" {
			response.Status = string(verdict.Status)
		}
	}

	httpStatus := http.StatusOK
	if response.Status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	return ctx.JSON(httpStatus, response)
}

// Live returns the liveness status (is the service running)
func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready returns the readiness status (is the service ready to accept traffic)
func (c *Checker) Ready(ctx echo.Context) error {
	if c.ready.Load() {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
	return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}

// Metrics returns the latest duplicate metrics snapshot
func (c *Checker) Metrics(ctx echo.Context) error {
	snapshot, err := c.monitor.Latest(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, snapshot)
}
