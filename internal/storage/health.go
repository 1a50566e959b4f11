package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Health statuses
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// HealthData is the result of the most recent store health check
type HealthData struct {
	LastCheck time.Time `json:"last_check"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
}

// HealthMonitor checks a store periodically and keeps the latest result in memory
type HealthMonitor struct {
	mu      sync.RWMutex
	store   NightStore
	backend string
	health  HealthData
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewHealthMonitor creates a monitor for store, named by its backend
func NewHealthMonitor(store NightStore, backend string, logger *zap.SugaredLogger) *HealthMonitor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &HealthMonitor{
		store:   store,
		backend: backend,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// Check pings the store now and records the result
func (hm *HealthMonitor) Check(ctx context.Context) HealthData {
	health := HealthData{
		LastCheck: time.Now(),
		Status:    StatusHealthy,
		Message:   hm.backend + " connection active",
	}

	ctx, cancel := context.WithTimeout(ctx, hm.timeout)
	defer cancel()
	if err := hm.store.Ping(ctx); err != nil {
		health.Status = StatusUnhealthy
		health.Message = hm.backend + " ping failed"
		health.Error = err.Error()
	}

	hm.mu.Lock()
	hm.health = health
	hm.mu.Unlock()
	return health
}

// Start runs a check immediately and then every interval until ctx is cancelled
func (hm *HealthMonitor) Start(ctx context.Context, interval time.Duration) {
	go func() {
		update := func() {
			health := hm.Check(ctx)
			hm.logger.Debugf("updated %s health status: %s", hm.backend, health.Status)
		}

		update()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				update()
			case <-ctx.Done():
				hm.logger.Infof("stopping %s health monitor", hm.backend)
				return
			}
		}
	}()
}

// Health returns the latest result. It reports unhealthy until the first check.
func (hm *HealthMonitor) Health() HealthData {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	if hm.health.LastCheck.IsZero() {
		return HealthData{Status: StatusUnhealthy, Message: "no health check has run yet"}
	}
	return hm.health
}

// IsHealthy reports whether the latest check passed and is no older than maxAge
func (hm *HealthMonitor) IsHealthy(maxAge time.Duration) bool {
	health := hm.Health()
	if time.Since(health.LastCheck) > maxAge {
		return false
	}
	return health.Status == StatusHealthy
}
