package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/surfvision/camtuner/internal/logger"
)

// Status is an aggregate or per-check health state
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc probes one dependency, returning nil when healthy
type CheckFunc func(ctx context.Context) error

// Check is one probe's result
type Check struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	LatencyMS float64   `json:"latency_ms"`
	CheckedAt time.Time `json:"checked_at"`
}

// Report aggregates all checks
type Report struct {
	Status    Status    `json:"status"`
	Checks    []Check   `json:"checks"`
	Timestamp time.Time `json:"timestamp"`
}

// Registry holds named health checks
type Registry struct {
	log *logger.Logger

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewRegistry creates an empty health check registry
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		log:    log,
		checks: make(map[string]CheckFunc),
	}
}

// Register adds a named check
func (r *Registry) Register(name string, fn CheckFunc) {
	r.mu.Lock()
	r.checks[name] = fn
	r.mu.Unlock()
}

// Run executes every check. The report is unhealthy when more than half
// the checks fail, degraded when any fail.
func (r *Registry) Run(ctx context.Context) Report {
	r.mu.RLock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	fns := make([]CheckFunc, len(names))
	for i, name := range names {
		fns[i] = r.checks[name]
	}
	r.mu.RUnlock()

	report := Report{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}

	failed := 0
	for i, name := range names {
		start := time.Now()
		err := fns[i](ctx)
		check := Check{
			Name:      name,
			Status:    StatusHealthy,
			LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
			CheckedAt: time.Now(),
		}
		if err != nil {
			check.Status = StatusUnhealthy
			check.Error = err.Error()
			failed++
			r.log.Warn("Health check failed", "check", name, "error", err)
		}
		report.Checks = append(report.Checks, check)
	}

	switch {
	case failed == 0:
	case failed*2 > len(names):
		report.Status = StatusUnhealthy
	default:
		report.Status = StatusDegraded
	}
	return report
}
