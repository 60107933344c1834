package monitoring

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthCheck struct {
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	LastRun time.Time `json:"last_run"`
}

type HealthCheckFunc func(ctx context.Context) error

// StatsFunc reports counters for a component; the readiness payload includes them.
type StatsFunc func() map[string]interface{}

// HealthChecker runs named dependency probes on demand.
type HealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheckFunc
	stats     map[string]StatsFunc
	timeout   time.Duration
	startTime time.Time
}

func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		checks:    make(map[string]HealthCheckFunc),
		stats:     make(map[string]StatsFunc),
		timeout:   timeout,
		startTime: time.Now(),
	}
}

func (h *HealthChecker) Register(name string, check HealthCheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

func (h *HealthChecker) RegisterStats(name string, fn StatsFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats[name] = fn
}

// Stats collects every registered component's counters.
func (h *HealthChecker) Stats() map[string]map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]map[string]interface{}, len(h.stats))
	for name, fn := range h.stats {
		out[name] = fn()
	}
	return out
}

// Run executes every probe concurrently, each bounded by the checker timeout.
func (h *HealthChecker) Run(ctx context.Context) []HealthCheck {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheckFunc, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.RUnlock()

	sort.Strings(names)
	results := make([]HealthCheck, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			result := HealthCheck{Name: name, Status: "healthy", LastRun: time.Now().UTC()}
			if err := checks[name](checkCtx); err != nil {
				result.Status = "unhealthy"
				result.Message = err.Error()
			}
			results[i] = result
		}(i, name)
	}
	wg.Wait()

	return results
}

// LivenessHandler answers without touching any dependency.
func (h *HealthChecker) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(h.startTime).Round(time.Second).String(),
		})
	}
}

func (h *HealthChecker) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := h.Run(c.Request.Context())

		status := "ready"
		code := http.StatusOK
		for _, check := range checks {
			if check.Status != "healthy" {
				status = "not ready"
				code = http.StatusServiceUnavailable
				break
			}
		}

		body := gin.H{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"checks":    checks,
		}
		if stats := h.Stats(); len(stats) > 0 {
			body["stats"] = stats
		}
		c.JSON(code, body)
	}
}
