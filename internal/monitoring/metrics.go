package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const checkTimeout = 5 * time.Second

type Metrics struct {
	RequestCount    int64            `json:"request_count"`
	RequestDuration time.Duration    `json:"-"`
	AvgDurationMs   float64          `json:"avg_request_duration_ms"`
	ActiveRequests  int64            `json:"active_requests"`
	ErrorCount      int64            `json:"error_count"`
	StatusCodes     map[string]int64 `json:"status_codes"`
	Endpoints       map[string]int64 `json:"endpoint_calls"`
	StartTime       time.Time        `json:"start_time"`
	LastRequest     time.Time        `json:"last_request"`
}

type HealthCheck struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
	LastRun  time.Time     `json:"last_run"`
}

type HealthCheckFunc func(ctx context.Context) error

// StatsFunc contributes a named section to the /metrics response, such as
// cache hit rates or queue depths.
type StatsFunc func(ctx context.Context) interface{}

// Monitor collects request metrics and runs registered health checks. Checks
// are executed on every health or readiness request.
type Monitor struct {
	mu            sync.RWMutex
	metrics       Metrics
	totalDuration time.Duration

	checksMu sync.RWMutex
	checks   map[string]HealthCheckFunc
	stats    map[string]StatsFunc

	now func() time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{
		metrics: Metrics{
			StatusCodes: make(map[string]int64),
			Endpoints:   make(map[string]int64),
			StartTime:   time.Now(),
		},
		checks: make(map[string]HealthCheckFunc),
		stats:  make(map[string]StatsFunc),
		now:    time.Now,
	}
}

func (m *Monitor) RegisterHealthCheck(name string, check HealthCheckFunc) {
	m.checksMu.Lock()
	defer m.checksMu.Unlock()
	m.checks[name] = check
}

func (m *Monitor) RegisterStats(name string, stats StatsFunc) {
	m.checksMu.Lock()
	defer m.checksMu.Unlock()
	m.stats[name] = stats
}

// Middleware records every request, including ones that panic further down
// the chain; those are counted as 500s and the panic is re-raised.
func (m *Monitor) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := m.now()

		m.mu.Lock()
		m.metrics.ActiveRequests++
		m.mu.Unlock()

		defer func() {
			r := recover()
			statusCode := c.Writer.Status()
			if r != nil {
				statusCode = http.StatusInternalServerError
			}
			m.record(c.Request.Method+" "+c.FullPath(), statusCode, m.now().Sub(start))
			if r != nil {
				panic(r)
			}
		}()

		c.Next()
	}
}

func (m *Monitor) record(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.RequestCount++
	m.metrics.ActiveRequests--
	m.totalDuration += duration
	m.metrics.RequestDuration = m.totalDuration / time.Duration(m.metrics.RequestCount)
	m.metrics.AvgDurationMs = float64(m.metrics.RequestDuration) / float64(time.Millisecond)
	m.metrics.LastRequest = m.now()

	if statusCode >= 400 {
		m.metrics.ErrorCount++
	}
	m.metrics.StatusCodes[strconv.Itoa(statusCode)]++
	m.metrics.Endpoints[endpoint]++
}

// Snapshot returns a copy of the request metrics.
func (m *Monitor) Snapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := m.metrics
	snapshot.StatusCodes = make(map[string]int64, len(m.metrics.StatusCodes))
	snapshot.Endpoints = make(map[string]int64, len(m.metrics.Endpoints))
	for k, v := range m.metrics.StatusCodes {
		snapshot.StatusCodes[k] = v
	}
	for k, v := range m.metrics.Endpoints {
		snapshot.Endpoints[k] = v
	}
	return snapshot
}

type SystemMetrics struct {
	Uptime         time.Duration `json:"uptime"`
	MemoryUsage    MemoryStats   `json:"memory"`
	GoroutineCount int           `json:"goroutine_count"`
	CPUCount       int           `json:"cpu_count"`
	GoVersion      string        `json:"go_version"`
}

type MemoryStats struct {
	Alloc        uint64 `json:"alloc_mb"`
	TotalAlloc   uint64 `json:"total_alloc_mb"`
	Sys          uint64 `json:"sys_mb"`
	NumGC        uint32 `json:"num_gc"`
	NextGC       uint64 `json:"next_gc_mb"`
	GCPauseTotal string `json:"gc_pause_total"`
}

func (m *Monitor) SystemMetrics() SystemMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return SystemMetrics{
		Uptime: m.now().Sub(m.metrics.StartTime),
		MemoryUsage: MemoryStats{
			Alloc:        bToMb(mem.Alloc),
			TotalAlloc:   bToMb(mem.TotalAlloc),
			Sys:          bToMb(mem.Sys),
			NumGC:        mem.NumGC,
			NextGC:       bToMb(mem.NextGC),
			GCPauseTotal: time.Duration(mem.PauseTotalNs).String(),
		},
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
		GoVersion:      runtime.Version(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// RunHealthChecks executes every registered check concurrently, each with
// its own timeout.
func (m *Monitor) RunHealthChecks(ctx context.Context) map[string]HealthCheck {
	m.checksMu.RLock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]HealthCheckFunc, len(names))
	for i, name := range names {
		checks[i] = m.checks[name]
	}
	m.checksMu.RUnlock()

	results := make([]HealthCheck, len(names))
	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := m.now()
			result := HealthCheck{Name: names[i], Status: "healthy", LastRun: start}
			if err := checks[i](checkCtx); err != nil {
				result.Status = "unhealthy"
				result.Message = err.Error()
			}
			result.Duration = m.now().Sub(start)
			results[i] = result
		}(i)
	}
	wg.Wait()

	out := make(map[string]HealthCheck, len(results))
	for _, result := range results {
		out[result.Name] = result
	}
	return out
}

func healthy(checks map[string]HealthCheck) bool {
	for _, check := range checks {
		if check.Status != "healthy" {
			return false
		}
	}
	return true
}

func (m *Monitor) MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := gin.H{
			"application": m.Snapshot(),
			"system":      m.SystemMetrics(),
			"timestamp":   m.now(),
		}

		m.checksMu.RLock()
		for name, stats := range m.stats {
			response[name] = stats(c.Request.Context())
		}
		m.checksMu.RUnlock()

		c.JSON(http.StatusOK, response)
	}
}

func (m *Monitor) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := m.RunHealthChecks(c.Request.Context())

		overallStatus := "healthy"
		status := http.StatusOK
		if !healthy(checks) {
			overallStatus = "unhealthy"
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":    overallStatus,
			"timestamp": m.now(),
			"checks":    checks,
			"uptime":    m.now().Sub(m.metrics.StartTime).String(),
		})
	}
}

func (m *Monitor) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if healthy(m.RunHealthChecks(c.Request.Context())) {
			c.JSON(http.StatusOK, gin.H{
				"status":    "ready",
				"timestamp": m.now(),
			})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not ready",
			"timestamp": m.now(),
		})
	}
}

func (m *Monitor) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": m.now(),
			"uptime":    m.now().Sub(m.metrics.StartTime).String(),
		})
	}
}

func (m *Monitor) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", m.HealthHandler())
	r.GET("/ready", m.ReadinessHandler())
	r.GET("/live", m.LivenessHandler())
	r.GET("/metrics", m.MetricsHandler())
}
