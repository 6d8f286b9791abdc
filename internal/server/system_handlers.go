package server

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/screener/internal/database"
)

// HealthChecker reports the liveness of a named dependency.
type HealthChecker interface {
	Health(ctx context.Context) bool
}

// SystemHandlers serves the liveness and host-status endpoints.
type SystemHandlers struct {
	dbs       []*database.DB
	cache     HealthChecker
	dataDir   string
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandlers creates the system handler set.
func NewSystemHandlers(dbs []*database.DB, cache HealthChecker, dataDir string, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		dbs:       dbs,
		cache:     cache,
		dataDir:   dataDir,
		startTime: time.Now().UTC(),
		log:       log.With().Str("component", "system_handlers").Logger(),
	}
}

// RegisterRoutes mounts the system routes.
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Get("/monitor/system", h.HandleSystemStatus)
}

// HandleHealth handles GET /health. Dependency failures are reported but do
// not flip the overall status; the process itself is alive.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.dbs)+1)
	for _, db := range h.dbs {
		status := "ok"
		if err := db.HealthCheck(ctx); err != nil {
			status = err.Error()
		}
		deps[db.Name()] = status
	}
	if h.cache != nil {
		status := "ok"
		if !h.cache.Health(ctx) {
			status = "unreachable"
		}
		deps["cache"] = status
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"dependencies":   deps,
	})
}

// HandleSystemStatus handles GET /monitor/system with host resource usage
// and database pool stats.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"goroutines": runtime.NumGoroutine(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		status["cpu_percent"] = percents[0]
	} else if err != nil {
		h.log.Warn().Err(err).Msg("CPU usage unavailable")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		status["memory"] = map[string]interface{}{
			"total_mb":     vm.Total / 1024 / 1024,
			"used_mb":      vm.Used / 1024 / 1024,
			"used_percent": vm.UsedPercent,
		}
	} else {
		h.log.Warn().Err(err).Msg("Memory usage unavailable")
	}

	if du, err := disk.Usage(h.dataDir); err == nil {
		status["disk"] = map[string]interface{}{
			"path":         h.dataDir,
			"total_gb":     float64(du.Total) / 1024 / 1024 / 1024,
			"free_gb":      float64(du.Free) / 1024 / 1024 / 1024,
			"used_percent": du.UsedPercent,
		}
	} else {
		h.log.Warn().Err(err).Msg("Disk usage unavailable")
	}

	databases := make([]map[string]interface{}, 0, len(h.dbs))
	for _, db := range h.dbs {
		stats := db.Conn().Stats()
		databases = append(databases, map[string]interface{}{
			"name":             db.Name(),
			"path":             db.Path(),
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
		})
	}
	status["databases"] = databases

	writeJSON(w, http.StatusOK, status)
}
