package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"jsonbench-api/pkg/response"
)

// StatsSource provides storage statistics.
type StatsSource interface {
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// AdminHandler handles admin endpoints.
type AdminHandler struct {
	stats      StatsSource
	storeType  string
	ingestMode string
	startTime  time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(stats StatsSource, storeType, ingestMode string) *AdminHandler {
	return &AdminHandler{
		stats:      stats,
		storeType:  storeType,
		ingestMode: ingestMode,
		startTime:  time.Now(),
	}
}

// GetStats handles GET /admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["store_type"] = h.storeType
	stats["ingest_mode"] = h.ingestMode

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
		"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
		"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
		"heap_alloc_mb":  float64(memStats.HeapAlloc) / 1024 / 1024,
		"heap_inuse_mb":  float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":         memStats.NumGC,
		"goroutines":     runtime.NumGoroutine(),
	}

	// Store stats
	if h.stats != nil {
		storeStats, err := h.stats.Stats(ctx)
		if err == nil {
			storeStats["status"] = "connected"
			stats["store"] = storeStats
		} else {
			stats["store"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["store"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	// Runtime info
	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
