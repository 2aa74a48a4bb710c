package daemon

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/process"
)

// HealthStatus reports kerneld's own process health on /healthz. Nothing in
// the module clears debug caches based on it.
type HealthStatus struct {
	Status       string  `json:"status"`
	UptimeSecond float64 `json:"uptime_seconds"`
	MemoryRSS    uint64  `json:"memory_rss_bytes"`
	NumFDs       int32   `json:"num_fds"`
	CheckedAt    time.Time `json:"checked_at"`
}

// HealthMonitor samples the current process's memory/FD usage via
// gopsutil and serves it over a chi-routed HTTP handler.
type HealthMonitor struct {
	startedAt time.Time
	proc      *process.Process
}

// NewHealthMonitor builds a monitor over the current OS process.
func NewHealthMonitor() (*HealthMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &HealthMonitor{startedAt: time.Now(), proc: proc}, nil
}

// Sample reads the current process's resource usage.
func (m *HealthMonitor) Sample() HealthStatus {
	status := HealthStatus{
		Status:       "healthy",
		UptimeSecond: time.Since(m.startedAt).Seconds(),
		CheckedAt:    time.Now(),
	}
	if mem, err := m.proc.MemoryInfo(); err == nil && mem != nil {
		status.MemoryRSS = mem.RSS
	}
	if fds, err := m.proc.NumFDs(); err == nil {
		status.NumFDs = fds
	}
	return status
}

// Router returns a chi router exposing GET /healthz.
func (m *HealthMonitor) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Sample())
	})
	return r
}
