package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"inboxd/pkg/utils"
)

var startedAt = time.Now()

type systemInfo struct {
	UptimeSeconds  int64   `json:"uptime_seconds"`
	HostUptime     uint64  `json:"host_uptime_seconds"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemUsedPercent float64 `json:"mem_used_percent"`
	MemUsedMB      uint64  `json:"mem_used_mb"`
	Goroutines     int     `json:"goroutines"`
	QueueDepth     int     `json:"ingest_queue_depth"`
}

// handleSystem reports host and process health for the operator
// dashboard.
func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	info := systemInfo{
		UptimeSeconds: int64(time.Since(startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
	}
	if up, err := host.Uptime(); err == nil {
		info.HostUptime = up
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		info.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.MemUsedPercent = vm.UsedPercent
		info.MemUsedMB = vm.Used / 1024 / 1024
	}
	if s.queue != nil {
		info.QueueDepth = s.queue.Len()
	}
	utils.JSONSuccess(w, http.StatusOK, info, "")
}
