package api

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/annel0/meadow-world/internal/eventbus"
	"github.com/annel0/meadow-world/internal/layers"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ServerInfo ответ /api/server: процесс, слои миров и шина событий
type ServerInfo struct {
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	ServerTime int64           `json:"server_time"`
	Process    ProcessStats    `json:"process"`
	Worlds     WorldStats      `json:"worlds"`
	Bus        *eventbus.Stats `json:"bus,omitempty"`
}

// ProcessStats ресурсы процесса хоста
type ProcessStats struct {
	Uptime        string  `json:"uptime"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	RSSMB         float64 `json:"rss_mb"`
	HeapMB        float64 `json:"heap_mb"`
	CPUPercent    float64 `json:"cpu_percent"`
	Goroutines    int     `json:"goroutines"`
	NumGC         uint32  `json:"num_gc"`
}

// WorldStats сводка по загруженным слоям
type WorldStats struct {
	Loaded            int         `json:"loaded"`
	ActiveLayer       int         `json:"active_layer"`
	ActiveWorld       string      `json:"active_world,omitempty"`
	Occupants         int         `json:"occupants"`
	OccupantsPerLayer map[int]int `json:"occupants_per_layer"`
	Players           int         `json:"players"`
	Objects           int         `json:"objects"`
	TerrainResolved   int         `json:"terrain_resolved"`
	TerrainBlocked    int         `json:"terrain_blocked"`
}

// ServerMetrics снимает ресурсы процесса через gopsutil
type ServerMetrics struct {
	started time.Time
	proc    *process.Process
}

// NewServerMetrics запоминает время старта консоли
func NewServerMetrics() *ServerMetrics {
	sm := &ServerMetrics{started: time.Now()}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		sm.proc = proc
	}
	return sm
}

// Process возвращает текущие ресурсы процесса. Недоступные метрики
// остаются нулевыми.
func (sm *ServerMetrics) Process() ProcessStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(sm.started)
	ps := ProcessStats{
		Uptime:        formatUptime(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
		HeapMB:        toMB(m.HeapAlloc),
		Goroutines:    runtime.NumGoroutine(),
		NumGC:         m.NumGC,
	}

	if sm.proc != nil {
		if mem, err := sm.proc.MemoryInfo(); err == nil {
			ps.RSSMB = toMB(mem.RSS)
		}
		if pct, err := sm.proc.CPUPercent(); err == nil {
			ps.CPUPercent = pct
			return ps
		}
	}
	// Процесс недоступен (контейнер без /proc): берём загрузку системы
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		ps.CPUPercent = pcts[0]
	}
	return ps
}

// summarizeWorlds сворачивает снимок менеджера в счётчики
func summarizeWorlds(s layers.Snapshot) WorldStats {
	ws := WorldStats{
		Loaded:            len(s.Worlds),
		ActiveLayer:       s.Active,
		Objects:           s.Objects,
		OccupantsPerLayer: make(map[int]int, len(s.Worlds)),
	}
	for _, w := range s.Worlds {
		if w.Layer == s.Active {
			ws.ActiveWorld = w.ID
		}
		ws.Occupants += w.Occupants
		ws.OccupantsPerLayer[w.Layer] = w.Occupants
		ws.Players += len(w.Players)
		ws.TerrainResolved += w.Terrain.Resolved
		ws.TerrainBlocked += w.Terrain.Blocked
	}
	return ws
}

func toMB(b uint64) float64 {
	return float64(b) / 1024 / 1024
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}
