package orchestrator

import (
	"sync"
	"time"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// Stats is a snapshot of the monitor's counters
type Stats struct {
	StartedAt       time.Time              `json:"started_at"`
	Runtime         time.Duration          `json:"runtime"`
	Cycles          int                    `json:"cycles"`
	CycleErrors     int                    `json:"cycle_errors"`
	EmailsProcessed int                    `json:"emails_processed"`
	EmailErrors     int                    `json:"email_errors"`
	URLsFound       int                    `json:"urls_found"`
	URLsScanned     int                    `json:"urls_scanned"`
	ThreatsDetected int                    `json:"threats_detected"`
	Alerts          int                    `json:"alerts"`
	URLAlerts       int                    `json:"url_alerts"`
	ScanStates      map[core.ScanState]int `json:"scan_states"`
}

// counters accumulates Stats under a mutex
type counters struct {
	mu    sync.Mutex
	stats Stats
}

func newCounters(start time.Time) *counters {
	return &counters{stats: Stats{StartedAt: start, ScanStates: map[core.ScanState]int{}}}
}

func (c *counters) update(fn func(s *Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.stats)
}

func (c *counters) snapshot(now time.Time) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Runtime = now.Sub(s.StartedAt).Round(time.Second)
	s.ScanStates = make(map[core.ScanState]int, len(c.stats.ScanStates))
	for state, n := range c.stats.ScanStates {
		s.ScanStates[state] = n
	}
	return s
}
