package alert

import (
	"sync"
	"time"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// NoAlertsMessage is reported by Summary for an empty history
const NoAlertsMessage = "No alerts recorded"

// Summary aggregates the alert history
type Summary struct {
	TotalAlerts int            `json:"total_alerts" yaml:"total_alerts"`
	AlertLevels map[string]int `json:"alert_levels" yaml:"alert_levels"`
	RiskLevels  map[string]int `json:"risk_levels" yaml:"risk_levels"`
	LatestAlert *time.Time     `json:"latest_alert,omitempty" yaml:"latest_alert,omitempty"`
	Message     string         `json:"message,omitempty" yaml:"message,omitempty"`
}

// History is the append-only in-memory list of alerts raised by this process
type History struct {
	mu     sync.RWMutex
	alerts []*core.Alert
}

// NewHistory creates an empty history
func NewHistory() *History {
	return &History{}
}

// Append records an alert
func (h *History) Append(alert *core.Alert) {
	if alert == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alerts = append(h.alerts, alert)
}

// Snapshot returns a copy of the recorded alerts in insertion order
func (h *History) Snapshot() []*core.Alert {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*core.Alert(nil), h.alerts...)
}

// Len returns the number of recorded alerts
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.alerts)
}

// Latest returns up to n of the most recent alerts, newest first
func (h *History) Latest(n int) []*core.Alert {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.alerts) {
		n = len(h.alerts)
	}
	latest := make([]*core.Alert, 0, n)
	for i := len(h.alerts) - 1; i >= 0 && len(latest) < n; i-- {
		latest = append(latest, h.alerts[i])
	}
	return latest
}

// Clear drops every recorded alert
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alerts = nil
}

// Summary counts alerts by level and by overall risk
func (h *History) Summary() Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	summary := Summary{
		TotalAlerts: len(h.alerts),
		AlertLevels: map[string]int{},
		RiskLevels:  map[string]int{},
	}
	if len(h.alerts) == 0 {
		summary.Message = NoAlertsMessage
		return summary
	}

	for _, alert := range h.alerts {
		summary.AlertLevels[string(alert.AlertLevel)]++
		summary.RiskLevels[string(alert.OverallRisk)]++
	}
	latest := h.alerts[len(h.alerts)-1].Timestamp
	summary.LatestAlert = &latest

	return summary
}
