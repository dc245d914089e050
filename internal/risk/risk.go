// Package risk aggregates content and scan assessments into risk classifications.
//
// Overall risk and alert level are computed independently from overlapping
// inputs and are reported side by side; a disagreement between the two is
// expected and kept as is.
package risk

import (
	"strings"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// URLAlertThreshold is the scan score above which a URL-level alert is raised
const URLAlertThreshold = 50

// Overall-risk band lower bounds, inclusive
const (
	CriticalThreshold = 25
	HighThreshold     = 15
	MediumThreshold   = 8
	LowThreshold      = 3
)

var (
	criticalKeywords = []string{"CRITICAL", "MALWARE", "PHISHING"}
	highKeywords     = []string{"HIGH", "SUSPICIOUS"}
)

// TotalScore is the content overall score plus every scan threat score
func TotalScore(content core.ContentAssessment, scans []core.ScanAssessment) int {
	total := content.OverallScore
	for _, scan := range scans {
		total += scan.ThreatScore
	}
	return total
}

// Overall classifies the combined score into a risk band
func Overall(content core.ContentAssessment, scans []core.ScanAssessment) core.OverallRisk {
	return Band(TotalScore(content, scans))
}

// Band maps a total score to its risk band, highest band first
func Band(total int) core.OverallRisk {
	switch {
	case total >= CriticalThreshold:
		return core.RiskCritical
	case total >= HighThreshold:
		return core.RiskHigh
	case total >= MediumThreshold:
		return core.RiskMedium
	case total >= LowThreshold:
		return core.RiskLow
	default:
		return core.RiskSafe
	}
}

// Descriptions flattens sender risks, content threat descriptions and scan
// indicators, in that order
func Descriptions(content core.ContentAssessment, scans []core.ScanAssessment) []string {
	descriptions := make([]string, 0, len(content.SenderRisks)+len(content.Threats))
	descriptions = append(descriptions, content.SenderRisks...)
	for _, threat := range content.Threats {
		descriptions = append(descriptions, threat.Description)
	}
	for _, scan := range scans {
		descriptions = append(descriptions, scan.Indicators...)
	}
	return descriptions
}

// Level derives the alert level from threat description keywords
func Level(content core.ContentAssessment, scans []core.ScanAssessment) core.AlertLevel {
	return LevelFor(Descriptions(content, scans))
}

// LevelFor applies the keyword rules to a list of descriptions
func LevelFor(descriptions []string) core.AlertLevel {
	if containsAny(descriptions, criticalKeywords) {
		return core.LevelCritical
	}
	if containsAny(descriptions, highKeywords) {
		return core.LevelHigh
	}
	if len(descriptions) > 0 {
		return core.LevelMedium
	}
	return core.LevelLow
}

// ExceedsURLThreshold reports whether a scan warrants its own URL-level alert
func ExceedsURLThreshold(scan core.ScanAssessment) bool {
	return scan.ThreatScore > URLAlertThreshold
}

// HasThreatSignal reports whether an email carries anything worth an alert
func HasThreatSignal(content core.ContentAssessment, scans []core.ScanAssessment) bool {
	if len(content.SenderRisks) > 0 || len(content.Threats) > 0 || content.OverallScore > 0 {
		return true
	}
	for _, scan := range scans {
		if scan.ThreatScore > 0 || len(scan.Indicators) > 0 || scan.Malicious {
			return true
		}
	}
	return false
}

func containsAny(descriptions []string, keywords []string) bool {
	for _, description := range descriptions {
		upper := strings.ToUpper(description)
		for _, keyword := range keywords {
			if strings.Contains(upper, keyword) {
				return true
			}
		}
	}
	return false
}
