package core

import (
	"time"
)

// EmailRecord represents one message yielded by an inbox source
type EmailRecord struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	Timestamp string `json:"timestamp"`
	Body      string `json:"body"`
}

// ScanMetadata holds page details reported by the scan provider
type ScanMetadata struct {
	PageTitle string `json:"page_title" yaml:"page_title"`
	Server    string `json:"server" yaml:"server"`
	IP        string `json:"ip" yaml:"ip"`
	Country   string `json:"country" yaml:"country"`
}

// ScanAssessment is the normalized result of one completed URL scan
type ScanAssessment struct {
	URL         string       `json:"url" yaml:"url"`
	ScanID      string       `json:"scan_id" yaml:"scan_id"`
	ScanTime    string       `json:"scan_time,omitempty" yaml:"scan_time,omitempty"`
	ThreatScore int          `json:"threat_score" yaml:"threat_score"`
	Malicious   bool         `json:"malicious" yaml:"malicious"`
	Categories  []string     `json:"categories" yaml:"categories"`
	Indicators  []string     `json:"indicators" yaml:"indicators"`
	Summary     string       `json:"summary" yaml:"summary"`
	Metadata    ScanMetadata `json:"metadata" yaml:"metadata"`
}

// ContentThreat is a single finding from static email analysis
type ContentThreat struct {
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Score       int    `json:"score" yaml:"score"`
}

// ContentAssessment is the result of static analysis of the sender and message text
type ContentAssessment struct {
	SenderRisks     []string        `json:"sender_risks" yaml:"sender_risks"`
	SenderRiskScore int             `json:"sender_risk_score" yaml:"sender_risk_score"`
	Threats         []ContentThreat `json:"threats" yaml:"threats"`
	ContentScore    int             `json:"content_score" yaml:"content_score"`
	OverallScore    int             `json:"overall_score" yaml:"overall_score"`
}

// OverallRisk is the five-band classification of combined content and scan scores
type OverallRisk string

const (
	RiskSafe     OverallRisk = "SAFE"
	RiskLow      OverallRisk = "LOW"
	RiskMedium   OverallRisk = "MEDIUM"
	RiskHigh     OverallRisk = "HIGH"
	RiskCritical OverallRisk = "CRITICAL"
)

// AlertLevel is the keyword-driven urgency of an alert
type AlertLevel string

const (
	LevelLow      AlertLevel = "LOW"
	LevelMedium   AlertLevel = "MEDIUM"
	LevelHigh     AlertLevel = "HIGH"
	LevelCritical AlertLevel = "CRITICAL"
)

// EmailSummary is the part of an email kept inside an alert
type EmailSummary struct {
	ID          string `json:"id" yaml:"id"`
	Sender      string `json:"sender" yaml:"sender"`
	Subject     string `json:"subject" yaml:"subject"`
	Timestamp   string `json:"timestamp" yaml:"timestamp"`
	BodyPreview string `json:"body_preview" yaml:"body_preview"`
}

// Alert is an immutable record raised for an email carrying a threat signal
type Alert struct {
	AlertID     string            `json:"alert_id" yaml:"alert_id"`
	Timestamp   time.Time         `json:"timestamp" yaml:"timestamp"`
	Email       EmailSummary      `json:"email_data" yaml:"email_data"`
	Content     ContentAssessment `json:"email_analysis" yaml:"email_analysis"`
	Scans       []ScanAssessment  `json:"url_scans" yaml:"url_scans"`
	OverallRisk OverallRisk       `json:"overall_risk" yaml:"overall_risk"`
	AlertLevel  AlertLevel        `json:"alert_level" yaml:"alert_level"`
}

// URLAlert is raised for a single URL whose threat score crosses the URL threshold
type URLAlert struct {
	Timestamp time.Time      `json:"timestamp"`
	Email     EmailSummary   `json:"email_data"`
	Scan      ScanAssessment `json:"scan"`
}

// ScanState is a state of the per-URL scan state machine
type ScanState string

const (
	ScanSubmitted ScanState = "SUBMITTED"
	ScanPolling   ScanState = "POLLING"
	ScanCompleted ScanState = "COMPLETED"
	ScanFailed    ScanState = "FAILED"
	ScanTimedOut  ScanState = "TIMED_OUT"
	ScanBlocked   ScanState = "BLOCKED"
)

// Terminal reports whether no further transitions leave the state
func (s ScanState) Terminal() bool {
	switch s {
	case ScanCompleted, ScanFailed, ScanTimedOut, ScanBlocked:
		return true
	}
	return false
}

// ScanOutcome is the terminal result of scanning one URL
type ScanOutcome struct {
	URL        string
	ScanID     string
	State      ScanState
	Attempts   int
	Error      string
	Assessment *ScanAssessment
}

// PollStatus is the provider-reported state of a submitted scan
type PollStatus string

const (
	PollPending PollStatus = "pending"
	PollDone    PollStatus = "done"
	PollError   PollStatus = "error"
	PollBlocked PollStatus = "blocked"
)

// PollResult is the answer to a single poll of a submitted scan
type PollResult struct {
	Status   PollStatus
	Document *ScanDocument
	Message  string
}
