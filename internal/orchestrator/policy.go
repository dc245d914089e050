package orchestrator

import "time"

// Policy holds the timing and batching limits of the monitoring loop
type Policy struct {
	// PollInterval is the wait between result polls of one scan
	PollInterval time.Duration
	// MaxAttempts bounds the number of polls per scan
	MaxAttempts int
	// MaxWait bounds the wall-clock time spent polling one scan
	MaxWait time.Duration
	// SubmitDelay is the minimum spacing between two submissions
	SubmitDelay time.Duration
	// CycleInterval is the sleep between inbox cycles
	CycleInterval time.Duration
	// ErrorBackoff is the sleep after a failed cycle
	ErrorBackoff time.Duration
	// MaxEmailsPerCycle bounds how many emails one cycle fetches
	MaxEmailsPerCycle int
}

// DefaultPolicy returns the standard limits
func DefaultPolicy() Policy {
	return Policy{
		PollInterval:      5 * time.Second,
		MaxAttempts:       12,
		MaxWait:           60 * time.Second,
		SubmitDelay:       time.Second,
		CycleInterval:     30 * time.Second,
		ErrorBackoff:      10 * time.Second,
		MaxEmailsPerCycle: 5,
	}
}

// withDefaults fills zero fields from DefaultPolicy
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.PollInterval <= 0 {
		p.PollInterval = d.PollInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.MaxWait <= 0 {
		p.MaxWait = d.MaxWait
	}
	if p.SubmitDelay < 0 {
		p.SubmitDelay = 0
	}
	if p.CycleInterval <= 0 {
		p.CycleInterval = d.CycleInterval
	}
	if p.ErrorBackoff <= 0 {
		p.ErrorBackoff = d.ErrorBackoff
	}
	if p.MaxEmailsPerCycle <= 0 {
		p.MaxEmailsPerCycle = d.MaxEmailsPerCycle
	}
	return p
}
