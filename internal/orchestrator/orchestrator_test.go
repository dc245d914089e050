package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/mikey/url-threat-monitor/internal/alert"
	"github.com/mikey/url-threat-monitor/internal/core"
	"github.com/mikey/url-threat-monitor/internal/ports"
)

// scriptedProvider answers polls for each url from a fixed script
type scriptedProvider struct {
	mu          sync.Mutex
	submitErr   map[string]error
	polls       map[string][]pollStep
	submittedAt []time.Time
	onSubmit    func()
}

type pollStep struct {
	result *core.PollResult
	err    error
}

func (p *scriptedProvider) Submit(ctx context.Context, url string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submittedAt = append(p.submittedAt, time.Now())
	if p.onSubmit != nil {
		p.onSubmit()
	}
	if err := p.submitErr[url]; err != nil {
		return "", err
	}
	return "scan-" + url, nil
}

func (p *scriptedProvider) Poll(ctx context.Context, scanID string) (*core.PollResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	url := scanID[len("scan-"):]
	steps := p.polls[url]
	if len(steps) == 0 {
		return &core.PollResult{Status: core.PollPending}, nil
	}
	step := steps[0]
	if len(steps) > 1 {
		p.polls[url] = steps[1:]
	}
	return step.result, step.err
}

type recordingSink struct {
	mu        sync.Mutex
	alerts    []*core.Alert
	urlAlerts []*core.URLAlert
}

func (s *recordingSink) Dispatch(ctx context.Context, a *core.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
}

func (s *recordingSink) DispatchURLAlert(ctx context.Context, a *core.URLAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urlAlerts = append(s.urlAlerts, a)
}

type stubAnalyzer struct {
	assessment core.ContentAssessment
	panicFor   string
}

func (a *stubAnalyzer) Analyze(ctx context.Context, email core.EmailRecord, urls []string) core.ContentAssessment {
	if email.ID == a.panicFor {
		panic("analyzer exploded")
	}
	return a.assessment
}

type queueInbox struct {
	mu      sync.Mutex
	batches [][]core.EmailRecord
	err     error
	calls   int
	onCall  func(call int)
}

func (q *queueInbox) GetNewEmails(ctx context.Context, max int) ([]core.EmailRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if q.onCall != nil {
		q.onCall(q.calls)
	}
	if q.err != nil {
		return nil, q.err
	}
	if len(q.batches) == 0 {
		return nil, nil
	}
	batch := q.batches[0]
	q.batches = q.batches[1:]
	if len(batch) > max {
		batch = batch[:max]
	}
	return batch, nil
}

func (q *queueInbox) Close() error { return nil }

func done(doc *core.ScanDocument) pollStep {
	return pollStep{result: &core.PollResult{Status: core.PollDone, Document: doc}}
}

func pending() pollStep {
	return pollStep{result: &core.PollResult{Status: core.PollPending}}
}

func maliciousDoc() *core.ScanDocument {
	return &core.ScanDocument{
		Stats: &core.ScanStats{Malicious: true},
		Lists: &core.ScanLists{IPs: core.StringList{"203.0.113.7"}},
	}
}

func fastPolicy() Policy {
	return Policy{
		PollInterval:      time.Millisecond,
		MaxAttempts:       4,
		MaxWait:           time.Second,
		CycleInterval:     time.Millisecond,
		ErrorBackoff:      time.Millisecond,
		MaxEmailsPerCycle: 5,
	}
}

func newTestOrchestrator(t *testing.T, provider *scriptedProvider, inbox *queueInbox, analyzer ContentAnalyzer) (*Orchestrator, *recordingSink) {
	t.Helper()
	if provider.polls == nil {
		provider.polls = map[string][]pollStep{}
	}
	sink := &recordingSink{}
	var source ports.InboxSource
	if inbox != nil {
		source = inbox
	}
	o := New(zaptest.NewLogger(t), fastPolicy(), NewSeenSet(), source, provider, analyzer, alert.NewBuilder(nil), sink)
	return o, sink
}

func TestScanURL(t *testing.T) {
	const target = "https://example.com/login"

	tests := []struct {
		name         string
		submitErr    error
		steps        []pollStep
		wantState    core.ScanState
		wantAttempts int
		wantScore    int
	}{
		{
			name:         "completes after pending polls",
			steps:        []pollStep{pending(), pending(), done(maliciousDoc())},
			wantState:    core.ScanCompleted,
			wantAttempts: 3,
			wantScore:    60,
		},
		{
			name:         "transport errors count as attempts",
			steps:        []pollStep{{err: errors.New("connection reset")}, done(nil)},
			wantState:    core.ScanCompleted,
			wantAttempts: 2,
		},
		{
			name:         "empty poll result keeps polling",
			steps:        []pollStep{{}, done(maliciousDoc())},
			wantState:    core.ScanCompleted,
			wantAttempts: 2,
			wantScore:    60,
		},
		{
			name:      "submission refused",
			submitErr: fmt.Errorf("%w: status 429: Rate limit exceeded", core.ErrScanSubmission),
			wantState: core.ScanFailed,
		},
		{
			name:      "submission blocked",
			submitErr: fmt.Errorf("%w: Scan prevented", core.ErrScanBlocked),
			wantState: core.ScanBlocked,
		},
		{
			name:         "provider reports an error",
			steps:        []pollStep{{result: &core.PollResult{Status: core.PollError, Message: "status 500"}}},
			wantState:    core.ScanFailed,
			wantAttempts: 1,
		},
		{
			name:         "provider blocks while polling",
			steps:        []pollStep{pending(), {result: &core.PollResult{Status: core.PollBlocked, Message: "gone"}}},
			wantState:    core.ScanBlocked,
			wantAttempts: 2,
		},
		{
			name:         "times out after max attempts",
			steps:        []pollStep{pending()},
			wantState:    core.ScanTimedOut,
			wantAttempts: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &scriptedProvider{
				submitErr: map[string]error{target: tt.submitErr},
				polls:     map[string][]pollStep{target: tt.steps},
			}
			o, _ := newTestOrchestrator(t, provider, nil, nil)

			outcome := o.ScanURL(context.Background(), target)

			if outcome.State != tt.wantState {
				t.Fatalf("State = %s, want %s (error %q)", outcome.State, tt.wantState, outcome.Error)
			}
			if !outcome.State.Terminal() {
				t.Errorf("state %s is not terminal", outcome.State)
			}
			if outcome.Attempts != tt.wantAttempts {
				t.Errorf("Attempts = %d, want %d", outcome.Attempts, tt.wantAttempts)
			}
			if tt.wantState == core.ScanCompleted {
				if outcome.Assessment == nil {
					t.Fatal("completed scan has no assessment")
				}
				if outcome.Assessment.ThreatScore != tt.wantScore {
					t.Errorf("ThreatScore = %d, want %d", outcome.Assessment.ThreatScore, tt.wantScore)
				}
				if outcome.Assessment.ScanID != "scan-"+target {
					t.Errorf("ScanID = %q", outcome.Assessment.ScanID)
				}
			} else {
				if outcome.Assessment != nil {
					t.Errorf("non-completed scan carries an assessment")
				}
				if outcome.Error == "" {
					t.Errorf("non-completed scan has no error text")
				}
			}
		})
	}
}

func TestScanURLMaxWait(t *testing.T) {
	const target = "https://slow.example.com"
	provider := &scriptedProvider{polls: map[string][]pollStep{target: {pending()}}}
	o, _ := newTestOrchestrator(t, provider, nil, nil)
	o.policy.MaxAttempts = 1000
	o.policy.PollInterval = 5 * time.Millisecond
	o.policy.MaxWait = 20 * time.Millisecond

	outcome := o.ScanURL(context.Background(), target)

	if outcome.State != core.ScanTimedOut {
		t.Fatalf("State = %s, want %s", outcome.State, core.ScanTimedOut)
	}
	if outcome.Attempts >= 1000 {
		t.Errorf("wall-clock window did not bound polling, %d attempts", outcome.Attempts)
	}
}

func TestSubmitGateSpacing(t *testing.T) {
	provider := &scriptedProvider{polls: map[string][]pollStep{
		"https://a.example.com": {done(nil)},
		"https://b.example.com": {done(nil)},
	}}
	o, _ := newTestOrchestrator(t, provider, nil, nil)
	o.gate = newSubmitGate(30 * time.Millisecond)

	o.ScanURL(context.Background(), "https://a.example.com")
	o.ScanURL(context.Background(), "https://b.example.com")

	if len(provider.submittedAt) != 2 {
		t.Fatalf("got %d submissions, want 2", len(provider.submittedAt))
	}
	if gap := provider.submittedAt[1].Sub(provider.submittedAt[0]); gap < 30*time.Millisecond {
		t.Errorf("submissions %v apart, want at least 30ms", gap)
	}
}

func TestProcessEmailEmptyPollDoesNotAbortSiblings(t *testing.T) {
	email := core.EmailRecord{
		ID:   "msg-empty",
		Body: "See https://a-empty.example.com/x and https://z-bad.example.com/pay",
	}
	provider := &scriptedProvider{polls: map[string][]pollStep{
		"https://a-empty.example.com/x":  {{}},
		"https://z-bad.example.com/pay": {done(maliciousDoc())},
	}}
	o, sink := newTestOrchestrator(t, provider, nil, nil)

	report, err := o.ProcessEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("ProcessEmail() error = %v", err)
	}
	if len(report.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(report.Outcomes))
	}
	states := map[string]core.ScanState{}
	for _, outcome := range report.Outcomes {
		states[outcome.URL] = outcome.State
	}
	if states["https://a-empty.example.com/x"] != core.ScanTimedOut {
		t.Errorf("empty-status scan state = %s, want %s", states["https://a-empty.example.com/x"], core.ScanTimedOut)
	}
	if states["https://z-bad.example.com/pay"] != core.ScanCompleted {
		t.Errorf("sibling scan state = %s, want %s", states["https://z-bad.example.com/pay"], core.ScanCompleted)
	}
	if report.URLAlerts != 1 || len(sink.urlAlerts) != 1 {
		t.Errorf("url alerts = %d, want 1", report.URLAlerts)
	}
}

func TestSeenSetSharedAcrossOrchestrators(t *testing.T) {
	seen := NewSeenSet()
	provider := &scriptedProvider{polls: map[string][]pollStep{}}
	email := core.EmailRecord{ID: "msg-shared", Body: "no links here"}

	first := New(zaptest.NewLogger(t), fastPolicy(), seen, nil, provider, nil, alert.NewBuilder(nil), &recordingSink{})
	second := New(zaptest.NewLogger(t), fastPolicy(), seen, nil, provider, nil, alert.NewBuilder(nil), &recordingSink{})

	if report, err := first.ProcessEmail(context.Background(), email); err != nil || report.Skipped {
		t.Fatalf("first ProcessEmail() = %+v, %v", report, err)
	}
	report, err := second.ProcessEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("second ProcessEmail() error = %v", err)
	}
	if !report.Skipped {
		t.Error("email handled by one orchestrator was processed again by another sharing the seen set")
	}
	if second.Seen() != seen {
		t.Error("Seen() does not return the injected set")
	}
}

func TestProcessEmail(t *testing.T) {
	email := core.EmailRecord{
		ID:      "msg-1",
		Sender:  "billing@paypa1.com",
		Subject: "Invoice https://bad.example.com/pay",
		Body:    "Details at https://fine.example.org/docs and https://broken.example.net/x",
	}
	provider := &scriptedProvider{
		submitErr: map[string]error{"https://broken.example.net/x": fmt.Errorf("%w: boom", core.ErrScanSubmission)},
		polls: map[string][]pollStep{
			"https://bad.example.com/pay":   {pending(), done(maliciousDoc())},
			"https://fine.example.org/docs": {done(&core.ScanDocument{})},
		},
	}
	analyzer := &stubAnalyzer{assessment: core.ContentAssessment{SenderRisks: []string{"Suspicious look-alike sender domain"}, SenderRiskScore: 5, OverallScore: 5}}
	o, sink := newTestOrchestrator(t, provider, nil, analyzer)

	report, err := o.ProcessEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("ProcessEmail() error = %v", err)
	}

	if len(report.URLs) != 3 || len(report.Outcomes) != 3 {
		t.Fatalf("URLs = %v, outcomes = %d", report.URLs, len(report.Outcomes))
	}
	if len(report.Threats) != 1 || report.Threats[0].URL != "https://bad.example.com/pay" {
		t.Errorf("Threats = %+v", report.Threats)
	}
	if len(sink.urlAlerts) != 1 || report.URLAlerts != 1 {
		t.Errorf("url alerts = %d, want 1", len(sink.urlAlerts))
	}
	if report.Alert == nil || len(sink.alerts) != 1 {
		t.Fatalf("email alert not dispatched")
	}
	if len(report.Alert.Scans) != 2 {
		t.Errorf("alert carries %d scans, want the 2 completed ones", len(report.Alert.Scans))
	}
	if report.Alert.OverallRisk != core.RiskCritical {
		t.Errorf("OverallRisk = %s", report.Alert.OverallRisk)
	}

	stats := o.Stats()
	if stats.EmailsProcessed != 1 || stats.URLsFound != 3 || stats.URLsScanned != 3 || stats.ThreatsDetected != 1 || stats.Alerts != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ScanStates[core.ScanCompleted] != 2 || stats.ScanStates[core.ScanFailed] != 1 {
		t.Errorf("scan states = %v", stats.ScanStates)
	}

	again, err := o.ProcessEmail(context.Background(), email)
	if err != nil || !again.Skipped {
		t.Fatalf("second ProcessEmail() = %+v, %v, want skipped", again, err)
	}
	if len(sink.alerts) != 1 {
		t.Errorf("duplicate email raised another alert")
	}
}

func TestProcessEmailWithoutThreats(t *testing.T) {
	provider := &scriptedProvider{polls: map[string][]pollStep{"https://fine.example.org/docs": {done(&core.ScanDocument{})}}}
	o, sink := newTestOrchestrator(t, provider, nil, nil)

	report, err := o.ProcessEmail(context.Background(), core.EmailRecord{ID: "m", Body: "see https://fine.example.org/docs"})
	if err != nil {
		t.Fatalf("ProcessEmail() error = %v", err)
	}
	if report.Alert != nil || len(sink.alerts) != 0 || len(sink.urlAlerts) != 0 {
		t.Errorf("clean email raised an alert")
	}
}

func TestProcessEmailCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := &scriptedProvider{onSubmit: cancel}
	o, sink := newTestOrchestrator(t, provider, nil, nil)
	email := core.EmailRecord{ID: "m", Body: "https://slow.example.com/page"}

	_, err := o.ProcessEmail(ctx, email)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ProcessEmail() error = %v, want context.Canceled", err)
	}
	if o.Seen().Contains("m") {
		t.Errorf("cancelled email stays marked as seen")
	}
	if o.Stats().EmailsProcessed != 0 || len(sink.alerts) != 0 {
		t.Errorf("cancelled email was recorded")
	}
}

func TestRunCycleIsolatesFailures(t *testing.T) {
	inbox := &queueInbox{batches: [][]core.EmailRecord{{
		{ID: "boom", Body: "nothing"},
		{ID: "ok", Body: "nothing"},
	}}}
	o, _ := newTestOrchestrator(t, &scriptedProvider{}, inbox, &stubAnalyzer{panicFor: "boom"})

	if err := o.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	stats := o.Stats()
	if stats.EmailsProcessed != 1 || stats.EmailErrors != 1 || stats.Cycles != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRunCycleInboxError(t *testing.T) {
	inbox := &queueInbox{err: errors.New("session expired")}
	o, _ := newTestOrchestrator(t, &scriptedProvider{}, inbox, nil)

	if err := o.RunCycle(context.Background()); err == nil {
		t.Fatal("RunCycle() returned no error for a failing inbox")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inbox := &queueInbox{
		batches: [][]core.EmailRecord{{{ID: "1", Body: "hello"}}},
		onCall: func(call int) {
			if call == 3 {
				cancel()
			}
		},
	}
	o, _ := newTestOrchestrator(t, &scriptedProvider{}, inbox, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
	if o.Stats().EmailsProcessed != 1 {
		t.Errorf("EmailsProcessed = %d, want 1", o.Stats().EmailsProcessed)
	}
}

func TestRunBacksOffOnErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inbox := &queueInbox{
		err: errors.New("unreachable"),
		onCall: func(call int) {
			if call == 2 {
				cancel()
			}
		},
	}
	o, _ := newTestOrchestrator(t, &scriptedProvider{}, inbox, nil)

	if err := o.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := o.Stats().CycleErrors; got != 1 {
		t.Errorf("CycleErrors = %d, want 1", got)
	}
}
