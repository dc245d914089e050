// Package content performs static analysis of an email's sender and text.
package content

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/mail"
	"net/url"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/unicode/norm"

	"github.com/mikey/url-threat-monitor/internal/core"
	"github.com/mikey/url-threat-monitor/internal/ports"
	"github.com/mikey/url-threat-monitor/internal/whitelist"
)

// Threat types
const (
	ThreatUrgency           = "urgency"
	ThreatCredentialRequest = "credential_request"
	ThreatFinancialLure     = "financial_lure"
	ThreatLinkMismatch      = "link_mismatch"
	ThreatIPHost            = "ip_host"
	ThreatShortener         = "url_shortener"
	ThreatModel             = "model"
)

// keywordRule scores the message once when any phrase matches
type keywordRule struct {
	threatType  string
	description string
	score       int
	phrases     []string
}

var keywordRules = []keywordRule{
	{
		threatType:  ThreatUrgency,
		description: "Urgent or threatening language",
		score:       2,
		phrases: []string{
			"urgent", "immediately", "within 24 hours", "account suspended", "account will be closed",
			"act now", "final notice", "unusual activity",
		},
	},
	{
		threatType:  ThreatCredentialRequest,
		description: "Suspicious request for credentials or account verification",
		score:       4,
		phrases: []string{
			"verify your account", "confirm your password", "login credentials", "update your payment",
			"reset your password", "confirm your identity", "social security number", "enter your pin",
		},
	},
	{
		threatType:  ThreatFinancialLure,
		description: "Financial lure (prize, gift card or wire transfer)",
		score:       3,
		phrases: []string{
			"gift card", "wire transfer", "you have won", "lottery", "inheritance", "claim your prize",
			"bitcoin", "crypto wallet",
		},
	},
}

var shortenerDomains = map[string]bool{
	"bit.ly": true, "tinyurl.com": true, "t.co": true, "goo.gl": true, "ow.ly": true,
	"is.gd": true, "buff.ly": true, "rebrand.ly": true, "cutt.ly": true,
}

var freeMailDomains = map[string]bool{
	"gmail.com": true, "yahoo.com": true, "outlook.com": true, "hotmail.com": true,
	"aol.com": true, "mail.ru": true, "gmx.com": true, "proton.me": true, "protonmail.com": true,
}

var officialWords = []string{"support", "security", "billing", "account", "service", "admin", "helpdesk"}

var highRiskTLDs = []string{".zip", ".mov", ".top", ".xyz", ".click", ".country", ".gq", ".tk", ".work"}

// Analyzer produces a ContentAssessment for an email
type Analyzer struct {
	logger              *zap.Logger
	trusted             *whitelist.Checker
	protectedDomains    []string
	classifier          ports.ContentClassifier
	classifierThreshold float64
}

// NewAnalyzer creates a content analyzer. classifier may be nil.
func NewAnalyzer(
	logger *zap.Logger,
	trusted *whitelist.Checker,
	protectedDomains []string,
	classifier ports.ContentClassifier,
	classifierThreshold float64,
) *Analyzer {
	if trusted == nil {
		trusted = whitelist.NewChecker(nil, nil)
	}
	normalized := make([]string, 0, len(protectedDomains))
	for _, d := range protectedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			normalized = append(normalized, d)
		}
	}
	return &Analyzer{
		logger:              logger,
		trusted:             trusted,
		protectedDomains:    normalized,
		classifier:          classifier,
		classifierThreshold: classifierThreshold,
	}
}

// Analyze inspects the sender, the text and the extracted urls
func (a *Analyzer) Analyze(ctx context.Context, email core.EmailRecord, urls []string) core.ContentAssessment {
	assessment := core.ContentAssessment{
		SenderRisks: []string{},
		Threats:     []core.ContentThreat{},
	}

	senderDomain := whitelist.SenderDomain(email.Sender)
	if !a.trusted.IsWhitelisted(email.Sender) {
		risks, score := a.analyzeSender(email.Sender, senderDomain)
		assessment.SenderRisks = risks
		assessment.SenderRiskScore = score
	}

	text := strings.ToLower(norm.NFKC.String(email.Subject + "\n" + email.Body))
	for _, rule := range keywordRules {
		if phrase, ok := firstMatch(text, rule.phrases); ok {
			assessment.Threats = append(assessment.Threats, core.ContentThreat{
				Type:        rule.threatType,
				Description: fmt.Sprintf("%s (%q)", rule.description, phrase),
				Score:       rule.score,
			})
		}
	}
	linkThreats, mismatch := a.analyzeLinks(senderDomain, urls)
	assessment.Threats = append(assessment.Threats, linkThreats...)

	if threat := a.classify(ctx, email); threat != nil {
		assessment.Threats = append(assessment.Threats, *threat)
	}

	// off-domain links are normal for newsletters and only count next to another signal
	if mismatch != nil && (len(assessment.SenderRisks) > 0 || len(assessment.Threats) > 0) {
		assessment.Threats = append(assessment.Threats, *mismatch)
	}

	for _, threat := range assessment.Threats {
		assessment.ContentScore += threat.Score
	}
	assessment.OverallScore = assessment.SenderRiskScore + assessment.ContentScore

	return assessment
}

func (a *Analyzer) analyzeSender(sender, domain string) ([]string, int) {
	risks := []string{}
	score := 0

	address, err := mail.ParseAddress(strings.TrimSpace(sender))
	if err != nil || domain == "" {
		return append(risks, "Sender address missing or malformed"), 2
	}

	registrable := registrableDomain(domain)
	for _, protected := range a.protectedDomains {
		if registrable == protected {
			continue
		}
		if lookAlike(registrable, protected) {
			risks = append(risks, fmt.Sprintf("Suspicious look-alike sender domain %s resembles %s", registrable, protected))
			score += 5
			break
		}
	}

	displayName := strings.ToLower(address.Name)
	for _, protected := range a.protectedDomains {
		brand := brandLabel(protected)
		if brand == "" || registrable == protected {
			continue
		}
		if strings.Contains(displayName, brand) {
			risks = append(risks, fmt.Sprintf("Display name impersonates %s but mail comes from %s", protected, registrable))
			score += 4
			break
		}
	}

	if freeMailDomains[registrable] {
		if word, ok := firstMatch(displayName, officialWords); ok {
			risks = append(risks, fmt.Sprintf("Free mail sender posing as an official %s team", word))
			score += 2
		}
	}

	for _, tld := range highRiskTLDs {
		if strings.HasSuffix(domain, tld) {
			risks = append(risks, fmt.Sprintf("Sender uses high-risk top-level domain %s", tld))
			score += 2
			break
		}
	}

	return risks, score
}

// analyzeLinks returns the link threats and, separately, the off-domain
// link finding
func (a *Analyzer) analyzeLinks(senderDomain string, urls []string) ([]core.ContentThreat, *core.ContentThreat) {
	var threats []core.ContentThreat
	senderRegistrable := registrableDomain(senderDomain)

	mismatched, ipHosts, shorteners := 0, 0, 0
	for _, raw := range urls {
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		host := strings.ToLower(parsed.Hostname())
		if host == "" || a.trusted.IsTrustedHost(host) {
			continue
		}
		if net.ParseIP(host) != nil {
			ipHosts++
			continue
		}
		registrable := registrableDomain(host)
		if shortenerDomains[registrable] {
			shorteners++
		}
		if senderRegistrable != "" && registrable != senderRegistrable {
			mismatched++
		}
	}

	if ipHosts > 0 {
		threats = append(threats, core.ContentThreat{
			Type:        ThreatIPHost,
			Description: fmt.Sprintf("High risk link to raw IP address host (%d)", ipHosts),
			Score:       3,
		})
	}
	if shorteners > 0 {
		threats = append(threats, core.ContentThreat{
			Type:        ThreatShortener,
			Description: fmt.Sprintf("Link hidden behind URL shortener (%d)", shorteners),
			Score:       2,
		})
	}
	var mismatch *core.ContentThreat
	if mismatched > 0 {
		mismatch = &core.ContentThreat{
			Type:        ThreatLinkMismatch,
			Description: fmt.Sprintf("Links point away from the sender domain (%d)", mismatched),
			Score:       1,
		}
	}
	return threats, mismatch
}

func (a *Analyzer) classify(ctx context.Context, email core.EmailRecord) *core.ContentThreat {
	if a.classifier == nil {
		return nil
	}

	verdict, err := a.classifier.Classify(ctx, email)
	if err != nil {
		a.logger.Warn("Content classifier failed, continuing with heuristics only",
			zap.String("email_id", email.ID),
			zap.Error(err))
		return nil
	}
	if !verdict.Suspicious && verdict.Score < a.classifierThreshold {
		a.logger.Debug("Content classifier found nothing",
			zap.String("email_id", email.ID),
			zap.Float64("score", verdict.Score))
		return nil
	}

	return &core.ContentThreat{
		Type:        ThreatModel,
		Description: fmt.Sprintf("Language model flagged suspicious content: %s", verdict.Explanation),
		Score:       int(math.Round(verdict.Score * 10)),
	}
}

func firstMatch(text string, phrases []string) (string, bool) {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return phrase, true
		}
	}
	return "", false
}

// registrableDomain returns eTLD+1 for host, or host itself when it has none
func registrableDomain(host string) string {
	host = strings.Trim(strings.ToLower(host), ".")
	if host == "" {
		return ""
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return registrable
}

// brandLabel returns the label left of the public suffix, "paypal" for paypal.com
func brandLabel(domain string) string {
	suffix, _ := publicsuffix.PublicSuffix(domain)
	label := strings.TrimSuffix(domain, "."+suffix)
	if i := strings.LastIndex(label, "."); i >= 0 {
		label = label[i+1:]
	}
	if len(label) < 4 {
		return ""
	}
	return label
}

// lookAlike reports whether candidate is within a small edit distance of protected
func lookAlike(candidate, protected string) bool {
	if candidate == "" || candidate == protected {
		return false
	}
	threshold := 1
	switch l := len(protected); {
	case l > 15:
		threshold = int(math.Ceil(float64(l) * 0.15))
	case l > 11:
		threshold = 2
	}
	return fuzzy.LevenshteinDistance(candidate, protected) <= threshold
}
