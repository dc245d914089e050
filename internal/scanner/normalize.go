// Package scanner turns raw scan provider documents into scored assessments.
package scanner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// Indicator weights
const (
	WeightBlacklistedIP      = 10
	WeightBlacklistedCountry = 5
	WeightBlacklistedDomain  = 15
	WeightBlacklistedURL     = 20
	WeightCategoryMalicious  = 30
	WeightCategorySuspicious = 20
	WeightCategoryOther      = 10
	WeightMaliciousBehavior  = 50
	WeightManyRequests       = 10
	WeightManyDomains        = 10

	RequestThreshold = 100
	DomainThreshold  = 20
	MaxThreatScore   = 100

	unknown = "Unknown"
)

var (
	maliciousKeywords  = []string{"malware", "phishing", "scam", "malicious"}
	suspiciousKeywords = []string{"suspicious", "suspected"}
)

// Normalize scores a provider document for url. It never fails: absent
// sections count as empty and a nil document yields a zero assessment.
func Normalize(doc *core.ScanDocument, url string) *core.ScanAssessment {
	if doc == nil {
		doc = &core.ScanDocument{}
	}

	assessment := &core.ScanAssessment{
		URL:        url,
		ScanID:     doc.ID(),
		ScanTime:   doc.ScannedAt(),
		Categories: []string{},
		Indicators: []string{},
		Summary:    "No threats detected",
		Metadata:   metadata(doc.Page),
	}

	score := 0
	applied := false
	add := func(weight int, indicator string) {
		score += weight
		applied = true
		if indicator != "" {
			assessment.Indicators = append(assessment.Indicators, indicator)
		}
	}

	if lists := doc.Lists; lists != nil {
		if n := len(lists.IPs); n > 0 {
			add(n*WeightBlacklistedIP, fmt.Sprintf("IPs in blacklists: %d", n))
		}
		if n := len(lists.Countries); n > 0 {
			add(n*WeightBlacklistedCountry, fmt.Sprintf("Countries in blacklists: %d", n))
		}
		if n := len(lists.Domains); n > 0 {
			add(n*WeightBlacklistedDomain, fmt.Sprintf("Domains in blacklists: %d", n))
		}
		if n := len(lists.URLs); n > 0 {
			add(n*WeightBlacklistedURL, fmt.Sprintf("URLs in blacklists: %d", n))
		}
		for _, category := range lists.Categories {
			assessment.Categories = append(assessment.Categories, category)
			add(CategoryWeight(category), "")
		}
	}

	if stats := doc.Stats; stats != nil {
		if stats.Malicious {
			assessment.Malicious = true
			add(WeightMaliciousBehavior, "Malicious behavior detected")
		}
		if stats.Requests > RequestThreshold {
			add(WeightManyRequests, fmt.Sprintf("High number of requests: %d", stats.Requests))
		}
		if stats.Domains > DomainThreshold {
			add(WeightManyDomains, fmt.Sprintf("High number of domains: %d", stats.Domains))
		}
	}

	if score > MaxThreatScore {
		score = MaxThreatScore
	}
	assessment.ThreatScore = score
	assessment.Summary = Summarize(score, applied)

	return assessment
}

// CategoryWeight returns the weight a provider category contributes
func CategoryWeight(category string) int {
	lower := strings.ToLower(category)
	for _, keyword := range maliciousKeywords {
		if strings.Contains(lower, keyword) {
			return WeightCategoryMalicious
		}
	}
	for _, keyword := range suspiciousKeywords {
		if strings.Contains(lower, keyword) {
			return WeightCategorySuspicious
		}
	}
	return WeightCategoryOther
}

// Summarize picks the summary line for a capped score
func Summarize(score int, anyIndicator bool) string {
	switch {
	case score > 50:
		return fmt.Sprintf("High threat detected (Score: %d%%)", score)
	case score > 25:
		return fmt.Sprintf("Medium threat detected (Score: %d%%)", score)
	case anyIndicator:
		return fmt.Sprintf("Low threat detected (Score: %d%%)", score)
	default:
		return "No threats detected"
	}
}

// DecodeDocument parses a provider response body. It always returns a usable
// document; a malformed body yields an empty or partial document together
// with an error wrapping core.ErrScanProviderResponse.
func DecodeDocument(body []byte) (*core.ScanDocument, error) {
	doc := &core.ScanDocument{}
	if len(body) == 0 {
		return doc, fmt.Errorf("%w: empty body", core.ErrScanProviderResponse)
	}

	if err := json.Unmarshal(body, doc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			// encoding/json keeps decoding past type mismatches
			return doc, fmt.Errorf("%w: %v", core.ErrScanProviderResponse, err)
		}
		return &core.ScanDocument{}, fmt.Errorf("%w: %v", core.ErrScanProviderResponse, err)
	}

	return doc, nil
}

func metadata(page *core.ScanPage) core.ScanMetadata {
	meta := core.ScanMetadata{
		PageTitle: unknown,
		Server:    unknown,
		IP:        unknown,
		Country:   unknown,
	}
	if page == nil {
		return meta
	}
	if page.Title != "" {
		meta.PageTitle = string(page.Title)
	}
	if page.Server != "" {
		meta.Server = string(page.Server)
	}
	if page.IP != "" {
		meta.IP = string(page.IP)
	}
	if page.Country != "" {
		meta.Country = string(page.Country)
	}
	return meta
}
