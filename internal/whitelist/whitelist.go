package whitelist

import (
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// Checker decides whether senders and link hosts belong to trusted domains
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalizedDomains := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
		if domain != "" {
			normalizedDomains = append(normalizedDomains, domain)
		}
	}

	if len(normalizedDomains) > 0 && logger != nil {
		logger.Info("Initialized trusted domain checker", zap.Strings("domains", normalizedDomains))
	}

	return &Checker{
		domains: normalizedDomains,
		logger:  logger,
	}
}

// SenderDomain extracts the lower-cased domain of a sender such as
// "Name <user@example.com>" or "user@example.com"
func SenderDomain(from string) string {
	address := strings.TrimSpace(from)
	if parsed, err := mail.ParseAddress(address); err == nil {
		address = parsed.Address
	}
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	return strings.Trim(strings.ToLower(address[at+1:]), ">. ")
}

// IsWhitelisted checks if the sender's domain is trusted
func (c *Checker) IsWhitelisted(from string) bool {
	domain := SenderDomain(from)
	if domain == "" {
		return false
	}
	if c.IsTrustedHost(domain) {
		if c.logger != nil {
			c.logger.Debug("Sender domain is trusted",
				zap.String("domain", domain),
				zap.String("email", from))
		}
		return true
	}
	return false
}

// IsTrustedHost reports whether host equals or is a subdomain of a trusted domain
func (c *Checker) IsTrustedHost(host string) bool {
	host = strings.Trim(strings.ToLower(host), ".")
	if host == "" {
		return false
	}
	for _, trusted := range c.domains {
		if host == trusted || strings.HasSuffix(host, "."+trusted) {
			return true
		}
	}
	return false
}

// Domains returns the normalized trusted domains
func (c *Checker) Domains() []string {
	return append([]string(nil), c.domains...)
}
