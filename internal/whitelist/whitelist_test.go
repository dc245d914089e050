package whitelist

import (
	"testing"

	"go.uber.org/zap"
)

func TestSenderDomain(t *testing.T) {
	tests := map[string]string{
		"user@Example.com":                   "example.com",
		"Billing Team <billing@pay.example>": "pay.example",
		"not an address":                     "",
		"trailing@":                          "",
	}
	for in, want := range tests {
		if got := SenderDomain(in); got != want {
			t.Errorf("SenderDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestChecker(t *testing.T) {
	c := NewChecker([]string{" Example.com ", "", "corp.internal."}, zap.NewNop())

	if !c.IsWhitelisted("alice@example.com") {
		t.Error("exact domain not trusted")
	}
	if !c.IsWhitelisted("Bob <bob@mail.example.com>") {
		t.Error("subdomain not trusted")
	}
	if c.IsWhitelisted("eve@example.com.evil.test") {
		t.Error("suffix trick trusted")
	}
	if c.IsTrustedHost("notexample.com") {
		t.Error("unrelated host trusted")
	}
	if !c.IsTrustedHost("wiki.corp.internal") {
		t.Error("trusted host rejected")
	}
	if got := len(c.Domains()); got != 2 {
		t.Errorf("Domains() has %d entries, want 2", got)
	}
}
