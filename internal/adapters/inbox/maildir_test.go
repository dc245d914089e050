package inbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

const plainMessage = "From: Billing <billing@example.com>\r\n" +
	"To: user@example.org\r\n" +
	"Subject: Invoice overdue\r\n" +
	"Date: Mon, 02 Jun 2025 10:00:00 +0000\r\n" +
	"Message-ID: <abc123@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Pay now at https://pay.example.net/invoice/42\r\n"

const htmlMessage = "From: promo@example.com\r\n" +
	"Subject: Offer\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><p>Limited offer</p><a href=\"https://deals.example.net/x\">claim</a></body></html>\r\n"

func writeMessage(t *testing.T, dir, name, content string, modTime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("failed to set mtime on %s: %v", name, err)
	}
}

func TestReadMessage(t *testing.T) {
	email, err := ReadMessage(strings.NewReader(plainMessage), "fallback")
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if email.ID != "abc123@example.com" {
		t.Errorf("ID = %q", email.ID)
	}
	if email.Sender != "Billing <billing@example.com>" {
		t.Errorf("Sender = %q", email.Sender)
	}
	if email.Subject != "Invoice overdue" {
		t.Errorf("Subject = %q", email.Subject)
	}
	if !strings.Contains(email.Body, "https://pay.example.net/invoice/42") {
		t.Errorf("Body = %q", email.Body)
	}

	html, err := ReadMessage(strings.NewReader(htmlMessage), "offer.eml")
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if html.ID != "offer.eml" {
		t.Errorf("ID = %q, want fallback", html.ID)
	}
	if !strings.Contains(html.Body, "https://deals.example.net/x") {
		t.Errorf("Body = %q, want link from HTML part", html.Body)
	}
}

func TestMaildirSource(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writeMessage(t, dir, "b.eml", htmlMessage, base.Add(time.Minute))
	writeMessage(t, dir, "a.eml", plainMessage, base)
	writeMessage(t, dir, "notes.txt", "ignored", base)

	source, err := NewMaildirSource(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewMaildirSource() error = %v", err)
	}
	defer source.Close()

	ctx := context.Background()
	first, err := source.GetNewEmails(ctx, 1)
	if err != nil {
		t.Fatalf("GetNewEmails() error = %v", err)
	}
	if len(first) != 1 || first[0].ID != "abc123@example.com" {
		t.Fatalf("GetNewEmails(1) = %+v, want oldest message", first)
	}

	second, err := source.GetNewEmails(ctx, 10)
	if err != nil {
		t.Fatalf("GetNewEmails() error = %v", err)
	}
	if len(second) != 1 || second[0].ID != "b.eml" {
		t.Fatalf("GetNewEmails(10) = %+v, want remaining message", second)
	}

	third, err := source.GetNewEmails(ctx, 10)
	if err != nil {
		t.Fatalf("GetNewEmails() error = %v", err)
	}
	if len(third) != 0 {
		t.Errorf("GetNewEmails() = %+v, want nothing new", third)
	}
}

func TestMaildirSubdirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "new"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeMessage(t, filepath.Join(dir, "new"), "1718000000.M1P1.host", plainMessage, time.Now())

	source, err := NewMaildirSource(dir, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewMaildirSource() error = %v", err)
	}

	emails, err := source.GetNewEmails(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetNewEmails() error = %v", err)
	}
	if len(emails) != 1 {
		t.Fatalf("GetNewEmails() = %d emails, want 1", len(emails))
	}
}

func TestNewMaildirSourceMissing(t *testing.T) {
	if _, err := NewMaildirSource(filepath.Join(t.TempDir(), "missing"), zaptest.NewLogger(t)); err == nil {
		t.Fatal("NewMaildirSource() error = nil, want error for missing directory")
	}
}
