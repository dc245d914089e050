package inbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// SMTPReceiverConfig configures the SMTP inbox receiver
type SMTPReceiverConfig struct {
	ListenAddress   string
	Domain          string
	MaxMessageBytes int64
	QueueSize       int
}

// SMTPReceiver accepts messages forwarded by a mail server and queues them
// for the monitor. A full queue makes the sender retry later.
type SMTPReceiver struct {
	cfg      SMTPReceiverConfig
	logger   *zap.Logger
	server   *smtp.Server
	listener net.Listener

	mu    sync.Mutex
	queue []core.EmailRecord
	seq   uint64
}

// NewSMTPReceiver starts listening on the configured address
func NewSMTPReceiver(cfg SMTPReceiverConfig, logger *zap.Logger) (*SMTPReceiver, error) {
	if cfg.Domain == "" {
		cfg.Domain = "localhost"
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 30 * 1024 * 1024
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}

	r := &SMTPReceiver{cfg: cfg, logger: logger}

	r.server = smtp.NewServer(&smtpBackend{receiver: r})
	r.server.Domain = cfg.Domain
	r.server.ReadTimeout = 30 * time.Second
	r.server.WriteTimeout = 30 * time.Second
	r.server.MaxMessageBytes = cfg.MaxMessageBytes
	r.server.MaxRecipients = 50

	ln, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddress, err)
	}
	r.listener = ln

	go func() {
		if err := r.server.Serve(ln); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			r.logger.Error("SMTP receiver error", zap.Error(err))
		}
	}()

	logger.Info("SMTP receiver started", zap.String("address", ln.Addr().String()))
	return r, nil
}

// Addr returns the bound listen address
func (r *SMTPReceiver) Addr() string {
	return r.listener.Addr().String()
}

func (r *SMTPReceiver) enqueue(email core.EmailRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.queue) >= r.cfg.QueueSize {
		return &smtp.SMTPError{
			Code:         452,
			EnhancedCode: smtp.EnhancedCode{4, 3, 1},
			Message:      "Monitor queue full, try again later",
		}
	}
	r.queue = append(r.queue, email)
	return nil
}

func (r *SMTPReceiver) nextID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return fmt.Sprintf("smtp-%d-%d", time.Now().UnixNano(), r.seq)
}

// GetNewEmails implements ports.InboxSource by draining up to max queued messages
func (r *SMTPReceiver) GetNewEmails(ctx context.Context, max int) ([]core.EmailRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.queue)
	if max > 0 && n > max {
		n = max
	}
	emails := make([]core.EmailRecord, n)
	copy(emails, r.queue[:n])
	r.queue = r.queue[n:]
	return emails, nil
}

// Close stops the SMTP server
func (r *SMTPReceiver) Close() error {
	return r.server.Close()
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	receiver *SMTPReceiver
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{receiver: b.receiver}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	receiver   *SMTPReceiver
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the envelope sender
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data parses the message and queues it
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.receiver.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	email, err := ReadMessage(bytes.NewReader(raw), s.receiver.nextID())
	if err != nil {
		s.receiver.logger.Error("Failed to parse email message", zap.Error(err))
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Message could not be parsed",
		}
	}
	// the header sender may be missing on forwarded mail
	if email.Sender == "" {
		email.Sender = s.sender
	}

	if err := s.receiver.enqueue(email); err != nil {
		s.receiver.logger.Warn("Deferring message, queue full", zap.String("sender", email.Sender))
		return err
	}

	s.receiver.logger.Info("Received message",
		zap.String("email_id", email.ID),
		zap.String("sender", email.Sender),
		zap.Int("recipients", len(s.recipients)))
	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
