// ABOUTME: Email notification sink: sends a completion summary over SMTP with STARTTLS
// ABOUTME: Adapted from the workflow engine's email task executor, narrowed to a fixed summary body

package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
)

// EmailSink sends a completion summary to a single recipient over SMTP.
type EmailSink struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// NewEmailSink creates an EmailSink; Port defaults to 587 (STARTTLS).
func NewEmailSink(host string, port int, from, to string) *EmailSink {
	if port == 0 {
		port = 587
	}
	return &EmailSink{Host: host, Port: port, From: from, To: to}
}

func (s *EmailSink) Notify(ctx context.Context, summary Summary) error {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	subject := fmt.Sprintf("workflow completed: exit_code=%d", summary.ExitCode)
	body := fmt.Sprintf("exit_code=%d\nduration=%s\nfailed_task=%d\ncorrelation_id=%s\n", summary.ExitCode, summary.Duration, summary.FailedTask, summary.CorrelationID)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", s.From, s.To, subject, body)

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("connecting to smtp server: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: s.Host}); err != nil {
		return fmt.Errorf("starting tls: %w", err)
	}
	if s.Username != "" && s.Password != "" {
		if err := client.Auth(smtp.PlainAuth("", s.Username, s.Password, s.Host)); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
	}
	if err := client.Mail(s.From); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	if err := client.Rcpt(s.To); err != nil {
		return fmt.Errorf("setting recipient: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("opening data writer: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data writer: %w", err)
	}
	return client.Quit()
}
