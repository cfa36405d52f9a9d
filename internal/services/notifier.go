package services

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/models"
	"github.com/desafio-dunas/registration-api/internal/observability"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Notification kinds
const (
	NotificationVerificationCode = "verification_code"
	NotificationConfirmation     = "confirmation"
)

// Notification is one outbound email
type Notification struct {
	Kind      string
	To        string
	Subject   string
	Body      string
	CreatedAt time.Time
}

// Notifier delivers a message to an email address
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPNotifier sends HTML email through an SMTP relay
type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPNotifier creates a notifier for the given relay
func NewSMTPNotifier(host string, port int, user, password, from string) *SMTPNotifier {
	return &SMTPNotifier{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

// Send delivers the message or returns when ctx is done, whichever comes first
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	done := make(chan error, 1)
	go func() {
		done <- n.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to send email: %w", ctx.Err())
	}
}

// LogNotifier writes messages to the log instead of sending them. Used when SMTP is disabled.
type LogNotifier struct {
	logger *logging.SafeLogger
}

// NewLogNotifier creates a notifier that only logs
func NewLogNotifier(logger *logging.SafeLogger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send logs the recipient and subject
func (n *LogNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.logger.Info("email delivery disabled, message logged",
		zap.String("to", observability.MaskEmail(to)),
		zap.String("subject", subject),
		zap.Int("body_length", len(body)))
	return nil
}

// VerificationCodeNotification renders the email carrying a freshly issued code
func VerificationCodeNotification(eventName, to, code string, expiresAt time.Time, ttl time.Duration) Notification {
	body := fmt.Sprintf(`
		<h2>%s</h2>
		<p>Your verification code is:</p>
		<p style="font-size:28px;letter-spacing:6px"><strong>%s</strong></p>
		<p>The code expires in %d minutes (%s UTC).</p>
		<p>Any code sent to you earlier is no longer valid.</p>
		<p>If you did not start a registration, you can ignore this email.</p>
	`, html.EscapeString(eventName), code, int(ttl.Minutes()), expiresAt.UTC().Format("15:04"))

	return Notification{
		Kind:      NotificationVerificationCode,
		To:        to,
		Subject:   fmt.Sprintf("%s - verification code", eventName),
		Body:      body,
		CreatedAt: time.Now(),
	}
}

// ConfirmationNotification renders the email sent after a registration is committed
func ConfirmationNotification(eventName string, record *models.RegistrationRecord) Notification {
	body := fmt.Sprintf(`
		<h2>%s</h2>
		<p>Hello %s, your registration is complete.</p>
		<ul>
			<li>Registration number: <strong>%d</strong></li>
			<li>Team number: <strong>%d</strong></li>
			<li>Group: %s</li>
			<li>Role: %s</li>
			<li>Radio channel: %.3f MHz</li>
			<li>Group contact: %s</li>
		</ul>
		<p>Status: %s</p>
	`,
		html.EscapeString(eventName),
		html.EscapeString(record.FullName()),
		record.Number,
		record.TeamNumber,
		html.EscapeString(record.GroupName),
		html.EscapeString(record.Role),
		record.Channel,
		html.EscapeString(record.GroupContact),
		html.EscapeString(record.Status),
	)

	return Notification{
		Kind:      NotificationConfirmation,
		To:        record.Email,
		Subject:   fmt.Sprintf("%s - registration #%d confirmed", eventName, record.Number),
		Body:      body,
		CreatedAt: time.Now(),
	}
}
