// Package email implements the notification gateway over SMTP.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/cf-hub/progress-tracker/internal/domain/notification"
	"github.com/cf-hub/progress-tracker/pkg/retry"
	"github.com/cf-hub/progress-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds SMTP relay configuration.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Addr returns the relay address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// SMTP GATEWAY
// ══════════════════════════════════════════════════════════════════════════════

// sendFunc matches smtp.SendMail, injectable for tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPGateway delivers notifications through an SMTP relay.
// Transient relay failures are retried a few times; a message that
// still fails surfaces as an error so callers leave reminder state
// untouched.
type SMTPGateway struct {
	config  Config
	logger  *slog.Logger
	retrier *retry.Retrier
	send    sendFunc
}

// NewSMTPGateway creates a new SMTP gateway.
func NewSMTPGateway(config Config, logger *slog.Logger) *SMTPGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPGateway{
		config:  config,
		logger:  logger,
		retrier: retry.MailerRetrier(),
		send:    smtp.SendMail,
	}
}

// SendReminder emails an inactivity reminder.
func (g *SMTPGateway) SendReminder(ctx context.Context, p notification.ReminderPayload) error {
	subject := fmt.Sprintf("Time to get back to practice, %s!", p.StudentName)
	body := reminderBody(p)
	return g.deliver(ctx, p.Recipient, subject, body)
}

// SendWeeklyReport emails a weekly progress report.
func (g *SMTPGateway) SendWeeklyReport(ctx context.Context, r notification.WeeklyReport) error {
	subject := fmt.Sprintf("Your weekly Codeforces progress, %s", r.StudentName)
	body := weeklyReportBody(r)
	return g.deliver(ctx, r.Recipient, subject, body)
}

// deliver builds the MIME message and pushes it through the relay with
// retries.
func (g *SMTPGateway) deliver(ctx context.Context, recipient, subject, body string) error {
	msg := buildMessage(g.config.From, recipient, subject, body)

	var auth smtp.Auth
	if g.config.Username != "" {
		auth = smtp.PlainAuth("", g.config.Username, g.config.Password, g.config.Host)
	}

	err := g.retrier.Do(ctx, func(ctx context.Context) error {
		if err := g.send(g.config.Addr(), auth, g.config.From, []string{recipient}, msg); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("smtp: deliver to %s: %w", recipient, err)
	}

	g.logger.Debug("email delivered", "recipient", recipient, "subject", subject)
	return nil
}

// buildMessage assembles an RFC 5322 message with a plain-text body.
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE BODIES
// ══════════════════════════════════════════════════════════════════════════════

func reminderBody(p notification.ReminderPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\r\n\r\n", p.StudentName)
	fmt.Fprintf(&b, "We noticed your Codeforces handle %s has been quiet for %d days.\r\n", p.Handle, p.InactiveDays)
	if !p.LastActivityAt.IsZero() {
		fmt.Fprintf(&b, "Your last recorded activity was on %s.\r\n", timeutil.FormatTimestamp(p.LastActivityAt))
	}
	fmt.Fprintf(&b, "\r\nYour current rating is %d. Even one problem a day keeps it moving.\r\n", p.CurrentRating)
	b.WriteString("\r\nKeep solving,\r\nThe Progress Tracker\r\n")
	return b.String()
}

func weeklyReportBody(r notification.WeeklyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\r\n\r\n", r.StudentName)
	fmt.Fprintf(&b, "Here is what %s did between %s and %s:\r\n\r\n",
		r.Handle,
		timeutil.DayKey(r.PeriodStart),
		timeutil.DayKey(r.PeriodEnd),
	)
	fmt.Fprintf(&b, "  Problems solved:  %d (total %d)\r\n", r.ProblemsSolved, r.TotalSolved)
	fmt.Fprintf(&b, "  Contests entered: %d\r\n", r.ContestsPlayed)
	fmt.Fprintf(&b, "  Rating change:    %+d (now %d)\r\n", r.RatingChange, r.CurrentRating)
	b.WriteString("\r\nKeep solving,\r\nThe Progress Tracker\r\n")
	return b.String()
}

// ══════════════════════════════════════════════════════════════════════════════
// LOG GATEWAY
// ══════════════════════════════════════════════════════════════════════════════

// LogGateway logs notifications instead of sending them. Used in
// development and when no SMTP relay is configured.
type LogGateway struct {
	logger *slog.Logger
}

// NewLogGateway creates a new LogGateway.
func NewLogGateway(logger *slog.Logger) *LogGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogGateway{logger: logger}
}

// SendReminder logs the reminder instead of delivering it.
func (g *LogGateway) SendReminder(ctx context.Context, p notification.ReminderPayload) error {
	g.logger.Info("reminder (not sent, log gateway)",
		"recipient", p.Recipient,
		"handle", p.Handle,
		"inactive_days", p.InactiveDays,
	)
	return nil
}

// SendWeeklyReport logs the report instead of delivering it.
func (g *LogGateway) SendWeeklyReport(ctx context.Context, r notification.WeeklyReport) error {
	g.logger.Info("weekly report (not sent, log gateway)",
		"recipient", r.Recipient,
		"handle", r.Handle,
		"problems_solved", r.ProblemsSolved,
		"rating_change", r.RatingChange,
	)
	return nil
}
