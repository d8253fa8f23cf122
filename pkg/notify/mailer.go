// Package notify delivers consolidated email reports: one message per
// finished batch, never one per account.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"igmonitor/pkg/config"
	"igmonitor/pkg/logger"
	"igmonitor/pkg/schedule"
	"igmonitor/pkg/watcher"
)

// Mailer sends reports over SMTP. With email disabled in config every
// send becomes a logged no-op, so the rest of the pipeline never needs
// to care.
type Mailer struct {
	cfg config.EmailConfig
	log logger.Logger
}

// NewMailer builds a mailer from the email config section.
func NewMailer(cfg config.EmailConfig, log logger.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log}
}

// SendReport delivers one consolidated report for a batch of successful
// results.
func (m *Mailer) SendReport(ctx context.Context, taskType schedule.TaskType, email string, results []*watcher.Result) error {
	if !m.cfg.Enabled {
		m.log.WithField("email", email).Debug("Email disabled, skipping report")
		return nil
	}
	if len(results) == 0 {
		return nil
	}

	subject, body := buildReport(taskType, results)

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(email); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send report to %s: %w", email, err)
	}

	m.log.WithFields(map[string]interface{}{
		"email":    email,
		"type":     string(taskType),
		"accounts": len(results),
	}).Info("Report sent")
	return nil
}

// SendBanAlert warns the subscriber that the upstream flagged the
// monitoring account, so scheduled checks may pause for a while.
func (m *Mailer) SendBanAlert(ctx context.Context, email string, reason string) error {
	if !m.cfg.Enabled {
		m.log.WithField("email", email).Debug("Email disabled, skipping ban alert")
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(email); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject("Instagram monitoring paused")
	msg.SetBodyString(mail.TypeTextPlain, buildBanAlert(reason))

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send ban alert to %s: %w", email, err)
	}

	m.log.WithField("email", email).Warn("Ban alert sent")
	return nil
}

func buildBanAlert(reason string) string {
	var b strings.Builder
	b.WriteString("Instagram reported a problem with the account used for your scheduled checks:\n\n")
	fmt.Fprintf(&b, "  %s\n\n", reason)
	b.WriteString("Checks are paused until the protection cooldown expires. No action is needed on your side.\n")
	return b.String()
}

// buildReport renders the subject and plain-text body for a batch.
func buildReport(taskType schedule.TaskType, results []*watcher.Result) (string, string) {
	var b strings.Builder
	var subject string

	switch taskType {
	case schedule.TaskStories:
		subject = fmt.Sprintf("Instagram stories update (%d accounts)", len(results))
		b.WriteString("Current story activity for your monitored accounts:\n\n")
		for _, r := range results {
			if r.HasNewStories != nil && *r.HasNewStories {
				fmt.Fprintf(&b, "  @%s: %d active stories\n", r.Username, r.StoryCount)
			} else {
				fmt.Fprintf(&b, "  @%s: no active stories\n", r.Username)
			}
		}
	default:
		subject = fmt.Sprintf("Instagram privacy report (%d accounts)", len(results))
		b.WriteString("Current privacy status of your monitored accounts:\n\n")
		for _, r := range results {
			state := "public"
			if r.IsPrivate != nil && *r.IsPrivate {
				state = "private"
			}
			fmt.Fprintf(&b, "  @%s: %s\n", r.Username, state)
		}
	}

	b.WriteString("\nYou receive this message because a scheduled check you created has run.\n")
	return subject, b.String()
}
