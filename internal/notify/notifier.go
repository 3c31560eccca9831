package notify

import (
	"fmt"
	"log"
	"time"

	"github.com/slack-go/slack"
	"gopkg.in/gomail.v2"

	"github.com/dbsentry/internal/config"
	"github.com/dbsentry/internal/models"
)

// Notifier delivers opened alerts to Slack and email. It is registered
// as an alert listener; delivery failures are logged and never reach the
// evaluation path.
type Notifier struct {
	cfg         config.AlertConfig
	service     string
	environment string
	slackClient *slack.Client
	emailDialer *gomail.Dialer
}

func New(cfg config.AlertConfig, service, environment string) *Notifier {
	n := &Notifier{
		cfg:         cfg,
		service:     service,
		environment: environment,
	}
	if cfg.Slack.Token != "" {
		n.slackClient = slack.New(cfg.Slack.Token)
	}
	if cfg.Email.SMTPHost != "" {
		n.emailDialer = gomail.NewDialer(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.From, cfg.Email.Password)
	}
	return n
}

// Notify implements alert.Listener.
func (n *Notifier) Notify(a models.Alert) {
	if !n.cfg.Enabled {
		return
	}
	if n.slackClient != nil {
		if err := n.sendSlack(a); err != nil {
			log.Printf("Failed to send slack notification for alert %s: %v", a.ID, err)
		}
	}
	if n.emailDialer != nil && len(n.cfg.Email.ToReceivers) > 0 {
		if err := n.sendEmail(a); err != nil {
			log.Printf("Failed to send email notification for alert %s: %v", a.ID, err)
		}
	}
}

func (n *Notifier) sendSlack(a models.Alert) error {
	attachment := slack.Attachment{
		Color: severityColor(a.Severity),
		Title: a.Title,
		Text:  a.Description,
		Fields: []slack.AttachmentField{
			{Title: "Severity", Value: string(a.Severity), Short: true},
			{Title: "Category", Value: string(a.Category), Short: true},
			{Title: "Observed", Value: fmt.Sprintf("%.2f", a.ObservedValue), Short: true},
			{Title: "Threshold", Value: fmt.Sprintf("%.2f", a.Threshold), Short: true},
			{Title: "Service", Value: n.service, Short: true},
			{Title: "Environment", Value: n.environment, Short: true},
		},
		Footer: fmt.Sprintf("alert %s", a.ID),
	}

	_, _, err := n.slackClient.PostMessage(
		n.cfg.Slack.Channel,
		slack.MsgOptionAttachments(attachment),
	)
	return err
}

func (n *Notifier) sendEmail(a models.Alert) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.Email.From)
	m.SetHeader("To", n.cfg.Email.ToReceivers...)
	m.SetHeader("Subject", fmt.Sprintf("[%s] %s alert: %s", n.environment, a.Severity, a.Title))

	body := fmt.Sprintf(`Alert ID: %s
Service: %s
Environment: %s
Severity: %s
Category: %s
Description: %s
Observed Value: %.2f
Threshold: %.2f
Time: %s
`, a.ID, n.service, n.environment, a.Severity, a.Category, a.Description,
		a.ObservedValue, a.Threshold, a.CreatedAt.Format(time.RFC3339))

	m.SetBody("text/plain", body)
	return n.emailDialer.DialAndSend(m)
}

func severityColor(s models.AlertSeverity) string {
	switch s {
	case models.SeverityCritical:
		return "#ff0000"
	case models.SeverityError:
		return "#ff8c00"
	case models.SeverityWarning:
		return "#ffcc00"
	default:
		return "#808080"
	}
}
