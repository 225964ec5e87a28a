package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/slack-go/slack"
	"gopkg.in/gomail.v2"
)

// Channel delivers an alert to a set of recipients. Send reports success or
// failure only; implementations catch their own errors and never propagate
// them past the call site.
type Channel interface {
	Name() string
	Send(a *Alert, recipients []string) bool
}

// EmailConfig configures the SMTP email channel.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type EmailChannel struct {
	cfg    EmailConfig
	dialer *gomail.Dialer
}

func NewEmailChannel(cfg EmailConfig) *EmailChannel {
	return &EmailChannel{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(a *Alert, recipients []string) bool {
	contextDump, _ := json.MarshalIndent(a.Context, "", "  ")
	body := fmt.Sprintf(`Alert: %s
Severity: %s
Status: %s
Created: %s

Message: %s

Metric Value: %v
Threshold: %v

Context:
%s

Alert ID: %s
`, a.RuleName, a.Severity, a.Status, a.CreatedAt.Format(time.RFC3339),
		a.Message, a.MetricValue, a.Threshold, contextDump, a.ID)

	for _, recipient := range recipients {
		m := gomail.NewMessage()
		m.SetHeader("From", c.cfg.From)
		m.SetHeader("To", recipient)
		m.SetHeader("Subject", fmt.Sprintf("[%s] %s", a.Severity, a.RuleName))
		m.SetBody("text/plain", body)

		if err := c.dialer.DialAndSend(m); err != nil {
			log.Printf("email channel: send to %s failed: %v", recipient, err)
			return false
		}
	}
	return true
}

// SlackConfig configures the chat webhook channel.
type SlackConfig struct {
	WebhookURL string
}

type SlackChannel struct {
	cfg SlackConfig
}

func NewSlackChannel(cfg SlackConfig) *SlackChannel {
	return &SlackChannel{cfg: cfg}
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Send(a *Alert, recipients []string) bool {
	if c.cfg.WebhookURL == "" {
		return false
	}

	attachment := slack.Attachment{
		Color: severityColor(a.Severity),
		Title: fmt.Sprintf("%s: %s", a.Severity, a.RuleName),
		Text:  a.Message,
		Fields: []slack.AttachmentField{
			{Title: "Metric Value", Value: fmt.Sprintf("%v", a.MetricValue), Short: true},
			{Title: "Threshold", Value: fmt.Sprintf("%v", a.Threshold), Short: true},
			{Title: "Status", Value: string(a.Status), Short: true},
			{Title: "Alert ID", Value: a.ID, Short: true},
		},
		Footer: "Observer Monitoring",
		Ts:     json.Number(fmt.Sprintf("%d", a.CreatedAt.Unix())),
	}

	msg := &slack.WebhookMessage{Attachments: []slack.Attachment{attachment}}
	if err := slack.PostWebhook(c.cfg.WebhookURL, msg); err != nil {
		log.Printf("slack channel: post failed: %v", err)
		return false
	}
	return true
}

func severityColor(s Severity) string {
	switch s {
	case SeverityLow:
		return "#36a64f"
	case SeverityMedium:
		return "#ff9500"
	case SeverityHigh:
		return "#ff0000"
	case SeverityCritical:
		return "#8b0000"
	default:
		return "#ff0000"
	}
}

// WebhookConfig configures the generic webhook channel.
type WebhookConfig struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

type WebhookChannel struct {
	cfg    WebhookConfig
	client *http.Client
}

func NewWebhookChannel(cfg WebhookConfig) *WebhookChannel {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &WebhookChannel{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Send(a *Alert, recipients []string) bool {
	if c.cfg.URL == "" {
		return false
	}

	payload := map[string]interface{}{
		"alert":      a,
		"recipients": recipients,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("webhook channel: marshal failed: %v", err)
		return false
	}

	req, err := http.NewRequest(http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		log.Printf("webhook channel: request failed: %v", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("webhook channel: post failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < 400
}
