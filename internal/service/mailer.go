package service

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"tenantauth-backend/internal/config"
	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/logger"
)

// Message is one outbound email
type Message struct {
	Recipients []string
	Sender     string
	SenderName string
	Subject    string
	HTMLBody   string
	TextBody   string
	APIKey     string
}

// SendGridMailer delivers through the SendGrid v3 API; the API key comes with each message
type SendGridMailer struct {
	host string
}

func NewSendGridMailer() *SendGridMailer {
	return &SendGridMailer{}
}

// NewSendGridMailerWithHost points the client at a different API host
func NewSendGridMailerWithHost(host string) *SendGridMailer {
	return &SendGridMailer{host: host}
}

func (m *SendGridMailer) Send(ctx context.Context, msg *Message) error {
	if len(msg.Recipients) == 0 {
		return fmt.Errorf("no recipients")
	}

	v3 := mail.NewV3Mail()
	v3.SetFrom(mail.NewEmail(msg.SenderName, msg.Sender))
	v3.Subject = msg.Subject
	for _, recipient := range msg.Recipients {
		p := mail.NewPersonalization()
		p.AddTos(mail.NewEmail("", recipient))
		v3.AddPersonalizations(p)
	}
	if msg.TextBody != "" {
		v3.AddContent(mail.NewContent("text/plain", msg.TextBody))
	}
	v3.AddContent(mail.NewContent("text/html", msg.HTMLBody))

	client := sendgrid.NewSendClient(msg.APIKey)
	if m.host != "" {
		client.BaseURL = m.host + "/v3/mail/send"
	}

	logger.ExternalServiceCall("sendgrid", "send", "recipients", len(msg.Recipients), "subject", msg.Subject)
	resp, err := client.SendWithContext(ctx, v3)
	if err == nil && resp.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", resp.StatusCode, resp.Body)
	}
	logger.ExternalServiceResult("sendgrid", "send", err)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// MailAction selects an action email
type MailAction int

const (
	MailActivateAccount MailAction = iota
	MailResetPassword
)

const actionHTML = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>{{.Heading}}</h2>
  <p>Hello {{.Name}},</p>
  <p>{{.Intro}}</p>
  <p><a href="{{.URL}}" style="background:#1a73e8;color:#fff;padding:10px 18px;text-decoration:none;border-radius:4px;">{{.Button}}</a></p>
  <p>If the button does not work, copy this link into your browser:<br>{{.URL}}</p>
  <hr>
  <p style="font-size:12px;color:#888;">{{.Organization}}{{if .Address}}, {{.Address}}{{end}}<br>&copy; {{.Year}} {{.Organization}}</p>
</body>
</html>`

const actionText = `{{.Heading}}

Hello {{.Name}},

{{.Intro}}

{{.URL}}

{{.Organization}}{{if .Address}}, {{.Address}}{{end}}
(c) {{.Year}} {{.Organization}}
`

type actionData struct {
	Heading      string
	Name         string
	Intro        string
	Button       string
	URL          string
	Organization string
	Address      string
	Year         int
}

// MailComposer renders action emails and resolves the effective mailer settings of an organization
type MailComposer struct {
	defaults config.MailConfig
	html     *htmltemplate.Template
	text     *texttemplate.Template
	now      func() time.Time
}

func NewMailComposer(defaults config.MailConfig) *MailComposer {
	return &MailComposer{
		defaults: defaults,
		html:     htmltemplate.Must(htmltemplate.New("action.html").Parse(actionHTML)),
		text:     texttemplate.Must(texttemplate.New("action.txt").Parse(actionText)),
		now:      time.Now,
	}
}

// settings returns sender, sender name and API key; organization values win over process defaults
func (c *MailComposer) settings(org *domain.Organization) (sender, senderName, apiKey string) {
	sender, senderName, apiKey = c.defaults.DefaultSender, c.defaults.SenderName, c.defaults.SendGridAPIKey
	if org == nil || org.Configuration == nil {
		return
	}
	s := org.Configuration.MailerSettings
	if v := s[domain.MailerSettingDefaultSender]; v != "" {
		sender = v
	}
	if v := s[domain.MailerSettingSenderName]; v != "" {
		senderName = v
	}
	if v := s[domain.MailerSettingAPIKey]; v != "" {
		apiKey = v
	}
	return
}

// IsConfigured reports whether org can send email
func (c *MailComposer) IsConfigured(org *domain.Organization) bool {
	sender, _, apiKey := c.settings(org)
	return sender != "" && apiKey != ""
}

// ActionURL builds the link embedded in an action email
func (c *MailComposer) ActionURL(action MailAction, token string) string {
	base := strings.TrimRight(c.defaults.AppDomain, "/")
	switch action {
	case MailResetPassword:
		return base + "/reset-password?token=" + url.QueryEscape(token)
	default:
		return base + "/login?activation_token=" + url.QueryEscape(token)
	}
}

// Compose renders an action email for u
func (c *MailComposer) Compose(org *domain.Organization, u *domain.User, action MailAction, token string) (*Message, error) {
	if !c.IsConfigured(org) {
		return nil, ErrMailerNotConfigured
	}
	sender, senderName, apiKey := c.settings(org)

	orgName := ""
	if org != nil {
		orgName = org.Name
	}
	data := actionData{
		Name:         strings.TrimSpace(u.GivenNames + " " + u.Surname),
		URL:          c.ActionURL(action, token),
		Organization: orgName,
		Year:         c.now().Year(),
	}
	if org != nil {
		data.Address = org.Address
	}

	var subject string
	switch action {
	case MailResetPassword:
		subject = orgName + ": Reset my password."
		data.Heading = "Reset your password"
		data.Intro = "We received a request to reset your password. Use the link below to choose a new one."
		data.Button = "Reset password"
	default:
		subject = orgName + ": Activate my account."
		data.Heading = "Activate your account"
		data.Intro = "Welcome! Use the link below to activate your account."
		data.Button = "Activate account"
	}

	var html, text bytes.Buffer
	if err := c.html.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}
	if err := c.text.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}

	return &Message{
		Recipients: []string{u.Email},
		Sender:     sender,
		SenderName: senderName,
		Subject:    subject,
		HTMLBody:   html.String(),
		TextBody:   text.String(),
		APIKey:     apiKey,
	}, nil
}
