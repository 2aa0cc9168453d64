package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/ZeremItay/autohub/internal/config"
	"github.com/ZeremItay/autohub/pkg/logger"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendGridHost = "https://api.sendgrid.com"

// MailMessage is a single rendered email.
type MailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers rendered email through one provider.
type Mailer interface {
	Send(ctx context.Context, msg *MailMessage) error
	Name() string
}

// NewMailer picks the provider from config. SMTP settings are read from the
// "email" settings group on every send so admins can change them at runtime.
func NewMailer(cfg *config.MailConfig, configSvc *SystemConfigService) Mailer {
	switch cfg.Provider {
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			logger.Warnf("[Email] SendGrid selected without an API key, email disabled")
			return NoopMailer{}
		}
		return NewSendGridMailer(cfg.SendGridAPIKey, cfg.From, cfg.FromName)
	case "smtp":
		return NewSMTPMailer(configSvc, cfg.From)
	}
	return NoopMailer{}
}

// NoopMailer only logs.
type NoopMailer struct{}

func (NoopMailer) Send(ctx context.Context, msg *MailMessage) error {
	logger.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("email skipped, no provider configured")
	return nil
}

func (NoopMailer) Name() string { return "none" }

type SMTPConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

type SMTPMailer struct {
	configSvc   *SystemConfigService
	defaultFrom string
}

func NewSMTPMailer(configSvc *SystemConfigService, defaultFrom string) *SMTPMailer {
	return &SMTPMailer{configSvc: configSvc, defaultFrom: defaultFrom}
}

func (m *SMTPMailer) Name() string { return "smtp" }

func (m *SMTPMailer) GetConfig() *SMTPConfig {
	cfg := &SMTPConfig{
		Enabled:  m.configSvc.GetBool("email_enabled", false),
		Host:     m.configSvc.GetWithDefault("email_host", ""),
		Port:     m.configSvc.GetInt("email_port", 587),
		Username: m.configSvc.GetWithDefault("email_username", ""),
		Password: m.configSvc.GetWithDefault("email_password", ""),
		From:     m.configSvc.GetWithDefault("email_from", ""),
		UseTLS:   m.configSvc.GetBool("email_use_tls", false),
	}
	if cfg.From == "" {
		cfg.From = m.defaultFrom
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return cfg
}

func (m *SMTPMailer) Send(ctx context.Context, msg *MailMessage) error {
	cfg := m.GetConfig()
	if !cfg.Enabled || cfg.Host == "" {
		logger.Debug().Str("to", msg.To).Msg("smtp disabled, email skipped")
		return nil
	}

	body := buildMIMEMessage(cfg.From, msg)
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	var err error
	if cfg.UseTLS {
		err = sendMailTLS(cfg, addr, auth, msg.To, body)
	} else {
		err = smtp.SendMail(addr, auth, cfg.From, []string{msg.To}, body)
	}
	if err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	logger.Infof("[Email] Sent %q to %s", msg.Subject, msg.To)
	return nil
}

func buildMIMEMessage(from string, msg *MailMessage) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}

func sendMailTLS(cfg *SMTPConfig, addr string, auth smtp.Auth, to string, message []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(message); err != nil {
		return err
	}
	return w.Close()
}

type SendGridMailer struct {
	apiKey   string
	from     string
	fromName string
	host     string
}

func NewSendGridMailer(apiKey, from, fromName string) *SendGridMailer {
	return &SendGridMailer{apiKey: apiKey, from: from, fromName: fromName, host: sendGridHost}
}

func (m *SendGridMailer) Name() string { return "sendgrid" }

func (m *SendGridMailer) buildMail(msg *MailMessage) *sgmail.SGMailV3 {
	mail := sgmail.NewV3Mail()
	mail.SetFrom(sgmail.NewEmail(m.fromName, m.from))
	mail.Subject = msg.Subject

	p := sgmail.NewPersonalization()
	p.AddTos(sgmail.NewEmail("", msg.To))
	mail.AddPersonalizations(p)

	if msg.Text != "" {
		mail.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	mail.AddContent(sgmail.NewContent("text/html", msg.HTML))
	return mail
}

func (m *SendGridMailer) Send(ctx context.Context, msg *MailMessage) error {
	request := sendgrid.GetRequest(m.apiKey, "/v3/mail/send", m.host)
	request.Method = "POST"
	request.Body = sgmail.GetRequestBody(m.buildMail(msg))

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}

	logger.Infof("[Email] Sent %q to %s via SendGrid", msg.Subject, msg.To)
	return nil
}

var errMailSuppressed = errors.New("email suppressed by preferences")

// MailService renders nothing itself: it checks preferences and hands the
// message to the configured Mailer.
type MailService struct {
	mailer Mailer
	prefs  *EmailPreferenceService
}

func NewMailService(mailer Mailer, prefs *EmailPreferenceService) *MailService {
	if mailer == nil {
		mailer = NoopMailer{}
	}
	return &MailService{mailer: mailer, prefs: prefs}
}

// Deliver sends task unless the recipient opted out of its category.
func (s *MailService) Deliver(ctx context.Context, task *EmailTask) error {
	if task.To == "" {
		return nil
	}
	if task.Category != "" && task.ProfileID != 0 && s.prefs != nil {
		allowed, err := s.prefs.Allows(ctx, task.ProfileID, task.Category)
		if err != nil {
			return err
		}
		if !allowed {
			logger.Debug().Uint("profile_id", task.ProfileID).Str("category", task.Category).Msg(errMailSuppressed.Error())
			return nil
		}
	}

	return s.mailer.Send(ctx, &MailMessage{
		To:      task.To,
		Subject: task.Subject,
		HTML:    task.HTML,
		Text:    task.Text,
	})
}

func emailLayout(siteName, heading, body string) string {
	var sb strings.Builder
	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<h2>%s</h2>", html.EscapeString(heading)))
	sb.WriteString(body)
	sb.WriteString(fmt.Sprintf("<hr><p style=\"color: #888; font-size: 12px;\">%s</p>", html.EscapeString(siteName)))
	sb.WriteString("</body></html>")
	return sb.String()
}

func welcomeEmail(siteName, name string) (subject, body string) {
	subject = fmt.Sprintf("Welcome to %s", siteName)
	content := fmt.Sprintf("<p>Hi %s,</p><p>Your account is ready. Introduce yourself in the forums, pick a course and start collecting points.</p>",
		html.EscapeString(name))
	return subject, emailLayout(siteName, subject, content)
}

func notificationEmail(siteName, siteURL, title, text, link string) (subject, body string) {
	subject = fmt.Sprintf("[%s] %s", siteName, title)
	var content strings.Builder
	if text != "" {
		content.WriteString(fmt.Sprintf("<p style=\"white-space: pre-wrap;\">%s</p>", html.EscapeString(text)))
	}
	if link != "" {
		href := strings.TrimRight(siteURL, "/") + link
		content.WriteString(fmt.Sprintf("<p><a href=\"%s\">Open in %s</a></p>", html.EscapeString(href), html.EscapeString(siteName)))
	}
	return subject, emailLayout(siteName, title, content.String())
}
