package service

import (
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/emmanuel-dcoder/teevil-api/config"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var mailTemplates embed.FS

const (
	MailTemplateWithdrawalRequest  = "withdrawal_request"
	MailTemplateWithdrawalApproval = "withdrawal_approval"
)

// MailData is the template model for withdrawal mails.
type MailData struct {
	Name      string
	Amount    string
	Reference string
	Status    string
}

// MailService renders embedded HTML templates and sends them over SMTP.
// With no SMTP host configured it logs and drops every message.
type MailService struct {
	cfg       config.MailConfig
	templates *template.Template
	logger    zerolog.Logger
}

func NewMailService(cfg config.MailConfig, logger zerolog.Logger) (*MailService, error) {
	tpl, err := template.ParseFS(mailTemplates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &MailService{
		cfg:       cfg,
		templates: tpl,
		logger:    logger.With().Str("component", "mail").Logger(),
	}, nil
}

func (s *MailService) Enabled() bool {
	return s.cfg.Host != ""
}

func (s *MailService) Send(ctx context.Context, to, subject, templateName string, data interface{}) error {
	msg, err := s.buildMessage(to, subject, templateName, data)
	if err != nil {
		return err
	}
	if !s.Enabled() {
		s.logger.Debug().Str("to", to).Str("template", templateName).Msg("mail disabled, dropping message")
		return nil
	}
	client, err := mail.NewClient(s.cfg.Host,
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *MailService) buildMessage(to, subject, templateName string, data interface{}) (*mail.Msg, error) {
	tpl := s.templates.Lookup(templateName + ".html")
	if tpl == nil {
		return nil, fmt.Errorf("unknown mail template %q", templateName)
	}
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(subject)
	if err := msg.SetBodyHTMLTemplate(tpl, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", templateName, err)
	}
	return msg, nil
}
