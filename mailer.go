package accounts

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/gofiber/template/django/v3"
)

// Mailer delivers the transactional notifications. Implementations are
// best-effort collaborators: command handlers never roll back on mail
// failures.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
	SendPasswordResetEmail(ctx context.Context, email, token string) error
	SendProfileCreationEmail(ctx context.Context, email, token string) error
}

// MailRenderer renders HTML bodies from the embedded django templates.
type MailRenderer struct {
	engine *django.Engine
	appURL string
}

// NewMailRenderer loads the embedded mail templates. appURL is the public
// base used to build token links.
func NewMailRenderer(appURL string) (*MailRenderer, error) {
	engine := django.NewFileSystem(MailTemplatesFS(), ".html")
	if err := engine.Load(); err != nil {
		return nil, err
	}

	return &MailRenderer{
		engine: engine,
		appURL: strings.TrimRight(appURL, "/"),
	}, nil
}

// Render produces the HTML body for the named template.
func (r *MailRenderer) Render(name string, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := r.engine.Render(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (r *MailRenderer) verificationURL(token string) string {
	return fmt.Sprintf("%s/auth/verify?token=%s", r.appURL, token)
}

func (r *MailRenderer) passwordResetURL(token string) string {
	return fmt.Sprintf("%s/auth/password-reset?token=%s", r.appURL, token)
}

func (r *MailRenderer) profileCreationURL(token string) string {
	return fmt.Sprintf("%s/auth/complete-profile?token=%s", r.appURL, token)
}

// SMTPMailer sends rendered mails through a plain SMTP relay. There is no
// mail client dependency; net/smtp is enough for the three notification
// kinds this backend sends.
type SMTPMailer struct {
	addr     string
	from     string
	auth     smtp.Auth
	renderer *MailRenderer
	logger   Logger
}

// NewSMTPMailer builds the production mailer. addr is host:port; auth may
// be nil for unauthenticated relays.
func NewSMTPMailer(addr, from string, auth smtp.Auth, renderer *MailRenderer) *SMTPMailer {
	return &SMTPMailer{
		addr:     addr,
		from:     from,
		auth:     auth,
		renderer: renderer,
		logger:   defLogger{},
	}
}

func (m *SMTPMailer) WithLogger(logger Logger) *SMTPMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

func (m *SMTPMailer) SendVerificationEmail(ctx context.Context, email, token string) error {
	body, err := m.renderer.Render("verify", map[string]any{
		"url": m.renderer.verificationURL(token),
	})
	if err != nil {
		return err
	}
	return m.send(ctx, email, "Verify your email address", body)
}

func (m *SMTPMailer) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	body, err := m.renderer.Render("password_reset", map[string]any{
		"url": m.renderer.passwordResetURL(token),
	})
	if err != nil {
		return err
	}
	return m.send(ctx, email, "Reset your password", body)
}

func (m *SMTPMailer) SendProfileCreationEmail(ctx context.Context, email, token string) error {
	body, err := m.renderer.Render("invite", map[string]any{
		"url": m.renderer.profileCreationURL(token),
	})
	if err != nil {
		return err
	}
	return m.send(ctx, email, "You have been invited", body)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, body string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")

	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg)); err != nil {
		m.logger.Error("smtp send to %s failed: %v", to, err)
		return err
	}

	m.logger.Debug("mail %q sent to %s", subject, to)
	return nil
}

// LogMailer writes the token links to the logger instead of sending mail.
// Used in development and tests.
type LogMailer struct {
	logger Logger
}

func NewLogMailer(logger Logger) *LogMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendVerificationEmail(_ context.Context, email, token string) error {
	m.logger.Info("verification mail for %s: /auth/verify?token=%s", email, token)
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(_ context.Context, email, token string) error {
	m.logger.Info("password reset mail for %s: /auth/password-reset?token=%s", email, token)
	return nil
}

func (m *LogMailer) SendProfileCreationEmail(_ context.Context, email, token string) error {
	m.logger.Info("invitation mail for %s: /auth/complete-profile?token=%s", email, token)
	return nil
}
