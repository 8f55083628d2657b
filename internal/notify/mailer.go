package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"

	"wedhub/internal/logging"
	"wedhub/internal/models"
)

// codeEmail renders the subject and bodies of a verification code email.
func codeEmail(appName string, purpose models.CodePurpose, code string) (subject, plain, html string) {
	switch purpose {
	case models.PurposePasswordReset:
		subject = appName + ": password reset code"
		plain = fmt.Sprintf("Your password reset code is %s. It expires in 10 minutes.\nIf you did not request this, ignore this email.", code)
		html = fmt.Sprintf(`
		<h3>Password reset requested</h3>
		<p>Your password reset code is <strong>%s</strong>.</p>
		<p>It expires in 10 minutes. If you did not request this, you can ignore this email.</p>
	`, code)
	default:
		subject = appName + ": confirm your email"
		plain = fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code)
		html = fmt.Sprintf(`
		<h2>Welcome to %s!</h2>
		<p>Your verification code is <strong>%s</strong>.</p>
		<p>It expires in 10 minutes.</p>
	`, appName, code)
	}
	return subject, plain, html
}

// SMTPMailer sends codes through an SMTP relay.
type SMTPMailer struct {
	dialer  *gomail.Dialer
	from    string
	appName string
}

func NewSMTPMailer(host string, port int, user, password, from, appName string) *SMTPMailer {
	return &SMTPMailer{
		dialer:  gomail.NewDialer(host, port, user, password),
		from:    from,
		appName: appName,
	}
}

func (s *SMTPMailer) SendVerificationCode(_ context.Context, email string, purpose models.CodePurpose, code string) error {
	subject, plain, html := codeEmail(s.appName, purpose, code)

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plain)
	m.AddAlternative("text/html", html)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send %s email: %w", purpose, err)
	}
	return nil
}

// SendGridMailer sends codes through the SendGrid v3 API.
type SendGridMailer struct {
	client   *sendgrid.Client
	fromName string
	from     string
	sandbox  bool
}

func NewSendGridMailer(apiKey, fromName, from string, sandbox bool) *SendGridMailer {
	return &SendGridMailer{
		client:   sendgrid.NewSendClient(apiKey),
		fromName: fromName,
		from:     from,
		sandbox:  sandbox,
	}
}

func (s *SendGridMailer) SendVerificationCode(ctx context.Context, email string, purpose models.CodePurpose, code string) error {
	subject, plain, html := codeEmail(s.fromName, purpose, code)
	msg := mail.NewSingleEmail(mail.NewEmail(s.fromName, s.from), subject, mail.NewEmail("", email), plain, html)
	if s.sandbox {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send %s email via sendgrid: %w", purpose, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogMailer only logs. Used in development when no mail transport is set.
type LogMailer struct{}

func (LogMailer) SendVerificationCode(_ context.Context, email string, purpose models.CodePurpose, code string) error {
	logging.Logger.Infof("[mail][dry-run] to=%s purpose=%s code=%s", email, purpose, code)
	return nil
}
