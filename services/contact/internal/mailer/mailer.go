package mailer

import (
	"context"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"contactapi/internal/util"
)

// DefaultTimeout bounds one SMTP session when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// Security is the transport encryption mode of an SMTP session.
type Security int

const (
	// SecurityImplicitTLS wraps the connection in TLS from the first byte (port 465).
	SecurityImplicitTLS Security = iota + 1
	// SecuritySTARTTLS upgrades a plaintext connection before authenticating (port 587).
	SecuritySTARTTLS
)

func (s Security) String() string {
	switch s {
	case SecurityImplicitTLS:
		return "implicit-tls"
	case SecuritySTARTTLS:
		return "starttls"
	default:
		return "unknown"
	}
}

// SecurityForPort maps the configured port to its encryption mode.
func SecurityForPort(port int) (Security, error) {
	switch port {
	case 465:
		return SecurityImplicitTLS, nil
	case 587:
		return SecuritySTARTTLS, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedPort, port)
	}
}

// Config describes the SMTP endpoint and the fixed envelope of notification mails.
type Config struct {
	Host           string
	Port           int
	Username       string
	Password       string
	Subject        string
	SenderName     string
	SenderEmail    string
	RecipientName  string
	RecipientEmail string
	Timeout        time.Duration
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer sends one notification mail per call.
type Mailer struct {
	cfg       Config
	newSender func(Config, Security) (sender, error)
}

// New constructs a Mailer. Port support is checked on every Send, not here,
// so a misconfigured port surfaces as a recorded error per submission.
func New(cfg Config) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Host = strings.TrimSpace(cfg.Host)
	return &Mailer{cfg: cfg, newSender: newSMTPClient}
}

// Send delivers body to the configured recipient with Reply-To set to the submitter.
func (m *Mailer) Send(ctx context.Context, replyName, replyEmail, body string) error {
	security, err := SecurityForPort(m.cfg.Port)
	if err != nil {
		return err
	}
	msg, err := m.buildMessage(ctx, replyName, replyEmail, body)
	if err != nil {
		return err
	}
	client, err := m.newSender(m.cfg, security)
	if err != nil {
		return fmt.Errorf("init smtp client: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail via %s:%d (%s): %w", m.cfg.Host, m.cfg.Port, security, err)
	}
	return nil
}

func (m *Mailer) buildMessage(ctx context.Context, replyName, replyEmail, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.SenderName, m.cfg.SenderEmail); err != nil {
		return nil, fmt.Errorf("%w: sender %q: %v", ErrInvalidAddress, m.cfg.SenderEmail, err)
	}
	if err := msg.AddToFormat(m.cfg.RecipientName, m.cfg.RecipientEmail); err != nil {
		return nil, fmt.Errorf("%w: recipient %q: %v", ErrInvalidAddress, m.cfg.RecipientEmail, err)
	}
	// Submitter fields are opaque; an unparsable address only loses Reply-To.
	replyTo := netmail.Address{Name: replyName, Address: replyEmail}
	if err := msg.ReplyTo(replyTo.String()); err != nil {
		util.LoggerFromContext(ctx).Warn("reply-to dropped", "reply_email", replyEmail, "err", err)
	}
	msg.Subject(m.cfg.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func newSMTPClient(cfg Config, security Security) (sender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
	}
	switch security {
	case SecurityImplicitTLS:
		opts = append(opts, mail.WithSSL())
	case SecuritySTARTTLS:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}
