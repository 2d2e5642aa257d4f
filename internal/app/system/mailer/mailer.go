// internal/app/system/mailer/mailer.go
package mailer

import (
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"strings"

	"go.uber.org/zap"
)

// Config holds SMTP settings. An empty Host disables delivery; Send then
// logs the message instead, which is what local development wants.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

// Email is a single outbound message. TextBody and HTMLBody are sent as
// multipart/alternative when both are set.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer sends email over SMTP. Delivery failures are the caller's problem
// to handle; auth flows treat them as best-effort.
type Mailer struct {
	cfg Config
	log *zap.Logger
}

// New creates a Mailer with the given config.
func New(cfg Config, logger *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: logger}
}

// Enabled reports whether SMTP delivery is configured.
func (m *Mailer) Enabled() bool {
	return m.cfg.Host != ""
}

// Send delivers the email, or logs it when SMTP is not configured.
func (m *Mailer) Send(e Email) error {
	if !m.Enabled() {
		m.log.Info("smtp not configured, dropping email",
			zap.String("to", e.To),
			zap.String("subject", e.Subject))
		return nil
	}

	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}

	msg, err := buildMessage(from, e)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{e.To}, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	m.log.Debug("email sent",
		zap.String("to", e.To),
		zap.String("subject", e.Subject))
	return nil
}

func buildMessage(from string, e Email) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", e.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", e.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")

	switch {
	case e.TextBody != "" && e.HTMLBody != "":
		var body strings.Builder
		w := multipart.NewWriter(&body)

		fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", w.Boundary())

		// Plain part first so clients prefer the HTML alternative.
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type": {"text/plain; charset=UTF-8"},
		})
		if err != nil {
			return nil, err
		}
		fmt.Fprint(part, e.TextBody)

		part, err = w.CreatePart(textproto.MIMEHeader{
			"Content-Type": {"text/html; charset=UTF-8"},
		})
		if err != nil {
			return nil, err
		}
		fmt.Fprint(part, e.HTMLBody)

		if err := w.Close(); err != nil {
			return nil, err
		}
		b.WriteString(body.String())
	case e.HTMLBody != "":
		b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		b.WriteString(e.HTMLBody)
	default:
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(e.TextBody)
	}

	return []byte(b.String()), nil
}
