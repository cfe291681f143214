package smtp

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/thinlam/otp-server/internal/config"
	"github.com/thinlam/otp-server/internal/domain"
)

// Mailer sends the branded OTP email through the shared SMTP relay using
// the tenant's own mailbox credentials as both sender and auth identity.
type Mailer interface {
	Send(t *domain.Tenant, to, subject, html, text string) error
}

type mailer struct {
	host string
	port string
}

func NewMailer(cfg *config.Config) Mailer {
	return &mailer{host: cfg.SMTPHost, port: cfg.SMTPPort}
}

func (m *mailer) Send(t *domain.Tenant, to, subject, html, text string) error {
	msg := buildMessage(t.FromHeader(), to, subject, html, text)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if t.SMTPUsername != "" {
		auth = smtp.PlainAuth("", t.SMTPUsername, t.SMTPPassword, m.host)
	}

	return smtp.SendMail(addr, auth, t.SMTPUsername, []string{to}, msg)
}

// buildMessage assembles a multipart/alternative MIME message carrying
// both the plain-text and HTML bodies.
func buildMessage(from, to, subject, html, text string) []byte {
	const boundary = "otp-mail-boundary"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("X-Auto-Response-Suppress: All\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(text)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(html)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
