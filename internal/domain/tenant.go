package domain

import "fmt"

// Theme holds the brand colors used by the OTP email template.
type Theme struct {
	Primary    string
	Accent     string
	Text       string
	Muted      string
	Border     string
	Background string
}

// DefaultTheme is applied to tenants that don't override any colors.
func DefaultTheme() Theme {
	return Theme{
		Primary:    "#2563EB",
		Accent:     "#F59E0B",
		Text:       "#111827",
		Muted:      "#6B7280",
		Border:     "#E5E7EB",
		Background: "#F9FAFB",
	}
}

// Tenant is one independently configured brand served by this deployment.
// Loaded once at startup; read-only afterwards.
type Tenant struct {
	Key         string
	DisplayName string

	// Sender identity. SMTPUsername doubles as the sender mailbox.
	SMTPUsername string
	SMTPPassword string
	From         string
	Subject      string
	Support      string

	Theme Theme

	// Identity-provider directory handles. DirectoryTable names the
	// DynamoDB users table; ServiceAccount is the raw Identity Toolkit
	// service-account credential (JSON or base64-encoded JSON).
	DirectoryTable string
	ServiceAccount string
}

// HasSender reports whether the tenant carries usable SMTP credentials.
func (t *Tenant) HasSender() bool {
	return t.SMTPUsername != "" && t.SMTPPassword != ""
}

// FromHeader returns the RFC 5322 From value, deriving a display-name form
// when no explicit override was configured.
func (t *Tenant) FromHeader() string {
	if t.From != "" {
		return t.From
	}
	return fmt.Sprintf("%s <%s>", t.DisplayName, t.SMTPUsername)
}
