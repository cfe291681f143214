package otp

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/thinlam/otp-server/internal/domain"
)

// emailData feeds the branded OTP template.
type emailData struct {
	Brand    string
	Code     string
	Email    string
	Validity string
	Support  string
	Year     int
	Theme    domain.Theme
}

// validityLabel renders the TTL for the email copy, rounding up to whole
// minutes so a 90s window reads "2 minutes" rather than "1".
func validityLabel(ttl time.Duration) string {
	m := int((ttl + time.Minute - 1) / time.Minute)
	if m <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}

var emailTmpl = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"/><meta name="viewport" content="width=device-width,initial-scale=1"/>
<title>{{.Brand}} verification code</title>
<style>body{margin:0;padding:0;width:100%!important;background:{{.Theme.Background}};}a{text-decoration:none}</style>
</head>
<body>
<table role="presentation" width="100%" style="background:{{.Theme.Background}};padding:24px 12px;" cellpadding="0" cellspacing="0" border="0">
<tr><td align="center">
  <table role="presentation" width="560" style="background:#fff;border:1px solid {{.Theme.Border}};border-radius:12px;overflow:hidden;" cellpadding="0" cellspacing="0" border="0">
    <tr><td style="background:{{.Theme.Primary}};padding:20px 24px;">
      <h1 style="margin:0;font-family:system-ui,sans-serif;font-size:18px;line-height:24px;color:#fff;">{{.Brand}}</h1>
    </td></tr>
    <tr><td style="padding:24px;">
      <p style="margin:0 0 12px;font-family:system-ui,sans-serif;font-size:16px;color:{{.Theme.Text}};">Hello{{if .Email}}, <strong>{{.Email}}</strong>{{end}},</p>
      <p style="margin:0 0 16px;font-family:system-ui,sans-serif;font-size:16px;color:{{.Theme.Text}};">Here is your <strong>verification code (OTP)</strong>. Enter it to continue verifying your account.</p>
      <table role="presentation" width="100%" style="margin:8px 0 16px;" cellpadding="0" cellspacing="0" border="0">
        <tr><td align="center" style="padding:16px;border:1px dashed {{.Theme.Border}};border-radius:10px;background:#F3F4F6;">
          <div style="font-family:ui-monospace,monospace;font-size:28px;letter-spacing:8px;color:{{.Theme.Text}};font-weight:700;">{{.Code}}</div>
          <div style="font-family:system-ui,sans-serif;font-size:13px;color:{{.Theme.Muted}};margin-top:8px;">The code is valid for {{.Validity}}.</div>
        </td></tr>
      </table>
      <p style="margin:0 0 12px;font-family:system-ui,sans-serif;font-size:14px;color:{{.Theme.Muted}};">If you didn't request this code, ignore this email or contact support.</p>
      <ul style="margin:8px 0 0 18px;padding:0;font-family:system-ui,sans-serif;font-size:14px;color:{{.Theme.Text}};">
        <li>Never share the code with anyone.</li>
        <li>Make sure you are using the official {{.Brand}} app or website.</li>
      </ul>
    </td></tr>
    <tr><td style="padding:16px 24px;border-top:1px solid {{.Theme.Border}};background:#fafafa;">
      <p style="margin:0 0 6px;font-family:system-ui,sans-serif;font-size:12px;color:{{.Theme.Muted}};">Need help? Contact <a href="mailto:{{.Support}}" style="color:{{.Theme.Primary}};">{{.Support}}</a></p>
      <p style="margin:0;font-family:system-ui,sans-serif;font-size:12px;color:{{.Theme.Muted}};">© {{.Year}} {{.Brand}}. All rights reserved.</p>
    </td></tr>
  </table>
</td></tr></table>
</body></html>`))

// renderEmail builds the HTML and plain-text bodies for one OTP challenge.
func renderEmail(t *domain.Tenant, email, code string, ttl time.Duration) (html, text string, err error) {
	data := emailData{
		Brand:    t.DisplayName,
		Code:     code,
		Email:    email,
		Validity: validityLabel(ttl),
		Support:  t.Support,
		Year:     time.Now().Year(),
		Theme:    t.Theme,
	}

	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render otp email: %w", err)
	}

	text = strings.Join([]string{
		fmt.Sprintf("%s - Your verification code: %s", data.Brand, code),
		"",
		fmt.Sprintf("The code is valid for %s.", data.Validity),
		"Never share the code with anyone.",
		"",
		fmt.Sprintf("If you didn't request this code, ignore this email or contact: %s", data.Support),
		"",
		fmt.Sprintf("© %d %s.", data.Year, data.Brand),
	}, "\n")

	return buf.String(), text, nil
}
