// ABOUTME: Template rendering for the invitation email.
// ABOUTME: Templates parsed once at init; rendered per delivery.
package notify

import (
	"bytes"
	"fmt"
	htmltpl "html/template"
	texttpl "text/template"
)

// InviteData is the template input for an invitation email.
type InviteData struct {
	CompanyName string
	InviteURL   string
	ExpiresAt   string
}

var inviteHTML = htmltpl.Must(htmltpl.New("invite").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; max-width: 560px; margin: 0 auto;">
  <h2>You have been invited to CoachDesk</h2>
  <p>{{.CompanyName}} now has a coaching portal. Use the link below to set up
  your account and see your company's sessions, tasks, and materials.</p>
  <p><a href="{{.InviteURL}}" style="display: inline-block; padding: 10px 18px; background: #2d6cdf; color: #fff; text-decoration: none; border-radius: 4px;">Accept invitation</a></p>
  <p style="color: #666; font-size: 13px;">This link expires on {{.ExpiresAt}}.
  If you were not expecting this invitation you can ignore this email.</p>
</body>
</html>
`))

var inviteText = texttpl.Must(texttpl.New("invite").Parse(`You have been invited to CoachDesk

{{.CompanyName}} now has a coaching portal. Open the link below to set up
your account and see your company's sessions, tasks, and materials.

{{.InviteURL}}

This link expires on {{.ExpiresAt}}. If you were not expecting this
invitation you can ignore this email.
`))

// RenderInvite renders the HTML and plaintext bodies of an invitation email.
func RenderInvite(data InviteData) (html, text string, err error) {
	var hb, tb bytes.Buffer
	if err := inviteHTML.Execute(&hb, data); err != nil {
		return "", "", fmt.Errorf("render invite html: %w", err)
	}
	if err := inviteText.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("render invite text: %w", err)
	}
	return hb.String(), tb.String(), nil
}
