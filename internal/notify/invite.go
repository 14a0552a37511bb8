// ABOUTME: Job handler that delivers invitation emails from the invite_email queue.
// ABOUTME: The raw invite URL travels in the job payload; the DB keeps only the digest.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jmadsen/coachdesk/internal/store"
)

// InviteQueue is the job queue name for invitation emails.
const InviteQueue = "invite_email"

// InvitePayload is the job payload enqueued by the invitation issuer.
type InvitePayload struct {
	InvitationID uuid.UUID `json:"invitation_id"`
	InviteURL    string    `json:"invite_url"`
}

// InviteMailer sends invitation emails for queued jobs.
type InviteMailer struct {
	Store *store.Store
	SMTP  SmtpConfig
}

// Handle is the worker handler for InviteQueue. A missing or already-accepted
// invitation completes the job without sending — the invite was superseded.
func (m *InviteMailer) Handle(ctx context.Context, payload json.RawMessage) error {
	var p InvitePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("invite mailer: decode payload: %w", err)
	}

	inv, err := m.Store.GetInvitation(ctx, p.InvitationID)
	if err != nil {
		return fmt.Errorf("invite mailer: %w", err)
	}
	if inv == nil || inv.AcceptedAt != nil {
		slog.InfoContext(ctx, "invite email skipped", "invitation_id", p.InvitationID)
		return nil
	}

	lead, err := m.Store.GetLead(ctx, inv.LeadID)
	if err != nil {
		return fmt.Errorf("invite mailer: %w", err)
	}
	if lead == nil {
		slog.WarnContext(ctx, "invite email skipped: lead gone", "invitation_id", p.InvitationID)
		return nil
	}

	html, text, err := RenderInvite(InviteData{
		CompanyName: lead.CompanyName,
		InviteURL:   p.InviteURL,
		ExpiresAt:   inv.ExpiresAt.Format(time.RFC1123),
	})
	if err != nil {
		return fmt.Errorf("invite mailer: %w", err)
	}

	subject := fmt.Sprintf("Your CoachDesk portal for %s", lead.CompanyName)
	if err := EmailSend(ctx, m.SMTP, inv.Email, subject, html, text); err != nil {
		return fmt.Errorf("invite mailer: %w", err)
	}
	return nil
}
