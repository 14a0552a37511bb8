// ABOUTME: Store methods for passwordless lead invitations.
// ABOUTME: Only sha256 token digests are stored; raw tokens live in the emailed link.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Invitation is a pending or accepted passwordless invitation for a lead.
// The {LeadID, Role} pair is the metadata contract applied to the profile
// when the invitee's account is provisioned.
type Invitation struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	Email      string
	Role       string
	TokenHash  string
	ExpiresAt  time.Time
	AcceptedAt *time.Time
	CreatedAt  time.Time
}

const invitationCols = "id, lead_id, email, role, token_hash, expires_at, accepted_at, created_at"

func scanInvitation(row pgx.Row) (*Invitation, error) {
	var inv Invitation
	err := row.Scan(&inv.ID, &inv.LeadID, &inv.Email, &inv.Role, &inv.TokenHash,
		&inv.ExpiresAt, &inv.AcceptedAt, &inv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// CreateInvitation inserts an invitation for a lead. Re-inviting the same lead
// creates a fresh row with a fresh token — there is no already-invited guard;
// duplicate invitations are harmless because provisioning is idempotent.
// Elevated: runs before any authenticated end-user context exists.
func (s *Store) CreateInvitation(ctx context.Context, leadID uuid.UUID, email, role, tokenHash string, expiresAt time.Time) (*Invitation, error) {
	var inv *Invitation
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var err error
		inv, err = scanInvitation(tx.QueryRow(ctx,
			`INSERT INTO invitations (lead_id, email, role, token_hash, expires_at)
			 VALUES ($1, $2, $3, $4, $5) RETURNING `+invitationCols,
			leadID, email, role, tokenHash, expiresAt))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}
	return inv, nil
}

// GetInvitationByTokenHash returns the invitation with the given token digest,
// or (nil, nil) if not found. Elevated: the caller is anonymous.
func (s *Store) GetInvitationByTokenHash(ctx context.Context, tokenHash string) (*Invitation, error) {
	var inv *Invitation
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var err error
		inv, err = scanInvitation(tx.QueryRow(ctx,
			`SELECT `+invitationCols+` FROM invitations WHERE token_hash = $1`, tokenHash))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get invitation by token: %w", err)
	}
	return inv, nil
}

// GetInvitation returns the invitation with the given ID, or (nil, nil) if
// not found. Used by the email job handler; elevated.
func (s *Store) GetInvitation(ctx context.Context, id uuid.UUID) (*Invitation, error) {
	var inv *Invitation
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var err error
		inv, err = scanInvitation(tx.QueryRow(ctx,
			`SELECT `+invitationCols+` FROM invitations WHERE id = $1`, id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}
