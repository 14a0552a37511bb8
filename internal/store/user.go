// ABOUTME: Store methods for user accounts and profiles.
// ABOUTME: The profile lookup is the one sanctioned pre-gate elevated read.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// User is an account row. PasswordHash is nil for passwordless (invited)
// customers.
type User struct {
	ID           uuid.UUID
	Email        string
	DisplayName  string
	PasswordHash *string
	TokenVersion int
	CreatedAt    time.Time
}

// Profile is the durable role/tenant record for a user. CompanyID is nil for
// admins (admin authority is global) and for customers not yet linked to a
// company.
type Profile struct {
	UserID    uuid.UUID
	Role      string
	CompanyID *uuid.UUID
	CreatedAt time.Time
}

// Scope converts the profile into the restricted-read scope. A nil CompanyID
// becomes uuid.Nil, which matches no rows under RLS.
func (p *Profile) Scope() Scope {
	sc := Scope{UserID: p.UserID}
	if p.CompanyID != nil {
		sc.CompanyID = *p.CompanyID
	}
	return sc
}

const userCols = "id, email, display_name, password_hash, token_version, created_at"

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.TokenVersion, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user row. passwordHash may be nil for passwordless
// accounts. Elevated: account provisioning has no tenant context.
func (s *Store) CreateUser(ctx context.Context, email, displayName string, passwordHash *string) (*User, error) {
	var u *User
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var err error
		u, err = scanUser(tx.QueryRow(ctx,
			`INSERT INTO users (email, display_name, password_hash) VALUES ($1, $2, $3) RETURNING `+userCols,
			email, displayName, passwordHash))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByID returns the user with the given ID, or (nil, nil) if not found.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u *User
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var err error
		u, err = scanUser(tx.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetUserByEmail returns the user with the given email, or (nil, nil) if not found.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u *User
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var err error
		u, err = scanUser(tx.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetProfile returns the profile for userID, or (nil, nil) if no profile row
// exists. Executes with RLS bypass — called from the role gate before any
// scope is established.
func (s *Store) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var p *Profile
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var prof Profile
		err := tx.QueryRow(ctx,
			`SELECT user_id, role, company_id, created_at FROM profiles WHERE user_id = $1`,
			userID).Scan(&prof.UserID, &prof.Role, &prof.CompanyID, &prof.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		p = &prof
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// CreateProfile inserts a profile row for an existing user.
func (s *Store) CreateProfile(ctx context.Context, userID uuid.UUID, role string, companyID *uuid.UUID) error {
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO profiles (user_id, role, company_id) VALUES ($1, $2, $3)`,
			userID, role, companyID)
		return err
	})
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// BumpTokenVersion increments users.token_version, invalidating all
// outstanding refresh tokens for the user.
func (s *Store) BumpTokenVersion(ctx context.Context, userID uuid.UUID) error {
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE users SET token_version = token_version + 1 WHERE id = $1`, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("bump token version: %w", err)
	}
	return nil
}

// ProvisionInvitedUser atomically creates the user and customer profile for an
// accepted invitation and marks the invitation used. This is the provisioning
// step the invite metadata contract feeds: {company_id, role} from the
// invitation row become the new profile.
func (s *Store) ProvisionInvitedUser(ctx context.Context, inv *Invitation, displayName string) (*User, error) {
	var u *User
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var err error
		u, err = scanUser(tx.QueryRow(ctx,
			`INSERT INTO users (email, display_name) VALUES ($1, $2) RETURNING `+userCols,
			inv.Email, displayName))
		if err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO profiles (user_id, role, company_id) VALUES ($1, $2, $3)`,
			u.ID, inv.Role, inv.LeadID); err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE invitations SET accepted_at = now() WHERE id = $1`, inv.ID); err != nil {
			return fmt.Errorf("mark invitation accepted: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("provision invited user: %w", err)
	}
	return u, nil
}
