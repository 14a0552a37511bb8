// ABOUTME: Store methods for leads (client companies) — the tenant entity.
// ABOUTME: Admin CRUD runs elevated; the portal self-read runs restricted.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Lead is a client company managed by the coaching practice. A lead doubles
// as the tenant: customer profiles reference it via company_id.
type Lead struct {
	ID          uuid.UUID
	CompanyName string
	ContactName string
	Email       string
	Phone       string
	Status      string
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LeadFilter holds the optional list filters for ListLeads.
type LeadFilter struct {
	Status string // exact match when non-empty
	Query  string // case-insensitive substring on company or contact name
	Limit  int32
	Offset int32
}

const leadCols = "id, company_name, contact_name, email, phone, status, notes, created_at, updated_at"

func scanLead(row pgx.Row) (*Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.CompanyName, &l.ContactName, &l.Email, &l.Phone,
		&l.Status, &l.Notes, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func collectLeads(rows pgx.Rows) ([]Lead, error) {
	defer rows.Close()
	var out []Lead
	for rows.Next() {
		var l Lead
		if err := rows.Scan(&l.ID, &l.CompanyName, &l.ContactName, &l.Email, &l.Phone,
			&l.Status, &l.Notes, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CreateLeadParams holds the fields for creating a lead.
type CreateLeadParams struct {
	CompanyName string
	ContactName string
	Email       string
	Phone       string
	Status      string
	Notes       string
}

// CreateLead inserts a lead. Admin-only; elevated.
func (s *Store) CreateLead(ctx context.Context, p CreateLeadParams) (*Lead, error) {
	if p.Status == "" {
		p.Status = "new"
	}
	var l *Lead
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var err error
		l, err = scanLead(tx.QueryRow(ctx,
			`INSERT INTO leads (company_name, contact_name, email, phone, status, notes)
			 VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+leadCols,
			p.CompanyName, p.ContactName, p.Email, p.Phone, p.Status, p.Notes))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}
	return l, nil
}

// GetLead returns the lead with the given ID, or (nil, nil) if not found.
// Admin-only; elevated.
func (s *Store) GetLead(ctx context.Context, id uuid.UUID) (*Lead, error) {
	var l *Lead
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var err error
		l, err = scanLead(tx.QueryRow(ctx, `SELECT `+leadCols+` FROM leads WHERE id = $1`, id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

// ListLeads returns leads matching filter, newest first. Admin-only; elevated.
// Filters are assembled dynamically with squirrel.
func (s *Store) ListLeads(ctx context.Context, filter LeadFilter) ([]Lead, error) {
	b := sq.Select(leadCols).From("leads").
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar)
	if filter.Status != "" {
		b = b.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		b = b.Where(sq.Or{
			sq.ILike{"company_name": like},
			sq.ILike{"contact_name": like},
		})
	}
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		b = b.Offset(uint64(filter.Offset))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lead query: %w", err)
	}

	var leads []Lead
	err = s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		leads, err = collectLeads(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return leads, nil
}

// UpdateLeadParams holds the mutable lead fields. Nil pointers are left unchanged.
type UpdateLeadParams struct {
	CompanyName *string
	ContactName *string
	Email       *string
	Phone       *string
	Status      *string
	Notes       *string
}

// UpdateLead applies the non-nil fields of p to the lead. Returns (nil, nil)
// if the lead does not exist. Admin-only; elevated.
func (s *Store) UpdateLead(ctx context.Context, id uuid.UUID, p UpdateLeadParams) (*Lead, error) {
	b := sq.Update("leads").
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + leadCols).
		PlaceholderFormat(sq.Dollar)
	if p.CompanyName != nil {
		b = b.Set("company_name", *p.CompanyName)
	}
	if p.ContactName != nil {
		b = b.Set("contact_name", *p.ContactName)
	}
	if p.Email != nil {
		b = b.Set("email", *p.Email)
	}
	if p.Phone != nil {
		b = b.Set("phone", *p.Phone)
	}
	if p.Status != nil {
		b = b.Set("status", *p.Status)
	}
	if p.Notes != nil {
		b = b.Set("notes", *p.Notes)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lead update: %w", err)
	}

	var l *Lead
	err = s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var err error
		l, err = scanLead(tx.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update lead: %w", err)
	}
	return l, nil
}

// DeleteLead removes the lead and, via FK cascade, its products, sessions,
// tasks, and invitations. Immediate and non-reversible at this layer.
// Admin-only; elevated. Returns false if no row was deleted.
func (s *Store) DeleteLead(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete lead: %w", err)
	}
	return deleted, nil
}

// GetOwnLead returns the caller's own company row through the restricted
// client, or (nil, nil) when the caller has no company or RLS hides the row.
func (s *Store) GetOwnLead(ctx context.Context, scope Scope) (*Lead, error) {
	var l *Lead
	err := s.RestrictedTx(ctx, scope, func(tx pgx.Tx) error {
		var err error
		// company_id predicate is defense in depth; RLS is the guard.
		l, err = scanLead(tx.QueryRow(ctx, `SELECT `+leadCols+` FROM leads WHERE id = $1`, scope.CompanyID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get own lead: %w", err)
	}
	return l, nil
}
