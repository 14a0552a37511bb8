// ABOUTME: Store methods for lead products (services/engagements sold to a company).
// ABOUTME: Admin CRUD runs elevated; portal listing runs restricted.
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

// LeadProduct is a product or engagement attached to a lead.
type LeadProduct struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	Name        string
	Description string
	Status      string
	CreatedAt   time.Time
}

const productCols = "id, company_id, name, description, status, created_at"

func collectProducts(rows pgx.Rows) ([]LeadProduct, error) {
	defer rows.Close()
	var out []LeadProduct
	for rows.Next() {
		var p LeadProduct
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Description, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateLeadProduct inserts a product for the given lead. Admin-only; elevated.
func (s *Store) CreateLeadProduct(ctx context.Context, companyID uuid.UUID, name, description, status string) (*LeadProduct, error) {
	if status == "" {
		status = "active"
	}
	var p LeadProduct
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO lead_products (company_id, name, description, status)
			 VALUES ($1, $2, $3, $4) RETURNING `+productCols,
			companyID, name, description, status).
			Scan(&p.ID, &p.CompanyID, &p.Name, &p.Description, &p.Status, &p.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("create lead product: %w", err)
	}
	return &p, nil
}

// ListLeadProducts returns all products for a lead. Admin-only; elevated.
func (s *Store) ListLeadProducts(ctx context.Context, companyID uuid.UUID) ([]LeadProduct, error) {
	var products []LeadProduct
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+productCols+` FROM lead_products WHERE company_id = $1 ORDER BY created_at`, companyID)
		if err != nil {
			return err
		}
		products, err = collectProducts(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list lead products: %w", err)
	}
	return products, nil
}

// UpdateLeadProductParams holds the mutable product fields. Nil pointers are
// left unchanged.
type UpdateLeadProductParams struct {
	Name        *string
	Description *string
	Status      *string
}

// UpdateLeadProduct applies the non-nil fields of p. Returns (nil, nil) if the
// product does not exist. Admin-only; elevated.
func (s *Store) UpdateLeadProduct(ctx context.Context, id uuid.UUID, p UpdateLeadProductParams) (*LeadProduct, error) {
	b := sq.Update("lead_products").
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + productCols).
		PlaceholderFormat(sq.Dollar)
	if p.Name != nil {
		b = b.Set("name", *p.Name)
	}
	if p.Description != nil {
		b = b.Set("description", *p.Description)
	}
	if p.Status != nil {
		b = b.Set("status", *p.Status)
	}
	if p.Name == nil && p.Description == nil && p.Status == nil {
		return s.getLeadProduct(ctx, id)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build product update: %w", err)
	}

	var product *LeadProduct
	err = s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var lp LeadProduct
		err := tx.QueryRow(ctx, query, args...).
			Scan(&lp.ID, &lp.CompanyID, &lp.Name, &lp.Description, &lp.Status, &lp.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		product = &lp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update lead product: %w", err)
	}
	return product, nil
}

func (s *Store) getLeadProduct(ctx context.Context, id uuid.UUID) (*LeadProduct, error) {
	var product *LeadProduct
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var lp LeadProduct
		err := tx.QueryRow(ctx, `SELECT `+productCols+` FROM lead_products WHERE id = $1`, id).
			Scan(&lp.ID, &lp.CompanyID, &lp.Name, &lp.Description, &lp.Status, &lp.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		product = &lp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get lead product: %w", err)
	}
	return product, nil
}

// DeleteLeadProduct removes a product. Admin-only; elevated.
// Returns false if no row was deleted.
func (s *Store) DeleteLeadProduct(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM lead_products WHERE id = $1`, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete lead product: %w", err)
	}
	return deleted, nil
}

// ListOwnProducts returns the caller's company products through the restricted
// client. A caller with no company gets an empty slice — RLS matches nothing
// for the nil-UUID scope.
func (s *Store) ListOwnProducts(ctx context.Context, scope Scope) ([]LeadProduct, error) {
	var products []LeadProduct
	err := s.RestrictedTx(ctx, scope, func(tx pgx.Tx) error {
		// company_id predicate is defense in depth; RLS is the guard.
		rows, err := tx.Query(ctx,
			`SELECT `+productCols+` FROM lead_products WHERE company_id = $1 ORDER BY created_at`,
			scope.CompanyID)
		if err != nil {
			return err
		}
		products, err = collectProducts(rows)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("list own products: %w", err)
	}
	return products, nil
}
