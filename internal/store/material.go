// ABOUTME: Store methods for shared materials (storage-backed file resources).
// ABOUTME: The restricted read path is what makes unpublished materials invisible.
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

// Material is metadata for a file held in object storage. This layer owns the
// row and the right to mint download access; the bytes live elsewhere.
type Material struct {
	ID          uuid.UUID
	Title       string
	Description string
	StoragePath string
	ContentType string
	Published   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const materialCols = "id, title, description, storage_path, content_type, published, created_at, updated_at"

func scanMaterial(row pgx.Row) (*Material, error) {
	var m Material
	err := row.Scan(&m.ID, &m.Title, &m.Description, &m.StoragePath, &m.ContentType,
		&m.Published, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func collectMaterials(rows pgx.Rows) ([]Material, error) {
	defer rows.Close()
	var out []Material
	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.StoragePath, &m.ContentType,
			&m.Published, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateMaterialParams holds the fields for creating a material.
type CreateMaterialParams struct {
	Title       string
	Description string
	StoragePath string
	ContentType string
	Published   bool
}

// CreateMaterial inserts a material row. Admin-only; elevated.
func (s *Store) CreateMaterial(ctx context.Context, p CreateMaterialParams) (*Material, error) {
	if p.ContentType == "" {
		p.ContentType = "application/octet-stream"
	}
	var m *Material
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var err error
		m, err = scanMaterial(tx.QueryRow(ctx,
			`INSERT INTO materials (title, description, storage_path, content_type, published)
			 VALUES ($1, $2, $3, $4, $5) RETURNING `+materialCols,
			p.Title, p.Description, p.StoragePath, p.ContentType, p.Published))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create material: %w", err)
	}
	return m, nil
}

// GetMaterial returns the material with the given ID regardless of published
// state, or (nil, nil) if not found. Admin-only; elevated.
func (s *Store) GetMaterial(ctx context.Context, id uuid.UUID) (*Material, error) {
	var m *Material
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var err error
		m, err = scanMaterial(tx.QueryRow(ctx, `SELECT `+materialCols+` FROM materials WHERE id = $1`, id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get material: %w", err)
	}
	return m, nil
}

// ListMaterials returns all materials including unpublished ones.
// Admin-only; elevated.
func (s *Store) ListMaterials(ctx context.Context) ([]Material, error) {
	var materials []Material
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+materialCols+` FROM materials ORDER BY created_at DESC`)
		if err != nil {
			return err
		}
		materials, err = collectMaterials(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	return materials, nil
}

// UpdateMaterialParams holds the mutable material fields. Nil pointers are
// left unchanged.
type UpdateMaterialParams struct {
	Title       *string
	Description *string
	Published   *bool
}

// UpdateMaterial applies the non-nil fields of p. Returns (nil, nil) if the
// material does not exist. Admin-only; elevated.
func (s *Store) UpdateMaterial(ctx context.Context, id uuid.UUID, p UpdateMaterialParams) (*Material, error) {
	b := sq.Update("materials").
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + materialCols).
		PlaceholderFormat(sq.Dollar)
	if p.Title != nil {
		b = b.Set("title", *p.Title)
	}
	if p.Description != nil {
		b = b.Set("description", *p.Description)
	}
	if p.Published != nil {
		b = b.Set("published", *p.Published)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build material update: %w", err)
	}

	var m *Material
	err = s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var err error
		m, err = scanMaterial(tx.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update material: %w", err)
	}
	return m, nil
}

// DeleteMaterial removes a material row. The stored bytes are a storage-layer
// concern. Admin-only; elevated. Returns false if no row was deleted.
func (s *Store) DeleteMaterial(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM materials WHERE id = $1`, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete material: %w", err)
	}
	return deleted, nil
}

// GetVisibleMaterial returns the material through the restricted client, or
// (nil, nil) when the row does not exist or RLS hides it (unpublished). The
// caller cannot tell the two cases apart — that is the point.
func (s *Store) GetVisibleMaterial(ctx context.Context, scope Scope, id uuid.UUID) (*Material, error) {
	var m *Material
	err := s.RestrictedTx(ctx, scope, func(tx pgx.Tx) error {
		var err error
		m, err = scanMaterial(tx.QueryRow(ctx, `SELECT `+materialCols+` FROM materials WHERE id = $1`, id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get visible material: %w", err)
	}
	return m, nil
}

// ListVisibleMaterials returns the materials visible to the caller through the
// restricted client (published rows only for customers).
func (s *Store) ListVisibleMaterials(ctx context.Context, scope Scope) ([]Material, error) {
	var materials []Material
	err := s.RestrictedTx(ctx, scope, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+materialCols+` FROM materials ORDER BY created_at DESC`)
		if err != nil {
			return err
		}
		materials, err = collectMaterials(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list visible materials: %w", err)
	}
	return materials, nil
}
