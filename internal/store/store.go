// Package store provides the data access layer. All queries run inside one of
// two transaction wrappers: RestrictedTx carries the caller's identity so that
// Postgres row-level security filters rows to the caller's company, and
// ElevatedTx bypasses RLS for administrative mutations and cross-tenant
// lookups. Handlers never touch the pool directly — the privilege level of
// every query is visible at the store method that wraps it.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the central data access object.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by pool. The pool must connect as a role without
// BYPASSRLS (coachdesk_app in production) or restricted reads are not
// actually restricted.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool returns the underlying pgxpool for callers that need native pgx
// operations (migrations in tests, health checks).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Scope identifies the caller of a restricted read. CompanyID is uuid.Nil for
// callers with no associated company; the nil UUID matches no rows, so such a
// caller sees an empty result set rather than an error.
type Scope struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
}

// RestrictedTx runs fn inside a transaction scoped to the caller: RLS policies
// on tenant tables filter rows to scope.CompanyID for the duration of the
// transaction. Safe for connection pooling: SET LOCAL resets on commit or
// rollback.
//
// This is the sole enforcement point for tenant isolation on the read path.
func (s *Store) RestrictedTx(ctx context.Context, scope Scope, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin restricted tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on panic or fn error
	// SET LOCAL does not accept parameterized values in PostgreSQL; formatting
	// is safe here because both IDs are typed uuid.UUID, not user-supplied text.
	stmt := fmt.Sprintf("SET LOCAL app.user_id = '%s'; SET LOCAL app.company_id = '%s'",
		scope.UserID, scope.CompanyID)
	if _, err := tx.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("set scope: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ElevatedTx runs fn inside a transaction with RLS bypass enabled. ONLY for
// code paths already gated by requireAdmin, plus the three sanctioned system
// actions: the profile lookup inside the role gate, invitation issuance
// metadata, and invitation acceptance provisioning.
func (s *Store) ElevatedTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin elevated tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if _, err := tx.Exec(ctx, "SET LOCAL app.bypass_rls = 'on'"); err != nil {
		return fmt.Errorf("set bypass_rls: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
