// ABOUTME: Store methods for coaching sessions scheduled with a lead.
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

// CoachingSession is a scheduled coaching appointment for a company.
type CoachingSession struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	ScheduledAt time.Time
	Topic       string
	Notes       string
	CreatedAt   time.Time
}

const sessionCols = "id, company_id, scheduled_at, topic, notes, created_at"

func collectSessions(rows pgx.Rows) ([]CoachingSession, error) {
	defer rows.Close()
	var out []CoachingSession
	for rows.Next() {
		var cs CoachingSession
		if err := rows.Scan(&cs.ID, &cs.CompanyID, &cs.ScheduledAt, &cs.Topic, &cs.Notes, &cs.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// CreateCoachingSession schedules a session for the given lead. Admin-only; elevated.
func (s *Store) CreateCoachingSession(ctx context.Context, companyID uuid.UUID, scheduledAt time.Time, topic, notes string) (*CoachingSession, error) {
	var cs CoachingSession
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO coaching_sessions (company_id, scheduled_at, topic, notes)
			 VALUES ($1, $2, $3, $4) RETURNING `+sessionCols,
			companyID, scheduledAt, topic, notes).
			Scan(&cs.ID, &cs.CompanyID, &cs.ScheduledAt, &cs.Topic, &cs.Notes, &cs.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("create coaching session: %w", err)
	}
	return &cs, nil
}

// ListCoachingSessions returns all sessions for a lead, soonest first.
// Admin-only; elevated.
func (s *Store) ListCoachingSessions(ctx context.Context, companyID uuid.UUID) ([]CoachingSession, error) {
	var sessions []CoachingSession
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+sessionCols+` FROM coaching_sessions WHERE company_id = $1 ORDER BY scheduled_at`,
			companyID)
		if err != nil {
			return err
		}
		sessions, err = collectSessions(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list coaching sessions: %w", err)
	}
	return sessions, nil
}

// UpdateCoachingSessionParams holds the mutable session fields.
// Nil pointers are left unchanged.
type UpdateCoachingSessionParams struct {
	ScheduledAt *time.Time
	Topic       *string
	Notes       *string
}

// UpdateCoachingSession applies the non-nil fields of p. Returns (nil, nil)
// if the session does not exist. Admin-only; elevated.
func (s *Store) UpdateCoachingSession(ctx context.Context, id uuid.UUID, p UpdateCoachingSessionParams) (*CoachingSession, error) {
	b := sq.Update("coaching_sessions").
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + sessionCols).
		PlaceholderFormat(sq.Dollar)
	if p.ScheduledAt != nil {
		b = b.Set("scheduled_at", *p.ScheduledAt)
	}
	if p.Topic != nil {
		b = b.Set("topic", *p.Topic)
	}
	if p.Notes != nil {
		b = b.Set("notes", *p.Notes)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build session update: %w", err)
	}

	var cs *CoachingSession
	err = s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var row CoachingSession
		err := tx.QueryRow(ctx, query, args...).
			Scan(&row.ID, &row.CompanyID, &row.ScheduledAt, &row.Topic, &row.Notes, &row.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		cs = &row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update coaching session: %w", err)
	}
	return cs, nil
}

// DeleteCoachingSession removes a session. Admin-only; elevated.
// Returns false if no row was deleted.
func (s *Store) DeleteCoachingSession(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM coaching_sessions WHERE id = $1`, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete coaching session: %w", err)
	}
	return deleted, nil
}

// ListOwnSessions returns the caller's company sessions through the restricted
// client, soonest first. Empty for callers with no company.
func (s *Store) ListOwnSessions(ctx context.Context, scope Scope) ([]CoachingSession, error) {
	var sessions []CoachingSession
	err := s.RestrictedTx(ctx, scope, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+sessionCols+` FROM coaching_sessions WHERE company_id = $1 ORDER BY scheduled_at`,
			scope.CompanyID)
		if err != nil {
			return err
		}
		sessions, err = collectSessions(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list own sessions: %w", err)
	}
	return sessions, nil
}
