// ABOUTME: Store methods for tasks, subtasks, and attachments.
// ABOUTME: Subtasks and attachments denormalize company_id so RLS never joins.
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

// Task is a work item assigned to a company.
type Task struct {
	ID              uuid.UUID
	CompanyID       uuid.UUID
	Title           string
	Description     string
	Position        int32
	ShowOnDashboard bool
	Done            bool
	CreatedAt       time.Time
}

// Subtask is a child work item of a task. Deadline is nil when unset.
type Subtask struct {
	ID        uuid.UUID
	TaskID    uuid.UUID
	CompanyID uuid.UUID
	Title     string
	Deadline  *time.Time
	Position  int32
	Done      bool
	CreatedAt time.Time
}

// Attachment is a labeled link on a task or subtask, optionally referencing a
// shared material. Exactly one of TaskID/SubtaskID is set.
type Attachment struct {
	ID         uuid.UUID
	TaskID     *uuid.UUID
	SubtaskID  *uuid.UUID
	CompanyID  uuid.UUID
	Label      string
	URL        string
	Type       string
	MaterialID *uuid.UUID
	Position   int32
	CreatedAt  time.Time
}

const (
	taskCols       = "id, company_id, title, description, position, show_on_dashboard, done, created_at"
	subtaskCols    = "id, task_id, company_id, title, deadline, position, done, created_at"
	attachmentCols = "id, task_id, subtask_id, company_id, label, url, type, material_id, position, created_at"
)

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.CompanyID, &t.Title, &t.Description, &t.Position,
		&t.ShowOnDashboard, &t.Done, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTasks(rows pgx.Rows) ([]Task, error) {
	defer rows.Close()
	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.CompanyID, &t.Title, &t.Description, &t.Position,
			&t.ShowOnDashboard, &t.Done, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func collectSubtasks(rows pgx.Rows) ([]Subtask, error) {
	defer rows.Close()
	var out []Subtask
	for rows.Next() {
		var st Subtask
		if err := rows.Scan(&st.ID, &st.TaskID, &st.CompanyID, &st.Title, &st.Deadline,
			&st.Position, &st.Done, &st.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func collectAttachments(rows pgx.Rows) ([]Attachment, error) {
	defer rows.Close()
	var out []Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.TaskID, &a.SubtaskID, &a.CompanyID, &a.Label, &a.URL,
			&a.Type, &a.MaterialID, &a.Position, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateTaskParams holds the fields for creating a task. Zero values apply the
// documented defaults (position 0, show_on_dashboard true).
type CreateTaskParams struct {
	CompanyID       uuid.UUID
	Title           string
	Description     string
	Position        int32
	ShowOnDashboard bool
}

// CreateTask inserts a task for a lead. Admin-only; elevated.
func (s *Store) CreateTask(ctx context.Context, p CreateTaskParams) (*Task, error) {
	var t *Task
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var err error
		t, err = scanTask(tx.QueryRow(ctx,
			`INSERT INTO tasks (company_id, title, description, position, show_on_dashboard)
			 VALUES ($1, $2, $3, $4, $5) RETURNING `+taskCols,
			p.CompanyID, p.Title, p.Description, p.Position, p.ShowOnDashboard))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// GetTask returns a task by ID, or (nil, nil) if not found. Admin-only; elevated.
func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*Task, error) {
	var t *Task
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var err error
		t, err = scanTask(tx.QueryRow(ctx, `SELECT `+taskCols+` FROM tasks WHERE id = $1`, id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListTasks returns all tasks for a lead ordered by position. Admin-only; elevated.
func (s *Store) ListTasks(ctx context.Context, companyID uuid.UUID) ([]Task, error) {
	var tasks []Task
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+taskCols+` FROM tasks WHERE company_id = $1 ORDER BY position, created_at`, companyID)
		if err != nil {
			return err
		}
		tasks, err = collectTasks(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTaskParams holds the mutable task fields. Nil pointers are left unchanged.
type UpdateTaskParams struct {
	Title           *string
	Description     *string
	Position        *int32
	ShowOnDashboard *bool
	Done            *bool
}

// UpdateTask applies the non-nil fields of p. Returns (nil, nil) if the task
// does not exist. Admin-only; elevated.
func (s *Store) UpdateTask(ctx context.Context, id uuid.UUID, p UpdateTaskParams) (*Task, error) {
	b := sq.Update("tasks").
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + taskCols).
		PlaceholderFormat(sq.Dollar)
	if p.Title != nil {
		b = b.Set("title", *p.Title)
	}
	if p.Description != nil {
		b = b.Set("description", *p.Description)
	}
	if p.Position != nil {
		b = b.Set("position", *p.Position)
	}
	if p.ShowOnDashboard != nil {
		b = b.Set("show_on_dashboard", *p.ShowOnDashboard)
	}
	if p.Done != nil {
		b = b.Set("done", *p.Done)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build task update: %w", err)
	}

	var t *Task
	err = s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var err error
		t, err = scanTask(tx.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

// DeleteTask removes a task and, via cascade, its subtasks and attachments.
// Admin-only; elevated. Returns false if no row was deleted.
func (s *Store) DeleteTask(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return deleted, nil
}

// CreateSubtaskParams holds the fields for creating a subtask.
type CreateSubtaskParams struct {
	TaskID   uuid.UUID
	Title    string
	Deadline *time.Time
	Position int32
}

// CreateSubtask inserts a subtask under the given task, copying the task's
// company_id. Returns (nil, nil) if the parent task does not exist.
// Admin-only; elevated.
func (s *Store) CreateSubtask(ctx context.Context, p CreateSubtaskParams) (*Subtask, error) {
	var st *Subtask
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var row Subtask
		err := tx.QueryRow(ctx,
			`INSERT INTO subtasks (task_id, company_id, title, deadline, position)
			 SELECT t.id, t.company_id, $2, $3, $4 FROM tasks t WHERE t.id = $1
			 RETURNING `+subtaskCols,
			p.TaskID, p.Title, p.Deadline, p.Position).
			Scan(&row.ID, &row.TaskID, &row.CompanyID, &row.Title, &row.Deadline,
				&row.Position, &row.Done, &row.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		st = &row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create subtask: %w", err)
	}
	return st, nil
}

// UpdateSubtaskParams holds the mutable subtask fields. Nil pointers are left
// unchanged; ClearDeadline sets deadline back to NULL.
type UpdateSubtaskParams struct {
	Title         *string
	Deadline      *time.Time
	ClearDeadline bool
	Position      *int32
	Done          *bool
}

// UpdateSubtask applies the non-nil fields of p. Returns (nil, nil) if the
// subtask does not exist. Admin-only; elevated.
func (s *Store) UpdateSubtask(ctx context.Context, id uuid.UUID, p UpdateSubtaskParams) (*Subtask, error) {
	b := sq.Update("subtasks").
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + subtaskCols).
		PlaceholderFormat(sq.Dollar)
	if p.Title != nil {
		b = b.Set("title", *p.Title)
	}
	if p.ClearDeadline {
		b = b.Set("deadline", nil)
	} else if p.Deadline != nil {
		b = b.Set("deadline", *p.Deadline)
	}
	if p.Position != nil {
		b = b.Set("position", *p.Position)
	}
	if p.Done != nil {
		b = b.Set("done", *p.Done)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build subtask update: %w", err)
	}

	var st *Subtask
	err = s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var row Subtask
		err := tx.QueryRow(ctx, query, args...).
			Scan(&row.ID, &row.TaskID, &row.CompanyID, &row.Title, &row.Deadline,
				&row.Position, &row.Done, &row.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		st = &row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update subtask: %w", err)
	}
	return st, nil
}

// DeleteSubtask removes a subtask. Admin-only; elevated.
// Returns false if no row was deleted.
func (s *Store) DeleteSubtask(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM subtasks WHERE id = $1`, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete subtask: %w", err)
	}
	return deleted, nil
}

// CreateAttachmentParams holds the fields for creating an attachment.
// Exactly one of TaskID/SubtaskID must be set by the caller.
type CreateAttachmentParams struct {
	TaskID     *uuid.UUID
	SubtaskID  *uuid.UUID
	Label      string
	URL        string
	Type       string
	MaterialID *uuid.UUID
	Position   int32
}

// CreateAttachment inserts an attachment on a task or subtask, copying the
// parent's company_id. Returns (nil, nil) if the parent does not exist.
// Admin-only; elevated.
func (s *Store) CreateAttachment(ctx context.Context, p CreateAttachmentParams) (*Attachment, error) {
	if p.Type == "" {
		p.Type = "link"
	}
	var query string
	var parentID uuid.UUID
	switch {
	case p.TaskID != nil:
		parentID = *p.TaskID
		query = `INSERT INTO attachments (task_id, company_id, label, url, type, material_id, position)
			 SELECT t.id, t.company_id, $2, $3, $4, $5, $6 FROM tasks t WHERE t.id = $1
			 RETURNING ` + attachmentCols
	case p.SubtaskID != nil:
		parentID = *p.SubtaskID
		query = `INSERT INTO attachments (subtask_id, company_id, label, url, type, material_id, position)
			 SELECT st.id, st.company_id, $2, $3, $4, $5, $6 FROM subtasks st WHERE st.id = $1
			 RETURNING ` + attachmentCols
	default:
		return nil, errors.New("create attachment: no parent given")
	}

	var a *Attachment
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		var row Attachment
		err := tx.QueryRow(ctx, query, parentID, p.Label, p.URL, p.Type, p.MaterialID, p.Position).
			Scan(&row.ID, &row.TaskID, &row.SubtaskID, &row.CompanyID, &row.Label, &row.URL,
				&row.Type, &row.MaterialID, &row.Position, &row.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		a = &row
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create attachment: %w", err)
	}
	return a, nil
}

// DeleteAttachment removes an attachment. Admin-only; elevated.
// Returns false if no row was deleted.
func (s *Store) DeleteAttachment(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := s.ElevatedTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM attachments WHERE id = $1`, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete attachment: %w", err)
	}
	return deleted, nil
}

// TaskDetail is a task with its subtasks and all attachments (task-level and
// subtask-level).
type TaskDetail struct {
	Task        Task
	Subtasks    []Subtask
	Attachments []Attachment
}

// ListOwnTasks returns the caller's company tasks through the restricted
// client, ordered by position. Empty for callers with no company.
func (s *Store) ListOwnTasks(ctx context.Context, scope Scope) ([]Task, error) {
	var tasks []Task
	err := s.RestrictedTx(ctx, scope, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+taskCols+` FROM tasks WHERE company_id = $1 ORDER BY position, created_at`,
			scope.CompanyID)
		if err != nil {
			return err
		}
		tasks, err = collectTasks(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list own tasks: %w", err)
	}
	return tasks, nil
}

// GetOwnTask returns one of the caller's tasks with subtasks and attachments
// through the restricted client, or (nil, nil) when RLS hides the row.
func (s *Store) GetOwnTask(ctx context.Context, scope Scope, taskID uuid.UUID) (*TaskDetail, error) {
	var detail *TaskDetail
	err := s.RestrictedTx(ctx, scope, func(tx pgx.Tx) error {
		t, err := scanTask(tx.QueryRow(ctx,
			`SELECT `+taskCols+` FROM tasks WHERE id = $1 AND company_id = $2`,
			taskID, scope.CompanyID))
		if err != nil {
			return err
		}
		if t == nil {
			return nil
		}

		subRows, err := tx.Query(ctx,
			`SELECT `+subtaskCols+` FROM subtasks WHERE task_id = $1 ORDER BY position, created_at`, taskID)
		if err != nil {
			return err
		}
		subtasks, err := collectSubtasks(subRows)
		if err != nil {
			return err
		}

		attRows, err := tx.Query(ctx,
			`SELECT `+attachmentCols+` FROM attachments
			 WHERE task_id = $1 OR subtask_id IN (SELECT id FROM subtasks WHERE task_id = $1)
			 ORDER BY position, created_at`, taskID)
		if err != nil {
			return err
		}
		attachments, err := collectAttachments(attRows)
		if err != nil {
			return err
		}

		detail = &TaskDetail{Task: *t, Subtasks: subtasks, Attachments: attachments}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get own task: %w", err)
	}
	return detail, nil
}
