package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fentz26/prodtrack/internal/models"
)

// MaxEventLimit caps a single ListEvents page.
const MaxEventLimit = 500

const eventColumns = `id, name, project_id, task_id, operation, status, previous_status, person_id, created_at, delivered_at`

func insertEvent(ctx context.Context, q querier, ev models.Event) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Name, ev.ProjectID, ev.TaskID, ev.Operation, ev.Status, ev.PreviousStatus, ev.PersonID,
		ev.CreatedAt.UTC(), nullTime(ev.DeliveredAt),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// EventFilter narrows ListEvents. Zero values match everything; Limit is
// clamped to MaxEventLimit.
type EventFilter struct {
	After     *time.Time
	Before    *time.Time
	ProjectID string
	TaskID    string
	Limit     int
}

// ListEvents returns event history, newest first.
func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE 1 = 1`
	var args []any
	if f.After != nil {
		query += ` AND created_at > ?`
		args = append(args, f.After.UTC())
	}
	if f.Before != nil {
		query += ` AND created_at < ?`
		args = append(args, f.Before.UTC())
	}
	if f.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, f.ProjectID)
	}
	if f.TaskID != "" {
		query += ` AND task_id = ?`
		args = append(args, f.TaskID)
	}
	limit := f.Limit
	if limit <= 0 || limit > MaxEventLimit {
		limit = MaxEventLimit
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	return s.queryEvents(ctx, query, args...)
}

// UndeliveredEvents returns up to limit events not yet dispatched, oldest first.
func (s *Store) UndeliveredEvents(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = MaxEventLimit
	}
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE delivered_at IS NULL ORDER BY created_at, rowid LIMIT ?`,
		limit,
	)
}

// MarkDelivered stamps the given events as dispatched at.
func (s *Store) MarkDelivered(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, at.UTC())
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE events SET delivered_at = ? WHERE delivered_at IS NULL AND id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark events delivered: %w", err)
	}
	return nil
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		var delivered sql.NullTime
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.ProjectID, &ev.TaskID, &ev.Operation, &ev.Status,
			&ev.PreviousStatus, &ev.PersonID, &ev.CreatedAt, &delivered); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.DeliveredAt = timeOrNil(delivered)
		events = append(events, ev)
	}
	return events, rows.Err()
}
