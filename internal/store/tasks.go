package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/fentz26/prodtrack/internal/models"
)

// maxUpdateAttempts bounds retries of a task update that lost a version race.
const maxUpdateAttempts = 3

const taskColumns = `id, project_id, entity_id, task_type_id, name, status, priority,
	due_date, real_start_date, end_date, done_date, retake_count, version, created_at, updated_at`

func taskNotFound(id string) error { return &NotFoundError{Kind: "task", ID: id} }

// CreateTask inserts a new task in todo with its initial assignees.
func (s *Store) CreateTask(ctx context.Context, in models.Task) (*models.Task, error) {
	now := s.now()
	task := in.Clone()
	task.ID = uuid.New().String()
	task.Status = models.TaskStatusTodo
	task.Version = 1
	task.RetakeCount = 0
	task.CreatedAt = now
	task.UpdatedAt = now
	task.Assignees = sortedUnique(task.Assignees)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.ProjectID, task.EntityID, task.TaskTypeID, task.Name, task.Status, task.Priority,
		nullTime(task.DueDate), nullTime(task.RealStartDate), nullTime(task.EndDate), nullTime(task.DoneDate),
		task.RetakeCount, task.Version, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return nil, insertErr("task", err)
	}
	if err := replaceAssignees(ctx, tx, task.ID, task.Assignees); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &task, nil
}

// GetTask retrieves a task by ID with its assignees.
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return getTask(ctx, s.db, id)
}

func getTask(ctx context.Context, q querier, id string) (*models.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	assignees, err := loadAssignees(ctx, q, []string{task.ID})
	if err != nil {
		return nil, err
	}
	task.Assignees = assignees[task.ID]
	if task.Assignees == nil {
		task.Assignees = []string{}
	}
	return task, nil
}

// TaskFilter narrows ListTasks. Empty fields match everything.
type TaskFilter struct {
	ProjectID  string
	EntityID   string
	TaskTypeID string
	Status     models.TaskStatus
	Assignee   string
}

// ListTasks returns tasks matching f, newest first.
func (s *Store) ListTasks(ctx context.Context, f TaskFilter) ([]models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1 = 1`
	var args []any
	if f.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, f.ProjectID)
	}
	if f.EntityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, f.EntityID)
	}
	if f.TaskTypeID != "" {
		query += ` AND task_type_id = ?`
		args = append(args, f.TaskTypeID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.Assignee != "" {
		query += ` AND id IN (SELECT task_id FROM assignations WHERE person_id = ?)`
		args = append(args, f.Assignee)
	}
	query += ` ORDER BY created_at DESC, id`

	tasks, err := queryTasks(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return tasks, nil
	}

	ids := make([]string, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
	}
	assignees, err := loadAssignees(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		tasks[i].Assignees = assignees[tasks[i].ID]
		if tasks[i].Assignees == nil {
			tasks[i].Assignees = []string{}
		}
	}
	return tasks, nil
}

// FindTask returns the first task on entityID of taskTypeID.
func (s *Store) FindTask(ctx context.Context, entityID, taskTypeID string) (*models.Task, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM tasks WHERE entity_id = ? AND task_type_id = ? ORDER BY created_at, id LIMIT 1`,
		entityID, taskTypeID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return s.GetTask(ctx, id)
}

// queryTasks runs query and closes the rows before returning, so the single
// connection is free for follow-up queries.
func queryTasks(ctx context.Context, q querier, query string, args ...any) ([]models.Task, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func scanTask(row scanner) (*models.Task, error) {
	var task models.Task
	var due, start, end, done sql.NullTime
	err := row.Scan(
		&task.ID, &task.ProjectID, &task.EntityID, &task.TaskTypeID, &task.Name, &task.Status, &task.Priority,
		&due, &start, &end, &done, &task.RetakeCount, &task.Version, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.DueDate = timeOrNil(due)
	task.RealStartDate = timeOrNil(start)
	task.EndDate = timeOrNil(end)
	task.DoneDate = timeOrNil(done)
	return &task, nil
}

func loadAssignees(ctx context.Context, q querier, taskIDs []string) (map[string][]string, error) {
	args := make([]any, len(taskIDs))
	for i, id := range taskIDs {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx,
		`SELECT task_id, person_id FROM assignations WHERE task_id IN (`+placeholders(len(taskIDs))+`) ORDER BY task_id, person_id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query assignations: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string, len(taskIDs))
	for rows.Next() {
		var taskID, personID string
		if err := rows.Scan(&taskID, &personID); err != nil {
			return nil, fmt.Errorf("scan assignation: %w", err)
		}
		out[taskID] = append(out[taskID], personID)
	}
	return out, rows.Err()
}

func replaceAssignees(ctx context.Context, tx *sql.Tx, taskID string, personIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM assignations WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear assignations: %w", err)
	}
	for _, personID := range personIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO assignations (task_id, person_id) VALUES (?, ?)`, taskID, personID,
		); err != nil {
			return fmt.Errorf("insert assignation: %w", err)
		}
	}
	return nil
}

// MutateFunc computes the next state of a task and the events the change
// emits. Returning no events means nothing changed and nothing is written.
type MutateFunc func(current models.Task) (models.Task, []models.Event, error)

// UpdateTask reads the task, applies mutate and writes the result together
// with its events in one transaction. The write is conditional on the version
// read, and a lost race re-runs mutate against the fresh row. Errors returned
// by mutate abort the update unchanged.
func (s *Store) UpdateTask(ctx context.Context, id string, mutate MutateFunc) (*models.Task, []models.Event, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		task, events, retry, err := s.updateTaskOnce(ctx, id, mutate)
		if err != nil {
			return nil, nil, err
		}
		if !retry {
			return task, events, nil
		}
	}
	return nil, nil, &ConflictError{Msg: fmt.Sprintf("task %q changed concurrently, giving up after %d attempts", id, maxUpdateAttempts)}
}

func (s *Store) updateTaskOnce(ctx context.Context, id string, mutate MutateFunc) (*models.Task, []models.Event, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := getTask(ctx, tx, id)
	if err != nil {
		return nil, nil, false, err
	}
	if current == nil {
		return nil, nil, false, taskNotFound(id)
	}

	next, events, err := mutate(current.Clone())
	if err != nil {
		return nil, nil, false, err
	}
	if len(events) == 0 {
		return current, nil, false, nil
	}

	if s.testHookBeforeWrite != nil {
		if err := s.testHookBeforeWrite(ctx, tx, id); err != nil {
			return nil, nil, false, err
		}
	}

	next.Version = current.Version + 1
	result, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = ?, priority = ?, due_date = ?, real_start_date = ?, end_date = ?, done_date = ?,
		 retake_count = ?, version = ?, updated_at = ? WHERE id = ? AND version = ?`,
		next.Status, next.Priority, nullTime(next.DueDate), nullTime(next.RealStartDate), nullTime(next.EndDate),
		nullTime(next.DoneDate), next.RetakeCount, next.Version, next.UpdatedAt, id, current.Version,
	)
	if err != nil {
		return nil, nil, false, fmt.Errorf("update task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, nil, false, fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Modified by another writer between our read and update.
		return nil, nil, true, nil
	}

	if !equalIDs(current.Assignees, next.Assignees) {
		next.Assignees = sortedUnique(next.Assignees)
		if err := replaceAssignees(ctx, tx, id, next.Assignees); err != nil {
			return nil, nil, false, err
		}
	}
	for _, ev := range events {
		if err := insertEvent(ctx, tx, ev); err != nil {
			return nil, nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, false, fmt.Errorf("commit transaction: %w", err)
	}
	if next.Assignees == nil {
		next.Assignees = []string{}
	}
	return &next, events, false, nil
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
