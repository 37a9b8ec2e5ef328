package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/fentz26/prodtrack/internal/models"
)

// --- Project Operations ---

const projectColumns = `id, name, code, file_tree, status_labels, created_at, updated_at`

// CreateProject inserts a new project. ID and timestamps are assigned here.
func (s *Store) CreateProject(ctx context.Context, in models.Project) (*models.Project, error) {
	now := s.now()
	p := in
	p.ID = uuid.New().String()
	p.CreatedAt = now
	p.UpdatedAt = now

	labels, err := encodeLabels(p.StatusLabels)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Code, p.FileTree, labels, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, insertErr("project", err)
	}
	return &p, nil
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(ctx context.Context, id string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}
	return p, nil
}

// ListProjects returns every project ordered by name.
func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// UpdateProject overwrites the mutable fields of a project.
func (s *Store) UpdateProject(ctx context.Context, p *models.Project) error {
	labels, err := encodeLabels(p.StatusLabels)
	if err != nil {
		return err
	}
	p.UpdatedAt = s.now()
	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, code = ?, file_tree = ?, status_labels = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Code, p.FileTree, labels, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return insertErr("project", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return &NotFoundError{Kind: "project", ID: p.ID}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*models.Project, error) {
	var p models.Project
	var labels string
	if err := row.Scan(&p.ID, &p.Name, &p.Code, &p.FileTree, &labels, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if labels != "" {
		if err := json.Unmarshal([]byte(labels), &p.StatusLabels); err != nil {
			return nil, fmt.Errorf("decode status labels: %w", err)
		}
	}
	if len(p.StatusLabels) == 0 {
		p.StatusLabels = nil
	}
	return &p, nil
}

func encodeLabels(labels map[string]string) (string, error) {
	if len(labels) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("encode status labels: %w", err)
	}
	return string(data), nil
}

// --- Entity Operations ---

const entityColumns = `id, project_id, kind, asset_type_id, parent_id, name, description, created_at, updated_at`

// CreateEntity inserts a new entity.
func (s *Store) CreateEntity(ctx context.Context, in models.Entity) (*models.Entity, error) {
	now := s.now()
	e := in
	e.ID = uuid.New().String()
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entities (`+entityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProjectID, e.Kind, e.AssetTypeID, e.ParentID, e.Name, e.Description, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return nil, insertErr("entity", err)
	}
	return &e, nil
}

// GetEntity retrieves an entity by ID.
func (s *Store) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query entity: %w", err)
	}
	return e, nil
}

// EntityFilter narrows ListEntities. Empty fields match everything.
type EntityFilter struct {
	ProjectID string
	Kind      models.EntityKind
	ParentID  string
}

// ListEntities returns entities ordered by kind then name.
func (s *Store) ListEntities(ctx context.Context, f EntityFilter) ([]models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE 1 = 1`
	var args []any
	if f.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, f.ProjectID)
	}
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, f.Kind)
	}
	if f.ParentID != "" {
		query += ` AND parent_id = ?`
		args = append(args, f.ParentID)
	}
	query += ` ORDER BY kind, name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var entities []models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, *e)
	}
	return entities, rows.Err()
}

// FindEntityByName matches name case-insensitively within a project, kind and parent.
func (s *Store) FindEntityByName(ctx context.Context, projectID string, kind models.EntityKind, parentID, name string) (*models.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities
		 WHERE project_id = ? AND kind = ? AND parent_id = ? AND name = ? COLLATE NOCASE
		 ORDER BY created_at LIMIT 1`,
		projectID, kind, parentID, name,
	)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query entity by name: %w", err)
	}
	return e, nil
}

func scanEntity(row scanner) (*models.Entity, error) {
	var e models.Entity
	err := row.Scan(&e.ID, &e.ProjectID, &e.Kind, &e.AssetTypeID, &e.ParentID, &e.Name, &e.Description, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// --- Asset Type, Department and Task Type Operations ---

// CreateAssetType inserts an asset type.
func (s *Store) CreateAssetType(ctx context.Context, in models.AssetType) (*models.AssetType, error) {
	at := in
	at.ID = uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO asset_types (id, name, short_name) VALUES (?, ?, ?)`,
		at.ID, at.Name, at.ShortName,
	)
	if err != nil {
		return nil, insertErr("asset type", err)
	}
	return &at, nil
}

// GetAssetType retrieves an asset type by ID.
func (s *Store) GetAssetType(ctx context.Context, id string) (*models.AssetType, error) {
	var at models.AssetType
	err := s.db.QueryRowContext(ctx, `SELECT id, name, short_name FROM asset_types WHERE id = ?`, id).
		Scan(&at.ID, &at.Name, &at.ShortName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query asset type: %w", err)
	}
	return &at, nil
}

// FindAssetTypeByName matches name or short name case-insensitively.
func (s *Store) FindAssetTypeByName(ctx context.Context, name string) (*models.AssetType, error) {
	var at models.AssetType
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, short_name FROM asset_types
		 WHERE name = ? COLLATE NOCASE OR (short_name != '' AND short_name = ? COLLATE NOCASE) LIMIT 1`,
		name, name,
	).Scan(&at.ID, &at.Name, &at.ShortName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query asset type by name: %w", err)
	}
	return &at, nil
}

// ListAssetTypes returns every asset type ordered by name.
func (s *Store) ListAssetTypes(ctx context.Context) ([]models.AssetType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, short_name FROM asset_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query asset types: %w", err)
	}
	defer rows.Close()

	var out []models.AssetType
	for rows.Next() {
		var at models.AssetType
		if err := rows.Scan(&at.ID, &at.Name, &at.ShortName); err != nil {
			return nil, fmt.Errorf("scan asset type: %w", err)
		}
		out = append(out, at)
	}
	return out, rows.Err()
}

// CreateDepartment inserts a department.
func (s *Store) CreateDepartment(ctx context.Context, in models.Department) (*models.Department, error) {
	d := in
	d.ID = uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO departments (id, name, short_name) VALUES (?, ?, ?)`,
		d.ID, d.Name, d.ShortName,
	)
	if err != nil {
		return nil, insertErr("department", err)
	}
	return &d, nil
}

// GetDepartment retrieves a department by ID.
func (s *Store) GetDepartment(ctx context.Context, id string) (*models.Department, error) {
	var d models.Department
	err := s.db.QueryRowContext(ctx, `SELECT id, name, short_name FROM departments WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &d.ShortName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query department: %w", err)
	}
	return &d, nil
}

// ListDepartments returns every department ordered by name.
func (s *Store) ListDepartments(ctx context.Context) ([]models.Department, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, short_name FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query departments: %w", err)
	}
	defer rows.Close()

	var out []models.Department
	for rows.Next() {
		var d models.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.ShortName); err != nil {
			return nil, fmt.Errorf("scan department: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateTaskType inserts a task type.
func (s *Store) CreateTaskType(ctx context.Context, in models.TaskType) (*models.TaskType, error) {
	tt := in
	tt.ID = uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_types (id, name, short_name, department_id) VALUES (?, ?, ?, ?)`,
		tt.ID, tt.Name, tt.ShortName, tt.DepartmentID,
	)
	if err != nil {
		return nil, insertErr("task type", err)
	}
	return &tt, nil
}

// GetTaskType retrieves a task type by ID.
func (s *Store) GetTaskType(ctx context.Context, id string) (*models.TaskType, error) {
	var tt models.TaskType
	err := s.db.QueryRowContext(ctx, `SELECT id, name, short_name, department_id FROM task_types WHERE id = ?`, id).
		Scan(&tt.ID, &tt.Name, &tt.ShortName, &tt.DepartmentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task type: %w", err)
	}
	return &tt, nil
}

// FindTaskTypeByName matches name or short name case-insensitively.
func (s *Store) FindTaskTypeByName(ctx context.Context, name string) (*models.TaskType, error) {
	var tt models.TaskType
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, short_name, department_id FROM task_types
		 WHERE name = ? COLLATE NOCASE OR (short_name != '' AND short_name = ? COLLATE NOCASE) LIMIT 1`,
		name, name,
	).Scan(&tt.ID, &tt.Name, &tt.ShortName, &tt.DepartmentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task type by name: %w", err)
	}
	return &tt, nil
}

// ListTaskTypes returns every task type ordered by name.
func (s *Store) ListTaskTypes(ctx context.Context) ([]models.TaskType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, short_name, department_id FROM task_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query task types: %w", err)
	}
	defer rows.Close()

	var out []models.TaskType
	for rows.Next() {
		var tt models.TaskType
		if err := rows.Scan(&tt.ID, &tt.Name, &tt.ShortName, &tt.DepartmentID); err != nil {
			return nil, fmt.Errorf("scan task type: %w", err)
		}
		out = append(out, tt)
	}
	return out, rows.Err()
}

// --- Person Operations ---

// CreatePerson inserts a person.
func (s *Store) CreatePerson(ctx context.Context, in models.Person) (*models.Person, error) {
	p := in
	p.ID = uuid.New().String()
	p.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO persons (id, first_name, last_name, email, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.FirstName, p.LastName, p.Email, p.CreatedAt,
	)
	if err != nil {
		return nil, insertErr("person", err)
	}
	return &p, nil
}

// GetPerson retrieves a person by ID.
func (s *Store) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	var p models.Person
	err := s.db.QueryRowContext(ctx, `SELECT id, first_name, last_name, email, created_at FROM persons WHERE id = ?`, id).
		Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query person: %w", err)
	}
	return &p, nil
}

// ListPersons returns every person ordered by last then first name.
func (s *Store) ListPersons(ctx context.Context) ([]models.Person, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, first_name, last_name, email, created_at FROM persons ORDER BY last_name, first_name`)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	var out []models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MissingPersons returns the ids that match no person, in input order.
func (s *Store) MissingPersons(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM persons WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan person id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !found[id] && !seen[id] {
			missing = append(missing, id)
			seen[id] = true
		}
	}
	return missing, nil
}
