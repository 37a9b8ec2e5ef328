// Package models defines the core domain types for prodtrack.
package models

import "time"

// TaskStatus is one of the canonical task states. Projects only relabel these,
// they never add new ones.
type TaskStatus string

const (
	TaskStatusTodo            TaskStatus = "todo"
	TaskStatusWIP             TaskStatus = "wip"
	TaskStatusWaitingApproval TaskStatus = "waiting_approval"
	TaskStatusDone            TaskStatus = "done"
	TaskStatusRetake          TaskStatus = "retake"
)

// TaskStatuses lists every canonical status in workflow order.
var TaskStatuses = []TaskStatus{
	TaskStatusTodo,
	TaskStatusWIP,
	TaskStatusWaitingApproval,
	TaskStatusDone,
	TaskStatusRetake,
}

// Valid reports whether s is a canonical status.
func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// EntityKind is the category of a production entity.
type EntityKind string

const (
	EntityKindAsset    EntityKind = "asset"
	EntityKindShot     EntityKind = "shot"
	EntityKindSequence EntityKind = "sequence"
	EntityKindEpisode  EntityKind = "episode"
)

// Valid reports whether k is a known entity kind.
func (k EntityKind) Valid() bool {
	switch k {
	case EntityKindAsset, EntityKindShot, EntityKindSequence, EntityKindEpisode:
		return true
	}
	return false
}

// Project is a production.
type Project struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Code         string            `json:"code,omitempty"`
	FileTree     string            `json:"file_tree,omitempty"`
	StatusLabels map[string]string `json:"status_labels,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Entity is a node of the production breakdown: an asset, shot, sequence or episode.
type Entity struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Kind        EntityKind `json:"kind"`
	AssetTypeID string     `json:"asset_type_id,omitempty"`
	ParentID    string     `json:"parent_id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// AssetType groups assets (characters, props, sets...).
type AssetType struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name,omitempty"`
}

// Department owns task types.
type Department struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name,omitempty"`
}

// TaskType is a kind of work, e.g. modeling or animation.
type TaskType struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ShortName    string `json:"short_name,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
}

// Person is someone tasks can be assigned to.
type Person struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// FullName returns "First Last".
func (p Person) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Task is a unit of work of one task type applied to one entity.
type Task struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"project_id"`
	EntityID      string     `json:"entity_id"`
	TaskTypeID    string     `json:"task_type_id"`
	Name          string     `json:"name"`
	Status        TaskStatus `json:"status"`
	Assignees     []string   `json:"assignees"`
	Priority      int        `json:"priority"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	RealStartDate *time.Time `json:"real_start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	DoneDate      *time.Time `json:"done_date,omitempty"`
	RetakeCount   int        `json:"retake_count"`
	Version       int64      `json:"version"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate it without touching the original.
func (t Task) Clone() Task {
	c := t
	if t.Assignees != nil {
		c.Assignees = make([]string, len(t.Assignees))
		copy(c.Assignees, t.Assignees)
	}
	c.DueDate = cloneTime(t.DueDate)
	c.RealStartDate = cloneTime(t.RealStartDate)
	c.EndDate = cloneTime(t.EndDate)
	c.DoneDate = cloneTime(t.DoneDate)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Event is a change record emitted by a task mutation.
type Event struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	ProjectID      string     `json:"project_id"`
	TaskID         string     `json:"task_id"`
	Operation      string     `json:"operation"`
	Status         TaskStatus `json:"status"`
	PreviousStatus TaskStatus `json:"previous_status,omitempty"`
	PersonID       string     `json:"person_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

// PDREntry represents a Process Decision Record for audit.
type PDREntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	SubjectID  string    `json:"subject_id,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
