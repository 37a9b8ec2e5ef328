package filetree

import (
	"context"

	"github.com/fentz26/prodtrack/internal/models"
)

// Lookup is the read side of the persistence layer the resolver needs.
// Implementations return (nil, nil) for missing rows.
type Lookup interface {
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetTaskType(ctx context.Context, id string) (*models.TaskType, error)
	GetAssetType(ctx context.Context, id string) (*models.AssetType, error)
	GetDepartment(ctx context.Context, id string) (*models.Department, error)
}

// Bundle is everything a template can reference for one task. Sequence and
// Episode point at the entity itself when the task sits on a sequence or an
// episode.
type Bundle struct {
	Project    *models.Project
	Task       *models.Task
	Entity     *models.Entity
	Sequence   *models.Entity
	Episode    *models.Entity
	AssetType  *models.AssetType
	TaskType   *models.TaskType
	Department *models.Department
}

// Category returns the template category of the bundle entity.
func (b *Bundle) Category() (Category, error) {
	c, ok := CategoryOf(b.Entity.Kind)
	if !ok {
		return "", &UnsupportedCategoryError{Category: string(b.Entity.Kind), Context: "any"}
	}
	return c, nil
}

// LoadBundle resolves every relation of task through l.
func LoadBundle(ctx context.Context, l Lookup, task *models.Task) (*Bundle, error) {
	b := &Bundle{Task: task}

	entity, err := l.GetEntity(ctx, task.EntityID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, &MissingReferenceError{Kind: "entity", ID: task.EntityID}
	}
	b.Entity = entity

	project, err := l.GetProject(ctx, task.ProjectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, &MissingReferenceError{Kind: "project", ID: task.ProjectID}
	}
	b.Project = project

	taskType, err := l.GetTaskType(ctx, task.TaskTypeID)
	if err != nil {
		return nil, err
	}
	if taskType == nil {
		return nil, &MissingReferenceError{Kind: "task_type", ID: task.TaskTypeID}
	}
	b.TaskType = taskType

	if taskType.DepartmentID != "" {
		dept, err := l.GetDepartment(ctx, taskType.DepartmentID)
		if err != nil {
			return nil, err
		}
		if dept == nil {
			return nil, &MissingReferenceError{Kind: "department", ID: taskType.DepartmentID}
		}
		b.Department = dept
	}

	if err := loadAncestors(ctx, l, b); err != nil {
		return nil, err
	}
	return b, nil
}

func loadAncestors(ctx context.Context, l Lookup, b *Bundle) error {
	switch b.Entity.Kind {
	case models.EntityKindAsset:
		if b.Entity.AssetTypeID == "" {
			return &MissingReferenceError{Kind: "asset_type"}
		}
		at, err := l.GetAssetType(ctx, b.Entity.AssetTypeID)
		if err != nil {
			return err
		}
		if at == nil {
			return &MissingReferenceError{Kind: "asset_type", ID: b.Entity.AssetTypeID}
		}
		b.AssetType = at

	case models.EntityKindShot:
		if b.Entity.ParentID == "" {
			return &MissingReferenceError{Kind: "sequence"}
		}
		seq, err := loadParent(ctx, l, b.Entity.ParentID, "sequence")
		if err != nil {
			return err
		}
		b.Sequence = seq
		if seq.ParentID != "" {
			if b.Episode, err = loadParent(ctx, l, seq.ParentID, "episode"); err != nil {
				return err
			}
		}

	case models.EntityKindSequence:
		b.Sequence = b.Entity
		if b.Entity.ParentID != "" {
			ep, err := loadParent(ctx, l, b.Entity.ParentID, "episode")
			if err != nil {
				return err
			}
			b.Episode = ep
		}

	case models.EntityKindEpisode:
		b.Episode = b.Entity
	}
	return nil
}

func loadParent(ctx context.Context, l Lookup, id, kind string) (*models.Entity, error) {
	parent, err := l.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, &MissingReferenceError{Kind: kind, ID: id}
	}
	return parent, nil
}
