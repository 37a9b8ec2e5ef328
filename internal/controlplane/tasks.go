package controlplane

import (
	"context"
	"strings"
	"time"

	"github.com/fentz26/prodtrack/internal/audit"
	"github.com/fentz26/prodtrack/internal/filetree"
	"github.com/fentz26/prodtrack/internal/models"
	"github.com/fentz26/prodtrack/internal/store"
	"github.com/fentz26/prodtrack/internal/workflow"
)

// DefaultContext is the file tree context used when a request names none.
const DefaultContext = "working"

// TaskView is a task with its project display label.
type TaskView struct {
	models.Task
	StatusLabel string `json:"status_label"`
}

// TaskInput is the payload of task creation. The project is taken from the entity.
type TaskInput struct {
	EntityID   string     `json:"entity_id"`
	TaskTypeID string     `json:"task_type_id"`
	Name       string     `json:"name,omitempty"`
	Priority   int        `json:"priority,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Assignees  []string   `json:"assignees,omitempty"`
}

// CreateTask creates a todo task.
func (s *Service) CreateTask(ctx context.Context, in TaskInput) (*TaskView, error) {
	if in.EntityID == "" {
		return nil, invalid("entity_id", "required")
	}
	if in.TaskTypeID == "" {
		return nil, invalid("task_type_id", "required")
	}
	entity, err := s.GetEntity(ctx, in.EntityID)
	if err != nil {
		return nil, err
	}
	tt, err := s.store.GetTaskType(ctx, in.TaskTypeID)
	if err != nil {
		return nil, err
	}
	if tt == nil {
		return nil, &store.NotFoundError{Kind: "task type", ID: in.TaskTypeID}
	}
	if err := s.checkPersons(ctx, in.Assignees); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = DefaultTaskName
	}
	task, err := s.store.CreateTask(ctx, models.Task{
		ProjectID:  entity.ProjectID,
		EntityID:   entity.ID,
		TaskTypeID: tt.ID,
		Name:       name,
		Priority:   in.Priority,
		DueDate:    in.DueDate,
		Assignees:  in.Assignees,
	})
	if err != nil {
		s.record(ctx, "task.create", in, audit.OutcomeFailure, "")
		return nil, err
	}
	s.record(ctx, "task.create", in, audit.OutcomeSuccess, task.ID)
	return s.view(ctx, task)
}

// GetTask returns a task or a not found error.
func (s *Service) GetTask(ctx context.Context, id string) (*TaskView, error) {
	task, err := s.getTask(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, task)
}

func (s *Service) getTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, &store.NotFoundError{Kind: "task", ID: id}
	}
	return task, nil
}

// ListTasks returns tasks matching f.
func (s *Service) ListTasks(ctx context.Context, f store.TaskFilter) ([]TaskView, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, invalid("status", "unknown status %q", f.Status)
	}
	tasks, err := s.store.ListTasks(ctx, f)
	if err != nil {
		return nil, err
	}

	labels := make(map[string]workflow.Labels)
	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		l, ok := labels[task.ProjectID]
		if !ok {
			p, err := s.store.GetProject(ctx, task.ProjectID)
			if err != nil {
				return nil, err
			}
			l = s.Labels(p)
			labels[task.ProjectID] = l
		}
		views = append(views, TaskView{Task: task, StatusLabel: l.Label(task.Status)})
	}
	return views, nil
}

func (s *Service) view(ctx context.Context, task *models.Task) (*TaskView, error) {
	p, err := s.store.GetProject(ctx, task.ProjectID)
	if err != nil {
		return nil, err
	}
	return &TaskView{Task: *task, StatusLabel: s.Labels(p).Label(task.Status)}, nil
}

func (s *Service) checkPersons(ctx context.Context, ids []string) error {
	missing, err := s.store.MissingPersons(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &workflow.UnknownPersonError{IDs: missing}
	}
	return nil
}

// --- Workflow Operations ---

// Transition runs a workflow operation on a task. Persons are checked before
// the store transaction; persons are never deleted.
func (s *Service) Transition(ctx context.Context, taskID string, req workflow.Request) (*TaskView, []models.Event, error) {
	if req.Operation == workflow.OpAssign {
		if err := s.checkPersons(ctx, req.PersonIDs); err != nil {
			return nil, nil, err
		}
	}

	now := s.now()
	task, events, err := s.store.UpdateTask(ctx, taskID, func(current models.Task) (models.Task, []models.Event, error) {
		return workflow.Apply(current, req, now)
	})
	if err != nil {
		return nil, nil, err
	}
	if len(events) > 0 {
		s.logger.Info("task transition",
			"task_id", taskID,
			"operation", req.Operation,
			"status", task.Status,
			"events", len(events),
		)
		if s.kicker != nil {
			s.kicker.Kick()
		}
	}
	view, err := s.view(ctx, task)
	if err != nil {
		return nil, nil, err
	}
	return view, events, nil
}

// --- Path Operations ---

// PathResult is the resolved location of a task file.
type PathResult struct {
	FolderPath string `json:"folder_path"`
	FileName   string `json:"file_name"`
	FilePath   string `json:"file_path"`
}

// ResolvePath renders the folder, file name and full path of a task file.
func (s *Service) ResolvePath(ctx context.Context, taskID, treeContext string, opts filetree.Options) (*PathResult, error) {
	if treeContext == "" {
		treeContext = DefaultContext
	}
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	bundle, err := filetree.LoadBundle(ctx, s.store, task)
	if err != nil {
		return nil, err
	}

	folder, err := s.resolver.FolderPath(bundle, treeContext, opts)
	if err != nil {
		return nil, err
	}
	name, err := s.resolver.FileName(bundle, treeContext, opts)
	if err != nil {
		return nil, err
	}
	sep, _ := opts.Sep()
	return &PathResult{FolderPath: folder, FileName: name, FilePath: folder + sep + name}, nil
}

// GuessInput is the payload of a reverse path lookup.
type GuessInput struct {
	Path      string `json:"path"`
	Context   string `json:"context,omitempty"`
	Separator string `json:"sep,omitempty"`
}

var guessOrder = []filetree.Category{
	filetree.CategoryShot,
	filetree.CategoryAsset,
	filetree.CategorySequence,
	filetree.CategoryEpisode,
}

// GuessTask finds the task whose working folder is in.Path.
func (s *Service) GuessTask(ctx context.Context, projectID string, in GuessInput) (*TaskView, error) {
	if strings.TrimSpace(in.Path) == "" {
		return nil, invalid("path", "required")
	}
	if in.Context == "" {
		in.Context = DefaultContext
	}
	if in.Separator == "" {
		in.Separator = "/"
	}
	project, err := s.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	set, err := s.resolver.TemplateSetFor(project)
	if err != nil {
		return nil, err
	}
	if _, err := set.Context(in.Context); err != nil {
		return nil, err
	}
	opts := filetree.Options{Separator: in.Separator}
	if _, err := opts.Sep(); err != nil {
		return nil, err
	}

	for _, cat := range guessOrder {
		values, err := filetree.ParseFolderPath(set, in.Context, cat, in.Path, in.Separator)
		if err != nil {
			continue
		}
		task, err := s.taskFromValues(ctx, project, cat, values)
		if err != nil {
			return nil, err
		}
		if task != nil {
			return s.view(ctx, task)
		}
	}
	return nil, ErrNoTaskForPath
}

func (s *Service) taskFromValues(ctx context.Context, project *models.Project, cat filetree.Category, values map[string]string) (*models.Task, error) {
	if v, ok := values["Project"]; ok && !matchesName(v, project.Name, project.Code) {
		return nil, nil
	}
	ttValue, ok := values["TaskType"]
	if !ok {
		return nil, nil
	}
	tt, err := s.findTaskType(ctx, ttValue)
	if err != nil || tt == nil {
		return nil, err
	}

	var entity *models.Entity
	switch cat {
	case filetree.CategoryShot:
		seq, err := s.findEntity(ctx, project.ID, models.EntityKindSequence, "", values["Sequence"])
		if err != nil || seq == nil {
			return nil, err
		}
		entity, err = s.findEntity(ctx, project.ID, models.EntityKindShot, seq.ID, values["Shot"])
		if err != nil {
			return nil, err
		}
	case filetree.CategoryAsset:
		entity, err = s.findEntity(ctx, project.ID, models.EntityKindAsset, "", values["Asset"])
		if err != nil {
			return nil, err
		}
		if entity != nil && values["AssetType"] != "" {
			at, err := s.store.GetAssetType(ctx, entity.AssetTypeID)
			if err != nil {
				return nil, err
			}
			if at == nil || !matchesName(values["AssetType"], at.Name, at.ShortName) {
				return nil, nil
			}
		}
	case filetree.CategorySequence:
		entity, err = s.findEntity(ctx, project.ID, models.EntityKindSequence, "", values["Sequence"])
		if err != nil {
			return nil, err
		}
	case filetree.CategoryEpisode:
		entity, err = s.findEntity(ctx, project.ID, models.EntityKindEpisode, "", values["Episode"])
		if err != nil {
			return nil, err
		}
	}
	if entity == nil {
		return nil, nil
	}
	return s.store.FindTask(ctx, entity.ID, tt.ID)
}

// findEntity matches value against entity names as they appear in rendered
// paths. An empty parentID matches any parent.
func (s *Service) findEntity(ctx context.Context, projectID string, kind models.EntityKind, parentID, value string) (*models.Entity, error) {
	if value == "" {
		return nil, nil
	}
	if parentID != "" {
		e, err := s.store.FindEntityByName(ctx, projectID, kind, parentID, value)
		if err != nil || e != nil {
			return e, err
		}
	}
	candidates, err := s.store.ListEntities(ctx, store.EntityFilter{ProjectID: projectID, Kind: kind, ParentID: parentID})
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if matchesName(value, candidates[i].Name) {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

func (s *Service) findTaskType(ctx context.Context, value string) (*models.TaskType, error) {
	tt, err := s.store.FindTaskTypeByName(ctx, value)
	if err != nil || tt != nil {
		return tt, err
	}
	all, err := s.store.ListTaskTypes(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if matchesName(value, all[i].Name, all[i].ShortName) {
			return &all[i], nil
		}
	}
	return nil, nil
}

// matchesName reports whether a rendered path segment came from one of names.
func matchesName(value string, names ...string) bool {
	for _, name := range names {
		if name != "" && strings.EqualFold(value, filetree.Sanitize(name)) {
			return true
		}
	}
	return false
}

// --- File Tree Operations ---

// FileTreeSummary describes a loaded template set.
type FileTreeSummary struct {
	Name     string   `json:"name"`
	Contexts []string `json:"contexts"`
	Default  bool     `json:"default"`
	Warnings []string `json:"warnings,omitempty"`
}

// ListFileTrees returns every loaded template set.
func (s *Service) ListFileTrees() []FileTreeSummary {
	reg := s.resolver.Registry()
	names := reg.Names()
	out := make([]FileTreeSummary, 0, len(names))
	for _, name := range names {
		set, err := reg.Get(name)
		if err != nil {
			continue
		}
		out = append(out, FileTreeSummary{
			Name:     name,
			Contexts: set.Contexts(),
			Default:  name == s.resolver.DefaultSet(),
			Warnings: set.Lint(),
		})
	}
	return out
}

// GetFileTree returns the named template set.
func (s *Service) GetFileTree(name string) (*filetree.TemplateSet, error) {
	return s.resolver.Registry().Get(name)
}

// --- Event Operations ---

// ListEvents returns event history, newest first.
func (s *Service) ListEvents(ctx context.Context, f store.EventFilter) ([]models.Event, error) {
	if f.Limit < 0 {
		return nil, invalid("limit", "must not be negative")
	}
	return s.store.ListEvents(ctx, f)
}
