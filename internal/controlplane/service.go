// Package controlplane provides the HTTP API and service layer for prodtrack.
package controlplane

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fentz26/prodtrack/internal/audit"
	"github.com/fentz26/prodtrack/internal/filetree"
	"github.com/fentz26/prodtrack/internal/models"
	"github.com/fentz26/prodtrack/internal/store"
	"github.com/fentz26/prodtrack/internal/workflow"
)

// DefaultTaskName is used when a task is created without a name.
const DefaultTaskName = "main"

// Kicker is notified after a commit that produced events.
type Kicker interface {
	Kick()
}

// Service provides the control plane business logic.
type Service struct {
	store    *store.Store
	pdr      *audit.PDRWriter
	resolver *filetree.Resolver
	labels   map[string]string
	kicker   Kicker
	logger   *slog.Logger
	now      func() time.Time
}

// ServiceOptions carries the optional collaborators of a Service.
type ServiceOptions struct {
	// Labels are the studio-wide status labels projects override.
	Labels map[string]string
	Kicker Kicker
	Logger *slog.Logger
}

// NewService creates a new control plane service.
func NewService(s *store.Store, pdr *audit.PDRWriter, resolver *filetree.Resolver, opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    s,
		pdr:      pdr,
		resolver: resolver,
		labels:   opts.Labels,
		kicker:   opts.Kicker,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the backing store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) record(ctx context.Context, action string, inputs any, outcome, subjectID string) {
	if _, err := s.pdr.Record(ctx, action, inputs, outcome, subjectID, ""); err != nil {
		s.logger.Warn("pdr write failed", "action", action, "subject", subjectID, "error", err)
	}
}

// --- Project Operations ---

// ProjectInput is the payload of project creation.
type ProjectInput struct {
	Name         string            `json:"name"`
	Code         string            `json:"code,omitempty"`
	FileTree     string            `json:"file_tree,omitempty"`
	StatusLabels map[string]string `json:"status_labels,omitempty"`
}

// CreateProject creates a project after checking its file tree and labels.
func (s *Service) CreateProject(ctx context.Context, in ProjectInput) (*models.Project, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalid("name", "required")
	}
	if err := s.checkFileTree(in.FileTree); err != nil {
		return nil, err
	}
	if err := workflow.ValidateLabels(in.StatusLabels); err != nil {
		return nil, err
	}

	p, err := s.store.CreateProject(ctx, models.Project{
		Name:         in.Name,
		Code:         strings.TrimSpace(in.Code),
		FileTree:     in.FileTree,
		StatusLabels: in.StatusLabels,
	})
	if err != nil {
		s.record(ctx, "project.create", in, audit.OutcomeFailure, "")
		return nil, err
	}
	s.record(ctx, "project.create", in, audit.OutcomeSuccess, p.ID)
	return p, nil
}

// GetProject returns a project or a not found error.
func (s *Service) GetProject(ctx context.Context, id string) (*models.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &store.NotFoundError{Kind: "project", ID: id}
	}
	return p, nil
}

// ListProjects returns every project.
func (s *Service) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.store.ListProjects(ctx)
}

// ProjectPatch lists the fields to change. Nil fields are kept.
type ProjectPatch struct {
	Name         *string           `json:"name,omitempty"`
	Code         *string           `json:"code,omitempty"`
	FileTree     *string           `json:"file_tree,omitempty"`
	StatusLabels map[string]string `json:"status_labels,omitempty"`
}

// UpdateProject applies patch to the project.
func (s *Service) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (*models.Project, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, invalid("name", "must not be empty")
		}
		p.Name = name
	}
	if patch.Code != nil {
		p.Code = strings.TrimSpace(*patch.Code)
	}
	if patch.FileTree != nil {
		if err := s.checkFileTree(*patch.FileTree); err != nil {
			return nil, err
		}
		p.FileTree = *patch.FileTree
	}
	if patch.StatusLabels != nil {
		if err := workflow.ValidateLabels(patch.StatusLabels); err != nil {
			return nil, err
		}
		p.StatusLabels = patch.StatusLabels
	}

	if err := s.store.UpdateProject(ctx, p); err != nil {
		s.record(ctx, "project.update", patch, audit.OutcomeFailure, id)
		return nil, err
	}
	s.record(ctx, "project.update", patch, audit.OutcomeSuccess, id)
	return p, nil
}

func (s *Service) checkFileTree(name string) error {
	if name == "" {
		return nil
	}
	_, err := s.resolver.Registry().Get(name)
	return err
}

// Labels returns the status labels effective for project.
func (s *Service) Labels(project *models.Project) workflow.Labels {
	var overrides map[string]string
	if project != nil {
		overrides = project.StatusLabels
	}
	return workflow.ResolveLabels(s.labels, overrides)
}

// --- Entity Operations ---

// EntityInput is the payload of entity creation.
type EntityInput struct {
	Kind        models.EntityKind `json:"kind"`
	Name        string            `json:"name"`
	ParentID    string            `json:"parent_id,omitempty"`
	AssetTypeID string            `json:"asset_type_id,omitempty"`
	Description string            `json:"description,omitempty"`
}

// CreateEntity creates an entity in projectID after checking its hierarchy.
func (s *Service) CreateEntity(ctx context.Context, projectID string, in EntityInput) (*models.Entity, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalid("name", "required")
	}
	if !in.Kind.Valid() {
		return nil, invalid("kind", "unknown entity kind %q", in.Kind)
	}
	if err := s.checkHierarchy(ctx, projectID, in); err != nil {
		return nil, err
	}

	e, err := s.store.CreateEntity(ctx, models.Entity{
		ProjectID:   projectID,
		Kind:        in.Kind,
		Name:        in.Name,
		ParentID:    in.ParentID,
		AssetTypeID: in.AssetTypeID,
		Description: in.Description,
	})
	if err != nil {
		s.record(ctx, "entity.create", in, audit.OutcomeFailure, "")
		return nil, err
	}
	s.record(ctx, "entity.create", in, audit.OutcomeSuccess, e.ID)
	return e, nil
}

func (s *Service) checkHierarchy(ctx context.Context, projectID string, in EntityInput) error {
	kind := string(in.Kind)
	switch in.Kind {
	case models.EntityKindAsset:
		if in.ParentID != "" {
			return &ParentError{Kind: kind, Msg: "assets have no parent"}
		}
		if in.AssetTypeID == "" {
			return invalid("asset_type_id", "required for assets")
		}
		at, err := s.store.GetAssetType(ctx, in.AssetTypeID)
		if err != nil {
			return err
		}
		if at == nil {
			return &store.NotFoundError{Kind: "asset type", ID: in.AssetTypeID}
		}
		return nil
	case models.EntityKindEpisode:
		if in.ParentID != "" {
			return &ParentError{Kind: kind, Msg: "episodes have no parent"}
		}
	case models.EntityKindShot:
		if in.ParentID == "" {
			return &ParentError{Kind: kind, Msg: "a shot needs a parent sequence"}
		}
		return s.checkParent(ctx, projectID, in, models.EntityKindSequence)
	case models.EntityKindSequence:
		if in.ParentID != "" {
			return s.checkParent(ctx, projectID, in, models.EntityKindEpisode)
		}
	}
	if in.AssetTypeID != "" {
		return invalid("asset_type_id", "only assets have an asset type")
	}
	return nil
}

func (s *Service) checkParent(ctx context.Context, projectID string, in EntityInput, want models.EntityKind) error {
	if in.AssetTypeID != "" {
		return invalid("asset_type_id", "only assets have an asset type")
	}
	parent, err := s.store.GetEntity(ctx, in.ParentID)
	if err != nil {
		return err
	}
	if parent == nil || parent.ProjectID != projectID || parent.Kind != want {
		return &ParentError{Kind: string(in.Kind), Msg: "parent must be a " + string(want) + " of the same project"}
	}
	return nil
}

// GetEntity returns an entity or a not found error.
func (s *Service) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	e, err := s.store.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, &store.NotFoundError{Kind: "entity", ID: id}
	}
	return e, nil
}

// ListEntities returns the entities of a project, optionally of one kind.
func (s *Service) ListEntities(ctx context.Context, projectID string, kind models.EntityKind) ([]models.Entity, error) {
	if kind != "" && !kind.Valid() {
		return nil, invalid("kind", "unknown entity kind %q", kind)
	}
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListEntities(ctx, store.EntityFilter{ProjectID: projectID, Kind: kind})
}

// --- Catalog Operations ---

// CreateAssetType creates an asset type.
func (s *Service) CreateAssetType(ctx context.Context, in models.AssetType) (*models.AssetType, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name", "required")
	}
	return s.store.CreateAssetType(ctx, models.AssetType{Name: strings.TrimSpace(in.Name), ShortName: strings.TrimSpace(in.ShortName)})
}

// ListAssetTypes returns every asset type.
func (s *Service) ListAssetTypes(ctx context.Context) ([]models.AssetType, error) {
	return s.store.ListAssetTypes(ctx)
}

// CreateDepartment creates a department.
func (s *Service) CreateDepartment(ctx context.Context, in models.Department) (*models.Department, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name", "required")
	}
	return s.store.CreateDepartment(ctx, models.Department{Name: strings.TrimSpace(in.Name), ShortName: strings.TrimSpace(in.ShortName)})
}

// ListDepartments returns every department.
func (s *Service) ListDepartments(ctx context.Context) ([]models.Department, error) {
	return s.store.ListDepartments(ctx)
}

// CreateTaskType creates a task type, checking its department when set.
func (s *Service) CreateTaskType(ctx context.Context, in models.TaskType) (*models.TaskType, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalid("name", "required")
	}
	if in.DepartmentID != "" {
		d, err := s.store.GetDepartment(ctx, in.DepartmentID)
		if err != nil {
			return nil, err
		}
		if d == nil {
			return nil, &store.NotFoundError{Kind: "department", ID: in.DepartmentID}
		}
	}
	return s.store.CreateTaskType(ctx, models.TaskType{
		Name:         strings.TrimSpace(in.Name),
		ShortName:    strings.TrimSpace(in.ShortName),
		DepartmentID: in.DepartmentID,
	})
}

// ListTaskTypes returns every task type.
func (s *Service) ListTaskTypes(ctx context.Context) ([]models.TaskType, error) {
	return s.store.ListTaskTypes(ctx)
}

// CreatePerson creates a person.
func (s *Service) CreatePerson(ctx context.Context, in models.Person) (*models.Person, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.Email = strings.TrimSpace(in.Email)
	if in.FirstName == "" {
		return nil, invalid("first_name", "required")
	}
	if !strings.Contains(in.Email, "@") {
		return nil, invalid("email", "must be an email address")
	}
	p, err := s.store.CreatePerson(ctx, models.Person{FirstName: in.FirstName, LastName: strings.TrimSpace(in.LastName), Email: in.Email})
	if err != nil {
		s.record(ctx, "person.create", in, audit.OutcomeFailure, "")
		return nil, err
	}
	s.record(ctx, "person.create", in, audit.OutcomeSuccess, p.ID)
	return p, nil
}

// ListPersons returns every person.
func (s *Service) ListPersons(ctx context.Context) ([]models.Person, error) {
	return s.store.ListPersons(ctx)
}
