package controlplane

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fentz26/prodtrack/internal/filetree"
	"github.com/fentz26/prodtrack/internal/models"
	"github.com/fentz26/prodtrack/internal/store"
	"github.com/fentz26/prodtrack/internal/workflow"
)

// --- Project Handlers ---

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectInput
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.service.CreateProject(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.service.ListProjects(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(projects))
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectPatch
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.service.UpdateProject(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- Entity Handlers ---

func (s *Server) createEntity(w http.ResponseWriter, r *http.Request) {
	var req EntityInput
	if !s.decode(w, r, &req) {
		return
	}
	e, err := s.service.CreateEntity(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) listEntities(w http.ResponseWriter, r *http.Request) {
	kind := models.EntityKind(r.URL.Query().Get("kind"))
	entities, err := s.service.ListEntities(r.Context(), r.PathValue("id"), kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(entities))
}

func (s *Server) getEntity(w http.ResponseWriter, r *http.Request) {
	e, err := s.service.GetEntity(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// --- Catalog Handlers ---

func (s *Server) createAssetType(w http.ResponseWriter, r *http.Request) {
	var req models.AssetType
	if !s.decode(w, r, &req) {
		return
	}
	at, err := s.service.CreateAssetType(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, at)
}

func (s *Server) listAssetTypes(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListAssetTypes(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) createDepartment(w http.ResponseWriter, r *http.Request) {
	var req models.Department
	if !s.decode(w, r, &req) {
		return
	}
	d, err := s.service.CreateDepartment(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) listDepartments(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListDepartments(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) createTaskType(w http.ResponseWriter, r *http.Request) {
	var req models.TaskType
	if !s.decode(w, r, &req) {
		return
	}
	tt, err := s.service.CreateTaskType(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tt)
}

func (s *Server) listTaskTypes(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListTaskTypes(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) createPerson(w http.ResponseWriter, r *http.Request) {
	var req models.Person
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.service.CreatePerson(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) listPersons(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListPersons(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(items))
}

// --- Task Handlers ---

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req TaskInput
	if !s.decode(w, r, &req) {
		return
	}
	task, err := s.service.CreateTask(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tasks, err := s.service.ListTasks(r.Context(), store.TaskFilter{
		ProjectID:  q.Get("project_id"),
		EntityID:   q.Get("entity_id"),
		TaskTypeID: q.Get("task_type_id"),
		Status:     models.TaskStatus(q.Get("status")),
		Assignee:   q.Get("assignee"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(tasks))
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.service.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// transitionRequest accepts person_id as a shorthand for a single person.
type transitionRequest struct {
	PersonID  string   `json:"person_id,omitempty"`
	PersonIDs []string `json:"person_ids,omitempty"`
}

// TransitionResponse is the body returned by workflow operations.
type TransitionResponse struct {
	Task   *TaskView      `json:"task"`
	Events []models.Event `json:"events"`
}

func (s *Server) transitionTask(w http.ResponseWriter, r *http.Request) {
	op, err := workflow.ParseOperation(r.PathValue("op"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	var req transitionRequest
	if !s.decode(w, r, &req) {
		return
	}
	ids := req.PersonIDs
	if req.PersonID != "" {
		ids = append(ids, req.PersonID)
	}

	task, evs, err := s.service.Transition(r.Context(), r.PathValue("id"), workflow.Request{Operation: op, PersonIDs: ids})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TransitionResponse{Task: task, Events: nonNil(evs)})
}

func (s *Server) taskPath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := filetree.Options{
		Separator:  q.Get("sep"),
		Comment:    q.Get("comment"),
		Name:       q.Get("name"),
		Software:   q.Get("software"),
		OutputType: q.Get("output_type"),
	}
	if v := q.Get("version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, invalid("version", "must be an integer"))
			return
		}
		opts.Version = n
	}

	res, err := s.service.ResolvePath(r.Context(), r.PathValue("id"), q.Get("context"), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) guessTask(w http.ResponseWriter, r *http.Request) {
	var req GuessInput
	if !s.decode(w, r, &req) {
		return
	}
	task, err := s.service.GuessTask(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// --- File Tree Handlers ---

func (s *Server) listFileTrees(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListFileTrees())
}

func (s *Server) getFileTree(w http.ResponseWriter, r *http.Request) {
	set, err := s.service.GetFileTree(r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// --- Event Handlers ---

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.EventFilter{
		ProjectID: q.Get("project_id"),
		TaskID:    q.Get("task_id"),
	}
	for name, dst := range map[string]**time.Time{"after": &f.After, "before": &f.Before} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, r, invalid(name, "must be an RFC 3339 time"))
			return
		}
		*dst = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, invalid("limit", "must be an integer"))
			return
		}
		f.Limit = n
	}

	evs, err := s.service.ListEvents(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(evs))
}
