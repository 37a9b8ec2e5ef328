package controlplane

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fentz26/prodtrack/internal/audit"
	"github.com/fentz26/prodtrack/internal/events"
	"github.com/fentz26/prodtrack/internal/filetree"
	"github.com/fentz26/prodtrack/internal/logging"
	"github.com/fentz26/prodtrack/internal/models"
	"github.com/fentz26/prodtrack/internal/store"
	"github.com/fentz26/prodtrack/internal/workflow"
)

type countingKicker struct{ n atomic.Int32 }

func (k *countingKicker) Kick() { k.n.Add(1) }

type testEnv struct {
	server  *Server
	service *Service
	store   *store.Store
	bus     *events.Bus
	kicker  *countingKicker
	handler http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	reg, err := filetree.NewRegistry()
	if err != nil {
		t.Fatalf("Failed to load registry: %v", err)
	}
	logger := logging.NewNop()
	kicker := &countingKicker{}
	svc := NewService(st, audit.NewPDRWriter(st), filetree.NewResolver(reg, "standard"), ServiceOptions{
		Labels: map[string]string{"waiting_approval": "WFA"},
		Kicker: kicker,
		Logger: logger,
	})
	bus := events.NewBus(logger)
	srv := NewServer(svc, ServerOptions{Bus: bus, Logger: logger, Version: "test"})

	return &testEnv{server: srv, service: svc, store: st, bus: bus, kicker: kicker, handler: srv.Handler()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode %s %s response: %v", method, path, err)
		}
	}
	return w.Code
}

type agent327 struct {
	project  models.Project
	sequence models.Entity
	shot     models.Entity
	taskType models.TaskType
	person   models.Person
	task     TaskView
}

// seedAgent327 builds project Agent327 with shot SQ01/SH002 and one animation task.
func (e *testEnv) seedAgent327(t *testing.T) agent327 {
	t.Helper()
	var f agent327
	mustStatus(t, http.StatusCreated, e.do(t, "POST", "/projects", ProjectInput{Name: "Agent327", Code: "A327", FileTree: "simple"}, &f.project))
	mustStatus(t, http.StatusCreated, e.do(t, "POST", "/projects/"+f.project.ID+"/entities", EntityInput{Kind: models.EntityKindSequence, Name: "SQ01"}, &f.sequence))
	mustStatus(t, http.StatusCreated, e.do(t, "POST", "/projects/"+f.project.ID+"/entities", EntityInput{Kind: models.EntityKindShot, Name: "SH002", ParentID: f.sequence.ID}, &f.shot))

	var dept models.Department
	mustStatus(t, http.StatusCreated, e.do(t, "POST", "/departments", models.Department{Name: "Animation", ShortName: "ANIM"}, &dept))
	mustStatus(t, http.StatusCreated, e.do(t, "POST", "/task-types", models.TaskType{Name: "Animation", ShortName: "anim", DepartmentID: dept.ID}, &f.taskType))
	mustStatus(t, http.StatusCreated, e.do(t, "POST", "/persons", models.Person{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}, &f.person))
	mustStatus(t, http.StatusCreated, e.do(t, "POST", "/tasks", TaskInput{EntityID: f.shot.ID, TaskTypeID: f.taskType.ID}, &f.task))
	return f
}

func mustStatus(t *testing.T, want, got int) {
	t.Helper()
	if got != want {
		t.Fatalf("Expected status %d, got %d", want, got)
	}
}

func TestHealthEndpoint_OK(t *testing.T) {
	env := newTestEnv(t)

	var health HealthResponse
	mustStatus(t, http.StatusOK, env.do(t, "GET", "/health", nil, &health))

	if !health.OK {
		t.Error("Expected health.OK to be true")
	}
	if health.DB != "ok" {
		t.Errorf("Expected DB status 'ok', got '%s'", health.DB)
	}
	if health.Version != "test" {
		t.Errorf("Expected version 'test', got '%s'", health.Version)
	}
	if health.Time.IsZero() {
		t.Error("Expected time to be set")
	}
}

func TestHealthEndpoint_DBDown(t *testing.T) {
	env := newTestEnv(t)
	env.store.Close()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	env.server.handleHealth(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", w.Code)
	}
	var health HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if health.OK || health.DB == "ok" {
		t.Errorf("Expected unhealthy DB, got %+v", health)
	}
}

func TestProjectEndpoints(t *testing.T) {
	env := newTestEnv(t)

	var p models.Project
	mustStatus(t, http.StatusCreated, env.do(t, "POST", "/projects", ProjectInput{Name: "  Caminandes "}, &p))
	if p.Name != "Caminandes" {
		t.Errorf("Expected trimmed name, got %q", p.Name)
	}

	var got models.Project
	mustStatus(t, http.StatusOK, env.do(t, "GET", "/projects/"+p.ID, nil, &got))
	if got.ID != p.ID {
		t.Errorf("Expected project %s, got %s", p.ID, got.ID)
	}

	tree := "simple"
	var patched models.Project
	mustStatus(t, http.StatusOK, env.do(t, "PATCH", "/projects/"+p.ID, ProjectPatch{
		FileTree:     &tree,
		StatusLabels: map[string]string{"retake": "Fix"},
	}, &patched))
	if patched.FileTree != "simple" || patched.StatusLabels["retake"] != "Fix" {
		t.Errorf("Patch not applied: %+v", patched)
	}

	var list []models.Project
	mustStatus(t, http.StatusOK, env.do(t, "GET", "/projects", nil, &list))
	if len(list) != 1 {
		t.Errorf("Expected 1 project, got %d", len(list))
	}

	bad := "nope"
	mustStatus(t, http.StatusNotFound, env.do(t, "PATCH", "/projects/"+p.ID, ProjectPatch{FileTree: &bad}, nil))
	mustStatus(t, http.StatusBadRequest, env.do(t, "PATCH", "/projects/"+p.ID, ProjectPatch{StatusLabels: map[string]string{"paused": "Paused"}}, nil))
	mustStatus(t, http.StatusBadRequest, env.do(t, "POST", "/projects", ProjectInput{}, nil))
	mustStatus(t, http.StatusNotFound, env.do(t, "GET", "/projects/missing", nil, nil))
}

func TestEntityHierarchy(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedAgent327(t)
	base := "/projects/" + f.project.ID + "/entities"

	tests := []struct {
		name string
		in   EntityInput
		want int
	}{
		{"shot without parent", EntityInput{Kind: models.EntityKindShot, Name: "SH010"}, http.StatusBadRequest},
		{"shot under shot", EntityInput{Kind: models.EntityKindShot, Name: "SH010", ParentID: f.shot.ID}, http.StatusBadRequest},
		{"asset without type", EntityInput{Kind: models.EntityKindAsset, Name: "Agent"}, http.StatusBadRequest},
		{"unknown kind", EntityInput{Kind: "layer", Name: "BG"}, http.StatusBadRequest},
		{"duplicate shot", EntityInput{Kind: models.EntityKindShot, Name: "SH002", ParentID: f.sequence.ID}, http.StatusConflict},
		{"second shot", EntityInput{Kind: models.EntityKindShot, Name: "SH003", ParentID: f.sequence.ID}, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := env.do(t, "POST", base, tt.in, nil); got != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, got)
			}
		})
	}

	var shots []models.Entity
	mustStatus(t, http.StatusOK, env.do(t, "GET", base+"?kind=shot", nil, &shots))
	if len(shots) != 2 {
		t.Errorf("Expected 2 shots, got %d", len(shots))
	}
	mustStatus(t, http.StatusBadRequest, env.do(t, "GET", base+"?kind=layer", nil, nil))
}

func TestCreateTask(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedAgent327(t)

	if f.task.Status != models.TaskStatusTodo {
		t.Errorf("Expected todo, got %s", f.task.Status)
	}
	if f.task.Name != DefaultTaskName {
		t.Errorf("Expected default name, got %q", f.task.Name)
	}
	if f.task.ProjectID != f.project.ID {
		t.Errorf("Expected project from entity, got %q", f.task.ProjectID)
	}

	mustStatus(t, http.StatusBadRequest, env.do(t, "POST", "/tasks", TaskInput{EntityID: f.shot.ID, TaskTypeID: f.taskType.ID, Name: "layout", Assignees: []string{"ghost"}}, nil))
	mustStatus(t, http.StatusNotFound, env.do(t, "POST", "/tasks", TaskInput{EntityID: "missing", TaskTypeID: f.taskType.ID}, nil))
	mustStatus(t, http.StatusConflict, env.do(t, "POST", "/tasks", TaskInput{EntityID: f.shot.ID, TaskTypeID: f.taskType.ID}, nil))
	mustStatus(t, http.StatusBadRequest, env.do(t, "GET", "/tasks?status=paused", nil, nil))
}

func TestTaskWorkflow(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedAgent327(t)
	base := "/tasks/" + f.task.ID

	var res TransitionResponse
	mustStatus(t, http.StatusConflict, env.do(t, "POST", base+"/approve", nil, nil))

	mustStatus(t, http.StatusOK, env.do(t, "POST", base+"/start", nil, &res))
	if res.Task.Status != models.TaskStatusWIP || res.Task.RealStartDate == nil {
		t.Fatalf("Expected wip with start date, got %+v", res.Task)
	}
	if len(res.Events) != 1 || res.Events[0].Name != "task:start" {
		t.Errorf("Expected one task:start event, got %+v", res.Events)
	}

	mustStatus(t, http.StatusOK, env.do(t, "POST", base+"/to-review", nil, &res))
	if res.Task.StatusLabel != "WFA" {
		t.Errorf("Expected studio label WFA, got %q", res.Task.StatusLabel)
	}

	mustStatus(t, http.StatusOK, env.do(t, "POST", base+"/retake", nil, &res))
	if res.Task.Status != models.TaskStatusRetake || res.Task.RetakeCount != 1 {
		t.Errorf("Expected retake #1, got %+v", res.Task)
	}

	mustStatus(t, http.StatusOK, env.do(t, "POST", base+"/start", nil, &res))
	mustStatus(t, http.StatusOK, env.do(t, "POST", base+"/to-review", nil, &res))
	mustStatus(t, http.StatusOK, env.do(t, "POST", base+"/approve", nil, &res))
	if res.Task.Status != models.TaskStatusDone || res.Task.DoneDate == nil {
		t.Errorf("Expected done with done date, got %+v", res.Task)
	}

	if got := env.kicker.n.Load(); got != 6 {
		t.Errorf("Expected 6 kicks, got %d", got)
	}

	mustStatus(t, http.StatusNotFound, env.do(t, "POST", base+"/pause", nil, nil))
	mustStatus(t, http.StatusNotFound, env.do(t, "POST", "/tasks/missing/start", nil, nil))
}

func TestTaskAssignment(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedAgent327(t)
	base := "/tasks/" + f.task.ID

	var res TransitionResponse
	mustStatus(t, http.StatusBadRequest, env.do(t, "POST", base+"/assign", map[string]any{"person_ids": []string{"ghost"}}, nil))

	mustStatus(t, http.StatusOK, env.do(t, "POST", base+"/assign", map[string]any{"person_ids": []string{f.person.ID}}, &res))
	if len(res.Task.Assignees) != 1 || res.Task.Assignees[0] != f.person.ID {
		t.Fatalf("Expected assignee %s, got %v", f.person.ID, res.Task.Assignees)
	}

	var tasks []TaskView
	mustStatus(t, http.StatusOK, env.do(t, "GET", "/tasks?assignee="+f.person.ID, nil, &tasks))
	if len(tasks) != 1 {
		t.Errorf("Expected 1 assigned task, got %d", len(tasks))
	}

	// Assigning again changes nothing and emits nothing.
	kicks := env.kicker.n.Load()
	mustStatus(t, http.StatusOK, env.do(t, "POST", base+"/assign", map[string]any{"person_ids": []string{f.person.ID}}, &res))
	if len(res.Events) != 0 || env.kicker.n.Load() != kicks {
		t.Errorf("Expected idempotent assign, got %d events", len(res.Events))
	}

	mustStatus(t, http.StatusOK, env.do(t, "POST", base+"/unassign", map[string]any{"person_id": f.person.ID}, &res))
	if len(res.Task.Assignees) != 0 {
		t.Errorf("Expected no assignees, got %v", res.Task.Assignees)
	}
}

func TestTaskPath(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedAgent327(t)

	var res PathResult
	mustStatus(t, http.StatusOK, env.do(t, "GET", "/tasks/"+f.task.ID+"/path?sep=/&version=3&comment=first+pass", nil, &res))

	if want := "/simple/productions/agent327/sq01/sh002/animation"; res.FolderPath != want {
		t.Errorf("FolderPath = %q, want %q", res.FolderPath, want)
	}
	if want := "agent327_sq01_sh002_animation_v003_first_pass"; res.FileName != want {
		t.Errorf("FileName = %q, want %q", res.FileName, want)
	}
	if want := res.FolderPath + "/" + res.FileName; res.FilePath != want {
		t.Errorf("FilePath = %q, want %q", res.FilePath, want)
	}

	mustStatus(t, http.StatusOK, env.do(t, "GET", "/tasks/"+f.task.ID+"/path?sep=%5C", nil, &res))
	if want := `\simple\productions\agent327\sq01\sh002\animation`; res.FolderPath != want {
		t.Errorf("FolderPath = %q, want %q", res.FolderPath, want)
	}

	mustStatus(t, http.StatusBadRequest, env.do(t, "GET", "/tasks/"+f.task.ID+"/path?sep=:", nil, nil))
	mustStatus(t, http.StatusBadRequest, env.do(t, "GET", "/tasks/"+f.task.ID+"/path?version=-1", nil, nil))
	mustStatus(t, http.StatusBadRequest, env.do(t, "GET", "/tasks/"+f.task.ID+"/path?context=render", nil, nil))
	// The simple tree has no output context.
	mustStatus(t, http.StatusBadRequest, env.do(t, "GET", "/tasks/"+f.task.ID+"/path?context=output", nil, nil))
}

func TestGuessTask(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedAgent327(t)
	url := "/projects/" + f.project.ID + "/guess-task"

	var task TaskView
	mustStatus(t, http.StatusOK, env.do(t, "POST", url, GuessInput{Path: "/simple/productions/agent327/sq01/sh002/animation"}, &task))
	if task.ID != f.task.ID {
		t.Errorf("Expected task %s, got %s", f.task.ID, task.ID)
	}

	mustStatus(t, http.StatusOK, env.do(t, "POST", url, GuessInput{Path: `\simple\productions\agent327\sq01\sh002\animation\`, Separator: `\`}, &task))
	if task.ID != f.task.ID {
		t.Errorf("Expected task %s from backslash path, got %s", f.task.ID, task.ID)
	}

	mustStatus(t, http.StatusNotFound, env.do(t, "POST", url, GuessInput{Path: "/simple/productions/agent327/sq01/sh999/animation"}, nil))
	mustStatus(t, http.StatusNotFound, env.do(t, "POST", url, GuessInput{Path: "/elsewhere/agent327"}, nil))
	mustStatus(t, http.StatusBadRequest, env.do(t, "POST", url, GuessInput{}, nil))
}

func TestNonLatinShotPathRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedAgent327(t)

	var shot models.Entity
	mustStatus(t, http.StatusCreated, env.do(t, "POST", "/projects/"+f.project.ID+"/entities", EntityInput{Kind: models.EntityKindShot, Name: "ショット", ParentID: f.sequence.ID}, &shot))
	var task TaskView
	mustStatus(t, http.StatusCreated, env.do(t, "POST", "/tasks", TaskInput{EntityID: shot.ID, TaskTypeID: f.taskType.ID}, &task))

	var res PathResult
	mustStatus(t, http.StatusOK, env.do(t, "GET", "/tasks/"+task.ID+"/path?sep=/", nil, &res))
	if res.FolderPath == "" || strings.Contains(res.FolderPath, "//") {
		t.Fatalf("Unexpected folder path %q", res.FolderPath)
	}

	var guessed TaskView
	mustStatus(t, http.StatusOK, env.do(t, "POST", "/projects/"+f.project.ID+"/guess-task", GuessInput{Path: res.FolderPath}, &guessed))
	if guessed.ID != task.ID {
		t.Errorf("Expected task %s for %q, got %s", task.ID, res.FolderPath, guessed.ID)
	}
}

func TestFileTreeEndpoints(t *testing.T) {
	env := newTestEnv(t)

	var trees []FileTreeSummary
	mustStatus(t, http.StatusOK, env.do(t, "GET", "/file-trees", nil, &trees))
	names := make(map[string]FileTreeSummary)
	for _, tr := range trees {
		names[tr.Name] = tr
	}
	if !names["standard"].Default {
		t.Errorf("Expected standard to be the default, got %+v", trees)
	}
	if _, ok := names["simple"]; !ok {
		t.Errorf("Expected simple tree, got %+v", trees)
	}

	var doc filetree.Document
	mustStatus(t, http.StatusOK, env.do(t, "GET", "/file-trees/simple", nil, &doc))
	if root := doc["working"].Root; root == nil || *root != "productions" {
		t.Errorf("Expected working root productions, got %+v", doc["working"])
	}
	mustStatus(t, http.StatusNotFound, env.do(t, "GET", "/file-trees/nope", nil, nil))
}

func TestListEvents(t *testing.T) {
	env := newTestEnv(t)
	f := env.seedAgent327(t)

	mustStatus(t, http.StatusOK, env.do(t, "POST", "/tasks/"+f.task.ID+"/start", nil, nil))
	mustStatus(t, http.StatusOK, env.do(t, "POST", "/tasks/"+f.task.ID+"/to-review", nil, nil))

	var evs []models.Event
	mustStatus(t, http.StatusOK, env.do(t, "GET", "/events?task_id="+f.task.ID, nil, &evs))
	if len(evs) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(evs))
	}
	if evs[0].Name != "task:to-review" {
		t.Errorf("Expected newest first, got %s", evs[0].Name)
	}

	mustStatus(t, http.StatusOK, env.do(t, "GET", "/events?limit=1", nil, &evs))
	if len(evs) != 1 {
		t.Errorf("Expected limit to apply, got %d", len(evs))
	}
	mustStatus(t, http.StatusBadRequest, env.do(t, "GET", "/events?after=yesterday", nil, nil))
	mustStatus(t, http.StatusBadRequest, env.do(t, "GET", "/events?limit=-1", nil, nil))
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Expected event stream, got %q", ct)
	}

	for env.bus.Subscribers() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("Timed out waiting for subscriber")
		case <-time.After(10 * time.Millisecond):
		}
	}
	ev := models.Event{ID: "ev-1", Name: "task:start", TaskID: "t1", Status: models.TaskStatusWIP}
	if err := env.bus.Publish(ctx, []models.Event{ev}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" && len(lines) > 0 {
			break
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) != 3 || lines[0] != "id: ev-1" || lines[1] != "event: task:start" {
		t.Fatalf("Unexpected frame: %q", lines)
	}
	var got models.Event
	if err := json.Unmarshal([]byte(strings.TrimPrefix(lines[2], "data: ")), &got); err != nil {
		t.Fatalf("Failed to decode data: %v", err)
	}
	if got.TaskID != "t1" {
		t.Errorf("Expected task t1, got %q", got.TaskID)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&store.NotFoundError{Kind: "task", ID: "x"}, http.StatusNotFound},
		{&workflow.InvalidTransitionError{Operation: workflow.OpApprove, From: models.TaskStatusTodo}, http.StatusConflict},
		{&workflow.UnknownPersonError{IDs: []string{"x"}}, http.StatusBadRequest},
		{&filetree.UnresolvedTagError{Tag: "Foo"}, http.StatusUnprocessableEntity},
		{invalid("name", "required"), http.StatusBadRequest},
		{ErrNoTaskForPath, http.StatusNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
