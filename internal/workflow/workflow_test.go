package workflow

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/fentz26/prodtrack/internal/models"
)

var (
	t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

func newTask(status models.TaskStatus) models.Task {
	return models.Task{ID: "task-1", ProjectID: "proj-1", Status: status, Assignees: []string{}}
}

func TestStartStampsRealStartOnce(t *testing.T) {
	task := newTask(models.TaskStatusTodo)

	started, events, err := Apply(task, Request{Operation: OpStart}, t0)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if started.Status != models.TaskStatusWIP {
		t.Errorf("Expected wip, got %s", started.Status)
	}
	if started.RealStartDate == nil || !started.RealStartDate.Equal(t0) {
		t.Errorf("Expected real start %v, got %v", t0, started.RealStartDate)
	}
	if len(events) != 1 || events[0].Name != "task:start" || events[0].PreviousStatus != models.TaskStatusTodo {
		t.Errorf("Unexpected events %+v", events)
	}
	if task.Status != models.TaskStatusTodo {
		t.Error("Input task must not be mutated")
	}

	again, events, err := Apply(started, Request{Operation: OpStart}, t1)
	if err != nil {
		t.Fatalf("start on wip failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no events for a no-op start, got %d", len(events))
	}
	if !again.RealStartDate.Equal(t0) {
		t.Errorf("Real start changed to %v", again.RealStartDate)
	}
}

func TestStartFromRetakeKeepsRealStart(t *testing.T) {
	task := newTask(models.TaskStatusRetake)
	task.RealStartDate = &t0

	got, _, err := Apply(task, Request{Operation: OpStart}, t1)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if got.Status != models.TaskStatusWIP {
		t.Errorf("Expected wip, got %s", got.Status)
	}
	if !got.RealStartDate.Equal(t0) {
		t.Errorf("Expected real start to stay %v, got %v", t0, got.RealStartDate)
	}
}

func TestFullCycle(t *testing.T) {
	task := newTask(models.TaskStatusTodo)
	steps := []struct {
		op   Operation
		want models.TaskStatus
	}{
		{OpStart, models.TaskStatusWIP},
		{OpToReview, models.TaskStatusWaitingApproval},
		{OpApprove, models.TaskStatusDone},
		{OpRetake, models.TaskStatusRetake},
		{OpStart, models.TaskStatusWIP},
		{OpToReview, models.TaskStatusWaitingApproval},
		{OpRetake, models.TaskStatusRetake},
	}

	for i, step := range steps {
		next, events, err := Apply(task, Request{Operation: step.op}, t0.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("step %d (%s) failed: %v", i, step.op, err)
		}
		if next.Status != step.want {
			t.Fatalf("step %d: expected %s, got %s", i, step.want, next.Status)
		}
		if len(events) != 1 || events[0].Status != step.want || events[0].Operation != string(step.op) {
			t.Fatalf("step %d: unexpected events %+v", i, events)
		}
		task = next
	}
	if task.RetakeCount != 2 {
		t.Errorf("Expected 2 retakes, got %d", task.RetakeCount)
	}
	if task.DoneDate != nil || task.EndDate != nil {
		t.Error("Retake must clear completion markers")
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		op   Operation
		from models.TaskStatus
	}{
		{OpApprove, models.TaskStatusTodo},
		{OpApprove, models.TaskStatusDone},
		{OpToReview, models.TaskStatusTodo},
		{OpRetake, models.TaskStatusTodo},
		{OpRetake, models.TaskStatusWIP},
		{OpStart, models.TaskStatusDone},
		{OpStart, models.TaskStatusWaitingApproval},
	}

	for _, tt := range tests {
		t.Run(string(tt.op)+"_from_"+string(tt.from), func(t *testing.T) {
			task := newTask(tt.from)
			got, events, err := Apply(task, Request{Operation: tt.op}, t0)

			var transErr *InvalidTransitionError
			if !errors.As(err, &transErr) {
				t.Fatalf("Expected InvalidTransitionError, got %v", err)
			}
			if transErr.From != tt.from || transErr.Operation != tt.op || transErr.To != transitions[tt.op].to {
				t.Errorf("Unexpected error fields %+v", transErr)
			}
			msg := err.Error()
			if !strings.Contains(msg, "status "+string(tt.from)) || !strings.Contains(msg, "(to "+string(transitions[tt.op].to)+")") {
				t.Errorf("Error %q must name the current and requested status", msg)
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Error("Expected errors.Is(ErrInvalidTransition)")
			}
			if got.Status != tt.from || len(events) != 0 {
				t.Error("Failed transition must not change the task")
			}
		})
	}
}

func TestUnknownOperation(t *testing.T) {
	_, _, err := Apply(newTask(models.TaskStatusTodo), Request{Operation: "publish"}, t0)
	if !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("Expected ErrUnknownOperation, got %v", err)
	}
	if _, err := ParseOperation("to-review"); err != nil {
		t.Errorf("ParseOperation failed: %v", err)
	}
}

func TestAssignReplacesAndDiffs(t *testing.T) {
	task := newTask(models.TaskStatusWIP)

	got, events, err := Apply(task, Request{Operation: OpAssign, PersonIDs: []string{"bob", "alice", "bob"}}, t0)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if !reflect.DeepEqual(got.Assignees, []string{"alice", "bob"}) {
		t.Errorf("Assignees = %v", got.Assignees)
	}
	if len(events) != 2 || events[0].PersonID != "alice" || events[0].Name != "task:assign" {
		t.Errorf("Unexpected events %+v", events)
	}
	if got.Status != models.TaskStatusWIP {
		t.Error("assign must not change status")
	}

	got, events, _ = Apply(got, Request{Operation: OpAssign, PersonIDs: []string{"carol", "alice"}}, t1)
	if !reflect.DeepEqual(got.Assignees, []string{"alice", "carol"}) {
		t.Errorf("Assignees = %v", got.Assignees)
	}
	if len(events) != 2 || events[0].Name != "task:unassign" || events[0].PersonID != "bob" ||
		events[1].Name != "task:assign" || events[1].PersonID != "carol" {
		t.Errorf("Unexpected events %+v", events)
	}
}

func TestAssignEmptyThenOne(t *testing.T) {
	task := newTask(models.TaskStatusTodo)

	task, events, _ := Apply(task, Request{Operation: OpAssign}, t0)
	if len(events) != 0 || len(task.Assignees) != 0 {
		t.Fatalf("Expected empty assignment, got %v / %v", task.Assignees, events)
	}
	for i := 0; i < 3; i++ {
		var err error
		task, events, err = Apply(task, Request{Operation: OpAssign, PersonIDs: []string{"person_a"}}, t0)
		if err != nil {
			t.Fatalf("assign failed: %v", err)
		}
		if !reflect.DeepEqual(task.Assignees, []string{"person_a"}) {
			t.Errorf("round %d: Assignees = %v", i, task.Assignees)
		}
		if i > 0 && len(events) != 0 {
			t.Errorf("round %d: repeated assign emitted %d events", i, len(events))
		}
	}
}

func TestUnassign(t *testing.T) {
	task := newTask(models.TaskStatusWIP)
	task.Assignees = []string{"alice", "bob", "carol"}

	got, events, _ := Apply(task, Request{Operation: OpUnassign, PersonIDs: []string{"bob", "zed"}}, t0)
	if !reflect.DeepEqual(got.Assignees, []string{"alice", "carol"}) {
		t.Errorf("Assignees = %v", got.Assignees)
	}
	if len(events) != 1 || events[0].PersonID != "bob" {
		t.Errorf("Unexpected events %+v", events)
	}

	got, events, _ = Apply(got, Request{Operation: OpUnassign}, t0)
	if len(got.Assignees) != 0 || len(events) != 2 {
		t.Errorf("Expected everyone removed, got %v / %d events", got.Assignees, len(events))
	}
	if !reflect.DeepEqual(task.Assignees, []string{"alice", "bob", "carol"}) {
		t.Error("Input assignees must not be mutated")
	}
}

func TestAvailable(t *testing.T) {
	tests := map[models.TaskStatus][]Operation{
		models.TaskStatusTodo:            {OpStart},
		models.TaskStatusWIP:             {OpToReview},
		models.TaskStatusWaitingApproval: {OpApprove, OpRetake},
		models.TaskStatusDone:            {OpRetake},
		models.TaskStatusRetake:          {OpStart},
	}
	for status, want := range tests {
		if got := Available(status); !reflect.DeepEqual(got, want) {
			t.Errorf("Available(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestLabels(t *testing.T) {
	if err := ValidateLabels(map[string]string{"wip": "In progress", "blocked": "Blocked"}); !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("Expected ErrUnknownStatus, got %v", err)
	}

	labels := ResolveLabels(map[string]string{"todo": "TODO", "wip": "WIP"}, map[string]string{"wip": "Doing", "done": ""})
	if labels.Label(models.TaskStatusWIP) != "Doing" {
		t.Errorf("Expected project override, got %q", labels.Label(models.TaskStatusWIP))
	}
	if labels.Label(models.TaskStatusTodo) != "TODO" {
		t.Errorf("Expected base label, got %q", labels.Label(models.TaskStatusTodo))
	}
	if labels.Label(models.TaskStatusDone) != "done" {
		t.Errorf("Expected canonical fallback, got %q", labels.Label(models.TaskStatusDone))
	}
}
