// Package workflow implements the task status state machine.
//
// Apply is pure: it validates an operation against the current task, returns
// the updated copy together with the events the change emits, and leaves the
// input untouched. Persisting the result and dispatching the events belongs to
// the caller.
package workflow

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fentz26/prodtrack/internal/models"
)

// Operation is a workflow action on a task.
type Operation string

const (
	OpStart    Operation = "start"
	OpToReview Operation = "to-review"
	OpApprove  Operation = "approve"
	OpRetake   Operation = "retake"
	OpAssign   Operation = "assign"
	OpUnassign Operation = "unassign"
)

// Operations lists every operation.
var Operations = []Operation{OpStart, OpToReview, OpApprove, OpRetake, OpAssign, OpUnassign}

// ParseOperation validates s.
func ParseOperation(s string) (Operation, error) {
	for _, op := range Operations {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
}

// EventName is the name of events emitted by op.
func (op Operation) EventName() string { return "task:" + string(op) }

type transition struct {
	from []models.TaskStatus
	to   models.TaskStatus
}

var transitions = map[Operation]transition{
	OpStart:    {from: []models.TaskStatus{models.TaskStatusTodo, models.TaskStatusRetake}, to: models.TaskStatusWIP},
	OpToReview: {from: []models.TaskStatus{models.TaskStatusWIP}, to: models.TaskStatusWaitingApproval},
	OpApprove:  {from: []models.TaskStatus{models.TaskStatusWaitingApproval}, to: models.TaskStatusDone},
	OpRetake:   {from: []models.TaskStatus{models.TaskStatusWaitingApproval, models.TaskStatusDone}, to: models.TaskStatusRetake},
}

// Allowed reports whether op can run on a task in status.
func Allowed(op Operation, status models.TaskStatus) bool {
	switch op {
	case OpAssign, OpUnassign:
		return true
	case OpStart:
		if status == models.TaskStatusWIP {
			return true
		}
	}
	t, ok := transitions[op]
	if !ok {
		return false
	}
	for _, from := range t.from {
		if from == status {
			return true
		}
	}
	return false
}

// Available returns the status-changing operations allowed from status.
func Available(status models.TaskStatus) []Operation {
	var ops []Operation
	for _, op := range []Operation{OpStart, OpToReview, OpApprove, OpRetake} {
		if op == OpStart && status == models.TaskStatusWIP {
			continue
		}
		if Allowed(op, status) {
			ops = append(ops, op)
		}
	}
	return ops
}

// Request is one operation on a task. PersonIDs is the new assignee set for
// assign, and the persons to remove for unassign (empty removes everyone).
type Request struct {
	Operation Operation
	PersonIDs []string
}

// Apply runs req against task at time now.
func Apply(task models.Task, req Request, now time.Time) (models.Task, []models.Event, error) {
	switch req.Operation {
	case OpAssign:
		return assign(task, req.PersonIDs, now)
	case OpUnassign:
		return unassign(task, req.PersonIDs, now)
	}

	t, ok := transitions[req.Operation]
	if !ok {
		return task, nil, fmt.Errorf("%w: %q", ErrUnknownOperation, req.Operation)
	}
	if req.Operation == OpStart && task.Status == models.TaskStatusWIP {
		return task, nil, nil
	}
	if !Allowed(req.Operation, task.Status) {
		return task, nil, &InvalidTransitionError{Operation: req.Operation, From: task.Status, To: t.to}
	}

	next := task.Clone()
	next.Status = t.to
	next.UpdatedAt = now
	switch req.Operation {
	case OpStart:
		if next.RealStartDate == nil {
			next.RealStartDate = timePtr(now)
		}
	case OpToReview:
		next.EndDate = timePtr(now)
	case OpApprove:
		next.DoneDate = timePtr(now)
	case OpRetake:
		next.DoneDate = nil
		next.EndDate = nil
		next.RetakeCount++
	}

	ev := newEvent(next, req.Operation, now)
	ev.PreviousStatus = task.Status
	return next, []models.Event{ev}, nil
}

func assign(task models.Task, personIDs []string, now time.Time) (models.Task, []models.Event, error) {
	want := normalizeIDs(personIDs)
	added, removed := diff(task.Assignees, want)
	if len(added) == 0 && len(removed) == 0 {
		return task, nil, nil
	}

	next := task.Clone()
	next.Assignees = want
	next.UpdatedAt = now

	events := make([]models.Event, 0, len(added)+len(removed))
	for _, id := range removed {
		ev := newEvent(next, OpUnassign, now)
		ev.PersonID = id
		events = append(events, ev)
	}
	for _, id := range added {
		ev := newEvent(next, OpAssign, now)
		ev.PersonID = id
		events = append(events, ev)
	}
	return next, events, nil
}

func unassign(task models.Task, personIDs []string, now time.Time) (models.Task, []models.Event, error) {
	var remaining []string
	if len(personIDs) > 0 {
		drop := make(map[string]bool, len(personIDs))
		for _, id := range personIDs {
			drop[id] = true
		}
		for _, id := range task.Assignees {
			if !drop[id] {
				remaining = append(remaining, id)
			}
		}
	}
	_, removed := diff(task.Assignees, remaining)
	if len(removed) == 0 {
		return task, nil, nil
	}

	next := task.Clone()
	next.Assignees = normalizeIDs(remaining)
	next.UpdatedAt = now

	events := make([]models.Event, 0, len(removed))
	for _, id := range removed {
		ev := newEvent(next, OpUnassign, now)
		ev.PersonID = id
		events = append(events, ev)
	}
	return next, events, nil
}

// normalizeIDs deduplicates and sorts ids. The result is never nil.
func normalizeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// diff returns the ids of want missing from have, and those of have missing from want.
func diff(have, want []string) (added, removed []string) {
	inHave := make(map[string]bool, len(have))
	for _, id := range have {
		inHave[id] = true
	}
	inWant := make(map[string]bool, len(want))
	for _, id := range want {
		inWant[id] = true
		if !inHave[id] {
			added = append(added, id)
		}
	}
	for _, id := range have {
		if !inWant[id] {
			removed = append(removed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func newEvent(task models.Task, op Operation, now time.Time) models.Event {
	return models.Event{
		ID:        uuid.NewString(),
		Name:      op.EventName(),
		ProjectID: task.ProjectID,
		TaskID:    task.ID,
		Operation: string(op),
		Status:    task.Status,
		CreatedAt: now,
	}
}

func timePtr(t time.Time) *time.Time { return &t }
