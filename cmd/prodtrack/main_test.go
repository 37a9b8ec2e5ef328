package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/prodtrack/internal/controlplane"
	"github.com/fentz26/prodtrack/internal/models"
	"github.com/fentz26/prodtrack/internal/workflow"
)

func TestQuery(t *testing.T) {
	if got := query("status", "", "project_id", ""); got != "" {
		t.Errorf("Expected empty query, got %q", got)
	}
	if got := query("status", "wip", "project_id", ""); got != "?status=wip" {
		t.Errorf("Unexpected query %q", got)
	}
	if got := query("sep", `\`); got != "?sep=%5C" {
		t.Errorf("Expected escaped separator, got %q", got)
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"ID", "Name"}, [][]string{{"p1", "Agent327"}, {"p2"}}, nil)
	for _, want := range []string{"ID", "Name", "Agent327", "p2"} {
		if !strings.Contains(out, want) {
			t.Errorf("Table lacks %q:\n%s", want, out)
		}
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("Expected empty output without headers")
	}
}

func withAPI(t *testing.T, h http.Handler) {
	t.Helper()
	srv := httptest.NewServer(h)
	prev := apiAddr
	apiAddr = srv.URL
	t.Cleanup(func() {
		apiAddr = prev
		srv.Close()
	})
}

func TestRunTransition(t *testing.T) {
	var gotBody map[string][]string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks/{id}/{op}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("op") == "approve" {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{"error": "cannot approve a todo task", "kind": "conflict"})
			return
		}
		gotBody = nil
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(controlplane.TransitionResponse{
			Task: &controlplane.TaskView{StatusLabel: "WIP"},
			Events: []models.Event{{
				Name:           "task:start",
				Status:         models.TaskStatusWIP,
				PreviousStatus: models.TaskStatusTodo,
			}},
		})
	})
	withAPI(t, mux)

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	if err := runTransition(cmd, workflow.OpStart, "t1", nil); err != nil {
		t.Fatalf("runTransition failed: %v", err)
	}
	if !strings.Contains(out.String(), "task:start todo -> wip") {
		t.Errorf("Unexpected output %q", out.String())
	}

	if err := runTransition(cmd, workflow.OpAssign, "t1", []string{"p1", "p2"}); err != nil {
		t.Fatalf("runTransition failed: %v", err)
	}
	if len(gotBody["person_ids"]) != 2 {
		t.Errorf("Expected person_ids in body, got %v", gotBody)
	}

	err := runTransition(cmd, workflow.OpApprove, "t1", nil)
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected apiError, got %v", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Kind != "conflict" {
		t.Errorf("Unexpected API error %+v", apiErr)
	}
}

func TestFilterLogged(t *testing.T) {
	now := time.Now()
	all := []models.Event{
		{ID: "1", TaskID: "a", CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "2", TaskID: "b", CreatedAt: now.Add(-time.Hour)},
		{ID: "3", TaskID: "a", CreatedAt: now.Add(-time.Minute)},
	}

	eventsTask, eventsSince, eventsLimit = "a", 0, 10
	t.Cleanup(func() { eventsTask, eventsSince, eventsLimit = "", 0, 50 })

	got := filterLogged(all)
	if len(got) != 2 || got[0].ID != "3" {
		t.Fatalf("Expected task a events newest first, got %+v", got)
	}

	eventsSince = 24 * time.Hour
	if got := filterLogged(all); len(got) != 1 {
		t.Errorf("Expected since to drop old events, got %d", len(got))
	}
}
