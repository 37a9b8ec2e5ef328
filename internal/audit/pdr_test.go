package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fentz26/prodtrack/internal/store"
)

func TestRecordPersistsHashedInputs(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer s.Close()

	w := NewPDRWriter(s)
	inputs := map[string]string{"name": "Agent327"}
	entry, err := w.Record(context.Background(), "project.create", inputs, OutcomeSuccess, "p1", "")
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if entry.InputsHash != HashInputs(inputs) {
		t.Errorf("Expected hash %s, got %s", HashInputs(inputs), entry.InputsHash)
	}

	entries, _ := s.ListPDR(context.Background(), "p1", 0)
	if len(entries) != 1 || entries[0].Outcome != OutcomeSuccess {
		t.Errorf("Unexpected entries %+v", entries)
	}
}

func TestHashInputsDeterministic(t *testing.T) {
	a := HashInputs(map[string]any{"b": 2, "a": 1})
	b := HashInputs(map[string]any{"a": 1, "b": 2})
	if a != b {
		t.Errorf("Expected map key order not to matter: %s != %s", a, b)
	}
	if HashInputs(func() {}) != "hash_error" {
		t.Error("Expected hash_error for unencodable input")
	}
}
