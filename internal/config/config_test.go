package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/fentz26/prodtrack/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantDB := filepath.Join(tempHome, ".prodtrack", "prodtrack.db")
	if cfg.Database.Path != wantDB {
		t.Fatalf("unexpected database path: got %q want %q", cfg.Database.Path, wantDB)
	}
	if cfg.Server.Listen != "127.0.0.1:7466" {
		t.Fatalf("unexpected listen address: %q", cfg.Server.Listen)
	}
	if cfg.FileTree.Default != "standard" {
		t.Fatalf("unexpected default file tree: %q", cfg.FileTree.Default)
	}
	if cfg.Workflow.Labels["waiting_approval"] != "WFA" {
		t.Fatalf("unexpected waiting_approval label: %q", cfg.Workflow.Labels["waiting_approval"])
	}
	if cfg.LockPath() != wantDB+".lock" {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}
}

func TestLoadFileMergesLabelsOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[server]
listen = "0.0.0.0:9000"

[database]
path = "` + filepath.ToSlash(filepath.Join(dir, "db.sqlite")) + `"

[workflow.labels]
done = "Approved"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.Server.Listen != "0.0.0.0:9000" {
		t.Fatalf("unexpected listen: %q", cfg.Server.Listen)
	}
	if cfg.Workflow.Labels["done"] != "Approved" {
		t.Fatalf("expected override label, got %q", cfg.Workflow.Labels["done"])
	}
	if cfg.Workflow.Labels["wip"] != "WIP" {
		t.Fatalf("expected default label for wip, got %q", cfg.Workflow.Labels["wip"])
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PRODTRACK_LISTEN", "127.0.0.1:1234")
	t.Setenv("PRODTRACK_LOG_LEVEL", "DEBUG")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Listen != "127.0.0.1:1234" {
		t.Fatalf("expected env listen override, got %q", cfg.Server.Listen)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized debug level, got %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsUnknownStatusLabel(t *testing.T) {
	cfg := config.Default()
	cfg.Workflow.Labels["blocked"] = "BLOCKED"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "blocked") {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unsupported log format")
	}
}

func TestSampleConfigParses(t *testing.T) {
	var cfg config.Config
	if err := toml.Unmarshal([]byte(config.SampleConfig()), &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.FileTree.Default != "standard" {
		t.Fatalf("unexpected sample default tree: %q", cfg.FileTree.Default)
	}
	if len(cfg.Workflow.Labels) != 5 {
		t.Fatalf("expected 5 sample labels, got %d", len(cfg.Workflow.Labels))
	}
}
