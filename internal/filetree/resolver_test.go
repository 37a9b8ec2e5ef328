package filetree_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fentz26/prodtrack/internal/filetree"
	"github.com/fentz26/prodtrack/internal/models"
)

func newResolver(t *testing.T) *filetree.Resolver {
	t.Helper()
	reg, err := filetree.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return filetree.NewResolver(reg, "standard")
}

func loadAgentBundle(t *testing.T) *filetree.Bundle {
	t.Helper()
	l, task := agentFixture()
	b, err := filetree.LoadBundle(context.Background(), l, task)
	if err != nil {
		t.Fatalf("LoadBundle failed: %v", err)
	}
	return b
}

func TestFolderPathShotLowercase(t *testing.T) {
	r := newResolver(t)
	b := loadAgentBundle(t)

	got, err := r.FolderPath(b, "working", filetree.Options{Separator: "/"})
	if err != nil {
		t.Fatalf("FolderPath failed: %v", err)
	}
	want := "/simple/productions/agent327/sq01/sh002/animation"
	if got != want {
		t.Errorf("FolderPath = %q, want %q", got, want)
	}
}

func TestFolderPathTransliteratesNonLatinNames(t *testing.T) {
	r := newResolver(t)
	b := loadAgentBundle(t)
	b.Entity.Name = "ショット"

	got, err := r.FolderPath(b, "working", filetree.Options{Separator: "/"})
	if err != nil {
		t.Fatalf("FolderPath failed: %v", err)
	}
	parts := strings.Split(got, "/")
	if len(parts) != 7 {
		t.Fatalf("Unexpected folder path %q", got)
	}
	shot := parts[5]
	if shot == "" || shot != filetree.Sanitize(shot) {
		t.Errorf("Shot segment %q is not a safe non-empty name (path %q)", shot, got)
	}
}

func TestFolderPathBackslashSeparator(t *testing.T) {
	r := newResolver(t)
	b := loadAgentBundle(t)

	got, err := r.FolderPath(b, "working", filetree.Options{Separator: `\`})
	if err != nil {
		t.Fatalf("FolderPath failed: %v", err)
	}
	want := `\simple\productions\agent327\sq01\sh002\animation`
	if got != want {
		t.Errorf("FolderPath = %q, want %q", got, want)
	}
}

func TestFolderPathRejectsSeparator(t *testing.T) {
	r := newResolver(t)
	b := loadAgentBundle(t)

	_, err := r.FolderPath(b, "working", filetree.Options{Separator: ":"})
	if !errors.Is(err, filetree.ErrInvalidSeparator) {
		t.Errorf("Expected ErrInvalidSeparator, got %v", err)
	}
}

func TestFileNameVersionAndComment(t *testing.T) {
	r := newResolver(t)
	b := loadAgentBundle(t)

	got, err := r.FileName(b, "working", filetree.Options{Version: 3, Comment: "first pass!"})
	if err != nil {
		t.Fatalf("FileName failed: %v", err)
	}
	want := "agent327_sq01_sh002_animation_v003_first_pass"
	if got != want {
		t.Errorf("FileName = %q, want %q", got, want)
	}

	if _, err := r.FileName(b, "working", filetree.Options{Version: -1}); !errors.Is(err, filetree.ErrInvalidVersion) {
		t.Errorf("Expected ErrInvalidVersion, got %v", err)
	}
}

func TestFileNameVersionTagNotDuplicated(t *testing.T) {
	reg, _ := filetree.NewRegistry()
	set, err := filetree.NewTemplateSet("versioned", singleContext("<Project>/<Shot>", "<Shot>_v<Version>"))
	if err != nil {
		t.Fatalf("NewTemplateSet failed: %v", err)
	}
	reg.Add(set)
	r := filetree.NewResolver(reg, "versioned")

	b := loadAgentBundle(t)
	b.Project.FileTree = ""

	got, err := r.FileName(b, "working", filetree.Options{Version: 12})
	if err != nil {
		t.Fatalf("FileName failed: %v", err)
	}
	if got != "SH002_v012" {
		t.Errorf("FileName = %q, want SH002_v012", got)
	}

	_, err = r.FileName(b, "working", filetree.Options{})
	var tagErr *filetree.UnresolvedTagError
	if !errors.As(err, &tagErr) || tagErr.Tag != "Version" {
		t.Errorf("Expected unresolved Version tag without a version, got %v", err)
	}
}

func TestFilePathJoinsFolderAndName(t *testing.T) {
	r := newResolver(t)
	b := loadAgentBundle(t)

	got, err := r.FilePath(b, "working", filetree.Options{Separator: "/", Version: 1})
	if err != nil {
		t.Fatalf("FilePath failed: %v", err)
	}
	want := "/simple/productions/agent327/sq01/sh002/animation/agent327_sq01_sh002_animation_v001"
	if got != want {
		t.Errorf("FilePath = %q, want %q", got, want)
	}
}

func TestUnknownTagFails(t *testing.T) {
	reg, _ := filetree.NewRegistry()
	set, err := filetree.NewTemplateSet("broken", singleContext("<Project>/<Foo>", "<Shot>"))
	if err != nil {
		t.Fatalf("Unknown tags must not fail at load: %v", err)
	}
	if problems := set.Lint(); len(problems) != 1 {
		t.Errorf("Expected 1 lint problem, got %v", problems)
	}
	reg.Add(set)
	r := filetree.NewResolver(reg, "broken")

	b := loadAgentBundle(t)
	b.Project.FileTree = ""

	got, err := r.FolderPath(b, "working", filetree.Options{Separator: "/"})
	var tagErr *filetree.UnresolvedTagError
	if !errors.As(err, &tagErr) {
		t.Fatalf("Expected UnresolvedTagError, got %v", err)
	}
	if tagErr.Tag != "Foo" {
		t.Errorf("Expected tag Foo, got %q", tagErr.Tag)
	}
	if got != "" {
		t.Errorf("Expected no partial path, got %q", got)
	}
}

func TestUnknownContext(t *testing.T) {
	r := newResolver(t)
	b := loadAgentBundle(t)

	_, err := r.FolderPath(b, "review", filetree.Options{})
	if !errors.Is(err, filetree.ErrUnknownContext) {
		t.Errorf("Expected ErrUnknownContext, got %v", err)
	}
}

func TestUnsupportedCategory(t *testing.T) {
	r := newResolver(t)
	l, _ := agentFixture()
	l.entities["ep"] = &models.Entity{ID: "ep", ProjectID: "p1", Kind: models.EntityKindEpisode, Name: "E01"}
	task := &models.Task{ID: "t2", ProjectID: "p1", EntityID: "ep", TaskTypeID: "tt"}

	b, err := filetree.LoadBundle(context.Background(), l, task)
	if err != nil {
		t.Fatalf("LoadBundle failed: %v", err)
	}

	// the simple tree has no episode templates
	_, err = r.FolderPath(b, "working", filetree.Options{})
	var catErr *filetree.UnsupportedCategoryError
	if !errors.As(err, &catErr) || catErr.Category != "episode" {
		t.Errorf("Expected UnsupportedCategoryError for episode, got %v", err)
	}
}

func TestUnknownTemplateSet(t *testing.T) {
	r := newResolver(t)
	b := loadAgentBundle(t)
	b.Project.FileTree = "missing"

	_, err := r.FolderPath(b, "working", filetree.Options{})
	if !errors.Is(err, filetree.ErrUnknownTemplateSet) {
		t.Errorf("Expected ErrUnknownTemplateSet, got %v", err)
	}
}

func TestShortNameField(t *testing.T) {
	reg, _ := filetree.NewRegistry()
	set, err := filetree.NewTemplateSet("short", singleContext("<Project.short_name>/<Department.short_name>/<TaskType.short_name>", "<Shot>"))
	if err != nil {
		t.Fatalf("NewTemplateSet failed: %v", err)
	}
	reg.Add(set)
	r := filetree.NewResolver(reg, "short")

	b := loadAgentBundle(t)
	b.Project.FileTree = ""

	got, err := r.FolderPath(b, "working", filetree.Options{Separator: "/"})
	if err != nil {
		t.Fatalf("FolderPath failed: %v", err)
	}
	if got != "/mnt/prod/a327/anim/anim" {
		t.Errorf("FolderPath = %q, want /mnt/prod/a327/anim/anim", got)
	}
}

func TestStandardAssetPath(t *testing.T) {
	r := newResolver(t)
	l, _ := agentFixture()
	l.projects["p2"] = &models.Project{ID: "p2", Name: "Big Buck"}
	l.assetTypes["at"] = &models.AssetType{ID: "at", Name: "Character"}
	l.entities["a1"] = &models.Entity{ID: "a1", ProjectID: "p2", Kind: models.EntityKindAsset, Name: "Bunny", AssetTypeID: "at"}
	task := &models.Task{ID: "t3", ProjectID: "p2", EntityID: "a1", TaskTypeID: "tt"}

	b, err := filetree.LoadBundle(context.Background(), l, task)
	if err != nil {
		t.Fatalf("LoadBundle failed: %v", err)
	}
	got, err := r.FolderPath(b, "working", filetree.Options{Separator: "/"})
	if err != nil {
		t.Fatalf("FolderPath failed: %v", err)
	}
	want := "/productions/work/big_buck/assets/character/bunny/animation"
	if got != want {
		t.Errorf("FolderPath = %q, want %q", got, want)
	}
}

func TestOutputContextNeedsOutputType(t *testing.T) {
	r := newResolver(t)
	b := loadAgentBundle(t)
	b.Project.FileTree = "standard"

	_, err := r.FileName(b, "output", filetree.Options{})
	var tagErr *filetree.UnresolvedTagError
	if !errors.As(err, &tagErr) || tagErr.Tag != "OutputType" {
		t.Errorf("Expected unresolved OutputType, got %v", err)
	}

	got, err := r.FileName(b, "output", filetree.Options{OutputType: "Cache"})
	if err != nil {
		t.Fatalf("FileName failed: %v", err)
	}
	if got != "agent327_sq01_sh002_animation_cache" {
		t.Errorf("FileName = %q", got)
	}
}
