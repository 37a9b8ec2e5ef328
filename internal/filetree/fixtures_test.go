package filetree_test

import (
	"context"

	"github.com/fentz26/prodtrack/internal/filetree"
	"github.com/fentz26/prodtrack/internal/models"
)

type fakeLookup struct {
	entities    map[string]*models.Entity
	projects    map[string]*models.Project
	taskTypes   map[string]*models.TaskType
	assetTypes  map[string]*models.AssetType
	departments map[string]*models.Department
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		entities:    map[string]*models.Entity{},
		projects:    map[string]*models.Project{},
		taskTypes:   map[string]*models.TaskType{},
		assetTypes:  map[string]*models.AssetType{},
		departments: map[string]*models.Department{},
	}
}

func (f *fakeLookup) GetEntity(_ context.Context, id string) (*models.Entity, error) {
	return f.entities[id], nil
}

func (f *fakeLookup) GetProject(_ context.Context, id string) (*models.Project, error) {
	return f.projects[id], nil
}

func (f *fakeLookup) GetTaskType(_ context.Context, id string) (*models.TaskType, error) {
	return f.taskTypes[id], nil
}

func (f *fakeLookup) GetAssetType(_ context.Context, id string) (*models.AssetType, error) {
	return f.assetTypes[id], nil
}

func (f *fakeLookup) GetDepartment(_ context.Context, id string) (*models.Department, error) {
	return f.departments[id], nil
}

// agentFixture is project Agent327 with sequence SQ01, shot SH002 and an
// Animation task on the shot.
func agentFixture() (*fakeLookup, *models.Task) {
	l := newFakeLookup()
	l.projects["p1"] = &models.Project{ID: "p1", Name: "Agent327", Code: "A327", FileTree: "simple"}
	l.entities["sq"] = &models.Entity{ID: "sq", ProjectID: "p1", Kind: models.EntityKindSequence, Name: "SQ01"}
	l.entities["sh"] = &models.Entity{ID: "sh", ProjectID: "p1", Kind: models.EntityKindShot, Name: "SH002", ParentID: "sq"}
	l.departments["d1"] = &models.Department{ID: "d1", Name: "Animation Department", ShortName: "ANIM"}
	l.taskTypes["tt"] = &models.TaskType{ID: "tt", Name: "Animation", ShortName: "anim", DepartmentID: "d1"}
	task := &models.Task{ID: "t1", ProjectID: "p1", EntityID: "sh", TaskTypeID: "tt", Name: "main"}
	return l, task
}

func strPtr(s string) *string { return &s }

// singleContext builds a set with one "working" context using the given shot templates.
func singleContext(folder, file string) filetree.Document {
	return filetree.Document{
		"working": {
			Mountpoint: strPtr("/mnt"),
			Root:       strPtr("prod"),
			FolderPath: map[string]string{"shot": folder, "style": "lowercase"},
			FileName:   map[string]string{"shot": file},
		},
	}
}
