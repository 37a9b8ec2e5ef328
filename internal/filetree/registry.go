package filetree

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed trees/*.json
var builtinTrees embed.FS

// Registry holds the loaded template sets. Populate it before serving; it is
// read-only afterwards and safe for concurrent lookups.
type Registry struct {
	sets map[string]*TemplateSet
}

// NewRegistry returns a registry containing the built-in template sets.
func NewRegistry() (*Registry, error) {
	r := &Registry{sets: make(map[string]*TemplateSet)}
	if err := r.loadFS(builtinTrees, "trees"); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadDir adds every *.json, *.yaml and *.yml template set in dir, replacing
// sets of the same name.
func (r *Registry) LoadDir(dir string) error {
	if dir == "" {
		return nil
	}
	return r.loadFS(os.DirFS(dir), ".")
}

// Add registers a validated set under its name.
func (r *Registry) Add(set *TemplateSet) {
	r.sets[set.Name] = set
}

// Get returns the named set or an UnknownTemplateSetError.
func (r *Registry) Get(name string) (*TemplateSet, error) {
	set, ok := r.sets[name]
	if !ok {
		return nil, &UnknownTemplateSetError{Name: name}
	}
	return set, nil
}

// Has reports whether name is loaded.
func (r *Registry) Has(name string) bool {
	_, ok := r.sets[name]
	return ok
}

// Names returns the loaded set names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sets))
	for name := range r.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) loadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read file trees: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(dir, entry.Name())))
		if err != nil {
			return fmt.Errorf("read file tree %s: %w", entry.Name(), err)
		}
		set, err := ParseFile(entry.Name(), data)
		if err != nil {
			return err
		}
		r.Add(set)
	}
	return nil
}
