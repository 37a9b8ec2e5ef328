package filetree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/fentz26/prodtrack/internal/models"
)

// Category selects which template of a context applies to an entity.
type Category string

const (
	CategoryAsset    Category = "asset"
	CategoryShot     Category = "shot"
	CategorySequence Category = "sequence"
	CategoryEpisode  Category = "episode"
)

// CategoryOf maps an entity kind to its template category.
func CategoryOf(kind models.EntityKind) (Category, bool) {
	switch kind {
	case models.EntityKindAsset:
		return CategoryAsset, true
	case models.EntityKindShot:
		return CategoryShot, true
	case models.EntityKindSequence:
		return CategorySequence, true
	case models.EntityKindEpisode:
		return CategoryEpisode, true
	}
	return "", false
}

func knownCategory(name string) bool {
	switch Category(name) {
	case CategoryAsset, CategoryShot, CategorySequence, CategoryEpisode:
		return true
	}
	return false
}

// Style is the casing applied to rendered templates.
type Style string

const (
	StyleNone      Style = ""
	StyleLowercase Style = "lowercase"
	StyleUppercase Style = "uppercase"
)

func (s Style) apply(v string) string {
	switch s {
	case StyleLowercase:
		return cases.Lower(language.Und).String(v)
	case StyleUppercase:
		return cases.Upper(language.Und).String(v)
	}
	return v
}

// ContextDocument is the on-disk shape of one context.
type ContextDocument struct {
	Mountpoint *string           `json:"mountpoint" yaml:"mountpoint"`
	Root       *string           `json:"root" yaml:"root"`
	FolderPath map[string]string `json:"folder_path" yaml:"folder_path"`
	FileName   map[string]string `json:"file_name" yaml:"file_name"`
}

// Document is the on-disk shape of a template set: context name -> context.
type Document map[string]ContextDocument

// Templates holds one template per supported category plus the casing style.
type Templates struct {
	Style      Style
	ByCategory map[Category]*Template
}

func (t Templates) lookup(c Category) (*Template, bool) {
	tpl, ok := t.ByCategory[c]
	return tpl, ok
}

// Context is a validated usage scenario of a template set.
type Context struct {
	Name       string
	Mountpoint string
	Root       string
	FolderPath Templates
	FileName   Templates
}

// rootPath is the mount point and root folder, terminated by sep.
func (c *Context) rootPath(sep string) string {
	if c.Root != "" {
		return c.Mountpoint + sep + c.Root + sep
	}
	return c.Mountpoint + sep
}

// TemplateSet is a named, validated and immutable file tree.
type TemplateSet struct {
	Name     string
	doc      Document
	contexts map[string]*Context
}

// Context returns the named context or an UnknownContextError.
func (s *TemplateSet) Context(name string) (*Context, error) {
	c, ok := s.contexts[name]
	if !ok {
		return nil, &UnknownContextError{Context: name, Set: s.Name}
	}
	return c, nil
}

// Contexts returns the context names in sorted order.
func (s *TemplateSet) Contexts() []string {
	names := make([]string, 0, len(s.contexts))
	for name := range s.contexts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Document returns the source document of the set.
func (s *TemplateSet) Document() Document { return s.doc }

// MarshalJSON renders the set in its on-disk JSON form.
func (s *TemplateSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.doc)
}

// Lint reports tags that no accessor resolves. These are not load errors:
// resolution fails on them with UnresolvedTagError.
func (s *TemplateSet) Lint() []string {
	var problems []string
	for _, ctxName := range s.Contexts() {
		c := s.contexts[ctxName]
		for _, part := range []struct {
			label string
			tpls  Templates
		}{{"folder_path", c.FolderPath}, {"file_name", c.FileName}} {
			for _, cat := range sortedCategories(part.tpls.ByCategory) {
				for _, tag := range part.tpls.ByCategory[cat].Tags() {
					if !KnownTag(tag) {
						problems = append(problems, fmt.Sprintf("%s.%s.%s: unknown tag <%s>", ctxName, part.label, cat, tag))
					}
				}
			}
		}
	}
	return problems
}

// ParseJSON decodes and validates a JSON template set.
func ParseJSON(name string, data []byte) (*TemplateSet, error) {
	var doc Document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, &MalformedTreeError{Set: name, Problems: []string{err.Error()}}
	}
	return NewTemplateSet(name, doc)
}

// ParseYAML decodes and validates a YAML template set.
func ParseYAML(name string, data []byte) (*TemplateSet, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, &MalformedTreeError{Set: name, Problems: []string{err.Error()}}
	}
	return NewTemplateSet(name, doc)
}

// ParseFile picks the decoder from the file extension. The set is named after
// the file base name.
func ParseFile(path string, data []byte) (*TemplateSet, error) {
	ext := strings.ToLower(filepath.Ext(path))
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	switch ext {
	case ".json":
		return ParseJSON(name, data)
	case ".yaml", ".yml":
		return ParseYAML(name, data)
	}
	return nil, fmt.Errorf("file tree %s: unsupported extension %q", path, ext)
}

// NewTemplateSet validates doc eagerly and returns the immutable set.
func NewTemplateSet(name string, doc Document) (*TemplateSet, error) {
	var problems []string
	if len(doc) == 0 {
		problems = append(problems, "no contexts defined")
	}

	set := &TemplateSet{Name: name, doc: doc, contexts: make(map[string]*Context, len(doc))}
	for _, ctxName := range sortedKeys(doc) {
		c, ctxProblems := buildContext(ctxName, doc[ctxName])
		problems = append(problems, ctxProblems...)
		if c != nil {
			set.contexts[ctxName] = c
		}
	}

	if len(problems) > 0 {
		return nil, &MalformedTreeError{Set: name, Problems: problems}
	}
	return set, nil
}

func buildContext(name string, cd ContextDocument) (*Context, []string) {
	var problems []string
	if cd.Mountpoint == nil {
		problems = append(problems, name+": mountpoint is required")
	}
	if cd.Root == nil {
		problems = append(problems, name+": root is required")
	}
	if cd.FolderPath == nil {
		problems = append(problems, name+": folder_path is required")
	}
	if cd.FileName == nil {
		problems = append(problems, name+": file_name is required")
	}
	if len(problems) > 0 {
		return nil, problems
	}

	folders, folderProblems := buildTemplates(name+".folder_path", cd.FolderPath)
	files, fileProblems := buildTemplates(name+".file_name", cd.FileName)
	problems = append(problems, folderProblems...)
	problems = append(problems, fileProblems...)

	for cat := range folders.ByCategory {
		if _, ok := files.ByCategory[cat]; !ok {
			problems = append(problems, fmt.Sprintf("%s: category %q has a folder_path but no file_name", name, cat))
		}
	}
	for cat := range files.ByCategory {
		if _, ok := folders.ByCategory[cat]; !ok {
			problems = append(problems, fmt.Sprintf("%s: category %q has a file_name but no folder_path", name, cat))
		}
	}
	if len(folders.ByCategory) == 0 && len(folderProblems) == 0 {
		problems = append(problems, name+": no categories defined")
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, problems
	}

	return &Context{
		Name:       name,
		Mountpoint: *cd.Mountpoint,
		Root:       *cd.Root,
		FolderPath: folders,
		FileName:   files,
	}, nil
}

func buildTemplates(label string, raw map[string]string) (Templates, []string) {
	var problems []string
	out := Templates{ByCategory: make(map[Category]*Template)}
	for _, key := range sortedKeys(raw) {
		value := raw[key]
		if key == "style" {
			switch Style(value) {
			case StyleNone, StyleLowercase, StyleUppercase:
				out.Style = Style(value)
			default:
				problems = append(problems, fmt.Sprintf("%s: unknown style %q", label, value))
			}
			continue
		}
		if !knownCategory(key) {
			problems = append(problems, fmt.Sprintf("%s: unknown category %q", label, key))
			continue
		}
		tpl, err := ParseTemplate(value)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s.%s: %v", label, key, err))
			continue
		}
		out.ByCategory[Category(key)] = tpl
	}
	return out, problems
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedCategories(m map[Category]*Template) []Category {
	cats := make([]Category, 0, len(m))
	for c := range m {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}
