package filetree

import (
	"fmt"
	"os"
	"strings"

	"github.com/fentz26/prodtrack/internal/models"
)

// versionWidth is the zero padding of version numbers.
const versionWidth = 3

// Options tune a single resolution.
type Options struct {
	// Separator is "/" or "\". Empty means the host separator.
	Separator string
	// Version is appended to file names as _vNNN when positive.
	Version int
	// Comment is sanitized and appended to file names after the version.
	Comment string
	// Name, Software and OutputType feed the matching tags.
	Name       string
	Software   string
	OutputType string
}

// Sep returns the separator the options select.
func (o *Options) Sep() (string, error) {
	switch o.Separator {
	case "":
		return string(os.PathSeparator), nil
	case "/", `\`:
		return o.Separator, nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidSeparator, o.Separator)
}

// Resolver renders folder paths and file names from a Registry.
type Resolver struct {
	registry   *Registry
	defaultSet string
}

// NewResolver returns a resolver using defaultSet for projects without a file tree.
func NewResolver(reg *Registry, defaultSet string) *Resolver {
	return &Resolver{registry: reg, defaultSet: defaultSet}
}

// Registry returns the template sets the resolver reads.
func (r *Resolver) Registry() *Registry { return r.registry }

// DefaultSet is the template set name used when a project names none.
func (r *Resolver) DefaultSet() string { return r.defaultSet }

// TemplateSetFor returns the set referenced by project.
func (r *Resolver) TemplateSetFor(project *models.Project) (*TemplateSet, error) {
	name := r.defaultSet
	if project != nil && project.FileTree != "" {
		name = project.FileTree
	}
	return r.registry.Get(name)
}

// FolderPath resolves the folder of the bundle task in the named context.
func (r *Resolver) FolderPath(b *Bundle, context string, opts Options) (string, error) {
	sep, err := opts.Sep()
	if err != nil {
		return "", err
	}
	c, tpl, err := r.template(b, context, func(c *Context) Templates { return c.FolderPath })
	if err != nil {
		return "", err
	}
	rendered, err := tpl.render(b, &opts)
	if err != nil {
		return "", err
	}
	folder := c.FolderPath.Style.apply(rendered)
	return replaceSeparators(c.rootPath(sep)+folder, sep), nil
}

// FileName resolves the file name of the bundle task in the named context.
func (r *Resolver) FileName(b *Bundle, context string, opts Options) (string, error) {
	if opts.Version < 0 {
		return "", ErrInvalidVersion
	}
	c, tpl, err := r.template(b, context, func(c *Context) Templates { return c.FileName })
	if err != nil {
		return "", err
	}
	rendered, err := tpl.render(b, &opts)
	if err != nil {
		return "", err
	}
	name := c.FileName.Style.apply(rendered)
	if opts.Version > 0 && !tpl.References("Version", "Revision") {
		name += fmt.Sprintf("_v%0*d", versionWidth, opts.Version)
	}
	if comment := Sanitize(opts.Comment); comment != "" {
		name += "_" + comment
	}
	return name, nil
}

// FilePath joins FolderPath and FileName.
func (r *Resolver) FilePath(b *Bundle, context string, opts Options) (string, error) {
	folder, err := r.FolderPath(b, context, opts)
	if err != nil {
		return "", err
	}
	name, err := r.FileName(b, context, opts)
	if err != nil {
		return "", err
	}
	sep, _ := opts.Sep()
	return folder + sep + name, nil
}

func (r *Resolver) template(b *Bundle, context string, part func(*Context) Templates) (*Context, *Template, error) {
	set, err := r.TemplateSetFor(b.Project)
	if err != nil {
		return nil, nil, err
	}
	c, err := set.Context(context)
	if err != nil {
		return nil, nil, err
	}
	cat, ok := CategoryOf(b.Entity.Kind)
	if !ok {
		return nil, nil, &UnsupportedCategoryError{Category: string(b.Entity.Kind), Context: context}
	}
	tpl, ok := part(c).lookup(cat)
	if !ok {
		return nil, nil, &UnsupportedCategoryError{Category: string(cat), Context: context}
	}
	return c, tpl, nil
}

func replaceSeparators(p, sep string) string {
	return strings.NewReplacer("/", sep, `\`, sep).Replace(p)
}
