package filetree

import (
	"fmt"
	"sort"

	"github.com/fentz26/prodtrack/internal/models"
)

// accessor returns the raw value of a tag, or "" when the bundle has none.
type accessor func(b *Bundle, o *Options, field string) string

// Fields a tag may select with <Tag.field>. Anything else means name.
const (
	fieldName      = "name"
	fieldShortName = "short_name"
)

var tagAccessors = map[string]accessor{
	"Project": func(b *Bundle, _ *Options, f string) string {
		return pick(f, b.Project.Name, b.Project.Code)
	},
	"Episode":  entityName(func(b *Bundle) *models.Entity { return b.Episode }),
	"Sequence": entityName(func(b *Bundle) *models.Entity { return b.Sequence }),
	"Shot":     entityOfKind(models.EntityKindShot),
	"Asset":    entityOfKind(models.EntityKindAsset),
	"AssetType": func(b *Bundle, _ *Options, f string) string {
		if b.AssetType == nil {
			return ""
		}
		return pick(f, b.AssetType.Name, b.AssetType.ShortName)
	},
	"TaskType": func(b *Bundle, _ *Options, f string) string {
		return pick(f, b.TaskType.Name, b.TaskType.ShortName)
	},
	"Department": func(b *Bundle, _ *Options, f string) string {
		if b.Department == nil {
			return ""
		}
		return pick(f, b.Department.Name, b.Department.ShortName)
	},
	"Task": func(b *Bundle, _ *Options, _ string) string {
		return b.Task.Name
	},
	"Name":        optionName,
	"WorkingFile": optionName,
	"OutputFile":  optionName,
	"Software": func(_ *Bundle, o *Options, _ string) string {
		return o.Software
	},
	"OutputType": func(_ *Bundle, o *Options, _ string) string {
		return o.OutputType
	},
	"Version":  version,
	"Revision": version,
}

// KnownTag reports whether a tag name has an accessor.
func KnownTag(tag string) bool {
	_, ok := tagAccessors[tag]
	return ok
}

// Tags lists every supported tag name.
func Tags() []string {
	names := make([]string, 0, len(tagAccessors))
	for name := range tagAccessors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resolveTag(tag, field string, b *Bundle, o *Options) (string, error) {
	fn, ok := tagAccessors[tag]
	if !ok {
		return "", &UnresolvedTagError{Tag: tag}
	}
	value := Sanitize(fn(b, o, field))
	if value == "" {
		return "", &UnresolvedTagError{Tag: tag}
	}
	return value, nil
}

func pick(field, name, shortName string) string {
	if field == fieldShortName && shortName != "" {
		return shortName
	}
	return name
}

func entityName(sel func(*Bundle) *models.Entity) accessor {
	return func(b *Bundle, _ *Options, _ string) string {
		if e := sel(b); e != nil {
			return e.Name
		}
		return ""
	}
}

func entityOfKind(kind models.EntityKind) accessor {
	return func(b *Bundle, _ *Options, _ string) string {
		if b.Entity != nil && b.Entity.Kind == kind {
			return b.Entity.Name
		}
		return ""
	}
}

func optionName(_ *Bundle, o *Options, _ string) string {
	return o.Name
}

func version(_ *Bundle, o *Options, _ string) string {
	if o.Version <= 0 {
		return ""
	}
	return fmt.Sprintf("%0*d", versionWidth, o.Version)
}
