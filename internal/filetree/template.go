package filetree

import (
	"fmt"
	"regexp"
	"strings"
)

var tagNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+(\.[A-Za-z0-9_]+)?$`)

// segment is either a literal run or a tag reference.
type segment struct {
	literal string
	tag     string
	field   string
}

func (s segment) isTag() bool { return s.tag != "" }

// Template is a tokenized folder or file name template.
type Template struct {
	raw      string
	segments []segment
}

// ParseTemplate tokenizes raw on <Tag> markers.
func ParseTemplate(raw string) (*Template, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("empty template")
	}

	t := &Template{raw: raw}
	rest := raw
	for rest != "" {
		open := strings.IndexByte(rest, '<')
		if open < 0 {
			if strings.IndexByte(rest, '>') >= 0 {
				return nil, fmt.Errorf("template %q: unexpected '>'", raw)
			}
			t.segments = append(t.segments, segment{literal: rest})
			break
		}
		if open > 0 {
			lit := rest[:open]
			if strings.IndexByte(lit, '>') >= 0 {
				return nil, fmt.Errorf("template %q: unexpected '>'", raw)
			}
			t.segments = append(t.segments, segment{literal: lit})
		}
		closeIdx := strings.IndexByte(rest[open:], '>')
		if closeIdx < 0 {
			return nil, fmt.Errorf("template %q: unclosed tag", raw)
		}
		name := rest[open+1 : open+closeIdx]
		if !tagNamePattern.MatchString(name) {
			return nil, fmt.Errorf("template %q: invalid tag <%s>", raw, name)
		}
		tag, field, _ := strings.Cut(name, ".")
		t.segments = append(t.segments, segment{tag: tag, field: field})
		rest = rest[open+closeIdx+1:]
	}
	return t, nil
}

// String returns the template source.
func (t *Template) String() string { return t.raw }

// Tags returns the tag names used by the template, in order of appearance.
func (t *Template) Tags() []string {
	var out []string
	for _, s := range t.segments {
		if s.isTag() {
			out = append(out, s.tag)
		}
	}
	return out
}

// References reports whether the template uses any of the given tags.
func (t *Template) References(tags ...string) bool {
	for _, s := range t.segments {
		if !s.isTag() {
			continue
		}
		for _, name := range tags {
			if s.tag == name {
				return true
			}
		}
	}
	return false
}

// render substitutes every tag. It fails on the first tag without a value.
func (t *Template) render(b *Bundle, opts *Options) (string, error) {
	var sb strings.Builder
	for _, s := range t.segments {
		if !s.isTag() {
			sb.WriteString(s.literal)
			continue
		}
		value, err := resolveTag(s.tag, s.field, b, opts)
		if err != nil {
			return "", err
		}
		sb.WriteString(value)
	}
	return sb.String(), nil
}

// matcher builds a case-insensitive regexp capturing each tag of the template.
func (t *Template) matcher() (*regexp.Regexp, []string) {
	var sb strings.Builder
	var names []string
	sb.WriteString("(?i)^")
	for _, s := range t.segments {
		if s.isTag() {
			sb.WriteString("([^/]+?)")
			names = append(names, s.tag)
			continue
		}
		sb.WriteString(regexp.QuoteMeta(s.literal))
	}
	sb.WriteString("$")
	return regexp.MustCompile(sb.String()), names
}
