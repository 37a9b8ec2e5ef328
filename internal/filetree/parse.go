package filetree

import (
	"fmt"
	"strings"
)

// ParseFolderPath extracts tag values from a folder path produced by the
// set's folder template for category in the named context. Keys are tag
// names without field selectors.
func ParseFolderPath(set *TemplateSet, context string, category Category, path, sep string) (map[string]string, error) {
	opts := Options{Separator: sep}
	sep, err := opts.Sep()
	if err != nil {
		return nil, err
	}
	c, err := set.Context(context)
	if err != nil {
		return nil, err
	}
	tpl, ok := c.FolderPath.lookup(category)
	if !ok {
		return nil, &UnsupportedCategoryError{Category: string(category), Context: context}
	}

	root := replaceSeparators(c.rootPath(sep), "/")
	normalized := strings.TrimRight(replaceSeparators(path, "/"), "/")
	if !strings.HasPrefix(strings.ToLower(normalized), strings.ToLower(root)) {
		return nil, fmt.Errorf("%w: %q is outside %q", ErrPathMismatch, path, root)
	}
	rest := normalized[len(root):]

	re, names := tpl.matcher()
	m := re.FindStringSubmatch(rest)
	if m == nil {
		return nil, fmt.Errorf("%w: %q does not match %q", ErrPathMismatch, rest, tpl.String())
	}
	values := make(map[string]string, len(names))
	for i, name := range names {
		values[name] = m[i+1]
	}
	return values, nil
}
