package workflow

import (
	"sort"

	"github.com/fentz26/prodtrack/internal/models"
)

// Labels maps canonical statuses to display labels.
type Labels map[models.TaskStatus]string

// ValidateLabels rejects keys that are not canonical statuses.
func ValidateLabels(m map[string]string) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !models.TaskStatus(k).Valid() {
			return &UnknownStatusError{Status: k}
		}
	}
	return nil
}

// ResolveLabels layers project overrides over base. Empty override values
// keep the base label.
func ResolveLabels(base, project map[string]string) Labels {
	out := make(Labels, len(models.TaskStatuses))
	for _, s := range models.TaskStatuses {
		out[s] = string(s)
		if v := base[string(s)]; v != "" {
			out[s] = v
		}
		if v := project[string(s)]; v != "" {
			out[s] = v
		}
	}
	return out
}

// Label returns the display label of s, falling back to the status itself.
func (l Labels) Label(s models.TaskStatus) string {
	if v, ok := l[s]; ok && v != "" {
		return v
	}
	return string(s)
}
