package extension

import (
	"fmt"

	"github.com/vango-dev/trackstate/pkg/state"
)

// maxValueLen bounds values rendered into spans and log records.
const maxValueLen = 256

// actionOf classifies an applied write the way a Mutation would.
func actionOf(ev state.SetEvent) state.Action {
	switch {
	case ev.Previous == state.None:
		return state.Insert
	case ev.Value == state.None && len(ev.Path) > 0:
		return state.Delete
	default:
		return state.Update
	}
}

// opOf returns "merge" for writes produced by Merge and "set" otherwise.
func opOf(ev state.SetEvent) string {
	if ev.Merged != nil {
		return "merge"
	}
	return "set"
}

// actionName is the label value for an action.
func actionName(a state.Action) string {
	switch a {
	case state.Insert:
		return "insert"
	case state.Delete:
		return "delete"
	default:
		return "update"
	}
}

// formatValue renders v for span attributes and log records, truncated to
// maxValueLen bytes.
func formatValue(v any) string {
	out := fmt.Sprint(v)
	if len(out) > maxValueLen {
		return out[:maxValueLen] + "..."
	}
	return out
}
