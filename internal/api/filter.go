package api

import "strings"

// TabAll is the dashboard tab that shows every record.
const TabAll = "all"

// FilterByField keeps the items whose field matches tab, case-insensitively.
// An empty tab or TabAll keeps everything. The result is never nil.
func FilterByField[T any](items []T, tab string, field func(T) string) []T {
	out := make([]T, 0, len(items))
	if tab == "" || strings.EqualFold(tab, TabAll) {
		return append(out, items...)
	}
	for _, it := range items {
		if strings.EqualFold(field(it), tab) {
			out = append(out, it)
		}
	}
	return out
}
