package core

import "strings"

// FilterByName keeps records whose name contains term, ignoring case.
// An empty term keeps everything.
func FilterByName(list []Record, term string) []Record {
	term = strings.ToLower(term)
	out := make([]Record, 0, len(list))
	for _, r := range list {
		if strings.Contains(strings.ToLower(r.Name), term) {
			out = append(out, r)
		}
	}
	return out
}
