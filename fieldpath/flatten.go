package fieldpath

import (
	"sort"
)

// Entry is a single (name, value) pair of a flat submission payload.
type Entry struct {
	Name  string
	Value any
}

// Flatten emits the leaves of tree as ordered entries named relative to
// prefix. Mapping keys are visited in sorted order. Empty mappings and
// sequences emit nothing; a nil leaf is emitted as is.
func Flatten(tree any, prefix Path) []Entry {
	var entries []Entry
	flatten(tree, prefix, &entries)
	return entries
}

func flatten(node any, path Path, entries *[]Entry) {
	switch v := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			flatten(v[key], path.Append(Key(key)), entries)
		}
	case []any:
		for i, item := range v {
			flatten(item, path.Append(Index(i)), entries)
		}
	default:
		if len(path) == 0 {
			return
		}
		*entries = append(*entries, Entry{Name: Format(path), Value: v})
	}
}
