package intent

import (
	"maps"

	"github.com/tbxark/formstate/fieldpath"
)

// IndexAdjuster maps an element index to its new position. ok is false when
// the element is gone.
type IndexAdjuster func(index int) (next int, ok bool)

// RemapName rewrites name when it is a strict descendant of list whose first
// segment below list is an index. ok is false when the element was dropped.
func RemapName(name string, list fieldpath.Path, adjust IndexAdjuster) (string, bool) {
	path, err := fieldpath.Parse(name)
	if err != nil || len(path) <= len(list) || !path.HasPrefix(list) {
		return name, true
	}
	seg := path[len(list)]
	if !seg.IsIndex {
		return name, true
	}
	next, ok := adjust(seg.Index)
	if !ok {
		return "", false
	}
	if next == seg.Index {
		return name, true
	}
	out := make(fieldpath.Path, len(path))
	copy(out, path)
	out[len(list)] = fieldpath.Index(next)
	return fieldpath.Format(out), true
}

// RemapFields applies RemapName to every name, dropping removed ones.
func RemapFields(fields []string, list fieldpath.Path, adjust IndexAdjuster) []string {
	out := make([]string, 0, len(fields))
	for _, name := range fields {
		if next, ok := RemapName(name, list, adjust); ok {
			out = append(out, next)
		}
	}
	return out
}

// RemapKeys applies RemapName to every key entry path.
func RemapKeys(keys map[string][]string, list fieldpath.Path, adjust IndexAdjuster) map[string][]string {
	out := make(map[string][]string, len(keys))
	for name, ids := range keys {
		if next, ok := RemapName(name, list, adjust); ok {
			out[next] = ids
		}
	}
	return out
}

func shiftFrom(index int) IndexAdjuster {
	return func(i int) (int, bool) {
		if i >= index {
			return i + 1, true
		}
		return i, true
	}
}

func dropAt(index int) IndexAdjuster {
	return func(i int) (int, bool) {
		switch {
		case i == index:
			return 0, false
		case i > index:
			return i - 1, true
		default:
			return i, true
		}
	}
}

func moveTo(from, to int) IndexAdjuster {
	return func(i int) (int, bool) {
		switch {
		case i == from:
			return to, true
		case from < to && i > from && i <= to:
			return i - 1, true
		case from > to && i >= to && i < from:
			return i + 1, true
		default:
			return i, true
		}
	}
}

// syncKeys makes keys agree with every array found in value at prefix.
// Entries whose length already matches are kept, mismatched ones are
// regenerated and entries at or below prefix that no longer address an array
// are dropped. keys itself is returned when nothing changes.
func syncKeys(keys map[string][]string, value any, prefix fieldpath.Path, gen KeyGenerator) map[string][]string {
	found := make(map[string]int)
	collectLists(value, prefix, found)

	changed := false
	out := maps.Clone(keys)
	if out == nil {
		out = make(map[string][]string)
	}
	for name, n := range found {
		if len(out[name]) == n {
			continue
		}
		out[name] = newKeys(n, gen)
		changed = true
	}
	for name := range out {
		if _, ok := found[name]; ok {
			continue
		}
		path, err := fieldpath.Parse(name)
		if err != nil || !path.HasPrefix(prefix) {
			continue
		}
		delete(out, name)
		changed = true
	}
	if !changed && keys != nil {
		return keys
	}
	return out
}

func collectLists(value any, path fieldpath.Path, found map[string]int) {
	switch v := value.(type) {
	case []any:
		found[fieldpath.Format(path)] = len(v)
		for i, item := range v {
			collectLists(item, path.Append(fieldpath.Index(i)), found)
		}
	case map[string]any:
		for key, item := range v {
			collectLists(item, path.Append(fieldpath.Key(key)), found)
		}
	}
}

func newKeys(n int, gen KeyGenerator) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = gen()
	}
	return ids
}

// listKeys returns the keys recorded for the list at name, regenerating them
// when they do not match the list length.
func listKeys(keys map[string][]string, name string, n int, gen KeyGenerator) []string {
	if ids, ok := keys[name]; ok && len(ids) == n {
		return ids
	}
	return newKeys(n, gen)
}

// RegisterKeys returns keys for every array in value, keyed by field name.
func RegisterKeys(value map[string]any, gen KeyGenerator) map[string][]string {
	return syncKeys(nil, value, nil, orDefault(gen))
}
