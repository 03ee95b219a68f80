package patch

import (
	"sort"

	"github.com/tbxark/formstate/fieldpath"
)

// Diff returns operations turning from into to. Mappings are compared key by
// key in sorted order; lists of equal length item by item, any other list
// change replaces the whole list.
func Diff(from, to map[string]any) []Operation {
	ops := make([]Operation, 0)
	diffMap(nil, from, to, &ops)
	return ops
}

func diffMap(path fieldpath.Path, from, to map[string]any, ops *[]Operation) {
	keys := make([]string, 0, len(from)+len(to))
	for key := range from {
		keys = append(keys, key)
	}
	for key := range to {
		if _, ok := from[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		child := path.Append(fieldpath.Key(key))
		prev, inFrom := from[key]
		next, inTo := to[key]
		switch {
		case !inTo:
			*ops = append(*ops, Operation{Op: OperationRemove, Path: Pointer(child)})
		case !inFrom:
			*ops = append(*ops, Operation{Op: OperationAdd, Path: Pointer(child), Value: next})
		default:
			diffValue(child, prev, next, ops)
		}
	}
}

func diffValue(path fieldpath.Path, prev, next any, ops *[]Operation) {
	if fieldpath.Equal(prev, next) {
		return
	}
	prevMap, ok1 := prev.(map[string]any)
	nextMap, ok2 := next.(map[string]any)
	if ok1 && ok2 {
		diffMap(path, prevMap, nextMap, ops)
		return
	}
	prevList, ok1 := prev.([]any)
	nextList, ok2 := next.([]any)
	if ok1 && ok2 && len(prevList) == len(nextList) {
		for i := range prevList {
			diffValue(path.Append(fieldpath.Index(i)), prevList[i], nextList[i], ops)
		}
		return
	}
	*ops = append(*ops, Operation{Op: OperationReplace, Path: Pointer(path), Value: next})
}
