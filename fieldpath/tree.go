package fieldpath

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Equal reports whether two form values are deeply equal.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// Get returns the value at path. ok is false when any segment is absent.
// Indexing a value that cannot be indexed by the segment kind is an error.
func Get(tree any, path Path) (any, bool, error) {
	cur := tree
	for i, seg := range path {
		if cur == nil {
			return nil, false, nil
		}
		if seg.IsIndex {
			list, ok := cur.([]any)
			if !ok {
				return nil, false, mismatch(path[:i+1], cur)
			}
			if seg.Index >= len(list) {
				return nil, false, nil
			}
			cur = list[seg.Index]
			continue
		}
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false, mismatch(path[:i+1], cur)
		}
		value, ok := obj[seg.Key]
		if !ok {
			return nil, false, nil
		}
		cur = value
	}
	return cur, true, nil
}

type setOptions struct {
	clone bool
}

type SetOption func(*setOptions)

// WithClone copies the spine from the root to the written node instead of
// writing in place. Siblings stay shared.
func WithClone() SetOption {
	return func(o *setOptions) {
		o.clone = true
	}
}

// Set writes value at path and returns the resulting tree. When the value at
// path already equals value, tree itself is returned.
func Set(tree any, path Path, value any, opts ...SetOption) (any, error) {
	return Update(tree, path, func(any, bool) any { return value }, opts...)
}

// Update is Set with the new value computed from the previous one.
func Update(tree any, path Path, fn func(prev any, ok bool) any, opts ...SetOption) (any, error) {
	var o setOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	prev, ok, err := Get(tree, path)
	if err != nil {
		return tree, err
	}
	next := fn(prev, ok)
	if ok && Equal(prev, next) {
		return tree, nil
	}
	if len(path) == 0 {
		return next, nil
	}
	return set(tree, path, 0, next, o.clone)
}

func set(node any, path Path, depth int, value any, clone bool) (any, error) {
	seg := path[depth]
	last := depth == len(path)-1

	if seg.IsIndex {
		var list []any
		switch v := node.(type) {
		case nil:
		case []any:
			list = v
			if clone {
				list = slices.Clone(v)
			}
		default:
			return node, mismatch(path[:depth+1], node)
		}
		if seg.Index >= len(list) {
			list = append(list, make([]any, seg.Index-len(list)+1)...)
		}
		if last {
			list[seg.Index] = value
			return list, nil
		}
		child, err := set(list[seg.Index], path, depth+1, value, clone)
		if err != nil {
			return node, err
		}
		list[seg.Index] = child
		return list, nil
	}

	var obj map[string]any
	switch v := node.(type) {
	case nil:
		obj = make(map[string]any)
	case map[string]any:
		obj = v
		if clone {
			obj = maps.Clone(v)
		}
		if obj == nil {
			obj = make(map[string]any)
		}
	default:
		return node, mismatch(path[:depth+1], node)
	}
	if last {
		obj[seg.Key] = value
		return obj, nil
	}
	child, err := set(obj[seg.Key], path, depth+1, value, clone)
	if err != nil {
		return node, err
	}
	obj[seg.Key] = child
	return obj, nil
}

// Merge merges b into a key by key. Mappings on both sides are merged
// recursively. Sequences from b always replace what a holds. Any other
// conflict takes b's value when overwrite is set and keeps a's otherwise; a
// nil on a's side counts as absent. a is returned unchanged when the merge
// changes nothing.
func Merge(a, b any, overwrite bool) any {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if !aok || !bok {
		if a == nil || overwrite {
			return b
		}
		if _, isList := b.([]any); isList {
			return b
		}
		return a
	}

	out := maps.Clone(am)
	if out == nil {
		out = make(map[string]any, len(bm))
	}
	for key, bv := range bm {
		av, exists := am[key]
		if !exists {
			out[key] = bv
			continue
		}
		out[key] = Merge(av, bv, overwrite)
	}
	if Equal(out, a) {
		return a
	}
	return out
}

// Clone deep-copies the mapping and sequence structure of a value. Scalars
// and blobs are shared.
func Clone(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Clone(item)
		}
		return out
	default:
		return v
	}
}

func mismatch(path Path, node any) error {
	seg := path[len(path)-1]
	kind := "key"
	if seg.IsIndex {
		kind = "index"
	}
	return &PathError{
		Name: Format(path),
		Err:  fmt.Errorf("%w: cannot use %s %s on %T", ErrTypeMismatch, kind, seg, node),
	}
}
