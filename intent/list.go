package intent

import (
	"fmt"
	"slices"

	"github.com/tbxark/formstate/fieldpath"
	"github.com/tbxark/formstate/types"
)

func readList(value map[string]any, path fieldpath.Path) ([]any, error) {
	current, ok, err := fieldpath.Get(value, path)
	if err != nil {
		return nil, err
	}
	if !ok || current == nil {
		return nil, nil
	}
	list, isList := current.([]any)
	if !isList {
		return nil, &fieldpath.PathError{
			Name: fieldpath.Format(path),
			Err:  fmt.Errorf("%w: expected a list, got %T", fieldpath.ErrTypeMismatch, current),
		}
	}
	return list, nil
}

func writeList(value map[string]any, path fieldpath.Path, list []any) (map[string]any, error) {
	out, err := fieldpath.Set(value, path, list, fieldpath.WithClone())
	if err != nil {
		return value, err
	}
	tree, ok := out.(map[string]any)
	if !ok {
		return value, fmt.Errorf("list update produced %T instead of an object", out)
	}
	return tree, nil
}

// InsertHandler adds an item to a list and shifts the identity of every
// following item up by one.
type InsertHandler[E any] struct {
	Keys KeyGenerator
}

func (InsertHandler[E]) Type() string {
	return TypeInsert
}

func (InsertHandler[E]) IsApplicable(in types.Intent) bool {
	if in.Type != TypeInsert {
		return false
	}
	_, _, err := insertPayload(in)
	return err == nil
}

func insertIndex(p InsertPayload, n int) int {
	if p.Index == nil || *p.Index > n {
		return n
	}
	return *p.Index
}

func (InsertHandler[E]) UpdateValue(value map[string]any, in types.Intent) (map[string]any, error) {
	p, path, err := insertPayload(in)
	if err != nil {
		return value, err
	}
	list, err := readList(value, path)
	if err != nil {
		return value, err
	}
	index := insertIndex(p, len(list))
	return writeList(value, path, slices.Insert(slices.Clone(list), index, p.DefaultValue))
}

func (h InsertHandler[E]) UpdateState(state types.FormState[E], in types.Intent, c Context[E]) (types.FormState[E], error) {
	p, path, err := insertPayload(in)
	if err != nil {
		return state, err
	}
	gen := orDefault(h.Keys)
	base := baseValue(state, c)
	list, err := readList(base, path)
	if err != nil {
		return state, err
	}
	index := insertIndex(p, len(list))

	value, err := writeList(base, path, slices.Insert(slices.Clone(list), index, p.DefaultValue))
	if err != nil {
		return state, err
	}

	ids := listKeys(state.Keys, p.Name, len(list), gen)
	keys := RemapKeys(state.Keys, path, shiftFrom(index))
	keys[p.Name] = slices.Insert(slices.Clone(ids), index, gen())
	keys = syncKeys(keys, p.DefaultValue, path.Append(fieldpath.Index(index)), gen)

	touched := RemapFields(state.TouchedFields, path, shiftFrom(index))
	if !slices.Contains(touched, p.Name) {
		touched = append(touched, p.Name)
	}

	state.InitialValue = value
	state.SubmittedValue = value
	state.Keys = keys
	state.TouchedFields = touched
	return state, nil
}

// RemoveHandler drops an item from a list together with every touched field
// and key recorded below it.
type RemoveHandler[E any] struct {
	Keys KeyGenerator
}

func (RemoveHandler[E]) Type() string {
	return TypeRemove
}

func (RemoveHandler[E]) IsApplicable(in types.Intent) bool {
	if in.Type != TypeRemove {
		return false
	}
	_, _, err := removePayload(in)
	return err == nil
}

func (RemoveHandler[E]) UpdateValue(value map[string]any, in types.Intent) (map[string]any, error) {
	p, path, err := removePayload(in)
	if err != nil {
		return value, err
	}
	list, err := readList(value, path)
	if err != nil {
		return value, err
	}
	if p.Index >= len(list) {
		return value, nil
	}
	return writeList(value, path, slices.Delete(slices.Clone(list), p.Index, p.Index+1))
}

func (h RemoveHandler[E]) UpdateState(state types.FormState[E], in types.Intent, c Context[E]) (types.FormState[E], error) {
	p, path, err := removePayload(in)
	if err != nil {
		return state, err
	}
	base := baseValue(state, c)
	list, err := readList(base, path)
	if err != nil {
		return state, err
	}
	if p.Index >= len(list) {
		return state, nil
	}
	value, err := writeList(base, path, slices.Delete(slices.Clone(list), p.Index, p.Index+1))
	if err != nil {
		return state, err
	}

	keys := RemapKeys(state.Keys, path, dropAt(p.Index))
	if ids, ok := state.Keys[p.Name]; ok && len(ids) == len(list) {
		keys[p.Name] = slices.Delete(slices.Clone(ids), p.Index, p.Index+1)
	} else {
		keys[p.Name] = newKeys(len(list)-1, orDefault(h.Keys))
	}

	state.InitialValue = value
	state.SubmittedValue = value
	state.Keys = keys
	state.TouchedFields = RemapFields(state.TouchedFields, path, dropAt(p.Index))
	return state, nil
}

// ReorderHandler moves one list item; items in between shift by one toward
// the vacated slot.
type ReorderHandler[E any] struct {
	Keys KeyGenerator
}

func (ReorderHandler[E]) Type() string {
	return TypeReorder
}

func (ReorderHandler[E]) IsApplicable(in types.Intent) bool {
	if in.Type != TypeReorder {
		return false
	}
	_, _, err := reorderPayload(in)
	return err == nil
}

func move[T any](list []T, from, to int) []T {
	out := slices.Clone(list)
	item := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, item)
}

func (ReorderHandler[E]) UpdateValue(value map[string]any, in types.Intent) (map[string]any, error) {
	p, path, err := reorderPayload(in)
	if err != nil {
		return value, err
	}
	list, err := readList(value, path)
	if err != nil {
		return value, err
	}
	if p.From == p.To || p.From >= len(list) || p.To >= len(list) {
		return value, nil
	}
	return writeList(value, path, move(list, p.From, p.To))
}

func (h ReorderHandler[E]) UpdateState(state types.FormState[E], in types.Intent, c Context[E]) (types.FormState[E], error) {
	p, path, err := reorderPayload(in)
	if err != nil {
		return state, err
	}
	base := baseValue(state, c)
	list, err := readList(base, path)
	if err != nil {
		return state, err
	}
	if p.From == p.To || p.From >= len(list) || p.To >= len(list) {
		return state, nil
	}
	value, err := writeList(base, path, move(list, p.From, p.To))
	if err != nil {
		return state, err
	}

	ids := listKeys(state.Keys, p.Name, len(list), orDefault(h.Keys))
	keys := RemapKeys(state.Keys, path, moveTo(p.From, p.To))
	keys[p.Name] = move(ids, p.From, p.To)

	state.InitialValue = value
	state.SubmittedValue = value
	state.Keys = keys
	state.TouchedFields = RemapFields(state.TouchedFields, path, moveTo(p.From, p.To))
	return state, nil
}
