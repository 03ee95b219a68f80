package intent

import (
	"fmt"

	"github.com/tbxark/formstate/fieldpath"
	"github.com/tbxark/formstate/types"
)

// UpdateHandler writes a value at a field, merging it into an existing object
// so that sibling keys absent from the new value survive.
type UpdateHandler[E any] struct {
	Keys KeyGenerator
}

func (UpdateHandler[E]) Type() string {
	return TypeUpdate
}

func (UpdateHandler[E]) IsApplicable(in types.Intent) bool {
	if in.Type != TypeUpdate {
		return false
	}
	_, _, err := updatePayload(in)
	return err == nil
}

func (UpdateHandler[E]) UpdateValue(value map[string]any, in types.Intent) (map[string]any, error) {
	p, path, err := updatePayload(in)
	if err != nil {
		return value, err
	}
	return updateAt(value, path, p.Value)
}

func updateAt(value map[string]any, path fieldpath.Path, incoming any) (map[string]any, error) {
	out, err := fieldpath.Update(value, path, func(prev any, ok bool) any {
		if !ok {
			return incoming
		}
		return fieldpath.Merge(prev, incoming, true)
	}, fieldpath.WithClone())
	if err != nil {
		return value, err
	}
	tree, ok := out.(map[string]any)
	if !ok {
		return value, fmt.Errorf("update produced %T instead of an object", out)
	}
	return tree, nil
}

func (h UpdateHandler[E]) UpdateState(state types.FormState[E], in types.Intent, c Context[E]) (types.FormState[E], error) {
	p, path, err := updatePayload(in)
	if err != nil {
		return state, err
	}
	value, err := updateAt(baseValue(state, c), path, p.Value)
	if err != nil {
		return state, err
	}
	target, _, err := fieldpath.Get(value, path)
	if err != nil {
		return state, err
	}
	state.InitialValue = value
	state.SubmittedValue = value
	state.Keys = syncKeys(state.Keys, target, path, orDefault(h.Keys))
	return state, nil
}

func (UpdateHandler[E]) ApplySideEffect(host Host, in types.Intent, state types.FormState[E]) error {
	_, path, err := updatePayload(in)
	if err != nil {
		return err
	}
	target, _, err := fieldpath.Get(state.InitialValue, path)
	if err != nil {
		return err
	}
	for _, entry := range fieldpath.Flatten(target, path) {
		if err := host.UpdateField(entry.Name, entry.Value); err != nil {
			return fmt.Errorf("failed to update field %s: %w", entry.Name, err)
		}
	}
	return nil
}
