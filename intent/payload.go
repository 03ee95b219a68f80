package intent

import (
	"errors"
	"fmt"

	"github.com/tbxark/formstate/fieldpath"
	"github.com/tbxark/formstate/types"
)

var errMissingField = errors.New("missing required payload field")

type UpdatePayload struct {
	Name  string `json:"name,omitempty"`
	Index *int   `json:"index,omitempty"`
	Value any    `json:"value"`
}

type InsertPayload struct {
	Name         string `json:"name"`
	Index        *int   `json:"index,omitempty"`
	DefaultValue any    `json:"defaultValue,omitempty"`
}

type RemovePayload struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

type ReorderPayload struct {
	Name string `json:"name"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

// Validate marks name touched, or every submitted field when name is empty.
func Validate(name string) types.Intent {
	if name == "" {
		return types.Intent{Type: TypeValidate}
	}
	return types.Intent{Type: TypeValidate, Payload: name}
}

func Reset() types.Intent {
	return types.Intent{Type: TypeReset}
}

func Update(p UpdatePayload) types.Intent {
	return types.Intent{Type: TypeUpdate, Payload: p}
}

func Insert(p InsertPayload) types.Intent {
	return types.Intent{Type: TypeInsert, Payload: p}
}

func Remove(name string, index int) types.Intent {
	return types.Intent{Type: TypeRemove, Payload: RemovePayload{Name: name, Index: index}}
}

func Reorder(name string, from, to int) types.Intent {
	return types.Intent{Type: TypeReorder, Payload: ReorderPayload{Name: name, From: from, To: to}}
}

// IntPtr is a convenience for the optional index fields.
func IntPtr(v int) *int {
	return &v
}

type removeWire struct {
	Name  *string `json:"name"`
	Index *int    `json:"index"`
}

type reorderWire struct {
	Name *string `json:"name"`
	From *int    `json:"from"`
	To   *int    `json:"to"`
}

func validateName(in types.Intent) (string, error) {
	switch v := in.Payload.(type) {
	case nil:
		return "", nil
	case string:
		if _, err := fieldpath.Parse(v); err != nil {
			return "", err
		}
		return v, nil
	default:
		return "", fmt.Errorf("validate payload must be a field name, got %T", in.Payload)
	}
}

func updatePayload(in types.Intent) (UpdatePayload, fieldpath.Path, error) {
	p, err := decodePayload[UpdatePayload](in.Payload)
	if err != nil {
		return p, nil, err
	}
	path, err := fieldpath.Parse(p.Name)
	if err != nil {
		return p, nil, err
	}
	if p.Index != nil {
		if *p.Index < 0 {
			return p, nil, fmt.Errorf("negative index %d", *p.Index)
		}
		path = path.Append(fieldpath.Index(*p.Index))
	}
	if len(path) == 0 {
		if _, ok := p.Value.(map[string]any); !ok {
			return p, nil, fmt.Errorf("root update needs an object value, got %T", p.Value)
		}
	}
	return p, path, nil
}

func insertPayload(in types.Intent) (InsertPayload, fieldpath.Path, error) {
	p, err := decodePayload[InsertPayload](in.Payload)
	if err != nil {
		return p, nil, err
	}
	path, err := listPath(p.Name)
	if err != nil {
		return p, nil, err
	}
	if p.Index != nil && *p.Index < 0 {
		return p, nil, fmt.Errorf("negative index %d", *p.Index)
	}
	return p, path, nil
}

func removePayload(in types.Intent) (RemovePayload, fieldpath.Path, error) {
	if p, ok := in.Payload.(RemovePayload); ok {
		path, err := listPath(p.Name)
		if err == nil && p.Index < 0 {
			err = fmt.Errorf("negative index %d", p.Index)
		}
		return p, path, err
	}
	w, err := decodePayload[removeWire](in.Payload)
	if err != nil {
		return RemovePayload{}, nil, err
	}
	if w.Name == nil || w.Index == nil {
		return RemovePayload{}, nil, errMissingField
	}
	if *w.Index < 0 {
		return RemovePayload{}, nil, fmt.Errorf("negative index %d", *w.Index)
	}
	path, err := listPath(*w.Name)
	return RemovePayload{Name: *w.Name, Index: *w.Index}, path, err
}

func reorderPayload(in types.Intent) (ReorderPayload, fieldpath.Path, error) {
	if p, ok := in.Payload.(ReorderPayload); ok {
		path, err := listPath(p.Name)
		if err == nil && (p.From < 0 || p.To < 0) {
			err = fmt.Errorf("negative index in %d -> %d", p.From, p.To)
		}
		return p, path, err
	}
	w, err := decodePayload[reorderWire](in.Payload)
	if err != nil {
		return ReorderPayload{}, nil, err
	}
	if w.Name == nil || w.From == nil || w.To == nil {
		return ReorderPayload{}, nil, errMissingField
	}
	if *w.From < 0 || *w.To < 0 {
		return ReorderPayload{}, nil, fmt.Errorf("negative index in %d -> %d", *w.From, *w.To)
	}
	path, err := listPath(*w.Name)
	return ReorderPayload{Name: *w.Name, From: *w.From, To: *w.To}, path, err
}

func listPath(name string) (fieldpath.Path, error) {
	path, err := fieldpath.Parse(name)
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return nil, errors.New("list intents need a field name")
	}
	return path, nil
}
