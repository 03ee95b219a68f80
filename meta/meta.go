// Package meta derives the read-only per-field and per-form view a UI binding
// renders from a form state.
package meta

import (
	"fmt"
	"strings"

	"github.com/tbxark/formstate/fieldpath"
	"github.com/tbxark/formstate/types"
)

type Field[E any] struct {
	Name string
	// Key identifies the list item the field is, empty when it is not one.
	Key          string
	Value        any
	DefaultValue any
	// Touched is set when the field or anything below it is touched.
	Touched bool
	// Valid ignores visibility: it is false as soon as an error exists at or
	// below the field.
	Valid bool
	// Error is the field's own error, shown once the field or one of its
	// ancestors is touched.
	Error *E
	// Errors holds the shown errors at or below the field.
	Errors map[string]E
	Dirty  bool
}

type Form[E any] struct {
	Value        map[string]any
	DefaultValue map[string]any
	Touched      bool
	Valid        bool
	// Error is the form level error, shown once any field is touched.
	Error  *E
	Errors map[string]E
	Dirty  bool
}

func CurrentValue[E any](state types.FormState[E]) map[string]any {
	return state.CurrentValue()
}

func FieldOf[E any](state types.FormState[E], name string) (Field[E], error) {
	path, err := fieldpath.Parse(name)
	if err != nil {
		return Field[E]{}, err
	}
	value, _, err := fieldpath.Get(CurrentValue(state), path)
	if err != nil {
		return Field[E]{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	defaultValue, _, err := fieldpath.Get(state.InitialValue, path)
	if err != nil {
		return Field[E]{}, fmt.Errorf("failed to read default of %s: %w", name, err)
	}
	pristine, _, err := fieldpath.Get(state.DefaultValue, path)
	if err != nil {
		pristine = nil
	}

	field := Field[E]{
		Name:         name,
		Key:          keyOf(state, path),
		Value:        value,
		DefaultValue: defaultValue,
		Touched:      touched(state.TouchedFields, name),
		Valid:        true,
		Dirty:        !fieldpath.Equal(value, pristine),
	}
	formError := state.Error()
	if formError == nil {
		return field, nil
	}
	for errName, e := range formError.FieldError {
		if !fieldpath.IsPrefix(errName, name) {
			continue
		}
		field.Valid = false
		if !visible(state.TouchedFields, errName) {
			continue
		}
		if field.Errors == nil {
			field.Errors = map[string]E{}
		}
		field.Errors[errName] = e
		if errName == name {
			field.Error = &e
		}
	}
	return field, nil
}

func FormOf[E any](state types.FormState[E]) Form[E] {
	value := CurrentValue(state)
	form := Form[E]{
		Value:        value,
		DefaultValue: state.InitialValue,
		Touched:      len(state.TouchedFields) > 0,
		Valid:        true,
		Dirty:        !fieldpath.Equal(value, state.DefaultValue),
	}
	formError := state.Error()
	if formError == nil {
		return form
	}
	if formError.FormError != nil {
		form.Valid = false
		if form.Touched {
			form.Error = formError.FormError
		}
	}
	for name, e := range formError.FieldError {
		form.Valid = false
		if !visible(state.TouchedFields, name) {
			continue
		}
		if form.Errors == nil {
			form.Errors = map[string]E{}
		}
		form.Errors[name] = e
	}
	return form
}

// keyOf returns the key of the list item path points at.
func keyOf[E any](state types.FormState[E], path fieldpath.Path) string {
	if len(path) == 0 || !path[len(path)-1].IsIndex {
		return ""
	}
	keys := state.Keys[fieldpath.Format(path[:len(path)-1])]
	index := path[len(path)-1].Index
	if index >= len(keys) {
		return ""
	}
	return keys[index]
}

func touched(fields []string, name string) bool {
	for _, field := range fields {
		if fieldpath.IsPrefix(field, name) {
			return true
		}
	}
	return false
}

// visible reports whether the error at name may be shown: the field itself or
// one of its ancestors is touched.
func visible(fields []string, name string) bool {
	for _, field := range fields {
		if fieldpath.IsPrefix(name, field) {
			return true
		}
	}
	return false
}

// String renders a field for logs.
func (f Field[E]) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s=%v", f.Name, f.Value)
	if f.Key != "" {
		fmt.Fprintf(&sb, " key=%s", f.Key)
	}
	if f.Touched {
		sb.WriteString(" touched")
	}
	if f.Dirty {
		sb.WriteString(" dirty")
	}
	if !f.Valid {
		sb.WriteString(" invalid")
	}
	return sb.String()
}
