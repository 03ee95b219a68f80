package meta

import (
	"github.com/tbxark/formstate/fieldpath"
	"github.com/tbxark/formstate/types"
)

// Projection is one piece of field metadata a renderer depends on.
type Projection int

const (
	ProjectValue Projection = iota
	ProjectDefaultValue
	ProjectKey
	ProjectTouched
	ProjectValid
	ProjectError
	ProjectDirty
)

type subscriptionEntry struct {
	projection Projection
	name       string
}

// Subscription records which projections of which fields a renderer read, so
// that a state change re-renders only when one of them moved. The empty name
// stands for the form itself.
type Subscription[E any] struct {
	entries []subscriptionEntry
}

func (s *Subscription[E]) Subscribe(p Projection, name string) {
	for _, e := range s.entries {
		if e.projection == p && e.name == name {
			return
		}
	}
	s.entries = append(s.entries, subscriptionEntry{projection: p, name: name})
}

// Changed reports whether any subscribed projection differs between prev and
// next. A field that cannot be read counts as changed.
func (s *Subscription[E]) Changed(prev, next types.FormState[E]) bool {
	for _, e := range s.entries {
		if e.name == "" {
			if !fieldpath.Equal(projectForm(FormOf(prev), e.projection), projectForm(FormOf(next), e.projection)) {
				return true
			}
			continue
		}
		a, errA := FieldOf(prev, e.name)
		b, errB := FieldOf(next, e.name)
		if errA != nil || errB != nil {
			return true
		}
		if !fieldpath.Equal(projectField(a, e.projection), projectField(b, e.projection)) {
			return true
		}
	}
	return false
}

func projectField[E any](f Field[E], p Projection) any {
	switch p {
	case ProjectValue:
		return f.Value
	case ProjectDefaultValue:
		return f.DefaultValue
	case ProjectKey:
		return f.Key
	case ProjectTouched:
		return f.Touched
	case ProjectValid:
		return f.Valid
	case ProjectError:
		return f.Errors
	case ProjectDirty:
		return f.Dirty
	}
	return nil
}

func projectForm[E any](f Form[E], p Projection) any {
	switch p {
	case ProjectValue:
		return f.Value
	case ProjectDefaultValue:
		return f.DefaultValue
	case ProjectTouched:
		return f.Touched
	case ProjectValid:
		return f.Valid
	case ProjectError:
		return []any{f.Error, f.Errors}
	case ProjectDirty:
		return f.Dirty
	}
	return nil
}
