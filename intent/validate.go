package intent

import (
	"slices"

	"github.com/tbxark/formstate/types"
)

// ValidateHandler authorizes error display for one field or for every
// submitted field.
type ValidateHandler[E any] struct{}

func (ValidateHandler[E]) Type() string {
	return TypeValidate
}

func (ValidateHandler[E]) IsApplicable(in types.Intent) bool {
	if in.Type != TypeValidate {
		return false
	}
	_, err := validateName(in)
	return err == nil
}

func (ValidateHandler[E]) UpdateState(state types.FormState[E], in types.Intent, c Context[E]) (types.FormState[E], error) {
	name, err := validateName(in)
	if err != nil {
		return state, err
	}
	if name == "" {
		var fields []string
		if c.Submission != nil {
			fields = slices.Clone(c.Submission.Fields)
		}
		if fields == nil {
			fields = []string{}
		}
		state.TouchedFields = fields
		return state, nil
	}
	if slices.Contains(state.TouchedFields, name) {
		return state, nil
	}
	touched := make([]string, 0, len(state.TouchedFields)+1)
	touched = append(touched, state.TouchedFields...)
	state.TouchedFields = append(touched, name)
	return state, nil
}
