package intent

import (
	"errors"

	"github.com/tbxark/formstate/types"
)

// ResetHandler restores the state built from the original default value.
type ResetHandler[E any] struct{}

func (ResetHandler[E]) Type() string {
	return TypeReset
}

func (ResetHandler[E]) IsApplicable(in types.Intent) bool {
	return in.Type == TypeReset
}

func (ResetHandler[E]) UpdateState(state types.FormState[E], in types.Intent, c Context[E]) (types.FormState[E], error) {
	if c.Reset == nil {
		return state, errors.New("reset intent needs a reset function")
	}
	return c.Reset(), nil
}

func (ResetHandler[E]) UpdateValue(value map[string]any, in types.Intent) (map[string]any, error) {
	return nil, nil
}

func (ResetHandler[E]) ApplySideEffect(host Host, in types.Intent, state types.FormState[E]) error {
	return host.Reset()
}
