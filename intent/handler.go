package intent

import (
	"github.com/google/uuid"
	"github.com/tbxark/formstate/types"
)

type Origin string

const (
	OriginClient Origin = "client"
	OriginServer Origin = "server"
)

// Context is what a handler sees of the transition it takes part in.
type Context[E any] struct {
	Origin     Origin
	Submission *types.Submission
	// Value is the form value list and update intents act on, fixed before
	// error fields widen the submission. When nil it is derived with LiveValue.
	Value map[string]any
	// Reset rebuilds the initial state from the original default value.
	Reset func() types.FormState[E]
}

// Handler owns one intent type.
type Handler[E any] interface {
	Type() string
	IsApplicable(in types.Intent) bool
	// UpdateState must not modify state; it returns a new value that may share
	// unchanged parts with it.
	UpdateState(state types.FormState[E], in types.Intent, c Context[E]) (types.FormState[E], error)
}

// ValueUpdater is implemented by handlers that transform the form value.
// A nil result means the form is to be treated as reset.
type ValueUpdater interface {
	UpdateValue(value map[string]any, in types.Intent) (map[string]any, error)
}

// Host is the live form a side effect acts on.
type Host interface {
	// Reset performs the host's native form reset.
	Reset() error
	// UpdateField pushes value into the input named name. The host must not
	// report the change back as a user edit.
	UpdateField(name string, value any) error
}

// SideEffecter is implemented by handlers with a one-shot imperative action.
type SideEffecter[E any] interface {
	ApplySideEffect(host Host, in types.Intent, state types.FormState[E]) error
}

// KeyGenerator returns a fresh opaque list item key.
type KeyGenerator func() string

func NewKey() string {
	return uuid.NewString()
}

func orDefault(gen KeyGenerator) KeyGenerator {
	if gen == nil {
		return NewKey
	}
	return gen
}

// DefaultHandlers returns the six built-in handlers in dispatch order.
func DefaultHandlers[E any](gen KeyGenerator) []Handler[E] {
	if gen == nil {
		gen = NewKey
	}
	return []Handler[E]{
		ValidateHandler[E]{},
		ResetHandler[E]{},
		UpdateHandler[E]{Keys: gen},
		InsertHandler[E]{Keys: gen},
		RemoveHandler[E]{Keys: gen},
		ReorderHandler[E]{Keys: gen},
	}
}

// LiveValue is the value a submission acts on: its own payload when it
// carries fields, otherwise the latest value the form is known to hold.
func LiveValue[E any](state types.FormState[E], sub *types.Submission) map[string]any {
	if sub != nil && len(sub.Fields) > 0 {
		return sub.Value
	}
	return state.CurrentValue()
}

func baseValue[E any](state types.FormState[E], c Context[E]) map[string]any {
	if c.Value != nil {
		return c.Value
	}
	return LiveValue(state, c.Submission)
}
