package flow

import (
	"context"

	"github.com/tbxark/formstate/types"
)

// Validator checks a form value. It should honor ctx cancellation: a
// validation still running when a newer submission arrives is cancelled, and
// the newer submission waits for it to return.
type Validator[E any] interface {
	Validate(ctx context.Context, value map[string]any) (*types.FormError[E], error)
}

type ValidatorFunc[E any] func(ctx context.Context, value map[string]any) (*types.FormError[E], error)

func (f ValidatorFunc[E]) Validate(ctx context.Context, value map[string]any) (*types.FormError[E], error) {
	return f(ctx, value)
}

// FormManager receives final submissions. A returned form error is stored as
// the server verdict and keeps the form open.
type FormManager[E any] interface {
	Submit(ctx context.Context, value map[string]any) (*types.FormError[E], error)
}

type Result[E any] struct {
	State      types.FormState[E]
	Submission *types.Submission
	// Intent is the recognized intent, nil for a plain submission.
	Intent *types.Intent
	// Value is the form value after the intent's value transform, nil after
	// a reset.
	Value      map[string]any
	SideEffect bool
	Submitted  bool
	// Superseded is set when a newer submission cancelled this one's
	// validation. Its intent was still applied.
	Superseded bool
}
