package formstate

import (
	"fmt"
	"slices"
	"sort"

	"github.com/tbxark/formstate/fieldpath"
	"github.com/tbxark/formstate/intent"
	"github.com/tbxark/formstate/types"
)

// Init describes where a form starts: its default value and optionally the
// result of a prior submission, such as one rendered back by a server.
type Init[E any] struct {
	DefaultValue map[string]any
	Submission   *types.Submission
	Error        *types.FormError[E]
}

// Update is one transition request.
type Update[E any] struct {
	Origin     Origin
	Submission *types.Submission
	Error      *types.FormError[E]
	// Pending means no validation outcome is available yet, so a client
	// transition keeps the stored client error.
	Pending bool
	// Reset overrides how the reset intent rebuilds the initial state.
	Reset func() types.FormState[E]
}

// InitialState is the state of an untouched form.
func (c *Control[E]) InitialState(defaultValue map[string]any) types.FormState[E] {
	if defaultValue == nil {
		defaultValue = map[string]any{}
	}
	return types.FormState[E]{
		DefaultValue:  defaultValue,
		InitialValue:  defaultValue,
		TouchedFields: []string{},
		Keys:          intent.RegisterKeys(defaultValue, c.keys),
	}
}

func (c *Control[E]) InitializeState(init Init[E]) (types.FormState[E], error) {
	state := c.InitialState(init.DefaultValue)
	if init.Submission == nil {
		return state, nil
	}
	return c.UpdateState(state, Update[E]{
		Origin:     OriginServer,
		Submission: init.Submission,
		Error:      init.Error,
	})
}

// UpdateState reconciles the error slots and then folds the state through
// every handler claiming the submission's intent, in handler order. A
// submission without a recognized intent is handled as a validate of all
// submitted fields.
func (c *Control[E]) UpdateState(state types.FormState[E], u Update[E]) (types.FormState[E], error) {
	live := intent.LiveValue(state, u.Submission)
	sub := u.Submission
	if !u.Pending || u.Origin == OriginServer {
		sub = withErrorFields(sub, u.Error)
	}

	next := state
	switch u.Origin {
	case OriginServer:
		if !fieldpath.Equal(state.ServerError, u.Error) {
			next.ServerError = u.Error
		}
	case OriginClient:
		if !u.Pending {
			next.ClientError = u.Error
			if sub != nil && !fieldpath.Equal(live, state.SubmittedValue) {
				next.ServerError = nil
			}
		}
	default:
		return state, fmt.Errorf("unknown origin %q", u.Origin)
	}
	if sub == nil {
		return next, nil
	}
	// Error fields widen the touched set only; a submission without fields
	// keeps acting on the value the form already holds.
	next.SubmittedValue = live

	in := c.Recognize(sub.Intent)
	if in == nil {
		implied := intent.Validate("")
		in = &implied
	}
	reset := u.Reset
	if reset == nil {
		defaultValue := state.DefaultValue
		reset = func() types.FormState[E] {
			return c.InitialState(defaultValue)
		}
	}
	hc := intent.Context[E]{
		Origin:     u.Origin,
		Submission: sub,
		Value:      live,
		Reset:      reset,
	}
	for _, h := range c.handlers {
		if !h.IsApplicable(*in) {
			continue
		}
		var err error
		next, err = h.UpdateState(next, *in, hc)
		if err != nil {
			return state, fmt.Errorf("failed to apply %s intent: %w", in.Type, err)
		}
	}
	return next, nil
}

// withErrorFields adds every field the error points at that the payload did
// not carry, unless it lives under a submitted field. Unchecked checkboxes
// and empty multi-selects leave no entry but may still be invalid.
func withErrorFields[E any](sub *types.Submission, formError *types.FormError[E]) *types.Submission {
	if sub == nil || formError == nil || len(formError.FieldError) == 0 {
		return sub
	}
	names := make([]string, 0, len(formError.FieldError))
	for name := range formError.FieldError {
		names = append(names, name)
	}
	sort.Strings(names)

	var missing []string
	for _, name := range names {
		if name == "" || slices.Contains(sub.Fields, name) {
			continue
		}
		if _, err := fieldpath.Parse(name); err != nil {
			continue
		}
		if underField(name, sub.Fields) {
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return sub
	}
	out := *sub
	out.Fields = append(slices.Clone(sub.Fields), missing...)
	return &out
}

func underField(name string, fields []string) bool {
	for _, field := range fields {
		if fieldpath.IsPrefix(name, field) {
			return true
		}
	}
	return false
}
