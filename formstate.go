// Package formstate turns flat form submissions into a structured value tree
// and applies intents to the form state built around it.
package formstate

import (
	"github.com/tbxark/formstate/intent"
	"github.com/tbxark/formstate/types"
)

type Origin = intent.Origin

const (
	OriginClient = intent.OriginClient
	OriginServer = intent.OriginServer
)

type options[E any] struct {
	keys     intent.KeyGenerator
	handlers []intent.Handler[E]
}

type Option[E any] func(*options[E])

// WithKeyGenerator replaces the random list key generator.
func WithKeyGenerator[E any](gen intent.KeyGenerator) Option[E] {
	return func(o *options[E]) {
		o.keys = gen
	}
}

// WithHandlers registers extra intent handlers after the built-in ones.
func WithHandlers[E any](handlers ...intent.Handler[E]) Option[E] {
	return func(o *options[E]) {
		o.handlers = append(o.handlers, handlers...)
	}
}

// Control composes the intent handlers into the form state machine. It holds
// no form state of its own and is safe for concurrent use.
type Control[E any] struct {
	keys     intent.KeyGenerator
	handlers []intent.Handler[E]
}

func New[E any](opts ...Option[E]) *Control[E] {
	o := options[E]{keys: intent.NewKey}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.keys == nil {
		o.keys = intent.NewKey
	}
	handlers := intent.DefaultHandlers[E](o.keys)
	handlers = append(handlers, o.handlers...)
	return &Control[E]{
		keys:     o.keys,
		handlers: handlers,
	}
}

// Handlers returns the handlers in dispatch order.
func (c *Control[E]) Handlers() []intent.Handler[E] {
	return c.handlers
}

// SerializeIntent encodes an intent for a hidden submission field.
func (c *Control[E]) SerializeIntent(in types.Intent) (string, error) {
	return intent.Serialize(in)
}

func (c *Control[E]) DeserializeIntent(token string) types.Intent {
	return intent.Deserialize(token)
}

// ParseIntent decodes token and returns nil unless a handler claims it.
func (c *Control[E]) ParseIntent(token string) *types.Intent {
	if token == "" {
		return nil
	}
	in := intent.Deserialize(token)
	return c.Recognize(&in)
}

// Recognize returns in when at least one handler claims it, nil otherwise.
func (c *Control[E]) Recognize(in *types.Intent) *types.Intent {
	if in == nil {
		return nil
	}
	for _, h := range c.handlers {
		if h.IsApplicable(*in) {
			return in
		}
	}
	return nil
}

// UpdateValue runs the value transforms of every handler claiming in. A nil
// result means the form is to be treated as reset.
func (c *Control[E]) UpdateValue(value map[string]any, in types.Intent) (map[string]any, error) {
	for _, h := range c.handlers {
		updater, ok := h.(intent.ValueUpdater)
		if !ok || !h.IsApplicable(in) {
			continue
		}
		next, err := updater.UpdateValue(value, in)
		if err != nil {
			return value, err
		}
		if next == nil {
			return nil, nil
		}
		value = next
	}
	return value, nil
}

func (c *Control[E]) HasSideEffect(in types.Intent) bool {
	for _, h := range c.handlers {
		if _, ok := h.(intent.SideEffecter[E]); ok && h.IsApplicable(in) {
			return true
		}
	}
	return false
}

// ApplySideEffect runs the side effect of every handler claiming in, once each.
func (c *Control[E]) ApplySideEffect(host intent.Host, in types.Intent, state types.FormState[E]) error {
	for _, h := range c.handlers {
		effecter, ok := h.(intent.SideEffecter[E])
		if !ok || !h.IsApplicable(in) {
			continue
		}
		if err := effecter.ApplySideEffect(host, in, state); err != nil {
			return err
		}
	}
	return nil
}

// IsFinalSubmit reports whether sub is a real submit that may reach the
// caller's submit handler: it carries no recognized intent and state holds
// no error.
func (c *Control[E]) IsFinalSubmit(sub *types.Submission, state types.FormState[E]) bool {
	if sub == nil || c.Recognize(sub.Intent) != nil {
		return false
	}
	return !hasError(state.Error())
}

func hasError[E any](formError *types.FormError[E]) bool {
	return formError != nil && (formError.FormError != nil || len(formError.FieldError) > 0)
}
