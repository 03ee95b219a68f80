package store

import (
	"context"
	"fmt"

	"github.com/tbxark/formstate/types"
)

// StateReadWriter loads and saves the form state of the form routed by ctx.
type StateReadWriter[E any] interface {
	Read(ctx context.Context) (types.FormState[E], error)
	Write(ctx context.Context, state types.FormState[E]) error
	Remove(ctx context.Context) error
}

type stateKeyContext struct{}

// WithStateKey sets the routing key for state storage in the context.
func WithStateKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, stateKeyContext{}, key)
}

func StateKeyFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(stateKeyContext{})
	if value == nil {
		return "", false
	}
	key, ok := value.(string)
	return key, ok && key != ""
}

// CacheStateReadWriter keeps form states in a Cache. Read falls back to the
// init function when nothing was written for the key yet.
type CacheStateReadWriter[E any] struct {
	store Store[types.FormState[E]]
	init  func(ctx context.Context) types.FormState[E]
}

func NewStateReadWriter[E any](core Cache[types.FormState[E]], namespace string, init func(ctx context.Context) types.FormState[E]) *CacheStateReadWriter[E] {
	return &CacheStateReadWriter[E]{
		store: New(core, namespace, StateKeyFromContext),
		init:  init,
	}
}

func NewMemoryStateReadWriter[E any](init func(ctx context.Context) types.FormState[E]) *CacheStateReadWriter[E] {
	return NewStateReadWriter(NewMemoryCache[types.FormState[E]](), "form", init)
}

func (s *CacheStateReadWriter[E]) Read(ctx context.Context) (types.FormState[E], error) {
	state, ok, err := s.store.Get(ctx)
	if err != nil {
		return state, fmt.Errorf("failed to read form state: %w", err)
	}
	if ok {
		return state, nil
	}
	if s.init != nil {
		return s.init(ctx), nil
	}
	return types.FormState[E]{
		DefaultValue:  map[string]any{},
		InitialValue:  map[string]any{},
		TouchedFields: []string{},
		Keys:          map[string][]string{},
	}, nil
}

func (s *CacheStateReadWriter[E]) Write(ctx context.Context, state types.FormState[E]) error {
	if err := s.store.Set(ctx, state); err != nil {
		return fmt.Errorf("failed to write form state: %w", err)
	}
	return nil
}

func (s *CacheStateReadWriter[E]) Remove(ctx context.Context) error {
	return s.store.Del(ctx)
}

// Forms returns the routing keys of every form with a written state.
func (s *CacheStateReadWriter[E]) Forms(ctx context.Context) ([]string, error) {
	return s.store.List(ctx)
}

var _ StateReadWriter[string] = (*CacheStateReadWriter[string])(nil)
