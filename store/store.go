package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrKeyNotFound is returned when the context carries no routing key.
var ErrKeyNotFound = errors.New("key not found")

// Store scopes a Cache to a namespace and resolves the entry key from the
// context. Entries live under "<namespace>:<routing key>", so several stores
// can share one backend.
type Store[S any] struct {
	core      Cache[S]
	namespace string
	keyFn     func(ctx context.Context) (string, bool)
}

func New[S any](core Cache[S], namespace string, keyFn func(ctx context.Context) (string, bool)) Store[S] {
	if keyFn == nil {
		keyFn = StateKeyFromContext
	}
	return Store[S]{
		core:      core,
		namespace: namespace,
		keyFn:     keyFn,
	}
}

func (s Store[S]) prefix() string {
	return s.namespace + ":"
}

func (s Store[S]) key(ctx context.Context) (string, error) {
	key, ok := s.keyFn(ctx)
	if !ok {
		return "", ErrKeyNotFound
	}
	return s.prefix() + key, nil
}

func (s Store[S]) Set(ctx context.Context, val S) error {
	key, err := s.key(ctx)
	if err != nil {
		return err
	}
	return s.core.Set(ctx, key, val)
}

func (s Store[S]) Get(ctx context.Context) (S, bool, error) {
	key, err := s.key(ctx)
	if err != nil {
		var zero S
		return zero, false, err
	}
	return s.core.Get(ctx, key)
}

func (s Store[S]) Del(ctx context.Context) error {
	key, err := s.key(ctx)
	if err != nil {
		return err
	}
	return s.core.Del(ctx, key)
}

func (s Store[S]) Exists(ctx context.Context) (bool, error) {
	key, err := s.key(ctx)
	if err != nil {
		return false, err
	}
	return s.core.Exists(ctx, key)
}

// List returns the routing keys that hold an entry in this namespace, sorted.
func (s Store[S]) List(ctx context.Context) ([]string, error) {
	keys, err := s.core.Keys(ctx, s.prefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.namespace, err)
	}
	for i, key := range keys {
		keys[i] = strings.TrimPrefix(key, s.prefix())
	}
	return keys, nil
}
