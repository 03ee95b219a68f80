// Package submission rebuilds a structured form value from a flat, ordered
// list of named entries as posted by a browser form.
package submission

import (
	"fmt"

	"github.com/tbxark/formstate/fieldpath"
	"github.com/tbxark/formstate/intent"
	"github.com/tbxark/formstate/types"
)

type options struct {
	intentName string
	skip       func(name string) bool
}

type Option func(*options)

// WithIntentName changes the reserved field carrying the serialized intent.
func WithIntentName(name string) Option {
	return func(o *options) {
		o.intentName = name
	}
}

// WithSkip excludes every entry for which skip returns true. Skipped names are
// neither routed into the value nor recorded as fields.
func WithSkip(skip func(name string) bool) Option {
	return func(o *options) {
		o.skip = skip
	}
}

func newOptions(opts []Option) options {
	o := options{intentName: intent.DefaultFieldName}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Parse builds a submission from entries in payload order.
//
// The first entry for a name sets the leaf, a second one turns it into a
// two element list and later ones are appended to that list. Field names are
// recorded once each, in first-seen order. A malformed name fails the whole
// parse.
func Parse(entries []fieldpath.Entry, opts ...Option) (*types.Submission, error) {
	o := newOptions(opts)
	sub := &types.Submission{
		Value:  map[string]any{},
		Fields: []string{},
	}
	counts := make(map[string]int, len(entries))
	var tree any = sub.Value

	for _, entry := range entries {
		if entry.Name == o.intentName {
			if sub.Intent == nil {
				sub.Intent = decodeIntent(entry.Value)
			}
			continue
		}
		if o.skip != nil && o.skip(entry.Name) {
			continue
		}
		path, err := fieldpath.Parse(entry.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse field %q: %w", entry.Name, err)
		}
		if len(path) == 0 {
			return nil, fmt.Errorf("failed to parse field: %w", &fieldpath.PathError{
				Name: entry.Name,
				Err:  fmt.Errorf("%w: empty field name", fieldpath.ErrInvalidPath),
			})
		}

		counts[entry.Name]++
		n := counts[entry.Name]
		if n == 1 {
			sub.Fields = append(sub.Fields, entry.Name)
		}
		tree, err = fieldpath.Update(tree, path, func(prev any, ok bool) any {
			return accumulate(prev, ok, n, entry.Value)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set field %q: %w", entry.Name, err)
		}
	}

	value, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("submission produced %T instead of an object", tree)
	}
	sub.Value = value
	return sub, nil
}

func accumulate(prev any, ok bool, n int, value any) any {
	switch {
	case n == 1 || !ok:
		return value
	case n == 2:
		return []any{prev, value}
	}
	if list, isList := prev.([]any); isList {
		return append(list, value)
	}
	return []any{prev, value}
}

func decodeIntent(value any) *types.Intent {
	token, ok := value.(string)
	if !ok || token == "" {
		return nil
	}
	in := intent.Deserialize(token)
	return &in
}
