// Package observe follows a live form through explicit host events and
// reports every observable change of its value.
package observe

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/tbxark/formstate/fieldpath"
	"github.com/tbxark/formstate/patch"
)

type Event interface {
	event()
}

// FieldMounted announces an input. Value is its current value, nil when the
// input holds none.
type FieldMounted struct {
	Name  string
	Value any
}

type FieldRemoved struct {
	Name string
}

// ValueChanged carries an edit as RFC6902 operations against the form value.
// Programmatic marks edits pushed by an intent side effect; they update the
// value without being reported.
type ValueChanged struct {
	Ops          []patch.Operation
	Programmatic bool
}

// FormReset is sent when the host starts a native reset. Hosts may send it
// before the inputs are cleared, so the observer recomputes only after the
// events already queued behind it.
type FormReset struct{}

type recompute struct{}

func (FieldMounted) event() {}
func (FieldRemoved) event() {}
func (ValueChanged) event() {}
func (FormReset) event()    {}
func (recompute) event()    {}

// Change is one reported change of the observed form.
type Change struct {
	Value map[string]any
	// Names lists the fields affected, empty for a reset.
	Names []string
	Reset bool
}

type Listener func(ctx context.Context, change Change) error

type Option func(*Observer)

// WithAllowedPaths rejects value changes outside paths, given as JSON pointer
// patterns (see patch.AllowedPaths).
func WithAllowedPaths(paths map[string]bool) Option {
	return func(o *Observer) {
		o.allowed = paths
	}
}

// Observer keeps the live value of one form. It is driven by a single
// goroutine through Run.
type Observer struct {
	defaultValue map[string]any
	value        map[string]any
	mounted      []string
	allowed      map[string]bool
	listener     Listener
	queue        []Event
}

func New(defaultValue map[string]any, listener Listener, opts ...Option) *Observer {
	if defaultValue == nil {
		defaultValue = map[string]any{}
	}
	o := &Observer{
		defaultValue: defaultValue,
		value:        defaultValue,
		listener:     listener,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Value returns the current form value. It must not be modified.
func (o *Observer) Value() map[string]any {
	return o.value
}

// Mounted returns the names of the mounted inputs in mount order.
func (o *Observer) Mounted() []string {
	return slices.Clone(o.mounted)
}

// Run handles events until the channel is closed or ctx is done. A listener
// error stops it.
func (o *Observer) Run(ctx context.Context, events <-chan Event) error {
	for {
		if len(o.queue) > 0 {
			ev := o.queue[0]
			o.queue = o.queue[1:]
			if err := o.handle(ctx, ev, events); err != nil {
				return err
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := o.handle(ctx, ev, events); err != nil {
				return err
			}
		}
	}
}

func (o *Observer) handle(ctx context.Context, ev Event, events <-chan Event) error {
	switch e := ev.(type) {
	case FieldMounted:
		return o.mount(ctx, e)
	case FieldRemoved:
		o.mounted = slices.DeleteFunc(o.mounted, func(name string) bool { return name == e.Name })
		slog.Debug("Field removed", "name", e.Name)
		return o.notify(ctx, Change{Value: o.value, Names: []string{e.Name}})
	case ValueChanged:
		return o.change(ctx, e)
	case FormReset:
		o.deferRecompute(events)
		slog.Debug("Form reset scheduled", "queued", len(o.queue)-1)
		return nil
	case recompute:
		o.value = fieldpath.Clone(o.defaultValue).(map[string]any)
		slog.Debug("Form reset observed")
		return o.notify(ctx, Change{Value: o.value, Reset: true})
	default:
		return fmt.Errorf("unknown event %T", ev)
	}
}

// deferRecompute moves the events already buffered in the channel into the queue and
// puts the recompute marker behind them.
func (o *Observer) deferRecompute(events <-chan Event) {
	for n := len(events); n > 0; n-- {
		ev, ok := <-events
		if !ok {
			break
		}
		o.queue = append(o.queue, ev)
	}
	o.queue = append(o.queue, recompute{})
}

func (o *Observer) mount(ctx context.Context, e FieldMounted) error {
	path, err := fieldpath.Parse(e.Name)
	if err != nil {
		return fmt.Errorf("failed to mount field: %w", err)
	}
	if !slices.Contains(o.mounted, e.Name) {
		o.mounted = append(o.mounted, e.Name)
	}
	slog.Debug("Field mounted", "name", e.Name)
	if e.Value == nil || len(path) == 0 {
		return nil
	}
	next, err := fieldpath.Set(o.value, path, e.Value, fieldpath.WithClone())
	if err != nil {
		return fmt.Errorf("failed to mount field %s: %w", e.Name, err)
	}
	tree := next.(map[string]any)
	if fieldpath.Equal(tree, o.value) {
		return nil
	}
	o.value = tree
	return o.notify(ctx, Change{Value: o.value, Names: []string{e.Name}})
}

func (o *Observer) change(ctx context.Context, e ValueChanged) error {
	if err := patch.ValidatePatchOperations(e.Ops, o.allowed); err != nil {
		return fmt.Errorf("rejected value change: %w", err)
	}
	names, err := patch.Names(o.value, e.Ops)
	if err != nil {
		return fmt.Errorf("rejected value change: %w", err)
	}
	next, err := patch.Apply(o.value, e.Ops)
	if err != nil {
		return fmt.Errorf("failed to apply value change: %w", err)
	}
	if fieldpath.Equal(next, o.value) {
		return nil
	}
	o.value = next
	if e.Programmatic {
		slog.Debug("Programmatic value change", "names", names)
		return nil
	}
	slog.Debug("Value changed", "names", names)
	return o.notify(ctx, Change{Value: o.value, Names: names})
}

func (o *Observer) notify(ctx context.Context, change Change) error {
	if o.listener == nil {
		return nil
	}
	return o.listener(ctx, change)
}
