// Package flow runs submissions through validation and the form state
// machine, one form per state key.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tbxark/formstate"
	"github.com/tbxark/formstate/fieldpath"
	"github.com/tbxark/formstate/intent"
	"github.com/tbxark/formstate/meta"
	"github.com/tbxark/formstate/store"
	"github.com/tbxark/formstate/submission"
	"github.com/tbxark/formstate/types"
)

type Option[E any] func(*Flow[E])

// WithManager sets the receiver of final submissions.
func WithManager[E any](manager FormManager[E]) Option[E] {
	return func(f *Flow[E]) {
		f.manager = manager
	}
}

// WithHost sets the live form intent side effects act on.
func WithHost[E any](host intent.Host) Option[E] {
	return func(f *Flow[E]) {
		f.host = host
	}
}

func WithParseOptions[E any](opts ...submission.Option) Option[E] {
	return func(f *Flow[E]) {
		f.parseOpts = append(f.parseOpts, opts...)
	}
}

type run struct {
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
}

type Flow[E any] struct {
	control   *formstate.Control[E]
	states    store.StateReadWriter[E]
	validator Validator[E]
	manager   FormManager[E]
	host      intent.Host
	parseOpts []submission.Option

	mu       sync.Mutex
	inflight map[string]*run
	counter  uint64
}

func New[E any](control *formstate.Control[E], states store.StateReadWriter[E], validator Validator[E], opts ...Option[E]) (*Flow[E], error) {
	if control == nil {
		return nil, fmt.Errorf("form control is required")
	}
	if states == nil {
		return nil, fmt.Errorf("state store is required")
	}
	f := &Flow[E]{
		control:   control,
		states:    states,
		validator: validator,
		inflight:  map[string]*run{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

func (f *Flow[E]) Control() *formstate.Control[E] {
	return f.control
}

// State reads the state of the form routed by ctx.
func (f *Flow[E]) State(ctx context.Context) (types.FormState[E], error) {
	return f.states.Read(ctx)
}

// Handle parses entries and handles the resulting submission.
func (f *Flow[E]) Handle(ctx context.Context, entries []fieldpath.Entry) (*Result[E], error) {
	sub, err := submission.Parse(entries, f.parseOpts...)
	if err != nil {
		return nil, err
	}
	return f.HandleSubmission(ctx, sub)
}

// Dispatch applies in to the form without a live payload, as a button outside
// the form would.
func (f *Flow[E]) Dispatch(ctx context.Context, in types.Intent) (*Result[E], error) {
	return f.HandleSubmission(ctx, &types.Submission{
		Value:  map[string]any{},
		Fields: []string{},
		Intent: &in,
	})
}

// SubmitCurrent submits the latest value of the form as a plain submission
// of all its fields.
func (f *Flow[E]) SubmitCurrent(ctx context.Context) (*Result[E], error) {
	state, err := f.states.Read(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := submission.Parse(fieldpath.Flatten(meta.CurrentValue(state), nil), f.parseOpts...)
	if err != nil {
		return nil, err
	}
	return f.HandleSubmission(ctx, sub)
}

func (f *Flow[E]) HandleSubmission(ctx context.Context, sub *types.Submission) (*Result[E], error) {
	return f.handle(ctx, sub, f.host)
}

// handle commits submissions of one form in arrival order. A newer
// submission cancels the validation of the one before it; the older one still
// applies its intent but keeps the stored client error and is never a final
// submit.
func (f *Flow[E]) handle(ctx context.Context, sub *types.Submission, host intent.Host) (*Result[E], error) {
	key, _ := store.StateKeyFromContext(ctx)
	vctx, r, prev := f.begin(ctx, key)
	defer f.finish(key, r)

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	state, err := f.states.Read(ctx)
	if err != nil {
		return nil, err
	}
	in := f.control.Recognize(sub.Intent)
	slog.Debug("Handling submission", "key", key, "generation", r.generation, "fields", sub.Fields, "intent", in)

	value := intent.LiveValue(state, sub)
	if in != nil {
		value, err = f.control.UpdateValue(value, *in)
		if err != nil {
			return nil, fmt.Errorf("failed to update value: %w", err)
		}
	}

	var formError *types.FormError[E]
	if value != nil && f.validator != nil {
		formError, err = f.validator.Validate(vctx, value)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil && vctx.Err() == nil {
			return nil, fmt.Errorf("failed to validate form: %w", err)
		}
	}
	superseded := vctx.Err() != nil || !f.current(key, r.generation)
	if superseded {
		slog.Debug("Validation superseded", "key", key, "generation", r.generation)
		formError = nil
	}

	next, err := f.control.UpdateState(state, formstate.Update[E]{
		Origin:     formstate.OriginClient,
		Submission: sub,
		Error:      formError,
		Pending:    superseded,
	})
	if err != nil {
		return nil, err
	}
	result := &Result[E]{Submission: sub, Intent: in, Value: value, Superseded: superseded}

	if in != nil && host != nil && f.control.HasSideEffect(*in) {
		if err := f.control.ApplySideEffect(host, *in, next); err != nil {
			return nil, fmt.Errorf("failed to apply %s side effect: %w", in.Type, err)
		}
		result.SideEffect = true
		slog.Debug("Applied side effect", "key", key, "intent", in.Type)
	}

	if !superseded && f.manager != nil && f.control.IsFinalSubmit(sub, next) {
		serverError, err := f.manager.Submit(ctx, value)
		if err != nil {
			return nil, fmt.Errorf("failed to submit form: %w", err)
		}
		if serverError != nil {
			next, err = f.control.UpdateState(next, formstate.Update[E]{
				Origin:     formstate.OriginServer,
				Submission: sub,
				Error:      serverError,
			})
			if err != nil {
				return nil, err
			}
		}
		result.Submitted = serverError == nil
		slog.Debug("Form submitted", "key", key, "accepted", result.Submitted)
	}

	if err := f.states.Write(ctx, next); err != nil {
		return nil, err
	}
	result.State = next
	return result, nil
}

// begin queues a new submission for key behind the one it supersedes and
// cancels that one's validation. The returned channel closes once the
// previous submission has finished.
func (f *Flow[E]) begin(ctx context.Context, key string) (context.Context, *run, <-chan struct{}) {
	vctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter++
	var prev <-chan struct{}
	if p, ok := f.inflight[key]; ok {
		p.cancel()
		prev = p.done
	}
	r := &run{generation: f.counter, cancel: cancel, done: make(chan struct{})}
	f.inflight[key] = r
	return vctx, r, prev
}

func (f *Flow[E]) current(key string, generation uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.inflight[key]
	return ok && r.generation == generation
}

func (f *Flow[E]) finish(key string, r *run) {
	r.cancel()
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.inflight[key]; ok && cur == r {
		delete(f.inflight, key)
	}
	close(r.done)
}
