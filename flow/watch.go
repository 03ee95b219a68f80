package flow

import (
	"context"
	"fmt"

	"github.com/tbxark/formstate/fieldpath"
	"github.com/tbxark/formstate/intent"
	"github.com/tbxark/formstate/meta"
	"github.com/tbxark/formstate/observe"
	"github.com/tbxark/formstate/submission"
	"github.com/tbxark/formstate/types"
)

// Watch follows a live form through host events until events is closed. Every
// edited field is validated as it changes; a native reset of the host form
// resets the stored state. Side effects of intents handled meanwhile target
// the watched form.
func (f *Flow[E]) Watch(ctx context.Context, events <-chan observe.Event, opts ...observe.Option) error {
	state, err := f.states.Read(ctx)
	if err != nil {
		return err
	}
	var o *observe.Observer
	o = observe.New(meta.CurrentValue(state), func(ctx context.Context, change observe.Change) error {
		return f.observed(ctx, o.Host(), change)
	}, opts...)
	return o.Run(ctx, events)
}

func (f *Flow[E]) observed(ctx context.Context, host intent.Host, change observe.Change) error {
	if change.Reset {
		in := intent.Reset()
		_, err := f.handle(ctx, &types.Submission{Value: map[string]any{}, Fields: []string{}, Intent: &in}, nil)
		return err
	}
	sub, err := submission.Parse(fieldpath.Flatten(change.Value, nil), f.parseOpts...)
	if err != nil {
		return fmt.Errorf("failed to read live form: %w", err)
	}
	for _, name := range change.Names {
		in := intent.Validate(name)
		live := *sub
		live.Intent = &in
		if _, err := f.handle(ctx, &live, host); err != nil {
			return err
		}
	}
	return nil
}
