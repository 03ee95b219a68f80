package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/formstate/patch"
)

type recorder struct {
	changes []Change
}

func (r *recorder) listen(ctx context.Context, change Change) error {
	r.changes = append(r.changes, change)
	return nil
}

func run(t *testing.T, o *Observer, events ...Event) {
	t.Helper()
	ch := make(chan Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, o.Run(ctx, ch))
}

func TestObserverValueChanges(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	o := New(map[string]any{"title": ""}, rec.listen)

	run(t, o,
		FieldMounted{Name: "title"},
		FieldMounted{Name: "items[0].url", Value: "https://a.example"},
		ValueChanged{Ops: []patch.Operation{{Op: patch.OperationReplace, Path: "/title", Value: "Reading"}}},
		ValueChanged{Ops: []patch.Operation{{Op: patch.OperationReplace, Path: "/title", Value: "Reading"}}},
		FieldRemoved{Name: "title"},
	)

	require.Len(t, rec.changes, 3)
	assert.Equal(t, []string{"items[0].url"}, rec.changes[0].Names)
	assert.Equal(t, []string{"title"}, rec.changes[1].Names)
	assert.Equal(t, "Reading", rec.changes[1].Value["title"])
	assert.Equal(t, []string{"title"}, rec.changes[2].Names)
	assert.Equal(t, []string{"items[0].url"}, o.Mounted())
}

func TestObserverProgrammaticChangeIsSilent(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	o := New(nil, rec.listen)
	run(t, o, ValueChanged{
		Ops:          []patch.Operation{{Op: patch.OperationAdd, Path: "/note", Value: "x"}},
		Programmatic: true,
	})
	assert.Empty(t, rec.changes)
	assert.Equal(t, "x", o.Value()["note"])
}

func TestObserverDefersReset(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	o := New(map[string]any{"title": "default"}, rec.listen)

	run(t, o,
		ValueChanged{Ops: []patch.Operation{{Op: patch.OperationReplace, Path: "/title", Value: "edited"}}},
		FormReset{},
		ValueChanged{Ops: []patch.Operation{{Op: patch.OperationReplace, Path: "/title", Value: "clearing"}}},
	)

	require.Len(t, rec.changes, 3)
	assert.Equal(t, "clearing", rec.changes[1].Value["title"])
	last := rec.changes[2]
	assert.True(t, last.Reset)
	assert.Equal(t, map[string]any{"title": "default"}, last.Value)
	assert.Equal(t, map[string]any{"title": "default"}, o.Value())
}

func TestObserverHost(t *testing.T) {
	t.Parallel()
	var o *Observer
	var changes []Change
	o = New(map[string]any{"title": "default"}, func(ctx context.Context, change Change) error {
		changes = append(changes, change)
		if len(change.Names) == 1 && change.Names[0] == "title" && change.Value["title"] == "go" {
			require.NoError(t, o.Host().UpdateField("slug", "go-lang"))
			require.NoError(t, o.Host().Reset())
		}
		return nil
	})

	run(t, o, ValueChanged{Ops: []patch.Operation{{Op: patch.OperationReplace, Path: "/title", Value: "go"}}})

	require.Len(t, changes, 2)
	assert.True(t, changes[1].Reset)
	assert.Equal(t, map[string]any{"title": "default"}, o.Value())
}

func TestObserverRejectsDisallowedPaths(t *testing.T) {
	t.Parallel()
	o := New(nil, nil, WithAllowedPaths(map[string]bool{"/title": true}))
	ch := make(chan Event, 1)
	ch <- ValueChanged{Ops: []patch.Operation{{Op: patch.OperationAdd, Path: "/admin", Value: true}}}
	close(ch)
	err := o.Run(context.Background(), ch)
	assert.ErrorContains(t, err, "not in the allowed paths")
}

func TestObserverStopsOnListenerError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	o := New(nil, func(ctx context.Context, change Change) error { return boom })
	ch := make(chan Event, 1)
	ch <- FieldMounted{Name: "a", Value: "x"}
	err := o.Run(context.Background(), ch)
	assert.ErrorIs(t, err, boom)
}

func TestObserverStopsOnCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(nil, nil).Run(ctx, make(chan Event))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestObserverRejectsMalformedName(t *testing.T) {
	t.Parallel()
	ch := make(chan Event, 1)
	ch <- FieldMounted{Name: "a..b", Value: "x"}
	close(ch)
	assert.Error(t, New(nil, nil).Run(context.Background(), ch))
}
