package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/formstate"
	"github.com/tbxark/formstate/fieldpath"
	"github.com/tbxark/formstate/intent"
	"github.com/tbxark/formstate/observe"
	"github.com/tbxark/formstate/patch"
	"github.com/tbxark/formstate/recognize"
	"github.com/tbxark/formstate/store"
	"github.com/tbxark/formstate/types"
)

var defaults = map[string]any{"title": "", "items": []any{"a"}}

// requireTitle reports an empty title and a list of more than three items.
func requireTitle(ctx context.Context, value map[string]any) (*types.FormError[string], error) {
	errs := map[string]string{}
	if title, _ := value["title"].(string); title == "" {
		errs["title"] = "required"
	}
	if items, _ := value["items"].([]any); len(items) > 3 {
		errs["items"] = "too many"
	}
	if len(errs) == 0 {
		return nil, nil
	}
	return &types.FormError[string]{FieldError: errs}, nil
}

type manager struct {
	mu        sync.Mutex
	submitted []map[string]any
	reject    *types.FormError[string]
}

func (m *manager) Submit(ctx context.Context, value map[string]any) (*types.FormError[string], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reject != nil {
		return m.reject, nil
	}
	m.submitted = append(m.submitted, value)
	return nil, nil
}

type host struct {
	resets  int
	updates []string
}

func (h *host) Reset() error {
	h.resets++
	return nil
}

func (h *host) UpdateField(name string, value any) error {
	h.updates = append(h.updates, name)
	return nil
}

func newFlow(t *testing.T, validator Validator[string], opts ...Option[string]) *Flow[string] {
	t.Helper()
	control := formstate.New[string]()
	states := store.NewMemoryStateReadWriter(func(ctx context.Context) types.FormState[string] {
		return control.InitialState(defaults)
	})
	f, err := New(control, states, validator, opts...)
	require.NoError(t, err)
	return f
}

func formCtx(key string) context.Context {
	return store.WithStateKey(context.Background(), key)
}

func TestNewRequiresParts(t *testing.T) {
	t.Parallel()
	_, err := New[string](nil, store.NewMemoryStateReadWriter[string](nil), nil)
	assert.Error(t, err)
	_, err = New[string](formstate.New[string](), nil, nil)
	assert.Error(t, err)
}

func TestHandlePlainSubmit(t *testing.T) {
	t.Parallel()
	m := &manager{}
	f := newFlow(t, ValidatorFunc[string](requireTitle), WithManager[string](m))
	ctx := formCtx("f1")

	res, err := f.Handle(ctx, []fieldpath.Entry{{Name: "title", Value: ""}, {Name: "items[0]", Value: "a"}})
	require.NoError(t, err)
	assert.False(t, res.Submitted)
	assert.Equal(t, "required", res.State.ClientError.FieldError["title"])
	assert.Equal(t, []string{"title", "items[0]"}, res.State.TouchedFields)
	assert.Empty(t, m.submitted)

	res, err = f.Handle(ctx, []fieldpath.Entry{{Name: "title", Value: "Reading"}, {Name: "items[0]", Value: "a"}})
	require.NoError(t, err)
	assert.True(t, res.Submitted, spew.Sdump(res.State))
	require.Len(t, m.submitted, 1)
	assert.Equal(t, "Reading", m.submitted[0]["title"])

	stored, err := f.State(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored.Error())
}

func TestServerRejection(t *testing.T) {
	t.Parallel()
	m := &manager{reject: &types.FormError[string]{FieldError: map[string]string{"title": "taken"}}}
	f := newFlow(t, ValidatorFunc[string](requireTitle), WithManager[string](m))
	ctx := formCtx("f1")

	res, err := f.Handle(ctx, []fieldpath.Entry{{Name: "title", Value: "Reading"}})
	require.NoError(t, err)
	assert.False(t, res.Submitted)
	assert.Equal(t, "taken", res.State.Error().FieldError["title"])

	// The same value again keeps the server verdict; a change drops it.
	res, err = f.Handle(ctx, []fieldpath.Entry{{Name: "title", Value: "Reading"}, {Name: intent.DefaultFieldName, Value: "validate"}})
	require.NoError(t, err)
	assert.NotNil(t, res.State.ServerError)

	res, err = f.Handle(ctx, []fieldpath.Entry{{Name: "title", Value: "Other"}, {Name: intent.DefaultFieldName, Value: "validate"}})
	require.NoError(t, err)
	assert.Nil(t, res.State.ServerError)
}

func TestIntentIsNeverSubmitted(t *testing.T) {
	t.Parallel()
	m := &manager{}
	h := &host{}
	f := newFlow(t, ValidatorFunc[string](requireTitle), WithManager[string](m), WithHost[string](h))
	ctx := formCtx("f1")

	token, err := intent.Serialize(intent.Insert(intent.InsertPayload{Name: "items", DefaultValue: "b"}))
	require.NoError(t, err)
	res, err := f.Handle(ctx, []fieldpath.Entry{
		{Name: "title", Value: "Reading"},
		{Name: "items[0]", Value: "a"},
		{Name: intent.DefaultFieldName, Value: token},
	})
	require.NoError(t, err)
	assert.False(t, res.Submitted)
	assert.False(t, res.SideEffect)
	assert.Equal(t, []any{"a", "b"}, res.Value["items"])
	assert.Equal(t, []any{"a", "b"}, res.State.InitialValue["items"])
	assert.Len(t, res.State.Keys["items"], 2)
	assert.Empty(t, m.submitted)
}

func TestDispatchSideEffects(t *testing.T) {
	t.Parallel()
	h := &host{}
	f := newFlow(t, ValidatorFunc[string](requireTitle), WithHost[string](h))
	ctx := formCtx("f1")

	res, err := f.Dispatch(ctx, intent.Update(intent.UpdatePayload{Name: "title", Value: "Reading"}))
	require.NoError(t, err)
	assert.True(t, res.SideEffect)
	assert.Equal(t, []string{"title"}, h.updates)
	assert.Equal(t, "Reading", res.State.InitialValue["title"])
	assert.Nil(t, res.State.ClientError)

	res, err = f.Dispatch(ctx, intent.Reset())
	require.NoError(t, err)
	assert.True(t, res.SideEffect)
	assert.Equal(t, 1, h.resets)
	assert.Nil(t, res.Value)
	assert.Equal(t, defaults, res.State.InitialValue)

	res, err = f.Dispatch(ctx, intent.Remove("items", 0))
	require.NoError(t, err)
	assert.False(t, res.SideEffect)
	assert.Equal(t, []any{}, res.State.InitialValue["items"])
	assert.Equal(t, 1, h.resets)
}

func TestSubmitCurrent(t *testing.T) {
	t.Parallel()
	m := &manager{}
	f := newFlow(t, ValidatorFunc[string](requireTitle), WithManager[string](m))
	ctx := formCtx("f1")

	_, err := f.Dispatch(ctx, intent.Update(intent.UpdatePayload{Name: "title", Value: "Reading"}))
	require.NoError(t, err)
	res, err := f.SubmitCurrent(ctx)
	require.NoError(t, err)
	assert.True(t, res.Submitted)
	assert.Equal(t, map[string]any{"title": "Reading", "items": []any{"a"}}, m.submitted[0])
}

func TestStatesAreRoutedByKey(t *testing.T) {
	t.Parallel()
	f := newFlow(t, nil)
	_, err := f.Dispatch(formCtx("a"), intent.Update(intent.UpdatePayload{Name: "title", Value: "A"}))
	require.NoError(t, err)

	a, err := f.State(formCtx("a"))
	require.NoError(t, err)
	b, err := f.State(formCtx("b"))
	require.NoError(t, err)
	assert.Equal(t, "A", a.InitialValue["title"])
	assert.Equal(t, "", b.InitialValue["title"])
}

func TestNewerSubmissionSupersedesSlowValidation(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	validator := ValidatorFunc[string](func(ctx context.Context, value map[string]any) (*types.FormError[string], error) {
		if value["title"] == "slow" {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return requireTitle(ctx, value)
	})
	f := newFlow(t, validator)
	ctx := formCtx("f1")

	type outcome struct {
		res *Result[string]
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := f.Handle(ctx, []fieldpath.Entry{{Name: "title", Value: "slow"}})
		done <- outcome{res, err}
	}()
	<-started

	res, err := f.Handle(ctx, []fieldpath.Entry{{Name: "title", Value: "fast"}})
	require.NoError(t, err)
	assert.False(t, res.Superseded)
	assert.Equal(t, "fast", res.State.SubmittedValue["title"])

	select {
	case o := <-done:
		require.NoError(t, o.err)
		assert.True(t, o.res.Superseded)
		assert.Nil(t, o.res.State.ClientError)
		assert.Equal(t, "slow", o.res.State.SubmittedValue["title"])
	case <-time.After(5 * time.Second):
		t.Fatal("slow validation was not cancelled")
	}

	stored, err := f.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fast", stored.SubmittedValue["title"])
}

func TestSupersededIntentIsStillApplied(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	validator := ValidatorFunc[string](func(ctx context.Context, value map[string]any) (*types.FormError[string], error) {
		if items, _ := value["items"].([]any); len(items) == 2 && items[1] == "first" {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return requireTitle(ctx, value)
	})
	m := &manager{}
	f := newFlow(t, validator, WithManager[string](m))
	ctx := formCtx("f1")

	firstErr := make(chan error, 1)
	go func() {
		res, err := f.Dispatch(ctx, intent.Insert(intent.InsertPayload{Name: "items", DefaultValue: "first"}))
		if err == nil && !res.Superseded {
			err = errors.New("first insert was not superseded")
		}
		firstErr <- err
	}()
	<-started

	res, err := f.Dispatch(ctx, intent.Insert(intent.InsertPayload{Name: "items", DefaultValue: "second"}))
	require.NoError(t, err)
	require.NoError(t, <-firstErr)

	assert.Equal(t, []any{"a", "first", "second"}, res.State.InitialValue["items"])
	assert.Len(t, res.State.Keys["items"], 3)
	assert.Equal(t, map[string]string{"title": "required"}, res.State.ClientError.FieldError)
	assert.Empty(t, m.submitted)

	stored, err := f.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, res.State, stored)
}

func TestSubmitCurrentAfterEdits(t *testing.T) {
	t.Parallel()
	m := &manager{}
	f := newFlow(t, ValidatorFunc[string](requireTitle), WithManager[string](m))
	ctx := formCtx("f1")

	in := intent.Validate("title")
	_, err := f.HandleSubmission(ctx, &types.Submission{
		Value:  map[string]any{"title": "Reading", "items": []any{"a", "b"}},
		Fields: []string{"title", "items[0]", "items[1]"},
		Intent: &in,
	})
	require.NoError(t, err)

	res, err := f.SubmitCurrent(ctx)
	require.NoError(t, err)
	assert.True(t, res.Submitted, spew.Sdump(res.State))
	require.Len(t, m.submitted, 1)
	assert.Equal(t, map[string]any{"title": "Reading", "items": []any{"a", "b"}}, m.submitted[0])
}

func TestValidatorError(t *testing.T) {
	t.Parallel()
	f := newFlow(t, ValidatorFunc[string](func(ctx context.Context, value map[string]any) (*types.FormError[string], error) {
		return nil, errors.New("schema unavailable")
	}))
	_, err := f.Handle(formCtx("f1"), []fieldpath.Entry{{Name: "title", Value: "x"}})
	assert.ErrorContains(t, err, "schema unavailable")
}

func TestHandleRejectsMalformedEntries(t *testing.T) {
	t.Parallel()
	f := newFlow(t, nil)
	_, err := f.Handle(formCtx("f1"), []fieldpath.Entry{{Name: "a[", Value: "x"}})
	assert.ErrorIs(t, err, fieldpath.ErrInvalidPath)
}

func TestWatch(t *testing.T) {
	t.Parallel()
	f := newFlow(t, ValidatorFunc[string](requireTitle))
	ctx := formCtx("f1")

	_, err := f.Dispatch(ctx, intent.Update(intent.UpdatePayload{Name: "title", Value: "Draft"}))
	require.NoError(t, err)

	events := make(chan observe.Event, 3)
	events <- observe.ValueChanged{Ops: []patch.Operation{{Op: patch.OperationReplace, Path: "/title", Value: ""}}}
	events <- observe.FormReset{}
	events <- observe.ValueChanged{Ops: []patch.Operation{{Op: patch.OperationReplace, Path: "/title", Value: "x"}}}
	close(events)

	require.NoError(t, f.Watch(ctx, events))

	state, err := f.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaults, state.InitialValue)
	assert.Empty(t, state.TouchedFields)
}

func TestWatchTouchesEditedField(t *testing.T) {
	t.Parallel()
	f := newFlow(t, ValidatorFunc[string](requireTitle))
	ctx := formCtx("f1")

	events := make(chan observe.Event, 1)
	events <- observe.ValueChanged{Ops: []patch.Operation{{Op: patch.OperationReplace, Path: "/title", Value: ""}, {Op: patch.OperationAdd, Path: "/items/-", Value: "b"}}}
	close(events)
	require.NoError(t, f.Watch(ctx, events))

	state, err := f.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "items[1]"}, state.TouchedFields)
	assert.Equal(t, "required", state.ClientError.FieldError["title"])
}

type scripted struct {
	in  *types.Intent
	err error
}

func (s scripted) Recognize(ctx context.Context, req *recognize.Request[string]) (*types.Intent, error) {
	return s.in, s.err
}

func TestAgentReply(t *testing.T) {
	t.Parallel()
	m := &manager{}
	f := newFlow(t, ValidatorFunc[string](requireTitle), WithManager[string](m))
	ctx := formCtx("chat")
	msgs := []*schema.Message{schema.UserMessage("x")}

	update := intent.Update(intent.UpdatePayload{Name: "title", Value: "Reading"})
	reply, err := NewAgent("form", "", "", f, scripted{in: &update}).Reply(ctx, msgs)
	require.NoError(t, err)
	assert.Contains(t, reply, "Applied update. Changed: title.")
	assert.Contains(t, reply, `"title":"Reading"`)

	insert := intent.Insert(intent.InsertPayload{Name: "items", DefaultValue: "b"})
	reply, err = NewAgent("form", "", "", f, scripted{in: &insert}).Reply(ctx, msgs)
	require.NoError(t, err)
	assert.Contains(t, reply, "Applied insert. Changed: items.")

	reply, err = NewAgent("form", "", "", f, scripted{}).Reply(ctx, msgs)
	require.NoError(t, err)
	assert.Contains(t, reply, "Nothing to change.")

	reply, err = NewAgent("form", "", "", f, scripted{err: recognize.ErrNotRecognized}).Reply(ctx, msgs)
	require.NoError(t, err)
	assert.Contains(t, reply, "could not tell")

	bad := intent.Remove("title", -1)
	reply, err = NewAgent("form", "", "", f, scripted{in: &bad}).Reply(ctx, msgs)
	require.NoError(t, err)
	assert.Contains(t, reply, "not valid")

	reply, err = NewAgent("form", "", "", f, scripted{in: &types.Intent{Type: recognize.TypeSubmit}}).Reply(ctx, msgs)
	require.NoError(t, err)
	assert.Equal(t, "The form has been submitted.", reply)
	require.Len(t, m.submitted, 1)

	_, err = NewAgent("form", "", "", f, scripted{err: errors.New("offline")}).Reply(ctx, msgs)
	assert.ErrorContains(t, err, "offline")
}

func TestAgentRun(t *testing.T) {
	t.Parallel()
	f := newFlow(t, ValidatorFunc[string](requireTitle))
	a := NewAgent("bookmarks", "edits bookmarks", "", f, recognize.NewLocalRecognizer[string]())
	ctx := formCtx("chat")
	assert.Equal(t, "bookmarks", a.Name(ctx))
	assert.Equal(t, "edits bookmarks", a.Description(ctx))

	iter := a.Run(ctx, &adk.AgentInput{Messages: []adk.Message{schema.UserMessage("check")}})
	event, ok := iter.Next()
	require.True(t, ok)
	require.NoError(t, event.Err)
	msg, err := event.Output.MessageOutput.GetMessage()
	require.NoError(t, err)
	assert.Contains(t, msg.Content, "Applied validate.")
	_, ok = iter.Next()
	assert.False(t, ok)

	iter = a.Run(ctx, &adk.AgentInput{})
	event, ok = iter.Next()
	require.True(t, ok)
	assert.Error(t, event.Err)
}
