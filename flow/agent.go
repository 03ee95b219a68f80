package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/formstate/meta"
	"github.com/tbxark/formstate/patch"
	"github.com/tbxark/formstate/recognize"
	"github.com/tbxark/formstate/types"
)

var _ adk.Agent = (*Agent[any])(nil)

// Agent lets a user edit a form by chatting: each message is turned into an
// intent by the recognizer and handled by the flow.
type Agent[E any] struct {
	name        string
	description string
	schema      string
	flow        *Flow[E]
	recognizer  recognize.Recognizer[E]
}

// NewAgent creates an agent. formSchema describes the form value to the
// recognizer and may be empty.
func NewAgent[E any](name, description, formSchema string, flow *Flow[E], recognizer recognize.Recognizer[E]) *Agent[E] {
	return &Agent[E]{
		name:        name,
		description: description,
		schema:      formSchema,
		flow:        flow,
		recognizer:  recognizer,
	}
}

func (a *Agent[E]) Name(ctx context.Context) string {
	return a.name
}

func (a *Agent[E]) Description(ctx context.Context) string {
	return a.description
}

func (a *Agent[E]) Run(ctx context.Context, input *adk.AgentInput, options ...adk.AgentRunOption) *adk.AsyncIterator[*adk.AgentEvent] {
	iter, gen := adk.NewAsyncIteratorPair[*adk.AgentEvent]()
	go func() {
		defer func() {
			e := recover()
			if e != nil {
				gen.Send(&adk.AgentEvent{
					Err: fmt.Errorf("recover from panic: %v", e),
				})
			}
			gen.Close()
		}()
		if input == nil || len(input.Messages) == 0 {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("no messages in input"),
			})
			return
		}
		reply, err := a.Reply(ctx, input.Messages)
		if err != nil {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("form agent failed: %w", err),
			})
			return
		}
		gen.Send(&adk.AgentEvent{
			AgentName: a.name,
			Output: &adk.AgentOutput{
				MessageOutput: &adk.MessageVariant{
					IsStreaming: false,
					Message:     schema.AssistantMessage(reply, nil),
					Role:        schema.Assistant,
				},
			},
		})
	}()
	return iter
}

// Reply handles the last message of messages and describes the outcome.
func (a *Agent[E]) Reply(ctx context.Context, messages []*schema.Message) (string, error) {
	state, err := a.flow.State(ctx)
	if err != nil {
		return "", err
	}
	in, err := a.recognizer.Recognize(ctx, &recognize.Request[E]{
		State:    state,
		Schema:   a.schema,
		Messages: messages,
	})
	if errors.Is(err, recognize.ErrNotRecognized) {
		return describe("I could not tell what to change.", state)
	}
	if err != nil {
		return "", fmt.Errorf("failed to recognize intent: %w", err)
	}
	slog.Debug("Recognized intent", "intent", in)

	var result *Result[E]
	switch {
	case in == nil:
		return describe("Nothing to change.", state)
	case in.Type == recognize.TypeSubmit:
		result, err = a.flow.SubmitCurrent(ctx)
	default:
		if a.flow.Control().Recognize(in) == nil {
			return describe(fmt.Sprintf("The %s request is not valid for this form.", in.Type), state)
		}
		result, err = a.flow.Dispatch(ctx, *in)
	}
	if err != nil {
		return "", err
	}
	switch {
	case result.Submitted:
		return "The form has been submitted.", nil
	case result.Intent == nil && result.State.Error() != nil:
		return describe("The form was not submitted, please fix these problems first.", result.State)
	case result.Intent == nil:
		return describe("The form was not submitted.", result.State)
	}
	headline := fmt.Sprintf("Applied %s.", result.Intent.Type)
	changed, err := changedFields(state, result.State)
	if err != nil {
		return "", err
	}
	if len(changed) > 0 {
		headline += " Changed: " + strings.Join(changed, ", ") + "."
	}
	return describe(headline, result.State)
}

// changedFields names the fields whose value differs between two states.
func changedFields[E any](prev, next types.FormState[E]) ([]string, error) {
	before := meta.CurrentValue(prev)
	return patch.Names(before, patch.Diff(before, meta.CurrentValue(next)))
}

func describe[E any](headline string, state types.FormState[E]) (string, error) {
	summary, err := types.FormatState(state)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{headline, summary}, "\n\n"), nil
}
