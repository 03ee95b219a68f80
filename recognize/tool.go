package recognize

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/formstate/intent"
	"github.com/tbxark/formstate/structured"
	"github.com/tbxark/formstate/types"
)

const (
	recognizeToolName        = "form_intent"
	recognizeToolDescription = "Turn the user's latest message into a single operation on the form."
)

// DefaultSystemPromptTemplate may contain a single "%s" placeholder for the
// tool name.
const DefaultSystemPromptTemplate = `
You help a user edit a form through conversation. The form value is a JSON object; fields are named with dots for object keys and [n] for list items, e.g. "items[0].url".

Read the current form state and the latest message, then choose exactly one operation:
- update: set the field "name" (empty for the whole form) to "value_json". Objects are merged into what is there.
- insert: add "value_json" as a new item of the list "name", at "index" or at the end.
- remove: delete the item at "index" from the list "name".
- reorder: move the item of the list "name" from "from" to "to".
- validate: the user wants to check the field "name", or every field when empty.
- reset: the user wants to discard all changes.
- submit: the user explicitly wants to send the form as it is.
- none: the message does not ask for any change.

Only use field names that exist in the form or that the schema allows. value_json must be valid JSON.

Call the '%s' tool with the result.
`

type recognizedIntent struct {
	Type      string `json:"type" jsonschema:"required,enum=update,enum=insert,enum=remove,enum=reorder,enum=validate,enum=reset,enum=submit,enum=none,description=The operation to perform"`
	Name      string `json:"name,omitempty" jsonschema:"description=Field or list name, e.g. items[0].url"`
	Index     *int   `json:"index,omitempty" jsonschema:"description=List index for insert, remove and update"`
	From      *int   `json:"from,omitempty" jsonschema:"description=Source index for reorder"`
	To        *int   `json:"to,omitempty" jsonschema:"description=Target index for reorder"`
	ValueJSON string `json:"value_json,omitempty" jsonschema:"description=JSON encoded value for update and insert"`
}

type PromptBuilder[E any] func(systemPrompt string) structured.PromptBuilder[*Request[E]]

type options[E any] struct {
	systemPromptTemplate string
	promptBuilder        PromptBuilder[E]
}

type Option[E any] func(*options[E])

func WithSystemPromptTemplate[E any](template string) Option[E] {
	return func(o *options[E]) {
		o.systemPromptTemplate = template
	}
}

func WithPromptBuilder[E any](builder PromptBuilder[E]) Option[E] {
	return func(o *options[E]) {
		o.promptBuilder = builder
	}
}

func defaultPromptBuilder[E any](systemPrompt string) structured.PromptBuilder[*Request[E]] {
	return func(ctx context.Context, req *Request[E]) ([]*schema.Message, error) {
		state, err := types.FormatState(req.State)
		if err != nil {
			return nil, fmt.Errorf("format form state failed: %w", err)
		}
		var sb strings.Builder
		if req.Schema != "" {
			sb.WriteString("# Form schema:\n```json\n")
			sb.WriteString(req.Schema)
			sb.WriteString("\n```\n\n")
		}
		sb.WriteString(state)
		sb.WriteString("\n\n# Latest message:\n")
		sb.WriteString(lastUserInput(req))

		messages := []*schema.Message{schema.SystemMessage(systemPrompt)}
		for _, m := range req.Messages {
			if m != nil && m.Role != schema.System {
				messages = append(messages, m)
			}
		}
		return append(messages, schema.UserMessage(sb.String())), nil
	}
}

// ToolBasedRecognizer asks a chat model to pick the operation through a
// forced tool call.
type ToolBasedRecognizer[E any] struct {
	chain *structured.Chain[*Request[E], recognizedIntent]
}

func NewToolBasedRecognizer[E any](chatModel model.ToolCallingChatModel, opts ...Option[E]) (*ToolBasedRecognizer[E], error) {
	o := options[E]{
		systemPromptTemplate: DefaultSystemPromptTemplate,
		promptBuilder:        defaultPromptBuilder[E],
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	chain, err := structured.NewChain[*Request[E], recognizedIntent](
		chatModel,
		o.promptBuilder(fmt.Sprintf(o.systemPromptTemplate, recognizeToolName)),
		recognizeToolName,
		recognizeToolDescription,
	)
	if err != nil {
		return nil, err
	}
	return &ToolBasedRecognizer[E]{chain: chain}, nil
}

func (p *ToolBasedRecognizer[E]) Recognize(ctx context.Context, req *Request[E]) (*types.Intent, error) {
	result, err := p.chain.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	if result == nil || result.Type == "" {
		return nil, fmt.Errorf("empty intent returned by %s", recognizeToolName)
	}
	return result.intent()
}

func (r recognizedIntent) value() (any, error) {
	if r.ValueJSON == "" {
		return nil, nil
	}
	var v any
	if err := sonic.UnmarshalString(r.ValueJSON, &v); err != nil {
		return nil, fmt.Errorf("invalid value_json %q: %w", r.ValueJSON, err)
	}
	return v, nil
}

func (r recognizedIntent) intent() (*types.Intent, error) {
	var in types.Intent
	switch r.Type {
	case "none":
		return nil, nil
	case TypeSubmit:
		in = types.Intent{Type: TypeSubmit}
	case intent.TypeReset:
		in = intent.Reset()
	case intent.TypeValidate:
		in = intent.Validate(r.Name)
	case intent.TypeUpdate:
		v, err := r.value()
		if err != nil {
			return nil, err
		}
		in = intent.Update(intent.UpdatePayload{Name: r.Name, Index: r.Index, Value: v})
	case intent.TypeInsert:
		v, err := r.value()
		if err != nil {
			return nil, err
		}
		in = intent.Insert(intent.InsertPayload{Name: r.Name, Index: r.Index, DefaultValue: v})
	case intent.TypeRemove:
		if r.Index == nil {
			return nil, fmt.Errorf("remove of %q needs an index", r.Name)
		}
		in = intent.Remove(r.Name, *r.Index)
	case intent.TypeReorder:
		if r.From == nil || r.To == nil {
			return nil, fmt.Errorf("reorder of %q needs from and to", r.Name)
		}
		in = intent.Reorder(r.Name, *r.From, *r.To)
	default:
		return nil, fmt.Errorf("unknown intent type %q", r.Type)
	}
	return &in, nil
}
