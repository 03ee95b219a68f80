// Package recognize turns conversational input about a form into an intent.
package recognize

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/formstate/types"
)

// TypeSubmit marks a request to submit the form as is. It is not a form
// intent: the submission it produces carries no intent at all.
const TypeSubmit = "submit"

// ErrNotRecognized is returned when a recognizer has no opinion on the input.
var ErrNotRecognized = errors.New("intent not recognized")

type Request[E any] struct {
	State types.FormState[E]
	// Schema optionally describes the form value, e.g. as JSON schema.
	Schema   string
	Messages []*schema.Message
}

// Recognizer returns the intent expressed by the last message of req. A nil
// intent with a nil error means the input is chatter that changes nothing.
type Recognizer[E any] interface {
	Recognize(ctx context.Context, req *Request[E]) (*types.Intent, error)
}

func lastUserInput[E any](req *Request[E]) string {
	if req == nil {
		return ""
	}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if m := req.Messages[i]; m != nil && m.Role == schema.User {
			return m.Content
		}
	}
	return ""
}
