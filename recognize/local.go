package recognize

import (
	"context"
	"strings"

	"github.com/tbxark/formstate/intent"
	"github.com/tbxark/formstate/types"
)

// LocalRecognizer matches the whole input against keyword lists. Anything
// else is left to the next recognizer.
type LocalRecognizer[E any] struct {
	ResetKeywords    []string
	ValidateKeywords []string
	SubmitKeywords   []string
}

func NewLocalRecognizer[E any]() *LocalRecognizer[E] {
	return &LocalRecognizer[E]{
		ResetKeywords:    []string{"reset", "clear", "start over", "重置", "清空"},
		ValidateKeywords: []string{"check", "validate", "检查", "校验"},
		SubmitKeywords:   []string{"submit", "confirm", "done", "提交", "确认", "完成"},
	}
}

func (p *LocalRecognizer[E]) Recognize(ctx context.Context, req *Request[E]) (*types.Intent, error) {
	normalized := strings.ToLower(strings.TrimSpace(lastUserInput(req)))
	if normalized == "" {
		return nil, nil
	}
	switch {
	case contains(p.ResetKeywords, normalized):
		in := intent.Reset()
		return &in, nil
	case contains(p.ValidateKeywords, normalized):
		in := intent.Validate("")
		return &in, nil
	case contains(p.SubmitKeywords, normalized):
		return &types.Intent{Type: TypeSubmit}, nil
	}
	return nil, ErrNotRecognized
}

func contains(keywords []string, input string) bool {
	for _, keyword := range keywords {
		if input == keyword {
			return true
		}
	}
	return false
}

// FailbackRecognizer asks each recognizer in turn and returns the first
// answer that is not an error.
type FailbackRecognizer[E any] struct {
	recognizers []Recognizer[E]
}

func NewFailbackRecognizer[E any](recognizers ...Recognizer[E]) *FailbackRecognizer[E] {
	return &FailbackRecognizer[E]{recognizers: recognizers}
}

func (p *FailbackRecognizer[E]) Recognize(ctx context.Context, req *Request[E]) (*types.Intent, error) {
	lastErr := ErrNotRecognized
	for _, r := range p.recognizers {
		in, err := r.Recognize(ctx, req)
		if err == nil {
			return in, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
