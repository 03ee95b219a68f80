package store

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// History keeps the conversation an assistant had about one form. System
// messages always survive trimming; of the rest only the last Limit are kept
// when Limit is positive.
type History struct {
	store Store[[]*schema.Message]
	Limit int
}

func NewHistory(core Cache[[]*schema.Message], limit int) *History {
	return &History{
		store: New(core, "form:history", StateKeyFromContext),
		Limit: limit,
	}
}

func (h *History) Load(ctx context.Context) ([]*schema.Message, error) {
	msgs, ok, err := h.store.Get(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return msgs, nil
}

// Append adds msgs, skipping nil ones and immediate repeats, and returns the
// saved history.
func (h *History) Append(ctx context.Context, msgs ...*schema.Message) ([]*schema.Message, error) {
	hist, err := h.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		if n := len(hist); n > 0 && hist[n-1].Role == msg.Role && hist[n-1].Content == msg.Content {
			continue
		}
		hist = append(hist, msg)
	}
	hist = trimHistory(hist, h.Limit)
	if err := h.store.Set(ctx, hist); err != nil {
		return nil, err
	}
	return hist, nil
}

func (h *History) Clear(ctx context.Context) error {
	return h.store.Del(ctx)
}

func trimHistory(hist []*schema.Message, limit int) []*schema.Message {
	if limit <= 0 {
		return hist
	}
	keep := 0
	for _, m := range hist {
		if m.Role != schema.System {
			keep++
		}
	}
	drop := keep - limit
	if drop <= 0 {
		return hist
	}
	out := make([]*schema.Message, 0, len(hist)-drop)
	for _, m := range hist {
		if m.Role != schema.System && drop > 0 {
			drop--
			continue
		}
		out = append(out, m)
	}
	return out
}
