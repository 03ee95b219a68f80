package main

import (
	"context"
	"log/slog"

	"github.com/tbxark/formstate/store"
	"github.com/tbxark/formstate/types"
)

// listManager saves accepted lists under the form key. A published list
// cannot be replaced.
type listManager struct {
	lists store.Store[BookmarkList]
}

func (m *listManager) Submit(ctx context.Context, value map[string]any) (*types.FormError[string], error) {
	list, err := decodeList(value)
	if err != nil {
		return nil, err
	}
	prev, ok, err := m.lists.Get(ctx)
	if err != nil {
		return nil, err
	}
	if ok && prev.Public == "on" {
		msg := "This list is published and can no longer change"
		return &types.FormError[string]{FormError: &msg}, nil
	}
	if err := m.lists.Set(ctx, list); err != nil {
		return nil, err
	}
	slog.Info("Bookmark list saved", "title", list.Title, "bookmarks", len(list.Bookmarks))
	return nil, nil
}
