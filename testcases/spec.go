package testcases

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/tbxark/formstate/types"
)

type Bookmark struct {
	URL   string   `json:"url"`
	Title string   `json:"title,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

type Owner struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type BookmarkList struct {
	Title     string     `json:"title"`
	Owner     Owner      `json:"owner"`
	Bookmarks []Bookmark `json:"bookmarks"`
	Agree     string     `json:"agree,omitempty"`
}

// decodeList coerces a loosely typed form value into a BookmarkList.
func decodeList(value map[string]any) (BookmarkList, error) {
	var list BookmarkList
	data, err := sonic.Marshal(value)
	if err != nil {
		return list, err
	}
	if err := sonic.Unmarshal(data, &list); err != nil {
		return list, fmt.Errorf("value does not match the bookmark list: %w", err)
	}
	return list, nil
}

// DefaultValue is the value of a new bookmark list form.
func DefaultValue() map[string]any {
	return map[string]any{
		"title": "",
		"owner": map[string]any{"name": "", "email": ""},
		"bookmarks": []any{
			map[string]any{"url": "https://go.dev", "tags": []any{"go"}},
		},
	}
}

type Validator struct{}

func (Validator) Validate(ctx context.Context, value map[string]any) (*types.FormError[string], error) {
	list, err := decodeList(value)
	if err != nil {
		return nil, err
	}
	errs := map[string]string{}
	if strings.TrimSpace(list.Title) == "" {
		errs["title"] = "title is required"
	}
	if list.Owner.Email != "" && !strings.Contains(list.Owner.Email, "@") {
		errs["owner.email"] = "email is invalid"
	}
	if list.Agree != "on" {
		errs["agree"] = "terms must be accepted"
	}
	seen := map[string]bool{}
	for i, b := range list.Bookmarks {
		u, err := url.Parse(b.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs[fmt.Sprintf("bookmarks[%d].url", i)] = "url is invalid"
			continue
		}
		if seen[b.URL] {
			errs[fmt.Sprintf("bookmarks[%d].url", i)] = "duplicate bookmark"
		}
		seen[b.URL] = true
	}
	var formError *string
	if len(list.Bookmarks) == 0 {
		msg := "add at least one bookmark"
		formError = &msg
	}
	if len(errs) == 0 && formError == nil {
		return nil, nil
	}
	return &types.FormError[string]{FormError: formError, FieldError: errs}, nil
}

// Manager accepts submissions and rejects list titles already taken.
type Manager struct {
	mu    sync.Mutex
	Taken map[string]bool
	Saved []BookmarkList
}

func (m *Manager) Submit(ctx context.Context, value map[string]any) (*types.FormError[string], error) {
	list, err := decodeList(value)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Taken[list.Title] {
		return &types.FormError[string]{FieldError: map[string]string{"title": "title is already taken"}}, nil
	}
	m.Saved = append(m.Saved, list)
	return nil, nil
}
