package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/eino-contrib/jsonschema"
	"github.com/tbxark/formstate/types"
)

type Bookmark struct {
	URL   string   `json:"url" jsonschema:"description=Absolute http or https address"`
	Title string   `json:"title,omitempty" jsonschema:"description=Display title"`
	Tags  []string `json:"tags,omitempty" jsonschema:"description=Free form tags"`
}

type BookmarkList struct {
	Title     string     `json:"title" jsonschema:"description=Name of the list"`
	Public    string     `json:"public,omitempty" jsonschema:"enum=on,description=Checkbox; 'on' publishes the list"`
	Bookmarks []Bookmark `json:"bookmarks" jsonschema:"description=Bookmarks in display order"`
}

func formSchema() (string, error) {
	schema := jsonschema.Reflect(&BookmarkList{})
	schema.Title = "Bookmark list"
	schema.Description = "A named, ordered list of bookmarks."
	schemaBytes, err := sonic.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON schema: %w", err)
	}
	return string(schemaBytes), nil
}

func defaultValue() map[string]any {
	return map[string]any{
		"title":     "",
		"bookmarks": []any{map[string]any{"url": "", "tags": []any{}}},
	}
}

func decodeList(value map[string]any) (BookmarkList, error) {
	var list BookmarkList
	data, err := sonic.Marshal(value)
	if err != nil {
		return list, err
	}
	err = sonic.Unmarshal(data, &list)
	return list, err
}

func validate(ctx context.Context, value map[string]any) (*types.FormError[string], error) {
	list, err := decodeList(value)
	if err != nil {
		return nil, err
	}
	errs := map[string]string{}
	if strings.TrimSpace(list.Title) == "" {
		errs["title"] = "Title is required"
	}
	for i, b := range list.Bookmarks {
		u, err := url.Parse(b.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs[fmt.Sprintf("bookmarks[%d].url", i)] = "Enter an http or https address"
		}
	}
	formError := &types.FormError[string]{FieldError: errs}
	if len(list.Bookmarks) == 0 {
		msg := "Add at least one bookmark"
		formError.FormError = &msg
	}
	if formError.FormError == nil && len(errs) == 0 {
		return nil, nil
	}
	return formError, nil
}
