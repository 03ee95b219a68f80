package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

func formatTouchedSection(touched []string) string {
	if len(touched) == 0 {
		return ""
	}
	var buf strings.Builder
	buf.WriteString("# Touched fields:\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("#", "Field")
	for i, name := range touched {
		_ = table.Append(fmt.Sprint(i), name)
	}
	_ = table.Render()
	return buf.String()
}

func formatErrorSection[E any](title string, formError *FormError[E]) (string, error) {
	if formError == nil || (formError.FormError == nil && len(formError.FieldError) == 0) {
		return "", nil
	}
	var buf strings.Builder
	buf.WriteString(title)
	buf.WriteString("\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Field", "Error")
	if formError.FormError != nil {
		msg, err := sonic.MarshalString(formError.FormError)
		if err != nil {
			return "", err
		}
		_ = table.Append("(form)", msg)
	}
	names := make([]string, 0, len(formError.FieldError))
	for name := range formError.FieldError {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		msg, err := sonic.MarshalString(formError.FieldError[name])
		if err != nil {
			return "", err
		}
		_ = table.Append(name, msg)
	}
	_ = table.Render()
	return buf.String(), nil
}

// FormatState renders a state snapshot as markdown, for prompts and debug
// output. The value shown is the current one.
func FormatState[E any](state FormState[E]) (string, error) {
	valueJSON, err := sonic.MarshalString(state.CurrentValue())
	if err != nil {
		return "", err
	}
	sections := []string{
		fmt.Sprintf("# Form value JSON:\n```json\n%s\n```", valueJSON),
	}
	if s := formatTouchedSection(state.TouchedFields); s != "" {
		sections = append(sections, s)
	}
	s, err := formatErrorSection("# Server errors:", state.ServerError)
	if err != nil {
		return "", err
	}
	if s != "" {
		sections = append(sections, s)
	}
	s, err = formatErrorSection("# Client errors:", state.ClientError)
	if err != nil {
		return "", err
	}
	if s != "" {
		sections = append(sections, s)
	}
	return strings.Join(sections, "\n\n"), nil
}
