package patch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/formstate/fieldpath"
)

func sample() map[string]any {
	return map[string]any{
		"title": "Reading list",
		"items": []any{
			map[string]any{"url": "https://a.example"},
			map[string]any{"url": "https://b.example"},
		},
	}
}

func TestApply(t *testing.T) {
	t.Parallel()
	value := sample()
	next, err := Apply(value, []Operation{
		{Op: OperationReplace, Path: "/items/1/url", Value: "https://c.example"},
		{Op: OperationReplace, Path: "/owner/name", Value: "Ada"},
		{Op: OperationRemove, Path: "/missing"},
		{Op: OperationAdd, Path: "/items/-", Value: map[string]any{"url": "https://d.example"}},
	})
	require.NoError(t, err)

	want := map[string]any{
		"title": "Reading list",
		"owner": map[string]any{"name": "Ada"},
		"items": []any{
			map[string]any{"url": "https://a.example"},
			map[string]any{"url": "https://c.example"},
			map[string]any{"url": "https://d.example"},
		},
	}
	if diff := cmp.Diff(want, next); diff != "" {
		t.Fatalf("patched value mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, sample(), value, "input must not change")
}

func TestApplyFailingTest(t *testing.T) {
	t.Parallel()
	value := sample()
	got, err := Apply(value, []Operation{{Op: OperationTest, Path: "/title", Value: "other"}})
	assert.Error(t, err)
	assert.Equal(t, value, got)
}

func TestApplyNoOps(t *testing.T) {
	t.Parallel()
	value := sample()
	got, err := Apply(value, nil)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestFixOperation(t *testing.T) {
	t.Parallel()
	ops := FixOperation(sample(), []Operation{
		{Op: OperationReplace, Path: "/title", Value: "x"},
		{Op: OperationReplace, Path: "/note", Value: "y"},
		{Op: OperationRemove, Path: "/items/5"},
		{Op: OperationRemove, Path: "/items/0"},
	})
	assert.Equal(t, []Operation{
		{Op: OperationReplace, Path: "/title", Value: "x"},
		{Op: OperationAdd, Path: "/note", Value: "y"},
		{Op: OperationRemove, Path: "/items/0"},
	}, ops)
}

func TestPointerConversion(t *testing.T) {
	t.Parallel()
	path := fieldpath.MustParse("items[1].url")
	assert.Equal(t, "/items/1/url", Pointer(path))
	assert.Equal(t, "/a~1b/c~0d", Pointer(fieldpath.Path{fieldpath.Key("a/b"), fieldpath.Key("c~d")}))
	assert.Equal(t, "", Pointer(fieldpath.Path{}))

	got, err := ToPath(sample(), "/items/1/url")
	require.NoError(t, err)
	assert.True(t, path.Equal(got))

	got, err = ToPath(sample(), "/items/-")
	require.NoError(t, err)
	assert.Equal(t, "items[2]", fieldpath.Format(got))

	got, err = ToPath(map[string]any{"codes": map[string]any{"0": "x"}}, "/codes/0")
	require.NoError(t, err)
	assert.Equal(t, fieldpath.Key("0"), got[1])

	got, err = ToPath(map[string]any{}, "/tags/0")
	require.NoError(t, err)
	assert.Equal(t, "tags[0]", fieldpath.Format(got))

	_, err = ToPath(sample(), "items")
	assert.Error(t, err)
	_, err = ToPath(sample(), "/items/x")
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	t.Parallel()
	names, err := Names(sample(), []Operation{
		{Op: OperationReplace, Path: "/items/0/url", Value: "x"},
		{Op: OperationTest, Path: "/title", Value: "Reading list"},
		{Op: OperationMove, From: "/items/1", Path: "/items/0"},
		{Op: OperationReplace, Path: "/items/0/url", Value: "y"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"items[0].url", "items[1]", "items[0]"}, names)
}

func TestDiff(t *testing.T) {
	t.Parallel()
	from := sample()
	to := sample()
	to["title"] = "Later"
	to["items"].([]any)[1] = map[string]any{"url": "https://b.example", "note": "read"}
	to["owner"] = "Ada"
	delete(to, "missing")

	ops := Diff(from, to)
	assert.Equal(t, []Operation{
		{Op: OperationAdd, Path: "/items/1/note", Value: "read"},
		{Op: OperationAdd, Path: "/owner", Value: "Ada"},
		{Op: OperationReplace, Path: "/title", Value: "Later"},
	}, ops)

	applied, err := Apply(from, ops)
	require.NoError(t, err)
	if diff := cmp.Diff(to, applied); diff != "" {
		t.Fatalf("diff does not reproduce target (-want +got):\n%s", diff)
	}

	to["items"] = []any{"only"}
	delete(to, "title")
	ops = Diff(from, to)
	assert.Contains(t, ops, Operation{Op: OperationReplace, Path: "/items", Value: []any{"only"}})
	assert.Contains(t, ops, Operation{Op: OperationRemove, Path: "/title"})
	assert.Empty(t, Diff(from, sample()))
}

type bookmark struct {
	URL   string            `json:"url"`
	Tags  []string          `json:"tags,omitempty"`
	Meta  map[string]string `json:"meta"`
	Child *bookmark         `json:"child"`
	Skip  string            `json:"-"`
	Plain string
	inner string
}

func TestAllowedPaths(t *testing.T) {
	t.Parallel()
	paths := AllowedPaths[bookmark]()
	for _, p := range []string{"/url", "/tags", "/tags/-", "/meta", "/meta/*", "/child", "/Plain"} {
		assert.True(t, paths[p], p)
	}
	assert.False(t, paths["/Skip"])
	assert.False(t, paths["/inner"])
	assert.False(t, paths["/child/url"])
	assert.Empty(t, AllowedPaths[string]())
}

func TestValidatePatchOperations(t *testing.T) {
	t.Parallel()
	allowed := map[string]bool{"/title": true, "/items/-/url": true}
	require.NoError(t, ValidatePatchOperations([]Operation{
		{Op: OperationReplace, Path: "/title"},
		{Op: OperationReplace, Path: "/items/3/url"},
	}, allowed))

	err := ValidatePatchOperations([]Operation{{Op: OperationReplace, Path: "/owner"}}, allowed)
	assert.ErrorContains(t, err, "operation 0")

	err = ValidatePatchOperations([]Operation{{Op: OperationMove, From: "/owner", Path: "/title"}}, allowed)
	assert.Error(t, err)

	assert.NoError(t, ValidatePatchOperations([]Operation{{Op: OperationAdd, Path: "/anything"}}, nil))
}
