package submission

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tbxark/formstate/fieldpath"
	"github.com/tbxark/formstate/intent"
	"github.com/tbxark/formstate/types"
)

func entries(pairs ...string) []fieldpath.Entry {
	out := make([]fieldpath.Entry, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, fieldpath.Entry{Name: pairs[i], Value: pairs[i+1]})
	}
	return out
}

func TestParseNested(t *testing.T) {
	t.Parallel()
	sub, err := Parse(entries(
		"title", "Reading list",
		"owner.name", "Ada",
		"items[0].url", "https://a.example",
		"items[1].url", "https://b.example",
		"items[0].tags[0]", "go",
	))
	require.NoError(t, err)

	want := map[string]any{
		"title": "Reading list",
		"owner": map[string]any{"name": "Ada"},
		"items": []any{
			map[string]any{"url": "https://a.example", "tags": []any{"go"}},
			map[string]any{"url": "https://b.example"},
		},
	}
	if diff := cmp.Diff(want, sub.Value); diff != "" {
		t.Fatalf("value mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"title", "owner.name", "items[0].url", "items[1].url", "items[0].tags[0]"}, sub.Fields)
	assert.Nil(t, sub.Intent)
}

func TestParseRepeatedNames(t *testing.T) {
	t.Parallel()
	sub, err := Parse(entries("tag", "a", "other", "x", "tag", "b", "tag", "c"))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, sub.Value["tag"])
	assert.Equal(t, []string{"tag", "other"}, sub.Fields)

	sub, err = Parse(entries("pair", "a", "pair", "b"))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, sub.Value["pair"])
}

func TestParseIntentField(t *testing.T) {
	t.Parallel()
	token, err := intent.Serialize(intent.Remove("items", 1))
	require.NoError(t, err)

	sub, err := Parse(entries("items[0]", "x", intent.DefaultFieldName, token))
	require.NoError(t, err)
	require.NotNil(t, sub.Intent)
	assert.Equal(t, intent.TypeRemove, sub.Intent.Type)
	assert.NotContains(t, sub.Fields, intent.DefaultFieldName)
	assert.NotContains(t, sub.Value, intent.DefaultFieldName)

	sub, err = Parse(entries("action", "reset", "__intent__", "validate"), WithIntentName("action"))
	require.NoError(t, err)
	assert.Equal(t, intent.TypeReset, sub.Intent.Type)
	assert.Contains(t, sub.Fields, "__intent__")
}

func TestParseEmptyIntentIsIgnored(t *testing.T) {
	t.Parallel()
	sub, err := Parse(entries(intent.DefaultFieldName, ""))
	require.NoError(t, err)
	assert.Nil(t, sub.Intent)
}

func TestParseSkip(t *testing.T) {
	t.Parallel()
	sub, err := Parse(entries("csrf", "t0k3n", "name", "Ada"), WithSkip(func(name string) bool {
		return name == "csrf"
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ada"}, sub.Value)
	assert.Equal(t, []string{"name"}, sub.Fields)
}

func TestParseRejectsMalformedNames(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"", "a..b", "a[x]", "__proto__.polluted", "a.constructor"} {
		_, err := Parse(entries(name, "v"))
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, fieldpath.ErrInvalidPath) || errors.Is(err, fieldpath.ErrReservedSegment), name)
	}
}

func TestParseTypeMismatch(t *testing.T) {
	t.Parallel()
	_, err := Parse(entries("a", "text", "a.b", "v"))
	require.Error(t, err)
	assert.ErrorIs(t, err, fieldpath.ErrTypeMismatch)
}

func TestParseFlattenRoundTrip(t *testing.T) {
	t.Parallel()
	value := map[string]any{
		"name":  "Ada",
		"owner": map[string]any{"email": "ada@example.com"},
		"items": []any{
			map[string]any{"url": "https://a.example"},
			map[string]any{"url": "https://b.example", "tags": []any{"x", "y"}},
		},
	}
	sub, err := Parse(fieldpath.Flatten(value, nil))
	require.NoError(t, err)
	if diff := cmp.Diff(value, sub.Value); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseQueryKeepsOrder(t *testing.T) {
	t.Parallel()
	sub, err := ParseQuery("b=2&a=1&b=3&note=hello+world%21&empty=")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "note", "empty"}, sub.Fields)
	assert.Equal(t, []any{"2", "3"}, sub.Value["b"])
	assert.Equal(t, "hello world!", sub.Value["note"])
	assert.Equal(t, "", sub.Value["empty"])

	_, err = ParseQuery("a=%zz")
	assert.Error(t, err)
}

func TestReadRequestURLEncoded(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("items[1]=y&items[0]=x&__intent__=reset"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	sub, err := ReadRequest(req)
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, sub.Value["items"])
	assert.Equal(t, []string{"items[1]", "items[0]"}, sub.Fields)
	require.NotNil(t, sub.Intent)
	assert.Equal(t, intent.TypeReset, sub.Intent.Type)
}

type repeatByte byte

func (b repeatByte) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(b)
	}
	return len(p), nil
}

func TestReadRequestURLEncodedTooLarge(t *testing.T) {
	t.Parallel()
	body := io.MultiReader(strings.NewReader("note="), io.LimitReader(repeatByte('a'), DefaultMaxMemory))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, err := ReadRequest(req)
	assert.ErrorIs(t, err, ErrBodyTooLarge)

	fits := io.MultiReader(strings.NewReader("note="), io.LimitReader(repeatByte('a'), DefaultMaxMemory-5))
	req = httptest.NewRequest(http.MethodPost, "/", fits)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	sub, err := ReadRequest(req)
	require.NoError(t, err)
	assert.Len(t, sub.Value["note"], DefaultMaxMemory-5)
}

func TestReadRequestQuery(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/?q=go&page=2", nil)
	sub, err := ReadRequest(req)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"q": "go", "page": "2"}, sub.Value)
}

func TestReadRequestMultipart(t *testing.T) {
	t.Parallel()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("title", "Notes"))
	fw, err := w.CreateFormFile("attachments[0]", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("tags", "a"))
	require.NoError(t, w.WriteField("tags", "b"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	sub, err := ReadRequest(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "attachments[0]", "tags"}, sub.Fields)
	assert.Equal(t, []any{"a", "b"}, sub.Value["tags"])

	files, ok := sub.Value["attachments"].([]any)
	require.True(t, ok)
	blob, ok := files[0].(types.Blob)
	require.True(t, ok)
	assert.Equal(t, "notes.txt", blob.Filename)
	assert.Equal(t, []byte("hello"), blob.Data)
}

func TestReadRequestUnsupportedType(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	_, err := ReadRequest(req)
	assert.Error(t, err)
}
