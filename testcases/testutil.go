package testcases

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"testing"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/tbxark/formstate"
	"github.com/tbxark/formstate/fieldpath"
	"github.com/tbxark/formstate/flow"
	"github.com/tbxark/formstate/intent"
	"github.com/tbxark/formstate/store"
	"github.com/tbxark/formstate/types"
)

type flowOptions struct {
	boltPath string
	host     *RecordingHost
	manager  *Manager
}

type FlowOption func(*flowOptions)

// WithBoltStore keeps states in a bbolt file instead of memory.
func WithBoltStore(path string) FlowOption {
	return func(o *flowOptions) {
		o.boltPath = path
	}
}

func WithRecordingHost(host *RecordingHost) FlowOption {
	return func(o *flowOptions) {
		o.host = host
	}
}

func WithManager(manager *Manager) FlowOption {
	return func(o *flowOptions) {
		o.manager = manager
	}
}

// SequentialKeys returns a key generator producing k1, k2, ...
func SequentialKeys() func() string {
	n := 0
	return func() string {
		n++
		return "k" + strconv.Itoa(n)
	}
}

func NewTestControl() *formstate.Control[string] {
	return formstate.New[string](formstate.WithKeyGenerator[string](SequentialKeys()))
}

func NewTestFlow(t *testing.T, opts ...FlowOption) *flow.Flow[string] {
	t.Helper()
	o := &flowOptions{}
	for _, opt := range opts {
		opt(o)
	}

	control := NewTestControl()
	initState := func(ctx context.Context) types.FormState[string] {
		return control.InitialState(DefaultValue())
	}
	var states store.StateReadWriter[string]
	if o.boltPath != "" {
		cache, err := store.OpenBoltCache[types.FormState[string]](o.boltPath, "forms")
		if err != nil {
			t.Fatalf("failed to open bolt store: %v", err)
		}
		t.Cleanup(func() { _ = cache.Close() })
		states = store.NewStateReadWriter[string](cache, "bookmarks", initState)
	} else {
		states = store.NewMemoryStateReadWriter(initState)
	}

	var flowOpts []flow.Option[string]
	if o.host != nil {
		flowOpts = append(flowOpts, flow.WithHost[string](o.host))
	}
	if o.manager != nil {
		flowOpts = append(flowOpts, flow.WithManager[string](o.manager))
	}
	f, err := flow.New(control, states, Validator{}, flowOpts...)
	if err != nil {
		t.Fatalf("failed to create flow: %v", err)
	}
	return f
}

func TempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "forms.db")
}

func FormContext(key string) context.Context {
	return store.WithStateKey(context.Background(), key)
}

// RecordingHost records side effects instead of touching a real form.
type RecordingHost struct {
	Resets  int
	Updated map[string]any
}

func (h *RecordingHost) Reset() error {
	h.Resets++
	return nil
}

func (h *RecordingHost) UpdateField(name string, value any) error {
	if h.Updated == nil {
		h.Updated = map[string]any{}
	}
	h.Updated[name] = value
	return nil
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

func InitChatModel(t *testing.T) *openai.ChatModel {
	if os.Getenv("FORMSTATE_RUN_LIVE_TESTS") != "1" {
		t.Skip("set FORMSTATE_RUN_LIVE_TESTS=1 to run live LLM tests")
		return nil
	}
	conf := Config{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
		Model:   os.Getenv("OPENAI_MODEL"),
	}
	if conf.APIKey == "" {
		t.Skip("OPENAI_API_KEY is empty")
		return nil
	}
	chatModel, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:  conf.APIKey,
		Model:   conf.Model,
		BaseURL: conf.BaseURL,
	})
	if err != nil {
		t.Fatalf("failed to init chat model: %v", err)
		return nil
	}
	return chatModel
}

// ValidEntries is a complete, acceptable bookmark list payload in browser order.
func ValidEntries(title string) []fieldpath.Entry {
	return []fieldpath.Entry{
		{Name: "title", Value: title},
		{Name: "owner.name", Value: "Ann"},
		{Name: "owner.email", Value: "ann@example.com"},
		{Name: "bookmarks[0].url", Value: "https://go.dev"},
		{Name: "bookmarks[0].tags[0]", Value: "go"},
		{Name: "agree", Value: "on"},
	}
}

// WithIntent appends the serialized intent field a submit button would post.
func WithIntent(t *testing.T, entries []fieldpath.Entry, in types.Intent) []fieldpath.Entry {
	t.Helper()
	token, err := intent.Serialize(in)
	if err != nil {
		t.Fatalf("failed to serialize intent: %v", err)
	}
	return append(slices.Clone(entries), fieldpath.Entry{Name: intent.DefaultFieldName, Value: token})
}

