package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/formstate"
	"github.com/tbxark/formstate/flow"
	"github.com/tbxark/formstate/meta"
	"github.com/tbxark/formstate/recognize"
	"github.com/tbxark/formstate/store"
	"github.com/tbxark/formstate/submission"
	"github.com/tbxark/formstate/types"
	bolt "go.etcd.io/bbolt"
)

func main() {
	conf := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()
	config, err := loadConfig(*conf)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	err = startApp(context.Background(), config)
	if err != nil {
		log.Fatalf("start app: %v", err)
	}
}

type app struct {
	flow    *flow.Flow[string]
	states  *store.CacheStateReadWriter[string]
	history *store.History
	runner  *adk.Runner
}

func startApp(ctx context.Context, config *Config) error {
	slog.SetLogLoggerLevel(config.level())
	db, err := bolt.Open(config.DBPath, 0o600, nil)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	states, err := store.NewBoltCache[types.FormState[string]](db, "forms")
	if err != nil {
		return err
	}
	lists, err := store.NewBoltCache[BookmarkList](db, "lists")
	if err != nil {
		return err
	}
	messages, err := store.NewBoltCache[[]*schema.Message](db, "history")
	if err != nil {
		return err
	}

	control := formstate.New[string]()
	formStates := store.NewStateReadWriter[string](states, "bookmarks", func(ctx context.Context) types.FormState[string] {
		return control.InitialState(defaultValue())
	})
	f, err := flow.New(
		control,
		formStates,
		flow.ValidatorFunc[string](validate),
		flow.WithManager[string](&listManager{lists: store.New[BookmarkList](lists, "bookmarks", nil)}),
	)
	if err != nil {
		return err
	}

	recognizer, err := newRecognizer(ctx, config.Model)
	if err != nil {
		return err
	}
	formSchema, err := formSchema()
	if err != nil {
		return err
	}
	formAgent := flow.NewAgent(
		"BookmarkEditor",
		"An agent that edits and submits bookmark lists via conversation",
		formSchema,
		f,
		recognizer,
	)
	a := &app{
		flow:    f,
		states:  formStates,
		history: store.NewHistory(messages, config.History),
		runner:  adk.NewRunner(ctx, adk.RunnerConfig{Agent: formAgent}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /forms", a.listForms)
	mux.HandleFunc("GET /forms/{key}", a.getForm)
	mux.HandleFunc("GET /forms/{key}/fields/{name}", a.getField)
	mux.HandleFunc("POST /forms/{key}", a.submitForm)
	mux.HandleFunc("POST /forms/{key}/chat", a.chat)
	slog.Info("Listening", "addr", config.Listen)
	return http.ListenAndServe(config.Listen, mux)
}

// newRecognizer answers keywords locally and leaves the rest to the chat
// model when one is configured.
func newRecognizer(ctx context.Context, conf ModelConfig) (recognize.Recognizer[string], error) {
	local := recognize.NewLocalRecognizer[string]()
	if conf.APIKey == "" {
		slog.Warn("No model configured, chat understands keywords only")
		return local, nil
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:  conf.APIKey,
		Model:   conf.Model,
		BaseURL: conf.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	tool, err := recognize.NewToolBasedRecognizer[string](cm)
	if err != nil {
		return nil, err
	}
	return recognize.NewFailbackRecognizer[string](local, tool), nil
}

func (a *app) listForms(w http.ResponseWriter, r *http.Request) {
	keys, err := a.states.Forms(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string][]string{"forms": keys})
}

func formContext(r *http.Request) context.Context {
	return store.WithStateKey(r.Context(), r.PathValue("key"))
}

type formView struct {
	Form      meta.Form[string]   `json:"form"`
	Keys      map[string][]string `json:"keys"`
	Touched   []string            `json:"touched"`
	Submitted bool                `json:"submitted,omitempty"`
	Reply     string              `json:"reply,omitempty"`
}

func newFormView(state types.FormState[string]) formView {
	return formView{
		Form:    meta.FormOf(state),
		Keys:    state.Keys,
		Touched: state.TouchedFields,
	}
}

func (a *app) getForm(w http.ResponseWriter, r *http.Request) {
	state, err := a.flow.State(formContext(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, newFormView(state))
}

func (a *app) getField(w http.ResponseWriter, r *http.Request) {
	state, err := a.flow.State(formContext(r))
	if err != nil {
		writeError(w, err)
		return
	}
	field, err := meta.FieldOf(state, r.PathValue("name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, field)
}

func (a *app) submitForm(w http.ResponseWriter, r *http.Request) {
	sub, err := submission.ReadRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := a.flow.HandleSubmission(formContext(r), sub)
	if err != nil {
		writeError(w, err)
		return
	}
	view := newFormView(res.State)
	view.Submitted = res.Submitted
	writeJSON(w, view)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (a *app) chat(w http.ResponseWriter, r *http.Request) {
	ctx := formContext(r)
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req chatRequest
	if err := sonic.Unmarshal(body, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		http.Error(w, "a message is required", http.StatusBadRequest)
		return
	}
	history, err := a.history.Append(ctx, schema.UserMessage(strings.TrimSpace(req.Message)))
	if err != nil {
		writeError(w, err)
		return
	}

	var replies []string
	iter := a.runner.Run(ctx, history)
	for {
		event, ok := iter.Next()
		if !ok {
			break
		}
		if event.Err != nil {
			writeError(w, event.Err)
			return
		}
		msg, mErr := event.Output.MessageOutput.GetMessage()
		if mErr != nil {
			writeError(w, mErr)
			return
		}
		if _, apErr := a.history.Append(ctx, msg); apErr != nil {
			writeError(w, apErr)
			return
		}
		replies = append(replies, msg.Content)
	}

	state, err := a.flow.State(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	view := newFormView(state)
	view.Reply = strings.Join(replies, "\n")
	writeJSON(w, view)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, context.Canceled):
		status = http.StatusRequestTimeout
	case errors.Is(err, store.ErrKeyNotFound):
		status = http.StatusNotFound
	}
	slog.Error("Request failed", "error", err)
	http.Error(w, err.Error(), status)
}
