package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"bedrockbot/internal/domain"
	"bedrockbot/internal/invoker"
)

// fakeResolver implements domain.CredentialResolver.
type fakeResolver struct {
	creds domain.Credentials
	err   error
	calls int
}

func (f *fakeResolver) Resolve(ctx context.Context, stage string, model domain.ModelID) (domain.Credentials, error) {
	f.calls++
	if f.err != nil {
		return domain.Credentials{}, f.err
	}
	return f.creds, nil
}

func (f *fakeResolver) ResolveAll(ctx context.Context, stage string) (map[domain.ModelID]domain.Credentials, error) {
	return nil, errors.New("not used")
}

// fakeNotifier counts posts.
type fakeNotifier struct {
	texts []string
	files int
}

func (f *fakeNotifier) PostText(ctx context.Context, channelID, text string) error {
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeNotifier) PostFile(ctx context.Context, channelID string, content []byte, filename, title, comment string) error {
	f.files++
	return nil
}

// fakeInvoker records calls for one model.
type fakeInvoker struct {
	model   domain.ModelID
	err     error
	calls   int
	done    chan struct{}
	channel string
	text    string
}

func (f *fakeInvoker) Model() domain.ModelID { return f.model }

func (f *fakeInvoker) Invoke(ctx context.Context, channelID, inputText string, sink domain.Notifier) error {
	f.calls++
	f.channel = channelID
	f.text = inputText
	if f.done != nil {
		close(f.done)
	}
	return f.err
}

// stubBackend satisfies domain.ModelBackend for registry construction; the
// fake invokers registered on top never reach it.
type stubBackend struct{}

func (stubBackend) InvokeModel(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	return nil, errors.New("stub backend")
}

func (stubBackend) Converse(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	return nil, errors.New("stub backend")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type handlerFixture struct {
	handler  *Handler
	resolver *fakeResolver
	notifier *fakeNotifier
	invokers map[domain.ModelID]*fakeInvoker
	tokens   []string
}

func newFixture(t *testing.T, resolver *fakeResolver) *handlerFixture {
	t.Helper()
	fx := &handlerFixture{
		resolver: resolver,
		notifier: &fakeNotifier{},
		invokers: make(map[domain.ModelID]*fakeInvoker),
	}

	reg := invoker.NewRegistry(stubBackend{}, "arn:profile/opus", testLogger())
	for _, m := range domain.KnownModels() {
		fi := &fakeInvoker{model: m}
		fx.invokers[m] = fi
		reg.Register(fi)
	}

	fx.handler = NewHandler(HandlerConfig{
		Stage:    "dev",
		Resolver: resolver,
		Notifiers: func(token string) domain.Notifier {
			fx.tokens = append(fx.tokens, token)
			return fx.notifier
		},
		Registry: reg,
		Logger:   testLogger(),
	})
	return fx
}

func (fx *handlerFixture) totalInvokes() int {
	n := 0
	for _, fi := range fx.invokers {
		n += fi.calls
	}
	return n
}

func TestHandle_RoutesToExactlyOneInvoker(t *testing.T) {
	fx := newFixture(t, &fakeResolver{creds: domain.Credentials{BotToken: "xoxb-1"}})

	fx.handler.Handle(context.Background(), domain.DispatchPayload{
		Model:     domain.ModelClaudeSonnet,
		ChannelID: "C1",
		InputText: "Hello",
	})

	if fx.invokers[domain.ModelClaudeSonnet].calls != 1 {
		t.Errorf("sonnet invoker called %d times, want 1", fx.invokers[domain.ModelClaudeSonnet].calls)
	}
	if fx.totalInvokes() != 1 {
		t.Errorf("expected exactly one invocation total, got %d", fx.totalInvokes())
	}
	if len(fx.tokens) != 1 || fx.tokens[0] != "xoxb-1" {
		t.Errorf("chat client not bound to resolved token: %v", fx.tokens)
	}
}

func TestHandle_UnknownModel_DropsSilently(t *testing.T) {
	resolver := &fakeResolver{creds: domain.Credentials{BotToken: "xoxb-1"}}
	fx := newFixture(t, resolver)

	fx.handler.Handle(context.Background(), domain.DispatchPayload{
		Model:     domain.ModelID("gpt5"),
		ChannelID: "C1",
		InputText: "Hello",
	})

	if fx.totalInvokes() != 0 {
		t.Error("unknown model must not invoke any backend")
	}
	if resolver.calls != 0 {
		t.Error("unknown model must not resolve credentials")
	}
	if len(fx.notifier.texts) != 0 || fx.notifier.files != 0 {
		t.Error("unknown model must produce no notification")
	}
}

func TestHandle_MissingCredentials_NoInvocation(t *testing.T) {
	fx := newFixture(t, &fakeResolver{err: domain.ErrMissingCredentials})

	fx.handler.Handle(context.Background(), domain.DispatchPayload{
		Model:     domain.ModelClaudeOpus,
		ChannelID: "C1",
		InputText: "Hello",
	})

	if fx.totalInvokes() != 0 {
		t.Error("missing credentials must abort before any invocation")
	}
	if len(fx.tokens) != 0 {
		t.Error("no chat client may be built without a token")
	}
}

func TestHandle_MissingFields_StillReachesInvoker(t *testing.T) {
	// Field validation and user notification belong to the invoker; the
	// handler must not short-circuit a payload that has a channel to notify.
	fx := newFixture(t, &fakeResolver{creds: domain.Credentials{BotToken: "xoxb-1"}})

	fx.handler.Handle(context.Background(), domain.DispatchPayload{
		Model:     domain.ModelClaudeSonnet,
		ChannelID: "C1",
		InputText: "",
	})

	fi := fx.invokers[domain.ModelClaudeSonnet]
	if fi.calls != 1 {
		t.Fatalf("expected invoker to receive the payload, got %d calls", fi.calls)
	}
	if fi.channel != "C1" || fi.text != "" {
		t.Errorf("invoker received %q/%q", fi.channel, fi.text)
	}
}

func TestHandle_Resubmission_RunsTwice(t *testing.T) {
	fx := newFixture(t, &fakeResolver{creds: domain.Credentials{BotToken: "xoxb-1"}})
	payload := domain.DispatchPayload{Model: domain.ModelStableImageUltra, ChannelID: "C1", InputText: "fox"}

	fx.handler.Handle(context.Background(), payload)
	fx.handler.Handle(context.Background(), payload)

	if fx.invokers[domain.ModelStableImageUltra].calls != 2 {
		t.Errorf("expected 2 independent invocations, got %d", fx.invokers[domain.ModelStableImageUltra].calls)
	}
}

func TestServer_InvokeAccepts(t *testing.T) {
	resolver := &fakeResolver{creds: domain.Credentials{BotToken: "xoxb-1"}}
	fx := newFixture(t, resolver)
	done := make(chan struct{})
	fx.invokers[domain.ModelClaudeSonnet].done = done

	srv := NewServer(ServerConfig{Handler: fx.handler, Logger: testLogger()})

	req := httptest.NewRequest("POST", "/invoke",
		bytes.NewBufferString(`{"model":"claude_sonnet","channel_id":"C1","input_text":"Hello"}`))
	rr := httptest.NewRecorder()
	srv.handleInvoke(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not run after acceptance")
	}
	if fx.invokers[domain.ModelClaudeSonnet].text != "Hello" {
		t.Errorf("payload not forwarded: %q", fx.invokers[domain.ModelClaudeSonnet].text)
	}
}

func TestServer_InvokeRejectsBadJSON(t *testing.T) {
	fx := newFixture(t, &fakeResolver{creds: domain.Credentials{BotToken: "xoxb-1"}})
	srv := NewServer(ServerConfig{Handler: fx.handler, Logger: testLogger()})

	req := httptest.NewRequest("POST", "/invoke", bytes.NewBufferString("not json"))
	rr := httptest.NewRecorder()
	srv.handleInvoke(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if fx.totalInvokes() != 0 {
		t.Error("malformed payload must not be handled")
	}
}
