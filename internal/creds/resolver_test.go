package creds

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"bedrockbot/internal/domain"
)

// fakeStore implements domain.ParameterSource from a fixed map.
type fakeStore struct {
	params map[string]string
	err    error
	calls  int
}

func (f *fakeStore) GetByPath(ctx context.Context, path string) (map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.params, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestResolve_TokenAndSecret(t *testing.T) {
	store := &fakeStore{params: map[string]string{
		"/bedrock-slackbot/dev/CLAUDE_SONNET/SLACK_BOT_TOKEN":          "xoxb-sonnet",
		"/bedrock-slackbot/dev/CLAUDE_SONNET/SLACK_BOT_SIGNING_SECRET": "sec-sonnet",
		"/bedrock-slackbot/dev/CLAUDE_OPUS/SLACK_BOT_TOKEN":            "xoxb-opus",
	}}
	r := NewResolver(store, "", testLogger())

	c, err := r.Resolve(context.Background(), "dev", domain.ModelClaudeSonnet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.BotToken != "xoxb-sonnet" {
		t.Errorf("expected sonnet token, got %q", c.BotToken)
	}
	if c.SigningSecret != "sec-sonnet" {
		t.Errorf("expected sonnet signing secret, got %q", c.SigningSecret)
	}
}

func TestResolve_MissingToken(t *testing.T) {
	store := &fakeStore{params: map[string]string{
		"/bedrock-slackbot/dev/CLAUDE_SONNET/SLACK_BOT_TOKEN": "xoxb-sonnet",
	}}
	r := NewResolver(store, "", testLogger())

	_, err := r.Resolve(context.Background(), "dev", domain.ModelStableImageUltra)
	if !errors.Is(err, domain.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestResolve_MissingSigningSecretTolerated(t *testing.T) {
	store := &fakeStore{params: map[string]string{
		"/bedrock-slackbot/prod/STABLE_IMAGE_ULTRA/SLACK_BOT_TOKEN": "xoxb-img",
	}}
	r := NewResolver(store, "", testLogger())

	c, err := r.Resolve(context.Background(), "prod", domain.ModelStableImageUltra)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.SigningSecret != "" {
		t.Errorf("expected empty signing secret, got %q", c.SigningSecret)
	}
}

func TestResolve_StoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("store down")}
	r := NewResolver(store, "", testLogger())

	_, err := r.Resolve(context.Background(), "dev", domain.ModelClaudeSonnet)
	if err == nil {
		t.Fatal("expected error when store fails")
	}
	if errors.Is(err, domain.ErrMissingCredentials) {
		t.Error("store failure must not be reported as missing credentials")
	}
}

func TestResolve_NoCaching(t *testing.T) {
	store := &fakeStore{params: map[string]string{
		"/bedrock-slackbot/dev/CLAUDE_OPUS/SLACK_BOT_TOKEN": "xoxb-opus",
	}}
	r := NewResolver(store, "", testLogger())

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), "dev", domain.ModelClaudeOpus); err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}
	if store.calls != 3 {
		t.Errorf("expected 3 store lookups, got %d", store.calls)
	}
}

func TestResolveAll_SkipsModelsWithoutToken(t *testing.T) {
	store := &fakeStore{params: map[string]string{
		"/bedrock-slackbot/dev/CLAUDE_SONNET/SLACK_BOT_TOKEN":     "xoxb-sonnet",
		"/bedrock-slackbot/dev/STABLE_IMAGE_ULTRA/SLACK_BOT_TOKEN": "xoxb-img",
	}}
	r := NewResolver(store, "", testLogger())

	all, err := r.ResolveAll(context.Background(), "dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 models, got %d", len(all))
	}
	if _, ok := all[domain.ModelClaudeOpus]; ok {
		t.Error("opus has no token and should be absent")
	}
	if all[domain.ModelStableImageUltra].BotToken != "xoxb-img" {
		t.Errorf("unexpected image token: %q", all[domain.ModelStableImageUltra].BotToken)
	}
}

func TestParameterName(t *testing.T) {
	r := NewResolver(&fakeStore{}, "/custom", testLogger())
	got := r.ParameterName("dev", domain.ModelClaudeSonnet, false)
	want := "/custom/dev/CLAUDE_SONNET/SLACK_BOT_TOKEN"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	got = r.ParameterName("prod", domain.ModelClaudeOpus, true)
	want = "/custom/prod/CLAUDE_OPUS/SLACK_BOT_SIGNING_SECRET"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
