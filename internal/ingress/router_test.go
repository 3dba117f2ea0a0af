package ingress

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"bedrockbot/internal/dispatch"
	"bedrockbot/internal/domain"
)

// fakeDispatcher implements domain.Dispatcher.
type fakeDispatcher struct {
	err      error
	calls    int
	payloads []domain.DispatchPayload
	targets  []string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, target string, payload domain.DispatchPayload) error {
	f.calls++
	f.targets = append(f.targets, target)
	f.payloads = append(f.payloads, payload)
	return f.err
}

// fakeNotifier records posted texts.
type fakeNotifier struct {
	texts    []string
	channels []string
}

func (f *fakeNotifier) PostText(ctx context.Context, channelID, text string) error {
	f.channels = append(f.channels, channelID)
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeNotifier) PostFile(ctx context.Context, channelID string, content []byte, filename, title, comment string) error {
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStripMention(t *testing.T) {
	cases := []struct{ in, want string }{
		{"<@U12345> hello there", "hello there"},
		{"hello <@U12345> there", "hello  there"},
		{"no mention at all", "no mention at all"},
		{"<@U12345>", ""},
		{"  <@U12345>   draw a fox  ", "draw a fox"},
	}
	for _, c := range cases {
		if got := StripMention(c.in); got != c.want {
			t.Errorf("StripMention(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestModelForEndpoint(t *testing.T) {
	r := NewRouter("http://worker/invoke", &fakeDispatcher{}, testLogger())

	model, err := r.ModelForEndpoint("/slack/events/claude_sonnet")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model != domain.ModelClaudeSonnet {
		t.Errorf("expected claude_sonnet, got %s", model)
	}

	_, err = r.ModelForEndpoint("/slack/events/gpt5")
	if !errors.Is(err, domain.ErrUnknownEndpoint) {
		t.Fatalf("expected ErrUnknownEndpoint, got %v", err)
	}
}

func TestRoute_DispatchesNormalizedPayload(t *testing.T) {
	d := &fakeDispatcher{}
	r := NewRouter("http://worker/invoke", d, testLogger())

	err := r.Route(context.Background(), domain.InboundEvent{
		Endpoint:  "/slack/events/claude_opus",
		ChannelID: "C1",
		Text:      "<@UBOT> summarize this",
	}, &fakeNotifier{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.calls != 1 {
		t.Fatalf("expected 1 dispatch, got %d", d.calls)
	}
	got := d.payloads[0]
	if got.Model != domain.ModelClaudeOpus || got.ChannelID != "C1" || got.InputText != "summarize this" {
		t.Errorf("unexpected payload: %+v", got)
	}
	if d.targets[0] != "http://worker/invoke" {
		t.Errorf("unexpected target: %s", d.targets[0])
	}
}

func TestRoute_UnknownEndpoint_NoDispatch(t *testing.T) {
	d := &fakeDispatcher{}
	r := NewRouter("http://worker/invoke", d, testLogger())

	err := r.Route(context.Background(), domain.InboundEvent{
		Endpoint:  "/slack/events/unknown",
		ChannelID: "C1",
		Text:      "hello",
	}, &fakeNotifier{})
	if !errors.Is(err, domain.ErrUnknownEndpoint) {
		t.Fatalf("expected ErrUnknownEndpoint, got %v", err)
	}
	if d.calls != 0 {
		t.Error("unknown endpoint must not dispatch")
	}
}

func TestRoute_RejectedDispatch_NotifiesChannel(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("worker unreachable")}
	sink := &fakeNotifier{}
	r := NewRouter("http://worker/invoke", d, testLogger())

	err := r.Route(context.Background(), domain.InboundEvent{
		Endpoint:  "/slack/events/claude_sonnet",
		ChannelID: "C1",
		Text:      "hello",
	}, sink)
	if err == nil {
		t.Fatal("expected dispatch error to be reported")
	}

	if len(sink.texts) != 1 || !strings.Contains(sink.texts[0], "Failed to invoke worker function!") {
		t.Fatalf("expected one failure notification, got %v", sink.texts)
	}
	if sink.channels[0] != "C1" {
		t.Errorf("failure posted to wrong channel: %s", sink.channels[0])
	}
}

func TestRoute_UnconfiguredTarget_FailsFastAndNotifies(t *testing.T) {
	// Real dispatcher, empty target: must fail before any network interaction.
	sink := &fakeNotifier{}
	r := NewRouter("", dispatch.NewHTTP(testLogger()), testLogger())

	err := r.Route(context.Background(), domain.InboundEvent{
		Endpoint:  "/slack/events/claude_sonnet",
		ChannelID: "C1",
		Text:      "hello",
	}, sink)
	if !errors.Is(err, domain.ErrMisconfiguredTarget) {
		t.Fatalf("expected ErrMisconfiguredTarget, got %v", err)
	}
	if len(sink.texts) != 1 {
		t.Fatalf("expected one failure notification, got %d", len(sink.texts))
	}
}

func TestRoute_NilSink_DoesNotPanic(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("rejected")}
	r := NewRouter("http://worker/invoke", d, testLogger())

	err := r.Route(context.Background(), domain.InboundEvent{
		Endpoint:  "/slack/events/claude_sonnet",
		ChannelID: "C1",
		Text:      "hello",
	}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}
