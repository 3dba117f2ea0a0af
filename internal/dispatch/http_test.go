package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"bedrockbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestDispatch_Accepted(t *testing.T) {
	var got domain.DispatchPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewHTTP(testLogger())
	payload := domain.DispatchPayload{
		Model:     domain.ModelClaudeSonnet,
		ChannelID: "C1",
		InputText: "Hello",
	}
	if err := d.Dispatch(context.Background(), srv.URL, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != payload {
		t.Errorf("worker received %+v, want %+v", got, payload)
	}
}

func TestDispatch_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewHTTP(testLogger())
	err := d.Dispatch(context.Background(), srv.URL, domain.DispatchPayload{Model: domain.ModelClaudeOpus, ChannelID: "C1", InputText: "x"})
	if err == nil {
		t.Fatal("expected error on non-202 status")
	}
}

func TestDispatch_OKIsNotAcceptance(t *testing.T) {
	// Only 202 counts: a synchronous 200 means the target is not an async worker.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewHTTP(testLogger())
	err := d.Dispatch(context.Background(), srv.URL, domain.DispatchPayload{Model: domain.ModelClaudeOpus, ChannelID: "C1", InputText: "x"})
	if err == nil {
		t.Fatal("expected error on 200 status")
	}
}

func TestDispatch_EmptyTargetFailsFast(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewHTTP(testLogger())
	err := d.Dispatch(context.Background(), "", domain.DispatchPayload{Model: domain.ModelClaudeSonnet, ChannelID: "C1", InputText: "x"})
	if !errors.Is(err, domain.ErrMisconfiguredTarget) {
		t.Fatalf("expected ErrMisconfiguredTarget, got %v", err)
	}
	if calls.Load() != 0 {
		t.Error("empty target must not reach the network")
	}
}

func TestDispatch_NoRetry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewHTTP(testLogger())
	if err := d.Dispatch(context.Background(), srv.URL, domain.DispatchPayload{Model: domain.ModelClaudeSonnet, ChannelID: "C1", InputText: "x"}); err == nil {
		t.Fatal("expected rejection")
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", calls.Load())
	}
}
