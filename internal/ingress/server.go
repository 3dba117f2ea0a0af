package ingress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"bedrockbot/internal/domain"
	"bedrockbot/internal/metrics"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

const maxEventSize = 1 << 20 // 1MB

// Server exposes one Slack Events API endpoint per model. Each endpoint
// verifies the request against that model's signing secret, answers the URL
// verification challenge, and routes app mentions through the Router.
type Server struct {
	host             string
	port             int
	stage            string
	verifySignatures bool
	router           *Router
	resolver         domain.CredentialResolver
	notifiers        domain.NotifierFactory
	logger           *slog.Logger
	server           *http.Server
}

// ServerConfig wires the ingress server's collaborators.
type ServerConfig struct {
	Host             string
	Port             int
	Stage            string
	VerifySignatures bool
	Router           *Router
	Resolver         domain.CredentialResolver
	Notifiers        domain.NotifierFactory
	Logger           *slog.Logger
}

// NewServer creates the ingress server.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		host:             cfg.Host,
		port:             cfg.Port,
		stage:            cfg.Stage,
		verifySignatures: cfg.VerifySignatures,
		router:           cfg.Router,
		resolver:         cfg.Resolver,
		notifiers:        cfg.Notifiers,
		logger:           cfg.Logger,
	}
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+EventsPathPrefix+"{model}", s.handleEvents)
	mux.HandleFunc("GET /metrics", metrics.Collector.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("ingress server starting", "addr", addr, "stage", s.stage)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("ingress server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("ingress server: %w", err)
	}
}

// Stop closes the server immediately.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	metrics.EventsTotal.Inc()

	model, err := s.router.ModelForEndpoint(r.URL.Path)
	if err != nil {
		s.logger.Error("event on unknown endpoint", "path", r.URL.Path)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventSize))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Credentials are fetched per request: no stale tokens, and each model's
	// endpoint authenticates with its own signing secret.
	creds, err := s.resolver.Resolve(r.Context(), s.stage, model)
	if err != nil {
		// Pre-client failure: nobody can be notified, only the log records it.
		s.logger.Error("credential resolution failed", "model", model, "err", err)
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	if s.verifySignatures {
		if creds.SigningSecret == "" {
			s.logger.Error("no signing secret stored for model", "model", model)
			http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		verifier, err := slack.NewSecretsVerifier(r.Header, creds.SigningSecret)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		verifier.Write(body)
		if err := verifier.Ensure(); err != nil {
			s.logger.Warn("event signature rejected", "model", model)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(challenge.Challenge))
		return

	case slackevents.CallbackEvent:
		if mention, ok := event.InnerEvent.Data.(*slackevents.AppMentionEvent); ok {
			s.logger.Info("mention received", "model", model, "channel", mention.Channel, "user", mention.User)

			// Route before acking: dispatch is a quick acceptance check, and
			// the transport still gets its response well inside its deadline.
			s.router.Route(r.Context(), domain.InboundEvent{
				Endpoint:  r.URL.Path,
				ChannelID: mention.Channel,
				Text:      mention.Text,
			}, s.notifiers(creds.BotToken))
		}
	}

	// The transport always gets a prompt 200; anything else makes the
	// platform retry and the pipeline has no deduplication.
	w.WriteHeader(http.StatusOK)
}
