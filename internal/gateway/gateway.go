// Package gateway exposes the action router over HTTP. The ActionResult
// envelope is the API contract: handler failures still answer 200 with
// success:false, and only transport-level problems map to HTTP errors.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	werr "github.com/ggonzalez94/walletd/internal/errors"
	"github.com/ggonzalez94/walletd/internal/model"
	"github.com/ggonzalez94/walletd/internal/router"
	"github.com/ggonzalez94/walletd/internal/schema"
	"github.com/ggonzalez94/walletd/internal/version"
)

const (
	defaultRatePerSecond = 5
	defaultRateBurst     = 10

	shutdownGrace = 10 * time.Second
)

type Config struct {
	Router        *router.Router
	Logger        zerolog.Logger
	RatePerSecond float64
	RateBurst     int
}

type Server struct {
	router *router.Router
	log    zerolog.Logger

	ratePerSecond float64
	rateBurst     int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func New(cfg Config) *Server {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaultRatePerSecond
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = defaultRateBurst
	}
	return &Server{
		router:        cfg.Router,
		log:           cfg.Logger.With().Str("component", "gateway").Logger(),
		ratePerSecond: cfg.RatePerSecond,
		rateBurst:     cfg.RateBurst,
		limiters:      make(map[string]*rate.Limiter),
	}
}

// Handler builds the HTTP routing table wrapped in the access-log and
// request-id middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/actions", s.handleActions)
	mux.HandleFunc("/v1/schema", s.handleSchema)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.withAccessLog(mux)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("gateway listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return werr.Wrap(werr.CodeUnavailable, "gateway server", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return werr.Wrap(werr.CodeUnavailable, "gateway shutdown", err)
		}
		s.log.Info().Msg("gateway stopped")
		return nil
	}
}

// actionRequest is the wire form of one routed action. Intent and params
// come from the upstream classifier; both are treated as untrusted.
type actionRequest struct {
	SessionID   string         `json:"sessionId"`
	UserMessage string         `json:"userMessage,omitempty"`
	Intent      string         `json:"intent"`
	Params      map[string]any `json:"params,omitempty"`
	Confidence  float64        `json:"confidence"`
	RawText     string         `json:"rawText,omitempty"`
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "use POST"})
		return
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	if !s.limiter(req.SessionID).Allow() {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded, slow down"})
		return
	}

	intent := req.Intent
	if intent == "" {
		// A classifier failure still yields a well-formed action.
		intent = model.IntentUnknown
	}
	action := model.ParsedAction{
		Intent:     intent,
		Params:     req.Params,
		Confidence: req.Confidence,
		RawText:    req.RawText,
	}

	result := s.router.ExecuteAction(r.Context(), action, req.UserMessage, req.SessionID)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "use GET"})
		return
	}
	writeJSON(w, http.StatusOK, schema.Catalog())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "use GET"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// limiter returns the per-session token bucket, creating it on first use.
// Sessions without an id share the anonymous bucket.
func (s *Server) limiter(sessionID string) *rate.Limiter {
	if sessionID == "" {
		sessionID = "anonymous"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[sessionID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.ratePerSecond), s.rateBurst)
		s.limiters[sessionID] = l
	}
	return l
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
