// Package server exposes the JSON API and the server-rendered browser UI.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/qhoangfmsc/30days-english/internal/ai"
	"github.com/qhoangfmsc/30days-english/internal/catalog"
	"github.com/qhoangfmsc/30days-english/internal/challenge"
	"github.com/qhoangfmsc/30days-english/internal/events"
	"github.com/qhoangfmsc/30days-english/internal/generator"
	"github.com/qhoangfmsc/30days-english/internal/session"
	"github.com/qhoangfmsc/30days-english/internal/share"
)

// maxBodyBytes bounds JSON and form bodies.
const maxBodyBytes = 1 << 20

// Generator produces lessons, schedules and grammar challenges.
type Generator interface {
	GenerateLesson(ctx context.Context) (challenge.Lesson, error)
	GenerateCustomLesson(ctx context.Context, req challenge.LessonRequest) (challenge.Lesson, error)
	GenerateSchedule(ctx context.Context) (challenge.Schedule, error)
	GenerateGrammarChallenge(ctx context.Context) (challenge.GrammarChallenge, error)
}

// Checker is a dependency reported by /readyz.
type Checker interface {
	Name() string
	HealthCheck(ctx context.Context) error
}

// Server serves the HTTP surface.
type Server struct {
	gen      Generator
	sessions *session.Manager
	catalog  *catalog.Catalog
	events   events.EventLogger
	gateway  *share.Gateway
	webhooks *share.WebhookAllowlist
	checkers []Checker
	now      func() time.Time
	logger   *slog.Logger

	cronStart time.Time
	pages     *renderer

	// base parents background generations; Close cancels it.
	base     context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
	done     chan struct{}
	stop     sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithEvents sets the analytics sink.
func WithEvents(l events.EventLogger) Option {
	return func(s *Server) { s.events = l }
}

// WithGateway sets the chat gateway used by share, notification and cron routes.
func WithGateway(g *share.Gateway) Option {
	return func(s *Server) { s.gateway = g }
}

// WithWebhookAllowlist sets the hosts accepted for caller-supplied Discord webhooks.
func WithWebhookAllowlist(a *share.WebhookAllowlist) Option {
	return func(s *Server) { s.webhooks = a }
}

// WithCheckers adds dependencies to the readiness report.
func WithCheckers(c ...Checker) Option {
	return func(s *Server) { s.checkers = append(s.checkers, c...) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithCronStart sets the first day counted by the working-days report.
// Its location is used for "today".
func WithCronStart(start time.Time) Option {
	return func(s *Server) { s.cronStart = start }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server.
func New(gen Generator, sessions *session.Manager, cat *catalog.Catalog, opts ...Option) (*Server, error) {
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if cat == nil {
		return nil, errors.New("catalog is required")
	}

	pages, err := newRenderer()
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		gen:       gen,
		sessions:  sessions,
		catalog:   cat,
		events:    events.NopLogger{},
		gateway:   share.NewGateway(),
		webhooks:  share.NewWebhookAllowlist(),
		now:       time.Now,
		logger:    slog.Default(),
		cronStart: time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC),
		pages:     pages,
		done:      make(chan struct{}),
	}
	s.base, s.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/translation-challenge/create", s.handleCreateLesson)
	mux.HandleFunc("POST /api/translation-challenge/create-15days", s.handleCreateSchedule)
	mux.HandleFunc("POST /api/translation-challenge/create-custom", s.handleCreateCustom)
	mux.HandleFunc("POST /api/translation-challenge/export", s.handleExport)
	mux.HandleFunc("POST /api/grammar-find-correct/create", s.handleCreateGrammar)
	mux.HandleFunc("POST /api/share/discord", s.handleShare)
	mux.HandleFunc("POST /api/share/preview", s.handleSharePreview)
	mux.HandleFunc("POST /api/notification/send", s.handleNotification)
	mux.HandleFunc("GET /api/cron", s.handleCron)
	mux.HandleFunc("POST /api/cron", s.handleCron)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/{screen}", s.handleScreen)
	mux.HandleFunc("GET /ui/{screen}/ws", s.handleWatch)
	mux.HandleFunc("POST /ui/{screen}/generate", s.handleGenerate)
	mux.HandleFunc("POST /ui/{screen}/reveal/{key}", s.handleReveal)
	mux.HandleFunc("POST /ui/grammar/answer", s.handleAnswer)
	mux.HandleFunc("GET /ui/schedule/export", s.handleScheduleExport)
	mux.HandleFunc("POST /ui/schedule/share/{day}", s.handleScheduleShare)
	mux.HandleFunc("GET /ui/notification", s.handleNotificationPage)
	mux.HandleFunc("POST /ui/notification/send", s.handleNotificationSend)

	return Chain(RequestID, Logger(s.logger), Recovery(s.logger))(mux)
}

// Close ends open websocket streams, cancels background generations and
// waits for them to settle.
func (s *Server) Close() {
	s.stop.Do(func() {
		close(s.done)
		s.cancel()
	})
	s.inflight.Wait()
}

// Wait blocks until background generations finish.
func (s *Server) Wait() {
	s.inflight.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.checkers))
	for _, c := range s.checkers {
		if err := c.HealthCheck(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[c.Name()] = err.Error()
			continue
		}
		checks[c.Name()] = "ok"
	}

	label := "ready"
	if status != http.StatusOK {
		label = "unavailable"
	}
	writeJSON(w, status, map[string]any{"status": label, "checks": checks})
}

// record stores the outcome of a generation for analytics.
func (s *Server) record(ctx context.Context, sessionID, eventType string, elapsed time.Duration, err error) {
	if err != nil {
		slog.Error("generation failed", "event", eventType, "session_id", sessionID, "error", err)
		events.Log(ctx, s.events, events.Event{
			SessionID: sessionID,
			EventType: events.GenerationFailed,
			Data:      map[string]any{"task": eventType, "error": err.Error()},
		})
		return
	}
	events.Log(ctx, s.events, events.Event{
		SessionID: sessionID,
		EventType: eventType,
		Data:      map[string]any{"duration_ms": elapsed.Milliseconds()},
	})
}

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiResponse{Error: msg})
}

// statusFor maps a generation or share error to an HTTP status.
func statusFor(err error) int {
	var (
		verr *challenge.ValidationError
		qerr *generator.QuotaError
		bad  *badRequestError
		werr *share.WebhookError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &bad), errors.Is(err, share.ErrNoTarget):
		return http.StatusBadRequest
	case errors.As(err, &qerr):
		return http.StatusTooManyRequests
	case errors.As(err, &werr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// badRequestError marks malformed client input.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return &badRequestError{msg: "invalid request body: " + err.Error()}
	}
	return nil
}

// apiContext tags provider calls made on behalf of a JSON API client.
func apiContext(r *http.Request) context.Context {
	return ai.WithCaller(r.Context(), "api", clientIP(r))
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
