package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qhoangfmsc/30days-english/internal/catalog"
	"github.com/qhoangfmsc/30days-english/internal/challenge"
	"github.com/qhoangfmsc/30days-english/internal/events"
	"github.com/qhoangfmsc/30days-english/internal/export"
	"github.com/qhoangfmsc/30days-english/internal/generator"
	"github.com/qhoangfmsc/30days-english/internal/session"
	"github.com/qhoangfmsc/30days-english/internal/share"
)

var testLesson = challenge.Lesson{
	Topic:      "Travel",
	Tense:      "Past Simple",
	SourceText: "Hôm qua tôi đã đặt một phòng khách sạn.",
	TargetText: "Yesterday I booked a hotel room.",
	NewVocabulary: []challenge.VocabularyEntry{
		{Word: "book", PartOfSpeech: "verb", Translation: "đặt"},
		{Word: "hotel", PartOfSpeech: "noun", Translation: "khách sạn"},
	},
	ReviewVocabulary: []string{"room"},
}

func testSchedule() challenge.Schedule {
	var s challenge.Schedule
	for d := 1; d <= 3; d++ {
		s.Days = append(s.Days, challenge.DayChallenge{Day: d, Lesson: testLesson})
	}
	return s
}

var testGrammar = challenge.GrammarChallenge{
	Options: []challenge.Option{
		{Label: "a", Sentence: "She go to school every day."},
		{Label: "b", Sentence: "She goes to school every day."},
		{Label: "c", Sentence: "She going to school every day."},
	},
	CorrectAnswer: "b",
	Explanation:   "Third person singular takes -s in the present simple.",
	Grammars: []challenge.GrammarStructure{
		{Structure: "S + V(s/es)", Explanation: "Present simple with a singular subject."},
		{Structure: "every + time", Explanation: "Marks a habit."},
		{Structure: "go to school", Explanation: "Fixed phrase."},
	},
}

// fakeGenerator returns canned content. When gate is set every call blocks
// until it is closed.
type fakeGenerator struct {
	err   error
	gate  chan struct{}
	calls atomic.Int32

	mu     sync.Mutex
	custom []challenge.LessonRequest
}

func (f *fakeGenerator) wait(ctx context.Context) error {
	f.calls.Add(1)
	if f.gate == nil {
		return nil
	}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeGenerator) GenerateLesson(ctx context.Context) (challenge.Lesson, error) {
	if err := f.wait(ctx); err != nil {
		return challenge.Lesson{}, err
	}
	return testLesson, f.err
}

func (f *fakeGenerator) GenerateCustomLesson(ctx context.Context, req challenge.LessonRequest) (challenge.Lesson, error) {
	f.mu.Lock()
	f.custom = append(f.custom, req)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return challenge.Lesson{}, err
	}
	l := testLesson
	l.Topic = req.Topic
	return l, f.err
}

func (f *fakeGenerator) GenerateSchedule(ctx context.Context) (challenge.Schedule, error) {
	if err := f.wait(ctx); err != nil {
		return challenge.Schedule{}, err
	}
	return testSchedule(), f.err
}

func (f *fakeGenerator) GenerateGrammarChallenge(ctx context.Context) (challenge.GrammarChallenge, error) {
	if err := f.wait(ctx); err != nil {
		return challenge.GrammarChallenge{}, err
	}
	return testGrammar, f.err
}

func (f *fakeGenerator) customRequests() []challenge.LessonRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]challenge.LessonRequest(nil), f.custom...)
}

type fakeChecker struct {
	name string
	err  error
}

func (c fakeChecker) Name() string                      { return c.name }
func (c fakeChecker) HealthCheck(context.Context) error { return c.err }

func newTestServer(t *testing.T, gen Generator, opts ...Option) *Server {
	t.Helper()

	signer, err := session.NewSigner("test-secret")
	if err != nil {
		t.Fatalf("NewSigner() error: %v", err)
	}
	sessions := session.NewManager(session.NewStore(time.Hour), signer, false, 0)
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() error: %v", err)
	}

	srv, err := New(gen, sessions, cat, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

// browser is an httptest server plus a client that keeps cookies.
func browser(t *testing.T, srv *Server) (*httptest.Server, *http.Client) {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return ts, &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(nil, nil, nil); err == nil {
		t.Fatal("New() should reject a nil generator")
	}
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, &fakeGenerator{}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decodeResponse(t, rec)["status"]; got != "ok" {
		t.Errorf("status field = %v, want ok", got)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id header not set")
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name     string
		checkers []Checker
		want     int
	}{
		{"no dependencies", nil, http.StatusOK},
		{"healthy", []Checker{fakeChecker{name: "database"}, fakeChecker{name: "cache"}}, http.StatusOK},
		{"cache down", []Checker{fakeChecker{name: "database"}, fakeChecker{name: "cache", err: errors.New("connection refused")}}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeGenerator{}, WithCheckers(tt.checkers...)).Handler()
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			checks, _ := decodeResponse(t, rec)["checks"].(map[string]any)
			for _, c := range tt.checkers {
				if _, ok := checks[c.Name()]; !ok {
					t.Errorf("checks missing %q", c.Name())
				}
			}
		})
	}
}

func TestCreateLesson(t *testing.T) {
	log := events.NewMemoryLogger()
	h := newTestServer(t, &fakeGenerator{}, WithEvents(log)).Handler()

	rec := postJSON(t, h, "/api/translation-challenge/create", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool             `json:"success"`
		Data    challenge.Lesson `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Data.TargetText != testLesson.TargetText {
		t.Errorf("response = %+v", resp)
	}
	if log.Count(events.LessonGenerated) != 1 {
		t.Errorf("lesson events = %d, want 1", log.Count(events.LessonGenerated))
	}
}

func TestCreateEndpoints_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"upstream", &generator.UpstreamError{Provider: "openrouter", Status: 502}, http.StatusInternalServerError},
		{"configuration", &generator.ConfigurationError{Err: errors.New("no API key")}, http.StatusInternalServerError},
		{"empty", &generator.EmptyResponseError{Schema: "lesson"}, http.StatusInternalServerError},
		{"schema", &generator.SchemaValidationError{Schema: "lesson", Fields: []string{"tense"}}, http.StatusInternalServerError},
		{"quota", &generator.QuotaError{}, http.StatusTooManyRequests},
	}
	paths := []string{
		"/api/translation-challenge/create",
		"/api/translation-challenge/create-15days",
		"/api/grammar-find-correct/create",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := events.NewMemoryLogger()
			h := newTestServer(t, &fakeGenerator{err: tt.err}, WithEvents(log)).Handler()
			for _, path := range paths {
				rec := postJSON(t, h, path, "")
				if rec.Code != tt.want {
					t.Errorf("%s: status = %d, want %d", path, rec.Code, tt.want)
				}
				resp := decodeResponse(t, rec)
				if resp["error"] != tt.err.Error() {
					t.Errorf("%s: error = %v, want %q", path, resp["error"], tt.err.Error())
				}
				if resp["success"] != false {
					t.Errorf("%s: success = %v, want false", path, resp["success"])
				}
			}
			if got := log.Count(events.GenerationFailed); got != len(paths) {
				t.Errorf("failure events = %d, want %d", got, len(paths))
			}
		})
	}
}

func TestCreateSchedule(t *testing.T) {
	h := newTestServer(t, &fakeGenerator{}).Handler()

	rec := postJSON(t, h, "/api/translation-challenge/create-15days", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Data challenge.Schedule `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data.Days) != 3 {
		t.Errorf("days = %d, want 3", len(resp.Data.Days))
	}
}

func TestCreateCustom(t *testing.T) {
	gen := &fakeGenerator{}
	h := newTestServer(t, gen).Handler()

	t.Run("empty goal", func(t *testing.T) {
		rec := postJSON(t, h, "/api/translation-challenge/create-custom", customRequest{Goal: "   "})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if got := decodeResponse(t, rec)["error"]; got != "goal must not be empty" {
			t.Errorf("error = %v", got)
		}
		if len(gen.customRequests()) != 0 {
			t.Error("generator called for invalid input")
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := postJSON(t, h, "/api/translation-challenge/create-custom", "{not json")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("valid", func(t *testing.T) {
		rec := postJSON(t, h, "/api/translation-challenge/create-custom", customRequest{
			Goal:             " Job interview ",
			NewVocabulary:    []string{"candidate", "salary"},
			ReviewVocabulary: []string{"hotel"},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		reqs := gen.customRequests()
		if len(reqs) != 1 {
			t.Fatalf("custom requests = %d, want 1", len(reqs))
		}
		if reqs[0].Topic != "Job interview" {
			t.Errorf("topic = %q, want trimmed goal", reqs[0].Topic)
		}
		if len(reqs[0].DesiredNewVocabulary) != 2 || reqs[0].DesiredReviewVocabulary[0] != "hotel" {
			t.Errorf("vocabulary not forwarded: %+v", reqs[0])
		}
	})
}

func TestExport(t *testing.T) {
	log := events.NewMemoryLogger()
	now := time.Date(2025, time.July, 14, 9, 0, 0, 0, time.UTC)
	h := newTestServer(t, &fakeGenerator{}, WithEvents(log), WithClock(func() time.Time { return now })).Handler()

	rec := postJSON(t, h, "/api/translation-challenge/export", testSchedule())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != export.ContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "15-day-translation-2025-07-14.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	got, err := export.ReadSchedule(rec.Body)
	if err != nil {
		t.Fatalf("ReadSchedule() error: %v", err)
	}
	if len(got.Days) != 3 || got.Days[0].TargetText != testLesson.TargetText {
		t.Errorf("exported schedule = %+v", got)
	}
	if log.Count(events.ScheduleExported) != 1 {
		t.Error("export event not logged")
	}
}

func TestExport_RejectsEmptySchedule(t *testing.T) {
	h := newTestServer(t, &fakeGenerator{}).Handler()

	for _, body := range []any{challenge.Schedule{}, "[]"} {
		rec := postJSON(t, h, "/api/translation-challenge/export", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %v: status = %d, want 400", body, rec.Code)
		}
	}
}

// webhookServer starts a TLS webhook endpoint and an allowlist that accepts it.
func webhookServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, *share.WebhookAllowlist, string) {
	t.Helper()
	ts := httptest.NewTLSServer(h)
	t.Cleanup(ts.Close)
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	return ts, share.NewWebhookAllowlist(u.Host), ts.URL + "/api/webhooks/1/abc"
}

func TestShareDiscord(t *testing.T) {
	posted := make(chan share.DiscordMessage, 1)
	webhook, allow, hookURL := webhookServer(t, func(w http.ResponseWriter, r *http.Request) {
		var msg share.DiscordMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		posted <- msg
		w.WriteHeader(http.StatusNoContent)
	})

	gw := share.NewGateway()
	gw.Register(share.Discord, share.NewDiscordChannel("", webhook.Client()))
	log := events.NewMemoryLogger()
	h := newTestServer(t, &fakeGenerator{}, WithGateway(gw), WithEvents(log), WithWebhookAllowlist(allow)).Handler()

	day := testSchedule().Days[1]
	rec := postJSON(t, h, "/api/share/discord", shareRequest{WebhookURL: hookURL, Day: day})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	select {
	case msg := <-posted:
		if len(msg.Embeds) != 1 || !strings.Contains(msg.Embeds[0].Title, "Day 2") {
			t.Errorf("posted payload = %+v", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not called")
	}
	if log.Count(events.ChallengeShared) != 1 {
		t.Error("share event not logged")
	}
}

func TestShareDiscord_Errors(t *testing.T) {
	rejecting, allow, hookURL := webhookServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "Unknown Webhook", "token": "SECRET-123"}`, http.StatusNotFound)
	})
	var internalHits atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		internalHits.Add(1)
		http.Error(w, "INTERNAL-SECRET", http.StatusForbidden)
	}))
	defer internal.Close()

	tg := &share.MockChannel{}
	gw := share.NewGateway()
	gw.Register(share.Discord, share.NewDiscordChannel("", rejecting.Client()))
	gw.Register(share.Telegram, tg)
	h := newTestServer(t, &fakeGenerator{}, WithGateway(gw), WithWebhookAllowlist(allow)).Handler()
	day := testSchedule().Days[0]

	tests := []struct {
		name string
		body shareRequest
		want int
	}{
		{"no target", shareRequest{Day: day}, http.StatusBadRequest},
		{"bad url", shareRequest{WebhookURL: "ftp://example.com/hook", Day: day}, http.StatusBadRequest},
		{"internal host", shareRequest{WebhookURL: internal.URL + "/admin/reset", Day: day}, http.StatusBadRequest},
		{"unlisted discord lookalike", shareRequest{WebhookURL: "https://discord.example/api/webhooks/1/abc", Day: day}, http.StatusBadRequest},
		{"telegram target", shareRequest{WebhookURL: "-100999", Channel: share.Telegram, Day: day}, http.StatusBadRequest},
		{"incomplete day", shareRequest{WebhookURL: hookURL, Day: challenge.DayChallenge{}}, http.StatusBadRequest},
		{"unknown channel", shareRequest{WebhookURL: hookURL, Channel: "slack", Day: day}, http.StatusBadRequest},
		{"webhook rejects", shareRequest{WebhookURL: hookURL, Day: day}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h, "/api/share/discord", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if strings.Contains(rec.Body.String(), "SECRET") {
				t.Errorf("upstream body leaked: %s", rec.Body.String())
			}
			if tt.want == http.StatusBadGateway {
				if got := decodeResponse(t, rec)["error"]; got != "discord webhook error: 404" {
					t.Errorf("error = %v", got)
				}
			}
		})
	}

	if n := internalHits.Load(); n != 0 {
		t.Errorf("internal host called %d times", n)
	}
	if len(tg.Sent()) != 0 {
		t.Errorf("telegram sent %d messages to a caller-chosen chat", len(tg.Sent()))
	}

	rec := postJSON(t, h, "/api/share/discord", shareRequest{Channel: share.Telegram, Day: day})
	if rec.Code != http.StatusOK || len(tg.Sent()) != 1 || tg.Sent()[0].Target != "" {
		t.Errorf("telegram share to the configured chat: status = %d, sent = %+v", rec.Code, tg.Sent())
	}
}

func TestSharePreview(t *testing.T) {
	h := newTestServer(t, &fakeGenerator{}).Handler()

	rec := postJSON(t, h, "/api/share/preview", shareRequest{Day: testSchedule().Days[0]})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	data, _ := decodeResponse(t, rec)["data"].(map[string]any)
	cmd, _ := data["curl"].(string)
	if !strings.Contains(cmd, "YOUR_WEBHOOK_URL") || !strings.HasPrefix(cmd, "curl -X POST") {
		t.Errorf("curl = %q", cmd)
	}
}

func TestNotification(t *testing.T) {
	mock := &share.MockChannel{}
	gw := share.NewGateway()
	gw.Register(share.Discord, mock)
	h := newTestServer(t, &fakeGenerator{}, WithGateway(gw)).Handler()

	rec := postJSON(t, h, "/api/notification/send", notificationRequest{Template: "nope"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown template: status = %d, want 400", rec.Code)
	}

	rec = postJSON(t, h, "/api/notification/send", notificationRequest{
		Template:   "Grammar Checker",
		WebhookURL: "https://discord.com/api/webhooks/1/abc",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	sent := mock.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if !strings.Contains(sent[0].Text, "Grammar Checker") || sent[0].Target != "https://discord.com/api/webhooks/1/abc" {
		t.Errorf("sent = %+v", sent[0])
	}
}

func TestCron(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2025, time.July, 1, 0, 0, 0, 0, loc)
	// 2025-07-14 20:00 UTC is already Tuesday the 15th in Ho Chi Minh City.
	now := time.Date(2025, time.July, 14, 20, 0, 0, 0, time.UTC)
	want := share.WorkingDaysReport(start, now.In(loc))

	t.Run("sent", func(t *testing.T) {
		mock := &share.MockChannel{}
		gw := share.NewGateway()
		gw.Register(share.Discord, mock)
		log := events.NewMemoryLogger()
		h := newTestServer(t, &fakeGenerator{}, WithGateway(gw), WithEvents(log),
			WithCronStart(start), WithClock(func() time.Time { return now })).Handler()

		for _, method := range []string{http.MethodGet, http.MethodPost} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(method, "/api/cron", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("%s: status = %d, want 200", method, rec.Code)
			}
		}
		sent := mock.Sent()
		if len(sent) != 2 || sent[0].Text != want {
			t.Fatalf("sent = %+v, want report %q", sent, want)
		}
		if !strings.Contains(want, "15/07/2025") {
			t.Errorf("report should use the local date: %q", want)
		}
		if log.Count(events.WorkingDaysReported) != 2 {
			t.Error("report events not logged")
		}
	})

	t.Run("webhook rejects", func(t *testing.T) {
		mock := &share.MockChannel{Err: &share.WebhookError{Channel: share.Discord, Status: http.StatusNotFound, Body: "Unknown Webhook"}}
		gw := share.NewGateway()
		gw.Register(share.Discord, mock)
		h := newTestServer(t, &fakeGenerator{}, WithGateway(gw), WithCronStart(start)).Handler()

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cron", nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		resp := decodeResponse(t, rec)
		if resp["error"] != "Discord webhook error: 404" || resp["details"] != "Unknown Webhook" {
			t.Errorf("response = %v", resp)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		gw := share.NewGateway()
		gw.Register(share.Discord, share.NewDiscordChannel("", nil))
		h := newTestServer(t, &fakeGenerator{}, WithGateway(gw)).Handler()

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cron", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
	})
}

func TestRecovery(t *testing.T) {
	h := Chain(RequestID, Recovery(slog.New(slog.DiscardHandler)))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if got := rec.Header().Get("X-Request-Id"); got != "req-1" {
		t.Errorf("X-Request-Id = %q, want propagated value", got)
	}
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
