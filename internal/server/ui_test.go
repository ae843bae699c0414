package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/qhoangfmsc/30days-english/internal/events"
	"github.com/qhoangfmsc/30days-english/internal/export"
	"github.com/qhoangfmsc/30days-english/internal/share"
)

func get(t *testing.T, c *http.Client, u string) (int, string) {
	t.Helper()
	resp, err := c.Get(u)
	if err != nil {
		t.Fatalf("GET %s: %v", u, err)
	}
	return resp.StatusCode, readAll(t, resp)
}

func post(t *testing.T, c *http.Client, u string, form url.Values) (int, string) {
	t.Helper()
	resp, err := c.PostForm(u, form)
	if err != nil {
		t.Fatalf("POST %s: %v", u, err)
	}
	return resp.StatusCode, readAll(t, resp)
}

func TestUI_Index(t *testing.T) {
	ts, c := browser(t, newTestServer(t, &fakeGenerator{}))

	code, body := get(t, c, ts.URL+"/")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	for _, want := range []string{"/ui/lesson", "/ui/custom", "/ui/schedule", "/ui/grammar", "/ui/notification"} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing link %s", want)
		}
	}
}

func TestUI_UnknownScreen(t *testing.T) {
	ts, c := browser(t, newTestServer(t, &fakeGenerator{}))

	if code, _ := get(t, c, ts.URL+"/ui/bogus"); code != http.StatusNotFound {
		t.Errorf("GET status = %d, want 404", code)
	}
	if code, _ := post(t, c, ts.URL+"/ui/bogus/generate", nil); code != http.StatusNotFound {
		t.Errorf("POST status = %d, want 404", code)
	}
}

func TestUI_LessonFlow(t *testing.T) {
	gen := &fakeGenerator{gate: make(chan struct{})}
	log := events.NewMemoryLogger()
	srv := newTestServer(t, gen, WithEvents(log))
	ts, c := browser(t, srv)

	_, body := get(t, c, ts.URL+"/ui/lesson")
	if !strings.Contains(body, `action="/ui/lesson/generate"`) {
		t.Fatalf("call to action missing:\n%s", body)
	}

	_, body = post(t, c, ts.URL+"/ui/lesson/generate", nil)
	if !strings.Contains(body, "Generating") {
		t.Fatalf("loading view missing:\n%s", body)
	}
	if !strings.Contains(body, "/ui/lesson/ws") {
		t.Error("loading view should subscribe to state changes")
	}

	// A second trigger while loading is ignored.
	post(t, c, ts.URL+"/ui/lesson/generate", nil)

	close(gen.gate)
	srv.Wait()

	if got := gen.calls.Load(); got != 1 {
		t.Errorf("generator calls = %d, want 1", got)
	}
	if log.Count(events.LessonGenerated) != 1 {
		t.Errorf("lesson events = %d, want 1", log.Count(events.LessonGenerated))
	}

	_, body = get(t, c, ts.URL+"/ui/lesson")
	if !strings.Contains(body, testLesson.SourceText) {
		t.Fatalf("content view missing source text:\n%s", body)
	}
	if strings.Contains(body, testLesson.TargetText) {
		t.Error("translation shown before reveal")
	}
	if !strings.Contains(body, share.DictionaryURL("hotel")) {
		t.Error("vocabulary should link to the dictionary")
	}

	_, body = post(t, c, ts.URL+"/ui/lesson/reveal/0", nil)
	if !strings.Contains(body, testLesson.TargetText) {
		t.Error("translation hidden after reveal")
	}
	_, body = post(t, c, ts.URL+"/ui/lesson/reveal/0", nil)
	if strings.Contains(body, testLesson.TargetText) {
		t.Error("translation shown after second toggle")
	}
}

func TestUI_CloseCancelsGenerations(t *testing.T) {
	gen := &fakeGenerator{gate: make(chan struct{})} // never opened
	log := events.NewMemoryLogger()
	srv := newTestServer(t, gen, WithEvents(log))
	ts, c := browser(t, srv)

	post(t, c, ts.URL+"/ui/lesson/generate", nil)

	closed := make(chan struct{})
	go func() {
		srv.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked on a hung generation")
	}

	if got := gen.calls.Load(); got != 1 {
		t.Errorf("generator calls = %d, want 1", got)
	}
	if log.Count(events.GenerationFailed) != 1 {
		t.Errorf("failure events = %d, want 1", log.Count(events.GenerationFailed))
	}
	if _, body := get(t, c, ts.URL+"/ui/lesson"); !strings.Contains(body, "Try again") {
		t.Errorf("cancelled generation should show the error view:\n%s", body)
	}
}

func TestUI_SessionsAreIsolated(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{})
	ts, alice := browser(t, srv)
	_, bob := browser(t, srv)

	post(t, alice, ts.URL+"/ui/lesson/generate", nil)
	srv.Wait()

	if _, body := get(t, alice, ts.URL+"/ui/lesson"); !strings.Contains(body, testLesson.SourceText) {
		t.Error("first browser should see its lesson")
	}
	if _, body := get(t, bob, ts.URL+"/ui/lesson"); strings.Contains(body, testLesson.SourceText) {
		t.Error("second browser sees another session's lesson")
	}
}

func TestUI_Failure(t *testing.T) {
	srv := newTestServer(t, &fakeGenerator{err: errors.New("provider unavailable")})
	ts, c := browser(t, srv)

	post(t, c, ts.URL+"/ui/grammar/generate", nil)
	srv.Wait()

	_, body := get(t, c, ts.URL+"/ui/grammar")
	if !strings.Contains(body, "provider unavailable") || !strings.Contains(body, "Try again") {
		t.Errorf("error view missing:\n%s", body)
	}
}

func TestUI_RevealBeforeContent(t *testing.T) {
	ts, c := browser(t, newTestServer(t, &fakeGenerator{}))

	_, body := post(t, c, ts.URL+"/ui/schedule/reveal/1", nil)
	if !strings.Contains(body, "nothing generated yet") {
		t.Errorf("expected an inline error:\n%s", body)
	}
}

func TestUI_CustomValidation(t *testing.T) {
	gen := &fakeGenerator{}
	srv := newTestServer(t, gen)
	ts, c := browser(t, srv)

	code, body := post(t, c, ts.URL+"/ui/custom/generate", url.Values{
		"goal":          {"  "},
		"newVocabulary": {"candidate, salary"},
	})
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if !strings.Contains(body, "goal must not be empty") {
		t.Error("validation message missing")
	}
	if !strings.Contains(body, "candidate, salary") {
		t.Error("form values should be kept")
	}
	if len(gen.customRequests()) != 0 {
		t.Error("generator called for invalid input")
	}

	post(t, c, ts.URL+"/ui/custom/generate", url.Values{
		"goal":             {"Job interview"},
		"newVocabulary":    {"candidate, , salary"},
		"reviewVocabulary": {"hotel"},
	})
	srv.Wait()

	reqs := gen.customRequests()
	if len(reqs) != 1 || reqs[0].Topic != "Job interview" || len(reqs[0].DesiredNewVocabulary) != 2 {
		t.Fatalf("custom requests = %+v", reqs)
	}
	_, body = get(t, c, ts.URL+"/ui/custom")
	if !strings.Contains(body, "Job interview") || !strings.Contains(body, testLesson.SourceText) {
		t.Errorf("custom lesson not rendered:\n%s", body)
	}
}

func TestUI_GrammarAnswer(t *testing.T) {
	log := events.NewMemoryLogger()
	srv := newTestServer(t, &fakeGenerator{}, WithEvents(log))
	ts, c := browser(t, srv)

	_, body := post(t, c, ts.URL+"/ui/grammar/answer", url.Values{"answer": {"a"}})
	if !strings.Contains(body, "nothing generated yet") {
		t.Error("answering before generation should fail inline")
	}

	post(t, c, ts.URL+"/ui/grammar/generate", nil)
	srv.Wait()

	_, body = post(t, c, ts.URL+"/ui/grammar/answer", url.Values{"answer": {"z"}})
	if !strings.Contains(body, "unknown option") {
		t.Error("unknown label should be rejected")
	}

	_, body = post(t, c, ts.URL+"/ui/grammar/answer", url.Values{"answer": {"A"}})
	if !strings.Contains(body, "The correct answer is B") {
		t.Errorf("wrong answer should reveal the correct label:\n%s", body)
	}
	if !strings.Contains(body, testGrammar.Explanation) {
		t.Error("explanation missing after answering")
	}
	if log.Count(events.GrammarAnswered) != 1 {
		t.Errorf("answer events = %d, want 1", log.Count(events.GrammarAnswered))
	}

	post(t, c, ts.URL+"/ui/grammar/generate", nil)
	srv.Wait()
	_, body = get(t, c, ts.URL+"/ui/grammar")
	if strings.Contains(body, "The correct answer is") {
		t.Error("regeneration should clear the previous answer")
	}
}

func TestUI_ScheduleExportAndShare(t *testing.T) {
	mock := &share.MockChannel{}
	gw := share.NewGateway()
	gw.Register(share.Discord, mock)
	srv := newTestServer(t, &fakeGenerator{}, WithGateway(gw))
	ts, c := browser(t, srv)

	_, body := get(t, c, ts.URL+"/ui/schedule/export")
	if !strings.Contains(body, "nothing generated yet") {
		t.Error("export before generation should fail inline")
	}

	post(t, c, ts.URL+"/ui/schedule/generate", nil)
	srv.Wait()

	_, body = get(t, c, ts.URL+"/ui/schedule")
	for _, want := range []string{"Day 1", "Day 3", "/ui/schedule/export", "YOUR_WEBHOOK_URL"} {
		if !strings.Contains(body, want) {
			t.Errorf("schedule page missing %q", want)
		}
	}

	resp, err := c.Get(ts.URL + "/ui/schedule/export")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != export.ContentType {
		t.Fatalf("Content-Type = %q", ct)
	}
	sched, err := export.ReadSchedule(resp.Body)
	if err != nil {
		t.Fatalf("ReadSchedule() error: %v", err)
	}
	if len(sched.Days) != 3 {
		t.Errorf("exported days = %d, want 3", len(sched.Days))
	}

	_, body = post(t, c, ts.URL+"/ui/schedule/share/2", url.Values{"webhookUrl": {"http://10.0.0.1/admin"}})
	if !strings.Contains(body, "webhook URL must use https") || len(mock.Sent()) != 0 {
		t.Errorf("non-Discord webhook should be refused:\n%s", body)
	}

	_, body = post(t, c, ts.URL+"/ui/schedule/share/2", url.Values{"webhookUrl": {"https://discord.com/api/webhooks/1/abc"}})
	if !strings.Contains(body, "Day 2 shared.") {
		t.Errorf("share notice missing:\n%s", body)
	}
	sent := mock.Sent()
	if len(sent) != 1 || sent[0].Payload == nil || !strings.Contains(sent[0].Payload.Embeds[0].Title, "Day 2") {
		t.Fatalf("sent = %+v", sent)
	}

	_, body = post(t, c, ts.URL+"/ui/schedule/share/9", nil)
	if !strings.Contains(body, "day 9 is not in the schedule") {
		t.Error("sharing a missing day should fail inline")
	}
}

func TestUI_Notification(t *testing.T) {
	mock := &share.MockChannel{}
	gw := share.NewGateway()
	gw.Register(share.Discord, mock)
	ts, c := browser(t, newTestServer(t, &fakeGenerator{}, WithGateway(gw)))

	_, body := get(t, c, ts.URL+"/ui/notification")
	if !strings.Contains(body, "Grammar Checker") {
		t.Fatalf("template list missing:\n%s", body)
	}

	_, body = post(t, c, ts.URL+"/ui/notification/send", url.Values{"template": {"Grammar Checker"}, "channel": {share.Discord}})
	if !strings.Contains(body, "sent.") {
		t.Errorf("notice missing:\n%s", body)
	}
	if len(mock.Sent()) != 1 {
		t.Errorf("sent %d messages, want 1", len(mock.Sent()))
	}

	gw.Register(share.Discord, &share.MockChannel{
		Err: &share.WebhookError{Channel: share.Discord, Status: http.StatusUnauthorized, Body: "Invalid Webhook Token"},
	})
	_, body = post(t, c, ts.URL+"/ui/notification/send", url.Values{"template": {"Grammar Checker"}})
	if !strings.Contains(body, "discord webhook error: 401") {
		t.Errorf("webhook failure not shown:\n%s", body)
	}
}
