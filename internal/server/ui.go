package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qhoangfmsc/30days-english/internal/ai"
	"github.com/qhoangfmsc/30days-english/internal/catalog"
	"github.com/qhoangfmsc/30days-english/internal/challenge"
	"github.com/qhoangfmsc/30days-english/internal/events"
	"github.com/qhoangfmsc/30days-english/internal/session"
	"github.com/qhoangfmsc/30days-english/internal/share"
	"github.com/qhoangfmsc/30days-english/internal/state"
)

// Screen names used in /ui/{screen} routes.
const (
	ScreenLesson       = "lesson"
	ScreenCustom       = "custom"
	ScreenSchedule     = "schedule"
	ScreenGrammar      = "grammar"
	ScreenNotification = "notification"
)

type screenLink struct {
	Name    string
	Title   string
	Summary string
}

var screens = []screenLink{
	{ScreenLesson, "Single Challenge", "One random translation exercise with vocabulary."},
	{ScreenCustom, "Custom Challenge", "A lesson built around your goal and your words."},
	{ScreenSchedule, "15 Days Challenge", "Fifteen days of translation practice, ready to export or share."},
	{ScreenGrammar, "Find the Correct Sentence", "Spot the only grammatical sentence among several."},
	{ScreenNotification, "Notifications", "Post a ready-made reminder to a chat channel."},
}

func screenTitle(name string) string {
	for _, s := range screens {
		if s.Name == name {
			return s.Title
		}
	}
	return ""
}

// page is the data every template receives.
type page struct {
	Title   string
	Screen  string
	View    string
	Version uint64
	Error   string
	Notice  string
	Alert   string

	Lesson   *challenge.Lesson
	Schedule *challenge.Schedule
	Grammar  *challenge.GrammarChallenge
	Result   *challenge.AnswerResult
	Revealed map[int]bool

	Form      session.CustomForm
	FormError string

	Screens   []screenLink
	Templates []catalog.Template
	Channels  []string
}

// fill copies the machine state into p and returns the data when in Success.
func fill[T any](p *page, snap state.Snapshot[T]) *T {
	p.View = snap.View.String()
	p.Version = snap.Version
	p.Error = snap.Error
	p.Revealed = snap.Revealed
	if snap.Phase != state.Success {
		return nil
	}
	return &snap.Data
}

// screenPage builds the page for a stateful screen and names its template.
func (s *Server) screenPage(sess *session.Session, name string) (page, string, bool) {
	p := page{Title: screenTitle(name), Screen: name, Channels: s.gateway.Channels()}
	switch name {
	case ScreenLesson:
		p.Lesson = fill(&p, sess.Lesson.Snapshot())
		return p, "lesson.html", true
	case ScreenCustom:
		p.Lesson = fill(&p, sess.Custom.Snapshot())
		p.Form = sess.CustomForm()
		return p, "lesson.html", true
	case ScreenSchedule:
		if sched := fill(&p, sess.Schedule.Snapshot()); sched != nil {
			sorted := sched.Sorted()
			p.Schedule = &sorted
		}
		return p, "schedule.html", true
	case ScreenGrammar:
		snap := sess.Grammar.Snapshot()
		p.Grammar = fill(&p, snap)
		if p.Grammar != nil && snap.Answer != "" {
			result := p.Grammar.Check(snap.Answer)
			p.Result = &result
		}
		return p, "grammar.html", true
	default:
		return page{}, "", false
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.sessions.Load(w, r)
	s.pages.render(w, http.StatusOK, "index.html", page{Title: "30 Days English", Screens: screens})
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Load(w, r)
	p, tmpl, ok := s.screenPage(sess, r.PathValue("screen"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	p.Notice = q.Get("notice")
	p.Alert = q.Get("error")
	s.pages.render(w, http.StatusOK, tmpl, p)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("screen")
	sess := s.sessions.Load(w, r)
	// Generations outlive the request that started them but not the server.
	ctx := ai.WithCaller(s.base, "web", sess.ID)

	var err error
	switch name {
	case ScreenLesson:
		err = launch(s, ctx, sess.ID, sess.Lesson, events.LessonGenerated, s.gen.GenerateLesson)
	case ScreenCustom:
		if perr := parseForm(w, r); perr != nil {
			http.Error(w, perr.Error(), http.StatusBadRequest)
			return
		}
		form := session.CustomForm{
			Goal:             r.PostFormValue("goal"),
			NewVocabulary:    r.PostFormValue("newVocabulary"),
			ReviewVocabulary: r.PostFormValue("reviewVocabulary"),
		}
		sess.SetCustomForm(form)

		req, verr := challenge.BuildCustomRequest(form.Goal,
			challenge.ParseVocabularyList(form.NewVocabulary),
			challenge.ParseVocabularyList(form.ReviewVocabulary))
		if verr != nil {
			p, tmpl, _ := s.screenPage(sess, name)
			p.FormError = verr.Error()
			s.pages.render(w, http.StatusBadRequest, tmpl, p)
			return
		}
		err = launch(s, ctx, sess.ID, sess.Custom, events.CustomLessonGenerated, func(ctx context.Context) (challenge.Lesson, error) {
			return s.gen.GenerateCustomLesson(ctx, req)
		})
	case ScreenSchedule:
		err = launch(s, ctx, sess.ID, sess.Schedule, events.ScheduleGenerated, s.gen.GenerateSchedule)
	case ScreenGrammar:
		err = launch(s, ctx, sess.ID, sess.Grammar, events.GrammarGenerated, s.gen.GenerateGrammarChallenge)
	default:
		http.NotFound(w, r)
		return
	}

	if errors.Is(err, state.ErrBusy) {
		slog.Debug("generation already running", "screen", name, "session_id", sess.ID)
	}
	http.Redirect(w, r, "/ui/"+name, http.StatusSeeOther)
}

// launch moves m to Loading and resolves it in the background.
func launch[T any](s *Server, ctx context.Context, sessionID string, m *state.Machine[T], eventType string, run func(context.Context) (T, error)) error {
	ticket, err := m.Trigger()
	if err != nil {
		return err
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		start := time.Now()
		data, err := run(ctx)
		if !m.Resolve(ticket, data, err) {
			slog.Warn("dropping stale generation result", "event", eventType, "session_id", sessionID)
		}
		s.record(context.WithoutCancel(ctx), sessionID, eventType, time.Since(start), err)
	}()
	return nil
}

func (s *Server) handleReveal(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("screen")
	key, err := strconv.Atoi(r.PathValue("key"))
	if err != nil {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}
	sess := s.sessions.Load(w, r)

	switch name {
	case ScreenLesson:
		_, err = sess.Lesson.ToggleReveal(key)
	case ScreenCustom:
		_, err = sess.Custom.ToggleReveal(key)
	case ScreenSchedule:
		if sched, ok := sess.Schedule.Data(); ok {
			if _, found := sched.Day(key); !found {
				redirectTo(w, r, name, "error", fmt.Sprintf("day %d is not in the schedule", key), "")
				return
			}
		}
		_, err = sess.Schedule.ToggleReveal(key)
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		redirectTo(w, r, name, "error", err.Error(), "")
		return
	}
	redirectTo(w, r, name, "", "", cardAnchor(key))
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess := s.sessions.Load(w, r)

	g, ok := sess.Grammar.Data()
	if !ok {
		redirectTo(w, r, ScreenGrammar, "error", state.ErrNoContent.Error(), "")
		return
	}
	label := strings.ToLower(strings.TrimSpace(r.PostFormValue("answer")))
	if _, found := g.Option(label); !found {
		redirectTo(w, r, ScreenGrammar, "error", fmt.Sprintf("unknown option %q", label), "")
		return
	}
	if err := sess.Grammar.Choose(label); err != nil {
		redirectTo(w, r, ScreenGrammar, "error", err.Error(), "")
		return
	}

	result := g.Check(label)
	events.Log(r.Context(), s.events, events.Event{
		SessionID: sess.ID,
		EventType: events.GrammarAnswered,
		Data:      map[string]any{"correct": result.Correct, "selected": result.Selected},
	})
	redirectTo(w, r, ScreenGrammar, "", "", "result")
}

func (s *Server) handleScheduleExport(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Load(w, r)
	sched, ok := sess.Schedule.Data()
	if !ok {
		redirectTo(w, r, ScreenSchedule, "error", state.ErrNoContent.Error(), "")
		return
	}
	s.writeSchedule(w, r, sess.ID, sched)
}

func (s *Server) handleScheduleShare(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("day"))
	if err != nil {
		http.Error(w, "invalid day", http.StatusBadRequest)
		return
	}
	if err := parseForm(w, r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess := s.sessions.Load(w, r)

	sched, ok := sess.Schedule.Data()
	if !ok {
		redirectTo(w, r, ScreenSchedule, "error", state.ErrNoContent.Error(), "")
		return
	}
	day, found := sched.Day(n)
	if !found {
		redirectTo(w, r, ScreenSchedule, "error", fmt.Sprintf("day %d is not in the schedule", n), "")
		return
	}

	channel := r.PostFormValue("channel")
	if err := s.shareDay(r.Context(), sess.ID, channel, strings.TrimSpace(r.PostFormValue("webhookUrl")), day); err != nil {
		slog.Warn("sharing day failed", "day", n, "error", err)
		redirectTo(w, r, ScreenSchedule, "error", shareFailure(err), cardAnchor(n))
		return
	}
	redirectTo(w, r, ScreenSchedule, "notice", fmt.Sprintf("Day %d shared.", n), cardAnchor(n))
}

func (s *Server) handleNotificationPage(w http.ResponseWriter, r *http.Request) {
	s.sessions.Load(w, r)
	q := r.URL.Query()
	s.pages.render(w, http.StatusOK, "notification.html", page{
		Title:     screenTitle(ScreenNotification),
		Screen:    ScreenNotification,
		Notice:    q.Get("notice"),
		Alert:     q.Get("error"),
		Templates: s.catalog.Templates(),
		Channels:  s.gateway.Channels(),
	})
}

func (s *Server) handleNotificationSend(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess := s.sessions.Load(w, r)

	req := notificationRequest{
		WebhookURL: strings.TrimSpace(r.PostFormValue("webhookUrl")),
		Channel:    r.PostFormValue("channel"),
		Template:   r.PostFormValue("template"),
	}
	if err := s.sendNotification(r.Context(), sess.ID, req); err != nil {
		slog.Warn("notification failed", "template", req.Template, "error", err)
		redirectTo(w, r, ScreenNotification, "error", shareFailure(err), "")
		return
	}
	redirectTo(w, r, ScreenNotification, "notice", fmt.Sprintf("%q sent.", req.Template), "")
}

// shareFailure turns a send error into a message for the page.
func shareFailure(err error) string {
	var werr *share.WebhookError
	if errors.As(err, &werr) {
		return fmt.Sprintf("%s webhook error: %d", werr.Channel, werr.Status)
	}
	if statusFor(err) >= http.StatusInternalServerError {
		return "share failed"
	}
	return err.Error()
}

func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("invalid form: %w", err)
	}
	return nil
}

func cardAnchor(key int) string {
	return "card-" + strconv.Itoa(key)
}

// redirectTo sends the browser back to a screen, optionally with a message
// under param and a fragment.
func redirectTo(w http.ResponseWriter, r *http.Request, screen, param, msg, fragment string) {
	u := url.URL{Path: "/ui/" + screen, Fragment: fragment}
	if param != "" {
		u.RawQuery = url.Values{param: {msg}}.Encode()
	}
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}
