package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/qhoangfmsc/30days-english/internal/session"
	"github.com/qhoangfmsc/30days-english/internal/state"
)

const writeTimeout = 5 * time.Second

// Status is pushed to the browser on every transition of a screen.
type Status struct {
	Screen  string `json:"screen"`
	Phase   string `json:"phase"`
	View    string `json:"view"`
	Version uint64 `json:"version"`
	Error   string `json:"error,omitempty"`
}

func observe[T any](screen string, m *state.Machine[T]) (<-chan struct{}, Status) {
	// Subscribe before reading so no transition falls between the two.
	changed := m.Changed()
	snap := m.Snapshot()
	return changed, Status{
		Screen:  screen,
		Phase:   snap.Phase.String(),
		View:    snap.View.String(),
		Version: snap.Version,
		Error:   snap.Error,
	}
}

func observeScreen(sess *session.Session, screen string) (<-chan struct{}, Status, bool) {
	switch screen {
	case ScreenLesson:
		ch, st := observe(screen, sess.Lesson)
		return ch, st, true
	case ScreenCustom:
		ch, st := observe(screen, sess.Custom)
		return ch, st, true
	case ScreenSchedule:
		ch, st := observe(screen, sess.Schedule)
		return ch, st, true
	case ScreenGrammar:
		ch, st := observe(screen, sess.Grammar)
		return ch, st, true
	default:
		return nil, Status{}, false
	}
}

// handleWatch streams Status messages for one screen of the caller's session
// until the client goes away or the server closes.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	screen := r.PathValue("screen")
	sess, ok := s.sessions.Lookup(r)
	if !ok {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}
	if _, _, ok := observeScreen(sess, screen); !ok {
		http.NotFound(w, r)
		return
	}

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer c.CloseNow()

	ctx := c.CloseRead(r.Context())
	for {
		changed, status, _ := observeScreen(sess, screen)

		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := wsjson.Write(wctx, c, status)
		cancel()
		if err != nil {
			slog.Debug("websocket write failed", "screen", screen, "error", err)
			return
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return
		case <-s.done:
			_ = c.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
	}
}
