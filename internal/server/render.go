package server

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/qhoangfmsc/30days-english/internal/challenge"
	"github.com/qhoangfmsc/30days-english/internal/share"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageFiles = []string{
	"index.html",
	"lesson.html",
	"schedule.html",
	"grammar.html",
	"notification.html",
}

type renderer struct {
	templates map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	funcs := template.FuncMap{
		"dict":  share.DictionaryURL,
		"join":  strings.Join,
		"upper": strings.ToUpper,
		"card":  newCard,
		"curl": func(d challenge.DayChallenge) string {
			cmd, err := share.CurlCommand("", share.DailyChallengeMessage(d))
			if err != nil {
				return ""
			}
			return cmd
		},
	}

	templates := make(map[string]*template.Template, len(pageFiles))
	for _, page := range pageFiles {
		t, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, err
		}
		templates[page] = t
	}
	return &renderer{templates: templates}, nil
}

func (rd *renderer) render(w http.ResponseWriter, status int, name string, data any) {
	t, ok := rd.templates[name]
	if !ok {
		http.Error(w, "template not found: "+name, http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("rendering page", "page", name, "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// card is the data behind one rendered lesson.
type card struct {
	Screen   string
	Key      int
	Lesson   challenge.Lesson
	Revealed bool
}

func newCard(screen string, key int, l challenge.Lesson, revealed bool) card {
	return card{Screen: screen, Key: key, Lesson: l, Revealed: revealed}
}
