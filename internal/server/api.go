package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/qhoangfmsc/30days-english/internal/challenge"
	"github.com/qhoangfmsc/30days-english/internal/events"
	"github.com/qhoangfmsc/30days-english/internal/export"
	"github.com/qhoangfmsc/30days-english/internal/share"
)

// respond runs one synchronous generation and writes the API envelope.
func respond[T any](s *Server, w http.ResponseWriter, r *http.Request, eventType string, run func(context.Context) (T, error)) {
	ctx := apiContext(r)
	start := time.Now()
	data, err := run(ctx)
	s.record(ctx, "", eventType, time.Since(start), err)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
}

func (s *Server) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	respond(s, w, r, events.LessonGenerated, s.gen.GenerateLesson)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	respond(s, w, r, events.ScheduleGenerated, s.gen.GenerateSchedule)
}

func (s *Server) handleCreateGrammar(w http.ResponseWriter, r *http.Request) {
	respond(s, w, r, events.GrammarGenerated, s.gen.GenerateGrammarChallenge)
}

type customRequest struct {
	Goal             string   `json:"goal"`
	NewVocabulary    []string `json:"newVocabulary"`
	ReviewVocabulary []string `json:"reviewVocabulary"`
}

func (s *Server) handleCreateCustom(w http.ResponseWriter, r *http.Request) {
	var body customRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := challenge.BuildCustomRequest(body.Goal, body.NewVocabulary, body.ReviewVocabulary)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	respond(s, w, r, events.CustomLessonGenerated, func(ctx context.Context) (challenge.Lesson, error) {
		return s.gen.GenerateCustomLesson(ctx, req)
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var sched challenge.Schedule
	if err := decodeJSON(w, r, &sched); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(sched.Days) == 0 {
		writeError(w, http.StatusBadRequest, "schedule has no days")
		return
	}
	s.writeSchedule(w, r, "", sched)
}

// writeSchedule streams sched as an xlsx attachment.
func (s *Server) writeSchedule(w http.ResponseWriter, r *http.Request, sessionID string, sched challenge.Schedule) {
	var buf bytes.Buffer
	if err := export.WriteSchedule(&buf, sched.Sorted()); err != nil {
		slog.Error("exporting schedule", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export schedule")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(s.now())))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("writing export", "error", err)
		return
	}

	events.Log(r.Context(), s.events, events.Event{
		SessionID: sessionID,
		EventType: events.ScheduleExported,
		Data:      map[string]any{"days": len(sched.Days)},
	})
}

type shareRequest struct {
	WebhookURL string                 `json:"webhookUrl"`
	Channel    string                 `json:"channel"`
	Day        challenge.DayChallenge `json:"day"`
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	var body shareRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.shareDay(r.Context(), "", body.Channel, body.WebhookURL, body.Day); err != nil {
		s.writeShareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: fmt.Sprintf("day %d shared", body.Day.Day)})
}

func (s *Server) handleSharePreview(w http.ResponseWriter, r *http.Request) {
	var body shareRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	msg := share.DailyChallengeMessage(body.Day)
	cmd, err := share.CurlCommand(body.WebhookURL, msg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Data:    map[string]any{"payload": msg, "curl": cmd},
	})
}

// shareDay posts one day challenge. An empty channel means Discord.
func (s *Server) shareDay(ctx context.Context, sessionID, channel, target string, day challenge.DayChallenge) error {
	if channel == "" {
		channel = share.Discord
	}
	if !s.gateway.HasChannel(channel) {
		return &badRequestError{msg: fmt.Sprintf("channel %q is not configured", channel)}
	}
	if day.Day < 1 || day.SourceText == "" {
		return &badRequestError{msg: "day challenge is incomplete"}
	}
	if err := s.checkTarget(channel, target); err != nil {
		return err
	}

	msg := share.DailyChallengeMessage(day)
	err := s.gateway.Send(ctx, share.OutboundMessage{Channel: channel, Target: target, Payload: &msg})
	if err != nil {
		return err
	}
	events.Log(ctx, s.events, events.Event{
		SessionID: sessionID,
		EventType: events.ChallengeShared,
		Data:      map[string]any{"channel": channel, "day": day.Day},
	})
	return nil
}

// checkTarget vets a caller-supplied destination. Discord targets must pass
// the webhook allowlist; Telegram only posts to the configured chat.
func (s *Server) checkTarget(channel, target string) error {
	if target == "" {
		return nil
	}
	switch channel {
	case share.Discord:
		if err := s.webhooks.Check(target); err != nil {
			return &badRequestError{msg: err.Error()}
		}
	case share.Telegram:
		return &badRequestError{msg: "telegram posts go to the configured chat; webhookUrl is not accepted"}
	}
	return nil
}

type notificationRequest struct {
	WebhookURL string `json:"webhookUrl"`
	Channel    string `json:"channel"`
	Template   string `json:"template"`
}

func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	var body notificationRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.sendNotification(r.Context(), "", body); err != nil {
		s.writeShareError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "notification sent"})
}

func (s *Server) sendNotification(ctx context.Context, sessionID string, req notificationRequest) error {
	tmpl, ok := s.catalog.Template(req.Template)
	if !ok {
		return &badRequestError{msg: fmt.Sprintf("unknown template %q", req.Template)}
	}
	channel := req.Channel
	if channel == "" {
		channel = share.Discord
	}
	if !s.gateway.HasChannel(channel) {
		return &badRequestError{msg: fmt.Sprintf("channel %q is not configured", channel)}
	}
	if err := s.checkTarget(channel, req.WebhookURL); err != nil {
		return err
	}

	err := s.gateway.Send(ctx, share.OutboundMessage{Channel: channel, Target: req.WebhookURL, Text: tmpl.Content})
	if err != nil {
		return err
	}
	events.Log(ctx, s.events, events.Event{
		SessionID: sessionID,
		EventType: events.NotificationSent,
		Data:      map[string]any{"channel": channel, "template": tmpl.Label},
	})
	return nil
}

func (s *Server) writeShareError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := apiResponse{Error: err.Error()}
	var werr *share.WebhookError
	switch {
	case errors.As(err, &werr):
		// The upstream body stays in the log.
		resp.Error = fmt.Sprintf("%s webhook error: %d", werr.Channel, werr.Status)
		slog.Warn("share rejected", "channel", werr.Channel, "status", werr.Status, "body", werr.Body)
	case status >= 500:
		resp.Error = "share failed"
		slog.Error("share failed", "error", err)
	}
	writeJSON(w, status, resp)
}

// handleCron posts the working-days report to the default Discord webhook.
// A webhook rejection is passed through with its status.
func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	today := s.now().In(s.cronStart.Location())
	report := share.WorkingDaysReport(s.cronStart, today)

	err := s.gateway.Send(r.Context(), share.OutboundMessage{Channel: share.Discord, Text: report})
	if err != nil {
		var werr *share.WebhookError
		switch {
		case errors.As(err, &werr):
			slog.Error("cron report rejected", "status", werr.Status, "body", werr.Body)
			writeJSON(w, werr.Status, apiResponse{
				Error:   fmt.Sprintf("Discord webhook error: %d", werr.Status),
				Details: werr.Body,
			})
		default:
			slog.Error("cron report failed", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	events.Log(r.Context(), s.events, events.Event{
		EventType: events.WorkingDaysReported,
		Data:      map[string]any{"working_days": share.WorkingDays(s.cronStart, today)},
	})
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "working days report sent"})
}
