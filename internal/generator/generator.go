// Package generator turns lesson requests into validated lessons, schedules and
// grammar challenges with one LLM round trip each.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/qhoangfmsc/30days-english/internal/ai"
	"github.com/qhoangfmsc/30days-english/internal/challenge"
)

// Completer is the part of the AI gateway the generator needs.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
}

// Generator is safe for concurrent use. Every call is an independent request:
// nothing is cached, retried or deduplicated.
type Generator struct {
	client      Completer
	builder     *challenge.Builder
	language    string
	model       string
	temperature float64
	maxTokens   int

	lesson   *schema
	schedule *schema
	grammar  *schema
}

// Option configures a Generator.
type Option func(*Generator)

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(g *Generator) {
		g.model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(g *Generator) {
		g.temperature = t
	}
}

// WithMaxTokens caps completion length. Zero leaves it to the provider.
func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		g.maxTokens = n
	}
}

// WithSourceLanguage sets the language learners translate from.
func WithSourceLanguage(language string) Option {
	return func(g *Generator) {
		if language != "" {
			g.language = language
		}
	}
}

// New creates a Generator and compiles its response schemas.
func New(client Completer, builder *challenge.Builder, opts ...Option) (*Generator, error) {
	g := &Generator{
		client:      client,
		builder:     builder,
		language:    "Vietnamese",
		temperature: 1.2,
	}
	for _, opt := range opts {
		opt(g)
	}

	var err error
	if g.lesson, err = newSchema("lesson", lessonSchemaDoc(g.language)); err != nil {
		return nil, err
	}
	if g.schedule, err = newSchema("schedule", scheduleSchemaDoc(g.language)); err != nil {
		return nil, err
	}
	if g.grammar, err = newSchema("grammar_challenge", grammarSchemaDoc(g.language)); err != nil {
		return nil, err
	}
	return g, nil
}

// GenerateLesson creates a lesson on a random topic and sentence structure.
func (g *Generator) GenerateLesson(ctx context.Context) (challenge.Lesson, error) {
	req := g.builder.BuildRequest()
	slog.Info("generating lesson", "topic", req.Topic, "structure", req.StructureHint)
	return g.generateLesson(ctx, ai.TaskLesson, req)
}

// GenerateCustomLesson creates a lesson from a caller-built request.
func (g *Generator) GenerateCustomLesson(ctx context.Context, req challenge.LessonRequest) (challenge.Lesson, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return challenge.Lesson{}, &challenge.ValidationError{Messages: []string{"goal must not be empty"}}
	}
	slog.Info("generating custom lesson",
		"topic", req.Topic,
		"new_vocabulary", len(req.DesiredNewVocabulary),
		"review_vocabulary", len(req.DesiredReviewVocabulary),
	)
	return g.generateLesson(ctx, ai.TaskCustomLesson, req)
}

func (g *Generator) generateLesson(ctx context.Context, task ai.TaskType, req challenge.LessonRequest) (challenge.Lesson, error) {
	var lesson challenge.Lesson
	if err := g.complete(ctx, task, g.lesson, lessonSystemPrompt(g.language), lessonUserPrompt(req, g.language), &lesson); err != nil {
		return challenge.Lesson{}, err
	}
	logContainment(lesson, 0)
	return lesson, nil
}

// GenerateSchedule creates a 15-day schedule in a single round trip.
func (g *Generator) GenerateSchedule(ctx context.Context) (challenge.Schedule, error) {
	reqs := g.builder.BuildScheduleRequests(challenge.ScheduleDays)
	slog.Info("generating schedule", "days", len(reqs))

	var schedule challenge.Schedule
	if err := g.complete(ctx, ai.TaskSchedule, g.schedule, lessonSystemPrompt(g.language), scheduleUserPrompt(reqs, g.language), &schedule); err != nil {
		return challenge.Schedule{}, err
	}
	if fields := schedule.Violations(); len(fields) > 0 {
		return challenge.Schedule{}, &SchemaValidationError{Schema: g.schedule.name, Fields: fields}
	}

	schedule = schedule.Sorted()
	for _, d := range schedule.Days {
		logContainment(d.Lesson, d.Day)
	}
	return schedule, nil
}

// GenerateGrammarChallenge creates a find-the-correct-sentence challenge.
func (g *Generator) GenerateGrammarChallenge(ctx context.Context) (challenge.GrammarChallenge, error) {
	topics := []string{g.builder.SelectTopic(), g.builder.SelectTopic()}
	tenses := []string{g.builder.SelectTense(), g.builder.SelectTense()}
	slog.Info("generating grammar challenge", "topics", topics, "tenses", tenses)

	var gc challenge.GrammarChallenge
	if err := g.complete(ctx, ai.TaskGrammar, g.grammar, grammarSystemPrompt, grammarUserPrompt(topics, tenses, g.language), &gc); err != nil {
		return challenge.GrammarChallenge{}, err
	}
	if fields := gc.Violations(); len(fields) > 0 {
		return challenge.GrammarChallenge{}, &SchemaValidationError{Schema: g.grammar.name, Fields: fields}
	}
	return gc, nil
}

// complete performs the round trip and fills out only when content is valid.
func (g *Generator) complete(ctx context.Context, task ai.TaskType, s *schema, system, user string, out any) error {
	resp, err := g.client.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		Task:        task,
		ResponseFormat: &ai.ResponseFormat{
			Name:   s.name,
			Strict: true,
			Schema: s.doc,
		},
	})
	if err != nil {
		if errors.Is(err, ai.ErrEmptyContent) {
			return &EmptyResponseError{Schema: s.name}
		}
		if mapped := classify(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("generating %s: %w", task, err)
	}

	content := stripFence(resp.Content)
	if content == "" {
		return &EmptyResponseError{Schema: s.name}
	}
	if err := s.validate(content); err != nil {
		return err
	}
	if err := decode(s, content, out); err != nil {
		return err
	}

	slog.Info("generation completed",
		"task", task.String(),
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
	)
	return nil
}

// stripFence removes a markdown code fence some providers wrap JSON in.
func stripFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if nl := strings.IndexByte(content, '\n'); nl >= 0 {
		content = content[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(content), "```"))
}

func logContainment(l challenge.Lesson, day int) {
	if issues := l.ContainmentIssues(); len(issues) > 0 {
		slog.Warn("lesson vocabulary missing from text", "day", day, "issues", issues)
	}
}
