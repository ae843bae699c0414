// Package ai provides a provider-agnostic LLM gateway with task-based routing.
package ai

import (
	"context"
	"errors"
	"fmt"
)

// TaskType defines the kind of generation task for routing purposes.
type TaskType int

const (
	TaskLesson TaskType = iota
	TaskCustomLesson
	TaskSchedule
	TaskGrammar
)

func (t TaskType) String() string {
	switch t {
	case TaskLesson:
		return "lesson"
	case TaskCustomLesson:
		return "custom_lesson"
	case TaskSchedule:
		return "schedule"
	case TaskGrammar:
		return "grammar"
	default:
		return "unknown"
	}
}

// ParseTaskType returns the task whose String form is s.
func ParseTaskType(s string) (TaskType, error) {
	for t := TaskLesson; t <= TaskGrammar; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown task %q", s)
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat asks the provider to answer with JSON conforming to Schema.
type ResponseFormat struct {
	Name   string
	Strict bool
	Schema map[string]any
}

// CompletionRequest is the input to an AI completion.
type CompletionRequest struct {
	Messages       []Message       `json:"messages"`
	Model          string          `json:"model,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature,omitempty"`
	Task           TaskType        `json:"task,omitempty"`
	ResponseFormat *ResponseFormat `json:"-"`
}

// CompletionResponse is the output from an AI completion.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaxTokens   int    `json:"max_tokens"`
	Description string `json:"description"`
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Models() []ModelInfo
	HealthCheck(ctx context.Context) error
}

var (
	// ErrNoCredential is returned before any network call when a provider has no API key.
	ErrNoCredential = errors.New("provider credential is not configured")
	// ErrEmptyContent is returned when the provider answered without message content.
	ErrEmptyContent = errors.New("provider returned no content")
	// ErrBudgetExceeded is returned when the caller has used up its token budget.
	ErrBudgetExceeded = errors.New("token budget exceeded")
)

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s api error (status %d)", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.Status, e.Body)
}
