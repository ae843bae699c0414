package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/qhoangfmsc/30days-english/internal/ai"
)

// ConfigurationError means no usable provider credential is configured.
// It is raised before any network call.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("generation is not configured: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// UpstreamError is a non-2xx answer from the provider.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	if msg := upstreamMessage(e.Body); msg != "" {
		return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.Status, msg)
	}
	return fmt.Sprintf("%s error (status %d)", e.Provider, e.Status)
}

// EmptyResponseError means the provider answered without content.
type EmptyResponseError struct {
	Schema string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("provider returned no content for %s", e.Schema)
}

// SchemaValidationError means the content was not a valid instance of the schema.
// Fields lists the violated field paths.
type SchemaValidationError struct {
	Schema string
	Fields []string
	Err    error
}

func (e *SchemaValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid %s response: %v", e.Schema, e.Err)
	}
	return fmt.Sprintf("invalid %s response: %s", e.Schema, strings.Join(e.Fields, ", "))
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// QuotaError means the caller's token budget is exhausted.
type QuotaError struct {
	Err error
}

func (e *QuotaError) Error() string {
	return "generation quota exhausted, try again later"
}

func (e *QuotaError) Unwrap() error { return e.Err }

// classify turns gateway errors into the generator's error taxonomy.
// It returns nil for errors outside the taxonomy, such as transport failures.
func classify(err error) error {
	var apiErr *ai.APIError
	switch {
	case errors.Is(err, ai.ErrNoCredential):
		return &ConfigurationError{Err: err}
	case errors.Is(err, ai.ErrBudgetExceeded):
		return &QuotaError{Err: err}
	case errors.As(err, &apiErr):
		return &UpstreamError{Provider: apiErr.Provider, Status: apiErr.Status, Body: apiErr.Body}
	default:
		return nil
	}
}

// upstreamMessage extracts a human readable message from common provider error bodies.
func upstreamMessage(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}

	var parsed struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil || len(parsed.Error) == 0 {
		return truncate(body, 300)
	}

	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(parsed.Error, &nested); err == nil && nested.Message != "" {
		return nested.Message
	}
	var flat string
	if err := json.Unmarshal(parsed.Error, &flat); err == nil && flat != "" {
		return flat
	}
	return truncate(body, 300)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
