package ai

import (
	"context"
	"errors"
	"testing"
)

func TestRouter_DefaultRoute(t *testing.T) {
	r := NewRouter()
	first := NewMockProvider("first")
	second := NewMockProvider("second")
	r.Register("first", first)
	r.Register("second", second)

	resp, err := r.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Task:     TaskGrammar,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "first" {
		t.Errorf("content = %q, want first registered provider", resp.Content)
	}
	if second.Calls() != 0 {
		t.Errorf("second provider calls = %d, want 0", second.Calls())
	}
}

func TestRouter_RouteByTask(t *testing.T) {
	r := NewRouter()
	lessons := NewMockProvider("lesson")
	grammar := NewMockProvider("grammar")
	r.Register("lessons", lessons)
	r.Register("grammar", grammar)
	if err := r.Route(TaskGrammar, "grammar"); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	tests := []struct {
		task TaskType
		want string
	}{
		{TaskLesson, "lesson"},
		{TaskCustomLesson, "lesson"},
		{TaskSchedule, "lesson"},
		{TaskGrammar, "grammar"},
	}
	for _, tt := range tests {
		t.Run(tt.task.String(), func(t *testing.T) {
			resp, err := r.Complete(context.Background(), CompletionRequest{Task: tt.task})
			if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if resp.Content != tt.want {
				t.Errorf("content = %q, want %q", resp.Content, tt.want)
			}
		})
	}
}

func TestRouter_RouteUnknownProvider(t *testing.T) {
	r := NewRouter()
	if err := r.Route(TaskLesson, "missing"); err == nil {
		t.Error("Route() should fail for an unregistered provider")
	}
}

func TestRouter_NoFallback(t *testing.T) {
	r := NewRouter()
	failing := &MockProvider{Err: &APIError{Provider: "mock", Status: 502, Body: "bad gateway"}}
	healthy := NewMockProvider("ok")
	r.Register("failing", failing)
	r.Register("healthy", healthy)

	_, err := r.Complete(context.Background(), CompletionRequest{Task: TaskLesson})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Complete() error = %v, want *APIError", err)
	}
	if failing.Calls() != 1 {
		t.Errorf("failing calls = %d, want exactly 1", failing.Calls())
	}
	if healthy.Calls() != 0 {
		t.Errorf("healthy calls = %d, want 0", healthy.Calls())
	}
}

func TestRouter_NoProviders(t *testing.T) {
	r := NewRouter()
	if r.HasProvider() {
		t.Error("HasProvider() = true on empty router")
	}

	_, err := r.Complete(context.Background(), CompletionRequest{})
	if !errors.Is(err, ErrNoCredential) {
		t.Errorf("Complete() error = %v, want ErrNoCredential", err)
	}
	if err := r.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() should fail without providers")
	}
}

func TestRouter_BudgetExceeded(t *testing.T) {
	r := NewRouter()
	mock := NewMockProvider("hello")
	r.Register("mock", mock)

	budget := NewInMemoryBudget(0)
	budget.SetBudget("web", "sess-1", 20)
	r.SetBudget(budget)

	ctx := WithCaller(context.Background(), "web", "sess-1")

	// MockProvider reports 10 input tokens plus len(response) output tokens.
	if _, err := r.Complete(ctx, CompletionRequest{}); err != nil {
		t.Fatalf("first Complete() error = %v", err)
	}
	used, _, _ := budget.Usage(ctx, "web", "sess-1")
	if used != 15 {
		t.Errorf("used = %d, want 15", used)
	}

	if _, err := r.Complete(ctx, CompletionRequest{}); err != nil {
		t.Fatalf("second Complete() error = %v", err)
	}

	_, err := r.Complete(ctx, CompletionRequest{})
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("third Complete() error = %v, want ErrBudgetExceeded", err)
	}
	if mock.Calls() != 2 {
		t.Errorf("provider calls = %d, want 2 (no call once exhausted)", mock.Calls())
	}
}

func TestRouter_BudgetIgnoredWithoutCaller(t *testing.T) {
	r := NewRouter()
	r.Register("mock", NewMockProvider("hello"))
	budget := NewInMemoryBudget(1)
	r.SetBudget(budget)

	for range 3 {
		if _, err := r.Complete(context.Background(), CompletionRequest{}); err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
	}
}

func TestCallerFrom(t *testing.T) {
	if _, ok := CallerFrom(context.Background()); ok {
		t.Error("CallerFrom() ok on empty context")
	}
	c, ok := CallerFrom(WithCaller(context.Background(), "web", "abc"))
	if !ok || c.TenantID != "web" || c.UserID != "abc" {
		t.Errorf("CallerFrom() = %+v, %v", c, ok)
	}
}
