package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Router sends each task to exactly one registered provider.
// There is no fallback chain: a failed completion is returned to the caller as is.
type Router struct {
	providers map[string]Provider
	order     []string
	routes    map[TaskType]string
	budget    BudgetChecker
	mu        sync.RWMutex
}

// NewRouter creates a new AI router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
		routes:    make(map[TaskType]string),
	}
}

// Register adds a provider to the router. The first registered provider is the default route.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		r.order = append(r.order, name)
	}
	r.providers[name] = provider
}

// Route pins a task type to a registered provider.
func (r *Router) Route(task TaskType, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("route %s: unknown provider %q", task, name)
	}
	r.routes[task] = name
	return nil
}

// SetBudget enables token budget enforcement for callers identified via WithCaller.
func (r *Router) SetBudget(b BudgetChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.budget = b
}

// Complete sends the request to the provider routed for req.Task.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	name, provider := r.resolve(req.Task)
	budget := r.budget
	r.mu.RUnlock()

	if provider == nil {
		return CompletionResponse{}, fmt.Errorf("no AI provider registered: %w", ErrNoCredential)
	}

	caller, hasCaller := CallerFrom(ctx)
	if budget != nil && hasCaller {
		ok, err := budget.Check(ctx, caller.TenantID, caller.UserID)
		if err != nil {
			return CompletionResponse{}, fmt.Errorf("check budget: %w", err)
		}
		if !ok {
			return CompletionResponse{}, ErrBudgetExceeded
		}
	}

	resp, err := provider.Complete(ctx, req)
	if err != nil {
		return CompletionResponse{}, err
	}

	slog.Debug("AI request completed",
		"provider", name,
		"task", req.Task.String(),
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
	)

	if budget != nil && hasCaller {
		if err := budget.Record(ctx, caller.TenantID, caller.UserID, resp.TotalTokens()); err != nil {
			slog.Warn("failed to record token usage", "error", err, "user_id", caller.UserID)
		}
	}
	return resp, nil
}

func (r *Router) resolve(task TaskType) (string, Provider) {
	if name, ok := r.routes[task]; ok {
		return name, r.providers[name]
	}
	if len(r.order) == 0 {
		return "", nil
	}
	name := r.order[0]
	return name, r.providers[name]
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// HealthCheck probes the default provider.
func (r *Router) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	_, provider := r.resolve(TaskLesson)
	r.mu.RUnlock()
	if provider == nil {
		return fmt.Errorf("no AI provider registered")
	}
	return provider.HealthCheck(ctx)
}

// Caller identifies who a completion is billed to.
type Caller struct {
	TenantID string
	UserID   string
}

type callerKey struct{}

// WithCaller attaches a budget identity to ctx.
func WithCaller(ctx context.Context, tenantID, userID string) context.Context {
	return context.WithValue(ctx, callerKey{}, Caller{TenantID: tenantID, UserID: userID})
}

// CallerFrom returns the identity set by WithCaller.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
