package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// BudgetChecker checks and records token usage against budgets.
type BudgetChecker interface {
	// Check returns true if the tenant/user has budget remaining.
	Check(ctx context.Context, tenantID, userID string) (bool, error)
	// Record records token usage for a tenant/user.
	Record(ctx context.Context, tenantID, userID string, tokens int) error
	// Usage returns current usage for a tenant/user.
	Usage(ctx context.Context, tenantID, userID string) (used int64, budget int64, err error)
}

// InMemoryBudget is a simple in-memory budget tracker for single-instance deployments.
type InMemoryBudget struct {
	mu            sync.RWMutex
	defaultBudget int64            // applies when no explicit budget is set; 0 means unlimited
	budgets       map[string]int64 // key -> budget limit
	usage         map[string]int64 // key -> tokens used
}

// NewInMemoryBudget creates a new in-memory budget tracker.
func NewInMemoryBudget(defaultBudget int64) *InMemoryBudget {
	return &InMemoryBudget{
		defaultBudget: defaultBudget,
		budgets:       make(map[string]int64),
		usage:         make(map[string]int64),
	}
}

// SetBudget sets the token budget for a tenant/user.
func (b *InMemoryBudget) SetBudget(tenantID, userID string, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.budgets[budgetKey(tenantID, userID)] = tokens
}

func (b *InMemoryBudget) Check(_ context.Context, tenantID, userID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	key := budgetKey(tenantID, userID)
	budget := b.limit(key)
	if budget <= 0 {
		return true, nil
	}
	return b.usage[key] < budget, nil
}

func (b *InMemoryBudget) Record(_ context.Context, tenantID, userID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.usage[budgetKey(tenantID, userID)] += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(_ context.Context, tenantID, userID string) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	key := budgetKey(tenantID, userID)
	return b.usage[key], b.limit(key), nil
}

func (b *InMemoryBudget) limit(key string) int64 {
	if budget, ok := b.budgets[key]; ok {
		return budget
	}
	return b.defaultBudget
}

// RedisBudget tracks usage in Redis/Dragonfly so quotas survive restarts and
// are shared between instances. Usage counters expire after window.
type RedisBudget struct {
	client        *redis.Client
	defaultBudget int64
	window        time.Duration
}

// NewRedisBudget creates a Redis-backed budget tracker.
func NewRedisBudget(client *redis.Client, defaultBudget int64, window time.Duration) *RedisBudget {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &RedisBudget{client: client, defaultBudget: defaultBudget, window: window}
}

// SetBudget sets the token budget for a tenant/user.
func (b *RedisBudget) SetBudget(ctx context.Context, tenantID, userID string, tokens int64) error {
	return b.client.Set(ctx, redisLimitKey(tenantID, userID), tokens, 0).Err()
}

func (b *RedisBudget) Check(ctx context.Context, tenantID, userID string) (bool, error) {
	used, budget, err := b.Usage(ctx, tenantID, userID)
	if err != nil {
		return false, err
	}
	if budget <= 0 {
		return true, nil
	}
	return used < budget, nil
}

func (b *RedisBudget) Record(ctx context.Context, tenantID, userID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	key := redisUsageKey(tenantID, userID)
	pipe := b.client.TxPipeline()
	pipe.IncrBy(ctx, key, int64(tokens))
	pipe.ExpireNX(ctx, key, b.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func (b *RedisBudget) Usage(ctx context.Context, tenantID, userID string) (int64, int64, error) {
	used, err := b.client.Get(ctx, redisUsageKey(tenantID, userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("read usage: %w", err)
	}

	budget, err := b.client.Get(ctx, redisLimitKey(tenantID, userID)).Int64()
	if errors.Is(err, redis.Nil) {
		budget = b.defaultBudget
	} else if err != nil {
		return 0, 0, fmt.Errorf("read budget: %w", err)
	}
	return used, budget, nil
}

func budgetKey(tenantID, userID string) string {
	return tenantID + ":" + userID
}

func redisUsageKey(tenantID, userID string) string {
	return "budget:usage:" + budgetKey(tenantID, userID)
}

func redisLimitKey(tenantID, userID string) string {
	return "budget:limit:" + budgetKey(tenantID, userID)
}
