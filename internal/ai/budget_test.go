package ai

import (
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestInMemoryBudget_NoBudgetSet(t *testing.T) {
	b := NewInMemoryBudget(0)

	ok, err := b.Check(t.Context(), "tenant1", "user1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !ok {
		t.Error("Check() = false, want true (no budget means unlimited)")
	}
}

func TestInMemoryBudget_WithinBudget(t *testing.T) {
	ctx := t.Context()
	b := NewInMemoryBudget(0)
	b.SetBudget("tenant1", "user1", 1000)

	if err := b.Record(ctx, "tenant1", "user1", 500); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	ok, err := b.Check(ctx, "tenant1", "user1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !ok {
		t.Error("Check() = false, want true (500 < 1000)")
	}
}

func TestInMemoryBudget_OverBudget(t *testing.T) {
	ctx := t.Context()
	b := NewInMemoryBudget(0)
	b.SetBudget("tenant1", "user1", 100)

	if err := b.Record(ctx, "tenant1", "user1", 150); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	ok, err := b.Check(ctx, "tenant1", "user1")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if ok {
		t.Error("Check() = true, want false (150 >= 100)")
	}
}

func TestInMemoryBudget_DefaultBudget(t *testing.T) {
	ctx := t.Context()
	b := NewInMemoryBudget(200)

	_ = b.Record(ctx, "t", "session-a", 250)
	_ = b.Record(ctx, "t", "session-b", 50)

	tests := []struct {
		user string
		want bool
	}{
		{"session-a", false},
		{"session-b", true},
		{"session-c", true},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			ok, err := b.Check(ctx, "t", tt.user)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if ok != tt.want {
				t.Errorf("Check(%s) = %v, want %v", tt.user, ok, tt.want)
			}
		})
	}

	// An explicit budget overrides the default.
	b.SetBudget("t", "session-a", 1000)
	if ok, _ := b.Check(ctx, "t", "session-a"); !ok {
		t.Error("explicit budget should override default")
	}
}

func TestInMemoryBudget_Usage(t *testing.T) {
	ctx := t.Context()
	b := NewInMemoryBudget(0)
	b.SetBudget("tenant1", "user1", 5000)
	_ = b.Record(ctx, "tenant1", "user1", 1200)
	_ = b.Record(ctx, "tenant1", "user1", 800)

	used, budget, err := b.Usage(ctx, "tenant1", "user1")
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if used != 2000 {
		t.Errorf("used = %d, want 2000", used)
	}
	if budget != 5000 {
		t.Errorf("budget = %d, want 5000", budget)
	}
}

func TestInMemoryBudget_NegativeTokens(t *testing.T) {
	b := NewInMemoryBudget(0)
	if err := b.Record(t.Context(), "t", "u", -1); err == nil {
		t.Error("Record() should reject negative tokens")
	}
}

func TestRedisBudget(t *testing.T) {
	url := os.Getenv("ENGLISH_TEST_REDIS_URL")
	if url == "" || testing.Short() {
		t.Skip("set ENGLISH_TEST_REDIS_URL to run redis budget tests")
	}

	ctx := t.Context()
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("ParseURL() error = %v", err)
	}
	client := redis.NewClient(opts)
	defer func() { _ = client.Close() }()

	tenant := "test-" + time.Now().Format("150405.000000")
	defer client.Del(ctx, redisUsageKey(tenant, "u"), redisLimitKey(tenant, "u"))

	b := NewRedisBudget(client, 100, time.Minute)

	if err := b.Record(ctx, tenant, "u", 60); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if ok, err := b.Check(ctx, tenant, "u"); err != nil || !ok {
		t.Fatalf("Check() = %v, %v; want true", ok, err)
	}
	if err := b.Record(ctx, tenant, "u", 60); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if ok, _ := b.Check(ctx, tenant, "u"); ok {
		t.Error("Check() = true, want false after exceeding default budget")
	}

	if err := b.SetBudget(ctx, tenant, "u", 500); err != nil {
		t.Fatalf("SetBudget() error = %v", err)
	}
	used, budget, err := b.Usage(ctx, tenant, "u")
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if used != 120 || budget != 500 {
		t.Errorf("Usage() = %d/%d, want 120/500", used, budget)
	}

	ttl := client.TTL(ctx, redisUsageKey(tenant, "u")).Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("usage TTL = %v, want within window", ttl)
	}
}
