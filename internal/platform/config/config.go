// Package config loads application configuration from environment variables.
// All variables use the ENGLISH_ prefix.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // ENGLISH_CRON_TIMEZONE must resolve on hosts without zoneinfo
)

// Providers lists the accepted ENGLISH_AI_PROVIDER values.
var Providers = []string{"openrouter", "openai", "deepseek", "anthropic", "google", "ollama"}

// Tasks lists the task names accepted in ENGLISH_AI_ROUTES.
var Tasks = []string{"lesson", "custom_lesson", "schedule", "grammar"}

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	AI          AIConfig
	Budget      BudgetConfig
	Session     SessionConfig
	Discord     DiscordConfig
	Telegram    TelegramConfig
	Cron        CronConfig
	Log         LogConfig
	CatalogPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port   int
	Host   string
	AppURL string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL keeps
// events in memory.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Dragonfly/Redis connection settings. An empty URL keeps
// token budgets in memory.
type CacheConfig struct {
	URL string
}

// AIConfig holds generation settings and credentials for all AI providers.
type AIConfig struct {
	Provider       string
	Routes         map[string]string // task -> provider
	Model          string
	Temperature    float64
	MaxTokens      int
	SourceLanguage string

	OpenAI     OpenAIConfig
	Anthropic  AnthropicConfig
	DeepSeek   DeepSeekConfig
	Google     GoogleConfig
	Ollama     OllamaConfig
	OpenRouter OpenRouterConfig
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	APIKey string
}

// AnthropicConfig holds Anthropic provider settings.
type AnthropicConfig struct {
	APIKey string
}

// DeepSeekConfig holds DeepSeek provider settings (OpenAI-compatible).
type DeepSeekConfig struct {
	APIKey string
}

// GoogleConfig holds Google Gemini provider settings.
type GoogleConfig struct {
	APIKey string
}

// OllamaConfig holds self-hosted Ollama settings.
type OllamaConfig struct {
	Enabled bool
	URL     string
}

// OpenRouterConfig holds OpenRouter provider settings.
type OpenRouterConfig struct {
	APIKey string
}

// BudgetConfig caps tokens per browser session. Zero disables the cap.
type BudgetConfig struct {
	SessionTokens int64
	Window        time.Duration
}

// SessionConfig holds browser session settings.
type SessionConfig struct {
	Secret       string
	IdleTTL      time.Duration
	SecureCookie bool
}

// DiscordConfig holds the default webhook for notifications and the cron report.
// WebhookHosts extends the hosts accepted for webhooks supplied by API callers.
type DiscordConfig struct {
	WebhookURL   string
	WebhookHosts []string
}

// TelegramConfig holds Telegram Bot API settings. Both fields are needed to
// enable the channel.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// CronConfig holds the working days report settings.
type CronConfig struct {
	StartDate string // YYYY-MM-DD
	Timezone  string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with ENGLISH_ prefix.
func Load() (*Config, error) {
	routes, err := parseRoutes(envStr("ENGLISH_AI_ROUTES", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:   envInt("ENGLISH_SERVER_PORT", 8080),
			Host:   envStr("ENGLISH_SERVER_HOST", "0.0.0.0"),
			AppURL: envStr("ENGLISH_APP_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:      envStr("ENGLISH_DATABASE_URL", ""),
			MaxConns: envInt("ENGLISH_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("ENGLISH_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			URL: envStr("ENGLISH_CACHE_URL", ""),
		},
		AI: AIConfig{
			Provider:       strings.ToLower(envStr("ENGLISH_AI_PROVIDER", "openrouter")),
			Routes:         routes,
			Model:          envStr("ENGLISH_AI_MODEL", ""),
			Temperature:    envFloat("ENGLISH_AI_TEMPERATURE", 1.2),
			MaxTokens:      envInt("ENGLISH_AI_MAX_TOKENS", 0),
			SourceLanguage: envStr("ENGLISH_SOURCE_LANGUAGE", "Vietnamese"),
			OpenAI: OpenAIConfig{
				APIKey: envStr("ENGLISH_AI_OPENAI_API_KEY", ""),
			},
			Anthropic: AnthropicConfig{
				APIKey: envStr("ENGLISH_AI_ANTHROPIC_API_KEY", ""),
			},
			DeepSeek: DeepSeekConfig{
				APIKey: envStr("ENGLISH_AI_DEEPSEEK_API_KEY", ""),
			},
			Google: GoogleConfig{
				APIKey: envStr("ENGLISH_AI_GOOGLE_API_KEY", ""),
			},
			Ollama: OllamaConfig{
				Enabled: envBool("ENGLISH_AI_OLLAMA_ENABLED", false),
				URL:     envStr("ENGLISH_AI_OLLAMA_URL", "http://localhost:11434"),
			},
			OpenRouter: OpenRouterConfig{
				APIKey: envStr("ENGLISH_AI_OPENROUTER_API_KEY", ""),
			},
		},
		Budget: BudgetConfig{
			SessionTokens: int64(envInt("ENGLISH_BUDGET_SESSION_TOKENS", 0)),
			Window:        time.Duration(envInt("ENGLISH_BUDGET_WINDOW_HOURS", 24)) * time.Hour,
		},
		Session: SessionConfig{
			Secret:       envStr("ENGLISH_SESSION_SECRET", ""),
			IdleTTL:      time.Duration(envInt("ENGLISH_SESSION_IDLE_MINUTES", 120)) * time.Minute,
			SecureCookie: envBool("ENGLISH_SESSION_SECURE_COOKIE", false),
		},
		Discord: DiscordConfig{
			WebhookURL:   envStr("ENGLISH_DISCORD_WEBHOOK_URL", ""),
			WebhookHosts: envList("ENGLISH_DISCORD_WEBHOOK_HOSTS"),
		},
		Telegram: TelegramConfig{
			BotToken: envStr("ENGLISH_TELEGRAM_BOT_TOKEN", ""),
			ChatID:   envStr("ENGLISH_TELEGRAM_CHAT_ID", ""),
		},
		Cron: CronConfig{
			StartDate: envStr("ENGLISH_CRON_START_DATE", "2025-07-01"),
			Timezone:  envStr("ENGLISH_CRON_TIMEZONE", "Asia/Ho_Chi_Minh"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envStr("ENGLISH_LOG_LEVEL", "info")),
			Format: strings.ToLower(envStr("ENGLISH_LOG_FORMAT", "json")),
		},
		CatalogPath: envStr("ENGLISH_CATALOG_PATH", ""),
	}

	return cfg, nil
}

// Validate checks enums and ranges. Missing provider credentials are not an
// error here; generation reports them per request.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("ENGLISH_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if !slices.Contains(Providers, c.AI.Provider) {
		return fmt.Errorf("ENGLISH_AI_PROVIDER must be one of %s, got %q", strings.Join(Providers, ", "), c.AI.Provider)
	}
	for task, provider := range c.AI.Routes {
		if !slices.Contains(Providers, provider) {
			return fmt.Errorf("ENGLISH_AI_ROUTES: unknown provider %q for task %s", provider, task)
		}
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return fmt.Errorf("ENGLISH_AI_TEMPERATURE must be between 0 and 2, got %v", c.AI.Temperature)
	}
	if c.AI.MaxTokens < 0 {
		return fmt.Errorf("ENGLISH_AI_MAX_TOKENS must not be negative, got %d", c.AI.MaxTokens)
	}
	if strings.TrimSpace(c.AI.SourceLanguage) == "" {
		return fmt.Errorf("ENGLISH_SOURCE_LANGUAGE must not be empty")
	}

	if c.Budget.SessionTokens < 0 {
		return fmt.Errorf("ENGLISH_BUDGET_SESSION_TOKENS must not be negative, got %d", c.Budget.SessionTokens)
	}
	if c.Database.URL != "" && c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("ENGLISH_DATABASE_MIN_CONNS (%d) exceeds ENGLISH_DATABASE_MAX_CONNS (%d)", c.Database.MinConns, c.Database.MaxConns)
	}

	if _, err := c.Cron.Start(); err != nil {
		return err
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("ENGLISH_LOG_LEVEL must be debug, info, warn or error, got %q", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("ENGLISH_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// HasAIProvider returns true if at least one AI provider is configured.
func (c *Config) HasAIProvider() bool {
	return c.AI.OpenAI.APIKey != "" ||
		c.AI.Anthropic.APIKey != "" ||
		c.AI.DeepSeek.APIKey != "" ||
		c.AI.Google.APIKey != "" ||
		c.AI.OpenRouter.APIKey != "" ||
		c.AI.Ollama.Enabled
}

// TelegramEnabled reports whether the Telegram share channel can be used.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Location returns the report timezone.
func (c CronConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("ENGLISH_CRON_TIMEZONE: %w", err)
	}
	return loc, nil
}

// Start returns the report start date in the report timezone.
func (c CronConfig) Start() (time.Time, error) {
	loc, err := c.Location()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(time.DateOnly, c.StartDate, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("ENGLISH_CRON_START_DATE must be YYYY-MM-DD, got %q", c.StartDate)
	}
	return t, nil
}

// parseRoutes reads "task=provider" pairs separated by commas.
func parseRoutes(v string) (map[string]string, error) {
	routes := map[string]string{}
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		task, provider, ok := strings.Cut(pair, "=")
		task = strings.ToLower(strings.TrimSpace(task))
		provider = strings.ToLower(strings.TrimSpace(provider))
		if !ok || provider == "" {
			return nil, fmt.Errorf("ENGLISH_AI_ROUTES: malformed entry %q, want task=provider", pair)
		}
		if !slices.Contains(Tasks, task) {
			return nil, fmt.Errorf("ENGLISH_AI_ROUTES: unknown task %q", task)
		}
		routes[task] = provider
	}
	return routes, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envList reads a comma-separated list, dropping blank entries.
func envList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
