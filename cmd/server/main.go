package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qhoangfmsc/30days-english/internal/ai"
	"github.com/qhoangfmsc/30days-english/internal/catalog"
	"github.com/qhoangfmsc/30days-english/internal/challenge"
	"github.com/qhoangfmsc/30days-english/internal/events"
	"github.com/qhoangfmsc/30days-english/internal/generator"
	"github.com/qhoangfmsc/30days-english/internal/platform/cache"
	"github.com/qhoangfmsc/30days-english/internal/platform/config"
	"github.com/qhoangfmsc/30days-english/internal/platform/database"
	"github.com/qhoangfmsc/30days-english/internal/platform/logging"
	"github.com/qhoangfmsc/30days-english/internal/server"
	"github.com/qhoangfmsc/30days-english/internal/session"
	"github.com/qhoangfmsc/30days-english/internal/share"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, os.Stdout)

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}

	var checkers []server.Checker

	var db *database.DB
	if cfg.Database.URL != "" {
		db, err = database.New(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		checkers = append(checkers, db)
	}

	var kv *cache.Cache
	if cfg.Cache.URL != "" {
		kv, err = cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return err
		}
		defer func() { _ = kv.Close() }()
		checkers = append(checkers, kv)
	}

	router, err := newRouter(cfg)
	if err != nil {
		return err
	}
	if cfg.Budget.SessionTokens > 0 {
		if kv != nil {
			router.SetBudget(ai.NewRedisBudget(kv.Client, cfg.Budget.SessionTokens, cfg.Budget.Window))
		} else {
			router.SetBudget(ai.NewInMemoryBudget(cfg.Budget.SessionTokens))
		}
	}
	if !cfg.HasAIProvider() {
		slog.Warn("no AI provider credential configured, generation requests will fail", "provider", cfg.AI.Provider)
	}

	gen, err := generator.New(router, challenge.NewBuilder(cat),
		generator.WithModel(cfg.AI.Model),
		generator.WithTemperature(cfg.AI.Temperature),
		generator.WithMaxTokens(cfg.AI.MaxTokens),
		generator.WithSourceLanguage(cfg.AI.SourceLanguage),
	)
	if err != nil {
		return fmt.Errorf("creating generator: %w", err)
	}

	var sink events.EventLogger = events.NewMemoryLogger()
	if db != nil {
		pg, err := events.NewPostgresLogger(ctx, db.Pool)
		if err != nil {
			return err
		}
		sink = pg
	}

	gateway, err := newGateway(cfg)
	if err != nil {
		return err
	}

	signer, err := session.NewSigner(cfg.Session.Secret)
	if err != nil {
		return err
	}
	store := session.NewStore(cfg.Session.IdleTTL)
	go store.Run(ctx, time.Minute)

	cronStart, err := cfg.Cron.Start()
	if err != nil {
		return err
	}

	app, err := server.New(gen, session.NewManager(store, signer, cfg.Session.SecureCookie, cfg.Session.IdleTTL), cat,
		server.WithEvents(sink),
		server.WithGateway(gateway),
		server.WithWebhookAllowlist(share.NewWebhookAllowlist(cfg.Discord.WebhookHosts...)),
		server.WithCheckers(checkers...),
		server.WithCronStart(cronStart),
		server.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      app.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "provider", cfg.AI.Provider, "channels", gateway.Channels())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	closed := make(chan struct{})
	go func() {
		app.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-shutdownCtx.Done():
		slog.Warn("background generations still running at exit")
	}
	return nil
}

// newRouter registers every provider. The configured default goes first so
// unrouted tasks resolve to it; ENGLISH_AI_ROUTES pins individual tasks.
func newRouter(cfg *config.Config) (*ai.Router, error) {
	providers := map[string]ai.Provider{
		"openrouter": ai.NewOpenRouterProvider(cfg.AI.OpenRouter.APIKey,
			ai.WithOpenRouterApp(cfg.Server.AppURL, "30 Days English")),
		"openai":    ai.NewOpenAIProvider(cfg.AI.OpenAI.APIKey),
		"deepseek":  ai.NewDeepSeekProvider(cfg.AI.DeepSeek.APIKey),
		"anthropic": ai.NewAnthropicProvider(cfg.AI.Anthropic.APIKey),
		"google":    ai.NewGoogleProvider(cfg.AI.Google.APIKey),
	}
	if cfg.AI.Ollama.Enabled || cfg.AI.Provider == "ollama" {
		providers["ollama"] = ai.NewOllamaProvider(cfg.AI.Ollama.URL)
	}

	router := ai.NewRouter()
	def, ok := providers[cfg.AI.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AI.Provider)
	}
	router.Register(cfg.AI.Provider, def)
	for _, name := range config.Providers {
		if p, ok := providers[name]; ok && name != cfg.AI.Provider {
			router.Register(name, p)
		}
	}

	for task, name := range cfg.AI.Routes {
		t, err := ai.ParseTaskType(task)
		if err != nil {
			return nil, err
		}
		if err := router.Route(t, name); err != nil {
			return nil, err
		}
	}
	return router, nil
}

// newGateway always registers Discord; Telegram joins when configured.
func newGateway(cfg *config.Config) (*share.Gateway, error) {
	gw := share.NewGateway()
	gw.Register(share.Discord, share.NewDiscordChannel(cfg.Discord.WebhookURL, nil))

	if cfg.TelegramEnabled() {
		tg, err := share.NewTelegramChannel(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			return nil, fmt.Errorf("creating telegram channel: %w", err)
		}
		gw.Register(share.Telegram, tg)
	}
	return gw, nil
}
