package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"copyforge/internal/ai"
	"copyforge/internal/cache"
	"copyforge/internal/config"
	"copyforge/internal/database"
	"copyforge/internal/events"
	"copyforge/internal/metrics"
	"copyforge/internal/optimizer"
	"copyforge/internal/prompt"
	"copyforge/internal/secrets"
	"copyforge/internal/storage"
	"copyforge/internal/store"
	"copyforge/internal/storefront"
	"copyforge/internal/templates"
)

// app holds the wired services shared by serve and the batch commands.
type app struct {
	db        *sql.DB
	redis     *redis.Client
	events    events.Publisher
	reports   *storage.Reports
	metrics   *metrics.Metrics
	shops     *store.ShopStore
	templates *templates.Service
	svc       *optimizer.Service
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *app, err error) {
	a := &app{events: events.Nop{}}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if a.db, err = database.Connect(ctx, cfg.DSN(), log); err != nil {
		return nil, err
	}
	if a.redis, err = cache.Connect(ctx, cfg.RedisAddr(), cfg.RedisPassword, cfg.RedisDB, log); err != nil {
		return nil, err
	}

	box, err := secrets.NewBox(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("secret box: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(reg)

	registry := ai.NewRegistry(cfg.AIProvider, providerConfigs(cfg))
	opts := []ai.Option{ai.WithObserver(a.metrics)}
	if cfg.AITokenEncoding != "" {
		counter, err := ai.NewTiktokenCounter(cfg.AITokenEncoding)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ai.WithTokenCounter(counter))
	}
	generator := ai.NewClient(registry, ai.ClientConfig{
		Timeout:         cfg.AITimeout,
		MaxAttempts:     cfg.AIMaxAttempts,
		Backoff:         cfg.AIRetryBackoff,
		MaxPromptTokens: cfg.AIMaxPromptToken,
	}, log, opts...)

	a.shops = store.NewShopStore(a.db, box)
	a.templates = templates.NewService(store.NewTemplateStore(a.db), log)
	front := storefront.NewClient()

	deps := optimizer.Deps{
		Engine:     optimizer.NewEngine(a.templates, prompt.NewRenderer(0, log), generator, front, log),
		Shops:      a.shops,
		Products:   store.NewProductStore(a.db),
		Storefront: front,
		Installer: storefront.NewOAuth(storefront.OAuthConfig{
			ClientID:     cfg.ShopifyAPIKey,
			ClientSecret: cfg.ShopifyAPISecret,
			Scopes:       cfg.Scopes(),
			RedirectURL:  cfg.ShopifyRedirectURL,
		}),
		States:        cache.NewStateStore(a.redis, 0),
		Lock:          cache.NewBatchLock(a.redis, cfg.BatchLockTTL),
		Metrics:       a.metrics,
		WebhookSecret: cfg.ShopifyAPISecret,
		APIVersion:    cfg.ShopifyAPIVersion,
	}

	if cfg.RabbitMQURL != "" {
		pub, err := events.Dial(cfg.RabbitMQURL, log)
		if err != nil {
			log.Warn("event publishing disabled", zap.Error(err))
		} else {
			a.events = pub
		}
	}
	deps.Events = a.events

	a.reports, err = storage.New(storage.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
	})
	if err != nil {
		return nil, err
	}
	if a.reports != nil {
		deps.Reports = a.reports
	} else {
		log.Info("report storage not configured")
	}

	a.svc = optimizer.NewService(deps, log)
	return a, nil
}

func providerConfigs(cfg *config.Config) map[string]ai.ProviderConfig {
	return map[string]ai.ProviderConfig{
		"openai":  {APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL},
		"gemini":  {APIKey: cfg.GeminiKey, Model: cfg.GeminiModel, BaseURL: cfg.GeminiBaseURL},
		"claude":  {APIKey: cfg.ClaudeKey, Model: cfg.ClaudeModel, BaseURL: cfg.ClaudeBaseURL},
		"mistral": {APIKey: cfg.MistralKey, Model: cfg.MistralModel, BaseURL: cfg.MistralBaseURL},
		"ollama":  {Model: cfg.OllamaModel, BaseURL: cfg.OllamaBaseURL},
	}
}

func (a *app) close() error {
	var errs []error
	if a.events != nil {
		errs = append(errs, a.events.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
