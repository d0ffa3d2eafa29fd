// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"copyforge/internal/apperr"
)

// SystemPrompt frames every generation request.
const SystemPrompt = "You are an expert e-commerce copywriter and SEO specialist. " +
	"Reply with the product description only, formatted as an HTML fragment " +
	"without <html>, <head> or <body> wrappers and without markdown."

// Generator produces normalized text for a rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Observer receives one call per provider attempt. internal/metrics
// implements it.
type Observer interface {
	ObserveGeneration(provider, outcome string, elapsed time.Duration, promptTokens int)
}

// ClientConfig tunes a Client.
type ClientConfig struct {
	// Timeout bounds each provider attempt; zero means no extra deadline.
	Timeout time.Duration
	// MaxAttempts is how many times a ProviderUnavailable failure is tried
	// in total. Values below 1 mean 1.
	MaxAttempts int
	// Backoff is the pause before the second attempt, doubling afterwards.
	Backoff time.Duration
	// MaxPromptTokens rejects longer prompts when a TokenCounter is set;
	// zero means unlimited.
	MaxPromptTokens int
}

// Client is the generation entry point used by the optimizer: it sends a
// prompt to the registry's active provider and returns the normalized
// HTML fragment.
type Client struct {
	registry *Registry
	cfg      ClientConfig
	counter  TokenCounter
	observer Observer
	log      *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithTokenCounter enables prompt token counting and budgeting.
func WithTokenCounter(tc TokenCounter) Option {
	return func(c *Client) { c.counter = tc }
}

// WithObserver reports every attempt to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a Client over registry.
func NewClient(registry *Registry, cfg ClientConfig, log *zap.Logger, opts ...Option) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{registry: registry, cfg: cfg, log: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate sends prompt to the active provider. Transport failures come
// back as ProviderUnavailable (after MaxAttempts tries), provider
// rejections and empty answers as Provider.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	const op = "ai.Generate"

	p, err := c.registry.Active()
	if err != nil {
		return "", apperr.E(apperr.Provider, op, err)
	}

	tokens := 0
	if c.counter != nil {
		tokens = c.counter.Count(prompt)
		if c.cfg.MaxPromptTokens > 0 && tokens > c.cfg.MaxPromptTokens {
			return "", apperr.Errorf(apperr.Validation, op,
				"prompt is %d tokens, limit is %d", tokens, c.cfg.MaxPromptTokens)
		}
	}

	backoff := c.cfg.Backoff
	for attempt := 1; ; attempt++ {
		text, err := c.attempt(ctx, p, prompt, tokens)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, apperr.ProviderUnavailable) || attempt >= c.cfg.MaxAttempts || ctx.Err() != nil {
			return "", err
		}

		c.log.Warn("provider unavailable, retrying",
			zap.String("provider", p.Name()), zap.Int("attempt", attempt), zap.Error(err))
		if backoff > 0 {
			select {
			case <-ctx.Done():
				return "", apperr.E(apperr.ProviderUnavailable, op, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
}

func (c *Client) attempt(ctx context.Context, p Provider, prompt string, tokens int) (string, error) {
	const op = "ai.Generate"
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := p.Generate(ctx, SystemPrompt, prompt)
	elapsed := time.Since(start)

	var out string
	if err == nil {
		out = Normalize(raw)
		if out == "" {
			err = apperr.Errorf(apperr.Provider, op, "%s returned an empty response", p.Name())
		}
	}
	err = classify(op, err)
	c.observe(p.Name(), err, elapsed, tokens)
	if err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) observe(provider string, err error, elapsed time.Duration, tokens int) {
	if c.observer == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	c.observer.ObserveGeneration(provider, outcome, elapsed, tokens)
}
