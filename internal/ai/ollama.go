// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// ollamaProvider implements the Provider interface on a local Ollama
// server through its native chat API.
type ollamaProvider struct {
	model  string
	client *api.Client
}

// newOllama creates an Ollama provider. BaseURL is the server root; a
// trailing /v1 (the OpenAI-compatible prefix) is tolerated.
func newOllama(cfg ProviderConfig) (*ollamaProvider, error) {
	base := strings.TrimSuffix(strings.TrimSuffix(cfg.BaseURL, "/"), "/v1")
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("ollama base url %q: %w", cfg.BaseURL, err)
	}
	return &ollamaProvider{
		model:  cfg.Model,
		client: api.NewClient(u, &http.Client{Timeout: 300 * time.Second}),
	}, nil
}

func (p *ollamaProvider) Name() string { return "ollama" }

// Generate runs a non-streaming chat request.
func (p *ollamaProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model: p.model,
		Messages: []api.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: &stream,
	}

	var out strings.Builder
	err := p.client.Chat(ctx, req, func(r api.ChatResponse) error {
		out.WriteString(r.Message.Content)
		return nil
	})
	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) {
			return "", &StatusError{Provider: "ollama", StatusCode: statusErr.StatusCode, Message: statusErr.ErrorMessage}
		}
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return out.String(), nil
}
