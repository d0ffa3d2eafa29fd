// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// openAIProvider implements the Provider interface on the OpenAI chat
// completions API. Any OpenAI-compatible endpoint works via BaseURL.
type openAIProvider struct {
	name   string
	model  string
	client *openai.Client
}

// newOpenAI creates a new OpenAI provider.
func newOpenAI(cfg ProviderConfig) *openAIProvider {
	return newOpenAICompatible("openai", "https://api.openai.com/v1", cfg)
}

func newOpenAICompatible(name, defaultURL string, cfg ProviderConfig) *openAIProvider {
	conf := openai.DefaultConfig(cfg.APIKey)
	conf.BaseURL = defaultURL
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	conf.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	return &openAIProvider{
		name:   name,
		model:  cfg.Model,
		client: openai.NewClientWithConfig(conf),
	}
}

func (p *openAIProvider) Name() string { return p.name }

// Generate sends a chat completion request and returns the assistant's
// response text.
func (p *openAIProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{Provider: p.name, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
			return "", &StatusError{Provider: p.name, StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
		}
		return "", fmt.Errorf("%s chat: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices in response", p.name)
	}
	return resp.Choices[0].Message.Content, nil
}
