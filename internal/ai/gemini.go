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

	"google.golang.org/genai"
)

// geminiProvider implements the Provider interface on the Gemini API via
// the Google Gen AI SDK.
type geminiProvider struct {
	model   string
	client  *genai.Client
	initErr error
}

// newGemini creates a new Google Gemini provider. Client construction
// errors are reported by Generate.
func newGemini(cfg ProviderConfig) *geminiProvider {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: 120 * time.Second},
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	return &geminiProvider{model: cfg.Model, client: client, initErr: err}
}

func (p *geminiProvider) Name() string { return "gemini" }

// Generate sends a generateContent request and returns the candidate text.
func (p *geminiProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if p.initErr != nil {
		return "", fmt.Errorf("gemini client: %w", p.initErr)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(userPrompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{Provider: "gemini", StatusCode: apiErr.Code, Message: apiErr.Message}
		}
		var apiErrPtr *genai.APIError
		if errors.As(err, &apiErrPtr) {
			return "", &StatusError{Provider: "gemini", StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message}
		}
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: no text content in response")
	}
	return text, nil
}
