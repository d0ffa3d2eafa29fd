// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

// newMistral creates a Mistral provider. Mistral serves an
// OpenAI-compatible API at a different base URL.
func newMistral(cfg ProviderConfig) *openAIProvider {
	return newOpenAICompatible("mistral", "https://api.mistral.ai/v1", cfg)
}
