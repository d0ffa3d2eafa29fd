// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package optimizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"copyforge/internal/ai"
	"copyforge/internal/apperr"
	"copyforge/internal/models"
	"copyforge/internal/prefs"
	"copyforge/internal/prompt"
)

// ---------------------------------------------------------------------------
// Optimize
// ---------------------------------------------------------------------------

func TestOptimizeUsesActiveTemplate(t *testing.T) {
	h := newHarness(t)
	h.shop.Preferences = models.PreferencesPatch{Tone: models.Ptr("playful")}
	p := h.products[0]

	got, err := h.engine.Optimize(context.Background(), &h.shop, p, nil)
	require.NoError(t, err)

	require.Equal(t, 1, h.gen.calls())
	assert.Equal(t, "Describe A (old A) in a playful tone.", h.gen.prompts[0])

	assert.Equal(t, models.StateOptimized, got.State)
	require.NotNil(t, got.OptimizedDescription)
	assert.Equal(t, "<p>optimized</p>", *got.OptimizedDescription)
	require.NotNil(t, got.LastOptimizedAt)
	assert.Equal(t, fixedNow, *got.LastOptimizedAt)
	assert.Equal(t, "old A", got.Description, "canonical text changes only on deploy")
	assert.Equal(t, 1, h.templates.usesOf(h.templates.tmpl.ID))

	// The input is never mutated.
	assert.Equal(t, models.StatePending, p.State)
	assert.Nil(t, p.OptimizedDescription)
	assert.Nil(t, p.LastOptimizedAt)
}

func TestOptimizeOverrideWins(t *testing.T) {
	h := newHarness(t)
	h.shop.Preferences = models.PreferencesPatch{Tone: models.Ptr("playful")}

	_, err := h.engine.Optimize(context.Background(), &h.shop, h.products[0],
		&models.PreferencesPatch{Tone: models.Ptr("bold")})
	require.NoError(t, err)
	assert.Equal(t, "Describe A (old A) in a bold tone.", h.gen.prompts[0])
}

func TestOptimizeFallsBackToDefaultTemplate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax error", "Describe {{.item_title"},
		{"render error", `Features: {{join ", " .tone}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.templates.tmpl.Body = tt.body
			h.gen.reply = func(_ int, p string) (string, error) { return "<p>" + p + "</p>", nil }
			p := h.products[1]

			got, err := h.engine.Optimize(context.Background(), &h.shop, p, nil)
			require.NoError(t, err)

			want, err := prompt.Render(prompt.DefaultBody, prompt.BuildContext(prefs.Resolve(h.shop.Preferences, nil), p))
			require.NoError(t, err)
			require.Equal(t, 1, h.gen.calls())
			assert.Equal(t, want, h.gen.prompts[0])
			assert.Equal(t, "<p>"+want+"</p>", *got.OptimizedDescription)
			assert.Equal(t, 1, h.templates.usesOf(h.templates.tmpl.ID), "usage is credited to the active template")
		})
	}
}

func TestOptimizeFallbackFailurePropagates(t *testing.T) {
	h := newHarness(t)
	r := &failingRenderer{kind: apperr.TemplateRender}
	e := NewEngine(h.templates, r, h.gen, h.front, zap.NewNop())

	_, err := e.Optimize(context.Background(), &h.shop, h.products[0], nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.TemplateRender))
	assert.Equal(t, 2, r.calls, "the active and the built-in template, never a third")
	assert.Zero(t, h.gen.calls())
}

func TestOptimizeProviderFailureLeavesProductUntouched(t *testing.T) {
	for _, kind := range []apperr.Kind{apperr.Provider, apperr.ProviderUnavailable} {
		t.Run(string(kind), func(t *testing.T) {
			h := newHarness(t)
			h.gen.reply = func(int, string) (string, error) {
				return "", apperr.Errorf(kind, "test.Generate", "boom")
			}
			p := h.products[0]
			before := *p

			got, err := h.engine.Optimize(context.Background(), &h.shop, p, nil)
			assert.Nil(t, got)
			assert.Equal(t, kind, apperr.KindOf(err))
			assert.Equal(t, before, *p)
			assert.Zero(t, h.templates.usesOf(h.templates.tmpl.ID))
		})
	}
}

func TestOptimizeTemplateLookupFailure(t *testing.T) {
	h := newHarness(t)
	h.templates.err = errors.New("db down")

	_, err := h.engine.Optimize(context.Background(), &h.shop, h.products[0], nil)
	assert.ErrorContains(t, err, "db down")
	assert.Zero(t, h.gen.calls())
}

func TestOptimizeRejectsInFlightState(t *testing.T) {
	h := newHarness(t)
	p := h.products[0]
	p.State = models.StateOptimizing

	_, err := h.engine.Optimize(context.Background(), &h.shop, p, nil)
	assert.True(t, errors.Is(err, apperr.Validation))
}

// stubProvider answers every prompt with the same text.
type stubProvider struct{ out string }

func (s stubProvider) Generate(context.Context, string, string) (string, error) { return s.out, nil }
func (stubProvider) Name() string                                             { return "stub" }

func TestOptimizeStoresNormalizedOutput(t *testing.T) {
	tests := []struct {
		raw, want string
	}{
		{"Hello world", "<p>Hello world</p>"},
		{"<div>Hi</div>", "<div>Hi</div>"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			h := newHarness(t)
			reg := ai.NewRegistry("stub", nil)
			reg.Register("stub", stubProvider{out: tt.raw})
			e := NewEngine(h.templates, prompt.NewRenderer(0, nil), ai.NewClient(reg, ai.ClientConfig{}, nil), h.front, nil)

			got, err := e.Optimize(context.Background(), &h.shop, h.products[0], nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got.OptimizedDescription)
		})
	}
}

// ---------------------------------------------------------------------------
// Deploy
// ---------------------------------------------------------------------------

func optimized(p *models.Product, text string) *models.Product {
	c := p.Clone()
	c.OptimizedDescription = &text
	c.State = models.StateOptimized
	c.LastOptimizedAt = &fixedNow
	return c
}

func TestDeployRequiresOptimized(t *testing.T) {
	h := newHarness(t)
	p := h.products[0]

	got, err := h.engine.Deploy(context.Background(), &h.shop, p)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperr.NotOptimized))
	assert.Equal(t, models.StatePending, p.State)
	assert.Nil(t, p.LastDeployedAt)
	assert.Zero(t, h.front.updateCount())
}

func TestDeployRequiresCredentials(t *testing.T) {
	h := newHarness(t)
	h.shop.AccessToken = ""

	_, err := h.engine.Deploy(context.Background(), &h.shop, optimized(h.products[0], "<p>x</p>"))
	assert.True(t, errors.Is(err, apperr.NotAuthenticated))
	assert.Zero(t, h.front.updateCount())
}

func TestDeployPushesAndPromotesText(t *testing.T) {
	h := newHarness(t)
	p := optimized(h.products[0], "<p>new A</p>")

	got, err := h.engine.Deploy(context.Background(), &h.shop, p)
	require.NoError(t, err)

	assert.Equal(t, "<p>new A</p>", h.front.updates[p.ExternalID])
	assert.Equal(t, models.StateDeployed, got.State)
	assert.Equal(t, "<p>new A</p>", got.Description)
	require.NotNil(t, got.LastDeployedAt)
	assert.Equal(t, fixedNow, *got.LastDeployedAt)
	assert.Equal(t, models.StateOptimized, p.State)
}

func TestDeployStorefrontFailure(t *testing.T) {
	h := newHarness(t)
	h.front.updateErr = apperr.Errorf(apperr.Storefront, "test", "502 from storefront")
	p := optimized(h.products[0], "<p>x</p>")

	got, err := h.engine.Deploy(context.Background(), &h.shop, p)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, apperr.Storefront))
	assert.Equal(t, "old A", p.Description)
}
