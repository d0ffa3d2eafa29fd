// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package optimizer runs the content optimization pipeline: it resolves a
// shop's preferences, renders the active prompt template (falling back to
// the built-in one when the shop's template is broken), asks the AI
// provider for a new description and pushes approved text back to the
// storefront. Batches apply the same steps to many products with
// per-product failure isolation.
package optimizer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"copyforge/internal/ai"
	"copyforge/internal/apperr"
	"copyforge/internal/models"
	"copyforge/internal/prefs"
	"copyforge/internal/prompt"
)

// TemplateSource yields the active template of a shop and counts its use.
// *templates.Service implements it.
type TemplateSource interface {
	Active(ctx context.Context, shopID uuid.UUID) (*models.PromptTemplate, error)
	RecordUse(ctx context.Context, id uuid.UUID) error
}

// Renderer renders a prompt body. *prompt.Renderer implements it.
type Renderer interface {
	Render(body string, ctx prompt.Context) (string, error)
}

// DescriptionUpdater pushes a description to the storefront.
// *storefront.Client implements it.
type DescriptionUpdater interface {
	UpdateDescription(ctx context.Context, shop *models.Shop, externalID, html string) error
}

// Engine optimizes and deploys single products. It never writes to the
// database: it returns an updated copy and leaves the input untouched,
// so a failed call has nothing to roll back.
type Engine struct {
	templates  TemplateSource
	renderer   Renderer
	generator  ai.Generator
	storefront DescriptionUpdater
	log        *zap.Logger
	now        func() time.Time
}

// NewEngine wires an Engine.
func NewEngine(templates TemplateSource, renderer Renderer, generator ai.Generator, storefront DescriptionUpdater, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		templates:  templates,
		renderer:   renderer,
		generator:  generator,
		storefront: storefront,
		log:        log.Named("engine"),
		now:        time.Now,
	}
}

// Optimize generates a new description for p and returns the updated
// product in state optimized. override, when set, takes precedence over
// the shop's stored preferences for this call only.
func (e *Engine) Optimize(ctx context.Context, shop *models.Shop, p *models.Product, override *models.PreferencesPatch) (*models.Product, error) {
	const op = "optimizer.Optimize"
	if !models.CanTransition(p.State, models.StateOptimizing) {
		return nil, apperr.Errorf(apperr.Validation, op, "product %s cannot be optimized from state %q", p.ID, p.State)
	}

	resolved := prefs.Resolve(shop.Preferences, override)

	tmpl, err := e.templates.Active(ctx, shop.ID)
	if err != nil {
		return nil, err
	}

	pctx := prompt.BuildContext(resolved, p)
	text, err := e.renderer.Render(tmpl.Body, pctx)
	if kind := apperr.KindOf(err); kind == apperr.TemplateSyntax || kind == apperr.TemplateRender {
		e.log.Warn("active template failed, using built-in template",
			zap.Stringer("shop_id", shop.ID),
			zap.Stringer("template_id", tmpl.ID),
			zap.Error(err),
		)
		text, err = e.renderer.Render(prompt.DefaultBody, pctx)
	}
	if err != nil {
		return nil, err
	}

	out, err := e.generator.Generate(ctx, text)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	updated := p.Clone()
	updated.OptimizedDescription = &out
	updated.State = models.StateOptimized
	updated.LastOptimizedAt = &now

	// Usage is credited to the shop's active template even when the
	// built-in body was rendered in its place.
	if err := e.templates.RecordUse(ctx, tmpl.ID); err != nil {
		e.log.Warn("record template use failed",
			zap.Stringer("template_id", tmpl.ID), zap.Error(err))
	}
	return updated, nil
}

// Deploy pushes the optimized description of p to the storefront and
// returns the product in state deployed with the text promoted to its
// canonical description.
func (e *Engine) Deploy(ctx context.Context, shop *models.Shop, p *models.Product) (*models.Product, error) {
	const op = "optimizer.Deploy"
	if p.State != models.StateOptimized || p.OptimizedDescription == nil {
		return nil, apperr.Errorf(apperr.NotOptimized, op, "product %s has not been optimized", p.ID)
	}
	if !shop.Authenticated() {
		return nil, apperr.Errorf(apperr.NotAuthenticated, op, "shop %s has no storefront access token", shop.ID)
	}

	if err := e.storefront.UpdateDescription(ctx, shop, p.ExternalID, *p.OptimizedDescription); err != nil {
		return nil, err
	}

	now := e.now().UTC()
	updated := p.Clone()
	updated.Description = *p.OptimizedDescription
	updated.State = models.StateDeployed
	updated.LastDeployedAt = &now
	return updated, nil
}
