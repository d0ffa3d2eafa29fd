// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"copyforge/internal/apperr"
	"copyforge/internal/middleware"
	"copyforge/internal/models"
)

// WebhookSignatureHeader carries the base64 HMAC-SHA256 of a webhook body.
const WebhookSignatureHeader = "X-Shopify-Hmac-Sha256"

// Installer completes storefront installs and applies storefront webhooks.
type Installer interface {
	CompleteInstall(ctx context.Context, state, code, domain string) (*models.Shop, error)
	HandleProductWebhook(ctx context.Context, shopID uuid.UUID, body []byte, signature string) (*models.Product, error)
}

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// Public groups the handlers reachable without a merchant token: the
// OAuth callback, storefront webhooks and the health check.
type Public struct {
	installer Installer
	checks    map[string]Check
	log       *zap.Logger
}

// NewPublic creates the public handler group. checks are run by Health.
func NewPublic(installer Installer, checks map[string]Check, log *zap.Logger) *Public {
	return &Public{installer: installer, checks: checks, log: log}
}

type installResponse struct {
	Shop *models.Shop `json:"shop"`
}

// OAuthCallback finishes the install started by ConnectShop. The state
// nonce authenticates the request.
func (p *Public) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shop, err := p.installer.CompleteInstall(r.Context(), q.Get("state"), q.Get("code"), q.Get("shop"))
	if err != nil {
		p.log.Warn("oauth callback rejected", zap.String("shop", q.Get("shop")), zap.Error(err))
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, installResponse{Shop: shop})
}

// ProductWebhook applies a signed products/update notification.
func (p *Public) ProductWebhook(w http.ResponseWriter, r *http.Request) {
	shopID, err := pathID(r, "shopID")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		middleware.WriteError(w, apperr.E(apperr.Validation, "handlers.ProductWebhook", err))
		return
	}

	product, err := p.installer.HandleProductWebhook(r.Context(), shopID, body, r.Header.Get(WebhookSignatureHeader))
	if err != nil {
		if errors.Is(err, apperr.Unauthorized) {
			p.log.Warn("webhook signature rejected", zap.Stringer("shop_id", shopID))
		}
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "product_id": product.ID.String()})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health runs every dependency check and answers 503 if any fails.
func (p *Public) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok"}
	status := http.StatusOK
	for name, check := range p.checks {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string, len(p.checks))
		}
		if err := check(ctx); err != nil {
			p.log.Warn("health check failed", zap.String("check", name), zap.Error(err))
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}
