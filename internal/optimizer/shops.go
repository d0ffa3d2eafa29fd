// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package optimizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"copyforge/internal/apperr"
	"copyforge/internal/cache"
	"copyforge/internal/events"
	"copyforge/internal/models"
	"copyforge/internal/prefs"
	"copyforge/internal/storefront"
)

// Preferences returns the shop's stored preference patch and the resolved
// preferences it yields.
func (s *Service) Preferences(ctx context.Context, ownerID, shopID uuid.UUID) (models.PreferencesPatch, models.Preferences, error) {
	shop, err := s.Shop(ctx, ownerID, shopID)
	if err != nil {
		return models.PreferencesPatch{}, models.Preferences{}, err
	}
	return shop.Preferences, prefs.Resolve(shop.Preferences, nil), nil
}

// UpdatePreferences deep-merges update into the stored preferences and
// returns the resolved result.
func (s *Service) UpdatePreferences(ctx context.Context, ownerID, shopID uuid.UUID, update models.PreferencesPatch) (models.Preferences, error) {
	if err := prefs.ValidateUpdate(update); err != nil {
		return models.Preferences{}, err
	}
	shop, err := s.Shop(ctx, ownerID, shopID)
	if err != nil {
		return models.Preferences{}, err
	}

	merged := prefs.Merge(shop.Preferences, update)
	if err := s.deps.Shops.UpdatePreferences(ctx, shop.ID, merged); err != nil {
		return models.Preferences{}, fmt.Errorf("save preferences: %w", err)
	}
	return prefs.Resolve(merged, nil), nil
}

// ConnectShop registers a storefront for ownerID, or reuses the owner's
// existing registration of the domain, and returns the URL the merchant
// must visit to grant access.
func (s *Service) ConnectShop(ctx context.Context, ownerID uuid.UUID, domain, name string) (*models.Shop, string, error) {
	const op = "optimizer.ConnectShop"
	domain, err := storefront.NormalizeDomain(domain)
	if err != nil {
		return nil, "", err
	}

	shop, err := s.deps.Shops.FindByDomain(ctx, domain)
	if err != nil {
		return nil, "", fmt.Errorf("find shop: %w", err)
	}
	switch {
	case shop != nil && shop.OwnerID != ownerID:
		return nil, "", apperr.Errorf(apperr.Conflict, op, "shop %s is connected to another account", domain)
	case shop == nil:
		if name == "" {
			name = domain
		}
		shop, err = s.deps.Shops.Create(ctx, &models.Shop{
			OwnerID:       ownerID,
			Domain:        domain,
			Name:          name,
			APIVersion:    s.deps.APIVersion,
			WebhookSecret: s.deps.WebhookSecret,
		})
		if err != nil {
			return nil, "", fmt.Errorf("create shop: %w", err)
		}
		s.log.Info("shop registered", zap.Stringer("shop_id", shop.ID), zap.String("domain", domain))
	}

	nonce, err := storefront.NewState()
	if err != nil {
		return nil, "", err
	}
	if err := s.deps.States.Put(ctx, nonce, cache.OAuthState{
		ShopID:  shop.ID,
		OwnerID: ownerID,
		Domain:  domain,
	}); err != nil {
		return nil, "", err
	}
	return shop, s.deps.Installer.AuthURL(domain, nonce), nil
}

// RenameShop changes the display name of a shop.
func (s *Service) RenameShop(ctx context.Context, ownerID, shopID uuid.UUID, name string) (*models.Shop, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Errorf(apperr.Validation, "optimizer.RenameShop", "name must not be empty")
	}
	shop, err := s.Shop(ctx, ownerID, shopID)
	if err != nil {
		return nil, err
	}
	shop.Name = name
	if err := s.deps.Shops.Update(ctx, shop); err != nil {
		return nil, fmt.Errorf("save shop: %w", err)
	}
	return shop, nil
}

// DeleteShop disconnects a shop and removes its products and templates.
// It fails with Conflict while a batch runs for the shop. The storefront
// itself is left untouched.
func (s *Service) DeleteShop(ctx context.Context, ownerID, shopID uuid.UUID) error {
	shop, err := s.Shop(ctx, ownerID, shopID)
	if err != nil {
		return err
	}
	release, err := s.lockShop(ctx, shop.ID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.deps.Shops.Delete(ctx, shop.ID); err != nil {
		return err
	}
	s.log.Info("shop deleted", zap.Stringer("shop_id", shop.ID), zap.String("domain", shop.Domain))
	return nil
}

// CompleteInstall finishes the OAuth install: it consumes the state nonce,
// exchanges the code for an access token and stores it on the shop.
// domain, when non-empty, must match the domain the nonce was issued for.
func (s *Service) CompleteInstall(ctx context.Context, state, code, domain string) (*models.Shop, error) {
	const op = "optimizer.CompleteInstall"
	if state == "" || code == "" {
		return nil, apperr.Errorf(apperr.Validation, op, "missing state or code")
	}
	st, err := s.deps.States.Take(ctx, state)
	if err != nil {
		return nil, err
	}
	if domain != "" {
		d, err := storefront.NormalizeDomain(domain)
		if err != nil || d != st.Domain {
			return nil, apperr.Errorf(apperr.Unauthorized, op, "oauth state was issued for another shop")
		}
	}

	shop, err := s.Shop(ctx, st.OwnerID, st.ShopID)
	if err != nil {
		return nil, err
	}

	token, scopes, err := s.deps.Installer.Exchange(ctx, shop.Domain, code)
	if err != nil {
		return nil, err
	}
	shop.AccessToken = token
	shop.Scopes = scopes
	shop.InstallationComplete = true

	if info, err := s.deps.Storefront.ShopInfo(ctx, shop); err != nil {
		s.log.Warn("fetch shop info failed", zap.Stringer("shop_id", shop.ID), zap.Error(err))
	} else if info.Name != "" {
		shop.Name = info.Name
	}

	if err := s.deps.Shops.Update(ctx, shop); err != nil {
		return nil, fmt.Errorf("save shop: %w", err)
	}
	s.log.Info("shop installed", zap.Stringer("shop_id", shop.ID), zap.String("scopes", scopes))
	return shop, nil
}

// SyncProducts imports the storefront's products, inserting new ones as
// pending and refreshing the storefront fields of known ones.
func (s *Service) SyncProducts(ctx context.Context, ownerID, shopID uuid.UUID) ([]models.Product, error) {
	shop, err := s.Shop(ctx, ownerID, shopID)
	if err != nil {
		return nil, err
	}
	if !shop.Authenticated() {
		return nil, apperr.Errorf(apperr.NotAuthenticated, "optimizer.SyncProducts",
			"shop %s has no storefront access token", shop.ID)
	}

	remote, err := s.deps.Storefront.ListProducts(ctx, shop)
	if err != nil {
		return nil, err
	}

	synced := make([]models.Product, 0, len(remote))
	for _, rp := range remote {
		p, err := s.deps.Products.Upsert(ctx, fromRemote(shop.ID, rp))
		if err != nil {
			return nil, err
		}
		synced = append(synced, *p)
	}

	now := s.now().UTC()
	shop.LastSyncedAt = &now
	if err := s.deps.Shops.Update(ctx, shop); err != nil {
		return nil, fmt.Errorf("save shop: %w", err)
	}

	s.log.Info("products synced", zap.Stringer("shop_id", shop.ID), zap.Int("count", len(synced)))
	s.publish(ctx, events.New(events.ProductsSynced, shop.ID, map[string]int{"count": len(synced)}))
	return synced, nil
}

// HandleProductWebhook applies a signed products/update notification.
func (s *Service) HandleProductWebhook(ctx context.Context, shopID uuid.UUID, body []byte, signature string) (*models.Product, error) {
	const op = "optimizer.HandleProductWebhook"
	shop, err := s.deps.Shops.FindByID(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("find shop: %w", err)
	}
	if shop == nil {
		return nil, apperr.Errorf(apperr.NotFound, op, "shop %s not found", shopID)
	}
	if !storefront.VerifyWebhook(body, signature, shop.WebhookSecret) {
		return nil, apperr.Errorf(apperr.Unauthorized, op, "invalid webhook signature")
	}

	rp, err := storefront.ParseProductWebhook(body)
	if err != nil {
		return nil, apperr.E(apperr.Validation, op, err)
	}
	p, err := s.deps.Products.Upsert(ctx, fromRemote(shop.ID, *rp))
	if err != nil {
		return nil, err
	}
	s.log.Debug("product webhook applied", zap.Stringer("shop_id", shop.ID), zap.String("external_id", p.ExternalID))
	return p, nil
}

func fromRemote(shopID uuid.UUID, rp storefront.RemoteProduct) *models.Product {
	return &models.Product{
		ShopID:      shopID,
		ExternalID:  rp.ExternalID(),
		Title:       rp.Title,
		Description: rp.BodyHTML,
		Vendor:      rp.Vendor,
		ProductType: rp.ProductType,
		Handle:      rp.Handle,
	}
}
