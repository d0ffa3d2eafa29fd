// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package store provides database access methods for copyforge entities.
// Each store struct wraps a *sql.DB and exposes typed, context-aware query
// methods. Finders return (nil, nil) when no row matches.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"

	"copyforge/internal/models"
	"copyforge/internal/secrets"
)

const shopColumns = `id, owner_id, domain, name, access_token, api_version, scopes,
	webhook_secret, installation_complete, preferences, last_synced_at, created_at, updated_at`

// ShopStore handles shop persistence. Access tokens are sealed with box
// before they reach the database and opened on the way out.
type ShopStore struct {
	db  *sql.DB
	box *secrets.Box
}

// NewShopStore creates a new ShopStore.
func NewShopStore(db *sql.DB, box *secrets.Box) *ShopStore {
	return &ShopStore{db: db, box: box}
}

func (s *ShopStore) get(ctx context.Context, op, query string, args ...any) (*models.Shop, error) {
	var shop models.Shop
	if err := sqlscan.Get(ctx, s.db, &shop, query, args...); err != nil {
		if sqlscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.open(&shop); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &shop, nil
}

func (s *ShopStore) open(shop *models.Shop) error {
	token, err := s.box.Open(shop.AccessToken)
	if err != nil {
		return fmt.Errorf("decrypt access token for shop %s: %w", shop.ID, err)
	}
	shop.AccessToken = token
	return nil
}

// FindByID retrieves a shop by id.
func (s *ShopStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	return s.get(ctx, "find shop by id",
		`SELECT `+shopColumns+` FROM shops WHERE id = $1`, id)
}

// FindByDomain retrieves a shop by its storefront domain.
func (s *ShopStore) FindByDomain(ctx context.Context, domain string) (*models.Shop, error) {
	return s.get(ctx, "find shop by domain",
		`SELECT `+shopColumns+` FROM shops WHERE domain = $1`, domain)
}

// ListByOwner returns the shops owned by a merchant, oldest first.
func (s *ShopStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Shop, error) {
	var shops []models.Shop
	if err := sqlscan.Select(ctx, s.db, &shops,
		`SELECT `+shopColumns+` FROM shops WHERE owner_id = $1 ORDER BY created_at, id`, ownerID,
	); err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	for i := range shops {
		if err := s.open(&shops[i]); err != nil {
			return nil, fmt.Errorf("list shops: %w", err)
		}
	}
	return shops, nil
}

// Create inserts a new shop and returns it with generated fields filled.
func (s *ShopStore) Create(ctx context.Context, shop *models.Shop) (*models.Shop, error) {
	token, err := s.box.Seal(shop.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("create shop: %w", err)
	}
	return s.get(ctx, "create shop", `
		INSERT INTO shops (owner_id, domain, name, access_token, api_version, scopes,
			webhook_secret, installation_complete, preferences)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+shopColumns,
		shop.OwnerID, shop.Domain, shop.Name, token, shop.Version(), shop.Scopes,
		shop.WebhookSecret, shop.InstallationComplete, shop.Preferences,
	)
}

// Update writes every mutable column of the shop.
func (s *ShopStore) Update(ctx context.Context, shop *models.Shop) error {
	token, err := s.box.Seal(shop.AccessToken)
	if err != nil {
		return fmt.Errorf("update shop: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE shops SET
			name = $1, access_token = $2, api_version = $3, scopes = $4,
			webhook_secret = $5, installation_complete = $6, preferences = $7,
			last_synced_at = $8, updated_at = NOW()
		WHERE id = $9`,
		shop.Name, token, shop.Version(), shop.Scopes,
		shop.WebhookSecret, shop.InstallationComplete, shop.Preferences,
		shop.LastSyncedAt, shop.ID,
	)
	if err != nil {
		return fmt.Errorf("update shop: %w", err)
	}
	return nil
}

// UpdatePreferences replaces the stored preference patch.
func (s *ShopStore) UpdatePreferences(ctx context.Context, id uuid.UUID, p models.PreferencesPatch) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE shops SET preferences = $1, updated_at = NOW() WHERE id = $2`, p, id)
	if err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	return nil
}

// Delete removes a shop. Its products and templates go with it.
func (s *ShopStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM shops WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete shop: %w", err)
	}
	return nil
}
