// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"

	"copyforge/internal/models"
)

const templateColumns = `id, shop_id, name, description, body, is_active, is_default,
	usage_count, last_used_at, created_at, updated_at`

// TemplateStore handles prompt template persistence.
type TemplateStore struct {
	db *sql.DB
}

// NewTemplateStore creates a new TemplateStore with the given database connection.
func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

func (s *TemplateStore) get(ctx context.Context, op, query string, args ...any) (*models.PromptTemplate, error) {
	var t models.PromptTemplate
	err := sqlscan.Get(ctx, s.db, &t, query, args...)
	if sqlscan.NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &t, nil
}

// FindActive returns the shop's active template.
func (s *TemplateStore) FindActive(ctx context.Context, shopID uuid.UUID) (*models.PromptTemplate, error) {
	return s.get(ctx, "find active template",
		`SELECT `+templateColumns+` FROM prompt_templates WHERE shop_id = $1 AND is_active`, shopID)
}

// FindByID retrieves a template by its UUID.
func (s *TemplateStore) FindByID(ctx context.Context, id uuid.UUID) (*models.PromptTemplate, error) {
	return s.get(ctx, "find template by id",
		`SELECT `+templateColumns+` FROM prompt_templates WHERE id = $1`, id)
}

// ListByShop returns the shop's templates, active first, then by name.
func (s *TemplateStore) ListByShop(ctx context.Context, shopID uuid.UUID) ([]models.PromptTemplate, error) {
	var ts []models.PromptTemplate
	if err := sqlscan.Select(ctx, s.db, &ts,
		`SELECT `+templateColumns+` FROM prompt_templates WHERE shop_id = $1
		 ORDER BY is_active DESC, name, id`, shopID,
	); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return ts, nil
}

// Create inserts a new, inactive template.
func (s *TemplateStore) Create(ctx context.Context, t *models.PromptTemplate) (*models.PromptTemplate, error) {
	out, err := s.get(ctx, "create template", `
		INSERT INTO prompt_templates (shop_id, name, description, body, is_active, is_default)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING `+templateColumns,
		t.ShopID, t.Name, t.Description, t.Body, t.IsDefault,
	)
	if err == nil && out == nil {
		err = fmt.Errorf("create template: no row returned")
	}
	return out, err
}

// CreateActive inserts t as the active template unless the shop already
// has one. The partial unique index on (shop_id) WHERE is_active settles
// races; the loser reads back the winner's row.
func (s *TemplateStore) CreateActive(ctx context.Context, t *models.PromptTemplate) (*models.PromptTemplate, error) {
	out, err := s.get(ctx, "create active template", `
		INSERT INTO prompt_templates (shop_id, name, description, body, is_active, is_default)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		ON CONFLICT (shop_id) WHERE is_active DO NOTHING
		RETURNING `+templateColumns,
		t.ShopID, t.Name, t.Description, t.Body, t.IsDefault,
	)
	if err != nil || out != nil {
		return out, err
	}
	out, err = s.FindActive(ctx, t.ShopID)
	if err == nil && out == nil {
		err = fmt.Errorf("create active template: shop %s has no active template after conflict", t.ShopID)
	}
	return out, err
}

// Update writes name, description and body.
func (s *TemplateStore) Update(ctx context.Context, t *models.PromptTemplate) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE prompt_templates SET
			name = $1, description = $2, body = $3, updated_at = NOW()
		WHERE id = $4`,
		t.Name, t.Description, t.Body, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

// Activate sets a template as the shop's active one, deactivating every
// other template of the shop. Uses a transaction for atomicity.
func (s *TemplateStore) Activate(ctx context.Context, shopID, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE prompt_templates SET is_active = FALSE WHERE shop_id = $1 AND is_active`, shopID,
	); err != nil {
		return fmt.Errorf("deactivate templates: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE prompt_templates SET is_active = TRUE, updated_at = NOW() WHERE id = $1 AND shop_id = $2`,
		id, shopID,
	)
	if err != nil {
		return fmt.Errorf("activate template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("activate template: %s not found for shop %s", id, shopID)
	}

	return tx.Commit()
}

// Delete removes a template by ID.
func (s *TemplateStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM prompt_templates WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

// IncrementUsage bumps the usage counter and stamps the last-used time.
func (s *TemplateStore) IncrementUsage(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE prompt_templates SET usage_count = usage_count + 1, last_used_at = $1
		WHERE id = $2`, at, id,
	); err != nil {
		return fmt.Errorf("increment template usage: %w", err)
	}
	return nil
}
