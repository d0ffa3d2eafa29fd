// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"

	"copyforge/internal/models"
)

const productColumns = `id, shop_id, external_id, title, description, original_description,
	optimized_description, state, vendor, product_type, handle,
	last_optimized_at, last_deployed_at, created_at, updated_at`

// ProductStore handles product persistence.
type ProductStore struct {
	db *sql.DB
}

// NewProductStore creates a new ProductStore.
func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db}
}

// FindByID retrieves a product by id.
func (s *ProductStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := sqlscan.Get(ctx, s.db, &p, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if sqlscan.NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product by id: %w", err)
	}
	return &p, nil
}

// ListByShop returns every product of a shop ordered by title.
func (s *ProductStore) ListByShop(ctx context.Context, shopID uuid.UUID) ([]models.Product, error) {
	var ps []models.Product
	if err := sqlscan.Select(ctx, s.db, &ps,
		`SELECT `+productColumns+` FROM products WHERE shop_id = $1 ORDER BY title, id`, shopID,
	); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return ps, nil
}

// ListByState returns a shop's products in one state ordered by title.
func (s *ProductStore) ListByState(ctx context.Context, shopID uuid.UUID, state models.ProductState) ([]models.Product, error) {
	var ps []models.Product
	if err := sqlscan.Select(ctx, s.db, &ps,
		`SELECT `+productColumns+` FROM products WHERE shop_id = $1 AND state = $2 ORDER BY title, id`,
		shopID, state,
	); err != nil {
		return nil, fmt.Errorf("list products by state: %w", err)
	}
	return ps, nil
}

// ListByIDs returns the shop's products among ids, in the order of ids.
// Ids that do not exist or belong to another shop are skipped.
func (s *ProductStore) ListByIDs(ctx context.Context, shopID uuid.UUID, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	var found []models.Product
	if err := sqlscan.Select(ctx, s.db, &found,
		`SELECT `+productColumns+` FROM products WHERE shop_id = $1 AND id = ANY($2::uuid[])`,
		shopID, keys,
	); err != nil {
		return nil, fmt.Errorf("list products by ids: %w", err)
	}

	byID := make(map[uuid.UUID]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]models.Product, 0, len(found))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok && !seen[id] {
			out = append(out, p)
			seen[id] = true
		}
	}
	return out, nil
}

// likeEscaper quotes the ILIKE wildcards in a search term.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns one page of the products of shopIDs matching f, most
// recently updated first, and the number of products matching f overall.
// f must already carry a positive Page and PerPage.
func (s *ProductStore) List(ctx context.Context, shopIDs []uuid.UUID, f models.ProductFilter) ([]models.Product, int, error) {
	if len(shopIDs) == 0 {
		return nil, 0, nil
	}
	keys := make([]string, len(shopIDs))
	for i, id := range shopIDs {
		keys[i] = id.String()
	}
	pattern := ""
	if f.Search != "" {
		pattern = "%" + likeEscaper.Replace(f.Search) + "%"
	}

	const where = `shop_id = ANY($1::uuid[])
		AND ($2::text = '' OR state = $2)
		AND ($3::text = '' OR title ILIKE $3 OR vendor ILIKE $3)`
	args := []any{keys, string(f.State), pattern}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	if total == 0 || f.Offset() >= total {
		return nil, total, nil
	}

	var ps []models.Product
	if err := sqlscan.Select(ctx, s.db, &ps,
		`SELECT `+productColumns+` FROM products WHERE `+where+`
		ORDER BY updated_at DESC, id LIMIT $4 OFFSET $5`,
		append(args, f.PerPage, f.Offset())...,
	); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return ps, total, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveProduct(ctx context.Context, db execer, p *models.Product) error {
	_, err := db.ExecContext(ctx, `
		UPDATE products SET
			title = $1, description = $2, optimized_description = $3, state = $4,
			last_optimized_at = $5, last_deployed_at = $6, updated_at = NOW()
		WHERE id = $7`,
		p.Title, p.Description, p.OptimizedDescription, p.State,
		p.LastOptimizedAt, p.LastDeployedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("save product %s: %w", p.ID, err)
	}
	return nil
}

// Save writes the mutable fields of one product as a single update.
func (s *ProductStore) Save(ctx context.Context, p *models.Product) error {
	return saveProduct(ctx, s.db, p)
}

// SaveAll writes several products in one transaction.
func (s *ProductStore) SaveAll(ctx context.Context, ps []*models.Product) error {
	if len(ps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, p := range ps {
		if err := saveProduct(ctx, tx, p); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit products: %w", err)
	}
	return nil
}

// Upsert inserts a product or, when the shop already has one with the same
// external id, refreshes its storefront fields. New rows start pending with
// the description captured as the original. Existing rows keep their
// optimization state and original description.
func (s *ProductStore) Upsert(ctx context.Context, p *models.Product) (*models.Product, error) {
	var out models.Product
	err := sqlscan.Get(ctx, s.db, &out, `
		INSERT INTO products (shop_id, external_id, title, description, original_description,
			state, vendor, product_type, handle)
		VALUES ($1, $2, $3, $4, $4, 'pending', $5, $6, $7)
		ON CONFLICT (shop_id, external_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			original_description = CASE
				WHEN products.original_description = '' THEN EXCLUDED.description
				ELSE products.original_description END,
			vendor = EXCLUDED.vendor,
			product_type = EXCLUDED.product_type,
			handle = EXCLUDED.handle,
			updated_at = NOW()
		RETURNING `+productColumns,
		p.ShopID, p.ExternalID, p.Title, p.Description, p.Vendor, p.ProductType, p.Handle,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert product %s: %w", p.ExternalID, err)
	}
	return &out, nil
}

// Delete removes a product.
func (s *ProductStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}
