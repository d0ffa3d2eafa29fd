package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DemoDomain is the storefront domain of the development seed shop.
const DemoDomain = "demo-store.myshopify.com"

var demoProducts = []struct {
	externalID, title, description string
}{
	{"1001", "Merino Wool Beanie", "Warm hat. Made of wool."},
	{"1002", "Ceramic Pour-Over Set", "Coffee dripper with carafe."},
	{"1003", "Trail Running Socks", "Socks for running. 3 pairs."},
}

// Seed populates the database with a demo shop owned by ownerID and a few
// pending products. It does nothing when the demo shop already exists.
// The shop has no access token, so optimization works but deployment
// reports NotAuthenticated until the shop is connected.
func Seed(ctx context.Context, db *sql.DB, ownerID uuid.UUID, log *zap.Logger) error {
	var exists bool
	if err := db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM shops WHERE domain = $1)", DemoDomain,
	).Scan(&exists); err != nil {
		return fmt.Errorf("seed check shops: %w", err)
	}
	if exists {
		log.Info("database already seeded, skipping")
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	var shopID uuid.UUID
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO shops (owner_id, domain, name)
		VALUES ($1, $2, $3)
		RETURNING id`,
		ownerID, DemoDomain, "Demo Store",
	).Scan(&shopID); err != nil {
		return fmt.Errorf("seed insert shop: %w", err)
	}

	for _, p := range demoProducts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO products (shop_id, external_id, title, description, original_description)
			VALUES ($1, $2, $3, $4, $4)`,
			shopID, p.externalID, p.title, p.description,
		); err != nil {
			return fmt.Errorf("seed insert product %s: %w", p.externalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	log.Info("database seeded with demo shop",
		zap.Stringer("shop_id", shopID),
		zap.Stringer("owner_id", ownerID),
		zap.Int("products", len(demoProducts)),
	)
	return nil
}
