// Package dbtest starts a throwaway PostgreSQL container for integration
// tests and hands out migrated connections to it.
package dbtest

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"copyforge/internal/database"
)

var (
	once   sync.Once
	dsn    string
	setErr error
)

// DSN starts the shared container on first use and returns its connection
// string. The test is skipped under -short or when Docker is unavailable.
func DSN(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping: postgres container in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	once.Do(func() {
		ctx := context.Background()
		c, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("copyforge"),
			postgres.WithUsername("copyforge"),
			postgres.WithPassword("copyforge"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).WithStartupTimeout(2*time.Minute),
			),
		)
		if err != nil {
			setErr = err
			return
		}
		dsn, setErr = c.ConnectionString(ctx, "sslmode=disable")
	})
	if setErr != nil {
		t.Skipf("skipping: postgres container unavailable: %v", setErr)
	}
	return dsn
}

// New returns a migrated connection with every table emptied. Tests that
// use it must not run in parallel with each other.
func New(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Connect(ctx, DSN(t), zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.ExecContext(ctx, "TRUNCATE prompt_templates, products, shops CASCADE"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return db
}
