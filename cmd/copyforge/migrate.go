package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"copyforge/internal/database"
)

var migrateSeedOwner string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var owner uuid.UUID
		if migrateSeedOwner != "" {
			id, err := uuid.Parse(migrateSeedOwner)
			if err != nil {
				return fmt.Errorf("--seed: %w", err)
			}
			owner = id
		}

		db, err := database.Connect(ctx, cfg.DSN(), log)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.Migrate(ctx, db, log); err != nil {
			return err
		}
		if owner != uuid.Nil {
			return database.Seed(ctx, db, owner, log)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().StringVar(&migrateSeedOwner, "seed", "", "Seed a demo shop owned by this owner id")
}
