// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"copyforge/internal/models"
	"copyforge/internal/optimizer"
)

var (
	batchShop     string
	batchProducts []string

	reportBatch string
)

var optimizeAllCmd = &cobra.Command{
	Use:   "optimize-all",
	Short: "Generate descriptions for a shop's products",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runBatch(cmd, func(ctx context.Context, svc *optimizer.Service, owner, shop uuid.UUID, ids []uuid.UUID) (*models.BatchResult, error) {
			return svc.OptimizeAll(ctx, owner, shop, ids, nil)
		})
	},
}

var deployAllCmd = &cobra.Command{
	Use:   "deploy-all",
	Short: "Publish optimized descriptions to the storefront",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runBatch(cmd, func(ctx context.Context, svc *optimizer.Service, owner, shop uuid.UUID, ids []uuid.UUID) (*models.BatchResult, error) {
			return svc.DeployAll(ctx, owner, shop, ids)
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print an archived batch report",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	for _, c := range []*cobra.Command{optimizeAllCmd, deployAllCmd} {
		c.Flags().StringVar(&batchShop, "shop", "", "Shop id")
		c.Flags().StringSliceVar(&batchProducts, "product", nil, "Restrict the batch to these product ids (repeatable)")
		_ = c.MarkFlagRequired("shop")
		rootCmd.AddCommand(c)
	}

	reportCmd.Flags().StringVar(&batchShop, "shop", "", "Shop id")
	reportCmd.Flags().StringVar(&reportBatch, "batch", "", "Batch id")
	_ = reportCmd.MarkFlagRequired("shop")
	_ = reportCmd.MarkFlagRequired("batch")
	rootCmd.AddCommand(reportCmd)
}

type batchFunc func(ctx context.Context, svc *optimizer.Service, owner, shop uuid.UUID, ids []uuid.UUID) (*models.BatchResult, error)

// runBatch runs fn as the shop's owner and prints the result. A batch
// that is not fully successful exits non-zero after printing.
func runBatch(cmd *cobra.Command, fn batchFunc) error {
	ctx := cmd.Context()

	shopID, err := uuid.Parse(batchShop)
	if err != nil {
		return fmt.Errorf("--shop: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(batchProducts))
	for _, raw := range batchProducts {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("--product %q: %w", raw, err)
		}
		ids = append(ids, id)
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	shop, err := a.shops.FindByID(ctx, shopID)
	if err != nil {
		return err
	}
	if shop == nil {
		return fmt.Errorf("shop %s not found", shopID)
	}

	res, err := fn(ctx, a.svc, shop.OwnerID, shop.ID, ids)
	if res != nil {
		// Printed even when saving failed: deployed items are already live.
		if perr := printJSON(cmd.OutOrStdout(), res); perr != nil && err == nil {
			err = perr
		}
	}
	if err != nil {
		return err
	}

	log.Info("batch finished",
		zap.String("batch_id", res.BatchID.String()),
		zap.String("kind", string(res.Kind)),
		zap.String("status", string(res.Status)),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
	)
	if res.Status != models.BatchSucceeded {
		return fmt.Errorf("batch %s finished with status %s", res.BatchID, res.Status)
	}
	return nil
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	shopID, err := uuid.Parse(batchShop)
	if err != nil {
		return fmt.Errorf("--shop: %w", err)
	}
	batchID, err := uuid.Parse(reportBatch)
	if err != nil {
		return fmt.Errorf("--batch: %w", err)
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if a.reports == nil {
		return errors.New("report storage is not configured")
	}
	res, err := a.reports.Download(ctx, shopID, batchID)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
