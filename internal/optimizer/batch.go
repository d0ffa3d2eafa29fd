// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package optimizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"copyforge/internal/apperr"
	"copyforge/internal/models"
)

// ItemFunc is the per-product operation a batch applies.
type ItemFunc func(ctx context.Context, p *models.Product) (*models.Product, error)

// RunBatch applies fn to each product in order. A failing product is
// recorded and the batch moves on; nothing a single product does can
// abort the rest. Once ctx is done the remaining products are recorded as
// failed without calling fn.
func RunBatch(ctx context.Context, shopID uuid.UUID, kind models.BatchKind, products []*models.Product, fn ItemFunc) *models.BatchResult {
	res := &models.BatchResult{
		BatchID: uuid.New(),
		ShopID:  shopID,
		Kind:    kind,
		Total:   len(products),
		Results: make([]models.Outcome, 0, len(products)),
	}

	for _, p := range products {
		var (
			updated *models.Product
			err     error
		)
		if err = ctx.Err(); err == nil {
			updated, err = guard(ctx, p, fn)
		}

		if err != nil {
			res.Failed++
			res.Results = append(res.Results, models.Outcome{
				ProductID: p.ID,
				Outcome:   models.OutcomeFailure,
				Error:     err.Error(),
				ErrorKind: kindString(err),
			})
			continue
		}
		res.Succeeded++
		res.Results = append(res.Results, models.Outcome{
			ProductID: p.ID,
			Outcome:   models.OutcomeSuccess,
			Product:   updated,
		})
	}

	res.Status = models.CompositeStatus(res.Succeeded, res.Failed)
	return res
}

// guard runs fn and turns a panic into an error for this product only.
func guard(ctx context.Context, p *models.Product, fn ItemFunc) (updated *models.Product, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("product %s: panic: %v", p.ID, r)
		}
	}()
	updated, err = fn(ctx, p)
	if err == nil && updated == nil {
		err = fmt.Errorf("product %s: operation returned no product", p.ID)
	}
	return updated, err
}

func kindString(err error) string {
	if k := apperr.KindOf(err); k != "" {
		return string(k)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "internal"
}

// updatedProducts returns the products of the successful outcomes.
func updatedProducts(res *models.BatchResult) []*models.Product {
	out := make([]*models.Product, 0, res.Succeeded)
	for _, o := range res.Results {
		if o.Outcome == models.OutcomeSuccess {
			out = append(out, o.Product)
		}
	}
	return out
}
