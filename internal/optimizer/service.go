// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package optimizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"copyforge/internal/apperr"
	"copyforge/internal/cache"
	"copyforge/internal/events"
	"copyforge/internal/models"
	"copyforge/internal/storefront"
)

// ShopRepository persists shops. Finders return (nil, nil) when nothing
// matches. *store.ShopStore implements it.
type ShopRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	FindByDomain(ctx context.Context, domain string) (*models.Shop, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Shop, error)
	Create(ctx context.Context, shop *models.Shop) (*models.Shop, error)
	Update(ctx context.Context, shop *models.Shop) error
	UpdatePreferences(ctx context.Context, id uuid.UUID, p models.PreferencesPatch) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProductRepository persists products. *store.ProductStore implements it.
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListByShop(ctx context.Context, shopID uuid.UUID) ([]models.Product, error)
	ListByState(ctx context.Context, shopID uuid.UUID, state models.ProductState) ([]models.Product, error)
	ListByIDs(ctx context.Context, shopID uuid.UUID, ids []uuid.UUID) ([]models.Product, error)
	List(ctx context.Context, shopIDs []uuid.UUID, f models.ProductFilter) ([]models.Product, int, error)
	Save(ctx context.Context, p *models.Product) error
	SaveAll(ctx context.Context, ps []*models.Product) error
	Upsert(ctx context.Context, p *models.Product) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Storefront is the storefront API beyond description updates.
// *storefront.Client implements it.
type Storefront interface {
	DescriptionUpdater
	ListProducts(ctx context.Context, shop *models.Shop) ([]storefront.RemoteProduct, error)
	ShopInfo(ctx context.Context, shop *models.Shop) (*storefront.ShopInfo, error)
}

// Installer runs the storefront OAuth install. *storefront.OAuth implements it.
type Installer interface {
	AuthURL(domain, state string) string
	Exchange(ctx context.Context, domain, code string) (token, scopes string, err error)
}

// StateStore remembers OAuth state nonces. *cache.StateStore implements it.
type StateStore interface {
	Put(ctx context.Context, nonce string, st cache.OAuthState) error
	Take(ctx context.Context, nonce string) (*cache.OAuthState, error)
}

// Locker serializes batches per shop. *cache.BatchLock implements it.
type Locker interface {
	Acquire(ctx context.Context, shopID uuid.UUID) (release func(), err error)
}

// ReportStore archives batch results. *storage.Reports implements it.
type ReportStore interface {
	Upload(ctx context.Context, result *models.BatchResult) (string, error)
}

// Recorder receives pipeline metrics. *metrics.Metrics implements it.
type Recorder interface {
	ObserveProduct(operation, outcome string)
	ObserveBatch(kind, status string, total int)
}

// Deps lists the collaborators of a Service. Lock, Reports, Events and
// Metrics are optional.
type Deps struct {
	Engine     *Engine
	Shops      ShopRepository
	Products   ProductRepository
	Storefront Storefront
	Installer  Installer
	States     StateStore
	Lock       Locker
	Reports    ReportStore
	Events     events.Publisher
	Metrics    Recorder
	// WebhookSecret signs storefront webhooks for newly connected shops.
	WebhookSecret string
	// APIVersion is pinned on newly connected shops; empty selects
	// models.DefaultAPIVersion.
	APIVersion string
}

// Service is the application layer over the Engine: it resolves and
// authorizes shops and products, persists results and announces them.
// Every method taking an ownerID treats shops of other owners as absent.
type Service struct {
	deps Deps
	log  *zap.Logger
	now  func() time.Time
}

// NewService creates a Service.
func NewService(deps Deps, log *zap.Logger) *Service {
	if deps.APIVersion == "" {
		deps.APIVersion = models.DefaultAPIVersion
	}
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	return &Service{deps: deps, log: log.Named("optimizer"), now: time.Now}
}

// ---------------------------------------------------------------------------
// Shops and products
// ---------------------------------------------------------------------------

// Shop returns a shop owned by ownerID.
func (s *Service) Shop(ctx context.Context, ownerID, shopID uuid.UUID) (*models.Shop, error) {
	shop, err := s.deps.Shops.FindByID(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("find shop: %w", err)
	}
	if shop == nil || shop.OwnerID != ownerID {
		return nil, apperr.Errorf(apperr.NotFound, "optimizer.Shop", "shop %s not found", shopID)
	}
	return shop, nil
}

// Shops lists the shops owned by ownerID.
func (s *Service) Shops(ctx context.Context, ownerID uuid.UUID) ([]models.Shop, error) {
	shops, err := s.deps.Shops.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	return shops, nil
}

// Products returns one page of a shop's products matching f.
func (s *Service) Products(ctx context.Context, ownerID, shopID uuid.UUID, f models.ProductFilter) (*models.ProductPage, error) {
	f, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}
	if _, err := s.Shop(ctx, ownerID, shopID); err != nil {
		return nil, err
	}
	return s.listProducts(ctx, []uuid.UUID{shopID}, f)
}

// AllProducts returns one page of the products of every shop owned by
// ownerID matching f.
func (s *Service) AllProducts(ctx context.Context, ownerID uuid.UUID, f models.ProductFilter) (*models.ProductPage, error) {
	f, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}
	shops, err := s.Shops(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(shops))
	for i, shop := range shops {
		ids[i] = shop.ID
	}
	return s.listProducts(ctx, ids, f)
}

func (s *Service) listProducts(ctx context.Context, shopIDs []uuid.UUID, f models.ProductFilter) (*models.ProductPage, error) {
	ps, total, err := s.deps.Products.List(ctx, shopIDs, f)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return models.NewProductPage(ps, total, f), nil
}

// normalizeFilter fills the default page and page size and rejects
// unknown states and negative paging.
func normalizeFilter(f models.ProductFilter) (models.ProductFilter, error) {
	const op = "optimizer.normalizeFilter"
	if f.State != "" && !f.State.Valid() {
		return f, apperr.Errorf(apperr.Validation, op, "unknown product state %q", f.State)
	}
	if f.Page < 0 || f.PerPage < 0 {
		return f, apperr.Errorf(apperr.Validation, op, "page and per_page must be positive")
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PerPage == 0 {
		f.PerPage = models.DefaultPerPage
	}
	f.PerPage = min(f.PerPage, models.MaxPerPage)
	f.Search = strings.TrimSpace(f.Search)
	return f, nil
}

// Product returns one product of a shop.
func (s *Service) Product(ctx context.Context, ownerID, shopID, productID uuid.UUID) (*models.Product, error) {
	shop, err := s.Shop(ctx, ownerID, shopID)
	if err != nil {
		return nil, err
	}
	return s.product(ctx, shop, productID)
}

func (s *Service) product(ctx context.Context, shop *models.Shop, productID uuid.UUID) (*models.Product, error) {
	p, err := s.deps.Products.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	if p == nil || p.ShopID != shop.ID {
		return nil, apperr.Errorf(apperr.NotFound, "optimizer.Product", "product %s not found", productID)
	}
	return p, nil
}

// UpdateProduct edits the stored title or description of a product. The
// storefront is not touched; the next sync overwrites both fields with
// the storefront's values. It fails with Conflict while a batch runs for
// the shop.
func (s *Service) UpdateProduct(ctx context.Context, ownerID, shopID, productID uuid.UUID, patch models.ProductPatch) (*models.Product, error) {
	const op = "optimizer.UpdateProduct"
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, apperr.Errorf(apperr.Validation, op, "title must not be empty")
	}
	shop, err := s.Shop(ctx, ownerID, shopID)
	if err != nil {
		return nil, err
	}
	p, err := s.product(ctx, shop, productID)
	if err != nil {
		return nil, err
	}
	release, err := s.lockShop(ctx, shop.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	if patch.Title != nil {
		p.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if err := s.deps.Products.Save(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("product updated", zap.Stringer("shop_id", shop.ID), zap.Stringer("product_id", p.ID))
	return p, nil
}

// DeleteProduct removes a product from the catalogue. The storefront
// keeps it, so the next sync imports it again as pending.
func (s *Service) DeleteProduct(ctx context.Context, ownerID, shopID, productID uuid.UUID) error {
	shop, err := s.Shop(ctx, ownerID, shopID)
	if err != nil {
		return err
	}
	p, err := s.product(ctx, shop, productID)
	if err != nil {
		return err
	}
	release, err := s.lockShop(ctx, shop.ID)
	if err != nil {
		return err
	}
	defer release()

	if err := s.deps.Products.Delete(ctx, p.ID); err != nil {
		return err
	}
	s.log.Info("product deleted", zap.Stringer("shop_id", shop.ID), zap.Stringer("product_id", p.ID))
	return nil
}

// ---------------------------------------------------------------------------
// Single product operations
// ---------------------------------------------------------------------------

// OptimizeOne optimizes a single product and saves the result. Errors are
// returned unchanged and leave the stored product as it was.
func (s *Service) OptimizeOne(ctx context.Context, ownerID, shopID, productID uuid.UUID, override *models.PreferencesPatch) (*models.Product, error) {
	shop, err := s.Shop(ctx, ownerID, shopID)
	if err != nil {
		return nil, err
	}
	p, err := s.product(ctx, shop, productID)
	if err != nil {
		return nil, err
	}

	updated, err := s.deps.Engine.Optimize(ctx, shop, p, override)
	if err == nil {
		err = s.deps.Products.Save(ctx, updated)
	}
	s.observeProduct(models.BatchOptimize, err)
	if err != nil {
		s.log.Warn("optimize failed",
			zap.Stringer("shop_id", shop.ID), zap.Stringer("product_id", p.ID), zap.Error(err))
		return nil, err
	}

	s.publish(ctx, events.New(events.ProductOptimized, shop.ID, updated))
	return updated, nil
}

// DeployOne deploys a single optimized product and saves the result.
func (s *Service) DeployOne(ctx context.Context, ownerID, shopID, productID uuid.UUID) (*models.Product, error) {
	shop, err := s.Shop(ctx, ownerID, shopID)
	if err != nil {
		return nil, err
	}
	p, err := s.product(ctx, shop, productID)
	if err != nil {
		return nil, err
	}

	updated, err := s.deps.Engine.Deploy(ctx, shop, p)
	if err == nil {
		err = s.deps.Products.Save(ctx, updated)
	}
	s.observeProduct(models.BatchDeploy, err)
	if err != nil {
		s.log.Warn("deploy failed",
			zap.Stringer("shop_id", shop.ID), zap.Stringer("product_id", p.ID), zap.Error(err))
		return nil, err
	}

	s.publish(ctx, events.New(events.ProductDeployed, shop.ID, updated))
	return updated, nil
}

// ---------------------------------------------------------------------------
// Batches
// ---------------------------------------------------------------------------

// OptimizeAll optimizes the listed products of a shop, or all of them when
// ids is empty. The shop is resolved before any product is attempted.
func (s *Service) OptimizeAll(ctx context.Context, ownerID, shopID uuid.UUID, ids []uuid.UUID, override *models.PreferencesPatch) (*models.BatchResult, error) {
	shop, err := s.Shop(ctx, ownerID, shopID)
	if err != nil {
		return nil, err
	}
	fn := func(ctx context.Context, p *models.Product) (*models.Product, error) {
		return s.deps.Engine.Optimize(ctx, shop, p, override)
	}

	var items []*models.Product
	if len(ids) > 0 {
		items, fn, err = s.selectByIDs(ctx, shop.ID, ids, fn)
	} else {
		var all []models.Product
		all, err = s.deps.Products.ListByShop(ctx, shop.ID)
		items = pointers(all)
	}
	if err != nil {
		return nil, err
	}
	return s.runBatch(ctx, shop, models.BatchOptimize, items, fn)
}

// DeployAll deploys the listed products of a shop, or every product in
// state optimized when ids is empty.
func (s *Service) DeployAll(ctx context.Context, ownerID, shopID uuid.UUID, ids []uuid.UUID) (*models.BatchResult, error) {
	shop, err := s.Shop(ctx, ownerID, shopID)
	if err != nil {
		return nil, err
	}
	fn := func(ctx context.Context, p *models.Product) (*models.Product, error) {
		return s.deps.Engine.Deploy(ctx, shop, p)
	}

	var items []*models.Product
	if len(ids) > 0 {
		items, fn, err = s.selectByIDs(ctx, shop.ID, ids, fn)
	} else {
		var optimized []models.Product
		optimized, err = s.deps.Products.ListByState(ctx, shop.ID, models.StateOptimized)
		items = pointers(optimized)
	}
	if err != nil {
		return nil, err
	}
	return s.runBatch(ctx, shop, models.BatchDeploy, items, fn)
}

// selectByIDs loads the requested products in request order, dropping
// repeated ids. An id that is not a product of the shop still gets a
// batch entry: a placeholder on which fn is replaced by a NotFound
// failure.
func (s *Service) selectByIDs(ctx context.Context, shopID uuid.UUID, ids []uuid.UUID, fn ItemFunc) ([]*models.Product, ItemFunc, error) {
	found, err := s.deps.Products.ListByIDs(ctx, shopID, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("select products: %w", err)
	}
	byID := make(map[uuid.UUID]*models.Product, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}

	items := make([]*models.Product, 0, len(ids))
	missing := make(map[uuid.UUID]bool)
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		p, ok := byID[id]
		if !ok {
			p = &models.Product{ID: id, ShopID: shopID}
			missing[id] = true
		}
		items = append(items, p)
	}
	if len(missing) == 0 {
		return items, fn, nil
	}
	return items, func(ctx context.Context, p *models.Product) (*models.Product, error) {
		if missing[p.ID] {
			return nil, apperr.Errorf(apperr.NotFound, "optimizer.selectByIDs", "product %s not found in shop %s", p.ID, shopID)
		}
		return fn(ctx, p)
	}, nil
}

func pointers(ps []models.Product) []*models.Product {
	out := make([]*models.Product, len(ps))
	for i := range ps {
		out[i] = &ps[i]
	}
	return out
}

// runBatch runs fn over items under the shop's batch lock and commits the
// results once. When the commit fails the result is still returned with
// the error, since deployed items have already reached the storefront.
func (s *Service) runBatch(ctx context.Context, shop *models.Shop, kind models.BatchKind, items []*models.Product, fn ItemFunc) (*models.BatchResult, error) {
	if len(items) == 0 {
		return RunBatch(ctx, shop.ID, kind, nil, fn), nil
	}

	release, err := s.lockShop(ctx, shop.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	res := RunBatch(ctx, shop.ID, kind, items, fn)

	// Results are committed once for the whole batch. A cancelled request
	// must not lose the work already done, so the save ignores ctx
	// cancellation.
	if err := s.deps.Products.SaveAll(context.WithoutCancel(ctx), updatedProducts(res)); err != nil {
		for _, o := range res.Results {
			s.log.Error("batch result not saved",
				zap.Stringer("batch_id", res.BatchID),
				zap.Stringer("shop_id", shop.ID),
				zap.Stringer("product_id", o.ProductID),
				zap.String("kind", string(res.Kind)),
				zap.String("outcome", string(o.Outcome)),
				zap.String("error", o.Error),
			)
		}
		return res, fmt.Errorf("save batch %s: %w", res.BatchID, err)
	}

	s.finishBatch(ctx, shop, res)
	return res, nil
}

// lockShop takes the shop's batch lock when one is configured.
func (s *Service) lockShop(ctx context.Context, shopID uuid.UUID) (func(), error) {
	if s.deps.Lock == nil {
		return func() {}, nil
	}
	return s.deps.Lock.Acquire(ctx, shopID)
}

// finishBatch logs, measures, archives and announces a completed batch.
// Archiving and announcing are best effort.
func (s *Service) finishBatch(ctx context.Context, shop *models.Shop, res *models.BatchResult) {
	for _, o := range res.Results {
		if o.Outcome == models.OutcomeFailure {
			s.log.Warn("batch item failed",
				zap.Stringer("batch_id", res.BatchID),
				zap.Stringer("shop_id", shop.ID),
				zap.Stringer("product_id", o.ProductID),
				zap.String("kind", string(res.Kind)),
				zap.String("error", o.Error),
			)
		}
	}
	s.log.Info("batch completed",
		zap.Stringer("batch_id", res.BatchID),
		zap.Stringer("shop_id", shop.ID),
		zap.String("kind", string(res.Kind)),
		zap.Int("total", res.Total),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.String("status", string(res.Status)),
	)

	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveBatch(string(res.Kind), string(res.Status), res.Total)
		for _, o := range res.Results {
			outcome := string(o.Outcome)
			if o.ErrorKind != "" {
				outcome = o.ErrorKind
			}
			s.deps.Metrics.ObserveProduct(string(res.Kind), outcome)
		}
	}

	bg := context.WithoutCancel(ctx)
	if s.deps.Reports != nil {
		key, err := s.deps.Reports.Upload(bg, res)
		if err != nil {
			s.log.Warn("batch report upload failed", zap.Stringer("batch_id", res.BatchID), zap.Error(err))
		} else {
			res.Report = key
		}
	}

	s.publish(bg, events.New(events.BatchCompleted, shop.ID, batchSummary{
		BatchID:   res.BatchID,
		Kind:      res.Kind,
		Total:     res.Total,
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Status:    res.Status,
		Report:    res.Report,
	}))
}

// batchSummary is the batch.completed payload: counts without the
// per-product results.
type batchSummary struct {
	BatchID   uuid.UUID          `json:"batch_id"`
	Kind      models.BatchKind   `json:"kind"`
	Total     int                `json:"total"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Status    models.BatchStatus `json:"status"`
	Report    string             `json:"report,omitempty"`
}

func (s *Service) observeProduct(kind models.BatchKind, err error) {
	if s.deps.Metrics == nil {
		return
	}
	outcome := string(models.OutcomeSuccess)
	if err != nil {
		outcome = kindString(err)
	}
	s.deps.Metrics.ObserveProduct(string(kind), outcome)
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.deps.Events.Publish(ctx, e); err != nil {
		s.log.Warn("publish event failed", zap.String("type", e.Type), zap.Error(err))
	}
}
