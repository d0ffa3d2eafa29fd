// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the JSON HTTP handlers of copyforge. Handlers
// are grouped by audience (the merchant API and the public callbacks)
// and receive their dependencies through the handler struct.
package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"copyforge/internal/apperr"
	"copyforge/internal/middleware"
	"copyforge/internal/models"
	"copyforge/internal/prefs"
	"copyforge/internal/templates"
)

// Optimizer is the merchant-facing application service.
type Optimizer interface {
	Shop(ctx context.Context, ownerID, shopID uuid.UUID) (*models.Shop, error)
	Shops(ctx context.Context, ownerID uuid.UUID) ([]models.Shop, error)
	ConnectShop(ctx context.Context, ownerID uuid.UUID, domain, name string) (*models.Shop, string, error)
	RenameShop(ctx context.Context, ownerID, shopID uuid.UUID, name string) (*models.Shop, error)
	DeleteShop(ctx context.Context, ownerID, shopID uuid.UUID) error
	SyncProducts(ctx context.Context, ownerID, shopID uuid.UUID) ([]models.Product, error)

	Products(ctx context.Context, ownerID, shopID uuid.UUID, f models.ProductFilter) (*models.ProductPage, error)
	AllProducts(ctx context.Context, ownerID uuid.UUID, f models.ProductFilter) (*models.ProductPage, error)
	Product(ctx context.Context, ownerID, shopID, productID uuid.UUID) (*models.Product, error)
	UpdateProduct(ctx context.Context, ownerID, shopID, productID uuid.UUID, patch models.ProductPatch) (*models.Product, error)
	DeleteProduct(ctx context.Context, ownerID, shopID, productID uuid.UUID) error
	OptimizeOne(ctx context.Context, ownerID, shopID, productID uuid.UUID, override *models.PreferencesPatch) (*models.Product, error)
	DeployOne(ctx context.Context, ownerID, shopID, productID uuid.UUID) (*models.Product, error)
	OptimizeAll(ctx context.Context, ownerID, shopID uuid.UUID, ids []uuid.UUID, override *models.PreferencesPatch) (*models.BatchResult, error)
	DeployAll(ctx context.Context, ownerID, shopID uuid.UUID, ids []uuid.UUID) (*models.BatchResult, error)

	Preferences(ctx context.Context, ownerID, shopID uuid.UUID) (models.PreferencesPatch, models.Preferences, error)
	UpdatePreferences(ctx context.Context, ownerID, shopID uuid.UUID, update models.PreferencesPatch) (models.Preferences, error)
}

// Templates manages a shop's prompt templates.
type Templates interface {
	Active(ctx context.Context, shopID uuid.UUID) (*models.PromptTemplate, error)
	SetActive(ctx context.Context, shopID, id uuid.UUID) (*models.PromptTemplate, error)
	Get(ctx context.Context, shopID, id uuid.UUID) (*models.PromptTemplate, error)
	List(ctx context.Context, shopID uuid.UUID) ([]models.PromptTemplate, error)
	Create(ctx context.Context, shopID uuid.UUID, in templates.Input) (*models.PromptTemplate, error)
	Update(ctx context.Context, shopID, id uuid.UUID, p templates.Patch) (*models.PromptTemplate, error)
	Delete(ctx context.Context, shopID, id uuid.UUID) error
}

// API groups the authenticated merchant handlers and their dependencies.
type API struct {
	svc       Optimizer
	templates Templates
	options   prefs.Options
	reports   ReportLinker
	reportKey func(shopID, batchID uuid.UUID) string
	log       *zap.Logger
}

// NewAPI creates the merchant API handler group.
func NewAPI(svc Optimizer, tmpl Templates, options prefs.Options, log *zap.Logger) *API {
	return &API{svc: svc, templates: tmpl, options: options, log: log}
}

// fail writes err as a JSON error. Unclassified errors are logged since
// their text never reaches the client.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.KindOf(err) == "" {
		a.log.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	middleware.WriteError(w, err)
}

// scope resolves the merchant and the {shopID} parameter of a request.
func scope(r *http.Request) (ownerID, shopID uuid.UUID, err error) {
	if ownerID, err = owner(r); err != nil {
		return
	}
	shopID, err = pathID(r, "shopID")
	return
}

// ---------------------------------------------------------------------------
// Shops
// ---------------------------------------------------------------------------

type connectRequest struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
}

type connectResponse struct {
	Shop       *models.Shop `json:"shop"`
	InstallURL string       `json:"install_url"`
}

// ListShops returns the merchant's shops.
func (a *API) ListShops(w http.ResponseWriter, r *http.Request) {
	ownerID, err := owner(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	shops, err := a.svc.Shops(r.Context(), ownerID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if shops == nil {
		shops = []models.Shop{}
	}
	writeJSON(w, http.StatusOK, shops)
}

// ConnectShop registers a storefront and returns the URL the merchant
// visits to grant access.
func (a *API) ConnectShop(w http.ResponseWriter, r *http.Request) {
	ownerID, err := owner(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req connectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validateConnect(req.Domain, req.Name); err != nil {
		a.fail(w, r, err)
		return
	}

	shop, installURL, err := a.svc.ConnectShop(r.Context(), ownerID, req.Domain, req.Name)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, connectResponse{Shop: shop, InstallURL: installURL})
}

// GetShop returns one of the merchant's shops.
func (a *API) GetShop(w http.ResponseWriter, r *http.Request) {
	ownerID, shopID, err := scope(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	shop, err := a.svc.Shop(r.Context(), ownerID, shopID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

type renameRequest struct {
	Name string `json:"name"`
}

// UpdateShop renames one of the merchant's shops.
func (a *API) UpdateShop(w http.ResponseWriter, r *http.Request) {
	ownerID, shopID, err := scope(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validateShopName(req.Name); err != nil {
		a.fail(w, r, err)
		return
	}

	shop, err := a.svc.RenameShop(r.Context(), ownerID, shopID, req.Name)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

// DeleteShop disconnects one of the merchant's shops.
func (a *API) DeleteShop(w http.ResponseWriter, r *http.Request) {
	ownerID, shopID, err := scope(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.svc.DeleteShop(r.Context(), ownerID, shopID); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Preferences and options
// ---------------------------------------------------------------------------

type preferencesResponse struct {
	Stored   models.PreferencesPatch `json:"stored"`
	Resolved models.Preferences      `json:"resolved"`
}

// GetPreferences returns the stored preference patch and what it resolves to.
func (a *API) GetPreferences(w http.ResponseWriter, r *http.Request) {
	ownerID, shopID, err := scope(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	stored, resolved, err := a.svc.Preferences(r.Context(), ownerID, shopID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preferencesResponse{Stored: stored, Resolved: resolved})
}

// UpdatePreferences deep-merges the request into the shop's preferences.
// Values outside the offered vocabulary are accepted and logged.
func (a *API) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	ownerID, shopID, err := scope(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var update models.PreferencesPatch
	if err := decodeJSON(w, r, &update); err != nil {
		a.fail(w, r, err)
		return
	}

	resolved, err := a.svc.UpdatePreferences(r.Context(), ownerID, shopID, update)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	for field, v := range map[string]string{
		"tone":            resolved.Tone,
		"target_audience": resolved.TargetAudience,
		"writing_style":   resolved.WritingStyle,
	} {
		if !prefs.Allows(a.options.Vocabulary(field), v) {
			a.log.Info("preference outside vocabulary",
				zap.Stringer("shop_id", shopID), zap.String("field", field), zap.String("value", v))
		}
	}
	writeJSON(w, http.StatusOK, resolved)
}

// Options returns the preference vocabularies.
func (a *API) Options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.options)
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

type optimizeRequest struct {
	Preferences *models.PreferencesPatch `json:"preferences"`
}

type batchRequest struct {
	ProductIDs  []uuid.UUID              `json:"product_ids"`
	Preferences *models.PreferencesPatch `json:"preferences"`
}

type syncResponse struct {
	Count    int              `json:"count"`
	Products []models.Product `json:"products"`
}

// ListProducts returns one page of the shop's products.
func (a *API) ListProducts(w http.ResponseWriter, r *http.Request) {
	ownerID, shopID, err := scope(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	f, err := productFilter(r.URL.Query())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	page, err := a.svc.Products(r.Context(), ownerID, shopID, f)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ListAllProducts returns one page of the products of every shop the
// merchant owns.
func (a *API) ListAllProducts(w http.ResponseWriter, r *http.Request) {
	ownerID, err := owner(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	f, err := productFilter(r.URL.Query())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	page, err := a.svc.AllProducts(r.Context(), ownerID, f)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetProduct returns one product of the shop.
func (a *API) GetProduct(w http.ResponseWriter, r *http.Request) {
	ownerID, shopID, err := scope(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	productID, err := pathID(r, "productID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.svc.Product(r.Context(), ownerID, shopID, productID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProduct edits the stored title or description of one product.
func (a *API) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ownerID, shopID, err := scope(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	productID, err := pathID(r, "productID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var patch models.ProductPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validateProductPatch(patch); err != nil {
		a.fail(w, r, err)
		return
	}

	p, err := a.svc.UpdateProduct(r.Context(), ownerID, shopID, productID, patch)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProduct removes one product from the catalogue.
func (a *API) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ownerID, shopID, err := scope(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	productID, err := pathID(r, "productID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.svc.DeleteProduct(r.Context(), ownerID, shopID, productID); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OptimizeProduct generates a new description for one product. The
// optional preferences in the body override the shop's for this call.
func (a *API) OptimizeProduct(w http.ResponseWriter, r *http.Request) {
	ownerID, shopID, err := scope(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	productID, err := pathID(r, "productID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req optimizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	p, err := a.svc.OptimizeOne(r.Context(), ownerID, shopID, productID, req.Preferences)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeployProduct pushes one optimized description to the storefront.
func (a *API) DeployProduct(w http.ResponseWriter, r *http.Request) {
	ownerID, shopID, err := scope(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	productID, err := pathID(r, "productID")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.svc.DeployOne(r.Context(), ownerID, shopID, productID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// OptimizeAll runs a batch optimization over the listed products, or
// every product of the shop.
func (a *API) OptimizeAll(w http.ResponseWriter, r *http.Request) {
	ownerID, shopID, err := scope(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validateProductIDs(req.ProductIDs); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.svc.OptimizeAll(r.Context(), ownerID, shopID, req.ProductIDs, req.Preferences)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeBatch(w, res)
}

// DeployAll deploys the listed products, or every optimized product.
func (a *API) DeployAll(w http.ResponseWriter, r *http.Request) {
	ownerID, shopID, err := scope(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := validateProductIDs(req.ProductIDs); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.svc.DeployAll(r.Context(), ownerID, shopID, req.ProductIDs)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeBatch(w, res)
}

// writeBatch answers 200 when every item succeeded and 207 Multi-Status
// otherwise; the body always carries the per-item results.
func writeBatch(w http.ResponseWriter, res *models.BatchResult) {
	status := http.StatusOK
	if res.Status != models.BatchSucceeded {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, res)
}

// SyncProducts imports the storefront's catalogue.
func (a *API) SyncProducts(w http.ResponseWriter, r *http.Request) {
	ownerID, shopID, err := scope(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	products, err := a.svc.SyncProducts(r.Context(), ownerID, shopID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	writeJSON(w, http.StatusOK, syncResponse{Count: len(products), Products: products})
}
