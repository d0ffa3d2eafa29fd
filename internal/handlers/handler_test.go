// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides the fakes and the test router shared by the
// handler tests.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"copyforge/internal/apperr"
	"copyforge/internal/middleware"
	"copyforge/internal/models"
	"copyforge/internal/prefs"
	"copyforge/internal/templates"
)

// ---------------------------------------------------------------------------
// Optimizer fake
// ---------------------------------------------------------------------------

type fakeOptimizer struct {
	mu       sync.Mutex
	owner    uuid.UUID
	shop     models.Shop
	products []models.Product
	stored   models.PreferencesPatch

	batch     *models.BatchResult
	opErr     error // returned by product operations when set
	installed *models.Shop

	gotIDs      []uuid.UUID
	gotFilter   models.ProductFilter
	gotPatch    models.ProductPatch
	deleted     []uuid.UUID
	gotOverride *models.PreferencesPatch
	gotDomain   string
	gotState    string
	gotBody     []byte
	gotSig      string
}

func (f *fakeOptimizer) Shop(_ context.Context, ownerID, shopID uuid.UUID) (*models.Shop, error) {
	if ownerID != f.owner || shopID != f.shop.ID {
		return nil, apperr.Errorf(apperr.NotFound, "fake.Shop", "shop %s not found", shopID)
	}
	s := f.shop
	return &s, nil
}

func (f *fakeOptimizer) Shops(_ context.Context, ownerID uuid.UUID) ([]models.Shop, error) {
	if ownerID != f.owner {
		return nil, nil
	}
	return []models.Shop{f.shop}, nil
}

func (f *fakeOptimizer) ConnectShop(_ context.Context, ownerID uuid.UUID, domain, name string) (*models.Shop, string, error) {
	f.gotDomain = domain
	return &models.Shop{ID: uuid.New(), OwnerID: ownerID, Domain: domain, Name: name},
		"https://" + domain + "/admin/oauth/authorize?state=nonce", nil
}

func (f *fakeOptimizer) SyncProducts(ctx context.Context, ownerID, shopID uuid.UUID) ([]models.Product, error) {
	if _, err := f.Shop(ctx, ownerID, shopID); err != nil {
		return nil, err
	}
	return f.products, f.opErr
}

func (f *fakeOptimizer) RenameShop(ctx context.Context, ownerID, shopID uuid.UUID, name string) (*models.Shop, error) {
	if _, err := f.Shop(ctx, ownerID, shopID); err != nil {
		return nil, err
	}
	f.shop.Name = name
	s := f.shop
	return &s, nil
}

func (f *fakeOptimizer) DeleteShop(ctx context.Context, ownerID, shopID uuid.UUID) error {
	if _, err := f.Shop(ctx, ownerID, shopID); err != nil {
		return err
	}
	if f.opErr != nil {
		return f.opErr
	}
	f.deleted = append(f.deleted, shopID)
	return nil
}

func (f *fakeOptimizer) Products(ctx context.Context, ownerID, shopID uuid.UUID, filter models.ProductFilter) (*models.ProductPage, error) {
	if _, err := f.Shop(ctx, ownerID, shopID); err != nil {
		return nil, err
	}
	return f.AllProducts(ctx, ownerID, filter)
}

func (f *fakeOptimizer) AllProducts(_ context.Context, ownerID uuid.UUID, filter models.ProductFilter) (*models.ProductPage, error) {
	f.gotFilter = filter
	if ownerID != f.owner {
		return models.NewProductPage(nil, 0, filter), nil
	}
	return models.NewProductPage(f.products, len(f.products), filter), nil
}

func (f *fakeOptimizer) Product(ctx context.Context, ownerID, shopID, productID uuid.UUID) (*models.Product, error) {
	if _, err := f.Shop(ctx, ownerID, shopID); err != nil {
		return nil, err
	}
	for _, p := range f.products {
		if p.ID == productID {
			return &p, nil
		}
	}
	return nil, apperr.Errorf(apperr.NotFound, "fake.Product", "product %s not found", productID)
}

func (f *fakeOptimizer) UpdateProduct(ctx context.Context, ownerID, shopID, productID uuid.UUID, patch models.ProductPatch) (*models.Product, error) {
	f.gotPatch = patch
	p, err := f.Product(ctx, ownerID, shopID, productID)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	return p, nil
}

func (f *fakeOptimizer) DeleteProduct(ctx context.Context, ownerID, shopID, productID uuid.UUID) error {
	if _, err := f.Product(ctx, ownerID, shopID, productID); err != nil {
		return err
	}
	if f.opErr != nil {
		return f.opErr
	}
	f.deleted = append(f.deleted, productID)
	return nil
}

func (f *fakeOptimizer) OptimizeOne(ctx context.Context, ownerID, shopID, productID uuid.UUID, override *models.PreferencesPatch) (*models.Product, error) {
	f.gotOverride = override
	p, err := f.Product(ctx, ownerID, shopID, productID)
	if err != nil {
		return nil, err
	}
	if f.opErr != nil {
		return nil, f.opErr
	}
	p.State = models.StateOptimized
	p.OptimizedDescription = models.Ptr("<p>optimized</p>")
	return p, nil
}

func (f *fakeOptimizer) DeployOne(ctx context.Context, ownerID, shopID, productID uuid.UUID) (*models.Product, error) {
	p, err := f.Product(ctx, ownerID, shopID, productID)
	if err != nil {
		return nil, err
	}
	if f.opErr != nil {
		return nil, f.opErr
	}
	p.State = models.StateDeployed
	return p, nil
}

func (f *fakeOptimizer) OptimizeAll(ctx context.Context, ownerID, shopID uuid.UUID, ids []uuid.UUID, override *models.PreferencesPatch) (*models.BatchResult, error) {
	if _, err := f.Shop(ctx, ownerID, shopID); err != nil {
		return nil, err
	}
	f.gotIDs, f.gotOverride = ids, override
	return f.batch, f.opErr
}

func (f *fakeOptimizer) DeployAll(ctx context.Context, ownerID, shopID uuid.UUID, ids []uuid.UUID) (*models.BatchResult, error) {
	if _, err := f.Shop(ctx, ownerID, shopID); err != nil {
		return nil, err
	}
	f.gotIDs = ids
	return f.batch, f.opErr
}

func (f *fakeOptimizer) Preferences(ctx context.Context, ownerID, shopID uuid.UUID) (models.PreferencesPatch, models.Preferences, error) {
	if _, err := f.Shop(ctx, ownerID, shopID); err != nil {
		return models.PreferencesPatch{}, models.Preferences{}, err
	}
	return f.stored, prefs.Resolve(f.stored, nil), nil
}

func (f *fakeOptimizer) UpdatePreferences(ctx context.Context, ownerID, shopID uuid.UUID, update models.PreferencesPatch) (models.Preferences, error) {
	if err := prefs.ValidateUpdate(update); err != nil {
		return models.Preferences{}, err
	}
	if _, err := f.Shop(ctx, ownerID, shopID); err != nil {
		return models.Preferences{}, err
	}
	f.stored = prefs.Merge(f.stored, update)
	return prefs.Resolve(f.stored, nil), nil
}

func (f *fakeOptimizer) CompleteInstall(_ context.Context, state, code, domain string) (*models.Shop, error) {
	f.gotState, f.gotDomain = state, domain
	if state != "nonce" || code == "" {
		return nil, apperr.Errorf(apperr.Unauthorized, "fake.CompleteInstall", "unknown state")
	}
	return f.installed, nil
}

func (f *fakeOptimizer) HandleProductWebhook(_ context.Context, shopID uuid.UUID, body []byte, signature string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotBody, f.gotSig = body, signature
	if shopID != f.shop.ID {
		return nil, apperr.Errorf(apperr.NotFound, "fake.HandleProductWebhook", "shop not found")
	}
	if signature != "good" {
		return nil, apperr.Errorf(apperr.Unauthorized, "fake.HandleProductWebhook", "invalid webhook signature")
	}
	return &f.products[0], nil
}

// ---------------------------------------------------------------------------
// Templates fake
// ---------------------------------------------------------------------------

type fakeTemplates struct {
	items       map[uuid.UUID]*models.PromptTemplate
	activeCalls int
}

func (f *fakeTemplates) Active(_ context.Context, shopID uuid.UUID) (*models.PromptTemplate, error) {
	f.activeCalls++
	for _, t := range f.items {
		if t.ShopID == shopID && t.IsActive {
			return t, nil
		}
	}
	t := &models.PromptTemplate{ID: uuid.New(), ShopID: shopID, Name: templates.DefaultName, IsActive: true, IsDefault: true}
	f.items[t.ID] = t
	return t, nil
}

func (f *fakeTemplates) SetActive(ctx context.Context, shopID, id uuid.UUID) (*models.PromptTemplate, error) {
	target, err := f.Get(ctx, shopID, id)
	if err != nil {
		return nil, err
	}
	for _, t := range f.items {
		if t.ShopID == shopID {
			t.IsActive = t.ID == id
		}
	}
	target.IsActive = true
	return target, nil
}

func (f *fakeTemplates) Get(_ context.Context, shopID, id uuid.UUID) (*models.PromptTemplate, error) {
	t, ok := f.items[id]
	if !ok || t.ShopID != shopID {
		return nil, apperr.Errorf(apperr.NotFound, "fake.Get", "template %s not found", id)
	}
	return t, nil
}

func (f *fakeTemplates) List(_ context.Context, shopID uuid.UUID) ([]models.PromptTemplate, error) {
	var out []models.PromptTemplate
	for _, t := range f.items {
		if t.ShopID == shopID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTemplates) Create(_ context.Context, shopID uuid.UUID, in templates.Input) (*models.PromptTemplate, error) {
	t := &models.PromptTemplate{ID: uuid.New(), ShopID: shopID, Name: in.Name, Description: in.Description, Body: in.Body}
	f.items[t.ID] = t
	return t, nil
}

func (f *fakeTemplates) Update(ctx context.Context, shopID, id uuid.UUID, p templates.Patch) (*models.PromptTemplate, error) {
	t, err := f.Get(ctx, shopID, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Body != nil {
		t.Body = *p.Body
	}
	return t, nil
}

func (f *fakeTemplates) Delete(ctx context.Context, shopID, id uuid.UUID) error {
	t, err := f.Get(ctx, shopID, id)
	if err != nil {
		return err
	}
	if t.IsActive || t.IsDefault {
		return apperr.Errorf(apperr.Validation, "fake.Delete", "cannot delete the active or default template")
	}
	delete(f.items, id)
	return nil
}

// ---------------------------------------------------------------------------
// Report linker fake
// ---------------------------------------------------------------------------

type fakeLinker struct{ gotKey string }

func (l *fakeLinker) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	l.gotKey = key
	return "https://reports.example.com/" + key + "?sig=x", nil
}

// ---------------------------------------------------------------------------
// Test server
// ---------------------------------------------------------------------------

type testEnv struct {
	svc       *fakeOptimizer
	templates *fakeTemplates
	api       *API
	public    *Public
	mux       chi.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	opts, err := prefs.LoadOptions()
	if err != nil {
		t.Fatalf("load options: %v", err)
	}

	owner := uuid.New()
	shop := models.Shop{ID: uuid.New(), OwnerID: owner, Domain: "test.myshopify.com", Name: "Test"}
	env := &testEnv{
		svc: &fakeOptimizer{
			owner: owner,
			shop:  shop,
			products: []models.Product{
				{ID: uuid.New(), ShopID: shop.ID, ExternalID: "1", Title: "A", State: models.StatePending},
				{ID: uuid.New(), ShopID: shop.ID, ExternalID: "2", Title: "B", State: models.StatePending},
			},
			installed: &shop,
		},
		templates: &fakeTemplates{items: map[uuid.UUID]*models.PromptTemplate{}},
	}
	env.api = NewAPI(env.svc, env.templates, opts, zap.NewNop())
	env.public = NewPublic(env.svc, nil, zap.NewNop())

	r := chi.NewRouter()
	r.Get("/oauth/callback", env.public.OAuthCallback)
	r.Post("/webhooks/shops/{shopID}/products-update", env.public.ProductWebhook)
	r.Get("/health", env.public.Health)
	r.Route("/api", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("X-Test-Anonymous") == "" {
					r = r.WithContext(middleware.WithOwner(r.Context(), owner))
				}
				next.ServeHTTP(w, r)
			})
		})
		r.Get("/options", env.api.Options)
		r.Get("/products", env.api.ListAllProducts)
		r.Get("/shops", env.api.ListShops)
		r.Post("/shops", env.api.ConnectShop)
		r.Route("/shops/{shopID}", func(r chi.Router) {
			r.Get("/", env.api.GetShop)
			r.Put("/", env.api.UpdateShop)
			r.Delete("/", env.api.DeleteShop)
			r.Get("/preferences", env.api.GetPreferences)
			r.Put("/preferences", env.api.UpdatePreferences)
			r.Get("/products", env.api.ListProducts)
			r.Post("/products/sync", env.api.SyncProducts)
			r.Post("/products/optimize-all", env.api.OptimizeAll)
			r.Post("/products/deploy-all", env.api.DeployAll)
			r.Get("/products/{productID}", env.api.GetProduct)
			r.Put("/products/{productID}", env.api.UpdateProduct)
			r.Delete("/products/{productID}", env.api.DeleteProduct)
			r.Post("/products/{productID}/optimize", env.api.OptimizeProduct)
			r.Post("/products/{productID}/deploy", env.api.DeployProduct)
			r.Get("/batches/{batchID}/report", env.api.BatchReport)
			r.Get("/templates", env.api.ListTemplates)
			r.Post("/templates", env.api.CreateTemplate)
			r.Post("/templates/preview", env.api.PreviewTemplate)
			r.Get("/templates/{templateID}", env.api.GetTemplate)
			r.Put("/templates/{templateID}", env.api.UpdateTemplate)
			r.Delete("/templates/{templateID}", env.api.DeleteTemplate)
			r.Post("/templates/{templateID}/activate", env.api.ActivateTemplate)
		})
	})
	env.mux = r
	return env
}

// do sends a request with an optional JSON body through the test router.
func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		if err := json.NewEncoder(&buf).Encode(v); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	e.mux.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) shopPath(suffix string) string {
	return "/api/shops/" + e.svc.shop.ID.String() + suffix
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func errorKind(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[middleware.ErrorBody](t, rr).Error.Kind
}
