// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copyforge/internal/database/dbtest"
	"copyforge/internal/models"
	"copyforge/internal/secrets"
)

func testBox(t *testing.T) *secrets.Box {
	t.Helper()
	box, err := secrets.NewBox(strings.Repeat("42", 32))
	require.NoError(t, err)
	return box
}

// testShop inserts a shop and returns it.
func testShop(t *testing.T, db *sql.DB, domain string) *models.Shop {
	t.Helper()
	shop, err := NewShopStore(db, testBox(t)).Create(context.Background(), &models.Shop{
		OwnerID: uuid.New(),
		Domain:  domain,
		Name:    "Test Shop",
	})
	require.NoError(t, err)
	return shop
}

// ---------------------------------------------------------------------------
// Shops
// ---------------------------------------------------------------------------

func TestShopStoreEncryptsAccessToken(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	s := NewShopStore(db, testBox(t))

	shop := testShop(t, db, "enc.myshopify.com")
	assert.Equal(t, models.DefaultAPIVersion, shop.APIVersion)
	assert.False(t, shop.Authenticated())

	shop.AccessToken = "shpat_secret"
	shop.InstallationComplete = true
	require.NoError(t, s.Update(ctx, shop))

	var raw string
	require.NoError(t, db.QueryRow("SELECT access_token FROM shops WHERE id = $1", shop.ID).Scan(&raw))
	assert.NotEmpty(t, raw)
	assert.NotContains(t, raw, "shpat_secret")

	got, err := s.FindByID(ctx, shop.ID)
	require.NoError(t, err)
	assert.Equal(t, "shpat_secret", got.AccessToken)
	assert.True(t, got.InstallationComplete)

	byDomain, err := s.FindByDomain(ctx, "enc.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, shop.ID, byDomain.ID)
}

func TestShopStoreNotFound(t *testing.T) {
	db := dbtest.New(t)
	s := NewShopStore(db, testBox(t))

	got, err := s.FindByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestShopStorePreferencesRoundTrip(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	s := NewShopStore(db, testBox(t))
	shop := testShop(t, db, "prefs.myshopify.com")

	patch := models.PreferencesPatch{
		Tone:        models.Ptr("playful"),
		KeyFeatures: []string{"warm", "soft"},
		BrandVoice:  &models.BrandVoicePatch{Personality: models.Ptr("friendly")},
	}
	require.NoError(t, s.UpdatePreferences(ctx, shop.ID, patch))

	got, err := s.FindByID(ctx, shop.ID)
	require.NoError(t, err)
	assert.Equal(t, patch, got.Preferences)
}

func TestShopStoreListByOwner(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	s := NewShopStore(db, testBox(t))

	owner := uuid.New()
	for _, d := range []string{"one.myshopify.com", "two.myshopify.com"} {
		_, err := s.Create(ctx, &models.Shop{OwnerID: owner, Domain: d})
		require.NoError(t, err)
	}
	testShop(t, db, "other.myshopify.com")

	shops, err := s.ListByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, shops, 2)
}

func TestShopStoreDeleteCascades(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	shops := NewShopStore(db, testBox(t))
	products := NewProductStore(db)
	shop := testShop(t, db, "gone.myshopify.com")

	p, err := products.Upsert(ctx, &models.Product{ShopID: shop.ID, ExternalID: "1", Title: "Mug"})
	require.NoError(t, err)
	_, err = NewTemplateStore(db).CreateActive(ctx, &models.PromptTemplate{ShopID: shop.ID, Name: "Default", Body: "x"})
	require.NoError(t, err)

	require.NoError(t, shops.Delete(ctx, shop.ID))

	got, err := shops.FindByID(ctx, shop.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	gone, err := products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	var templates int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM prompt_templates WHERE shop_id = $1", shop.ID).Scan(&templates))
	assert.Zero(t, templates)
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

func TestProductStoreUpsert(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	s := NewProductStore(db)
	shop := testShop(t, db, "products.myshopify.com")

	p, err := s.Upsert(ctx, &models.Product{
		ShopID: shop.ID, ExternalID: "42", Title: "Mug", Description: "A mug.",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatePending, p.State)
	assert.Equal(t, "A mug.", p.OriginalDescription)

	// Mark optimized, then re-sync with changed storefront text.
	opt := "<p>Better mug.</p>"
	now := time.Now().UTC().Truncate(time.Microsecond)
	p.OptimizedDescription = &opt
	p.State = models.StateOptimized
	p.LastOptimizedAt = &now
	require.NoError(t, s.Save(ctx, p))

	again, err := s.Upsert(ctx, &models.Product{
		ShopID: shop.ID, ExternalID: "42", Title: "Big Mug", Description: "A big mug.",
	})
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, "Big Mug", again.Title)
	assert.Equal(t, "A big mug.", again.Description)
	assert.Equal(t, "A mug.", again.OriginalDescription, "original text is kept")
	assert.Equal(t, models.StateOptimized, again.State, "state survives a sync")
	require.NotNil(t, again.OptimizedDescription)
	assert.Equal(t, opt, *again.OptimizedDescription)
}

func TestProductStoreListByIDsKeepsOrder(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	s := NewProductStore(db)
	shop := testShop(t, db, "order.myshopify.com")
	other := testShop(t, db, "foreign.myshopify.com")

	var ids []uuid.UUID
	for _, ext := range []string{"1", "2", "3"} {
		p, err := s.Upsert(ctx, &models.Product{ShopID: shop.ID, ExternalID: ext, Title: "P" + ext})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	foreign, err := s.Upsert(ctx, &models.Product{ShopID: other.ID, ExternalID: "9", Title: "F"})
	require.NoError(t, err)

	got, err := s.ListByIDs(ctx, shop.ID, []uuid.UUID{ids[2], foreign.ID, ids[0], uuid.New()})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ids[2], got[0].ID)
	assert.Equal(t, ids[0], got[1].ID)
}

func TestProductStoreSaveAllAndListByState(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	s := NewProductStore(db)
	shop := testShop(t, db, "state.myshopify.com")

	var ps []*models.Product
	for _, ext := range []string{"1", "2"} {
		p, err := s.Upsert(ctx, &models.Product{ShopID: shop.ID, ExternalID: ext, Title: "P" + ext})
		require.NoError(t, err)
		ps = append(ps, p)
	}
	opt := "<p>x</p>"
	ps[0].OptimizedDescription = &opt
	ps[0].State = models.StateOptimized
	require.NoError(t, s.SaveAll(ctx, ps))

	optimized, err := s.ListByState(ctx, shop.ID, models.StateOptimized)
	require.NoError(t, err)
	require.Len(t, optimized, 1)
	assert.Equal(t, ps[0].ID, optimized[0].ID)

	all, err := s.ListByShop(ctx, shop.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestProductStoreListFiltersAndPages(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	s := NewProductStore(db)
	shop := testShop(t, db, "list.myshopify.com")
	second := testShop(t, db, "list-two.myshopify.com")
	other := testShop(t, db, "list-other.myshopify.com")

	seed := []struct {
		shop   uuid.UUID
		ext    string
		title  string
		vendor string
	}{
		{shop.ID, "1", "Enamel Mug", "Acme"},
		{shop.ID, "2", "Desk Lamp", "Lumen"},
		{shop.ID, "3", "100% Wool Scarf", "Acme"},
		{second.ID, "1", "Travel Mug", "Roam"},
		{other.ID, "1", "Foreign Mug", "Acme"},
	}
	ids := map[string]uuid.UUID{}
	for _, sp := range seed {
		p, err := s.Upsert(ctx, &models.Product{ShopID: sp.shop, ExternalID: sp.ext, Title: sp.title, Vendor: sp.vendor})
		require.NoError(t, err)
		ids[sp.title] = p.ID
	}
	lamp, err := s.FindByID(ctx, ids["Desk Lamp"])
	require.NoError(t, err)
	lamp.State = models.StateOptimized
	require.NoError(t, s.Save(ctx, lamp))

	page := func(f models.ProductFilter, shops ...uuid.UUID) ([]string, int) {
		t.Helper()
		if f.Page == 0 {
			f.Page = 1
		}
		if f.PerPage == 0 {
			f.PerPage = models.DefaultPerPage
		}
		ps, total, err := s.List(ctx, shops, f)
		require.NoError(t, err)
		var titles []string
		for _, p := range ps {
			titles = append(titles, p.Title)
		}
		return titles, total
	}

	titles, total := page(models.ProductFilter{}, shop.ID)
	assert.Equal(t, 3, total)
	assert.Equal(t, "Desk Lamp", titles[0], "most recently updated first")

	titles, total = page(models.ProductFilter{State: models.StateOptimized}, shop.ID)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"Desk Lamp"}, titles)

	titles, total = page(models.ProductFilter{Search: "acme"}, shop.ID)
	assert.Equal(t, 2, total, "search matches the vendor case-insensitively")
	assert.ElementsMatch(t, []string{"Enamel Mug", "100% Wool Scarf"}, titles)

	titles, _ = page(models.ProductFilter{Search: "100%"}, shop.ID)
	assert.Equal(t, []string{"100% Wool Scarf"}, titles, "wildcards in the term are literal")

	titles, total = page(models.ProductFilter{Search: "mug"}, shop.ID, second.ID)
	assert.Equal(t, 2, total)
	assert.ElementsMatch(t, []string{"Enamel Mug", "Travel Mug"}, titles)

	titles, total = page(models.ProductFilter{Page: 2, PerPage: 2}, shop.ID)
	assert.Equal(t, 3, total)
	assert.Len(t, titles, 1)

	titles, total = page(models.ProductFilter{Page: 5, PerPage: 2}, shop.ID)
	assert.Equal(t, 3, total)
	assert.Empty(t, titles)

	titles, total = page(models.ProductFilter{})
	assert.Zero(t, total)
	assert.Empty(t, titles)
}

func TestProductStoreDelete(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	s := NewProductStore(db)
	shop := testShop(t, db, "delete.myshopify.com")

	p, err := s.Upsert(ctx, &models.Product{ShopID: shop.ID, ExternalID: "1", Title: "Mug"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, p.ID))

	got, err := s.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

func TestTemplateStoreCreateActiveIsIdempotent(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	s := NewTemplateStore(db)
	shop := testShop(t, db, "tmpl.myshopify.com")

	const workers = 8
	results := make([]*models.PromptTemplate, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tmpl, err := s.CreateActive(ctx, &models.PromptTemplate{
				ShopID: shop.ID, Name: "Default", Body: "x", IsActive: true, IsDefault: true,
			})
			assert.NoError(t, err)
			results[i] = tmpl
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, results[0].ID, r.ID)
	}

	all, err := s.ListByShop(ctx, shop.ID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTemplateStoreActivateSwitches(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	s := NewTemplateStore(db)
	shop := testShop(t, db, "switch.myshopify.com")

	first, err := s.CreateActive(ctx, &models.PromptTemplate{ShopID: shop.ID, Name: "A", Body: "a"})
	require.NoError(t, err)
	second, err := s.Create(ctx, &models.PromptTemplate{ShopID: shop.ID, Name: "B", Body: "b"})
	require.NoError(t, err)
	assert.False(t, second.IsActive)

	require.NoError(t, s.Activate(ctx, shop.ID, second.ID))

	active, err := s.FindActive(ctx, shop.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	old, err := s.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, old.IsActive)

	// A template of another shop cannot be activated here.
	other := testShop(t, db, "elsewhere.myshopify.com")
	assert.Error(t, s.Activate(ctx, other.ID, first.ID))
}

func TestTemplateStoreUsageAndDelete(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	s := NewTemplateStore(db)
	shop := testShop(t, db, "usage.myshopify.com")

	tmpl, err := s.Create(ctx, &models.PromptTemplate{ShopID: shop.ID, Name: "U", Body: "u"})
	require.NoError(t, err)

	at := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, s.IncrementUsage(ctx, tmpl.ID, at))
	require.NoError(t, s.IncrementUsage(ctx, tmpl.ID, at))

	got, err := s.FindByID(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsageCount)
	require.NotNil(t, got.LastUsedAt)
	assert.True(t, got.LastUsedAt.Equal(at))

	tmpl.Body = "changed"
	require.NoError(t, s.Update(ctx, tmpl))
	got, err = s.FindByID(ctx, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed", got.Body)

	require.NoError(t, s.Delete(ctx, tmpl.ID))
	got, err = s.FindByID(ctx, tmpl.ID)
	assert.NoError(t, err)
	assert.Nil(t, got)
}
