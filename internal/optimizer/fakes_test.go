package optimizer

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"copyforge/internal/apperr"
	"copyforge/internal/cache"
	"copyforge/internal/events"
	"copyforge/internal/models"
	"copyforge/internal/prompt"
	"copyforge/internal/storefront"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// ---------------------------------------------------------------------------
// Pipeline fakes
// ---------------------------------------------------------------------------

type fakeTemplates struct {
	mu   sync.Mutex
	tmpl models.PromptTemplate
	err  error
	uses map[uuid.UUID]int
}

func newFakeTemplates(body string) *fakeTemplates {
	return &fakeTemplates{
		tmpl: models.PromptTemplate{ID: uuid.New(), Name: "Custom", Body: body, IsActive: true},
		uses: map[uuid.UUID]int{},
	}
}

func (f *fakeTemplates) Active(_ context.Context, shopID uuid.UUID) (*models.PromptTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	t := f.tmpl
	t.ShopID = shopID
	return &t, nil
}

func (f *fakeTemplates) RecordUse(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uses[id]++
	return nil
}

func (f *fakeTemplates) usesOf(id uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uses[id]
}

// failingRenderer fails every render with the given kind.
type failingRenderer struct {
	kind  apperr.Kind
	calls int
}

func (r *failingRenderer) Render(string, prompt.Context) (string, error) {
	r.calls++
	return "", apperr.Errorf(r.kind, "test.Render", "broken")
}

// fakeGenerator records prompts; reply decides the answer for the n-th call.
type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   func(n int, prompt string) (string, error)
}

func (g *fakeGenerator) Generate(_ context.Context, p string) (string, error) {
	g.mu.Lock()
	n := len(g.prompts)
	g.prompts = append(g.prompts, p)
	reply := g.reply
	g.mu.Unlock()
	if reply == nil {
		return "<p>optimized</p>", nil
	}
	return reply(n, p)
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type fakeStorefront struct {
	mu        sync.Mutex
	updates   map[string]string
	updateErr error
	remote    []storefront.RemoteProduct
	info      *storefront.ShopInfo
}

func (f *fakeStorefront) UpdateDescription(_ context.Context, _ *models.Shop, externalID, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updates == nil {
		f.updates = map[string]string{}
	}
	f.updates[externalID] = html
	return nil
}

func (f *fakeStorefront) ListProducts(context.Context, *models.Shop) ([]storefront.RemoteProduct, error) {
	return f.remote, nil
}

func (f *fakeStorefront) ShopInfo(context.Context, *models.Shop) (*storefront.ShopInfo, error) {
	if f.info == nil {
		return nil, errors.New("no shop info")
	}
	return f.info, nil
}

func (f *fakeStorefront) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

// ---------------------------------------------------------------------------
// Repository fakes
// ---------------------------------------------------------------------------

type memShops struct {
	mu    sync.Mutex
	shops map[uuid.UUID]models.Shop
}

func (m *memShops) FindByID(_ context.Context, id uuid.UUID) (*models.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shops[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memShops) FindByDomain(_ context.Context, domain string) (*models.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.shops {
		if s.Domain == domain {
			return &s, nil
		}
	}
	return nil, nil
}

func (m *memShops) ListByOwner(_ context.Context, owner uuid.UUID) ([]models.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Shop
	for _, s := range m.shops {
		if s.OwnerID == owner {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memShops) Create(_ context.Context, s *models.Shop) (*models.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *s
	c.ID = uuid.New()
	m.shops[c.ID] = c
	return &c, nil
}

func (m *memShops) Update(_ context.Context, s *models.Shop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shops[s.ID] = *s
	return nil
}

func (m *memShops) UpdatePreferences(_ context.Context, id uuid.UUID, p models.PreferencesPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.shops[id]
	s.Preferences = p
	m.shops[id] = s
	return nil
}

func (m *memShops) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.shops, id)
	return nil
}

type memProducts struct {
	mu           sync.Mutex
	products     map[uuid.UUID]*models.Product
	saveAllCalls int
	saveAllErr   error
}

func (m *memProducts) get(id uuid.UUID) *models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[id]; ok {
		return p.Clone()
	}
	return nil
}

func (m *memProducts) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	return m.get(id), nil
}

func (m *memProducts) list(keep func(*models.Product) bool) []models.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Product
	for _, p := range m.products {
		if keep(p) {
			out = append(out, *p.Clone())
		}
	}
	slices.SortFunc(out, func(a, b models.Product) int { return strings.Compare(a.Title, b.Title) })
	return out
}

func (m *memProducts) ListByShop(_ context.Context, shopID uuid.UUID) ([]models.Product, error) {
	return m.list(func(p *models.Product) bool { return p.ShopID == shopID }), nil
}

func (m *memProducts) ListByState(_ context.Context, shopID uuid.UUID, st models.ProductState) ([]models.Product, error) {
	return m.list(func(p *models.Product) bool { return p.ShopID == shopID && p.State == st }), nil
}

func (m *memProducts) ListByIDs(_ context.Context, shopID uuid.UUID, ids []uuid.UUID) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p := m.get(id); p != nil && p.ShopID == shopID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProducts) List(_ context.Context, shopIDs []uuid.UUID, f models.ProductFilter) ([]models.Product, int, error) {
	search := strings.ToLower(f.Search)
	all := m.list(func(p *models.Product) bool {
		return slices.Contains(shopIDs, p.ShopID) &&
			(f.State == "" || p.State == f.State) &&
			(search == "" || strings.Contains(strings.ToLower(p.Title), search) ||
				strings.Contains(strings.ToLower(p.Vendor), search))
	})
	start := min(f.Offset(), len(all))
	end := min(start+f.PerPage, len(all))
	return all[start:end], len(all), nil
}

func (m *memProducts) Save(_ context.Context, p *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p.Clone()
	return nil
}

func (m *memProducts) SaveAll(_ context.Context, ps []*models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveAllCalls++
	if m.saveAllErr != nil {
		return m.saveAllErr
	}
	for _, p := range ps {
		m.products[p.ID] = p.Clone()
	}
	return nil
}

func (m *memProducts) Upsert(_ context.Context, p *models.Product) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.products {
		if existing.ShopID == p.ShopID && existing.ExternalID == p.ExternalID {
			existing.Title = p.Title
			existing.Description = p.Description
			return existing.Clone(), nil
		}
	}
	c := p.Clone()
	c.ID = uuid.New()
	c.State = models.StatePending
	c.OriginalDescription = p.Description
	m.products[c.ID] = c
	return c.Clone(), nil
}

func (m *memProducts) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
	return nil
}

// ---------------------------------------------------------------------------
// Infrastructure fakes
// ---------------------------------------------------------------------------

type fakeInstaller struct{}

func (fakeInstaller) AuthURL(domain, state string) string {
	return "https://" + domain + "/admin/oauth/authorize?state=" + state
}

func (fakeInstaller) Exchange(_ context.Context, _, code string) (string, string, error) {
	if code != "good-code" {
		return "", "", apperr.Errorf(apperr.Storefront, "test.Exchange", "bad code")
	}
	return "shpat_token", "read_products,write_products", nil
}

type memStates struct {
	mu     sync.Mutex
	states map[string]cache.OAuthState
}

func (m *memStates) Put(_ context.Context, nonce string, st cache.OAuthState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[nonce] = st
	return nil
}

func (m *memStates) Take(_ context.Context, nonce string) (*cache.OAuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[nonce]
	if !ok {
		return nil, apperr.Errorf(apperr.Unauthorized, "test.Take", "unknown state")
	}
	delete(m.states, nonce)
	return &st, nil
}

type fakeLock struct {
	mu       sync.Mutex
	err      error
	acquired int
	released int
}

func (l *fakeLock) Acquire(context.Context, uuid.UUID) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

type fakeReports struct {
	err      error
	uploaded []*models.BatchResult
}

func (r *fakeReports) Upload(_ context.Context, res *models.BatchResult) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.uploaded = append(r.uploaded, res)
	return "reports/" + res.BatchID.String() + ".json", nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeRecorder struct {
	products map[string]int
	batches  map[string]int
}

func (r *fakeRecorder) ObserveProduct(operation, outcome string) {
	r.products[operation+"/"+outcome]++
}

func (r *fakeRecorder) ObserveBatch(kind, status string, _ int) {
	r.batches[kind+"/"+status]++
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type harness struct {
	owner     uuid.UUID
	shop      models.Shop
	products  []*models.Product // pending products titled A, B, C
	templates *fakeTemplates
	gen       *fakeGenerator
	front     *fakeStorefront
	shops     *memShops
	store     *memProducts
	states    *memStates
	lock      *fakeLock
	reports   *fakeReports
	events    *recordingPublisher
	metrics   *fakeRecorder
	engine    *Engine
	svc       *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		owner:     uuid.New(),
		templates: newFakeTemplates("Describe {{.item_title}} ({{.item_original_text}}) in a {{.tone}} tone."),
		gen:       &fakeGenerator{},
		front:     &fakeStorefront{},
		shops:     &memShops{shops: map[uuid.UUID]models.Shop{}},
		store:     &memProducts{products: map[uuid.UUID]*models.Product{}},
		states:    &memStates{states: map[string]cache.OAuthState{}},
		lock:      &fakeLock{},
		reports:   &fakeReports{},
		events:    &recordingPublisher{},
		metrics:   &fakeRecorder{products: map[string]int{}, batches: map[string]int{}},
	}

	h.shop = models.Shop{
		ID:            uuid.New(),
		OwnerID:       h.owner,
		Domain:        "test.myshopify.com",
		Name:          "Test",
		AccessToken:   "shpat_existing",
		WebhookSecret: "hush",
	}
	h.shops.shops[h.shop.ID] = h.shop

	for i, title := range []string{"A", "B", "C"} {
		p := &models.Product{
			ID:                  uuid.New(),
			ShopID:              h.shop.ID,
			ExternalID:          string(rune('1' + i)),
			Title:               title,
			Description:         "old " + title,
			OriginalDescription: "old " + title,
			State:               models.StatePending,
		}
		h.products = append(h.products, p)
		h.store.products[p.ID] = p.Clone()
	}

	h.engine = NewEngine(h.templates, prompt.NewRenderer(0, nil), h.gen, h.front, zap.NewNop())
	h.engine.now = func() time.Time { return fixedNow }
	h.svc = NewService(Deps{
		Engine:        h.engine,
		Shops:         h.shops,
		Products:      h.store,
		Storefront:    h.front,
		Installer:     fakeInstaller{},
		States:        h.states,
		Lock:          h.lock,
		Reports:       h.reports,
		Events:        h.events,
		Metrics:       h.metrics,
		WebhookSecret: "app-secret",
	}, zap.NewNop())
	h.svc.now = func() time.Time { return fixedNow }
	return h
}
