package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/internal/core/ports"
	"github.com/arbiterlabs/arbiter/internal/core/services"
	"github.com/arbiterlabs/arbiter/internal/server/v1"
	"github.com/arbiterlabs/arbiter/internal/server/validator"
	"github.com/arbiterlabs/arbiter/internal/store"
	"github.com/arbiterlabs/arbiter/internal/translator"
)

// MockCaller is a mock implementation of ports.ModelCaller.
type MockCaller struct {
	mock.Mock
}

func (m *MockCaller) Call(ctx context.Context, attempt ports.CallAttempt) (*domain.CallResult, error) {
	args := m.Called(ctx, attempt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CallResult), args.Error(1)
}

type plainDecrypter struct{}

func (plainDecrypter) Decrypt(ciphertext []byte) ([]byte, error) { return ciphertext, nil }

// memRepo is an in-memory store.Repository backing the handler under
// test. Write methods mutate the shared maps directly.
type memRepo struct {
	bots    map[string]*domain.Bot
	configs []domain.RoutingConfig
	keys    []domain.ProviderKey
	chains  map[string]*domain.FallbackChain
	tags    []domain.CapabilityTag
	catalog map[string]*domain.CatalogEntry
	matches map[string][]domain.TagMatch
}

func (r *memRepo) Bots() store.BotRepository                      { return botRepo{r} }
func (r *memRepo) RoutingConfigs() store.RoutingConfigRepository  { return configRepo{r} }
func (r *memRepo) ProviderKeys() store.ProviderKeyRepository      { return keyRepo{r} }
func (r *memRepo) FallbackChains() store.FallbackChainRepository  { return chainRepo{r} }
func (r *memRepo) CapabilityTags() store.CapabilityTagRepository  { return tagRepo{r} }
func (r *memRepo) Catalog() store.CatalogRepository               { return catalogRepo{r} }
func (r *memRepo) Complexity() store.ComplexityRepository         { return complexityRepo{} }
func (r *memRepo) Close() error                                   { return nil }
func (r *memRepo) WithTx(ctx context.Context, fn func(store.Repository) error) error {
	return fn(r)
}

type botRepo struct{ r *memRepo }

func (b botRepo) Get(_ context.Context, id string) (*domain.Bot, error) {
	bot, ok := b.r.bots[id]
	if !ok {
		return nil, errors.New("bot not found")
	}
	return bot, nil
}
func (b botRepo) Create(_ context.Context, bot *domain.Bot) error {
	b.r.bots[bot.ID] = bot
	return nil
}
func (b botRepo) List(_ context.Context) ([]domain.Bot, error) {
	out := make([]domain.Bot, 0, len(b.r.bots))
	for _, bot := range b.r.bots {
		out = append(out, *bot)
	}
	return out, nil
}

type configRepo struct{ r *memRepo }

func (c configRepo) EnabledForBot(_ context.Context, botID string) ([]domain.RoutingConfig, error) {
	var out []domain.RoutingConfig
	for _, cfg := range c.r.configs {
		if cfg.BotID == botID && cfg.Enabled {
			out = append(out, cfg)
		}
	}
	return out, nil
}
func (c configRepo) ListForBot(_ context.Context, botID string) ([]domain.RoutingConfig, error) {
	var out []domain.RoutingConfig
	for _, cfg := range c.r.configs {
		if cfg.BotID == botID {
			out = append(out, cfg)
		}
	}
	return out, nil
}
func (c configRepo) Create(_ context.Context, cfg *domain.RoutingConfig) error {
	c.r.configs = append(c.r.configs, *cfg)
	return nil
}
func (c configRepo) SetEnabled(_ context.Context, id string, enabled bool) error {
	for i := range c.r.configs {
		if c.r.configs[i].ID == id {
			c.r.configs[i].Enabled = enabled
		}
	}
	return nil
}

type keyRepo struct{ r *memRepo }

func (k keyRepo) Get(_ context.Context, id string) (*domain.ProviderKey, error) {
	for _, key := range k.r.keys {
		if key.ID == id && !key.Deleted {
			out := key
			return &out, nil
		}
	}
	return nil, errors.New("provider key not found")
}
func (k keyRepo) ListByVendor(_ context.Context, vendor string) ([]domain.ProviderKey, error) {
	var out []domain.ProviderKey
	for _, key := range k.r.keys {
		if key.Vendor == vendor && !key.Deleted {
			out = append(out, key)
		}
	}
	return out, nil
}
func (k keyRepo) ListByVendorTag(_ context.Context, vendor, tag string) ([]domain.ProviderKey, error) {
	var out []domain.ProviderKey
	for _, key := range k.r.keys {
		if key.Vendor == vendor && key.Tag == tag && !key.Deleted {
			out = append(out, key)
		}
	}
	return out, nil
}
func (k keyRepo) Create(_ context.Context, key *domain.ProviderKey) error {
	k.r.keys = append(k.r.keys, *key)
	return nil
}
func (k keyRepo) SoftDelete(_ context.Context, id string) error {
	for i := range k.r.keys {
		if k.r.keys[i].ID == id {
			k.r.keys[i].Deleted = true
		}
	}
	return nil
}

type chainRepo struct{ r *memRepo }

func (c chainRepo) Get(_ context.Context, chainID string) (*domain.FallbackChain, error) {
	chain, ok := c.r.chains[chainID]
	if !ok {
		return nil, errors.New("fallback chain not found")
	}
	return chain, nil
}
func (c chainRepo) Create(_ context.Context, chain *domain.FallbackChain) error {
	c.r.chains[chain.ChainID] = chain
	return nil
}

type tagRepo struct{ r *memRepo }

func (t tagRepo) ActiveTags(_ context.Context) ([]domain.CapabilityTag, error) {
	var out []domain.CapabilityTag
	for _, tag := range t.r.tags {
		if tag.Active {
			out = append(out, tag)
		}
	}
	return out, nil
}
func (t tagRepo) Create(_ context.Context, tag *domain.CapabilityTag) error {
	t.r.tags = append(t.r.tags, *tag)
	return nil
}
func (t tagRepo) AssignmentsForModel(_ context.Context, modelID string) ([]domain.TagMatch, error) {
	return t.r.matches[modelID], nil
}
func (t tagRepo) ReplaceAssignments(_ context.Context, modelID string, matches []domain.TagMatch) error {
	var kept []domain.TagMatch
	for _, m := range t.r.matches[modelID] {
		if m.MatchSource == domain.MatchSourceManual {
			kept = append(kept, m)
		}
	}
	t.r.matches[modelID] = append(kept, matches...)
	return nil
}
func (t tagRepo) AssignManual(_ context.Context, modelID, tagID string) error {
	t.r.matches[modelID] = append(t.r.matches[modelID], domain.TagMatch{
		TagID: tagID, ModelID: modelID, MatchSource: domain.MatchSourceManual, Confidence: 100,
	})
	return nil
}

type catalogRepo struct{ r *memRepo }

func (c catalogRepo) Get(_ context.Context, modelID string) (*domain.CatalogEntry, error) {
	return c.r.catalog[modelID], nil
}
func (c catalogRepo) List(_ context.Context) ([]domain.CatalogEntry, error) {
	out := make([]domain.CatalogEntry, 0, len(c.r.catalog))
	for _, entry := range c.r.catalog {
		out = append(out, *entry)
	}
	return out, nil
}
func (c catalogRepo) Upsert(_ context.Context, entry *domain.CatalogEntry) error {
	c.r.catalog[entry.ModelID] = entry
	return nil
}

type complexityRepo struct{}

func (complexityRepo) ForBot(_ context.Context, _ string) (*domain.ComplexityRoutingConfig, error) {
	return nil, nil
}
func (complexityRepo) Create(_ context.Context, _ *domain.ComplexityRoutingConfig) error {
	return nil
}

func seededRepo() *memRepo {
	return &memRepo{
		bots: map[string]*domain.Bot{
			"bot-1": {ID: "bot-1", Name: "support-bot"},
		},
		configs: []domain.RoutingConfig{
			{
				ID: "cfg-1", BotID: "bot-1", Priority: 10, Enabled: true,
				Variant: domain.Failover{
					Primary: domain.Target{Vendor: "openai", Model: "gpt-4o"},
				},
			},
		},
		keys: []domain.ProviderKey{
			{ID: "key-1", Vendor: "openai", SecretEncrypted: []byte("sk-test")},
		},
		chains: map[string]*domain.FallbackChain{},
		catalog: map[string]*domain.CatalogEntry{
			"gpt-4o": {ModelID: "gpt-4o", Vendor: "openai", SupportsVision: true},
		},
		matches: map[string][]domain.TagMatch{},
	}
}

func setupServer(t *testing.T, repo *memRepo, caller ports.ModelCaller) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.InitValidator()

	rr := services.NewRoundRobinState()
	translators := translator.NewDefaultRegistry()
	keyring := services.NewKeyring(repo.ProviderKeys(), plainDecrypter{}, rr)
	resolver := services.NewResolver(repo.RoutingConfigs(), repo.ProviderKeys(), rr)
	executor := services.NewExecutor(caller, keyring, translators)
	tagService := services.NewTagService(repo.CapabilityTags(), repo.Catalog())
	catalogSync := services.NewCatalogSync(repo.Catalog(), tagService, func() ([]domain.CatalogEntry, error) {
		return []domain.CatalogEntry{{ModelID: "gpt-4o", Vendor: "openai", SupportsVision: true}}, nil
	})
	router := services.NewModelRouter(
		repo.Bots(), repo.FallbackChains(), repo.Complexity(),
		resolver, services.NewClassifier(nil, nil), keyring, executor, rr,
	)

	engine := gin.New()
	h := v1.NewHandler(router, tagService, catalogSync, repo)
	h.RegisterRoutes(engine.Group("/v1"))
	return engine
}

func postJSON(engine *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func routeBody(botID string) map[string]any {
	return map[string]any{
		"bot_id": botID,
		"payload": map[string]any{
			"messages": []map[string]string{{"role": "user", "content": "hello"}},
		},
	}
}

func TestHandleRoute_Success(t *testing.T) {
	caller := new(MockCaller)
	caller.On("Call", mock.Anything, mock.Anything).
		Return(&domain.CallResult{Body: []byte(`{"id":"cmpl-1"}`), Protocol: "openai"}, nil)

	engine := setupServer(t, seededRepo(), caller)
	w := postJSON(engine, "/v1/route", routeBody("bot-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "openai", resp["vendor"])
	assert.Equal(t, "gpt-4o", resp["model"])
	assert.Equal(t, "key-1", resp["provider_key_id"])
	assert.Equal(t, map[string]any{"id": "cmpl-1"}, resp["completion"])
	caller.AssertNumberOfCalls(t, "Call", 1)
}

func TestHandleRoute_ValidationError(t *testing.T) {
	engine := setupServer(t, seededRepo(), new(MockCaller))

	w := postJSON(engine, "/v1/route", map[string]any{
		"payload": map[string]any{
			"messages": []map[string]string{{"role": "user", "content": "hello"}},
		},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bot_id")
}

func TestHandleRoute_UnknownBot(t *testing.T) {
	caller := new(MockCaller)
	engine := setupServer(t, seededRepo(), caller)

	w := postJSON(engine, "/v1/route", routeBody("nope"))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	caller.AssertNotCalled(t, "Call")
}

func TestHandleTestRoute_NoDownstreamCall(t *testing.T) {
	caller := new(MockCaller)
	engine := setupServer(t, seededRepo(), caller)

	w := postJSON(engine, "/v1/route/test", routeBody("bot-1"))

	assert.Equal(t, http.StatusOK, w.Code)
	var result domain.TestRouteResult
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "gpt-4o", result.SelectedModel)
	assert.Equal(t, "openai", result.SelectedProvider)
	assert.Equal(t, "key-1", result.ProviderKeyID)
	caller.AssertNotCalled(t, "Call")
}

func TestHandleInvalidate(t *testing.T) {
	engine := setupServer(t, seededRepo(), new(MockCaller))

	w := postJSON(engine, "/v1/routing-configs/cfg-1/invalidate", nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHandleListCatalog(t *testing.T) {
	engine := setupServer(t, seededRepo(), new(MockCaller))

	req := httptest.NewRequest(http.MethodGet, "/v1/catalog", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gpt-4o")
}

func TestHandleSyncCatalog(t *testing.T) {
	repo := seededRepo()
	repo.tags = []domain.CapabilityTag{
		{TagID: "vision", RequiresVision: true, Active: true},
	}
	engine := setupServer(t, repo, new(MockCaller))

	w := postJSON(engine, "/v1/catalog/sync", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "synced_models")
	assert.Contains(t, repo.matches["gpt-4o"], domain.TagMatch{
		TagID: "vision", ModelID: "gpt-4o", MatchSource: domain.MatchSourceFeature, Confidence: 90,
	})
}
