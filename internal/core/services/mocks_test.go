package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// fakeKeyStore serves keys from a slice, honoring the vendor/tag
// filters the sqlite repo applies.
type fakeKeyStore struct {
	keys []domain.ProviderKey
}

func (s *fakeKeyStore) Get(ctx context.Context, id string) (*domain.ProviderKey, error) {
	for i := range s.keys {
		if s.keys[i].ID == id && !s.keys[i].Deleted {
			return &s.keys[i], nil
		}
	}
	return nil, errors.New("provider key not found")
}

func (s *fakeKeyStore) ListByVendor(ctx context.Context, vendor string) ([]domain.ProviderKey, error) {
	var out []domain.ProviderKey
	for _, k := range s.keys {
		if k.Vendor == vendor && !k.Deleted {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *fakeKeyStore) ListByVendorTag(ctx context.Context, vendor, tag string) ([]domain.ProviderKey, error) {
	var out []domain.ProviderKey
	for _, k := range s.keys {
		if k.Vendor == vendor && k.Tag == tag && !k.Deleted {
			out = append(out, k)
		}
	}
	return out, nil
}

// fakeDecrypter passes ciphertext through as the secret; secrets
// listed in failFor fail to decrypt.
type fakeDecrypter struct {
	failFor map[string]bool
}

func (d *fakeDecrypter) Decrypt(ciphertext []byte) ([]byte, error) {
	if d.failFor[string(ciphertext)] {
		return nil, errors.New("cipher: message authentication failed")
	}
	return ciphertext, nil
}

type fakeRoutingStore struct {
	configs []domain.RoutingConfig
}

func (s *fakeRoutingStore) EnabledForBot(ctx context.Context, botID string) ([]domain.RoutingConfig, error) {
	var out []domain.RoutingConfig
	for _, c := range s.configs {
		if c.BotID == botID && c.Enabled {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

type fakeBotStore struct {
	bots map[string]domain.Bot
}

func (s *fakeBotStore) Get(ctx context.Context, id string) (*domain.Bot, error) {
	b, ok := s.bots[id]
	if !ok {
		return nil, errors.New("bot not found")
	}
	return &b, nil
}

type fakeChainStore struct {
	chains map[string]domain.FallbackChain
}

func (s *fakeChainStore) Get(ctx context.Context, chainID string) (*domain.FallbackChain, error) {
	c, ok := s.chains[chainID]
	if !ok {
		return nil, errors.New("fallback chain not found")
	}
	return &c, nil
}

type fakeComplexityStore struct {
	cfg *domain.ComplexityRoutingConfig
}

func (s *fakeComplexityStore) ForBot(ctx context.Context, botID string) (*domain.ComplexityRoutingConfig, error) {
	return s.cfg, nil
}

type fakeTagStore struct {
	tags        []domain.CapabilityTag
	assignments []domain.TagMatch
	replaced    []domain.TagMatch
	replacedFor string
}

func (s *fakeTagStore) ActiveTags(ctx context.Context) ([]domain.CapabilityTag, error) {
	return s.tags, nil
}

func (s *fakeTagStore) AssignmentsForModel(ctx context.Context, modelID string) ([]domain.TagMatch, error) {
	return s.assignments, nil
}

func (s *fakeTagStore) ReplaceAssignments(ctx context.Context, modelID string, matches []domain.TagMatch) error {
	s.replacedFor = modelID
	s.replaced = matches
	return nil
}

type fakeCatalogStore struct {
	entries map[string]*domain.CatalogEntry
}

func (s *fakeCatalogStore) Get(ctx context.Context, modelID string) (*domain.CatalogEntry, error) {
	e, ok := s.entries[modelID]
	if !ok {
		return nil, errors.New("catalog entry not found")
	}
	return e, nil
}

func (s *fakeCatalogStore) List(ctx context.Context) ([]domain.CatalogEntry, error) {
	var out []domain.CatalogEntry
	for _, e := range s.entries {
		out = append(out, *e)
	}
	return out, nil
}

func (s *fakeCatalogStore) Upsert(ctx context.Context, entry *domain.CatalogEntry) error {
	cp := *entry
	s.entries[entry.ModelID] = &cp
	return nil
}

type fakeCache struct {
	m map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{m: make(map[string]string)} }

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := c.m[key]
	if !ok {
		return errors.New("cache miss")
	}
	p, ok := dest.(*string)
	if !ok {
		return errors.New("unsupported destination type")
	}
	*p = v
	return nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s, ok := value.(string); ok {
		c.m[key] = s
	}
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	delete(c.m, key)
	return nil
}

// MockCaller implements ports.ModelCaller for executor tests.
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

// MockClassifierClient implements ports.ClassifierClient.
type MockClassifierClient struct {
	mock.Mock
}

func (m *MockClassifierClient) Complete(ctx context.Context, vendor, model, prompt string) (string, error) {
	args := m.Called(ctx, vendor, model, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockClassifierClient) PeekComplete(ctx context.Context, vendor, model, prompt string) (string, error) {
	args := m.Called(ctx, vendor, model, prompt)
	return args.String(0), args.Error(1)
}
