package store

import (
	"context"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
)

// Repository is the main contract for the data layer.
type Repository interface {
	Bots() BotRepository
	RoutingConfigs() RoutingConfigRepository
	ProviderKeys() ProviderKeyRepository
	FallbackChains() FallbackChainRepository
	CapabilityTags() CapabilityTagRepository
	Catalog() CatalogRepository
	Complexity() ComplexityRepository

	// transaction support
	WithTx(ctx context.Context, fn func(repo Repository) error) error

	Close() error
}

type BotRepository interface {
	Get(ctx context.Context, id string) (*domain.Bot, error)
	Create(ctx context.Context, bot *domain.Bot) error
	List(ctx context.Context) ([]domain.Bot, error)
}

type RoutingConfigRepository interface {
	// EnabledForBot returns the bot's enabled configs ordered by
	// priority ascending; the resolver depends on that order.
	EnabledForBot(ctx context.Context, botID string) ([]domain.RoutingConfig, error)
	ListForBot(ctx context.Context, botID string) ([]domain.RoutingConfig, error)
	Create(ctx context.Context, cfg *domain.RoutingConfig) error
	// SetEnabled toggles a config without touching its params.
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

type ProviderKeyRepository interface {
	// Get returns a live key; deleted keys are reported as missing.
	Get(ctx context.Context, id string) (*domain.ProviderKey, error)
	ListByVendor(ctx context.Context, vendor string) ([]domain.ProviderKey, error)
	// ListByVendorTag matches the tag exactly; empty selects untagged.
	ListByVendorTag(ctx context.Context, vendor, tag string) ([]domain.ProviderKey, error)
	Create(ctx context.Context, key *domain.ProviderKey) error
	// SoftDelete marks a key deleted; it stays out of every read path.
	SoftDelete(ctx context.Context, id string) error
}

type FallbackChainRepository interface {
	Get(ctx context.Context, chainID string) (*domain.FallbackChain, error)
	Create(ctx context.Context, chain *domain.FallbackChain) error
}

type CapabilityTagRepository interface {
	ActiveTags(ctx context.Context) ([]domain.CapabilityTag, error)
	Create(ctx context.Context, tag *domain.CapabilityTag) error
	AssignmentsForModel(ctx context.Context, modelID string) ([]domain.TagMatch, error)
	// ReplaceAssignments deletes only non-manual rows for the model
	// before inserting fresh matches, keeping re-tagging idempotent.
	ReplaceAssignments(ctx context.Context, modelID string, matches []domain.TagMatch) error
	// AssignManual inserts a manual row that re-tagging never touches.
	AssignManual(ctx context.Context, modelID, tagID string) error
}

type CatalogRepository interface {
	Get(ctx context.Context, modelID string) (*domain.CatalogEntry, error)
	List(ctx context.Context) ([]domain.CatalogEntry, error)
	Upsert(ctx context.Context, entry *domain.CatalogEntry) error
}

type ComplexityRepository interface {
	ForBot(ctx context.Context, botID string) (*domain.ComplexityRoutingConfig, error)
	Create(ctx context.Context, cfg *domain.ComplexityRoutingConfig) error
}
