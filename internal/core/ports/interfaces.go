package ports

import (
	"context"
	"time"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/pkg/schema"
)

// RoutingStore exposes the configuration reads the resolver needs.
// Reads are consistent snapshots; the engine never writes through this
// interface.
type RoutingStore interface {
	// EnabledForBot returns the bot's enabled routing configs ordered
	// by priority ascending.
	EnabledForBot(ctx context.Context, botID string) ([]domain.RoutingConfig, error)
}

// KeyStore exposes provider key reads for the keyring and resolver.
type KeyStore interface {
	// Get returns a key by id, or an error when absent or deleted.
	Get(ctx context.Context, id string) (*domain.ProviderKey, error)
	// ListByVendor returns all non-deleted keys for a vendor.
	ListByVendor(ctx context.Context, vendor string) ([]domain.ProviderKey, error)
	// ListByVendorTag returns non-deleted keys for a vendor with the
	// exact tag; an empty tag selects the untagged default pool.
	ListByVendorTag(ctx context.Context, vendor, tag string) ([]domain.ProviderKey, error)
}

// ChainStore exposes fallback chain reads for the router facade.
type ChainStore interface {
	Get(ctx context.Context, chainID string) (*domain.FallbackChain, error)
}

// ComplexityStore exposes complexity routing config reads.
type ComplexityStore interface {
	// ForBot returns the bot's complexity routing config, or nil when
	// the bot has none.
	ForBot(ctx context.Context, botID string) (*domain.ComplexityRoutingConfig, error)
}

// TagStore exposes capability tag reads and assignment writes for the
// re-tagging operation.
type TagStore interface {
	ActiveTags(ctx context.Context) ([]domain.CapabilityTag, error)
	AssignmentsForModel(ctx context.Context, modelID string) ([]domain.TagMatch, error)
	// ReplaceAssignments deletes only non-manual assignments for the
	// model before inserting the fresh matches.
	ReplaceAssignments(ctx context.Context, modelID string, matches []domain.TagMatch) error
}

// CatalogStore exposes model catalog reads for tag matching.
type CatalogStore interface {
	Get(ctx context.Context, modelID string) (*domain.CatalogEntry, error)
}

// CatalogAdminStore adds the writes the catalog sync needs on top of
// the read surface.
type CatalogAdminStore interface {
	CatalogStore
	List(ctx context.Context) ([]domain.CatalogEntry, error)
	Upsert(ctx context.Context, entry *domain.CatalogEntry) error
}

// BotStore exposes bot reads for the router facade.
type BotStore interface {
	Get(ctx context.Context, id string) (*domain.Bot, error)
}

// Decrypter decrypts provider key secrets at selection time. The
// engine never persists plaintext.
type Decrypter interface {
	Decrypt(ciphertext []byte) ([]byte, error)
}

// CallAttempt is one downstream invocation handed to the caller
// collaborator.
type CallAttempt struct {
	Target   domain.Target
	Key      *domain.KeySelection
	Protocol string
	Payload  *schema.ChatPayload
}

// ModelCaller executes the chosen call. A failed call returns a
// *domain.CallFailure so the executor can classify it against the
// fallback chain triggers.
type ModelCaller interface {
	Call(ctx context.Context, attempt CallAttempt) (*domain.CallResult, error)
}

// ClassifierClient is the lightweight model call used by the
// complexity classifier.
type ClassifierClient interface {
	Complete(ctx context.Context, vendor, model, prompt string) (string, error)
	// PeekComplete performs the same call but selects its key without
	// advancing round-robin state. Dry-run resolution uses it.
	PeekComplete(ctx context.Context, vendor, model, prompt string) (string, error)
}

// RoundRobin is the process-local fairness counter map. Next must
// compute the index atomically with the increment and never return an
// out-of-range value for n > 0.
type RoundRobin interface {
	Next(key string, n int) int
	// Peek returns the index Next would return without advancing the
	// counter. Dry-run resolution uses this.
	Peek(key string, n int) int
	Invalidate(key string)
}

// CacheService defines the interface for a distributed cache system.
type CacheService interface {
	// Get retrieves a value from the cache.
	// The implementation should unmarshal the data into the 'dest' pointer.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value in the cache with a TTL.
	// The implementation should marshal the value.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error
}
