package services

import (
	"context"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/internal/core/ports"
	"github.com/arbiterlabs/arbiter/internal/logger"
	"go.uber.org/zap"
)

// CatalogSync merges a source of catalog entries (built-in data plus
// operator overlays) into the stored catalog and re-runs capability
// tagging for every touched model. Stored pricing that an operator has
// tuned survives the merge; feature flags and context windows follow
// the source.
type CatalogSync struct {
	catalog ports.CatalogAdminStore
	tags    *TagService
	source  func() ([]domain.CatalogEntry, error)
}

func NewCatalogSync(catalog ports.CatalogAdminStore, tags *TagService, source func() ([]domain.CatalogEntry, error)) *CatalogSync {
	return &CatalogSync{catalog: catalog, tags: tags, source: source}
}

// SyncAll pulls entries from the configured source and merges them in.
func (s *CatalogSync) SyncAll(ctx context.Context) ([]string, error) {
	entries, err := s.source()
	if err != nil {
		return nil, err
	}
	return s.Sync(ctx, entries)
}

// Sync upserts the entries and re-tags each model. Returns the model
// ids that were written.
func (s *CatalogSync) Sync(ctx context.Context, entries []domain.CatalogEntry) ([]string, error) {
	var synced []string
	for _, entry := range entries {
		merged := entry
		if existing, err := s.catalog.Get(ctx, entry.ModelID); err == nil {
			merged = mergeEntry(*existing, entry)
		}
		if err := s.catalog.Upsert(ctx, &merged); err != nil {
			return synced, err
		}
		if s.tags != nil {
			if _, err := s.tags.AssignTags(ctx, merged.ModelID); err != nil {
				logger.Warn("re-tagging after catalog sync failed",
					zap.String("model_id", merged.ModelID), zap.Error(err))
			}
		}
		synced = append(synced, merged.ModelID)
	}

	logger.Info("catalog sync complete", zap.Int("models", len(synced)))
	return synced, nil
}

// mergeEntry overlays incoming feature data onto a stored row. Pricing
// already tuned in the store wins over the incoming value; everything
// else follows the source.
func mergeEntry(existing, incoming domain.CatalogEntry) domain.CatalogEntry {
	out := incoming
	out.CreatedAt = existing.CreatedAt
	if existing.InputCostMicrosPer1K != 0 {
		out.InputCostMicrosPer1K = existing.InputCostMicrosPer1K
	}
	if existing.OutputCostMicrosPer1K != 0 {
		out.OutputCostMicrosPer1K = existing.OutputCostMicrosPer1K
	}
	return out
}
