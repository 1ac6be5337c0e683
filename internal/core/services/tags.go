package services

import (
	"context"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/internal/core/ports"
	"github.com/arbiterlabs/arbiter/internal/logger"
	"go.uber.org/zap"
)

// MatchTagsForModel evaluates every active tag against a model name
// and its catalog entry. Per tag the first matching source wins:
// pattern beats feature beats scenario; a tag is never counted twice.
// Confidence scores rank tie display only, never selection order.
func MatchTagsForModel(modelName string, entry *domain.CatalogEntry, tags []domain.CapabilityTag) []domain.TagMatch {
	var matches []domain.TagMatch
	for _, tag := range tags {
		if !tag.Active {
			continue
		}
		if m, ok := matchTag(modelName, entry, tag); ok {
			matches = append(matches, m)
		}
	}
	return matches
}

func matchTag(modelName string, entry *domain.CatalogEntry, tag domain.CapabilityTag) (domain.TagMatch, bool) {
	for _, pattern := range tag.RequiredModels {
		if matchGlob(pattern, modelName) {
			return domain.TagMatch{
				TagID:       tag.TagID,
				ModelID:     modelName,
				MatchSource: domain.MatchSourcePattern,
				Confidence:  domain.ConfidencePattern,
			}, true
		}
	}

	if entry == nil {
		return domain.TagMatch{}, false
	}

	// Feature requirements are conjunctive: a tag declaring several
	// needs every one met.
	if tag.HasFeatureRequirements() && featuresSatisfied(entry, tag) {
		return domain.TagMatch{
			TagID:       tag.TagID,
			ModelID:     modelName,
			MatchSource: domain.MatchSourceFeature,
			Confidence:  domain.ConfidenceFeature,
		}, true
	}

	for _, scenario := range entry.RecommendedScenarios {
		if scenario == tag.TagID {
			return domain.TagMatch{
				TagID:       tag.TagID,
				ModelID:     modelName,
				MatchSource: domain.MatchSourceScenario,
				Confidence:  domain.ConfidenceScenario,
			}, true
		}
	}

	return domain.TagMatch{}, false
}

func featuresSatisfied(entry *domain.CatalogEntry, tag domain.CapabilityTag) bool {
	if tag.RequiresExtendedThinking && !entry.SupportsExtendedThinking {
		return false
	}
	if tag.RequiresCacheControl && !entry.SupportsCacheControl {
		return false
	}
	if tag.RequiresVision && !entry.SupportsVision {
		return false
	}
	return true
}

// TagService runs the re-tagging operation against the catalog store.
type TagService struct {
	store   ports.TagStore
	catalog ports.CatalogStore
}

func NewTagService(store ports.TagStore, catalog ports.CatalogStore) *TagService {
	return &TagService{store: store, catalog: catalog}
}

// AssignTags recomputes a model's capability tags and replaces its
// non-manual assignments. Manual assignments are never overwritten or
// removed, so re-running with unchanged catalog data is idempotent.
func (s *TagService) AssignTags(ctx context.Context, modelID string) ([]domain.TagMatch, error) {
	tags, err := s.store.ActiveTags(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := s.catalog.Get(ctx, modelID)
	if err != nil {
		// Pattern matching still applies without a catalog entry.
		logger.Debug("no catalog entry for model, matching by pattern only",
			zap.String("model_id", modelID), zap.Error(err))
		entry = nil
	}

	existing, err := s.store.AssignmentsForModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	manual := make(map[string]bool)
	for _, m := range existing {
		if m.MatchSource == domain.MatchSourceManual {
			manual[m.TagID] = true
		}
	}

	matches := MatchTagsForModel(modelID, entry, tags)

	// Drop computed matches for tags already held manually so the
	// manual rows stay authoritative.
	fresh := matches[:0]
	for _, m := range matches {
		if !manual[m.TagID] {
			fresh = append(fresh, m)
		}
	}

	if err := s.store.ReplaceAssignments(ctx, modelID, fresh); err != nil {
		return nil, err
	}

	logger.Info("capability tags assigned",
		zap.String("model_id", modelID),
		zap.Int("matches", len(fresh)),
		zap.Int("manual_preserved", len(manual)),
	)
	return fresh, nil
}
