package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/internal/core/ports"
	"github.com/arbiterlabs/arbiter/internal/logger"
	"go.uber.org/zap"
)

const classifierPrompt = `Classify the complexity of the user message below.
Respond with exactly one token from: super_easy, easy, medium, hard, super_hard.
No explanation, no punctuation.

Message:
`

const classifierCacheTTL = 10 * time.Minute

// Classifier scores inbound messages into one of five complexity
// levels via a lightweight classifier model call. Classification is an
// optimization, not a correctness requirement: any classifier failure
// degrades to medium instead of failing the routing decision.
type Classifier struct {
	client ports.ClassifierClient
	cache  ports.CacheService
}

func NewClassifier(client ports.ClassifierClient, cache ports.CacheService) *Classifier {
	return &Classifier{client: client, cache: cache}
}

// Classify returns the effective complexity level for the message.
// When the request needs tool calling the level is floored at the
// config's ToolMinComplexity.
func (c *Classifier) Classify(ctx context.Context, message string, cfg *domain.ComplexityRoutingConfig, toolsRequested bool) domain.ComplexityLevel {
	return c.floored(c.classify(ctx, message, cfg, false), cfg, toolsRequested)
}

// ClassifyPeek is the dry-run variant: the classifier call selects its
// key without advancing round-robin state.
func (c *Classifier) ClassifyPeek(ctx context.Context, message string, cfg *domain.ComplexityRoutingConfig, toolsRequested bool) domain.ComplexityLevel {
	return c.floored(c.classify(ctx, message, cfg, true), cfg, toolsRequested)
}

func (c *Classifier) floored(level domain.ComplexityLevel, cfg *domain.ComplexityRoutingConfig, toolsRequested bool) domain.ComplexityLevel {
	if toolsRequested {
		level = domain.MaxLevel(level, cfg.ToolMinComplexity)
	}
	return level
}

func (c *Classifier) classify(ctx context.Context, message string, cfg *domain.ComplexityRoutingConfig, peek bool) domain.ComplexityLevel {
	cacheKey := classifierCacheKey(cfg.ClassifierModel, message)
	if c.cache != nil {
		var cached string
		if err := c.cache.Get(ctx, cacheKey, &cached); err == nil {
			if level, ok := domain.ParseComplexityLevel(cached); ok {
				return level
			}
		}
	}

	complete := c.client.Complete
	if peek {
		complete = c.client.PeekComplete
	}
	raw, err := complete(ctx, cfg.ClassifierVendor, cfg.ClassifierModel, classifierPrompt+message)
	if err != nil {
		logger.Warn("classifier call failed, degrading to medium",
			zap.String("classifier_model", cfg.ClassifierModel),
			zap.Error(err),
		)
		return domain.ComplexityMedium
	}

	level, ok := domain.ParseComplexityLevel(raw)
	if !ok {
		logger.Warn("classifier returned unparseable level, degrading to medium",
			zap.String("classifier_model", cfg.ClassifierModel),
			zap.String("raw", raw),
		)
		return domain.ComplexityMedium
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, cacheKey, level.String(), classifierCacheTTL)
	}
	return level
}

func classifierCacheKey(model, message string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + message))
	return "classify:" + hex.EncodeToString(sum[:])
}
