package services

import (
	"context"
	"errors"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/internal/core/ports"
	"github.com/arbiterlabs/arbiter/internal/logger"
	"github.com/arbiterlabs/arbiter/internal/translator"
	"github.com/arbiterlabs/arbiter/pkg/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RouteRequest is one inbound routing decision for the facade.
type RouteRequest struct {
	BotID       string
	RoutingHint string
	Payload     *schema.ChatPayload
}

// ModelRouter is the facade composing resolution, complexity
// reclassification, key selection, and fallback execution behind a
// single route() contract. It is the only point that converts internal
// failures into the caller-facing RouteOutcome.
type ModelRouter struct {
	bots       ports.BotStore
	chains     ports.ChainStore
	complexity ports.ComplexityStore
	resolver   *Resolver
	classifier *Classifier
	keyring    *Keyring
	executor   *Executor
	rr         ports.RoundRobin
	tracer     trace.Tracer
}

func NewModelRouter(
	bots ports.BotStore,
	chains ports.ChainStore,
	complexity ports.ComplexityStore,
	resolver *Resolver,
	classifier *Classifier,
	keyring *Keyring,
	executor *Executor,
	rr ports.RoundRobin,
) *ModelRouter {
	return &ModelRouter{
		bots:       bots,
		chains:     chains,
		complexity: complexity,
		resolver:   resolver,
		classifier: classifier,
		keyring:    keyring,
		executor:   executor,
		rr:         rr,
		tracer:     otel.Tracer("arbiter/router"),
	}
}

// Route resolves a target for the request, optionally reclassifies it
// by complexity, and hands off to the fallback executor.
func (r *ModelRouter) Route(ctx context.Context, req RouteRequest) domain.RouteOutcome {
	ctx, span := r.tracer.Start(ctx, "router.route",
		trace.WithAttributes(attribute.String("bot.id", req.BotID)))
	defer span.End()

	bot, err := r.bots.Get(ctx, req.BotID)
	if err != nil {
		return failedOutcome(err)
	}

	resolution, err := r.resolver.Resolve(ctx, bot.ID, req.RoutingHint)
	if err != nil {
		return failedOutcome(err)
	}

	target, chain := resolution.Target, resolution.Chain

	if bot.ComplexityEnabled {
		if t, ok := r.reclassify(ctx, bot, req.Payload, false); ok {
			target = t
			// Complexity routing replaces the resolved target; the
			// failover chain, if any, still applies behind it.
		}
	}

	policy, err := r.policyForBot(ctx, bot)
	if err != nil {
		return failedOutcome(err)
	}
	if len(chain) == 0 {
		chain = chainTargets(policy)
	}

	span.SetAttributes(
		attribute.String("route.target", target.String()),
		attribute.Int("route.chain_length", len(chain)),
	)

	outcome := r.executor.Execute(ctx, ExecutionPlan{
		Primary:  target,
		Chain:    chain,
		Policy:   policy,
		BotTags:  bot.Tags,
		Payload:  req.Payload,
		Protocol: translator.ProtocolForVendor(target.Vendor),
	})

	if outcome.Succeeded {
		logger.Info("route succeeded",
			zap.String("bot_id", bot.ID),
			zap.String("vendor", outcome.Vendor),
			zap.String("model", outcome.Model),
			zap.Int("attempts", len(outcome.Attempted)),
		)
	} else {
		logger.Warn("route failed",
			zap.String("bot_id", bot.ID),
			zap.String("reason", string(outcome.Reason)),
			zap.Int("attempts", len(outcome.Attempted)),
		)
	}
	return outcome
}

// TestRoute performs resolution without invoking the downstream call
// and without mutating round-robin state. Administrative tooling uses
// it to preview what route() would decide.
func (r *ModelRouter) TestRoute(ctx context.Context, req RouteRequest) (*domain.TestRouteResult, error) {
	ctx, span := r.tracer.Start(ctx, "router.test_route",
		trace.WithAttributes(attribute.String("bot.id", req.BotID)))
	defer span.End()

	bot, err := r.bots.Get(ctx, req.BotID)
	if err != nil {
		return nil, err
	}

	resolution, err := r.resolver.Peek(ctx, bot.ID, req.RoutingHint)
	if err != nil {
		return nil, err
	}

	target := resolution.Target
	reason := resolution.Reason

	if bot.ComplexityEnabled {
		if t, ok := r.reclassify(ctx, bot, req.Payload, true); ok {
			target = t
			reason = "complexity routing override"
		}
	}

	keyID := target.ProviderKeyID
	if keyID == "" {
		key, err := r.keyring.PeekKeyForBot(ctx, target.Vendor, bot.Tags)
		if err != nil {
			return nil, err
		}
		if key == nil {
			return nil, domain.NoKeyAvailableError(target.Vendor)
		}
		keyID = key.ID
	}

	return &domain.TestRouteResult{
		SelectedModel:    target.Model,
		SelectedProvider: target.Vendor,
		ProviderKeyID:    keyID,
		Reason:           reason,
		MatchedRule:      resolution.MatchedRule,
	}, nil
}

// ClearLoadBalanceState discards the round-robin cursor for a routing
// config. Callers must invoke this after mutating a load-balance or
// failover config; the engine does not watch for configuration
// changes.
func (r *ModelRouter) ClearLoadBalanceState(routingConfigID string) {
	r.rr.Invalidate(routingConfigID)
	logger.Debug("load balance state cleared", zap.String("config_id", routingConfigID))
}

// reclassify looks up the bot's complexity config and maps the
// classified level to its target. Absent config means no override.
// Dry runs classify through the peek path so the classifier's key
// selection never advances round-robin state.
func (r *ModelRouter) reclassify(ctx context.Context, bot *domain.Bot, payload *schema.ChatPayload, peek bool) (domain.Target, bool) {
	cfg, err := r.complexity.ForBot(ctx, bot.ID)
	if err != nil || cfg == nil {
		if err != nil {
			logger.Warn("complexity config lookup failed", zap.String("bot_id", bot.ID), zap.Error(err))
		}
		return domain.Target{}, false
	}

	classify := r.classifier.Classify
	if peek {
		classify = r.classifier.ClassifyPeek
	}
	level := classify(ctx, payload.LastUserMessage(), cfg, payload.HasTools())
	target := cfg.TargetFor(level)
	logger.Debug("complexity reclassification",
		zap.String("bot_id", bot.ID),
		zap.String("level", level.String()),
		zap.String("target", target.String()),
	)
	return target, true
}

func (r *ModelRouter) policyForBot(ctx context.Context, bot *domain.Bot) (domain.FallbackChain, error) {
	if bot.FallbackChainID == "" {
		return domain.FallbackChain{}, nil
	}
	chain, err := r.chains.Get(ctx, bot.FallbackChainID)
	if err != nil {
		// A dangling chain reference disables fallback but must not
		// fail the primary attempt.
		logger.Warn("fallback chain lookup failed",
			zap.String("bot_id", bot.ID),
			zap.String("chain_id", bot.FallbackChainID),
			zap.Error(err),
		)
		return domain.FallbackChain{}, nil
	}
	return *chain, nil
}

// chainTargets lifts the policy's model list into hop targets. Keys
// are resolved per hop by the keyring unless a model pins one.
func chainTargets(policy domain.FallbackChain) []domain.Target {
	if len(policy.Models) == 0 {
		return nil
	}
	targets := make([]domain.Target, 0, len(policy.Models))
	for _, m := range policy.Models {
		targets = append(targets, domain.Target{
			ProviderKeyID: m.ProviderKeyID,
			Vendor:        m.Vendor,
			Model:         m.Model,
		})
	}
	return targets
}

func failedOutcome(err error) domain.RouteOutcome {
	var re *domain.RoutingError
	if errors.As(err, &re) {
		return domain.RouteOutcome{Succeeded: false, Reason: re.Reason, Detail: re.Detail}
	}
	return domain.RouteOutcome{Succeeded: false, Reason: domain.ReasonFatalUpstream, Detail: err.Error()}
}
