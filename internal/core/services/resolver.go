package services

import (
	"context"
	"fmt"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/internal/core/ports"
	"github.com/arbiterlabs/arbiter/internal/logger"
	"go.uber.org/zap"
)

// Resolution is the outcome of evaluating a bot's routing configs: the
// winning target plus enough provenance for dry-run reporting.
type Resolution struct {
	Target      domain.Target
	ConfigID    string
	Kind        domain.RoutingKind
	MatchedRule string
	Reason      string
	// Chain carries the failover variant's alternatives for the
	// executor; empty for other kinds.
	Chain []domain.Target
}

// Resolver evaluates a bot's routing configs in priority order and
// yields the first applicable target. It is stateless with respect to
// failure: for a failover config only the primary is its concern.
type Resolver struct {
	configs ports.RoutingStore
	keys    ports.KeyStore
	rr      ports.RoundRobin
}

func NewResolver(configs ports.RoutingStore, keys ports.KeyStore, rr ports.RoundRobin) *Resolver {
	return &Resolver{configs: configs, keys: keys, rr: rr}
}

// Resolve walks the enabled configs in ascending priority; the first
// config yielding a non-nil target wins and later configs are never
// consulted. Every referenced provider key must resolve to a live
// record, otherwise resolution fails rather than silently skipping.
func (r *Resolver) Resolve(ctx context.Context, botID, routingHint string) (*Resolution, error) {
	return r.resolve(ctx, botID, routingHint, false)
}

// Peek is the dry-run variant: identical evaluation, but load-balance
// selection reads the round-robin cursor without advancing it.
func (r *Resolver) Peek(ctx context.Context, botID, routingHint string) (*Resolution, error) {
	return r.resolve(ctx, botID, routingHint, true)
}

func (r *Resolver) resolve(ctx context.Context, botID, routingHint string, peek bool) (*Resolution, error) {
	configs, err := r.configs.EnabledForBot(ctx, botID)
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, domain.NoEnabledRoutingConfigError(botID)
	}

	for _, cfg := range configs {
		res := r.evaluate(cfg, routingHint, peek)
		if res == nil {
			continue
		}
		if err := r.verifyKey(ctx, res.Target); err != nil {
			return nil, err
		}
		logger.Debug("routing config won",
			zap.String("bot_id", botID),
			zap.String("config_id", cfg.ID),
			zap.String("kind", string(cfg.Variant.Kind())),
			zap.String("target", res.Target.String()),
		)
		return res, nil
	}

	return nil, domain.NoApplicableRoutingConfigError(botID)
}

// evaluate applies one config. A nil result means the config yields
// nothing and the next one is consulted.
func (r *Resolver) evaluate(cfg domain.RoutingConfig, routingHint string, peek bool) *Resolution {
	switch v := cfg.Variant.(type) {
	case domain.FunctionRoute:
		for _, rule := range v.Rules {
			if routingHint != "" && matchGlob(rule.Pattern, routingHint) {
				return &Resolution{
					Target:      rule.Target,
					ConfigID:    cfg.ID,
					Kind:        domain.KindFunctionRoute,
					MatchedRule: rule.Pattern,
					Reason:      fmt.Sprintf("function rule %q matched hint %q", rule.Pattern, routingHint),
				}
			}
		}
		if v.DefaultTarget != nil {
			return &Resolution{
				Target:   *v.DefaultTarget,
				ConfigID: cfg.ID,
				Kind:     domain.KindFunctionRoute,
				Reason:   "function route default target",
			}
		}
		return nil

	case domain.LoadBalance:
		if len(v.Targets) == 0 {
			return nil
		}
		idx := r.balanceIndex(cfg.ID, v, peek)
		return &Resolution{
			Target:   v.Targets[idx],
			ConfigID: cfg.ID,
			Kind:     domain.KindLoadBalance,
			Reason:   fmt.Sprintf("load balance slot %d of %d", idx, len(v.Targets)),
		}

	case domain.Failover:
		// Fallback traversal is the executor's job; only the first
		// attempt is this resolver's concern.
		return &Resolution{
			Target:   v.Primary,
			ConfigID: cfg.ID,
			Kind:     domain.KindFailover,
			Reason:   "failover primary",
			Chain:    v.FallbackChain,
		}

	default:
		logger.Warn("unknown routing config variant skipped", zap.String("config_id", cfg.ID))
		return nil
	}
}

// balanceIndex picks the target slot, uniform or weighted. The counter
// is keyed by the config id so an update to the target set can be
// invalidated explicitly.
func (r *Resolver) balanceIndex(configID string, v domain.LoadBalance, peek bool) int {
	next := r.rr.Next
	if peek {
		next = r.rr.Peek
	}

	if len(v.Weights) != len(v.Targets) {
		return next(configID, len(v.Targets))
	}

	var total uint
	for _, w := range v.Weights {
		total += w
	}
	if total == 0 {
		return next(configID, len(v.Targets))
	}

	slot := uint(next(configID, int(total)))
	var cum uint
	for i, w := range v.Weights {
		cum += w
		if slot < cum {
			return i
		}
	}
	return len(v.Targets) - 1
}

func (r *Resolver) verifyKey(ctx context.Context, t domain.Target) error {
	if t.ProviderKeyID == "" {
		return nil
	}
	if _, err := r.keys.Get(ctx, t.ProviderKeyID); err != nil {
		return domain.TargetKeyMissingError(t.ProviderKeyID, err)
	}
	return nil
}
