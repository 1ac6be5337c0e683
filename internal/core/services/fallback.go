package services

import (
	"context"
	"errors"
	"time"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/internal/core/ports"
	"github.com/arbiterlabs/arbiter/internal/logger"
	"github.com/arbiterlabs/arbiter/internal/translator"
	"github.com/arbiterlabs/arbiter/pkg/schema"
	"go.uber.org/zap"
)

// attemptState is the executor's position in its state machine.
type attemptState int

const (
	stateAttempting attemptState = iota
	stateSucceeded
	stateFallbackTriggered
	stateExhausted
)

// ExecutionPlan is one routing attempt handed to the executor: the
// resolved target, the ordered alternatives behind it, and the policy
// governing when and how to hop.
type ExecutionPlan struct {
	Primary  domain.Target
	Chain    []domain.Target
	Policy   domain.FallbackChain
	BotTags  []string
	Payload  *schema.ChatPayload
	Protocol translator.Protocol // protocol of the original request
}

// Executor walks a fallback chain of alternative targets with bounded
// hops and a fixed inter-hop delay. Failures that are not configured
// triggers are fatal: fallback exists to ride out capacity and
// availability failures, not to mask semantic errors.
type Executor struct {
	caller      ports.ModelCaller
	keyring     *Keyring
	translators *translator.Registry
	// sleep is swappable in tests; it must honor ctx cancellation.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewExecutor(caller ports.ModelCaller, keyring *Keyring, translators *translator.Registry) *Executor {
	return &Executor{
		caller:      caller,
		keyring:     keyring,
		translators: translators,
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute runs the state machine. Terminal outcomes are Succeeded and
// ExhaustedFailed; both carry every attempted target so callers can
// report which targets were tried and why each failed.
func (e *Executor) Execute(ctx context.Context, plan ExecutionPlan) domain.RouteOutcome {
	targets := make([]domain.Target, 0, 1+len(plan.Chain))
	targets = append(targets, plan.Primary)
	targets = append(targets, plan.Chain...)

	var attempted []domain.AttemptedTarget
	var success domain.RouteOutcome
	var hopsUsed uint
	idx := 0
	state := stateAttempting

	for {
		switch state {
		case stateAttempting:
			target := targets[idx]
			result, keyID, err := e.attempt(ctx, target, plan)
			if err == nil {
				attempted = append(attempted, domain.AttemptedTarget{Target: target, ProviderKeyID: keyID})
				success = domain.RouteOutcome{
					Succeeded:     true,
					Vendor:        target.Vendor,
					Model:         target.Model,
					ProviderKeyID: keyID,
					Result:        result,
					Attempted:     attempted,
				}
				state = stateSucceeded
				continue
			}

			attempted = append(attempted, domain.AttemptedTarget{
				Target:        target,
				ProviderKeyID: keyID,
				FailureReason: err.Error(),
			})

			var failure *domain.CallFailure
			if !errors.As(err, &failure) || !plan.Policy.Triggers(failure) {
				// Not a configured trigger: fatal, surface as-is.
				return domain.RouteOutcome{
					Succeeded: false,
					Reason:    domain.FailureReasonOf(err),
					Detail:    err.Error(),
					Attempted: attempted,
				}
			}

			logger.Warn("fallback trigger matched",
				zap.String("target", target.String()),
				zap.Int("status", failure.StatusCode),
				zap.String("error_type", string(failure.ErrorType)),
				zap.Bool("timed_out", failure.TimedOut),
			)
			state = stateFallbackTriggered

		case stateFallbackTriggered:
			if idx+1 >= len(targets) || hopsUsed >= plan.Policy.MaxRetries {
				state = stateExhausted
				continue
			}
			if err := e.sleep(ctx, plan.Policy.RetryDelay()); err != nil {
				return domain.RouteOutcome{
					Succeeded: false,
					Reason:    domain.ReasonCancelled,
					Detail:    "cancelled while waiting to fall back",
					Attempted: attempted,
				}
			}
			idx++
			hopsUsed++
			state = stateAttempting

		case stateExhausted:
			return domain.RouteOutcome{
				Succeeded: false,
				Reason:    domain.ReasonFallbackExhausted,
				Detail:    "all fallback targets exhausted",
				Attempted: attempted,
			}

		case stateSucceeded:
			return success
		}
	}
}

// attempt selects the hop's key and protocol, renders the payload, and
// invokes the downstream caller.
func (e *Executor) attempt(ctx context.Context, target domain.Target, plan ExecutionPlan) (*domain.CallResult, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", domain.CancelledError(err)
	}

	sel, err := e.selectKey(ctx, target, plan.BotTags)
	if err != nil {
		return nil, "", err
	}
	if sel == nil {
		return nil, "", domain.NoKeyAvailableError(target.Vendor)
	}

	proto := translator.ProtocolForVendor(target.Vendor)
	if plan.Policy.PreserveProtocol {
		// Every hop keeps the original request's wire protocol; the
		// translator absorbs the shape difference.
		proto = plan.Protocol
	}

	callCtx := ctx
	if ms := plan.Policy.TriggerTimeoutMs; ms > 0 {
		// The chain's timeout threshold bounds each attempt, so an
		// attempt slower than the configured value surfaces as a
		// timed-out failure the triggers can match.
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
		defer cancel()
	}

	result, err := e.caller.Call(callCtx, ports.CallAttempt{
		Target:   target,
		Key:      sel,
		Protocol: string(proto),
		Payload:  plan.Payload,
	})
	if err != nil {
		return nil, sel.Key.ID, err
	}
	return result, sel.Key.ID, nil
}

func (e *Executor) selectKey(ctx context.Context, target domain.Target, botTags []string) (*domain.KeySelection, error) {
	if target.ProviderKeyID != "" {
		return e.keyring.SelectByID(ctx, target.ProviderKeyID)
	}
	return e.keyring.SelectKeyForBot(ctx, target.Vendor, botTags)
}
