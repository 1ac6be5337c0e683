package httpclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/internal/core/ports"
	"github.com/arbiterlabs/arbiter/internal/translator"
	"github.com/arbiterlabs/arbiter/pkg/schema"
)

// ClassifierClient implements the complexity classifier's model call
// on top of the shared Caller, with a fixed low temperature so the
// single-token answer stays stable.
type ClassifierClient struct {
	caller  *Caller
	keyring KeySelector
}

// KeySelector is the slice of the keyring the classifier needs. The
// peek pair exists so dry runs can classify without advancing the
// round-robin cursor live routing depends on.
type KeySelector interface {
	SelectKeyForBot(ctx context.Context, vendor string, botTags []string) (*domain.KeySelection, error)
	PeekKeyForBot(ctx context.Context, vendor string, botTags []string) (*domain.ProviderKey, error)
	SelectByID(ctx context.Context, keyID string) (*domain.KeySelection, error)
}

func NewClassifierClient(caller *Caller, keyring KeySelector) *ClassifierClient {
	return &ClassifierClient{caller: caller, keyring: keyring}
}

var classifierTemperature = 0.0

func (c *ClassifierClient) Complete(ctx context.Context, vendor, model, prompt string) (string, error) {
	sel, err := c.keyring.SelectKeyForBot(ctx, vendor, nil)
	if err != nil {
		return "", err
	}
	if sel == nil {
		return "", domain.NoKeyAvailableError(vendor)
	}
	return c.complete(ctx, vendor, model, prompt, sel)
}

// PeekComplete pins the key the cursor currently points at instead of
// advancing it, so consecutive dry runs classify with the same key and
// leave round-robin state untouched.
func (c *ClassifierClient) PeekComplete(ctx context.Context, vendor, model, prompt string) (string, error) {
	key, err := c.keyring.PeekKeyForBot(ctx, vendor, nil)
	if err != nil {
		return "", err
	}
	if key == nil {
		return "", domain.NoKeyAvailableError(vendor)
	}
	sel, err := c.keyring.SelectByID(ctx, key.ID)
	if err != nil {
		return "", err
	}
	return c.complete(ctx, vendor, model, prompt, sel)
}

func (c *ClassifierClient) complete(ctx context.Context, vendor, model, prompt string, sel *domain.KeySelection) (string, error) {
	result, err := c.caller.Call(ctx, ports.CallAttempt{
		Target:   domain.Target{Vendor: vendor, Model: model},
		Key:      sel,
		Protocol: string(translator.ProtocolForVendor(vendor)),
		Payload: &schema.ChatPayload{
			Messages:    []schema.ChatMessage{{Role: "user", Content: prompt}},
			Temperature: &classifierTemperature,
			MaxTokens:   8,
		},
	})
	if err != nil {
		return "", err
	}

	var completion struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(result.Body, &completion); err != nil {
		return "", fmt.Errorf("decode classifier completion: %w", err)
	}
	return completion.Content, nil
}
