package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Target identifies where a request should be sent: a provider key,
// the vendor it belongs to, and the model to invoke.
type Target struct {
	ProviderKeyID string `json:"provider_key_id"`
	Vendor        string `json:"vendor"`
	Model         string `json:"model"`
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s", t.Vendor, t.Model)
}

// RoutingKind discriminates the three routing config variants.
type RoutingKind string

const (
	KindFunctionRoute RoutingKind = "function_route"
	KindLoadBalance   RoutingKind = "load_balance"
	KindFailover      RoutingKind = "failover"
)

// RoutingVariant is the sum type over the three routing strategies.
// A new variant must be handled everywhere the compiler forces a
// type switch over this interface.
type RoutingVariant interface {
	Kind() RoutingKind
}

// RoutingRule maps a routing-hint pattern to a target. Patterns use
// glob semantics ('*' wildcard) and match case-insensitively.
type RoutingRule struct {
	Pattern string `json:"pattern"`
	Target  Target `json:"target"`
}

// FunctionRoute picks a target by matching the caller-supplied routing
// hint against rules in declaration order. First match wins; when no
// rule matches, DefaultTarget is used (nil means the config yields
// nothing and resolution moves on to the next config).
type FunctionRoute struct {
	Rules         []RoutingRule `json:"rules"`
	DefaultTarget *Target       `json:"default_target,omitempty"`
}

func (FunctionRoute) Kind() RoutingKind { return KindFunctionRoute }

// LoadBalance distributes requests across targets. With no weights the
// distribution is uniform round-robin; with weights it is weighted
// round-robin (weights align positionally with targets).
type LoadBalance struct {
	Targets []Target `json:"targets"`
	Weights []uint   `json:"weights,omitempty"`
}

func (LoadBalance) Kind() RoutingKind { return KindLoadBalance }

// Failover always routes to Primary; the chain is traversed by the
// fallback executor only after a triggering failure.
type Failover struct {
	Primary       Target   `json:"primary"`
	FallbackChain []Target `json:"fallback_chain"`
}

func (Failover) Kind() RoutingKind { return KindFailover }

// RoutingConfig is one prioritized routing entry owned by a bot.
// Lower priority values are evaluated first.
type RoutingConfig struct {
	ID        string
	BotID     string
	Priority  int
	Enabled   bool
	Variant   RoutingVariant
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DecodeVariant unmarshals the stored JSON params for the given kind
// into the matching variant struct.
func DecodeVariant(kind RoutingKind, params []byte) (RoutingVariant, error) {
	switch kind {
	case KindFunctionRoute:
		var v FunctionRoute
		if err := json.Unmarshal(params, &v); err != nil {
			return nil, fmt.Errorf("decode function_route params: %w", err)
		}
		return v, nil
	case KindLoadBalance:
		var v LoadBalance
		if err := json.Unmarshal(params, &v); err != nil {
			return nil, fmt.Errorf("decode load_balance params: %w", err)
		}
		if len(v.Weights) > 0 && len(v.Weights) != len(v.Targets) {
			return nil, fmt.Errorf("load_balance weights length %d does not match targets length %d", len(v.Weights), len(v.Targets))
		}
		return v, nil
	case KindFailover:
		var v Failover
		if err := json.Unmarshal(params, &v); err != nil {
			return nil, fmt.Errorf("decode failover params: %w", err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown routing config kind %q", kind)
	}
}

// EncodeVariant marshals a variant back to its stored JSON form.
func EncodeVariant(v RoutingVariant) ([]byte, error) {
	return json.Marshal(v)
}

// Bot is the owner of routing configuration. Tags express key-pool
// preference in priority order.
type Bot struct {
	ID                string
	Name              string
	Tags              []string
	FallbackChainID   string
	ComplexityEnabled bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ProviderKey is a credential for a vendor. The secret is stored
// encrypted and is only decrypted through the keyring's injected
// decrypter. An empty Tag places the key in the vendor's default pool.
type ProviderKey struct {
	ID              string
	Vendor          string
	SecretEncrypted []byte
	BaseURL         string
	Tag             string
	Metadata        map[string]string
	Deleted         bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// KeySelection is a chosen key together with its decrypted secret.
type KeySelection struct {
	Key    ProviderKey
	Secret []byte
}
