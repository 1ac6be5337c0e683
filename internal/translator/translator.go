package translator

import (
	"sync"

	"github.com/arbiterlabs/arbiter/pkg/schema"
)

// Protocol identifies a wire protocol family for model calls.
type Protocol string

const (
	ProtocolOpenAI    Protocol = "openai"
	ProtocolAnthropic Protocol = "anthropic"
)

// ProtocolForVendor maps a vendor to its natively preferred protocol.
// Unknown vendors default to the OpenAI-compatible family.
func ProtocolForVendor(vendor string) Protocol {
	switch vendor {
	case "anthropic":
		return ProtocolAnthropic
	default:
		return ProtocolOpenAI
	}
}

// Translator renders the engine's neutral chat payload into one wire
// protocol's request body and lifts responses back out of it.
type Translator interface {
	Protocol() Protocol
	TranslateRequest(model string, payload *schema.ChatPayload) ([]byte, error)
	TranslateResponse(raw []byte) ([]byte, error)
}

// Registry holds translators keyed by protocol. Fallback hops that
// must preserve the original protocol look up the translator for that
// protocol regardless of the hop target's native one.
type Registry struct {
	mu           sync.RWMutex
	byProtocol   map[Protocol]Translator
	defaultProto Protocol
}

func NewRegistry() *Registry {
	return &Registry{
		byProtocol:   make(map[Protocol]Translator),
		defaultProto: ProtocolOpenAI,
	}
}

func (r *Registry) Register(t Translator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byProtocol[t.Protocol()] = t
}

// For returns the translator for a protocol, falling back to the
// OpenAI-compatible translator when the protocol is unregistered.
func (r *Registry) For(p Protocol) Translator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.byProtocol[p]; ok {
		return t
	}
	return r.byProtocol[r.defaultProto]
}

// NewDefaultRegistry returns a registry with the built-in translators
// registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewOpenAITranslator())
	r.Register(NewAnthropicTranslator())
	return r
}
