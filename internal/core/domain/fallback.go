package domain

import (
	"fmt"
	"time"
)

// ErrorType classifies an upstream call failure for fallback triggering.
type ErrorType string

const (
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeOverloaded ErrorType = "overloaded"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeAuth       ErrorType = "auth"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// CallFailure is the typed outcome of a failed downstream model call,
// reported back by the caller collaborator.
type CallFailure struct {
	StatusCode int
	ErrorType  ErrorType
	TimedOut   bool
	Message    string
}

func (f *CallFailure) Error() string {
	if f.TimedOut {
		return fmt.Sprintf("upstream call timed out: %s", f.Message)
	}
	return fmt.Sprintf("upstream call failed (status %d, type %s): %s", f.StatusCode, f.ErrorType, f.Message)
}

// CallResult is the success payload of a downstream model call.
type CallResult struct {
	Body     []byte
	Protocol string
}

// FallbackModel is one entry of a fallback chain. Keys are selected per
// hop via the keyring when ProviderKeyID is empty.
type FallbackModel struct {
	Vendor        string   `json:"vendor"`
	Model         string   `json:"model"`
	Protocol      string   `json:"protocol"`
	Features      []string `json:"features,omitempty"`
	ProviderKeyID string   `json:"provider_key_id,omitempty"`
}

// FallbackChain is the failure-recovery policy: which failures trigger
// a hop, how many hops are allowed, and the fixed delay between hops.
// Models are priority-ordered; MaxRetries bounds total fallback hops,
// not per-model retries.
type FallbackChain struct {
	ChainID            string
	Models             []FallbackModel
	TriggerStatusCodes []int
	TriggerErrorTypes  []ErrorType
	TriggerTimeoutMs   uint
	MaxRetries         uint
	RetryDelayMs       uint
	PreserveProtocol   bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RetryDelay returns the fixed inter-hop delay.
func (c FallbackChain) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// Triggers reports whether the failure is one the chain is configured
// to recover from. Status codes are exact-match; anything not listed
// is fatal and must not advance the chain.
func (c FallbackChain) Triggers(f *CallFailure) bool {
	if f == nil {
		return false
	}
	if f.TimedOut && c.TriggerTimeoutMs > 0 {
		return true
	}
	for _, code := range c.TriggerStatusCodes {
		if f.StatusCode == code {
			return true
		}
	}
	for _, et := range c.TriggerErrorTypes {
		if f.ErrorType == et {
			return true
		}
	}
	return false
}
