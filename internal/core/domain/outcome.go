package domain

// RouteFailureReason enumerates why a routing decision failed.
type RouteFailureReason string

const (
	ReasonNoEnabledRoutingConfig RouteFailureReason = "no_enabled_routing_config"
	ReasonTargetKeyMissing       RouteFailureReason = "target_key_missing"
	ReasonNoKeyAvailable         RouteFailureReason = "no_key_available"
	ReasonFatalUpstream          RouteFailureReason = "fatal_upstream_error"
	ReasonFallbackExhausted      RouteFailureReason = "fallback_exhausted"
	ReasonCancelled              RouteFailureReason = "cancelled"
)

// AttemptedTarget records one target the executor tried and, if it
// failed, why.
type AttemptedTarget struct {
	Target        Target `json:"target"`
	ProviderKeyID string `json:"provider_key_id,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// RouteOutcome is the terminal result of a route() call. Succeeded and
// failed outcomes both carry the full attempt history so routing
// failures stay debuggable rather than opaque.
type RouteOutcome struct {
	Succeeded     bool               `json:"succeeded"`
	Vendor        string             `json:"vendor,omitempty"`
	Model         string             `json:"model,omitempty"`
	ProviderKeyID string             `json:"provider_key_id,omitempty"`
	Result        *CallResult        `json:"-"`
	Reason        RouteFailureReason `json:"reason,omitempty"`
	Detail        string             `json:"detail,omitempty"`
	Attempted     []AttemptedTarget  `json:"attempted_targets"`
}

// TestRouteResult is the dry-run resolution report used by
// administrative tooling. It reflects what route() would have chosen
// without calling downstream or mutating round-robin state.
type TestRouteResult struct {
	SelectedModel    string `json:"selected_model"`
	SelectedProvider string `json:"selected_provider"`
	ProviderKeyID    string `json:"provider_key_id"`
	Reason           string `json:"reason"`
	MatchedRule      string `json:"matched_rule,omitempty"`
}
