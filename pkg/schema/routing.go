package schema

// RouteRequest is the inbound body for POST /v1/route.
type RouteRequest struct {
	BotID       string      `json:"bot_id" binding:"required"`
	RoutingHint string      `json:"routing_hint,omitempty"`
	Payload     ChatPayload `json:"payload" binding:"required"`
}

// TestRouteRequest is the inbound body for the dry-run endpoint.
type TestRouteRequest struct {
	BotID       string      `json:"bot_id" binding:"required"`
	RoutingHint string      `json:"routing_hint,omitempty"`
	Payload     ChatPayload `json:"payload" binding:"required"`
}

// AssignTagsRequest triggers capability re-tagging for a model.
type AssignTagsRequest struct {
	ModelID string `json:"model_id" binding:"required"`
}
