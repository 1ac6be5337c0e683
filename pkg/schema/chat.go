package schema

// ChatMessage is one turn of a conversation in the engine's neutral
// shape. Translators map it onto the wire protocol of each hop.
type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=system user assistant tool"`
	Content string `json:"content" binding:"required"`
}

// ToolSpec declares one tool/function the request wants available.
type ToolSpec struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ChatPayload is the protocol-neutral request body handed to the model
// caller. The executor's translator renders it into the wire protocol
// selected for each hop.
type ChatPayload struct {
	Messages    []ChatMessage `json:"messages" binding:"required,min=1,dive"`
	Tools       []ToolSpec    `json:"tools,omitempty" binding:"dive"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// HasTools reports whether the request needs tool calling.
func (p *ChatPayload) HasTools() bool {
	return len(p.Tools) > 0
}

// LastUserMessage returns the newest user turn, which is what the
// complexity classifier scores.
func (p *ChatPayload) LastUserMessage() string {
	for i := len(p.Messages) - 1; i >= 0; i-- {
		if p.Messages[i].Role == "user" {
			return p.Messages[i].Content
		}
	}
	return ""
}
