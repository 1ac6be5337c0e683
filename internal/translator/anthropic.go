package translator

import (
	"encoding/json"
	"fmt"

	"github.com/arbiterlabs/arbiter/pkg/schema"
)

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema,omitempty"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

const anthropicDefaultMaxTokens = 4096

// AnthropicTranslator renders the neutral payload into the Anthropic
// messages shape. System turns move into the top-level system field;
// max_tokens is mandatory on this protocol.
type AnthropicTranslator struct{}

func NewAnthropicTranslator() *AnthropicTranslator { return &AnthropicTranslator{} }

func (t *AnthropicTranslator) Protocol() Protocol { return ProtocolAnthropic }

func (t *AnthropicTranslator) TranslateRequest(model string, payload *schema.ChatPayload) ([]byte, error) {
	req := anthropicRequest{
		Model:       model,
		Temperature: payload.Temperature,
		MaxTokens:   payload.MaxTokens,
		Stream:      payload.Stream,
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = anthropicDefaultMaxTokens
	}
	for _, m := range payload.Messages {
		if m.Role == "system" {
			if req.System != "" {
				req.System += "\n"
			}
			req.System += m.Content
			continue
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	for _, tool := range payload.Tools {
		req.Tools = append(req.Tools, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}
	return json.Marshal(req)
}

func (t *AnthropicTranslator) TranslateResponse(raw []byte) ([]byte, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}
	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return json.Marshal(neutralCompletion{
		ID:           resp.ID,
		Content:      text,
		FinishReason: resp.StopReason,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	})
}
