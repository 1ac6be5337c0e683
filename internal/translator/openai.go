package translator

import (
	"encoding/json"
	"fmt"

	"github.com/arbiterlabs/arbiter/pkg/schema"
)

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAITool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Parameters  any    `json:"parameters,omitempty"`
	} `json:"function"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Tools       []openAITool    `json:"tools,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// OpenAITranslator renders the neutral payload into the
// OpenAI-compatible chat completions shape.
type OpenAITranslator struct{}

func NewOpenAITranslator() *OpenAITranslator { return &OpenAITranslator{} }

func (t *OpenAITranslator) Protocol() Protocol { return ProtocolOpenAI }

func (t *OpenAITranslator) TranslateRequest(model string, payload *schema.ChatPayload) ([]byte, error) {
	req := openAIRequest{
		Model:       model,
		Temperature: payload.Temperature,
		MaxTokens:   payload.MaxTokens,
		Stream:      payload.Stream,
	}
	for _, m := range payload.Messages {
		req.Messages = append(req.Messages, openAIMessage{Role: m.Role, Content: m.Content})
	}
	for _, tool := range payload.Tools {
		var ot openAITool
		ot.Type = "function"
		ot.Function.Name = tool.Name
		ot.Function.Description = tool.Description
		ot.Function.Parameters = tool.Parameters
		req.Tools = append(req.Tools, ot)
	}
	return json.Marshal(req)
}

// TranslateResponse normalizes an OpenAI-compatible response into the
// engine's neutral completion shape.
func (t *OpenAITranslator) TranslateResponse(raw []byte) ([]byte, error) {
	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai response has no choices")
	}
	return json.Marshal(neutralCompletion{
		ID:           resp.ID,
		Content:      resp.Choices[0].Message.Content,
		FinishReason: resp.Choices[0].FinishReason,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	})
}

// neutralCompletion is the protocol-independent completion the engine
// hands back to callers.
type neutralCompletion struct {
	ID           string `json:"id"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}
