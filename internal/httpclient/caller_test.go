package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/internal/core/ports"
	"github.com/arbiterlabs/arbiter/internal/translator"
	"github.com/arbiterlabs/arbiter/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	lastReq *http.Request
	resp    *http.Response
	err     error
}

func (c *stubClient) Do(req *http.Request) (*http.Response, error) {
	c.lastReq = req
	if c.err != nil {
		return nil, c.err
	}
	return c.resp, nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func testAttempt(vendor, model, protocol string) ports.CallAttempt {
	return ports.CallAttempt{
		Target: domain.Target{Vendor: vendor, Model: model},
		Key: &domain.KeySelection{
			Key:    domain.ProviderKey{ID: "k1", Vendor: vendor},
			Secret: []byte("sk-secret"),
		},
		Protocol: protocol,
		Payload: &schema.ChatPayload{
			Messages: []schema.ChatMessage{{Role: "user", Content: "hi"}},
		},
	}
}

func newTestCaller(client HTTPClient) *Caller {
	return NewCaller(client, translator.NewDefaultRegistry(), time.Second, map[string]string{
		"openai":    "https://api.openai.example/v1",
		"anthropic": "https://api.anthropic.example/v1",
	})
}

func TestCaller_OpenAISuccess(t *testing.T) {
	stub := &stubClient{resp: jsonResponse(200, `{
		"id": "cmpl-1",
		"choices": [{"message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 3, "completion_tokens": 2}
	}`)}

	result, err := newTestCaller(stub).Call(context.Background(), testAttempt("openai", "gpt-4o", "openai"))
	require.NoError(t, err)
	assert.Contains(t, string(result.Body), `"content":"hello"`)

	assert.Equal(t, "https://api.openai.example/v1/chat/completions", stub.lastReq.URL.String())
	assert.Equal(t, "Bearer sk-secret", stub.lastReq.Header.Get("Authorization"))
}

func TestCaller_AnthropicHeadersAndEndpoint(t *testing.T) {
	stub := &stubClient{resp: jsonResponse(200, `{
		"id": "msg-1",
		"content": [{"type": "text", "text": "hello"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 3, "output_tokens": 2}
	}`)}

	_, err := newTestCaller(stub).Call(context.Background(), testAttempt("anthropic", "claude-sonnet-4-5", "anthropic"))
	require.NoError(t, err)

	assert.Equal(t, "https://api.anthropic.example/v1/messages", stub.lastReq.URL.String())
	assert.Equal(t, "sk-secret", stub.lastReq.Header.Get("x-api-key"))
	assert.NotEmpty(t, stub.lastReq.Header.Get("anthropic-version"))
	assert.Empty(t, stub.lastReq.Header.Get("Authorization"))
}

func TestCaller_KeyBaseURLOverride(t *testing.T) {
	stub := &stubClient{resp: jsonResponse(200, `{
		"id": "cmpl-1",
		"choices": [{"message": {"content": "ok"}, "finish_reason": "stop"}]
	}`)}

	attempt := testAttempt("openai", "gpt-4o", "openai")
	attempt.Key.Key.BaseURL = "https://proxy.internal/v1"

	_, err := newTestCaller(stub).Call(context.Background(), attempt)
	require.NoError(t, err)
	assert.Equal(t, "https://proxy.internal/v1/chat/completions", stub.lastReq.URL.String())
}

func TestCaller_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   domain.ErrorType
	}{
		{429, domain.ErrorTypeRateLimit},
		{529, domain.ErrorTypeOverloaded},
		{503, domain.ErrorTypeOverloaded},
		{401, domain.ErrorTypeAuth},
		{403, domain.ErrorTypeAuth},
		{400, domain.ErrorTypeValidation},
		{504, domain.ErrorTypeTimeout},
		{500, domain.ErrorTypeUnknown},
	}

	for _, tc := range cases {
		stub := &stubClient{resp: jsonResponse(tc.status, `{"error":"nope"}`)}
		_, err := newTestCaller(stub).Call(context.Background(), testAttempt("openai", "gpt-4o", "openai"))
		require.Error(t, err, "status %d", tc.status)

		var failure *domain.CallFailure
		require.ErrorAs(t, err, &failure, "status %d", tc.status)
		assert.Equal(t, tc.status, failure.StatusCode)
		assert.Equal(t, tc.want, failure.ErrorType, "status %d", tc.status)
		assert.False(t, failure.TimedOut)
	}
}

func TestCaller_DeadlineExceededMarksTimeout(t *testing.T) {
	stub := &stubClient{err: context.DeadlineExceeded}

	_, err := newTestCaller(stub).Call(context.Background(), testAttempt("openai", "gpt-4o", "openai"))
	require.Error(t, err)

	var failure *domain.CallFailure
	require.ErrorAs(t, err, &failure)
	assert.True(t, failure.TimedOut)
	assert.Equal(t, domain.ErrorTypeTimeout, failure.ErrorType)
}

func TestCaller_NetworkErrorIsNotTimeout(t *testing.T) {
	stub := &stubClient{err: errors.New("connection refused")}

	_, err := newTestCaller(stub).Call(context.Background(), testAttempt("openai", "gpt-4o", "openai"))
	require.Error(t, err)

	var failure *domain.CallFailure
	require.ErrorAs(t, err, &failure)
	assert.False(t, failure.TimedOut)
	assert.Equal(t, domain.ErrorTypeNetwork, failure.ErrorType)
}

func TestCaller_TruncatesLongErrorBodies(t *testing.T) {
	long := bytes.Repeat([]byte("x"), 2048)
	stub := &stubClient{resp: jsonResponse(500, string(long))}

	_, err := newTestCaller(stub).Call(context.Background(), testAttempt("openai", "gpt-4o", "openai"))
	var failure *domain.CallFailure
	require.ErrorAs(t, err, &failure)
	assert.LessOrEqual(t, len(failure.Message), 512)
}
