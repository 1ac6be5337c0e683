package httpclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
)

// recordingSelector counts which keyring paths the classifier takes.
type recordingSelector struct {
	selects int
	peeks   int
	byID    []string
}

func (s *recordingSelector) SelectKeyForBot(_ context.Context, vendor string, _ []string) (*domain.KeySelection, error) {
	s.selects++
	return &domain.KeySelection{
		Key:    domain.ProviderKey{ID: "k-live", Vendor: vendor},
		Secret: []byte("sk-secret"),
	}, nil
}

func (s *recordingSelector) PeekKeyForBot(_ context.Context, vendor string, _ []string) (*domain.ProviderKey, error) {
	s.peeks++
	return &domain.ProviderKey{ID: "k-peek", Vendor: vendor}, nil
}

func (s *recordingSelector) SelectByID(_ context.Context, keyID string) (*domain.KeySelection, error) {
	s.byID = append(s.byID, keyID)
	return &domain.KeySelection{
		Key:    domain.ProviderKey{ID: keyID, Vendor: "openai"},
		Secret: []byte("sk-secret"),
	}, nil
}

func classifierResponse() *stubClient {
	return &stubClient{resp: jsonResponse(200, `{
		"id": "cmpl-1",
		"choices": [{"message": {"role": "assistant", "content": "easy"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 1}
	}`)}
}

func TestClassifierClient_CompleteSelectsKey(t *testing.T) {
	sel := &recordingSelector{}
	client := NewClassifierClient(newTestCaller(classifierResponse()), sel)

	got, err := client.Complete(context.Background(), "openai", "tiny-classifier", "classify this")

	require.NoError(t, err)
	assert.Equal(t, "easy", got)
	assert.Equal(t, 1, sel.selects)
	assert.Zero(t, sel.peeks)
}

func TestClassifierClient_PeekCompleteDoesNotAdvanceCursor(t *testing.T) {
	sel := &recordingSelector{}
	client := NewClassifierClient(newTestCaller(classifierResponse()), sel)

	got, err := client.PeekComplete(context.Background(), "openai", "tiny-classifier", "classify this")

	require.NoError(t, err)
	assert.Equal(t, "easy", got)
	assert.Zero(t, sel.selects, "dry-run classification must not advance round-robin state")
	assert.Equal(t, 1, sel.peeks)
	assert.Equal(t, []string{"k-peek"}, sel.byID)
}
