package validator

import (
	"errors"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	BotID string `json:"bot_id" binding:"required"`
	Kind  string `json:"kind" binding:"omitempty,oneof=function_route load_balance failover"`
}

func TestParseValidationError_UsesJSONFieldNames(t *testing.T) {
	InitValidator()

	err := binding.Validator.ValidateStruct(sampleRequest{Kind: "fanout"})
	require.Error(t, err)

	parsed := ParseValidationError(err)
	assert.Contains(t, parsed, "bot_id")
	assert.Equal(t, "must be one of [function_route, load_balance, failover]", parsed["kind"])
}

func TestParseValidationError_NonFieldError(t *testing.T) {
	parsed := ParseValidationError(errors.New("unexpected EOF"))
	assert.Equal(t, map[string]string{"body": "request body could not be parsed"}, parsed)
}
