package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_NormalizeStopReason(t *testing.T) {
	assert.Equal(t, "stop", normalizeStopReason("end_turn"))
	assert.Equal(t, "stop", normalizeStopReason("stop_sequence"))
	assert.Equal(t, "tool_calls", normalizeStopReason("tool_use"))
	assert.Equal(t, "length", normalizeStopReason("max_tokens"))
	assert.Equal(t, "refusal", normalizeStopReason("refusal"))
	assert.Equal(t, "", normalizeStopReason(""))
}
