package llmutils_test

import (
	"testing"

	"github.com/effective-security/agentic/pkg/llms"
	"github.com/effective-security/agentic/pkg/llmutils"
	"github.com/stretchr/testify/assert"
)

func Test_CleanJSON(t *testing.T) {
	tcases := []struct {
		name string
		in   string
		exp  string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"prefix", `Sure, here you go: {"a":1}`, `{"a":1}`},
		{"postfix", `{"a":1} hope this helps!`, `{"a":1}`},
		{"both", `Answer: [1,2,3]. Done.`, `[1,2,3]`},
		{"no json", `no structures here`, `no structures here`},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.exp, string(llmutils.CleanJSON([]byte(tc.in))))
		})
	}
}

func Test_TrimBackticks(t *testing.T) {
	assert.Equal(t, `{"a":1}`, llmutils.TrimBackticks("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, llmutils.TrimBackticks("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, llmutils.TrimBackticks(`{"a":1}`))
}

func Test_BackticksJSON(t *testing.T) {
	assert.Equal(t, "```json\n{}\n```", llmutils.BackticksJSON("{}"))
}

func Test_ToJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, llmutils.ToJSON(map[string]int{"a": 1}))
	assert.Equal(t, "a: 1\n", llmutils.ToYAML(map[string]int{"a": 1}))
	assert.Empty(t, llmutils.ToJSON(make(chan int)))
}

func Test_CountMessagesContentSize(t *testing.T) {
	msgs := []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "12345"),
		llms.MessageFromTextParts(llms.RoleAI, "123"),
	}
	// GetContent appends a trailing newline per message
	assert.Equal(t, uint64(10), llmutils.CountMessagesContentSize(msgs))
}

func Test_CountTokens(t *testing.T) {
	in, out, total := llmutils.CountTokens(nil)
	assert.Zero(t, in+out+total)

	in, out, total = llmutils.CountTokens(&llms.ContentResponse{})
	assert.Zero(t, in+out+total)

	in, out, total = llmutils.CountTokens(&llms.ContentResponse{
		Usage: &llms.Usage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10},
	})
	assert.Equal(t, 7, in)
	assert.Equal(t, 3, out)
	assert.Equal(t, 10, total)
}
