package store_test

import (
	"context"
	"testing"

	"github.com/effective-security/agentic/chatmodel"
	"github.com/effective-security/agentic/pkg/llms"
	"github.com/effective-security/agentic/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatCtx(chatID string) context.Context {
	return chatmodel.WithChatContext(context.Background(),
		chatmodel.NewChatContext(chatID, "", nil))
}

func Test_MemoryStore(t *testing.T) {
	s := store.NewMemoryStore()
	ctx1 := chatCtx("chat-1")
	ctx2 := chatCtx("chat-2")

	assert.Empty(t, s.Messages(ctx1))

	require.NoError(t, s.Add(ctx1, llms.MessageFromTextParts(llms.RoleHuman, "hi")))
	require.NoError(t, s.Add(ctx1, llms.MessageFromTextParts(llms.RoleAI, "hello")))
	require.NoError(t, s.Add(ctx2, llms.MessageFromTextParts(llms.RoleHuman, "other chat")))

	msgs := s.Messages(ctx1)
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.RoleHuman, msgs[0].Role)
	assert.Equal(t, llms.RoleAI, msgs[1].Role)

	// sessions are isolated
	require.Len(t, s.Messages(ctx2), 1)

	require.NoError(t, s.Reset(ctx1))
	assert.Empty(t, s.Messages(ctx1))
	assert.Len(t, s.Messages(ctx2), 1)
}
