package tavily_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/agentic/pkg/llmutils"
	"github.com/effective-security/agentic/tools/tavily"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Tool(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "testkey")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req tavilyModels.SearchRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		assert.NoError(t, err)
		assert.Equal(t, "What is capital of France", req.Query)

		resp := tavily.SearchResult{
			Results: []tavilyModels.SearchResult{
				{Title: "Test Result", URL: "https://example.com", Content: "Test content", Score: 0.9},
			},
		}
		if req.IncludeAnswer {
			resp.Answer = "Paris"
		}

		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	ctx := context.Background()

	tool, err := tavily.New()
	require.NoError(t, err)
	tool.WithBaseURL(server.URL).WithHTTPClient(server.Client())

	assert.Equal(t, tavily.ToolName, tool.Name())
	assert.Contains(t, tool.Description(), "web")
	assert.NotNil(t, tool.Parameters())

	out, err := tool.Call(ctx, "plain string")
	require.NoError(t, err)
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, "invalid arguments")

	input := &tavily.SearchRequest{
		Query: "What is capital of France",
	}

	resp, err := tool.Run(ctx, input)
	require.NoError(t, err)
	exp := `ANSWER: Paris
- URL: https://example.com
  TITLE: Test Result
  SCORE: 0.900000
  CONTENT: Test content
`
	assert.Equal(t, exp, resp.String())

	out, err = tool.Call(ctx, llmutils.ToJSON(input))
	require.NoError(t, err)
	assert.False(t, out.IsError)
	assert.Equal(t, exp, out.Content)
}

func Test_Tool_EmptyQuery(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "testkey")

	tool, err := tavily.New()
	require.NoError(t, err)

	out, err := tool.Call(context.Background(), `{"query":""}`)
	require.NoError(t, err)
	assert.True(t, out.IsError)
	assert.Contains(t, out.Content, "empty query")
}

func Test_New_MissingKey(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "")

	_, err := tavily.New()
	assert.ErrorContains(t, err, "TAVILY_API_KEY")
}
