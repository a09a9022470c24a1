package schema_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/effective-security/agentic/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchRequest struct {
	Query string   `json:"query" jsonschema:"title=query,description=The search query."`
	Tags  []string `json:"tags,omitempty" jsonschema:"title=tags,description=Optional tag filters."`
}

type nestedRequest struct {
	Inner searchRequest `json:"inner"`
	Limit int           `json:"limit,omitempty"`
}

func Test_Schema_New(t *testing.T) {
	s, err := schema.New(reflect.TypeOf(searchRequest{}))
	require.NoError(t, err)
	require.NotNil(t, s.Parameters)

	// flattened to the inline object form used by function-calling APIs
	assert.Equal(t, "object", s.Parameters.Type)
	assert.Empty(t, s.Parameters.Ref)
	require.NotNil(t, s.Parameters.Properties)
	_, ok := s.Parameters.Properties.Get("query")
	assert.True(t, ok)
	assert.Contains(t, s.Parameters.Required, "query")
	assert.NotContains(t, s.Parameters.Required, "tags")

	// cached per type
	s2, err := schema.New(reflect.TypeOf(searchRequest{}))
	require.NoError(t, err)
	assert.Same(t, s, s2)
}

func Test_Schema_NestedRefsResolved(t *testing.T) {
	s, err := schema.New(reflect.TypeOf(nestedRequest{}))
	require.NoError(t, err)

	js, err := json.Marshal(s.Parameters)
	require.NoError(t, err)
	// no dangling $ref; the nested type is inlined
	assert.NotContains(t, string(js), "$ref")
	assert.Contains(t, string(js), "query")
}

func Test_Schema_FromAny(t *testing.T) {
	raw := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
		},
		"required": []string{"path"},
	}
	s, err := schema.FromAny(raw)
	require.NoError(t, err)
	assert.Equal(t, "object", s.Type)
	_, ok := s.Properties.Get("path")
	assert.True(t, ok)

	_, err = schema.FromAny(make(chan int))
	assert.Error(t, err)
}

func Test_Schema_String(t *testing.T) {
	s, err := schema.New(reflect.TypeOf(searchRequest{}))
	require.NoError(t, err)
	assert.Contains(t, s.String(), `"query"`)
}
