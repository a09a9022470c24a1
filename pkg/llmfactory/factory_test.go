package llmfactory_test

import (
	"context"
	"testing"

	"github.com/effective-security/agentic/pkg/llmfactory"
	"github.com/effective-security/agentic/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	provider string
	model    string
}

func (m *fakeLLM) GetName() string                    { return m.model }
func (m *fakeLLM) GetProviderType() llms.ProviderType { return llms.ProviderOpenAI }
func (m *fakeLLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}
func (m *fakeLLM) StreamContent(ctx context.Context, messages []llms.Message, fn llms.StreamFunc, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}
func (m *fakeLLM) ListModels(ctx context.Context) ([]string, error) { return nil, nil }
func (m *fakeLLM) HealthCheck(ctx context.Context) bool             { return true }

func Test_Factory(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "fakekey")
	t.Setenv("AZURE_OPENAI_API_KEY", "fakekey")
	t.Setenv("ANTHROPIC_API_KEY", "fakekey")

	cfg, err := llmfactory.LoadConfig("testdata/llm.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, cfg.Providers)

	llmfactory.NewLLM = func(cfg *llmfactory.ProviderConfig, preferredModels ...string) (llms.Model, error) {
		return &fakeLLM{provider: cfg.Name, model: cfg.FindModel(preferredModels...)}, nil
	}
	defer func() {
		llmfactory.NewLLM = llmfactory.CreateLLM
	}()

	f := llmfactory.New(cfg)
	model, err := f.DefaultModel()
	require.NoError(t, err)
	fm := model.(*fakeLLM)
	assert.Equal(t, "gpt-5-mini", fm.model)
	assert.Equal(t, "openai", fm.provider)

	model, err = f.ModelByName("claude-sonnet-4-20250514")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "claude-sonnet-4-20250514", fm.model)
	assert.Equal(t, "anthropic", fm.provider)

	// first known model of the preference list wins
	model, err = f.ModelByName("no-such-model", "gpt-5-azure")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "gpt-5-azure", fm.model)
	assert.Equal(t, "azure", fm.provider)

	// unknown names fall back to the default provider
	model, err = f.ModelByName("no-such-model")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "gpt-5-mini", fm.model)

	model, err = f.ModelByType("SELF_HOSTED")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "deepseek-v3", fm.model)
	assert.Equal(t, "local", fm.provider)

	_, err = f.ModelByType("UNSUPPORTED")
	assert.EqualError(t, err, "provider not found for type: UNSUPPORTED")

	// agent mapping, then the "default" mapping, then the default provider
	model, err = f.AgentModel("coder")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "claude-sonnet-4-20250514", fm.model)

	model, err = f.AgentModel("unknown-agent")
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "gpt-5-mini", fm.model)

	// empty providers
	emptyFactory := llmfactory.New(&llmfactory.Config{})
	_, err = emptyFactory.DefaultModel()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no providers configured")

	// unknown default provider name falls back to the first provider
	invalidFactory := llmfactory.New(&llmfactory.Config{
		DefaultProvider: "non-existent",
		Providers:       cfg.Providers,
	})
	model, err = invalidFactory.DefaultModel()
	require.NoError(t, err)
	fm = model.(*fakeLLM)
	assert.Equal(t, "openai", fm.provider)
}

func Test_Load(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "fakekey")
	t.Setenv("AZURE_OPENAI_API_KEY", "fakekey")
	t.Setenv("ANTHROPIC_API_KEY", "fakekey")

	f, err := llmfactory.Load("testdata/llm.yaml")
	require.NoError(t, err)
	require.NotNil(t, f)

	_, err = llmfactory.Load("testdata/non-existent.yaml")
	require.Error(t, err)
}

func Test_CreateLLM(t *testing.T) {
	openAI := &llmfactory.ProviderConfig{
		Name:         "openai",
		Token:        "fake",
		DefaultModel: "gpt-5-mini",
		Endpoint:     llmfactory.EndpointConfig{APIType: "OPENAI"},
	}
	model, err := llmfactory.CreateLLM(openAI)
	require.NoError(t, err)
	assert.Equal(t, "gpt-5-mini", model.GetName())
	assert.Equal(t, llms.ProviderOpenAI, model.GetProviderType())

	anthropicCfg := &llmfactory.ProviderConfig{
		Name:         "anthropic",
		Token:        "fake",
		DefaultModel: "claude-sonnet-4-20250514",
		Endpoint:     llmfactory.EndpointConfig{APIType: "ANTHROPIC"},
	}
	model, err = llmfactory.CreateLLM(anthropicCfg)
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderAnthropic, model.GetProviderType())

	selfHosted := &llmfactory.ProviderConfig{
		Name:         "local",
		DefaultModel: "deepseek-v3",
		Endpoint: llmfactory.EndpointConfig{
			APIType: "SELF_HOSTED",
			BaseURL: "http://localhost:8000/v1",
		},
	}
	model, err = llmfactory.CreateLLM(selfHosted)
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderSelfHosted, model.GetProviderType())

	_, err = llmfactory.CreateLLM(&llmfactory.ProviderConfig{
		Endpoint: llmfactory.EndpointConfig{APIType: "BEDROCK"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider type")
}
