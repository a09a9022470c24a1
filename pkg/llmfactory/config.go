package llmfactory

import (
	"slices"

	"github.com/effective-security/x/configloader"
)

type Config struct {
	// Providers specifies the list of providers to use
	Providers []*ProviderConfig `json:"providers" yaml:"providers"`
	// DefaultProvider specifies the default provider to use
	DefaultProvider string `json:"default_provider" yaml:"default_provider"`
	// AgentModels specifies the mapping of agents to preferred models.
	// key is the agent name, value is the list of model names.
	// Use `default: <model_name>` as the default model for agents.
	AgentModels map[string][]string `json:"agent_models" yaml:"agent_models"`
}

// ProviderConfig describes one LLM endpoint.
type ProviderConfig struct {
	Name            string         `json:"name" yaml:"name"`
	Token           string         `json:"token,omitempty" yaml:"token,omitempty"`
	DefaultModel    string         `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	AvailableModels []string       `json:"available_models,omitempty" yaml:"available_models,omitempty"`
	Endpoint        EndpointConfig `json:"endpoint" yaml:"endpoint"`
}

// EndpointConfig specifies endpoint options.
type EndpointConfig struct {
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIVersion string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	// APIType specifies the type of API to use:
	// OPENAI|AZURE|ANTHROPIC|SELF_HOSTED
	APIType string `json:"api_type,omitempty" yaml:"api_type,omitempty"`
	// OrgID specifies which organization's quota and billing should be used
	// when making API requests.
	OrgID string `json:"org_id,omitempty" yaml:"org_id,omitempty"`
}

func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if slices.Contains(c.AvailableModels, model) {
			return model
		}
	}
	return c.DefaultModel
}

// LoadConfig from file
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
