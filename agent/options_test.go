package agent_test

import (
	"testing"

	"github.com/effective-security/agentic/agent"
	"github.com/stretchr/testify/assert"
)

func Test_NewConfig_Defaults(t *testing.T) {
	cfg := agent.NewConfig()
	assert.Equal(t, agent.DefaultMaxIterations, cfg.MaxIterations)
	assert.Equal(t, agent.DefaultMaxToolCalls, cfg.MaxToolCalls)
	assert.Equal(t, agent.DefaultMaxConcurrentTools, cfg.MaxConcurrentTools)
	assert.Empty(t, cfg.SystemPrompt)
	assert.Nil(t, cfg.Store)
}

func Test_NewConfig_Options(t *testing.T) {
	cfg := agent.NewConfig(
		agent.WithSystemPrompt("be terse"),
		agent.WithMaxIterations(3),
		agent.WithMaxToolCalls(7),
		agent.WithMaxConcurrentTools(1),
	)
	assert.Equal(t, "be terse", cfg.SystemPrompt)
	assert.Equal(t, 3, cfg.MaxIterations)
	assert.Equal(t, 7, cfg.MaxToolCalls)
	assert.Equal(t, 1, cfg.MaxConcurrentTools)
}

func Test_NewConfig_FloorsInvalidValues(t *testing.T) {
	cfg := agent.NewConfig(
		agent.WithMaxIterations(0),
		agent.WithMaxToolCalls(-1),
		agent.WithMaxConcurrentTools(-5),
	)
	assert.Equal(t, agent.DefaultMaxIterations, cfg.MaxIterations)
	assert.Equal(t, agent.DefaultMaxToolCalls, cfg.MaxToolCalls)
	assert.Equal(t, agent.DefaultMaxConcurrentTools, cfg.MaxConcurrentTools)
}
