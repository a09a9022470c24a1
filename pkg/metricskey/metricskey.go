package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	StatsLLMInputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_input_tokens",
		Help:         "stats_llm_input_tokens provides total input tokens sent to LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMOutputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_output_tokens",
		Help:         "stats_llm_output_tokens provides total output tokens received from LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMTotalTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_total_tokens",
		Help:         "stats_llm_total_tokens provides total tokens sent and received from LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsAgentRunsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_agent_runs_succeeded",
		Help:         "stats_agent_runs_succeeded provides total agent runs succeeded",
		RequiredTags: []string{"agent"},
	}

	StatsAgentRunsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_agent_runs_failed",
		Help:         "stats_agent_runs_failed provides total agent runs failed",
		RequiredTags: []string{"agent"},
	}

	StatsAgentRunsLimited = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_agent_runs_limited",
		Help:         "stats_agent_runs_limited provides total agent runs terminated by iteration or tool-call limits",
		RequiredTags: []string{"agent"},
	}

	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls not found",
		RequiredTags: []string{"tool"},
	}

	StatsMcpServerConnects = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_mcp_server_connects",
		Help:         "stats_mcp_server_connects provides total tool-server connects",
		RequiredTags: []string{"server"},
	}

	StatsMcpServerDisconnects = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_mcp_server_disconnects",
		Help:         "stats_mcp_server_disconnects provides total tool-server disconnects",
		RequiredTags: []string{"server"},
	}
)

// Perf
var (
	PerfAgentRun = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_agent_run",
		Help:         "perf_agent_run provides duration of agent run",
		RequiredTags: []string{"agent"},
	}

	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool call",
		RequiredTags: []string{"tool"},
	}

	PerfMcpToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_mcp_tool_call",
		Help:         "perf_mcp_tool_call provides duration of remote tool call",
		RequiredTags: []string{"server"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfAgentRun,
	&PerfMcpToolCall,
	&PerfToolCall,
	&StatsAgentRunsFailed,
	&StatsAgentRunsLimited,
	&StatsAgentRunsSucceeded,
	&StatsLLMInputTokens,
	&StatsLLMOutputTokens,
	&StatsLLMTotalTokens,
	&StatsMcpServerConnects,
	&StatsMcpServerDisconnects,
	&StatsToolCallsFailed,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
}
