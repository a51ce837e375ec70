package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	// StatsLLMTurns is base for counter metric for total model turns
	StatsLLMTurns = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_turns",
		Help:         "stats_llm_turns provides total streamed turns requested from LLM",
		RequiredTags: []string{"model"},
	}

	StatsLLMMessagesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_messages_sent",
		Help:         "stats_llm_messages_sent provides total history messages sent to LLM",
		RequiredTags: []string{"model"},
	}

	StatsLLMInputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_input_tokens",
		Help:         "stats_llm_input_tokens provides total input tokens sent to LLM",
		RequiredTags: []string{"model"},
	}

	StatsLLMOutputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_output_tokens",
		Help:         "stats_llm_output_tokens provides total output tokens received from LLM",
		RequiredTags: []string{"model"},
	}

	StatsAssistantCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_assistant_calls_succeeded",
		Help:         "stats_assistant_calls_succeeded provides total queries answered",
		RequiredTags: []string{"model"},
	}

	StatsAssistantCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_assistant_calls_failed",
		Help:         "stats_assistant_calls_failed provides total queries failed",
		RequiredTags: []string{"model"},
	}

	StatsAssistantToolTurnsExceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_assistant_tool_turns_exceeded",
		Help:         "stats_assistant_tool_turns_exceeded provides total queries stopped by the tool turns limit",
		RequiredTags: []string{"model"},
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

	StatsToolArgumentParseErrors = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_argument_parse_errors",
		Help:         "stats_tool_argument_parse_errors provides total tool requests with invalid arguments",
		RequiredTags: []string{"tool"},
	}

	StatsProvidersConnected = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_providers_connected",
		Help:         "stats_providers_connected provides total tool provider connections established",
		RequiredTags: []string{"provider"},
	}

	StatsProvidersFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_providers_failed",
		Help:         "stats_providers_failed provides total tool provider connections failed",
		RequiredTags: []string{"provider"},
	}
)

// Perf
var (
	PerfAssistantCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_assistant_call",
		Help:         "perf_assistant_call provides duration of a query including tool turns",
		RequiredTags: []string{"model"},
	}

	PerfLLMTurn = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_llm_turn",
		Help:         "perf_llm_turn provides duration of a streamed model turn",
		RequiredTags: []string{"model"},
	}

	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool call",
		RequiredTags: []string{"tool"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfAssistantCall,
	&PerfLLMTurn,
	&PerfToolCall,
	&StatsAssistantCallsFailed,
	&StatsAssistantCallsSucceeded,
	&StatsAssistantToolTurnsExceeded,
	&StatsLLMInputTokens,
	&StatsLLMMessagesSent,
	&StatsLLMOutputTokens,
	&StatsLLMTurns,
	&StatsProvidersConnected,
	&StatsProvidersFailed,
	&StatsToolArgumentParseErrors,
	&StatsToolCallsFailed,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
}
