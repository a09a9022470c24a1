package llmutils

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/effective-security/agentic/pkg/llms"
	"gopkg.in/yaml.v3"
)

// CleanJSON returns JSON by trimming prefixes and postfixes,
// this is more useful than TrimBackticks,
// as an LLM can reply like,
// `Here you go: {json}`
func CleanJSON(bs []byte) []byte {
	return trimPostfixAfterJSON(trimPrefixBeforeJSON(bs))
}

// Removes any prefixes before the JSON (like "Sure, here you go:")
func trimPrefixBeforeJSON(bs []byte) []byte {
	startObject := bytes.IndexByte(bs, '{')
	startArray := bytes.IndexByte(bs, '[')

	var start int
	if startObject == -1 && startArray == -1 {
		return bs
	} else if startObject == -1 {
		start = startArray
	} else if startArray == -1 {
		start = startObject
	} else {
		start = min(startObject, startArray)
	}

	return bs[start:]
}

// Removes any postfixes after the JSON
func trimPostfixAfterJSON(bs []byte) []byte {
	endObject := bytes.LastIndexByte(bs, '}')
	endArray := bytes.LastIndexByte(bs, ']')

	var end int
	if endObject == -1 && endArray == -1 {
		return bs
	} else if endObject == -1 {
		end = endArray
	} else if endArray == -1 {
		end = endObject
	} else {
		end = max(endObject, endArray)
	}

	return bs[:end+1]
}

var backtick = []byte("```")

// TrimBackticks removes ```json or ```
func TrimBackticks(text string) string {
	bs := []byte(text)
	size := len(bs)
	startIndex := bytes.Index(bs, backtick)
	if startIndex == -1 {
		return text
	}
	startIndex += len(backtick)

	for i := startIndex; i < size && bs[i] != '{' && bs[i] != '['; i++ {
		if bs[i] == '\n' {
			startIndex = i + 1
			break
		}
	}

	contentAfterStart := bs[startIndex:]
	endIndex := bytes.LastIndex(contentAfterStart, backtick)
	if endIndex == -1 {
		return string(contentAfterStart)
	}

	return string(bytes.TrimSpace(contentAfterStart[:endIndex]))
}

// ToJSON returns the compact JSON representation of the value,
// or an empty string on marshal failure.
func ToJSON(v any) string {
	js, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(js)
}

// ToJSONIndent returns the indented JSON representation of the value.
func ToJSONIndent(v any) string {
	js, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(js)
}

// ToYAML returns the YAML representation of the value.
func ToYAML(v any) string {
	bs, err := yaml.Marshal(v)
	if err != nil {
		return ""
	}
	return string(bs)
}

// BackticksJSON wraps the provided JSON in markdown backticks.
func BackticksJSON(js string) string {
	var sb strings.Builder
	sb.WriteString("```json\n")
	sb.WriteString(js)
	sb.WriteString("\n```")
	return sb.String()
}

// CountMessagesContentSize returns the total content size of the messages.
func CountMessagesContentSize(messages []llms.Message) uint64 {
	var total uint64
	for _, msg := range messages {
		total += uint64(len(msg.GetContent()))
	}
	return total
}

// CountTokens returns the input, output and total token counts of the
// response, or zeros when the provider did not report usage.
func CountTokens(resp *llms.ContentResponse) (in, out, total int) {
	if resp == nil || resp.Usage == nil {
		return 0, 0, 0
	}
	return resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens
}
