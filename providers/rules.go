package providers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/agentduel/agentduel/types"
)

// Rule is one (predicate, class) pair of a provider's classification table.
// Tables are evaluated in order and the first match wins, so a raw line that
// textually matches several patterns lands on the highest-priority class.
type Rule struct {
	Class types.Class
	Match func(raw types.RawLogEvent) bool
}

// Classify runs a raw log event through an ordered rule table. The second
// return is false when the event is dropped unconditionally because it is
// not agent-originated; browser and network telemetry never reach the rules.
func Classify(rules []Rule, raw types.RawLogEvent) (types.Class, bool) {
	if raw.Category != types.CategoryAgent {
		return "", false
	}
	for _, rule := range rules {
		if rule.Match != nil && rule.Match(raw) {
			return rule.Class, true
		}
	}
	return types.ClassUnclassified, true
}

// DecodeRawLog extracts a RawLogEvent from a push-channel "log" payload.
// Payloads are usually JSON objects {category, message}; anything else is
// treated as a bare agent log line so partial information is kept.
func DecodeRawLog(data []byte) types.RawLogEvent {
	raw := types.RawLogEvent{Category: types.CategoryAgent}
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "{") {
		raw.Message = trimmed
		return raw
	}
	if category, err := jsonparser.GetString(data, "category"); err == nil && category != "" {
		raw.Category = types.Category(category)
	}
	if message, err := jsonparser.GetString(data, "message"); err == nil {
		raw.Message = message
		return raw
	}
	// A JSON object without a message field is itself the log line (the
	// combined JSON-in-log form).
	raw.Message = trimmed
	return raw
}

// ParseArgs decodes a JSON argument payload. A payload that is not a JSON
// object degrades to an opaque string argument rather than being discarded.
func ParseArgs(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{"raw": raw}
	}
	return args
}

// ParseStepField reads an upstream step index that may arrive as a JSON
// number or a numeric string. Missing or non-numeric indices report false so
// the event is treated as unattached.
func ParseStepField(data []byte, key string) (int, bool) {
	if n, err := jsonparser.GetInt(data, key); err == nil {
		return int(n), true
	}
	if s, err := jsonparser.GetString(data, key); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
	}
	return 0, false
}

// DecodeCompletion reads a terminal payload, tolerating the field spellings
// the three runtimes use.
func DecodeCompletion(data []byte) types.Completion {
	var c types.Completion
	if len(strings.TrimSpace(string(data))) == 0 {
		return c
	}
	var payload struct {
		FinalMessage      string `json:"finalMessage"`
		FinalMessageSnake string `json:"final_message"`
		Output            string `json:"output"`
		Messages          []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Text    string `json:"text"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return c
	}
	c.FinalMessage = payload.FinalMessage
	if c.FinalMessage == "" {
		c.FinalMessage = payload.FinalMessageSnake
	}
	c.Output = payload.Output
	for _, m := range payload.Messages {
		content := m.Content
		if content == "" {
			content = m.Text
		}
		c.Messages = append(c.Messages, types.Message{Role: m.Role, Content: content})
	}
	return c
}

// DecodeErrorMessage extracts a human-readable message from an "error"
// payload, falling back to the raw bytes.
func DecodeErrorMessage(data []byte) string {
	if msg, err := jsonparser.GetString(data, "message"); err == nil && strings.TrimSpace(msg) != "" {
		return msg
	}
	if msg := strings.TrimSpace(string(data)); msg != "" {
		return msg
	}
	return "connection lost"
}
