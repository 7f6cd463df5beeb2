package domain

import "encoding/json"

// ChatMessage is the provider-agnostic chat message shape sent to the
// generator. ToolCalls and ToolCallID carry the function-calling detour.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a function invocation requested by the generator.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its raw JSON arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a tool the generator may call. Parameters is a
// JSON Schema object.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatRequest is one generation call.
type ChatRequest struct {
	Model    string
	Messages []ChatMessage
	Tools    []ToolDefinition
	// JSONObject asks the generator to emit a single JSON object.
	JSONObject bool
}

// Completion is the generator's answer: either content or tool calls.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}
