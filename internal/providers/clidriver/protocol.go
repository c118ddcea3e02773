// Package clidriver drives a persistent CLI-backed provider child process
// over a newline-delimited JSON (NDJSON) control/data protocol.
package clidriver

import "encoding/json"

// wireEnvelope is the outer shape of every NDJSON line exchanged with the
// child, in either direction. Only the fields relevant to Type are set;
// json.RawMessage defers decoding of the variable sub-shapes until the
// discriminant is known, matching the closed-sum-type style spec.md
// requires for NDJSON messages (avoid polymorphic hierarchies).
type wireEnvelope struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Message   *userMessage    `json:"message,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Request   json.RawMessage `json:"request,omitempty"`
	Response  json.RawMessage `json:"response,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
	Usage     *wireUsage      `json:"usage,omitempty"`
	Error     string          `json:"error,omitempty"`
}

const (
	envUser            = "user"
	envControlRequest  = "control_request"
	envControlResponse = "control_response"
	envStreamEvent     = "stream_event"
	envResult          = "result"
	envError           = "error"
	envSystem          = "system"
)

// userMessage is the client->child user-turn payload.
type userMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

// contentBlock is a closed sum type: "text" or "image".
type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"` // "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// controlRequestPayload is the client->child control_request body.
type controlRequestPayload struct {
	Subtype string `json:"subtype"` // "initialize" | "set_model"
	Model   string `json:"model,omitempty"`
}

// childControlRequest is the child->client reverse control_request body
// (permission prompt).
type childControlRequest struct {
	Subtype   string                 `json:"subtype"` // "can_use_tool"
	ToolName  string                 `json:"tool_name"`
	Input     map[string]interface{} `json:"input"`
	ToolUseID string                 `json:"tool_use_id"`
}

// controlResponsePayload is the child->client control_response body.
type controlResponsePayload struct {
	Subtype   string          `json:"subtype"` // "success" | "error"
	RequestID string          `json:"request_id"`
	Response  json.RawMessage `json:"response,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// permissionAllow / permissionDeny are the client->child permission
// confirmations, written back inside a control_response envelope.
type permissionAllow struct {
	Behavior     string                 `json:"behavior"` // "allow"
	UpdatedInput map[string]interface{} `json:"updatedInput,omitempty"`
	ToolUseID    string                 `json:"toolUseID"`
}

type permissionDeny struct {
	Behavior string `json:"behavior"` // "deny"
	Message  string `json:"message,omitempty"`
}

// streamEventPayload is the child->client stream_event body.
type streamEventPayload struct {
	Type  string      `json:"type"` // "content_block_delta" | "message_start" | "message_delta"
	Delta *eventDelta `json:"delta,omitempty"`
	Usage *wireUsage  `json:"usage,omitempty"`
}

type eventDelta struct {
	Type string `json:"type,omitempty"` // "text_delta"
	Text string `json:"text,omitempty"`
}

// wireUsage mirrors the child's token-accounting fields; only the fields
// present at a given point in the turn are populated.
type wireUsage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

func textContent(text string) []contentBlock {
	return []contentBlock{{Type: "text", Text: text}}
}
