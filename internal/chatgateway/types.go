// Package chatgateway implements the chat gateway core: a pairing state
// machine binding external platform users to long-lived agent sessions,
// and a per-message relay orchestrator that streams an agent reply back to
// the platform with live typing feedback and bounded tool-calling turns.
package chatgateway

import (
	"encoding/json"
	"time"

	"github.com/nextlevelbuilder/chatgate/internal/store"
)

// Attachment is a file attached to an IncomingMessage.
type Attachment struct {
	Filename string
	MimeType string
	Bytes    []byte
}

// IncomingMessage is one inbound event from a PlatformAdapter.
type IncomingMessage struct {
	User              store.PlatformUser
	Text              string
	PlatformMessageID string
	Attachments       []Attachment
}

// OutgoingMessage is the closed sum type {Text{body}, Typing}, per spec.md
// §9's explicit note against polymorphic hierarchies.
type OutgoingMessage struct {
	Kind string // "text" | "typing"
	Body string
}

func TextMessage(body string) OutgoingMessage { return OutgoingMessage{Kind: "text", Body: body} }
func TypingMessage() OutgoingMessage          { return OutgoingMessage{Kind: "typing"} }

// GatewayConfig is the persisted configuration for one running or
// configured-but-stopped gateway.
type GatewayConfig struct {
	GatewayType    string          `json:"gateway_type"`
	PlatformConfig json.RawMessage `json:"-"` // secret: gateway_platform_config_<type>
	MaxSessions    int             `json:"max_sessions"`
}

// SessionSnapshot is the subset of session state the gateway core reads
// and writes through AgentManager.
type SessionSnapshot struct {
	ID         string
	Provider   string
	Model      string
	Extensions []string
	CreatedAt  time.Time
}

// RetryConfig configures reply retry behavior; carried through from
// SessionTurnConfig to the Agent, never interpreted by the core itself.
type RetryConfig struct {
	MaxAttempts int
}

// SessionTurnConfig is passed to Agent.Reply for one relay turn.
type SessionTurnConfig struct {
	ID          string
	ScheduleID  string
	MaxTurns    int
	RetryConfig *RetryConfig
}

// ReplyEventKind discriminates ReplyEvent's closed sum type.
type ReplyEventKind string

const (
	ReplyEventTextDelta   ReplyEventKind = "text_delta"
	ReplyEventToolRequest ReplyEventKind = "tool_request"
	ReplyEventOther       ReplyEventKind = "other"
	ReplyEventError       ReplyEventKind = "error"
)

// ReplyEvent is one element of the stream Agent.Reply yields.
type ReplyEvent struct {
	Kind     ReplyEventKind
	Text     string // set for ReplyEventTextDelta
	ToolName string // set for ReplyEventToolRequest
	Err      error  // set for ReplyEventError
}

// GatewayInstance is a running gateway: its config, adapter, and the
// cancellation handle for its worker goroutine.
type GatewayInstance struct {
	Config GatewayConfig
	Core   *GatewayCore
	Cancel func()
	Done   <-chan struct{}
}
