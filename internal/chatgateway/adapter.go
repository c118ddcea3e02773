package chatgateway

import (
	"context"

	"github.com/nextlevelbuilder/chatgate/internal/store"
)

// PlatformAdapter is the external collaborator that drives inbound events
// into a GatewayCore and carries outbound sends back to the platform.
// Grounded on the teacher's internal/channels.Channel interface shape,
// generalized to spec.md §6.1's exact method set.
type PlatformAdapter interface {
	GatewayType() string
	ValidateConfig(ctx context.Context) error
	// Start is long-running: it drives inbound events into handler until ctx
	// is cancelled, then returns.
	Start(ctx context.Context, handler *GatewayCore) error
	SendMessage(ctx context.Context, user store.PlatformUser, msg OutgoingMessage) error
	Info() map[string]string
}

// AgentManager is the external collaborator providing session and agent
// lifecycle. Grounded on internal/sessions.Manager's method shapes,
// generalized to the spec's session/agent split.
type AgentManager interface {
	CreateSession(ctx context.Context, kind, displayName string) (sessionID string, err error)
	GetSession(ctx context.Context, sessionID string) (SessionSnapshot, error)
	UpdateSession(ctx context.Context, sessionID string, fn func(*SessionSnapshot)) error
	GetOrCreateAgent(ctx context.Context, sessionID string) (Agent, error)
	RemoveSession(ctx context.Context, sessionID string) error
}

// Agent is one conversational agent bound to a session.
type Agent interface {
	RestoreProviderFromSession(ctx context.Context) error
	LoadExtensionsFromSession(ctx context.Context) error
	Reply(ctx context.Context, userMessage string, cfg SessionTurnConfig) (<-chan ReplyEvent, error)
}

// ConfigStore is the external collaborator persisting gateway metadata:
// typed get_param/set_param for non-secret data, get_secret/set_secret/
// delete_secret for the opaque per-gateway platform_config payload.
type ConfigStore interface {
	GetParam(key string) (value string, ok bool, err error)
	SetParam(key, value string) error
	GetSecret(key string) (value string, ok bool, err error)
	SetSecret(key, value string) error
	DeleteSecret(key string) error
}
