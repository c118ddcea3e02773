package chatgateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/chatgate/internal/store"
)

// GatewayMaxTurns bounds the LLM<->tool round-trips in one relay turn.
const GatewayMaxTurns = 5

// TypingInterval is the period of the typing re-emitter during an active
// reply stream.
const TypingInterval = 4 * time.Second

// ErrPairingNotFound is the sentinel for a user with no active pairing.
// UnpairUser does not return it: it reports a user who was not paired as
// (false, nil).
var ErrPairingNotFound = errors.New("chatgateway: user is not paired")

// ErrGatewayFull names the condition of a gateway whose max_sessions cap is
// reached when a new pairing completion is attempted (spec.md §9 open
// question, resolved: enforced). completePairing does not return it: it
// sends the user a "gateway is full" notice and leaves the user unpaired.
var ErrGatewayFull = errors.New("chatgateway: gateway has reached max_sessions")

// GatewayCore is the per-gateway-type message handler: the state machine
// over (PairingState, incoming text) plus the relay-to-session orchestrator.
type GatewayCore struct {
	GatewayType string
	Adapter     PlatformAdapter
	Pairing     store.PairingStore
	Agents      AgentManager

	// Global config snapshot the relay compares each session against.
	ProviderName string
	ModelConfig  string
	Extensions   []string

	WorkspaceRoot string // config-root for per-user working directories
	MaxSessions   int

	// pairedCount, when set, returns the current number of paired users for
	// this gateway type; used to enforce MaxSessions. Supplied by
	// GatewayManager so GatewayCore never reaches into the registry itself.
	pairedCount func() int

	mu sync.Mutex // serialises pairing-state transitions per gateway instance
}

// SetPairedCounter wires the paired-user counter used for MaxSessions
// enforcement. Called by GatewayManager at instance construction.
func (c *GatewayCore) SetPairedCounter(fn func() int) { c.pairedCount = fn }

// HandleMessage is the entry point a PlatformAdapter drives inbound events
// into. It implements spec.md §4.2's state table and, once Paired, the
// relay-to-session algorithm.
func (c *GatewayCore) HandleMessage(ctx context.Context, msg IncomingMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.Pairing.Get(msg.User)
	if err != nil {
		return fmt.Errorf("chatgateway: get pairing state: %w", err)
	}

	switch state.State {
	case "paired":
		return c.relay(ctx, msg.User, state.SessionID, msg.Text)

	case "pending":
		return c.handlePending(ctx, msg.User, state, msg.Text)

	default: // "unpaired" or unrecognised
		return c.handleUnpaired(ctx, msg.User, msg.Text)
	}
}

func (c *GatewayCore) handleUnpaired(ctx context.Context, user store.PlatformUser, text string) error {
	code, ok := store.NormalizePairingCode(text)
	if !ok {
		return c.send(ctx, user, TextMessage("Please enter your pairing code to get started."))
	}

	gatewayType, found, err := c.Pairing.ConsumePendingCode(code, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("chatgateway: consume pending code: %w", err)
	}
	if !found {
		return c.send(ctx, user, TextMessage("Please enter your pairing code to get started."))
	}
	if gatewayType != c.GatewayType {
		return c.send(ctx, user, TextMessage("⚠️ That code is for a different gateway."))
	}

	return c.completePairing(ctx, user)
}

func (c *GatewayCore) handlePending(ctx context.Context, user store.PlatformUser, state store.PairingState, text string) error {
	now := time.Now().Unix()
	if now > state.ExpiresAt {
		if err := c.Pairing.Set(user, store.Unpaired); err != nil {
			return fmt.Errorf("chatgateway: reset expired pending: %w", err)
		}
		return c.send(ctx, user, TextMessage("Your pairing code expired. Please request a new one."))
	}

	code, ok := store.NormalizePairingCode(text)
	if !ok || code != state.Code {
		return c.send(ctx, user, TextMessage("That code doesn't match. Please try again."))
	}

	return c.completePairing(ctx, user)
}

// completePairing implements spec.md §4.2's "Completing a pairing" steps.
func (c *GatewayCore) completePairing(ctx context.Context, user store.PlatformUser) error {
	if c.pairedCount != nil && c.MaxSessions > 0 && c.pairedCount() >= c.MaxSessions {
		return c.send(ctx, user, TextMessage("⚠️ This gateway is full. Please try again later."))
	}

	workDir := filepath.Join(c.WorkspaceRoot, "gateway", user.Platform, user.UserID)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("chatgateway: reserve working dir: %w", err)
	}

	display := user.DisplayName
	if display == "" {
		display = user.UserID
	}
	sessionID, err := c.Agents.CreateSession(ctx, "Gateway", fmt.Sprintf("%s/%s", user.Platform, display))
	if err != nil {
		return fmt.Errorf("chatgateway: create session: %w", err)
	}

	if err := c.Agents.UpdateSession(ctx, sessionID, func(s *SessionSnapshot) {
		s.Provider = c.ProviderName
		s.Model = c.ModelConfig
		s.Extensions = append([]string(nil), c.Extensions...)
	}); err != nil {
		return fmt.Errorf("chatgateway: record session snapshot: %w", err)
	}

	if err := c.Pairing.Set(user, store.PairingState{
		State:     "paired",
		SessionID: sessionID,
		PairedAt:  time.Now().Unix(),
	}); err != nil {
		return fmt.Errorf("chatgateway: persist paired state: %w", err)
	}

	return c.send(ctx, user, TextMessage("Paired! You can now chat with goose."))
}

// relay implements spec.md §4.2's relay-to-session algorithm.
func (c *GatewayCore) relay(ctx context.Context, user store.PlatformUser, sessionID, text string) error {
	if err := c.send(ctx, user, TypingMessage()); err != nil {
		slog.Debug("chatgateway: typing send failed", "error", err)
	}

	snap, err := c.Agents.GetSession(ctx, sessionID)
	if err != nil {
		return c.agentError(ctx, user, fmt.Errorf("load session: %w", err))
	}

	extensionsChanged := !stringSlicesEqual(snap.Extensions, c.Extensions)
	if snap.Provider != c.ProviderName || snap.Model != c.ModelConfig || extensionsChanged {
		if err := c.Agents.UpdateSession(ctx, sessionID, func(s *SessionSnapshot) {
			s.Provider = c.ProviderName
			s.Model = c.ModelConfig
			s.Extensions = append([]string(nil), c.Extensions...)
		}); err != nil {
			return c.agentError(ctx, user, fmt.Errorf("update session config: %w", err))
		}
		if extensionsChanged {
			// Discard the in-memory agent so stale extension subprocesses
			// are torn down; RemoveSession only drops the cached agent
			// handle here since the session itself persists.
			_ = c.Agents.RemoveSession(ctx, sessionID)
		}
	}

	agent, err := c.Agents.GetOrCreateAgent(ctx, sessionID)
	if err != nil {
		return c.agentError(ctx, user, fmt.Errorf("get agent: %w", err))
	}
	if err := agent.RestoreProviderFromSession(ctx); err != nil {
		return c.agentError(ctx, user, fmt.Errorf("restore provider: %w", err))
	}
	if err := agent.LoadExtensionsFromSession(ctx); err != nil {
		return c.agentError(ctx, user, fmt.Errorf("load extensions: %w", err))
	}

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := agent.Reply(turnCtx, text, SessionTurnConfig{ID: sessionID, MaxTurns: GatewayMaxTurns})
	if err != nil {
		return c.agentError(ctx, user, fmt.Errorf("start reply stream: %w", err))
	}

	typingCtx, stopTyping := context.WithCancel(ctx)
	typingDone := make(chan struct{})
	go c.runTypingReemitter(typingCtx, user, typingDone)

	var pendingText strings.Builder
	sentAny := false

	for ev := range events {
		switch ev.Kind {
		case ReplyEventTextDelta:
			pendingText.WriteString(ev.Text)

		case ReplyEventToolRequest:
			if pendingText.Len() > 0 {
				if err := c.send(ctx, user, TextMessage(pendingText.String())); err != nil {
					slog.Debug("chatgateway: flush before tool-request failed", "error", err)
				}
				sentAny = true
				pendingText.Reset()
			}
			if err := c.send(ctx, user, TypingMessage()); err != nil {
				slog.Debug("chatgateway: typing send failed", "error", err)
			}

		case ReplyEventError:
			stopTyping()
			<-typingDone
			return c.agentError(ctx, user, ev.Err)

		case ReplyEventOther:
			slog.Debug("chatgateway: relay event ignored", "kind", ev.Kind)
		}
	}

	stopTyping()
	<-typingDone

	if pendingText.Len() > 0 {
		if err := c.send(ctx, user, TextMessage(pendingText.String())); err != nil {
			return fmt.Errorf("chatgateway: send final reply: %w", err)
		}
	} else if !sentAny {
		if err := c.send(ctx, user, TextMessage("(No response)")); err != nil {
			return fmt.Errorf("chatgateway: send no-response notice: %w", err)
		}
	}

	return nil
}

// runTypingReemitter sends a Typing message every TypingInterval until ctx
// is cancelled. The first immediate tick is skipped (spec.md §4.2 step 5).
func (c *GatewayCore) runTypingReemitter(ctx context.Context, user store.PlatformUser, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(TypingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.send(ctx, user, TypingMessage()); err != nil {
				slog.Debug("chatgateway: typing re-emit failed", "error", err)
			}
		}
	}
}

func (c *GatewayCore) agentError(ctx context.Context, user store.PlatformUser, cause error) error {
	slog.Warn("chatgateway: agent error", "gateway", c.GatewayType, "error", cause)
	if err := c.send(ctx, user, TextMessage("⚠️ "+cause.Error())); err != nil {
		return fmt.Errorf("chatgateway: send agent error notice: %w", err)
	}
	return nil
}

func (c *GatewayCore) send(ctx context.Context, user store.PlatformUser, msg OutgoingMessage) error {
	return c.Adapter.SendMessage(ctx, user, msg)
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
