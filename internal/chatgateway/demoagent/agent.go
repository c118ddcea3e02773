package demoagent

import (
	"context"
	"fmt"
	"sync"

	"github.com/nextlevelbuilder/chatgate/internal/chatgateway"
	"github.com/nextlevelbuilder/chatgate/internal/providers"
	"github.com/nextlevelbuilder/chatgate/internal/providers/clidriver"
	"github.com/nextlevelbuilder/chatgate/internal/sessions"
)

// Agent implements chatgateway.Agent for one session, lazily owning a
// persistent clidriver.CliProcess.
type Agent struct {
	sessionID string
	key       string
	sessions  *sessions.Manager
	binary    string
	snap      *chatgateway.SessionSnapshot

	mu     sync.Mutex
	driver *clidriver.CliProcess
}

// RestoreProviderFromSession implements chatgateway.Agent. The driver is
// created lazily on first Reply since it needs the current model/provider,
// which the relay may have just updated; nothing to restore eagerly here.
func (a *Agent) RestoreProviderFromSession(ctx context.Context) error {
	return nil
}

// LoadExtensionsFromSession implements chatgateway.Agent. It loads nothing:
// ensureDriver builds the driver without an MCPConfig, so the session's
// Extensions are not connected to the child.
func (a *Agent) LoadExtensionsFromSession(ctx context.Context) error {
	return nil
}

func (a *Agent) ensureDriver() *clidriver.CliProcess {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.driver == nil {
		a.driver = clidriver.NewCliProcess(clidriver.DriverConfig{
			Binary: a.binary,
			Model:  a.snap.Model,
			Mode:   clidriver.GooseModePrompt,
		})
	}
	return a.driver
}

// Reply implements chatgateway.Agent: appends userMessage to history,
// streams a turn through the CLI driver, and translates driver events into
// chatgateway.ReplyEvent, persisting the assistant's reply on completion.
func (a *Agent) Reply(ctx context.Context, userMessage string, cfg chatgateway.SessionTurnConfig) (<-chan chatgateway.ReplyEvent, error) {
	a.sessions.AddMessage(a.key, providers.Message{Role: "user", Content: userMessage})
	history := a.sessions.GetHistory(a.key)

	driver := a.ensureDriver()
	events, err := driver.Stream(ctx, a.snap.Model, a.sessionID, history, nil)
	if err != nil {
		return nil, fmt.Errorf("demoagent: start stream: %w", err)
	}

	out := make(chan chatgateway.ReplyEvent, 8)
	go a.pump(driver, events, out)
	return out, nil
}

// pump drains one turn's driver events into chatgateway.ReplyEvent, and
// auto-approves every can_use_tool request: the chat-platform side of this
// gateway has no channel for a human to confirm tool use mid-turn, so
// demoagent answers allow on the driver's behalf rather than leaving the
// turn blocked on a permission waiter nobody will ever resolve.
func (a *Agent) pump(driver *clidriver.CliProcess, events <-chan clidriver.StreamEvent, out chan<- chatgateway.ReplyEvent) {
	defer close(out)
	var full string

	for ev := range events {
		switch {
		case ev.Partial != nil:
			full += ev.Partial.Text
			out <- chatgateway.ReplyEvent{Kind: chatgateway.ReplyEventTextDelta, Text: ev.Partial.Text}

		case ev.Permission != nil:
			out <- chatgateway.ReplyEvent{Kind: chatgateway.ReplyEventToolRequest, ToolName: ev.Permission.ToolName}
			driver.HandlePermissionConfirmation(ev.Permission.RequestID, clidriver.PermissionAnswer{Allow: true})

		case ev.Usage != nil:
			if full != "" {
				a.sessions.AddMessage(a.key, providers.Message{Role: "assistant", Content: full})
				a.sessions.AccumulateTokens(a.key, int64(ev.Usage.InputTokens), int64(ev.Usage.OutputTokens))
				a.sessions.Save(a.key)
			}
		}
	}
}

func (a *Agent) close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.driver == nil {
		return nil
	}
	err := a.driver.Close()
	a.driver = nil
	return err
}
