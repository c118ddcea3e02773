package chatgateway_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/chatgate/internal/chatgateway"
	"github.com/nextlevelbuilder/chatgate/internal/pairing"
	"github.com/nextlevelbuilder/chatgate/internal/store"
)

type sentMsg struct {
	user store.PlatformUser
	msg  chatgateway.OutgoingMessage
}

type fakeAdapter struct {
	gatewayType string

	mu   sync.Mutex
	sent []sentMsg
}

func (f *fakeAdapter) GatewayType() string                      { return f.gatewayType }
func (f *fakeAdapter) ValidateConfig(ctx context.Context) error { return nil }
func (f *fakeAdapter) Info() map[string]string                  { return nil }
func (f *fakeAdapter) Start(ctx context.Context, _ *chatgateway.GatewayCore) error {
	<-ctx.Done()
	return nil
}

func (f *fakeAdapter) SendMessage(ctx context.Context, user store.PlatformUser, msg chatgateway.OutgoingMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{user, msg})
	return nil
}

func (f *fakeAdapter) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if s.msg.Kind == "text" {
			out = append(out, s.msg.Body)
		}
	}
	return out
}

func (f *fakeAdapter) typingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.msg.Kind == "typing" {
			n++
		}
	}
	return n
}

type fakeAgent struct {
	restoreErr error
	loadExtErr error
	replyFn    func(text string) []chatgateway.ReplyEvent
}

func (a *fakeAgent) RestoreProviderFromSession(ctx context.Context) error { return a.restoreErr }
func (a *fakeAgent) LoadExtensionsFromSession(ctx context.Context) error  { return a.loadExtErr }

func (a *fakeAgent) Reply(ctx context.Context, userMessage string, cfg chatgateway.SessionTurnConfig) (<-chan chatgateway.ReplyEvent, error) {
	ch := make(chan chatgateway.ReplyEvent)
	events := a.replyFn(userMessage)
	go func() {
		defer close(ch)
		for _, ev := range events {
			ch <- ev
		}
	}()
	return ch, nil
}

func echoAgent() *fakeAgent {
	return &fakeAgent{replyFn: func(text string) []chatgateway.ReplyEvent {
		return []chatgateway.ReplyEvent{{Kind: chatgateway.ReplyEventTextDelta, Text: "echo:" + text}}
	}}
}

type fakeAgentManager struct {
	mu          sync.Mutex
	sessions    map[string]chatgateway.SessionSnapshot
	agents      map[string]*fakeAgent
	newAgent    func() *fakeAgent
	removeCalls []string
	nextID      int
}

func newFakeAgentManager() *fakeAgentManager {
	return &fakeAgentManager{
		sessions: map[string]chatgateway.SessionSnapshot{},
		agents:   map[string]*fakeAgent{},
		newAgent: echoAgent,
	}
}

func (m *fakeAgentManager) CreateSession(ctx context.Context, kind, displayName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := "sess-" + time.Now().Format("150405") + "-" + string(rune('0'+m.nextID))
	m.sessions[id] = chatgateway.SessionSnapshot{ID: id, CreatedAt: time.Now()}
	return id, nil
}

func (m *fakeAgentManager) GetSession(ctx context.Context, sessionID string) (chatgateway.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID], nil
}

func (m *fakeAgentManager) UpdateSession(ctx context.Context, sessionID string, fn func(*chatgateway.SessionSnapshot)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[sessionID]
	fn(&s)
	m.sessions[sessionID] = s
	return nil
}

func (m *fakeAgentManager) GetOrCreateAgent(ctx context.Context, sessionID string) (chatgateway.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.agents[sessionID]; ok {
		return a, nil
	}
	a := m.newAgent()
	m.agents[sessionID] = a
	return a, nil
}

func (m *fakeAgentManager) RemoveSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeCalls = append(m.removeCalls, sessionID)
	delete(m.agents, sessionID)
	return nil
}

func newTestCore(t *testing.T, adapter *fakeAdapter, agents *fakeAgentManager) *chatgateway.GatewayCore {
	t.Helper()
	svc := pairing.NewService(filepath.Join(t.TempDir(), "pairing.json"))
	return &chatgateway.GatewayCore{
		GatewayType:   "telegram",
		Adapter:       adapter,
		Pairing:       svc,
		Agents:        agents,
		WorkspaceRoot: t.TempDir(),
	}
}

func testUser() store.PlatformUser {
	return store.PlatformUser{Platform: "telegram", UserID: "42"}
}

func TestHandleMessageUnpairedWithoutCodePromptsForCode(t *testing.T) {
	adapter := &fakeAdapter{gatewayType: "telegram"}
	core := newTestCore(t, adapter, newFakeAgentManager())

	if err := core.HandleMessage(context.Background(), chatgateway.IncomingMessage{User: testUser(), Text: "hello"}); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	texts := adapter.texts()
	if len(texts) != 1 || texts[0] != "Please enter your pairing code to get started." {
		t.Fatalf("unexpected sent texts: %v", texts)
	}
}

func TestHandleMessageUnpairedWithValidCodeCompletesPairing(t *testing.T) {
	adapter := &fakeAdapter{gatewayType: "telegram"}
	core := newTestCore(t, adapter, newFakeAgentManager())

	if err := core.Pairing.StorePendingCode("ABCD23", "telegram", time.Now().Unix()+60); err != nil {
		t.Fatalf("StorePendingCode failed: %v", err)
	}

	user := testUser()
	if err := core.HandleMessage(context.Background(), chatgateway.IncomingMessage{User: user, Text: "ab-cd-23"}); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	texts := adapter.texts()
	if len(texts) != 1 || texts[0] != "Paired! You can now chat with goose." {
		t.Fatalf("unexpected sent texts: %v", texts)
	}

	st, err := core.Pairing.Get(user)
	if err != nil || st.State != "paired" || st.SessionID == "" {
		t.Fatalf("expected user to be paired with a session, got %+v err=%v", st, err)
	}
}

func TestHandleMessageUnpairedCodeForDifferentGateway(t *testing.T) {
	adapter := &fakeAdapter{gatewayType: "telegram"}
	core := newTestCore(t, adapter, newFakeAgentManager())

	if err := core.Pairing.StorePendingCode("ABCD23", "discord", time.Now().Unix()+60); err != nil {
		t.Fatalf("StorePendingCode failed: %v", err)
	}

	if err := core.HandleMessage(context.Background(), chatgateway.IncomingMessage{User: testUser(), Text: "ABCD23"}); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	texts := adapter.texts()
	if len(texts) != 1 || texts[0] != "⚠️ That code is for a different gateway." {
		t.Fatalf("unexpected sent texts: %v", texts)
	}
}

func TestHandleMessageMaxSessionsEnforced(t *testing.T) {
	adapter := &fakeAdapter{gatewayType: "telegram"}
	core := newTestCore(t, adapter, newFakeAgentManager())
	core.MaxSessions = 1
	core.SetPairedCounter(func() int { return 1 })

	if err := core.Pairing.StorePendingCode("ABCD23", "telegram", time.Now().Unix()+60); err != nil {
		t.Fatalf("StorePendingCode failed: %v", err)
	}

	user := testUser()
	if err := core.HandleMessage(context.Background(), chatgateway.IncomingMessage{User: user, Text: "ABCD23"}); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	texts := adapter.texts()
	if len(texts) != 1 || texts[0] != "⚠️ This gateway is full. Please try again later." {
		t.Fatalf("unexpected sent texts: %v", texts)
	}

	st, err := core.Pairing.Get(user)
	if err != nil || st.State == "paired" {
		t.Fatalf("user should not have been paired when the gateway is full, got %+v", st)
	}
}

func TestHandlePendingMatchingCodeCompletesPairing(t *testing.T) {
	adapter := &fakeAdapter{gatewayType: "telegram"}
	core := newTestCore(t, adapter, newFakeAgentManager())
	user := testUser()

	if err := core.Pairing.Set(user, store.PairingState{State: "pending", Code: "ABCD23", ExpiresAt: time.Now().Unix() + 60}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := core.HandleMessage(context.Background(), chatgateway.IncomingMessage{User: user, Text: "ABCD23"}); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	texts := adapter.texts()
	if len(texts) != 1 || texts[0] != "Paired! You can now chat with goose." {
		t.Fatalf("unexpected sent texts: %v", texts)
	}
}

func TestHandlePendingMismatchedCode(t *testing.T) {
	adapter := &fakeAdapter{gatewayType: "telegram"}
	core := newTestCore(t, adapter, newFakeAgentManager())
	user := testUser()

	if err := core.Pairing.Set(user, store.PairingState{State: "pending", Code: "ABCD23", ExpiresAt: time.Now().Unix() + 60}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := core.HandleMessage(context.Background(), chatgateway.IncomingMessage{User: user, Text: "ZZZ999"}); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	texts := adapter.texts()
	if len(texts) != 1 || texts[0] != "That code doesn't match. Please try again." {
		t.Fatalf("unexpected sent texts: %v", texts)
	}
}

func TestHandlePendingExpiredCodeResetsToUnpaired(t *testing.T) {
	adapter := &fakeAdapter{gatewayType: "telegram"}
	core := newTestCore(t, adapter, newFakeAgentManager())
	user := testUser()

	if err := core.Pairing.Set(user, store.PairingState{State: "pending", Code: "ABC123", ExpiresAt: time.Now().Unix() - 10}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := core.HandleMessage(context.Background(), chatgateway.IncomingMessage{User: user, Text: "ABC123"}); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	texts := adapter.texts()
	if len(texts) != 1 || texts[0] != "Your pairing code expired. Please request a new one." {
		t.Fatalf("unexpected sent texts: %v", texts)
	}

	st, err := core.Pairing.Get(user)
	if err != nil || st.State != "unpaired" {
		t.Fatalf("expected state reset to unpaired, got %+v err=%v", st, err)
	}
}

func TestRelayEchoesAgentReplyAndSendsTyping(t *testing.T) {
	adapter := &fakeAdapter{gatewayType: "telegram"}
	agents := newFakeAgentManager()
	core := newTestCore(t, adapter, agents)
	user := testUser()

	if err := core.Pairing.Set(user, store.PairingState{State: "paired", SessionID: "sess-1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	agents.sessions["sess-1"] = chatgateway.SessionSnapshot{ID: "sess-1"}

	if err := core.HandleMessage(context.Background(), chatgateway.IncomingMessage{User: user, Text: "hello"}); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	texts := adapter.texts()
	if len(texts) != 1 || texts[0] != "echo:hello" {
		t.Fatalf("unexpected sent texts: %v", texts)
	}
	if adapter.typingCount() < 1 {
		t.Fatalf("expected at least one typing message, got %d", adapter.typingCount())
	}
}

func TestRelaySendsNoResponseWhenAgentYieldsNothing(t *testing.T) {
	adapter := &fakeAdapter{gatewayType: "telegram"}
	agents := newFakeAgentManager()
	agents.newAgent = func() *fakeAgent {
		return &fakeAgent{replyFn: func(string) []chatgateway.ReplyEvent { return nil }}
	}
	core := newTestCore(t, adapter, agents)
	user := testUser()

	if err := core.Pairing.Set(user, store.PairingState{State: "paired", SessionID: "sess-1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	agents.sessions["sess-1"] = chatgateway.SessionSnapshot{ID: "sess-1"}

	if err := core.HandleMessage(context.Background(), chatgateway.IncomingMessage{User: user, Text: "hi"}); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	texts := adapter.texts()
	if len(texts) != 1 || texts[0] != "(No response)" {
		t.Fatalf("unexpected sent texts: %v", texts)
	}
}

func TestRelayFlushesPendingTextBeforeToolRequest(t *testing.T) {
	adapter := &fakeAdapter{gatewayType: "telegram"}
	agents := newFakeAgentManager()
	agents.newAgent = func() *fakeAgent {
		return &fakeAgent{replyFn: func(string) []chatgateway.ReplyEvent {
			return []chatgateway.ReplyEvent{
				{Kind: chatgateway.ReplyEventTextDelta, Text: "partial"},
				{Kind: chatgateway.ReplyEventToolRequest, ToolName: "tool1"},
			}
		}}
	}
	core := newTestCore(t, adapter, agents)
	user := testUser()

	if err := core.Pairing.Set(user, store.PairingState{State: "paired", SessionID: "sess-1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	agents.sessions["sess-1"] = chatgateway.SessionSnapshot{ID: "sess-1"}

	if err := core.HandleMessage(context.Background(), chatgateway.IncomingMessage{User: user, Text: "hi"}); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	texts := adapter.texts()
	if len(texts) != 1 || texts[0] != "partial" {
		t.Fatalf("expected the pending text to flush before the tool request, got %v", texts)
	}
	if adapter.typingCount() < 2 {
		t.Fatalf("expected typing before the reply and again after the tool request, got %d", adapter.typingCount())
	}
}

func TestRelayHandlesAgentErrorEvent(t *testing.T) {
	adapter := &fakeAdapter{gatewayType: "telegram"}
	agents := newFakeAgentManager()
	boom := errors.New("boom")
	agents.newAgent = func() *fakeAgent {
		return &fakeAgent{replyFn: func(string) []chatgateway.ReplyEvent {
			return []chatgateway.ReplyEvent{{Kind: chatgateway.ReplyEventError, Err: boom}}
		}}
	}
	core := newTestCore(t, adapter, agents)
	user := testUser()

	if err := core.Pairing.Set(user, store.PairingState{State: "paired", SessionID: "sess-1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	agents.sessions["sess-1"] = chatgateway.SessionSnapshot{ID: "sess-1"}

	if err := core.HandleMessage(context.Background(), chatgateway.IncomingMessage{User: user, Text: "hi"}); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	texts := adapter.texts()
	if len(texts) != 1 || texts[0] != "⚠️ boom" {
		t.Fatalf("unexpected sent texts: %v", texts)
	}
}

func TestRelayDiscardsCachedAgentWhenExtensionsChange(t *testing.T) {
	adapter := &fakeAdapter{gatewayType: "telegram"}
	agents := newFakeAgentManager()
	core := newTestCore(t, adapter, agents)
	core.Extensions = []string{"search"}
	user := testUser()

	if err := core.Pairing.Set(user, store.PairingState{State: "paired", SessionID: "sess-1"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	agents.sessions["sess-1"] = chatgateway.SessionSnapshot{ID: "sess-1"} // no extensions yet: mismatch

	if err := core.HandleMessage(context.Background(), chatgateway.IncomingMessage{User: user, Text: "hi"}); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	if len(agents.removeCalls) != 1 || agents.removeCalls[0] != "sess-1" {
		t.Fatalf("expected RemoveSession to be called once for sess-1, got %v", agents.removeCalls)
	}
	snap := agents.sessions["sess-1"]
	if len(snap.Extensions) != 1 || snap.Extensions[0] != "search" {
		t.Fatalf("expected the session snapshot to record the new extensions, got %+v", snap)
	}
}
