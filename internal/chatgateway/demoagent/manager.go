// Package demoagent is a minimal concrete chatgateway.AgentManager/Agent
// pair: one CLI-backed provider driver per session, session history kept in
// internal/sessions.Manager. It exists to wire C1 (the chat gateway core)
// to C2 (the CLI-backed provider driver) end to end.
package demoagent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/chatgate/internal/chatgateway"
	"github.com/nextlevelbuilder/chatgate/internal/providers/clidriver"
	"github.com/nextlevelbuilder/chatgate/internal/sessions"
)

// Manager implements chatgateway.AgentManager over internal/sessions and a
// pool of clidriver.CliProcess instances, one per live session.
type Manager struct {
	sessions *sessions.Manager
	binary   string

	mu     sync.Mutex
	agents map[string]*Agent // sessionID -> live agent, only while in use
	meta   map[string]*chatgateway.SessionSnapshot
}

// NewManager builds a Manager persisting sessions under storageDir and
// launching the configured CLI binary per agent.
func NewManager(storageDir, binary string) *Manager {
	return &Manager{
		sessions: sessions.NewManager(storageDir),
		binary:   binary,
		agents:   make(map[string]*Agent),
		meta:     make(map[string]*chatgateway.SessionSnapshot),
	}
}

// CreateSession implements chatgateway.AgentManager.
func (m *Manager) CreateSession(ctx context.Context, kind, displayName string) (string, error) {
	sessionID := fmt.Sprintf("%s-%s", kind, uuid.NewString())
	key := sessions.SessionKey(sessionID, "gateway")
	m.sessions.GetOrCreate(key)
	m.sessions.SetLabel(key, displayName)

	m.mu.Lock()
	m.meta[sessionID] = &chatgateway.SessionSnapshot{ID: sessionID, CreatedAt: time.Now()}
	m.mu.Unlock()

	return sessionID, nil
}

// GetSession implements chatgateway.AgentManager.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (chatgateway.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.meta[sessionID]
	if !ok {
		return chatgateway.SessionSnapshot{}, fmt.Errorf("demoagent: unknown session %q", sessionID)
	}
	return *snap, nil
}

// UpdateSession implements chatgateway.AgentManager.
func (m *Manager) UpdateSession(ctx context.Context, sessionID string, fn func(*chatgateway.SessionSnapshot)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.meta[sessionID]
	if !ok {
		return fmt.Errorf("demoagent: unknown session %q", sessionID)
	}
	fn(snap)
	return nil
}

// GetOrCreateAgent implements chatgateway.AgentManager. Returned agents are
// cached; a prior RemoveSession call forces a fresh one on next access.
func (m *Manager) GetOrCreateAgent(ctx context.Context, sessionID string) (chatgateway.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.agents[sessionID]; ok {
		return a, nil
	}
	snap, ok := m.meta[sessionID]
	if !ok {
		return nil, fmt.Errorf("demoagent: unknown session %q", sessionID)
	}

	a := &Agent{
		sessionID: sessionID,
		key:       sessions.SessionKey(sessionID, "gateway"),
		sessions:  m.sessions,
		binary:    m.binary,
		snap:      snap,
	}
	m.agents[sessionID] = a
	return a, nil
}

// RemoveSession implements chatgateway.AgentManager: drops the cached agent
// (closing its child process) without deleting the persisted history.
func (m *Manager) RemoveSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	a, ok := m.agents[sessionID]
	delete(m.agents, sessionID)
	m.mu.Unlock()

	if ok {
		return a.close()
	}
	return nil
}
