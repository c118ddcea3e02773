package chatgateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nextlevelbuilder/chatgate/internal/chatgateway"
	"github.com/nextlevelbuilder/chatgate/internal/pairing"
	"github.com/nextlevelbuilder/chatgate/internal/store"
)

type fakeConfigStore struct {
	mu      sync.Mutex
	params  map[string]string
	secrets map[string]string
}

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{params: map[string]string{}, secrets: map[string]string{}}
}

func (c *fakeConfigStore) GetParam(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.params[key]
	return v, ok, nil
}

func (c *fakeConfigStore) SetParam(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.params[key] = value
	return nil
}

func (c *fakeConfigStore) GetSecret(key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.secrets[key]
	return v, ok, nil
}

func (c *fakeConfigStore) SetSecret(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secrets[key] = value
	return nil
}

func (c *fakeConfigStore) DeleteSecret(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.secrets, key)
	return nil
}

func newTestManager(t *testing.T) (*chatgateway.GatewayManager, *fakeAdapter) {
	t.Helper()
	adapter := &fakeAdapter{gatewayType: "telegram"}
	factory := func(gatewayType string, platformConfig json.RawMessage) (chatgateway.PlatformAdapter, error) {
		adapter.gatewayType = gatewayType
		return adapter, nil
	}
	svc := pairing.NewService(filepath.Join(t.TempDir(), "pairing.json"))
	m := chatgateway.NewGatewayManager(newFakeConfigStore(), svc, newFakeAgentManager(), factory, t.TempDir())
	return m, adapter
}

func TestGatewayManagerStartRejectsDoubleStart(t *testing.T) {
	m, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx, "telegram", json.RawMessage(`{}`), 10); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Start(ctx, "telegram", json.RawMessage(`{}`), 10); err == nil {
		t.Fatalf("expected an error starting an already-running gateway")
	}
}

func TestGatewayManagerStartPropagatesValidateConfigError(t *testing.T) {
	boom := errors.New("bad config")
	badFactory := func(gatewayType string, platformConfig json.RawMessage) (chatgateway.PlatformAdapter, error) {
		return &fakeValidateErrAdapter{gatewayType: gatewayType, err: boom}, nil
	}
	m := chatgateway.NewGatewayManager(newFakeConfigStore(), pairing.NewService(""), newFakeAgentManager(), badFactory, t.TempDir())

	if err := m.Start(context.Background(), "telegram", json.RawMessage(`{}`), 10); err == nil {
		t.Fatalf("expected Start to propagate the ValidateConfig error")
	}
}

type fakeValidateErrAdapter struct {
	gatewayType string
	err         error
}

func (a *fakeValidateErrAdapter) GatewayType() string                      { return a.gatewayType }
func (a *fakeValidateErrAdapter) ValidateConfig(ctx context.Context) error { return a.err }
func (a *fakeValidateErrAdapter) Start(ctx context.Context, _ *chatgateway.GatewayCore) error {
	<-ctx.Done()
	return nil
}
func (a *fakeValidateErrAdapter) SendMessage(context.Context, store.PlatformUser, chatgateway.OutgoingMessage) error {
	return nil
}
func (a *fakeValidateErrAdapter) Info() map[string]string { return nil }

func TestGatewayManagerStopRejectsUnknownGateway(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Stop("telegram"); err == nil {
		t.Fatalf("expected an error stopping a gateway that was never started")
	}
}

func TestGatewayManagerStartStopLifecycleAndStatus(t *testing.T) {
	m, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx, "telegram", json.RawMessage(`{"token":"x"}`), 5); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	statuses, err := m.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(statuses) != 1 || statuses[0].GatewayType != "telegram" || !statuses[0].Running || statuses[0].MaxSessions != 5 {
		t.Fatalf("unexpected status after Start: %+v", statuses)
	}

	if err := m.Stop("telegram"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	statuses, err = m.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Running {
		t.Fatalf("expected a stopped-but-configured entry after Stop, got %+v", statuses)
	}
}

func TestGatewayManagerRestartUsesSavedConfig(t *testing.T) {
	m, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx, "telegram", json.RawMessage(`{"token":"x"}`), 3); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Stop("telegram"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := m.Restart(ctx, "telegram"); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}

	statuses, err := m.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(statuses) != 1 || !statuses[0].Running || statuses[0].MaxSessions != 3 {
		t.Fatalf("expected Restart to resume with the saved max_sessions, got %+v", statuses)
	}

	_ = m.Stop("telegram")
}

func TestGatewayManagerRestartFailsWithoutSavedConfig(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Restart(context.Background(), "telegram"); err == nil {
		t.Fatalf("expected Restart to fail when no config was ever saved")
	}
}

func TestGatewayManagerRemoveDeletesSavedConfigAndSecret(t *testing.T) {
	m, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx, "telegram", json.RawMessage(`{"token":"x"}`), 3); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Remove("telegram"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	statuses, err := m.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(statuses) != 0 {
		t.Fatalf("expected no status entries after Remove, got %+v", statuses)
	}

	if err := m.Restart(ctx, "telegram"); err == nil {
		t.Fatalf("expected Restart to fail after Remove deleted the saved config")
	}
}

func TestGatewayManagerUnpairUser(t *testing.T) {
	m, _ := newTestManager(t)

	ok, err := m.UnpairUser("telegram", "42")
	if err != nil || ok {
		t.Fatalf("expected UnpairUser to report false for a never-paired user, got %v err=%v", ok, err)
	}
}

func TestGatewayManagerGeneratePairingCode(t *testing.T) {
	m, _ := newTestManager(t)

	code, expiresAt, err := m.GeneratePairingCode("telegram")
	if err != nil {
		t.Fatalf("GeneratePairingCode failed: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected a 6-character code, got %q", code)
	}
	if expiresAt <= 0 {
		t.Fatalf("expected a positive expiry, got %d", expiresAt)
	}
}

func TestGatewayManagerCheckAutoStartResumesSavedConfigs(t *testing.T) {
	m, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Start(ctx, "telegram", json.RawMessage(`{"token":"x"}`), 3); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Stop("telegram"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	m.CheckAutoStart(ctx)

	statuses, err := m.Status()
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(statuses) != 1 || !statuses[0].Running {
		t.Fatalf("expected CheckAutoStart to resume the stopped gateway, got %+v", statuses)
	}

	_ = m.Stop("telegram")
}
