package chatgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nextlevelbuilder/chatgate/internal/store"
)

// gatewayConfigsParam is the ConfigStore parameter key holding the list of
// non-secret GatewayConfig entries (spec.md §6.2's config store contract).
const gatewayConfigsParam = "gateway_configs"

func platformSecretKey(gatewayType string) string {
	return "gateway_platform_config_" + gatewayType
}

// AdapterFactory builds a PlatformAdapter for one gateway type from its
// opaque platform_config JSON. Supplied by the process wiring up
// GatewayManager, since adapters are registered per deployment.
type AdapterFactory func(gatewayType string, platformConfig json.RawMessage) (PlatformAdapter, error)

// StatusEntry is one row of GatewayManager.Status: either a running
// instance (Running true) or a configured-but-stopped entry.
type StatusEntry struct {
	GatewayType string
	Running     bool
	MaxSessions int
	PairedUsers int
}

// GatewayManager is the registry mapping gateway_type -> running
// GatewayInstance, with config persistence through a ConfigStore.
type GatewayManager struct {
	Config    ConfigStore
	Pairing   store.PairingStore
	Agents    AgentManager
	Adapters  AdapterFactory
	Workspace string

	ProviderName string
	ModelConfig  string
	Extensions   []string

	mu        sync.Mutex
	instances map[string]*GatewayInstance
}

// NewGatewayManager constructs an empty registry.
func NewGatewayManager(cfg ConfigStore, pairing store.PairingStore, agents AgentManager, adapters AdapterFactory, workspace string) *GatewayManager {
	return &GatewayManager{
		Config:    cfg,
		Pairing:   pairing,
		Agents:    agents,
		Adapters:  adapters,
		Workspace: workspace,
		instances: make(map[string]*GatewayInstance),
	}
}

// Start implements spec.md §4.3's start operation.
func (m *GatewayManager) Start(ctx context.Context, gatewayType string, platformConfig json.RawMessage, maxSessions int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, running := m.instances[gatewayType]; running {
		return fmt.Errorf("chatgateway: gateway %q is already running", gatewayType)
	}

	adapter, err := m.Adapters(gatewayType, platformConfig)
	if err != nil {
		return fmt.Errorf("chatgateway: build adapter for %q: %w", gatewayType, err)
	}
	if err := adapter.ValidateConfig(ctx); err != nil {
		return fmt.Errorf("chatgateway: validate config for %q: %w", gatewayType, err)
	}

	core := &GatewayCore{
		GatewayType:   gatewayType,
		Adapter:       adapter,
		Pairing:       m.Pairing,
		Agents:        m.Agents,
		ProviderName:  m.ProviderName,
		ModelConfig:   m.ModelConfig,
		Extensions:    append([]string(nil), m.Extensions...),
		WorkspaceRoot: m.Workspace,
		MaxSessions:   maxSessions,
	}
	core.SetPairedCounter(func() int {
		n, err := m.Pairing.ListPairedUsers(gatewayType)
		if err != nil {
			slog.Warn("chatgateway: paired-user count failed", "gateway", gatewayType, "error", err)
			return 0
		}
		return len(n)
	})

	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	inst := &GatewayInstance{
		Config: GatewayConfig{GatewayType: gatewayType, PlatformConfig: platformConfig, MaxSessions: maxSessions},
		Core:   core,
		Cancel: cancel,
		Done:   done,
	}

	go func() {
		defer close(done)
		if err := adapter.Start(workerCtx, core); err != nil && workerCtx.Err() == nil {
			slog.Error("chatgateway: adapter exited with error", "gateway", gatewayType, "error", err)
		}
	}()

	m.instances[gatewayType] = inst

	if err := m.persistConfig(gatewayType, platformConfig, maxSessions); err != nil {
		slog.Error("chatgateway: persist config failed", "gateway", gatewayType, "error", err)
	}

	return nil
}

// Stop implements spec.md §4.3's stop operation.
func (m *GatewayManager) Stop(gatewayType string) error {
	m.mu.Lock()
	inst, ok := m.instances[gatewayType]
	if ok {
		delete(m.instances, gatewayType)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("chatgateway: gateway %q is not running", gatewayType)
	}

	inst.Cancel()
	<-inst.Done

	if _, err := m.Pairing.RemoveAllForPlatform(gatewayType); err != nil {
		return fmt.Errorf("chatgateway: clear pairings for %q: %w", gatewayType, err)
	}
	return nil
}

// Restart implements spec.md §4.3's restart operation.
func (m *GatewayManager) Restart(ctx context.Context, gatewayType string) error {
	m.mu.Lock()
	_, running := m.instances[gatewayType]
	m.mu.Unlock()
	if running {
		return fmt.Errorf("chatgateway: gateway %q is already running", gatewayType)
	}

	cfg, ok, err := m.loadConfig(gatewayType)
	if err != nil {
		return fmt.Errorf("chatgateway: load config for %q: %w", gatewayType, err)
	}
	if !ok {
		return fmt.Errorf("chatgateway: no saved config for %q", gatewayType)
	}
	return m.Start(ctx, gatewayType, cfg.PlatformConfig, cfg.MaxSessions)
}

// Remove implements spec.md §4.3's remove operation.
func (m *GatewayManager) Remove(gatewayType string) error {
	m.mu.Lock()
	_, running := m.instances[gatewayType]
	m.mu.Unlock()
	if running {
		if err := m.Stop(gatewayType); err != nil {
			return err
		}
	}

	configs, err := m.readConfigList()
	if err != nil {
		return fmt.Errorf("chatgateway: read config list: %w", err)
	}
	filtered := configs[:0]
	for _, c := range configs {
		if c.GatewayType != gatewayType {
			filtered = append(filtered, c)
		}
	}
	if err := m.writeConfigList(filtered); err != nil {
		return fmt.Errorf("chatgateway: write config list: %w", err)
	}
	if err := m.Config.DeleteSecret(platformSecretKey(gatewayType)); err != nil {
		return fmt.Errorf("chatgateway: delete secret for %q: %w", gatewayType, err)
	}
	return nil
}

// Status implements spec.md §4.3's status operation: running instances
// unioned with configured-but-stopped entries, sorted by type.
func (m *GatewayManager) Status() ([]StatusEntry, error) {
	m.mu.Lock()
	running := make(map[string]*GatewayInstance, len(m.instances))
	for k, v := range m.instances {
		running[k] = v
	}
	m.mu.Unlock()

	configs, err := m.readConfigList()
	if err != nil {
		return nil, fmt.Errorf("chatgateway: read config list: %w", err)
	}

	seen := make(map[string]bool, len(configs))
	var out []StatusEntry
	for _, cfg := range configs {
		seen[cfg.GatewayType] = true
		entry := StatusEntry{GatewayType: cfg.GatewayType, MaxSessions: cfg.MaxSessions}
		if inst, ok := running[cfg.GatewayType]; ok {
			entry.Running = true
			if n, err := m.Pairing.ListPairedUsers(cfg.GatewayType); err == nil {
				entry.PairedUsers = len(n)
			}
			_ = inst
		}
		out = append(out, entry)
	}
	for gatewayType, inst := range running {
		if seen[gatewayType] {
			continue
		}
		entry := StatusEntry{GatewayType: gatewayType, Running: true, MaxSessions: inst.Config.MaxSessions}
		if n, err := m.Pairing.ListPairedUsers(gatewayType); err == nil {
			entry.PairedUsers = len(n)
		}
		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].GatewayType < out[j].GatewayType })
	return out, nil
}

// UnpairUser implements spec.md §4.3's unpair_user operation.
func (m *GatewayManager) UnpairUser(platform, userID string) (bool, error) {
	user := store.PlatformUser{Platform: platform, UserID: userID}
	state, err := m.Pairing.Get(user)
	if err != nil {
		return false, fmt.Errorf("chatgateway: get pairing state: %w", err)
	}
	if state.State != "paired" {
		return false, nil
	}
	if err := m.Pairing.Remove(user); err != nil {
		return false, fmt.Errorf("chatgateway: remove pairing: %w", err)
	}
	return true, nil
}

// GeneratePairingCode implements spec.md §4.3's generate_pairing_code
// operation.
func (m *GatewayManager) GeneratePairingCode(gatewayType string) (code string, expiresAt int64, err error) {
	code, err = m.Pairing.RequestPairing("", gatewayType, "", "manual")
	if err != nil {
		return "", 0, fmt.Errorf("chatgateway: generate pairing code: %w", err)
	}
	return code, time.Now().Add(store.PendingCodeTTL).Unix(), nil
}

// CheckAutoStart implements spec.md §4.3's check_auto_start operation:
// load saved configs at process start and start each, logging but
// continuing past individual failures.
func (m *GatewayManager) CheckAutoStart(ctx context.Context) {
	configs, err := m.readConfigList()
	if err != nil {
		slog.Error("chatgateway: auto-start: read config list failed", "error", err)
		return
	}
	for _, cfg := range configs {
		full, ok, err := m.loadConfig(cfg.GatewayType)
		if err != nil || !ok {
			slog.Error("chatgateway: auto-start: load config failed", "gateway", cfg.GatewayType, "error", err)
			continue
		}
		if err := m.Start(ctx, cfg.GatewayType, full.PlatformConfig, full.MaxSessions); err != nil {
			slog.Error("chatgateway: auto-start failed", "gateway", cfg.GatewayType, "error", err)
		}
	}
}

// persistedConfig is the non-secret portion of GatewayConfig stored in the
// gateway_configs parameter list.
type persistedConfig struct {
	GatewayType string `json:"gateway_type"`
	MaxSessions int    `json:"max_sessions"`
}

func (m *GatewayManager) persistConfig(gatewayType string, platformConfig json.RawMessage, maxSessions int) error {
	configs, err := m.readConfigList()
	if err != nil {
		return err
	}
	replaced := false
	for i := range configs {
		if configs[i].GatewayType == gatewayType {
			configs[i].MaxSessions = maxSessions
			replaced = true
			break
		}
	}
	if !replaced {
		configs = append(configs, persistedConfig{GatewayType: gatewayType, MaxSessions: maxSessions})
	}
	if err := m.writeConfigList(configs); err != nil {
		return err
	}
	return m.Config.SetSecret(platformSecretKey(gatewayType), string(platformConfig))
}

func (m *GatewayManager) loadConfig(gatewayType string) (GatewayConfig, bool, error) {
	configs, err := m.readConfigList()
	if err != nil {
		return GatewayConfig{}, false, err
	}
	var found *persistedConfig
	for i := range configs {
		if configs[i].GatewayType == gatewayType {
			found = &configs[i]
			break
		}
	}
	if found == nil {
		return GatewayConfig{}, false, nil
	}

	secret, ok, err := m.Config.GetSecret(platformSecretKey(gatewayType))
	if err != nil {
		return GatewayConfig{}, false, err
	}
	if !ok {
		secret = "{}"
	}
	return GatewayConfig{
		GatewayType:    gatewayType,
		PlatformConfig: json.RawMessage(secret),
		MaxSessions:    found.MaxSessions,
	}, true, nil
}

func (m *GatewayManager) readConfigList() ([]persistedConfig, error) {
	raw, ok, err := m.Config.GetParam(gatewayConfigsParam)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var configs []persistedConfig
	if err := json.Unmarshal([]byte(raw), &configs); err != nil {
		return nil, fmt.Errorf("chatgateway: unmarshal gateway_configs: %w", err)
	}
	return configs, nil
}

func (m *GatewayManager) writeConfigList(configs []persistedConfig) error {
	data, err := json.Marshal(configs)
	if err != nil {
		return err
	}
	return m.Config.SetParam(gatewayConfigsParam, string(data))
}
