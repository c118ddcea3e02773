package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nextlevelbuilder/chatgate/internal/chatgateway"
	"github.com/nextlevelbuilder/chatgate/internal/chatgateway/demoagent"
	"github.com/nextlevelbuilder/chatgate/internal/chatgateway/telegramadapter"
	"github.com/nextlevelbuilder/chatgate/internal/config"
	"github.com/nextlevelbuilder/chatgate/internal/pairing"
	"github.com/nextlevelbuilder/chatgate/internal/store/file"
)

// runGateway wires the C1 chat gateway core to a concrete agent manager
// (C2) and the configured platform adapters, then blocks until interrupted.
func runGateway() {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatgate: load config: %s\n", err)
		os.Exit(1)
	}
	gatewayDir := filepath.Join(cfg.WorkspacePath(), "gateway")
	if err := os.MkdirAll(gatewayDir, 0o755); err != nil {
		slog.Error("chatgate: create gateway dir", "error", err)
		os.Exit(1)
	}

	pairingSvc := pairing.NewService(filepath.Join(gatewayDir, "pairing.json"))
	pairingStore := file.NewFilePairingStore(pairingSvc)
	configStore := file.NewGatewayConfigStore(filepath.Join(gatewayDir, "config"))

	binary := cfg.ChatGateway.Binary
	if binary == "" {
		binary = "goose"
	}
	agents := demoagent.NewManager(filepath.Join(gatewayDir, "sessions"), binary)

	manager := chatgateway.NewGatewayManager(configStore, pairingStore, agents, adapterFactory, cfg.WorkspacePath())
	manager.ModelConfig = cfg.ChatGateway.Model

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager.CheckAutoStart(ctx)

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		platformConfig, err := json.Marshal(telegramadapter.PlatformConfig{
			Token: cfg.Channels.Telegram.Token,
			Proxy: cfg.Channels.Telegram.Proxy,
		})
		if err != nil {
			slog.Error("chatgate: marshal telegram platform config", "error", err)
		} else if err := manager.Start(ctx, "telegram", platformConfig, cfg.ChatGateway.DefaultMaxSessions); err != nil {
			slog.Error("chatgate: start telegram gateway", "error", err)
		}
	}

	slog.Info("chatgate gateway running")
	<-ctx.Done()
	slog.Info("chatgate gateway shutting down")
}

// adapterFactory builds a chatgateway.PlatformAdapter for a gateway type
// from its opaque platform_config payload. Only "telegram" is wired by
// default; additional gateway types register here as their adapters land.
func adapterFactory(gatewayType string, platformConfig json.RawMessage) (chatgateway.PlatformAdapter, error) {
	switch gatewayType {
	case "telegram":
		return telegramadapter.New(platformConfig)
	default:
		return nil, fmt.Errorf("chatgate: no adapter registered for gateway type %q", gatewayType)
	}
}
