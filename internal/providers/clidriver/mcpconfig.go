package clidriver

import (
	"encoding/json"
	"fmt"
	"os"
)

// MCPExtension is one connected extension entry written into the child's
// --mcp-config file.
type MCPExtension struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// MCPConfig is a temp file listing connected extensions, passed to the
// child via --mcp-config. Created 0600 and removed by Close.
type MCPConfig struct {
	Path string
}

type mcpConfigFile struct {
	MCPServers map[string]MCPExtension `json:"mcpServers"`
}

// WriteMCPConfig serialises extensions into a fresh 0600 temp file.
func WriteMCPConfig(extensions []MCPExtension) (*MCPConfig, error) {
	if len(extensions) == 0 {
		return nil, nil
	}

	servers := make(map[string]MCPExtension, len(extensions))
	for _, ext := range extensions {
		servers[ext.Name] = ext
	}

	data, err := json.MarshalIndent(mcpConfigFile{MCPServers: servers}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("clidriver: marshal mcp config: %w", err)
	}

	f, err := os.CreateTemp("", "chatgate-mcp-*.json")
	if err != nil {
		return nil, fmt.Errorf("clidriver: create mcp config: %w", err)
	}
	defer f.Close()

	if err := f.Chmod(0600); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("clidriver: chmod mcp config: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("clidriver: write mcp config: %w", err)
	}

	return &MCPConfig{Path: f.Name()}, nil
}

// Close removes the temp file.
func (c *MCPConfig) Close() error {
	if c == nil || c.Path == "" {
		return nil
	}
	return os.Remove(c.Path)
}
