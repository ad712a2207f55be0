// Package wsprep prepares a mission's working directory and writes its
// opencode.json MCP configuration file.
package wsprep

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/openagent/missionrt/mcpconfig"
	"github.com/openagent/missionrt/workspace"
)

const configSchema = "https://opencode.ai/config.json"

// mcpEntry is the on-disk shape of one opencode.json "mcp" map value.
type mcpEntry struct {
	Type        string            `json:"type"`
	Endpoint    string            `json:"endpoint,omitempty"`
	Command     []string          `json:"command,omitempty"`
	Enabled     bool              `json:"enabled"`
	Environment map[string]string `json:"environment,omitempty"`
}

type opencodeConfig struct {
	Schema string              `json:"$schema"`
	MCP    map[string]mcpEntry `json:"mcp"`
}

// MissionWorkspaceDir returns the per-mission working directory path:
// <workspace-root>/workspaces/mission-<8-char-short-id>.
func MissionWorkspaceDir(ws workspace.Workspace, missionID uuid.UUID) string {
	short := strings.ReplaceAll(missionID.String(), "-", "")[:8]
	return filepath.Join(ws.Path, "workspaces", "mission-"+short)
}

// PrepareMissionWorkspace creates the mission's working directory (with
// output/ and temp/ subdirectories), snapshots the MCP registry for
// backendID, and writes opencode.json. Idempotent: repeated calls
// overwrite the config file. Returns the prepared directory path.
func PrepareMissionWorkspace(ctx context.Context, ws workspace.Workspace, registry mcpconfig.Registry, missionID uuid.UUID, backendID string) (string, error) {
	dir := MissionWorkspaceDir(ws, missionID)
	for _, sub := range []string{"", "output", "temp"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return "", fmt.Errorf("wsprep: mkdir %s: %w", sub, err)
		}
	}

	entries, err := registry.Snapshot(ctx, backendID)
	if err != nil {
		return "", fmt.Errorf("wsprep: mcp registry snapshot: %w", err)
	}

	cfg := opencodeConfig{Schema: configSchema, MCP: map[string]mcpEntry{}}
	used := map[string]struct{}{}
	for _, e := range entries {
		if !e.Enabled {
			continue
		}
		key := uniqueKey(sanitizeKey(e.Name), used)
		cfg.MCP[key] = opencodeEntryFromMCP(e, ws.PathForEnv(dir))
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("wsprep: marshal opencode.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "opencode.json"), data, 0o644); err != nil {
		return "", fmt.Errorf("wsprep: write opencode.json: %w", err)
	}
	return dir, nil
}

// opencodeEntryFromMCP converts a registry entry into its opencode.json
// shape. Stdio entries get OPEN_AGENT_WORKSPACE injected into their
// environment so the MCP server can locate the mission's working directory.
func opencodeEntryFromMCP(e mcpconfig.Entry, workspacePathForEnv string) mcpEntry {
	if e.Transport == mcpconfig.TransportHTTP {
		return mcpEntry{Type: "http", Endpoint: e.Endpoint, Enabled: e.Enabled}
	}
	env := map[string]string{}
	for k, v := range e.Env {
		env[k] = v
	}
	env["OPEN_AGENT_WORKSPACE"] = workspacePathForEnv
	command := append([]string{e.Command}, e.Args...)
	return mcpEntry{Type: "local", Command: command, Enabled: e.Enabled, Environment: env}
}

// sanitizeKey lowercases name, keeps [a-z0-9_], and maps '-' to '_'. Any
// other rune is dropped.
func sanitizeKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "mcp"
	}
	return b.String()
}

// uniqueKey disambiguates base against the already-used set by appending
// _2, _3, … as needed, then reserves the chosen key in used.
func uniqueKey(base string, used map[string]struct{}) string {
	key := base
	for n := 2; ; n++ {
		if _, taken := used[key]; !taken {
			used[key] = struct{}{}
			return key
		}
		key = fmt.Sprintf("%s_%d", base, n)
	}
}
