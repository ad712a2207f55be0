// Package config loads the backend-config/providers file the mission
// runtime treats as read-only, external, operator-edited state.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/openagent/missionrt/internal/obslog"
)

// BackendConfig holds per-backend operator overrides.
type BackendConfig struct {
	CLIPath    string `json:"cli_path,omitempty"`
	Permissive bool   `json:"permissive,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
}

// Providers is the on-disk providers/backend-config file shape:
// {"backends": {"claudecode": {...}, "opencode": {...}}}.
type Providers struct {
	Backends map[string]BackendConfig `json:"backends"`
}

// Load reads the providers file at path. A missing file is not an error:
// it is treated as defaults. Callers should re-read on each turn so
// operator edits take effect without a restart.
func Load(path string) (*Providers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			obslog.WithComponent("config").Debug().Str("path", path).Msg("providers file missing, using defaults")
			return &Providers{Backends: map[string]BackendConfig{}}, nil
		}
		return nil, err
	}
	var p Providers
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.Backends == nil {
		p.Backends = map[string]BackendConfig{}
	}
	return &p, nil
}

// ClaudeCodeCLIPath returns the operator-configured Claude Code binary
// path, or "" to fall back to PATH resolution.
func (p *Providers) ClaudeCodeCLIPath() string {
	return p.Backends["claudecode"].CLIPath
}

// OpenCodeCLIPath returns the operator-configured OpenCode binary path, or
// "" to fall back to runner resolution (oh-my-opencode, opencode, bunx, npx).
func (p *Providers) OpenCodeCLIPath() string {
	return p.Backends["opencode"].CLIPath
}

// OpenCodePermissive reports whether the opencode backend is configured to
// run in permissive (auto-approve) mode.
func (p *Providers) OpenCodePermissive() bool {
	return p.Backends["opencode"].Permissive
}

// ClaudeCodeAPIKey returns the operator-configured Anthropic API key from
// the providers file's claudecode record, or "" when unset. This is the
// first-priority source in the Turn Executor's key resolution order.
func (p *Providers) ClaudeCodeAPIKey() string {
	return p.Backends["claudecode"].APIKey
}

// EnvBool parses a boolean environment variable, defaulting to def when
// unset or unparseable. Accepts "1"/"0", "true"/"false", "yes"/"no"
// (case-insensitive).
func EnvBool(name string, def bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		return def
	}
}
