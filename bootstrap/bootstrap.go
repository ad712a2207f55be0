// Package bootstrap detects and, when necessary, auto-installs the Claude
// Code and OpenCode CLI binaries inside a workspace. Claude Code is
// installed with npm; for OpenCode it tries curl, then wget, then npm, as
// install fetchers.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/openagent/missionrt"
	"github.com/openagent/missionrt/internal/obslog"
	"github.com/openagent/missionrt/workspace"
)

// EnvAutoInstallClaudeCode gates auto-install of the Claude Code CLI.
const EnvAutoInstallClaudeCode = "OPEN_AGENT_AUTO_INSTALL_CLAUDECODE"

// EnvAutoInstallOpenCode gates auto-install of the OpenCode CLI.
const EnvAutoInstallOpenCode = "OPEN_AGENT_AUTO_INSTALL_OPENCODE"

const defaultClaudeCodeBinary = "claude"

// EnsureClaudeCodeCLI probes for the Claude Code CLI in the workspace,
// auto-installing it via npm if absent and allowed, and returns the binary
// name/path to invoke it with.
func EnsureClaudeCodeCLI(ctx context.Context, ex workspace.Exec, cwd, cliPathOverride string, env []string, autoInstall bool) (string, error) {
	log := obslog.WithComponent("bootstrap.claudecode")
	binary := defaultClaudeCodeBinary
	if cliPathOverride != "" {
		binary = cliPathOverride
	}

	if commandAvailable(ctx, ex, cwd, binary, env) {
		return binary, nil
	}
	if !autoInstall {
		return "", missionrt.NewAgentError(missionrt.KindLlmError,
			fmt.Sprintf("claude code CLI %q not found and auto-install disabled", binary), missionrt.ErrCLIUnavailable)
	}

	log.Info().Msg("installing claude code CLI via npm")
	code, stdout, stderr, err := ex.Output(ctx, cwd, "npm", []string{"install", "-g", "@anthropic-ai/claude-code"}, env)
	if err != nil || code != 0 {
		return "", installFailure("claude code", code, stdout, stderr, err)
	}

	if !commandAvailable(ctx, ex, cwd, binary, env) {
		return "", missionrt.NewAgentError(missionrt.KindInstallFailed,
			"claude code CLI still not found after install", nil)
	}
	return binary, nil
}

// OpenCodeRunner is the program and leading argv prefix used to invoke
// OpenCode, resolved in the order: configured override, oh-my-opencode on
// PATH, opencode on PATH, bunx, npx.
type OpenCodeRunner struct {
	Program string
	Prefix  []string
}

// EnsureOpenCodeCLI probes for an OpenCode-capable runner, auto-installing
// via curl|bash, wget|bash, or npm (in that order) if none is found and
// allowed, then re-resolves the runner. cliPathOverride, when non-empty, is
// the operator-configured OpenCode binary path from the providers file and
// is tried before the oh-my-opencode/opencode/bunx/npx resolution order.
func EnsureOpenCodeCLI(ctx context.Context, ex workspace.Exec, cwd, cliPathOverride string, env []string, autoInstall bool) (OpenCodeRunner, error) {
	log := obslog.WithComponent("bootstrap.opencode")

	if r, ok := resolveOpenCodeRunner(ctx, ex, cwd, cliPathOverride, env); ok {
		return r, nil
	}
	if !autoInstall {
		return OpenCodeRunner{}, missionrt.NewAgentError(missionrt.KindLlmError,
			"opencode CLI not found and auto-install disabled", missionrt.ErrCLIUnavailable)
	}

	log.Info().Msg("installing opencode CLI")
	if err := installOpenCode(ctx, ex, cwd, env); err != nil {
		return OpenCodeRunner{}, err
	}

	if r, ok := resolveOpenCodeRunner(ctx, ex, cwd, cliPathOverride, env); ok {
		return r, nil
	}
	return OpenCodeRunner{}, missionrt.NewAgentError(missionrt.KindInstallFailed,
		"opencode CLI still not found after install", nil)
}

func resolveOpenCodeRunner(ctx context.Context, ex workspace.Exec, cwd, cliPathOverride string, env []string) (OpenCodeRunner, bool) {
	if cliPathOverride != "" && commandAvailable(ctx, ex, cwd, cliPathOverride, env) {
		return OpenCodeRunner{Program: cliPathOverride}, true
	}
	if commandAvailable(ctx, ex, cwd, "oh-my-opencode", env) {
		return OpenCodeRunner{Program: "oh-my-opencode"}, true
	}
	if commandAvailable(ctx, ex, cwd, "opencode", env) {
		return OpenCodeRunner{Program: "opencode"}, true
	}
	if commandAvailable(ctx, ex, cwd, "bunx", env) {
		return OpenCodeRunner{Program: "bunx", Prefix: []string{"oh-my-opencode"}}, true
	}
	if commandAvailable(ctx, ex, cwd, "npx", env) {
		return OpenCodeRunner{Program: "npx", Prefix: []string{"oh-my-opencode"}}, true
	}
	return OpenCodeRunner{}, false
}

// installOpenCode tries, in order, a curl-piped installer, a wget-piped
// installer, and finally npm global install — the supplemented ordering
// from the original Rust implementation (SPEC_FULL.md §12). Each command
// is a best-effort attempt; the first that exits zero wins. The curl/wget
// installers place the binary under $HOME/.opencode/bin rather than on
// PATH, so a successful run is followed by a best-effort copy into
// /usr/local/bin.
func installOpenCode(ctx context.Context, ex workspace.Exec, cwd string, env []string) error {
	attempts := []struct {
		program     string
		args        []string
		copyFromHOC bool
	}{
		{"sh", []string{"-c", "curl -fsSL https://opencode.ai/install | bash"}, true},
		{"sh", []string{"-c", "wget -qO- https://opencode.ai/install | bash"}, true},
		{"npm", []string{"install", "-g", "oh-my-opencode"}, false},
	}

	var lastCode int
	var lastOut, lastErr string
	var lastErrVal error
	for _, a := range attempts {
		code, stdout, stderr, err := ex.Output(ctx, cwd, a.program, a.args, env)
		if err == nil && code == 0 {
			if a.copyFromHOC {
				copyOpenCodeHomeBinToUsrLocalBin(ctx, ex, cwd, env)
			}
			return nil
		}
		lastCode, lastOut, lastErr, lastErrVal = code, stdout, stderr, err
	}
	return installFailure("opencode", lastCode, lastOut, lastErr, lastErrVal)
}

// copyOpenCodeHomeBinToUsrLocalBin copies $HOME/.opencode/bin/opencode into
// /usr/local/bin when the curl/wget installer placed it there instead of on
// PATH. Best-effort: failures are logged but never abort the bootstrap,
// since the subsequent re-probe is the authoritative check.
func copyOpenCodeHomeBinToUsrLocalBin(ctx context.Context, ex workspace.Exec, cwd string, env []string) {
	const script = `if [ -f "$HOME/.opencode/bin/opencode" ] && [ ! -f /usr/local/bin/opencode ]; then cp "$HOME/.opencode/bin/opencode" /usr/local/bin/opencode && chmod +x /usr/local/bin/opencode; fi`
	if code, _, stderr, err := ex.Output(ctx, cwd, "sh", []string{"-c", script}, env); err != nil || code != 0 {
		obslog.WithComponent("bootstrap.opencode").Debug().
			Str("stderr", stderr).Msg("copy of $HOME/.opencode/bin/opencode to /usr/local/bin failed (non-fatal)")
	}
}

// commandAvailable probes for binary via "command -v", matching the
// original's command_available for both Host and Chroot workspaces — the
// wrapping into systemd-nspawn happens transparently inside ex.Output.
func commandAvailable(ctx context.Context, ex workspace.Exec, cwd, binary string, env []string) bool {
	code, _, _, err := ex.Output(ctx, cwd, "sh", []string{"-c", "command -v " + binary}, env)
	return err == nil && code == 0
}

// installFailure builds a KindInstallFailed AgentError from trimmed
// stdout/stderr.
func installFailure(what string, code int, stdout, stderr string, cause error) error {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = strings.TrimSpace(stdout)
	}
	return missionrt.NewAgentError(missionrt.KindInstallFailed,
		fmt.Sprintf("%s install failed (exit %d): %s", what, code, msg), cause)
}
