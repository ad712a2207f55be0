// Package turn is the backend-neutral turn executor: it assembles the
// outbound prompt from conversation history, the current message, and
// deliverable/multi-step instructions, resolves backend-specific
// credentials and CLI runners, and dispatches to the matching streaming
// adapter.
package turn

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/openagent/missionrt"
	"github.com/openagent/missionrt/adapter"
	"github.com/openagent/missionrt/adapter/claude"
	"github.com/openagent/missionrt/adapter/opencode"
	"github.com/openagent/missionrt/bootstrap"
	"github.com/openagent/missionrt/deliverable"
	"github.com/openagent/missionrt/internal/config"
	"github.com/openagent/missionrt/internal/obslog"
	"github.com/openagent/missionrt/workspace"
)

const (
	backendClaudeCode = "claudecode"
	backendOpenCode   = "opencode"

	defaultMaxHistoryChars = 16000
	oauthTokenPrefix       = "sk-ant-oat"
)

// HistoryEntry is one turn of recorded conversation.
type HistoryEntry struct {
	Role    string // "user" | "assistant"
	Content string
}

// SecretsStore is the external collaborator consulted for a backend API
// key when the providers file does not supply one; it is checked before
// the environment. The core only ever reads from it.
type SecretsStore interface {
	Get(ctx context.Context, backend, key string) (string, bool)
}

// Params bundles everything one turn needs.
type Params struct {
	Mission   uuid.UUID
	Backend   string // "claudecode" | "opencode"
	Workspace workspace.Workspace
	Cwd       string
	Model     string
	AgentRole string

	Message string
	History []HistoryEntry

	Providers *config.Providers
	Secrets   SecretsStore
	Sink      *missionrt.EventSink

	// MaxHistoryChars bounds the assembled history-context string; 0 uses
	// defaultMaxHistoryChars.
	MaxHistoryChars int

	// Env is the base process environment; the executor appends any
	// resolved credentials on top of it.
	Env []string

	// AutoInstall gates CLI Bootstrap's install attempts.
	AutoInstall bool
}

// Execute builds the prompt, ensures the backend CLI is present, resolves
// credentials, and runs the turn to completion (or cancellation).
func Execute(ctx context.Context, ex workspace.Exec, p Params) missionrt.AgentResult {
	log := obslog.WithMission(p.Mission)
	message := buildPrompt(p)

	switch p.Backend {
	case backendClaudeCode:
		return executeClaudeCode(ctx, ex, p, message)
	case backendOpenCode:
		return executeOpenCode(ctx, ex, p, message)
	default:
		log.Error().Str("backend", p.Backend).Msg("unsupported backend")
		return missionrt.Failure(fmt.Sprintf("unsupported backend %q", p.Backend), missionrt.TerminalLlmError)
	}
}

// buildPrompt assembles history_context + "User:\n" + message + deliverables
// + instructions, in that order.
func buildPrompt(p Params) string {
	budget := p.MaxHistoryChars
	if budget <= 0 {
		budget = defaultMaxHistoryChars
	}
	historyCtx := buildHistoryContext(p.History, budget)

	set := deliverable.Extract(p.Message)
	var b strings.Builder
	b.WriteString(historyCtx)
	b.WriteString("User:\n")
	b.WriteString(p.Message)

	if len(set.Paths) > 0 {
		b.WriteString("\n\nREQUIRED DELIVERABLES:\n")
		for _, path := range set.Paths {
			b.WriteString("- ")
			b.WriteString(path)
			b.WriteString("\n")
		}
	}

	if isMultiStep(set, p.Message) {
		b.WriteString("\n\nThis task requires multiple steps. Do not stop after a single tool call; continue until the task is fully complete.\n")
	}
	return b.String()
}

// isMultiStep reports whether the deliverable set or message content
// signals a task that needs more than one tool call.
func isMultiStep(set deliverable.Set, message string) bool {
	if set.IsResearchTask || set.RequiresReport {
		return true
	}
	return strings.Contains(message, "1.") || strings.Contains(message, "- ") || strings.Contains(message, "then")
}

// buildHistoryContext walks history newest-first, accumulating
// "ROLE:\ncontent\n" entries until adding one more would overflow
// maxChars, then reverses the kept entries so the oldest retained turn
// renders first but is also the one nearest the budget boundary.
func buildHistoryContext(history []HistoryEntry, maxChars int) string {
	var kept []string
	total := 0
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		rendered := strings.ToUpper(entry.Role) + ":\n" + entry.Content + "\n"
		if total+len(rendered) > maxChars {
			break
		}
		kept = append(kept, rendered)
		total += len(rendered)
	}
	var b strings.Builder
	for i := len(kept) - 1; i >= 0; i-- {
		b.WriteString(kept[i])
	}
	return b.String()
}

func executeClaudeCode(ctx context.Context, ex workspace.Exec, p Params, message string) missionrt.AgentResult {
	cliPath := ""
	if p.Providers != nil {
		cliPath = p.Providers.ClaudeCodeCLIPath()
	}
	autoInstall := p.AutoInstall && config.EnvBool(bootstrap.EnvAutoInstallClaudeCode, true)
	binary, err := bootstrap.EnsureClaudeCodeCLI(ctx, ex, p.Cwd, cliPath, p.Env, autoInstall)
	if err != nil {
		return missionrt.Failure(err.Error(), missionrt.TerminalLlmError)
	}

	env := append([]string{}, p.Env...)
	if key, envVar, ok := resolveClaudeAPIKey(ctx, p); ok {
		env = append(env, envVar+"="+key)
	}

	req := adapter.Request{
		Mission:   p.Mission,
		Message:   message,
		Model:     p.Model,
		AgentRole: p.AgentRole,
		SessionID: p.Mission.String(),
		Env:       env,
	}
	return claude.Run(ctx, ex, p.Cwd, binary, req, p.Sink)
}

// resolveClaudeAPIKey resolves the API key in priority order: the
// providers file's claudecode record, the secrets store, then the
// ANTHROPIC_API_KEY environment variable already present in p.Env. Keys
// beginning with "sk-ant-oat" are passed as CLAUDE_CODE_OAUTH_TOKEN;
// otherwise as ANTHROPIC_API_KEY.
func resolveClaudeAPIKey(ctx context.Context, p Params) (key, envVar string, ok bool) {
	if p.Providers != nil {
		if v := p.Providers.ClaudeCodeAPIKey(); v != "" {
			return v, apiKeyEnvVar(v), true
		}
	}
	if p.Secrets != nil {
		if v, found := p.Secrets.Get(ctx, backendClaudeCode, "api_key"); found && v != "" {
			return v, apiKeyEnvVar(v), true
		}
	}
	for _, kv := range p.Env {
		if strings.HasPrefix(kv, "ANTHROPIC_API_KEY=") {
			v := strings.TrimPrefix(kv, "ANTHROPIC_API_KEY=")
			return v, apiKeyEnvVar(v), true
		}
	}
	return "", "", false
}

func apiKeyEnvVar(key string) string {
	if strings.HasPrefix(key, oauthTokenPrefix) {
		return "CLAUDE_CODE_OAUTH_TOKEN"
	}
	return "ANTHROPIC_API_KEY"
}

func executeOpenCode(ctx context.Context, ex workspace.Exec, p Params, message string) missionrt.AgentResult {
	cliPath := ""
	if p.Providers != nil {
		cliPath = p.Providers.OpenCodeCLIPath()
	}
	autoInstall := p.AutoInstall && config.EnvBool(bootstrap.EnvAutoInstallOpenCode, true)
	runner, err := bootstrap.EnsureOpenCodeCLI(ctx, ex, p.Cwd, cliPath, p.Env, autoInstall)
	if err != nil {
		return missionrt.Failure(err.Error(), missionrt.TerminalLlmError)
	}

	env := append([]string{}, p.Env...)
	env = append(env, "NO_COLOR=1", "FORCE_COLOR=0", "OPENCODE_NON_INTERACTIVE=true", "OPENCODE_RUN=true")

	// Parse "provider/model" per the original; a bare model with no slash
	// is passed as OPENCODE_MODEL alone.
	if p.Model != "" {
		if provider, modelID, ok := strings.Cut(p.Model, "/"); ok {
			env = append(env, "OPENCODE_PROVIDER="+provider, "OPENCODE_MODEL="+modelID)
		} else {
			env = append(env, "OPENCODE_MODEL="+p.Model)
		}
	}

	// Point OpenCode at the workspace-local config this mission's
	// wsprep.PrepareMissionWorkspace wrote, rewritten for Chroot workspaces.
	configDir := p.Workspace.PathForEnv(filepath.Join(p.Cwd, ".opencode"))
	configPath := p.Workspace.PathForEnv(filepath.Join(p.Cwd, "opencode.json"))
	env = append(env, "OPENCODE_CONFIG_DIR="+configDir, "OPENCODE_CONFIG="+configPath)

	if p.Providers != nil && p.Providers.OpenCodePermissive() {
		env = append(env, "OPENCODE_PERMISSIVE=true")
	}

	req := adapter.Request{
		Mission:   p.Mission,
		Message:   message,
		Model:     p.Model,
		AgentRole: p.AgentRole,
		Env:       env,
		DataRoot:  opencode.ResolveDataRoot(p.Workspace),
	}
	return opencode.Run(ctx, ex, p.Cwd, opencode.Runner{Program: runner.Program, Prefix: runner.Prefix}, req, p.Sink)
}
