// Package opencode is the streaming adapter for the OpenCode CLI. Unlike
// Claude Code, OpenCode carries its final assistant text on stdout as
// plain incremental chunks and its tool/session event log on stderr as
// ANSI-colored lines; when stdout is empty or banner-only, a
// storage-fallback pass recovers the assistant text from OpenCode's
// on-disk JSON records.
package opencode

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/openagent/missionrt"
	"github.com/openagent/missionrt/adapter"
	"github.com/openagent/missionrt/internal/obslog"
	"github.com/openagent/missionrt/workspace"
)

// Runner names the program and leading argv prefix used to invoke
// OpenCode, as resolved by package bootstrap (a configured override,
// oh-my-opencode or opencode directly, or oh-my-opencode via bunx/npx).
type Runner struct {
	Program string
	Prefix  []string
}

// Run spawns OpenCode via runner, drives its stdout/stderr protocol to
// completion (or cancellation), falls back to on-disk storage recovery
// when stdout carries no assistant content, and returns the turn's
// AgentResult.
func Run(ctx context.Context, ex workspace.Exec, cwd string, runner Runner, req adapter.Request, sink *missionrt.EventSink) missionrt.AgentResult {
	log := obslog.WithMission(req.Mission)
	cleanupStrayListeners(ctx, ex, cwd, req.Env)

	args := append(append([]string{}, runner.Prefix...), "run")
	if req.AgentRole != "" {
		args = append(args, "--agent", req.AgentRole)
	}
	args = append(args, "--directory", cwd, "--timeout", "0", req.Message)

	child, err := ex.SpawnStreaming(ctx, cwd, runner.Program, args, req.Env)
	if err != nil {
		return missionrt.Failure(fmt.Sprintf("opencode: spawn failed: %v", err), missionrt.TerminalLlmError)
	}
	_ = child.Stdin.Close() // message is a CLI argument, not stdin

	s := newState()
	stdout, stderr := child.Stdout(), child.Stderr()
	for stdout != nil || stderr != nil {
		select {
		case <-ctx.Done():
			child.Stop()
			return missionrt.Failure("opencode: turn cancelled", missionrt.TerminalCancelled)

		case line, ok := <-stdout:
			if !ok {
				stdout = nil
				continue
			}
			if line.Err != nil {
				log.Warn().Err(line.Err).Msg("opencode: stdout read error")
				continue
			}
			s.finalResult.WriteString(line.Text)
			s.finalResult.WriteString("\n")
			sink.Publish(missionrt.NewThinkingEvent(req.Mission, line.Text, false))

		case line, ok := <-stderr:
			if !ok {
				stderr = nil
				continue
			}
			if line.Err != nil {
				log.Warn().Err(line.Err).Msg("opencode: stderr read error")
				continue
			}
			s.handleStderrLine(req.Mission, line.Text, sink)
		}
	}

	waitErr := child.Wait(ctx)
	sink.Publish(missionrt.NewThinkingEvent(req.Mission, "", true))

	stdoutText := s.finalResult.String()
	if needsStorageFallback(stdoutText) {
		recovered, fallbackErr := tryStorageFallback(s.sessionID, req.DataRoot)
		if fallbackErr != nil {
			result := missionrt.Failure(fallbackErr.Error(), missionrt.TerminalLlmError)
			sink.Publish(missionrt.NewAssistantMessageEvent(req.Mission, "", false))
			return result
		}
		stdoutText = recovered
	}

	success := waitErr == nil && child.ExitCode() == 0
	sink.Publish(missionrt.NewAssistantMessageEvent(req.Mission, stdoutText, success))
	if !success {
		return missionrt.Failure(stdoutText, missionrt.TerminalLlmError)
	}
	return missionrt.SuccessResult(stdoutText, 0, "")
}

// tryStorageFallback recovers assistant text from disk, mapping a missing
// session id to KindStorageFallbackMiss: banner-only output with no
// captured session id cannot be recovered.
func tryStorageFallback(sessionID, dataRoot string) (string, error) {
	if sessionID == "" {
		return "", missionrt.NewAgentError(missionrt.KindStorageFallbackMiss,
			"no session id captured from stderr; cannot recover from storage", nil)
	}
	text, err := loadLatestAssistantText(dataRoot, sessionID)
	if err != nil {
		return "", missionrt.NewAgentError(missionrt.KindStorageFallbackMiss, "storage fallback failed", err)
	}
	return text, nil
}

// ResolveDataRoot returns the OpenCode storage search root for a
// workspace: "<workspace-root>/root/.local/share" for Chroot, otherwise
// $XDG_DATA_HOME or $HOME/.local/share.
func ResolveDataRoot(ws workspace.Workspace) string {
	if ws.Type == workspace.Chroot {
		return ws.Path + "/root/.local/share"
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return xdg
	}
	return strings.TrimRight(os.Getenv("HOME"), "/") + "/.local/share"
}

// state is the adapter's per-turn accumulator.
type state struct {
	finalResult  strings.Builder
	lastToolID   string
	lastToolName string
	sessionID    string
	toolSeq      int
}

func newState() *state { return &state{} }

// freshToolID mints a new synthetic tool-call id when no explicit id is
// available from the CLI's event log.
func (s *state) freshToolID() string {
	s.toolSeq++
	return fmt.Sprintf("opencode-tool-%d-%s", s.toolSeq, uuid.NewString()[:8])
}
