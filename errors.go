package missionrt

import (
	"errors"
	"fmt"
)

// AgentErrorKind classifies why a turn failed.
type AgentErrorKind string

const (
	// KindCancelled: cooperative token tripped. Not retried.
	KindCancelled AgentErrorKind = "cancelled"

	// KindLlmError: spawn failure, missing/uninstallable CLI, exhausted
	// parse with an explicit error result, non-zero exit with empty
	// output, or an unsupported backend id.
	KindLlmError AgentErrorKind = "llm_error"

	// KindPartialParse: a single malformed line was logged and skipped;
	// never fatal on its own.
	KindPartialParse AgentErrorKind = "partial_parse"

	// KindStorageFallbackMiss: OpenCode produced only banner output and no
	// session id to recover from storage.
	KindStorageFallbackMiss AgentErrorKind = "storage_fallback_miss"

	// KindConfigMissing: backend config file absent; treated as defaults.
	KindConfigMissing AgentErrorKind = "config_missing"

	// KindInstallFailed: auto-install attempt exited non-zero.
	KindInstallFailed AgentErrorKind = "install_failed"
)

// AgentError wraps a classified failure with its underlying cause.
type AgentError struct {
	Kind AgentErrorKind
	Msg  string
	Err  error
}

func (e *AgentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("missionrt: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("missionrt: %s: %s", e.Kind, e.Msg)
}

func (e *AgentError) Unwrap() error { return e.Err }

// NewAgentError builds an AgentError of the given kind.
func NewAgentError(kind AgentErrorKind, msg string, cause error) *AgentError {
	return &AgentError{Kind: kind, Msg: msg, Err: cause}
}

// Sentinel errors for mission-runner and workspace operations.
var (
	// ErrMissionRunning indicates start_next was called while a turn is
	// already active for the mission.
	ErrMissionRunning = errors.New("missionrt: mission already running")

	// ErrMissionFinished indicates start_next was called after explicit
	// completion; further turns are refused.
	ErrMissionFinished = errors.New("missionrt: mission already finished")

	// ErrNoActiveTurn indicates cancel() was called with no cancellation
	// token present (no turn in flight).
	ErrNoActiveTurn = errors.New("missionrt: no active turn to cancel")

	// ErrUnsupportedBackend indicates a mission named a backend id the
	// Turn Executor has no adapter for.
	ErrUnsupportedBackend = errors.New("missionrt: unsupported backend")

	// ErrCLIUnavailable indicates a backend CLI binary is absent and could
	// not be auto-installed.
	ErrCLIUnavailable = errors.New("missionrt: backend CLI unavailable")
)
