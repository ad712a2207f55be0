// Package adapter holds the types shared by the concrete streaming
// adapters (adapter/claude, adapter/opencode) that translate a backend
// CLI's stdout/stderr protocol into uniform missionrt.AgentEvent values.
// The adapter boundary is the sole coupling point between the two
// divergent wire protocols and the rest of the runtime.
package adapter

import (
	"github.com/google/uuid"
)

// Request carries everything a turn needs to hand to an adapter. Package
// turn assembles Message as
// history_context + "User:\n" + message + deliverables + instructions
// before constructing a Request, so adapters never see raw conversation
// history — only the final composed prompt for this turn.
type Request struct {
	Mission   uuid.UUID
	Message   string
	Model     string
	AgentRole string

	// SessionID is used by the Claude adapter as --session-id. If empty,
	// the adapter generates one.
	SessionID string

	// Env is the full environment (including any resolved API key) the
	// child process is spawned with.
	Env []string

	// DataRoot is the OpenCode adapter's storage-fallback search root:
	// "<workspace-root>/root/.local/share" for Chroot, otherwise
	// $XDG_DATA_HOME or $HOME/.local/share.
	DataRoot string
}
