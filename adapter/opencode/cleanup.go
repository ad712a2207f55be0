package opencode

import (
	"context"

	"github.com/openagent/missionrt/internal/obslog"
	"github.com/openagent/missionrt/workspace"
)

// listenerPort is the TCP port OpenCode's internal server sometimes leaves
// a stray listener on across turns. Cleanup is best-effort and never
// fails the turn.
const listenerPort = "4096"

// cleanupStrayListeners kills any process still listening on listenerPort
// inside the workspace before spawning a new OpenCode turn.
func cleanupStrayListeners(ctx context.Context, ex workspace.Exec, cwd string, env []string) {
	_, _, _, err := ex.Output(ctx, cwd, "sh", []string{"-c", "fuser -k " + listenerPort + "/tcp 2>/dev/null || true"}, env)
	if err != nil {
		obslog.WithComponent("adapter.opencode").Debug().Err(err).Msg("listener cleanup attempt failed (non-fatal)")
	}
}
