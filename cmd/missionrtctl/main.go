// Command missionrtctl is a demonstration CLI that submits one mission
// against a Host workspace and streams its AgentEvents to stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/openagent/missionrt"
	"github.com/openagent/missionrt/internal/config"
	"github.com/openagent/missionrt/internal/obsmetrics"
	"github.com/openagent/missionrt/mcpconfig"
	"github.com/openagent/missionrt/mission"
	"github.com/openagent/missionrt/workspace"
	"github.com/openagent/missionrt/wsprep"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	backendFlag     string
	workspaceFlag   string
	modelFlag       string
	agentFlag       string
	providersFlag   string
	autoInstallFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "missionrtctl [message]",
	Short: "Run one mission turn against a Claude Code or OpenCode backend",
	Long: `missionrtctl submits a single mission message to the mission runtime
and streams its events to stdout until the turn completes.

Examples:
  missionrtctl "summarize the README"
  missionrtctl --backend opencode --workspace ./work "refactor main.go"`,
	Args: cobra.MinimumNArgs(1),
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&backendFlag, "backend", "opencode", "Backend id: claudecode or opencode")
	rootCmd.Flags().StringVar(&workspaceFlag, "workspace", ".", "Host workspace directory")
	rootCmd.Flags().StringVar(&modelFlag, "model", "", "Model override")
	rootCmd.Flags().StringVar(&agentFlag, "agent", "", "Agent-role override")
	rootCmd.Flags().StringVar(&providersFlag, "providers", "", "Path to a providers/backend-config JSON file")
	rootCmd.Flags().BoolVar(&autoInstallFlag, "auto-install", true, "Auto-install the backend CLI if missing")
	obsmetrics.MustRegister(prometheus.DefaultRegisterer)
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

func run(cmd *cobra.Command, args []string) error {
	message := args[0]
	for _, a := range args[1:] {
		message += " " + a
	}

	providers, err := config.Load(providersFlag)
	if err != nil {
		return fmt.Errorf("loading providers file: %w", err)
	}

	ws := workspace.New(workspaceFlag, workspace.Host)
	ex := workspace.NewExec(ws)
	missionID := uuid.New()

	registry := mcpconfig.Static{}
	cwd, err := wsprep.PrepareMissionWorkspace(cmd.Context(), ws, registry, missionID, backendFlag)
	if err != nil {
		return fmt.Errorf("preparing workspace: %w", err)
	}

	sink := missionrt.NewEventSink()
	events, unsubscribe := sink.Subscribe()
	defer unsubscribe()
	go printEvents(events)

	runner := mission.New(missionID, ws.ID, backendFlag, agentFlag)
	runner.SetInitialMessage(message)
	runner.QueueMessage(uuid.New(), message, "")

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if !runner.StartNext(mission.StartNextParams{
		Ctx:         ctx,
		Ex:          ex,
		Workspace:   ws,
		Cwd:         cwd,
		Model:       modelFlag,
		Providers:   providers,
		Sink:        sink,
		Env:         os.Environ(),
		AutoInstall: autoInstallFlag,
	}) {
		return fmt.Errorf("failed to start turn")
	}

	for {
		if outcome, done := runner.PollCompletion(); done {
			drainEvents(events)
			if !outcome.Result.Success {
				return fmt.Errorf("turn failed: %s", outcome.Result.Output)
			}
			fmt.Println(outcome.Result.Output)
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func printEvents(events <-chan missionrt.AgentEvent) {
	for ev := range events {
		switch ev.Kind {
		case missionrt.EventThinking:
			if ev.Content != "" {
				fmt.Fprintf(os.Stderr, "[thinking] %s\n", ev.Content)
			}
		case missionrt.EventToolCall:
			fmt.Fprintf(os.Stderr, "[tool_call] %s(%s)\n", ev.Name, ev.CallID)
		case missionrt.EventToolResult:
			fmt.Fprintf(os.Stderr, "[tool_result] %s(%s)\n", ev.Name, ev.CallID)
		case missionrt.EventError:
			fmt.Fprintf(os.Stderr, "[error] %s\n", ev.Content)
		}
	}
}

// drainEvents gives the printer goroutine a moment to print any events
// still buffered before the process prints its result and exits.
func drainEvents(events <-chan missionrt.AgentEvent) {
	time.Sleep(20 * time.Millisecond)
	_ = events
}
