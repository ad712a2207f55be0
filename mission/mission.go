// Package mission implements the per-mission state machine: the message
// queue, conversation history, turn spawning/cancellation, and the health
// supervisor that watches for stalls and missing deliverables. Each turn
// runs on its own goroutine; completion is observed by polling a buffered
// result channel rather than blocking, so a control loop can interleave
// many missions.
package mission

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openagent/missionrt"
	"github.com/openagent/missionrt/deliverable"
	"github.com/openagent/missionrt/internal/config"
	"github.com/openagent/missionrt/internal/obslog"
	"github.com/openagent/missionrt/internal/obsmetrics"
	"github.com/openagent/missionrt/turn"
	"github.com/openagent/missionrt/workspace"
)

const stallThreshold = 60 * time.Second

// RunState is one of the four mission lifecycle states.
type RunState string

const (
	Queued         RunState = "queued"
	Running        RunState = "running"
	WaitingForTool RunState = "waiting_for_tool"
	Finished       RunState = "finished"
)

// HealthKind classifies a CheckHealth result.
type HealthKind string

const (
	Healthy             HealthKind = "healthy"
	Stalled             HealthKind = "stalled"
	MissingDeliverables HealthKind = "missing_deliverables"
	UnexpectedEnd       HealthKind = "unexpected_end"
)

// Health is the Health Supervisor's verdict for one mission.
type Health struct {
	Kind                 HealthKind
	SecondsSinceActivity int64
	LastState            RunState
	Missing              []string
	Reason               string
}

// QueuedMessage is one pending inbound message, with an optional
// per-message agent-role override (e.g. from an "@agent" mention).
type QueuedMessage struct {
	ID      uuid.UUID
	Content string
	Agent   string
}

// Outcome is what PollCompletion returns for a finished turn.
type Outcome struct {
	MessageID uuid.UUID
	Input     string
	Result    missionrt.AgentResult
}

// Runner is the isolated execution context for a single mission. All
// methods are safe for concurrent use.
type Runner struct {
	MissionID     uuid.UUID
	WorkspaceID   uuid.UUID
	BackendID     string
	AgentOverride string

	mu                  sync.Mutex
	state               RunState
	queue               []QueuedMessage
	history             []turn.HistoryEntry
	cancel              context.CancelFunc
	resultCh            chan Outcome
	deliverables        deliverable.Set
	lastActivity        time.Time
	explicitlyCompleted bool
	turnStart           time.Time
}

// New creates a mission runner in state Queued. backendID defaults to
// "opencode" when empty, matching the original's default.
func New(missionID, workspaceID uuid.UUID, backendID, agentOverride string) *Runner {
	if backendID == "" {
		backendID = "opencode"
	}
	obsmetrics.MissionsByState.WithLabelValues(string(Queued)).Inc()
	return &Runner{
		MissionID:     missionID,
		WorkspaceID:   workspaceID,
		BackendID:     backendID,
		AgentOverride: agentOverride,
		state:         Queued,
		lastActivity:  time.Now(),
	}
}

// IsRunning reports whether a turn is currently executing.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isRunningLocked()
}

func (r *Runner) isRunningLocked() bool {
	return r.state == Running || r.state == WaitingForTool
}

// IsFinished reports whether the mission has reached its terminal state.
func (r *Runner) IsFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == Finished
}

// State returns the current run state.
func (r *Runner) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Touch refreshes the last-activity timestamp, called on every completed
// poll and whenever an event is observed downstream.
func (r *Runner) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActivity = time.Now()
}

// SetInitialMessage extracts the mission's expected DeliverableSet from its
// first message.
func (r *Runner) SetInitialMessage(message string) {
	set := deliverable.Extract(message)
	r.mu.Lock()
	r.deliverables = set
	r.mu.Unlock()
	if len(set.Paths) > 0 {
		obslog.WithMission(r.MissionID).Info().
			Strs("paths", set.Paths).
			Msg("mission has expected deliverables")
	}
}

// QueueMessage appends a message to the FIFO.
func (r *Runner) QueueMessage(id uuid.UUID, content, agent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, QueuedMessage{ID: id, Content: content, Agent: agent})
}

// ApplySetStatus records an authoritative SetStatus command delivered over
// the Mission Control channel (§4.11): the agent's complete_mission tool
// call is the one explicit-completion signal the runner trusts
// unconditionally. If no turn is currently running the mission transitions
// to Finished immediately; if a turn is in flight, explicitlyCompleted is
// latched and PollCompletion will transition to Finished once that turn's
// result is folded in.
func (r *Runner) ApplySetStatus(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.explicitlyCompleted = true
	if !r.isRunningLocked() && r.state != Finished {
		obsmetrics.MissionsByState.WithLabelValues(string(r.state)).Dec()
		obsmetrics.MissionsByState.WithLabelValues(string(Finished)).Inc()
		r.state = Finished
	}
}

// Cancel trips the cancellation token for the active turn, if any.
func (r *Runner) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return missionrt.ErrNoActiveTurn
	}
	r.cancel()
	return nil
}

// CheckHealth implements the Health Supervisor: Stalled when running with
// no activity for over a minute; MissingDeliverables when idle, not
// explicitly completed, and an expected path is absent; Healthy otherwise.
// workspaceDir is the mission's working directory, used for the existence
// check.
func (r *Runner) CheckHealth(workspaceDir string) Health {
	r.mu.Lock()
	defer r.mu.Unlock()

	secondsSince := int64(time.Since(r.lastActivity).Seconds())
	if r.isRunningLocked() && secondsSince > int64(stallThreshold.Seconds()) {
		obsmetrics.StallsTotal.Inc()
		return Health{Kind: Stalled, SecondsSinceActivity: secondsSince, LastState: r.state}
	}
	if !r.isRunningLocked() && !r.explicitlyCompleted && len(r.deliverables.Paths) > 0 {
		if missing := r.deliverables.MissingPaths(workspaceDir); len(missing) > 0 {
			return Health{Kind: MissingDeliverables, Missing: missing}
		}
	}
	return Health{Kind: Healthy}
}

// StartNextParams bundles everything StartNext needs to spawn a turn.
type StartNextParams struct {
	Ctx             context.Context
	Ex              workspace.Exec
	Workspace       workspace.Workspace
	Cwd             string
	Model           string
	Providers       *config.Providers
	Secrets         turn.SecretsStore
	Sink            *missionrt.EventSink
	MaxHistoryChars int
	Env             []string
	AutoInstall     bool
}

// StartNext pops the head of the queue and spawns a turn for it, unless a
// turn is already running, the queue is empty, or the mission has been
// explicitly completed or is Finished. Returns true if a turn was started.
func (r *Runner) StartNext(p StartNextParams) bool {
	r.mu.Lock()
	if r.isRunningLocked() || len(r.queue) == 0 || r.explicitlyCompleted || r.state == Finished {
		r.mu.Unlock()
		return false
	}
	msg := r.queue[0]
	r.queue = r.queue[1:]
	r.state = Running
	r.turnStart = time.Now()
	obsmetrics.MissionsByState.WithLabelValues(string(Queued)).Dec()
	obsmetrics.MissionsByState.WithLabelValues(string(Running)).Inc()

	turnCtx, cancel := context.WithCancel(p.Ctx)
	r.cancel = cancel
	resultCh := make(chan Outcome, 1)
	r.resultCh = resultCh

	agentRole := msg.Agent
	if agentRole == "" {
		agentRole = r.AgentOverride
	}
	history := append([]turn.HistoryEntry(nil), r.history...)
	r.mu.Unlock()

	if p.Sink != nil {
		p.Sink.Publish(missionrt.NewUserMessageEvent(r.MissionID, msg.ID.String(), msg.Content, false))
	}

	log := obslog.WithMission(r.MissionID)
	log.Info().
		Str("workspace_id", r.WorkspaceID.String()).
		Str("message_id", msg.ID.String()).
		Int("message_len", len(msg.Content)).
		Msg("mission runner starting turn")

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Msg("mission: turn task panicked")
				r.mu.Lock()
				r.state = Finished
				r.mu.Unlock()
			}
		}()
		result := turn.Execute(turnCtx, p.Ex, turn.Params{
			Mission:         r.MissionID,
			Backend:         r.BackendID,
			Workspace:       p.Workspace,
			Cwd:             p.Cwd,
			Model:           p.Model,
			AgentRole:       agentRole,
			Message:         msg.Content,
			History:         history,
			Providers:       p.Providers,
			Secrets:         p.Secrets,
			Sink:            p.Sink,
			MaxHistoryChars: p.MaxHistoryChars,
			Env:             p.Env,
			AutoInstall:     p.AutoInstall,
		})
		resultCh <- Outcome{MessageID: msg.ID, Input: msg.Content, Result: result}
	}()
	return true
}

// PollCompletion is a non-blocking check for a finished turn. When a turn
// has finished it folds the result into history (exactly two entries:
// user then assistant), infers explicit completion from the output's
// sentinel substrings, returns to Queued (or moves to Finished once the
// mission has been explicitly completed), and reports the outcome.
func (r *Runner) PollCompletion() (Outcome, bool) {
	r.mu.Lock()
	ch := r.resultCh
	r.mu.Unlock()
	if ch == nil {
		return Outcome{}, false
	}

	select {
	case outcome := <-ch:
		r.mu.Lock()
		r.resultCh = nil
		r.cancel = nil
		r.lastActivity = time.Now()

		if strings.Contains(outcome.Result.Output, "Mission marked as") ||
			strings.Contains(outcome.Result.Output, "complete_mission") {
			r.explicitlyCompleted = true
		}
		if r.explicitlyCompleted {
			r.state = Finished
			obsmetrics.MissionsByState.WithLabelValues(string(Running)).Dec()
			obsmetrics.MissionsByState.WithLabelValues(string(Finished)).Inc()
		} else {
			r.state = Queued
			obsmetrics.MissionsByState.WithLabelValues(string(Running)).Dec()
			obsmetrics.MissionsByState.WithLabelValues(string(Queued)).Inc()
		}
		obsmetrics.TurnDurationSeconds.WithLabelValues(r.BackendID).Observe(time.Since(r.turnStart).Seconds())
		obsmetrics.TurnsTotal.WithLabelValues(r.BackendID, string(outcome.Result.Terminal)).Inc()
		r.history = append(r.history,
			turn.HistoryEntry{Role: "user", Content: outcome.Input},
			turn.HistoryEntry{Role: "assistant", Content: outcome.Result.Output},
		)
		explicit := r.explicitlyCompleted
		missionID := r.MissionID
		deliverables := r.deliverables
		r.mu.Unlock()

		if !explicit && len(deliverables.Paths) > 0 {
			obslog.WithMission(missionID).Warn().Msg("mission ended; deliverable check deferred to health supervisor")
		}
		return outcome, true
	default:
		return Outcome{}, false
	}
}

// CheckFinished is a non-blocking probe for whether the running task has
// completed, without consuming the result (unlike PollCompletion).
func (r *Runner) CheckFinished() bool {
	r.mu.Lock()
	ch := r.resultCh
	r.mu.Unlock()
	if ch == nil {
		return true
	}
	select {
	case outcome := <-ch:
		// Put it back for PollCompletion to consume properly.
		buffered := make(chan Outcome, 1)
		buffered <- outcome
		r.mu.Lock()
		r.resultCh = buffered
		r.mu.Unlock()
		return true
	default:
		return false
	}
}
