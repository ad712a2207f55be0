package mission

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/openagent/missionrt"
	"github.com/openagent/missionrt/workspace"
)

func TestIsRunningInvariant(t *testing.T) {
	r := New(uuid.New(), uuid.New(), "opencode", "")
	if r.IsRunning() {
		t.Fatalf("new runner must not be running")
	}

	ws := workspace.New(t.TempDir(), workspace.Host)

	// An unsupported backend id triggers Execute's immediate failure path
	// without spawning any subprocess, keeping this test hermetic.
	r2 := New(uuid.New(), uuid.New(), "unsupported-backend-for-test", "")
	r2.QueueMessage(uuid.New(), "hello", "")
	if !r2.StartNext(StartNextParams{Ctx: context.Background(), Ex: workspace.NewExec(ws)}) {
		t.Fatalf("expected StartNext to start a turn")
	}
	if !r2.IsRunning() {
		t.Fatalf("is_running() must be true immediately after StartNext")
	}

	deadline := time.Now().Add(2 * time.Second)
	var outcome Outcome
	var ok bool
	for time.Now().Before(deadline) {
		outcome, ok = r2.PollCompletion()
		if ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !ok {
		t.Fatalf("turn did not complete in time")
	}
	if outcome.Result.Success {
		t.Errorf("expected unsupported-backend turn to fail")
	}
	if r2.IsRunning() {
		t.Fatalf("is_running() must be false after poll_completion folds the result")
	}
}

func TestPollCompletionGrowsHistoryByTwo(t *testing.T) {
	r := New(uuid.New(), uuid.New(), "unsupported-backend-for-test", "")
	ws := workspace.New(t.TempDir(), workspace.Host)
	r.QueueMessage(uuid.New(), "hello", "")
	r.StartNext(StartNextParams{Ctx: context.Background(), Ex: workspace.NewExec(ws)})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := r.PollCompletion(); ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	r.mu.Lock()
	n := len(r.history)
	r.mu.Unlock()
	if n != 2 {
		t.Errorf("history length = %d, want 2", n)
	}
}

func TestCancelWithoutActiveTurn(t *testing.T) {
	r := New(uuid.New(), uuid.New(), "opencode", "")
	if err := r.Cancel(); err != missionrt.ErrNoActiveTurn {
		t.Errorf("Cancel() = %v, want ErrNoActiveTurn", err)
	}
}

func TestCheckHealthMissingDeliverables(t *testing.T) {
	r := New(uuid.New(), uuid.New(), "opencode", "")
	r.SetInitialMessage("Please produce:\n- report.md\n")

	dir := t.TempDir()
	health := r.CheckHealth(dir)
	if health.Kind != MissingDeliverables {
		t.Fatalf("CheckHealth = %+v, want MissingDeliverables", health)
	}
	if len(health.Missing) != 1 || health.Missing[0] != "report.md" {
		t.Errorf("Missing = %v, want [report.md]", health.Missing)
	}

	if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	health = r.CheckHealth(dir)
	if health.Kind != Healthy {
		t.Errorf("CheckHealth after producing deliverable = %+v, want Healthy", health)
	}
}

func TestCompleteMissionNoCurrentMission(t *testing.T) {
	c := NewControl()
	msg, err := CompleteMission(c, "completed", "")
	if err != nil {
		t.Fatalf("CompleteMission: %v", err)
	}
	if msg != "no active mission; status not recorded" {
		t.Errorf("msg = %q, want passthrough text", msg)
	}
}

func TestCompleteMissionSendsSetStatus(t *testing.T) {
	c := NewControl()
	id := uuid.New()
	c.SetCurrent(id)

	msg, err := CompleteMission(c, "completed", "all done")
	if err != nil {
		t.Fatalf("CompleteMission: %v", err)
	}
	if msg != "Mission marked as completed. Summary: all done" {
		t.Errorf("msg = %q", msg)
	}

	select {
	case cmd := <-c.Commands():
		if cmd.MissionID != id || cmd.Status != "completed" {
			t.Errorf("cmd = %+v", cmd)
		}
	default:
		t.Fatalf("expected a SetStatus command")
	}
}

func TestStartNextRefusedAfterExplicitCompletion(t *testing.T) {
	r := New(uuid.New(), uuid.New(), "unsupported-backend-for-test", "")
	ws := workspace.New(t.TempDir(), workspace.Host)
	r.QueueMessage(uuid.New(), "hello", "")
	r.StartNext(StartNextParams{Ctx: context.Background(), Ex: workspace.NewExec(ws)})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := r.PollCompletion(); ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	r.mu.Lock()
	r.explicitlyCompleted = true
	r.mu.Unlock()
	r.QueueMessage(uuid.New(), "another", "")
	if r.StartNext(StartNextParams{Ctx: context.Background(), Ex: workspace.NewExec(ws)}) {
		t.Fatalf("StartNext must be refused after explicit completion")
	}
}

func TestApplySetStatusTransitionsToFinished(t *testing.T) {
	r := New(uuid.New(), uuid.New(), "opencode", "")
	if r.State() != Queued {
		t.Fatalf("new runner state = %v, want Queued", r.State())
	}

	r.ApplySetStatus("completed")

	if r.State() != Finished {
		t.Errorf("state after ApplySetStatus = %v, want Finished", r.State())
	}
	if !r.IsFinished() {
		t.Errorf("IsFinished() = false, want true")
	}
	r.QueueMessage(uuid.New(), "hello", "")
	ws := workspace.New(t.TempDir(), workspace.Host)
	if r.StartNext(StartNextParams{Ctx: context.Background(), Ex: workspace.NewExec(ws)}) {
		t.Fatalf("StartNext must be refused once Finished")
	}
}

func TestDrainCommandsRoutesSetStatusToRunner(t *testing.T) {
	c := NewControl()
	r := New(uuid.New(), uuid.New(), "opencode", "")
	c.SetCurrent(r.MissionID)

	if _, err := CompleteMission(c, "completed", "done"); err != nil {
		t.Fatalf("CompleteMission: %v", err)
	}

	lookup := func(id uuid.UUID) *Runner {
		if id == r.MissionID {
			return r
		}
		return nil
	}
	DrainCommands(c, lookup)

	if r.State() != Finished {
		t.Errorf("state after DrainCommands = %v, want Finished", r.State())
	}
}

func TestPollCompletionTransitionsToFinishedOnSentinel(t *testing.T) {
	r := New(uuid.New(), uuid.New(), "unsupported-backend-for-test", "")
	ws := workspace.New(t.TempDir(), workspace.Host)
	r.QueueMessage(uuid.New(), "hello", "")
	r.StartNext(StartNextParams{Ctx: context.Background(), Ex: workspace.NewExec(ws)})

	// Force the pending result to carry the completion sentinel text, as
	// the complete_mission tool's confirmation message would.
	r.mu.Lock()
	ch := r.resultCh
	r.mu.Unlock()
	deadline := time.Now().Add(2 * time.Second)
	var outcome Outcome
	var ok bool
	for time.Now().Before(deadline) {
		select {
		case o := <-ch:
			outcome, ok = o, true
		default:
		}
		if ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !ok {
		t.Fatalf("turn did not complete in time")
	}
	outcome.Result.Output = "Mission marked as completed."
	buffered := make(chan Outcome, 1)
	buffered <- outcome
	r.mu.Lock()
	r.resultCh = buffered
	r.mu.Unlock()

	if _, ok := r.PollCompletion(); !ok {
		t.Fatalf("expected PollCompletion to observe the buffered outcome")
	}
	if r.State() != Finished {
		t.Errorf("state = %v, want Finished", r.State())
	}
}
