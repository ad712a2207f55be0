package mission

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SetStatus is the authoritative explicit-completion command the
// complete_mission tool sends to the control session.
type SetStatus struct {
	MissionID uuid.UUID
	Status    string // "completed" | "failed"
	Summary   string
}

// Control is the shared cell the complete_mission tool consults to find
// the mission currently in focus, and the channel it reports through.
type Control struct {
	mu      sync.RWMutex
	current *uuid.UUID
	cmdCh   chan SetStatus
}

// NewControl creates an empty Control with no mission in focus.
func NewControl() *Control {
	return &Control{cmdCh: make(chan SetStatus, 1)}
}

// SetCurrent marks id as the mission currently in focus.
func (c *Control) SetCurrent(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = &id
}

// ClearCurrent marks no mission as in focus.
func (c *Control) ClearCurrent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
}

// Commands returns the channel SetStatus commands are delivered on.
func (c *Control) Commands() <-chan SetStatus {
	return c.cmdCh
}

// CompleteMission implements the complete_mission tool: validates status,
// and if a mission is currently in focus, sends SetStatus and returns the
// confirmation string; otherwise returns a non-mutating passthrough
// message instead of an error.
func CompleteMission(c *Control, status, summary string) (string, error) {
	if status != "completed" && status != "failed" {
		return "", fmt.Errorf("invalid status %q: must be \"completed\" or \"failed\"", status)
	}

	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()
	if cur == nil {
		return "no active mission; status not recorded", nil
	}

	c.cmdCh <- SetStatus{MissionID: *cur, Status: status, Summary: summary}

	summaryMsg := ""
	if summary != "" {
		summaryMsg = " Summary: " + summary
	}
	return fmt.Sprintf("Mission marked as %s.%s", status, summaryMsg), nil
}

// DrainCommands applies every SetStatus command currently queued on c to
// the runner returned by lookup, without blocking. Intended to be polled
// by the same control loop that calls StartNext/PollCompletion across a
// process's missions; a command naming an unknown mission id is dropped.
func DrainCommands(c *Control, lookup func(uuid.UUID) *Runner) {
	for {
		select {
		case cmd := <-c.cmdCh:
			if r := lookup(cmd.MissionID); r != nil {
				r.ApplySetStatus(cmd.Status)
			}
		default:
			return
		}
	}
}
