package missionrt

import "encoding/json"

// TerminalReason classifies why a turn stopped.
type TerminalReason string

const (
	// TerminalCompleted indicates the backend finished normally.
	TerminalCompleted TerminalReason = "completed"

	// TerminalCancelled indicates the turn's cancellation token tripped.
	TerminalCancelled TerminalReason = "cancelled"

	// TerminalLlmError indicates a spawn, parse, or backend failure (§7).
	TerminalLlmError TerminalReason = "llm_error"
)

// AgentResult is the outcome of a single turn, returned by the Turn
// Executor and folded into the Mission Runner's history.
type AgentResult struct {
	Success   bool
	Output    string
	CostCents int64
	Model     string
	Payload   json.RawMessage
	Terminal  TerminalReason
}

// Failure builds a failed AgentResult with the given terminal reason.
func Failure(output string, reason TerminalReason) AgentResult {
	return AgentResult{Success: false, Output: output, Terminal: reason}
}

// SuccessResult builds a successful, Completed AgentResult.
func SuccessResult(output string, costCents int64, model string) AgentResult {
	return AgentResult{Success: true, Output: output, CostCents: costCents, Model: model, Terminal: TerminalCompleted}
}
