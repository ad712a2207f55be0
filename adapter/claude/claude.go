// Package claude is the streaming adapter for the Claude Code CLI. It
// parses line-delimited stream-json events, accumulates content-block-
// indexed thinking/text deltas, and emits uniform missionrt.AgentEvent
// values.
package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/openagent/missionrt"
	"github.com/openagent/missionrt/adapter"
	"github.com/openagent/missionrt/internal/jsonutil"
	"github.com/openagent/missionrt/internal/obslog"
	"github.com/openagent/missionrt/workspace"
)

const defaultBinary = "claude"

// Run spawns the Claude Code CLI, drives its stream-json protocol to
// completion (or cancellation), and returns the turn's AgentResult.
// binary overrides the default "claude" executable name.
func Run(ctx context.Context, ex workspace.Exec, cwd, binary string, req adapter.Request, sink *missionrt.EventSink) missionrt.AgentResult {
	if binary == "" {
		binary = defaultBinary
	}
	log := obslog.WithMission(req.Mission)

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	args := []string{"--print", "--output-format", "stream-json", "--verbose", "--include-partial-messages", "--session-id", sessionID}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if req.AgentRole != "" {
		args = append(args, "--agent", req.AgentRole)
	}

	child, err := ex.SpawnStreaming(ctx, cwd, binary, args, req.Env)
	if err != nil {
		return missionrt.Failure(fmt.Sprintf("claude: spawn failed: %v", err), missionrt.TerminalLlmError)
	}

	if _, werr := child.Stdin.Write([]byte(req.Message)); werr != nil {
		log.Warn().Err(werr).Msg("claude: stdin write failed")
	}
	_ = child.Stdin.Close()

	s := newState()
	stdout := child.Stdout()
	for {
		select {
		case <-ctx.Done():
			child.Stop()
			return missionrt.Failure("claude: turn cancelled", missionrt.TerminalCancelled)
		case line, ok := <-stdout:
			if !ok {
				return s.finish(req.Mission, sink, false)
			}
			if line.Err != nil {
				log.Warn().Err(line.Err).Msg("claude: stdout read error")
				continue
			}
			if done := s.handle(req.Mission, line.Text, sink); done {
				_ = child.Wait(ctx)
				return s.finish(req.Mission, sink, true)
			}
		}
	}
}

// state is the adapter's per-turn accumulator: content-block-indexed
// thinking/text buffers, the tool-id-to-name map, and the running result.
type state struct {
	blockTypes      map[int]string
	pendingTools    map[string]string // tool_use id -> name
	thinkingBuffers map[int]string
	textBuffers     map[int]string
	lastEmittedLen  int

	finalResult string
	costCents   int64
	success     bool
	sawResult   bool
}

func newState() *state {
	return &state{
		blockTypes:      map[int]string{},
		pendingTools:    map[string]string{},
		thinkingBuffers: map[int]string{},
		textBuffers:     map[int]string{},
	}
}

// handle parses one stdout line and applies it to s, emitting events to
// sink. Returns true when a "result" event has terminated the turn.
func (s *state) handle(mission uuid.UUID, line string, sink *missionrt.EventSink) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
		// Malformed line: log and skip, never fatal.
		obslog.Logger.Debug().Err(err).Msg("claude: skipping malformed line")
		return false
	}

	switch jsonutil.GetString(raw, "type") {
	case "system":
		// System init: nothing is emitted, and its session id and model
		// are not recorded.
	case "stream_event":
		s.handleStreamEvent(mission, raw, sink)
	case "assistant":
		s.handleAssistant(mission, raw, sink)
	case "user":
		s.handleUser(mission, raw, sink)
	case "result":
		s.handleResult(raw)
		s.sawResult = true
		return true
	}
	return false
}

func (s *state) handleStreamEvent(mission uuid.UUID, raw map[string]any, sink *missionrt.EventSink) {
	event := jsonutil.GetMap(raw, "event")
	if event == nil {
		return
	}
	index := jsonutil.GetInt(event, "index")

	switch jsonutil.GetString(event, "type") {
	case "content_block_start":
		block := jsonutil.GetMap(event, "content_block")
		blockType := jsonutil.GetString(block, "type")
		s.blockTypes[index] = blockType
		if blockType == "tool_use" {
			id := jsonutil.GetString(block, "id")
			name := jsonutil.GetString(block, "name")
			if id != "" {
				s.pendingTools[id] = name
			}
		}
	case "content_block_delta":
		delta := jsonutil.GetMap(event, "delta")
		switch jsonutil.GetString(delta, "type") {
		case "thinking_delta":
			s.thinkingBuffers[index] += jsonutil.GetString(delta, "thinking")
			s.emitCumulativeThinking(mission, sink, false)
		case "text_delta":
			s.textBuffers[index] += jsonutil.GetString(delta, "text")
		}
	}
}

// emitCumulativeThinking concatenates every thinking buffer in ascending
// index order, for determinism, and emits a Thinking event only if the
// total length grew since the last emission.
func (s *state) emitCumulativeThinking(mission uuid.UUID, sink *missionrt.EventSink, done bool) {
	indices := make([]int, 0, len(s.thinkingBuffers))
	for i := range s.thinkingBuffers {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	var b strings.Builder
	for _, i := range indices {
		b.WriteString(s.thinkingBuffers[i])
	}
	content := b.String()
	if !done && len(content) <= s.lastEmittedLen {
		return
	}
	s.lastEmittedLen = len(content)
	sink.Publish(missionrt.NewThinkingEvent(mission, content, done))
}

func (s *state) handleAssistant(mission uuid.UUID, raw map[string]any, sink *missionrt.EventSink) {
	message := jsonutil.GetMap(raw, "message")
	blocks, _ := message["content"].([]any)
	sawThinking := false
	for _, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok {
			continue
		}
		switch jsonutil.GetString(block, "type") {
		case "text":
			s.finalResult = jsonutil.GetString(block, "text") // last text block wins
		case "tool_use":
			id := jsonutil.GetString(block, "id")
			name := jsonutil.GetString(block, "name")
			s.pendingTools[id] = name
			args, _ := json.Marshal(block["input"])
			sink.Publish(missionrt.NewToolCallEvent(mission, id, name, args))
		case "thinking":
			if text := jsonutil.GetString(block, "thinking"); text != "" {
				sawThinking = true
			}
		}
	}
	if sawThinking {
		s.emitCumulativeThinking(mission, sink, true)
	}
}

func (s *state) handleUser(mission uuid.UUID, raw map[string]any, sink *missionrt.EventSink) {
	message := jsonutil.GetMap(raw, "message")
	blocks, _ := message["content"].([]any)
	toolUseResult := jsonutil.GetMap(raw, "tool_use_result")

	for _, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok || jsonutil.GetString(block, "type") != "tool_result" {
			continue
		}
		callID := jsonutil.GetString(block, "tool_use_id")
		name := s.pendingTools[callID]
		if name == "" {
			name = "unknown"
		}

		var result json.RawMessage
		if toolUseResult != nil {
			result, _ = json.Marshal(map[string]any{
				"content":  block["content"],
				"stdout":   toolUseResult["stdout"],
				"stderr":   toolUseResult["stderr"],
				"is_error": toolUseResult["is_error"],
			})
		} else {
			result, _ = json.Marshal(block["content"])
		}
		sink.Publish(missionrt.NewToolResultEvent(mission, callID, name, result))
	}
}

func (s *state) handleResult(raw map[string]any) {
	subtype := jsonutil.GetString(raw, "subtype")
	isError, _ := raw["is_error"].(bool)
	s.success = !isError && subtype != "error"

	cost := jsonutil.GetFloat(raw, "total_cost_usd")
	if !math.IsNaN(cost) && !math.IsInf(cost, 0) && cost > 0 {
		s.costCents = int64(math.Floor(cost * 100))
	}

	if !s.success {
		if result := jsonutil.GetString(raw, "result"); result != "" {
			s.finalResult = result
		}
	}
}

func (s *state) finish(mission uuid.UUID, sink *missionrt.EventSink, sawResult bool) missionrt.AgentResult {
	if !sawResult {
		return missionrt.Failure("claude: stream ended without a result event", missionrt.TerminalLlmError)
	}
	sink.Publish(missionrt.NewAssistantMessageEvent(mission, s.finalResult, s.success))
	if !s.success {
		return missionrt.Failure(s.finalResult, missionrt.TerminalLlmError)
	}
	return missionrt.SuccessResult(s.finalResult, s.costCents, "")
}
