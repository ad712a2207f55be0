package opencode

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/openagent/missionrt"
	"github.com/openagent/missionrt/internal/errfmt"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// stripANSI removes terminal color/cursor escape sequences from a line
// before pattern matching.
func stripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

var (
	explicitResultID = regexp.MustCompile(`(?i)\bid[:=]\s*([A-Za-z0-9_-]+)`)
	sessionIDPattern = regexp.MustCompile(`(?i)session\s*(?:id)?\s*[:=]\s*([A-Za-z0-9_-]+)`)
)

// bannerSubstrings are lower-cased substrings that mark a stdout line as
// startup/progress noise rather than assistant content.
var bannerSubstrings = []string{
	"starting opencode server",
	"all tasks completed",
	"session id:",
}

// needsStorageFallback reports whether stdout contains no assistant
// content: either empty, or every non-blank line matches a known banner.
func needsStorageFallback(stdout string) bool {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		return true
	}
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		matched := false
		for _, banner := range bannerSubstrings {
			if strings.Contains(lower, banner) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// handleStderrLine parses one stderr line, stripping ANSI codes first,
// updating s and forwarding events. Every stderr line is additionally
// forwarded as a Thinking event.
func (s *state) handleStderrLine(mission uuid.UUID, rawLine string, sink *missionrt.EventSink) {
	line := stripANSI(rawLine)

	switch {
	case strings.Contains(line, "TOOL.EXECUTE:"):
		name := strings.TrimSpace(strings.SplitN(line, "TOOL.EXECUTE:", 2)[1])
		id := s.freshToolID()
		s.lastToolID, s.lastToolName = id, name
		sink.Publish(missionrt.NewToolCallEvent(mission, id, name, json.RawMessage("{}")))

	case strings.Contains(line, "TOOL.RESULT:"):
		id, name := s.lastToolID, s.lastToolName
		if m := explicitResultID.FindStringSubmatch(line); m != nil {
			// Open Question §9.2: prefer an explicit id parsed from the
			// line over the last-seen tool id, which can be stale if
			// results arrive out of order.
			id = m[1]
		}
		if id == "" {
			id = s.freshToolID()
		}
		if name == "" {
			name = "unknown"
		}
		result, _ := json.Marshal(map[string]string{"output": line})
		sink.Publish(missionrt.NewToolResultEvent(mission, id, name, result))

	case strings.Contains(line, "SESSION.ERROR:"), strings.Contains(strings.ToLower(line), "error:"):
		sink.Publish(missionrt.NewErrorEvent(mission, errfmt.Format("", line), true))
	}

	if m := sessionIDPattern.FindStringSubmatch(line); m != nil {
		s.sessionID = m[1]
	}

	sink.Publish(missionrt.NewThinkingEvent(mission, line, false))
}
