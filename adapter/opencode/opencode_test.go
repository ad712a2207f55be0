package opencode

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/openagent/missionrt"
)

func TestNeedsStorageFallback(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   bool
	}{
		{"empty", "", true},
		{"only banners", "starting opencode server\nsession id: ses_abc\nall tasks completed\n", true},
		{"real content", "Here is your answer.\n", false},
		{"banner plus content", "starting opencode server\nThe result is 42.\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := needsStorageFallback(tt.stdout); got != tt.want {
				t.Errorf("needsStorageFallback(%q) = %v, want %v", tt.stdout, got, tt.want)
			}
		})
	}
}

// TestStorageFallbackRecoversInTimeOrder exercises S5 / invariant 8: given
// a synthetic storage tree with out-of-order part filenames, the recovered
// text is the concatenation of parts sorted by (time.start, filename).
func TestStorageFallbackRecoversInTimeOrder(t *testing.T) {
	root := t.TempDir()
	sessionID := "ses_abc"
	msgDir := filepath.Join(root, "opencode", "storage", "message", sessionID)
	if err := os.MkdirAll(msgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeJSON(t, filepath.Join(msgDir, "msgX.json"), map[string]string{"id": "msgX", "role": "assistant"})

	partDir := filepath.Join(root, "opencode", "storage", "part", "msgX")
	if err := os.MkdirAll(partDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeJSON(t, filepath.Join(partDir, "b.json"), map[string]any{
		"type": "text", "text": "world", "time": map[string]int64{"start": 2},
	})
	writeJSON(t, filepath.Join(partDir, "a.json"), map[string]any{
		"type": "text", "text": "hello ", "time": map[string]int64{"start": 1},
	})

	got, err := loadLatestAssistantText(root, sessionID)
	if err != nil {
		t.Fatalf("loadLatestAssistantText: %v", err)
	}
	if got != "hello world" {
		t.Errorf("recovered text = %q, want %q", got, "hello world")
	}
}

func TestHandleStderrLineToolRoundTrip(t *testing.T) {
	sink := missionrt.NewEventSink()
	ch, unsub := sink.Subscribe()
	defer unsub()

	mission := uuid.New()
	s := newState()
	s.handleStderrLine(mission, "TOOL.EXECUTE: read_file", sink)
	s.handleStderrLine(mission, "TOOL.RESULT: ok", sink)

	call := <-ch
	if call.Kind != missionrt.EventToolCall || call.Name != "read_file" {
		t.Fatalf("got %+v, want ToolCall(read_file)", call)
	}
	thinking1 := <-ch // every stderr line is also forwarded as Thinking
	if thinking1.Kind != missionrt.EventThinking {
		t.Fatalf("got %+v, want Thinking", thinking1)
	}
	result := <-ch
	if result.Kind != missionrt.EventToolResult || result.CallID != call.CallID {
		t.Fatalf("got %+v, want ToolResult with call id %q", result, call.CallID)
	}
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
