package claude

import (
	"testing"

	"github.com/google/uuid"
	"github.com/openagent/missionrt"
)

func TestCumulativeThinkingIsIndexSortedAndMonotone(t *testing.T) {
	sink := missionrt.NewEventSink()
	ch, unsub := sink.Subscribe()
	defer unsub()

	mission := uuid.New()
	s := newState()

	// Deltas at indices (0,"I ")(0,"will ")(1,"think.")(0,"help.") per S3.
	s.thinkingBuffers[0] += "I "
	s.emitCumulativeThinking(mission, sink, false)
	s.thinkingBuffers[0] += "will "
	s.emitCumulativeThinking(mission, sink, false)
	s.thinkingBuffers[1] += "think."
	s.emitCumulativeThinking(mission, sink, false)
	s.thinkingBuffers[0] += "help."
	s.emitCumulativeThinking(mission, sink, false)

	var lengths []int
	var last string
	for i := 0; i < 4; i++ {
		ev := <-ch
		if ev.Kind != missionrt.EventThinking {
			t.Fatalf("event %d: got kind %v, want EventThinking", i, ev.Kind)
		}
		lengths = append(lengths, len(ev.Content))
		last = ev.Content
	}
	if last != "I will help.think." {
		t.Errorf("final content = %q, want index-ordered %q", last, "I will help.think.")
	}

	want := []int{2, 7, 13, 18}
	for i, l := range lengths {
		if l != want[i] {
			t.Errorf("emission %d length = %d, want %d", i, l, want[i])
		}
		if i > 0 && lengths[i] < lengths[i-1] {
			t.Errorf("emission %d length %d is not monotone-non-decreasing after %d", i, l, lengths[i-1])
		}
	}
}

func TestHandleAssistantToolUseEmitsToolCall(t *testing.T) {
	sink := missionrt.NewEventSink()
	ch, unsub := sink.Subscribe()
	defer unsub()

	mission := uuid.New()
	s := newState()
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"tc1","name":"read_file","input":{"path":"a.txt"}}]}}`
	if done := s.handle(mission, line, sink); done {
		t.Fatalf("handle() returned done=true for a non-result line")
	}

	ev := <-ch
	if ev.Kind != missionrt.EventToolCall || ev.CallID != "tc1" || ev.Name != "read_file" {
		t.Errorf("got event %+v, want ToolCall{tc1,read_file}", ev)
	}
	if s.pendingTools["tc1"] != "read_file" {
		t.Errorf("pendingTools[tc1] = %q, want read_file", s.pendingTools["tc1"])
	}
}

func TestHandleResultTerminatesTurn(t *testing.T) {
	sink := missionrt.NewEventSink()
	mission := uuid.New()
	s := newState()
	s.finalResult = "Hello, world!"

	line := `{"type":"result","subtype":"success","is_error":false,"total_cost_usd":0.0042}`
	done := s.handle(mission, line, sink)
	if !done {
		t.Fatalf("handle() returned done=false for a result line")
	}
	if !s.success {
		t.Errorf("success = false, want true")
	}
	if s.costCents != 0 {
		t.Errorf("costCents = %d, want 0 (floor(0.0042*100)=0)", s.costCents)
	}
}

func TestMalformedLineIsSkippedNotFatal(t *testing.T) {
	sink := missionrt.NewEventSink()
	mission := uuid.New()
	s := newState()
	if done := s.handle(mission, "{not json", sink); done {
		t.Errorf("handle() returned done=true for malformed JSON, want skipped")
	}
}
