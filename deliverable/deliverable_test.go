package deliverable

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// TestBulletRoundTrip checks that for a message built from a header plus
// bullet lines "- <path>", the extracted paths equal the bullet set.
func TestBulletRoundTrip(t *testing.T) {
	message := "Please produce the following:\n- report.md\n- data.csv\n- notes.txt\n"
	got := Extract(message).Paths
	want := []string{"report.md", "data.csv", "notes.txt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Paths = %v, want %v", got, want)
	}
}

func TestKeywordSignals(t *testing.T) {
	s := Extract("Do some research and write a report summarizing findings.")
	if !s.IsResearchTask {
		t.Errorf("IsResearchTask = false, want true")
	}
	if !s.RequiresReport {
		t.Errorf("RequiresReport = false, want true")
	}
}

func TestMissingPaths(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "report.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := Set{Paths: []string{"report.md", "data.csv"}}
	missing := s.MissingPaths(dir)
	if !reflect.DeepEqual(missing, []string{"data.csv"}) {
		t.Errorf("MissingPaths = %v, want [data.csv]", missing)
	}
}

func TestUnrecognisedTokensDropped(t *testing.T) {
	s := Extract("Please help me think about this problem carefully.")
	if len(s.Paths) != 0 {
		t.Errorf("Paths = %v, want none", s.Paths)
	}
}

// TestBarePathInProseIsCaptured covers an unbulleted, unquoted path
// mention, matching the worked scenario "Produce ./report.md and
// ./data.csv" where neither path sits in a bullet, backtick span, or
// quoted span.
func TestBarePathInProseIsCaptured(t *testing.T) {
	s := Extract("Produce ./report.md and ./data.csv.")
	want := []string{"./report.md", "./data.csv"}
	if !reflect.DeepEqual(s.Paths, want) {
		t.Errorf("Paths = %v, want %v", s.Paths, want)
	}
}
