package opencode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type messageRecord struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type partRecord struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Time struct {
		Start int64 `json:"start"`
	} `json:"time"`
}

// loadLatestAssistantText recovers assistant output from OpenCode's
// on-disk storage tree when stdout carried only banner/progress noise.
// It locates the newest assistant message record for sessionID, then
// concatenates that message's text parts sorted by (time.start,
// filename).
func loadLatestAssistantText(dataRoot, sessionID string) (string, error) {
	messageDir := filepath.Join(dataRoot, "opencode", "storage", "message", sessionID)
	entries, err := os.ReadDir(messageDir)
	if err != nil {
		return "", fmt.Errorf("opencode: read message dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names))) // newest-first by filename

	var messageID string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(messageDir, name))
		if err != nil {
			continue
		}
		var rec messageRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if rec.Role == "assistant" {
			messageID = rec.ID
			if messageID == "" {
				messageID = strings.TrimSuffix(name, ".json")
			}
			break
		}
	}
	if messageID == "" {
		return "", fmt.Errorf("opencode: no assistant message found for session %s", sessionID)
	}

	partDir := filepath.Join(dataRoot, "opencode", "storage", "part", messageID)
	partEntries, err := os.ReadDir(partDir)
	if err != nil {
		return "", fmt.Errorf("opencode: read part dir: %w", err)
	}

	type namedPart struct {
		name string
		rec  partRecord
	}
	var parts []namedPart
	for _, e := range partEntries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(partDir, e.Name()))
		if err != nil {
			continue
		}
		var rec partRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if rec.Type != "text" {
			continue
		}
		parts = append(parts, namedPart{name: e.Name(), rec: rec})
	}

	sort.Slice(parts, func(i, j int) bool {
		if parts[i].rec.Time.Start != parts[j].rec.Time.Start {
			return parts[i].rec.Time.Start < parts[j].rec.Time.Start
		}
		return parts[i].name < parts[j].name
	})

	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.rec.Text)
	}
	return b.String(), nil
}
