// Package deliverable scans a mission message for expected-artifact path
// tokens and research/report keyword signals, and checks those paths for
// existence against a workspace directory. Known-extension matching uses
// github.com/bmatcuk/doublestar/v4 glob patterns rather than a bare
// suffix allowlist.
package deliverable

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// knownExtensions are glob patterns recognised as deliverable artifacts
// when a bare token (no "/") matches one of them.
var knownExtensions = []string{
	"*.md", "*.csv", "*.txt", "*.json", "*.py", "*.go", "*.pdf",
	"*.xlsx", "*.html", "*.yaml", "*.yml", "*.png", "*.svg",
}

var (
	backtickSpan = regexp.MustCompile("`([^`]+)`")
	quotedSpan   = regexp.MustCompile(`"([^"]+)"`)
	bulletLine   = regexp.MustCompile(`^\s*[-*]\s+(.+)$`)
)

// Set is the extracted deliverable descriptor collection for one message.
type Set struct {
	Paths          []string
	IsResearchTask bool
	RequiresReport bool
}

// Extract scans message for deliverable path tokens and research signals.
// Bullet lines, backtick spans, quoted spans and bare words are each
// scanned in a separate pass over the message, in that order.
func Extract(message string) Set {
	seen := map[string]struct{}{}
	var paths []string
	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" || !looksLikePath(candidate) {
			return
		}
		if _, ok := seen[candidate]; ok {
			return
		}
		seen[candidate] = struct{}{}
		paths = append(paths, candidate)
	}

	for _, line := range strings.Split(message, "\n") {
		if m := bulletLine.FindStringSubmatch(line); m != nil {
			add(firstToken(m[1]))
		}
	}
	for _, m := range backtickSpan.FindAllStringSubmatch(message, -1) {
		add(m[1])
	}
	for _, m := range quotedSpan.FindAllStringSubmatch(message, -1) {
		add(m[1])
	}
	for _, word := range strings.Fields(message) {
		word = strings.TrimLeft(word, `([{"'`+"`")
		word = strings.TrimRight(word, `.,;:)]}"'`+"`")
		add(word)
	}

	lower := strings.ToLower(message)
	return Set{
		Paths:          paths,
		IsResearchTask: strings.Contains(lower, "research"),
		RequiresReport: strings.Contains(lower, "report") || strings.Contains(lower, "summary"),
	}
}

// firstToken returns the leading whitespace-delimited token of s, so a
// bullet line like "- report.md (final draft)" yields "report.md".
func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// looksLikePath reports whether a candidate token should be treated as a
// path: it contains a path separator, or its base name matches a known
// deliverable extension glob.
func looksLikePath(s string) bool {
	if strings.ContainsRune(s, '/') {
		return true
	}
	base := filepath.Base(s)
	for _, pat := range knownExtensions {
		if ok, _ := doublestar.Match(pat, base); ok {
			return true
		}
	}
	return false
}

// MissingPaths returns the subset of s.Paths that do not exist under dir.
func (s Set) MissingPaths(dir string) []string {
	var missing []string
	for _, p := range s.Paths {
		full := p
		if !filepath.IsAbs(p) {
			full = filepath.Join(dir, strings.TrimPrefix(p, "./"))
		}
		if _, err := os.Stat(full); err != nil {
			missing = append(missing, p)
		}
	}
	return missing
}
