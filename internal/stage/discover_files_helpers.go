package stage

import (
	"os"
	"path/filepath"
	"strings"

	gitgitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// IgnoreFile holds extra gitignore-style patterns kept next to the exports.
const IgnoreFile = ".timewarpignore"

var recordExtensions = []string{".json", ".ndjson"}

// isRecordFile reports whether name looks like an exported record file.
// Hidden files are skipped.
func isRecordFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range recordExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// readIgnorePatterns parses patterns from lines, skipping blanks and comments.
func readIgnorePatterns(lines []string) []gitgitignore.Pattern {
	var patterns []gitgitignore.Pattern
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitgitignore.ParsePattern(line, nil))
	}
	return patterns
}

// ignoreMatcher combines configured patterns with the work directory's
// .timewarpignore; later patterns win, so the file can re-include.
func ignoreMatcher(absRoot string, configured []string) func(name string) bool {
	lines := append([]string(nil), configured...)
	if b, err := os.ReadFile(filepath.Join(absRoot, IgnoreFile)); err == nil {
		lines = append(lines, strings.Split(string(b), "\n")...)
	}
	patterns := readIgnorePatterns(lines)
	if len(patterns) == 0 {
		return func(string) bool { return false }
	}
	m := gitgitignore.NewMatcher(patterns)
	return func(name string) bool {
		return m.Match([]string{name}, false)
	}
}

func displayPath(absRoot string, p string) string {
	rel, err := filepath.Rel(absRoot, p)
	if err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(p)
}
