package markdown

import (
	"regexp"
	"strings"
)

var (
	atxLine   = regexp.MustCompile(`^#+\s`)
	fenceLine = regexp.MustCompile("^(?:```|~~~|:::)")
)

// NormalizeHeadingSpacing surrounds every heading line with blank lines so
// renderers never glue a heading to the previous paragraph. A heading on the
// first line also gets a blank line before it. Lines inside fenced blocks are
// left alone.
func NormalizeHeadingSpacing(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines)+8)
	inFence := false

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if fenceLine.MatchString(trimmed) {
			inFence = !inFence
			out = append(out, line)
			continue
		}
		if inFence || !atxLine.MatchString(trimmed) {
			out = append(out, line)
			continue
		}

		if i == 0 || strings.TrimSpace(out[len(out)-1]) != "" {
			out = append(out, "")
		}
		out = append(out, line)
		if i < len(lines)-1 && strings.TrimSpace(lines[i+1]) != "" {
			out = append(out, "")
		}
	}

	return strings.Join(out, "\n")
}
