// Package markdown locates headings, diagram blocks and tables in raw
// Markdown text and rewrites located spans while keeping the remaining
// spans' offsets consistent.
package markdown

import (
	"regexp"
	"strings"
	"unicode"
)

// NoHeaderFound is returned by NearestHeadingBefore when no heading precedes
// the offset. It is a displayable section label, not an error.
const NoHeaderFound = "no header found"

// Heading is an ATX heading found in a text snapshot.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
	Start int    `json:"start"` // byte offset of the heading line in the scanned text
}

var headingMarker = regexp.MustCompile(`^#{1,6}(?:[ \t]+|$)`)

// ParseHeadings returns the headings of text in document order.
//
// Leading whitespace before the marker is ignored. Trailing closing '#'
// characters are stripped from the heading text, and headings whose text is
// empty are dropped.
func ParseHeadings(text string) []Heading {
	var headings []Heading
	offset := 0

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if strings.HasPrefix(trimmed, "#") {
			if m := headingMarker.FindString(trimmed); m != "" {
				level := len(strings.TrimSpace(m))
				title := strings.TrimRight(trimmed[len(m):], "#")
				title = strings.TrimSpace(title)
				if title != "" {
					headings = append(headings, Heading{Level: level, Text: title, Start: offset})
				}
			}
		}
		offset += len(line) + 1
	}

	return headings
}

// NearestHeadingBefore returns the text of the last heading starting at or
// before offset, or NoHeaderFound.
func NearestHeadingBefore(headings []Heading, offset int) string {
	for i := len(headings) - 1; i >= 0; i-- {
		if headings[i].Start <= offset {
			return headings[i].Text
		}
	}
	return NoHeaderFound
}
