package markdown

import (
	"regexp"
	"strings"
)

// Block is a located structural span: a diagram block or a table.
//
// Start and End are byte offsets into the text the block was scanned from.
// Rewrite keeps them pointing at the block's current text as earlier blocks
// change length.
type Block struct {
	Seq     int    // 1-based position among the blocks of one scan
	Start   int    // inclusive
	End     int    // exclusive
	Match   string // full matched text, fences and leading newline included
	Payload string // diagram source between the fences, or the table itself
	Name    string // nearest heading, or NoHeaderFound
	Ref     string // output reference, set once the block was rewritten
	OK      bool
	Err     error
}

var (
	// Opening fence (``` or :::, optionally indented) tagged mermaid, the
	// payload, then the next fence line.
	diagramRe = regexp.MustCompile("(?:^|\\n)[ \\t]*(?::{3}|```)mermaid[ \\t]*\\n((?s:.*?))\\n[ \\t]*(?::{3}|```)")

	// Header line(s), a separator of dashes/colons/pipes/spaces, body line(s).
	tableRe = regexp.MustCompile(`(?m)(?:^|\n)((?:\|.+\|\r?\n)+)(?:\|[-:| ]+\|\r?\n)((?:\|.+\|\r?\n)+)`)
)

// ScanDiagrams returns the mermaid blocks of text, left to right.
// The payload is the text strictly between the fence lines.
func ScanDiagrams(text string) []Block {
	matches := diagramRe.FindAllStringSubmatchIndex(text, -1)
	blocks := make([]Block, 0, len(matches))
	for i, m := range matches {
		blocks = append(blocks, Block{
			Seq:     i + 1,
			Start:   m[0],
			End:     m[1],
			Match:   text[m[0]:m[1]],
			Payload: text[m[2]:m[3]],
		})
	}
	return blocks
}

// ScanTables returns the pipe tables of text, left to right. The payload is
// the table with any leading newline removed.
func ScanTables(text string) []Block {
	matches := tableRe.FindAllStringIndex(text, -1)
	blocks := make([]Block, 0, len(matches))
	for i, m := range matches {
		match := text[m[0]:m[1]]
		blocks = append(blocks, Block{
			Seq:     i + 1,
			Start:   m[0],
			End:     m[1],
			Match:   match,
			Payload: strings.TrimPrefix(match, "\n"),
		})
	}
	return blocks
}

// DiagramKind returns the declared diagram type of a mermaid payload: the
// first word of its first non-empty line without a trailing ';'.
// "graph TD;" yields "graph".
func DiagramKind(payload string) string {
	for _, line := range strings.Split(payload, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		return strings.TrimSuffix(fields[0], ";")
	}
	return ""
}

// NameBlocks sets each block's Name to its nearest preceding heading.
func NameBlocks(blocks []Block, headings []Heading) {
	for i := range blocks {
		blocks[i].Name = NearestHeadingBefore(headings, blocks[i].Start)
	}
}
