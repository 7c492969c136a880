package markdown

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSpanDrift means a block's recorded span no longer covers its matched
// text. It indicates broken offset bookkeeping, never bad input.
var ErrSpanDrift = errors.New("block span drifted from its matched text")

// Replacer produces the replacement text for a block and an optional output
// reference. A non-nil error leaves the block's span unchanged.
type Replacer func(b *Block) (replacement, ref string, err error)

// Rewrite replaces blocks in text in order and returns the rewritten text.
//
// blocks must be ordered by Start and must not overlap. After block i is
// replaced, the length delta is added to every block after i, and block i's
// End is moved to the end of its replacement. A failed replacement marks the
// block with OK=false and shifts nothing. Blocks before i are never touched
// again.
//
// On ErrSpanDrift the original text is returned unchanged; the blocks keep
// whatever was recorded before the drift was found.
func Rewrite(text string, blocks []Block, replace Replacer) (string, error) {
	original := text
	for i := range blocks {
		b := &blocks[i]
		if b.Start < 0 || b.End > len(text) || b.Start > b.End || text[b.Start:b.End] != b.Match {
			return original, fmt.Errorf("block %d at [%d,%d): %w", b.Seq, b.Start, b.End, ErrSpanDrift)
		}

		replacement, ref, err := replace(b)
		if err != nil {
			b.OK = false
			b.Err = err
			continue
		}

		var sb strings.Builder
		sb.Grow(len(text) - (b.End - b.Start) + len(replacement))
		sb.WriteString(text[:b.Start])
		sb.WriteString(replacement)
		sb.WriteString(text[b.End:])
		text = sb.String()

		delta := len(replacement) - (b.End - b.Start)
		b.End = b.Start + len(replacement)
		b.OK = true
		b.Ref = ref
		b.Err = nil

		for j := i + 1; j < len(blocks); j++ {
			blocks[j].Start += delta
			blocks[j].End += delta
		}
	}
	return text, nil
}
