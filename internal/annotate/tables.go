package annotate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/docuwrite/internal/markdown"
)

// Table records one pipe table found by Tables.
type Table struct {
	Number    int    `json:"number"`
	Name      string `json:"name"`
	Captioned bool   `json:"captioned"` // false when a caption was already present
}

var errCaptioned = errors.New("table already captioned")

// Tables inserts a "Table: <heading>" caption line before every pipe table of
// text. Tables that already carry a caption are left alone, so running Tables
// on its own output changes nothing.
func Tables(text string) (string, []Table, error) {
	blocks := markdown.ScanTables(text)
	if len(blocks) == 0 {
		return text, nil, nil
	}
	markdown.NameBlocks(blocks, markdown.ParseHeadings(text))
	return captionTables(text, blocks)
}

func captionTables(text string, blocks []markdown.Block) (string, []Table, error) {
	done := make([]bool, len(blocks))
	for i, b := range blocks {
		done[i] = b.Start <= len(text) && hasCaption(text[:b.Start])
	}

	out, err := markdown.Rewrite(text, blocks, func(b *markdown.Block) (string, string, error) {
		if done[b.Seq-1] {
			return "", "", errCaptioned
		}
		return "\nTable: " + b.Name + "\n\n" + b.Match + "\n", "", nil
	})
	if err != nil {
		return text, nil, fmt.Errorf("caption tables: %w", err)
	}

	tables := make([]Table, len(blocks))
	for i, b := range blocks {
		tables[i] = Table{Number: b.Seq, Name: b.Name, Captioned: b.OK}
	}
	return out, tables, nil
}

// hasCaption reports whether the last non-blank line of before is a caption.
func hasCaption(before string) bool {
	before = strings.TrimRight(before, " \t\r\n")
	if i := strings.LastIndexByte(before, '\n'); i >= 0 {
		before = before[i+1:]
	}
	return strings.HasPrefix(strings.TrimSpace(before), "Table:")
}
