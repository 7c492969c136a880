package markdown

import "testing"

func TestScanDiagrams_Scenario(t *testing.T) {
	blocks := ScanDiagrams(scenarioDoc)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 diagram, got %d", len(blocks))
	}
	b := blocks[0]
	if b.Payload != "graph TD;\na-->b" {
		t.Errorf("expected payload %q, got %q", "graph TD;\na-->b", b.Payload)
	}
	if kind := DiagramKind(b.Payload); kind != "graph" {
		t.Errorf("expected kind %q, got %q", "graph", kind)
	}
	if b.Start != 4 || b.End != 35 {
		t.Errorf("expected span [4,35), got [%d,%d)", b.Start, b.End)
	}
	if scenarioDoc[b.Start:b.End] != b.Match {
		t.Errorf("match does not equal text at span: %q", b.Match)
	}
	if b.Seq != 1 {
		t.Errorf("expected seq 1, got %d", b.Seq)
	}
}

func TestScanDiagrams_FenceStyles(t *testing.T) {
	doc := "intro\n:::mermaid\nsequenceDiagram\n  A->>B: hi\n:::\n\n  ```mermaid  \n\nflowchart LR\n```\n"
	blocks := ScanDiagrams(doc)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 diagrams, got %d", len(blocks))
	}

	want := []struct {
		start, end int
		payload    string
		kind       string
	}{
		{5, 48, "sequenceDiagram\n  A->>B: hi", "sequenceDiagram"},
		{49, 82, "\nflowchart LR", "flowchart"},
	}
	for i, w := range want {
		b := blocks[i]
		if b.Start != w.start || b.End != w.end {
			t.Errorf("block %d: expected span [%d,%d), got [%d,%d)", i, w.start, w.end, b.Start, b.End)
		}
		if b.Payload != w.payload {
			t.Errorf("block %d: expected payload %q, got %q", i, w.payload, b.Payload)
		}
		if k := DiagramKind(b.Payload); k != w.kind {
			t.Errorf("block %d: expected kind %q, got %q", i, w.kind, k)
		}
		if b.Seq != i+1 {
			t.Errorf("block %d: expected seq %d, got %d", i, i+1, b.Seq)
		}
	}
}

func TestScanDiagrams_IgnoresOtherFences(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"other language", "```go\nfunc main() {}\n```\n"},
		{"unclosed", "```mermaid\ngraph TD;\na-->b\n"},
		{"empty", ""},
		{"inline mention", "use ```mermaid``` fences\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScanDiagrams(tt.doc); len(got) != 0 {
				t.Errorf("expected no diagrams, got %d", len(got))
			}
		})
	}
}

func TestDiagramKind(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{"graph TD;\na-->b", "graph"},
		{"graph;", "graph"},
		{"\n\n  pie title Pets\n", "pie"},
		{"classDiagram", "classDiagram"},
		{"", ""},
		{"   \n\t\n", ""},
	}
	for _, tt := range tests {
		if got := DiagramKind(tt.payload); got != tt.want {
			t.Errorf("DiagramKind(%q): expected %q, got %q", tt.payload, tt.want, got)
		}
	}
}

func TestScanTables_AdjacentTables(t *testing.T) {
	doc := "| a | b |\n|---|---|\n| 1 | 2 |\n\n| c |\n|:-:|\n| 3 |\n| 4 |\n"
	blocks := ScanTables(doc)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(blocks))
	}

	first, second := blocks[0], blocks[1]
	if first.Start != 0 || first.End != 30 {
		t.Errorf("first table: expected span [0,30), got [%d,%d)", first.Start, first.End)
	}
	if second.Start != 30 || second.End != 55 {
		t.Errorf("second table: expected span [30,55), got [%d,%d)", second.Start, second.End)
	}
	if first.End > second.Start {
		t.Errorf("tables overlap: first ends at %d, second starts at %d", first.End, second.Start)
	}
	if second.Payload != "| c |\n|:-:|\n| 3 |\n| 4 |\n" {
		t.Errorf("unexpected second payload %q", second.Payload)
	}
	for _, b := range blocks {
		if doc[b.Start:b.End] != b.Match {
			t.Errorf("table %d: match differs from text at span", b.Seq)
		}
	}
}

func TestScanTables_NoMatch(t *testing.T) {
	docs := []string{
		"",
		"no tables here\n",
		"| header only |\n|---|\n",
		"| a |\n| b |\n",
		"| a |\n|---|\n| 1 |", // body line without terminator
	}
	for _, doc := range docs {
		if got := ScanTables(doc); len(got) != 0 {
			t.Errorf("expected no tables in %q, got %d", doc, len(got))
		}
	}
}

func TestScanTables_AfterParagraph(t *testing.T) {
	doc := "Some text\n| k | v |\n| - | - |\n| x | y |\nafter\n"
	blocks := ScanTables(doc)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 table, got %d", len(blocks))
	}
	if blocks[0].Start != 9 {
		t.Errorf("expected table to start at the preceding newline (9), got %d", blocks[0].Start)
	}
	if blocks[0].Payload != "| k | v |\n| - | - |\n| x | y |\n" {
		t.Errorf("unexpected payload %q", blocks[0].Payload)
	}
}

func TestNameBlocks(t *testing.T) {
	doc := "| a |\n|---|\n| 1 |\n\n# First\n\n| b |\n|---|\n| 2 |\n"
	blocks := ScanTables(doc)
	NameBlocks(blocks, ParseHeadings(doc))
	if len(blocks) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(blocks))
	}
	if blocks[0].Name != NoHeaderFound {
		t.Errorf("expected sentinel for first table, got %q", blocks[0].Name)
	}
	if blocks[1].Name != "First" {
		t.Errorf("expected %q, got %q", "First", blocks[1].Name)
	}
}
