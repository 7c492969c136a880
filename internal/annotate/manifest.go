package annotate

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// ManifestFile is the name of the manifest written into the output directory.
const ManifestFile = "manifest.json"

// SkippedUnit is a source unit that could not be read or converted.
type SkippedUnit struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Manifest summarizes one build.
type Manifest struct {
	Title     string        `json:"title,omitempty"`
	Processed []string      `json:"processed"`
	Skipped   []SkippedUnit `json:"skipped"`
	Figures   []Figure      `json:"figures"`
	Tables    []Table       `json:"tables"`
	Todos     []Todo        `json:"todos"`
	Document  string        `json:"document"`         // annotated Markdown
	Output    string        `json:"output,omitempty"` // rendered document
	Pages     int           `json:"pages,omitempty"`  // page count of a rendered PDF
}

// FailedFigures returns the figures that were not rasterized.
func (m *Manifest) FailedFigures() []Figure {
	var failed []Figure
	for _, f := range m.Figures {
		if !f.OK {
			failed = append(failed, f)
		}
	}
	return failed
}

// KindCount is the number of figures of one diagram kind.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// KindCounts returns the number of figures per diagram kind in order of
// first appearance.
func (m *Manifest) KindCounts() []KindCount {
	idx := make(map[string]int)
	var counts []KindCount
	for _, f := range m.Figures {
		i, ok := idx[f.Kind]
		if !ok {
			i = len(counts)
			idx[f.Kind] = i
			counts = append(counts, KindCount{Kind: f.Kind})
		}
		counts[i].Count++
	}
	return counts
}

// SortFigures orders figures by number.
func (m *Manifest) SortFigures() {
	sort.SliceStable(m.Figures, func(i, j int) bool { return m.Figures[i].Number < m.Figures[j].Number })
}

// WriteFile writes m as indented JSON to path.
func (m *Manifest) WriteFile(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteFile.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
