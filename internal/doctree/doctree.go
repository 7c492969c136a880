// Package doctree holds the section tree produced by converting a non-Markdown
// source, and renders it back to Markdown.
package doctree

import "strings"

// DocTree is the root of a converted document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text)
	Text     string     // Markdown body of this node (may be empty for container nodes)
	Page     int        // Source page (0 if N/A)
	Children []*DocNode // Subsections
}

// Markdown renders the tree. The title becomes a level 1 heading and each
// nesting level of titled nodes adds one level, capped at 6.
func (t *DocTree) Markdown() string {
	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString("# " + t.Title + "\n\n")
	}
	for _, n := range t.Children {
		writeNode(&sb, n, 2)
	}
	return sb.String()
}

func writeNode(sb *strings.Builder, n *DocNode, level int) {
	if n.Title != "" {
		sb.WriteString(strings.Repeat("#", min(level, 6)) + " " + n.Title + "\n\n")
		level++
	}
	if text := strings.TrimSpace(n.Text); text != "" {
		sb.WriteString(text + "\n\n")
	}
	for _, c := range n.Children {
		writeNode(sb, c, level)
	}
}
