package parser

import (
	"strings"

	"github.com/dgallion1/docuwrite/internal/doctree"
)

// sectionBuilder nests text under the most recent heading of a lower level.
type sectionBuilder struct {
	root  *doctree.DocNode
	stack []stackEntry
	buf   strings.Builder
}

type stackEntry struct {
	node  *doctree.DocNode
	level int
}

func newSectionBuilder() *sectionBuilder {
	root := &doctree.DocNode{}
	return &sectionBuilder{root: root, stack: []stackEntry{{node: root, level: 0}}}
}

func (b *sectionBuilder) heading(level int, title string) {
	b.flush()
	node := &doctree.DocNode{Title: title}
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	parent := b.stack[len(b.stack)-1].node
	parent.Children = append(parent.Children, node)
	b.stack = append(b.stack, stackEntry{node: node, level: level})
}

func (b *sectionBuilder) text(s string) {
	if b.buf.Len() > 0 {
		b.buf.WriteString("\n\n")
	}
	b.buf.WriteString(s)
}

func (b *sectionBuilder) flush() {
	t := strings.TrimSpace(b.buf.String())
	b.buf.Reset()
	if t == "" {
		return
	}
	top := b.stack[len(b.stack)-1].node
	if top == b.root {
		// Text before the first heading stays ahead of the sections.
		b.root.Children = append(b.root.Children, &doctree.DocNode{Text: t})
		return
	}
	if top.Text != "" {
		top.Text += "\n\n" + t
	} else {
		top.Text = t
	}
}

func (b *sectionBuilder) finish() []*doctree.DocNode {
	b.flush()
	return b.root.Children
}
