package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docuwrite/internal/doctree"
)

// TextParser handles plain text files. Blank lines separate paragraphs,
// which are kept verbatim. A one-line paragraph underlined with at least
// three '=' opens a section; underlined with '-' it opens a subsection of
// the current section.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	paragraphs, err := splitParagraphs(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	tree := &doctree.DocTree{Title: baseTitle(filename)}
	var top, cur *doctree.DocNode
	for _, para := range paragraphs {
		if title, sub, ok := underlinedTitle(para); ok {
			node := &doctree.DocNode{Title: title}
			if sub && top != nil {
				top.Children = append(top.Children, node)
			} else {
				tree.Children = append(tree.Children, node)
				top = node
			}
			cur = node
			continue
		}

		leaf := &doctree.DocNode{Text: para}
		if cur != nil {
			cur.Children = append(cur.Children, leaf)
		} else {
			tree.Children = append(tree.Children, leaf)
		}
	}
	return tree, nil
}

func splitParagraphs(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs, lines []string
	flush := func() {
		if len(lines) > 0 {
			paragraphs = append(paragraphs, strings.Join(lines, "\n"))
			lines = lines[:0]
		}
	}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		lines = append(lines, line)
	}
	flush()
	return paragraphs, scanner.Err()
}

// underlinedTitle recognizes "Title\n=====" and "Title\n-----".
func underlinedTitle(para string) (title string, sub, ok bool) {
	first, rule, found := strings.Cut(para, "\n")
	if !found || strings.Contains(rule, "\n") {
		return "", false, false
	}
	title = strings.TrimSpace(first)
	rule = strings.TrimSpace(rule)
	if title == "" || len(rule) < 3 {
		return "", false, false
	}
	switch {
	case strings.Trim(rule, "=") == "":
		return title, false, true
	case strings.Trim(rule, "-") == "":
		return title, true, true
	}
	return "", false, false
}
