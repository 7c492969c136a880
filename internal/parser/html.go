package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/strikethrough"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/dgallion1/docuwrite/internal/doctree"
)

// HTMLParser converts an HTML page body to Markdown. Scripts, styles and
// event handlers are stripped before conversion.
type HTMLParser struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

func NewHTMLParser() *HTMLParser {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("html", "head", "title", "body")
	return &HTMLParser{
		policy: policy,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
				strikethrough.NewStrikethroughPlugin(),
			),
		),
	}
}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}

	// The title lives in <head>, which sanitizing drops.
	full, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	tree := &doctree.DocTree{Title: baseTitle(filename)}
	if title := findTitle(full); title != "" {
		tree.Title = title
	}

	doc, err := html.Parse(bytes.NewReader(p.policy.SanitizeBytes(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse sanitized html: %w", err)
	}
	root := findBody(doc)
	if root == nil {
		root = doc
	}

	md, err := p.conv.ConvertNode(root)
	if err != nil {
		return nil, fmt.Errorf("convert html: %w", err)
	}
	if text := strings.TrimSpace(string(md)); text != "" {
		tree.Children = []*doctree.DocNode{{Text: text}}
	}
	return tree, nil
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
