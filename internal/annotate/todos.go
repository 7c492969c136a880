package annotate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/docuwrite/internal/markdown"
)

const todoMarker = "todo:"

// lineSpace matches the characters unicode.IsSpace accepts within a line, so
// labeling finds every line ExtractTodos trimmed.
const lineSpace = `[\t\v\f\r \x{85}\p{Z}]*`

// Todo is one "TODO:" line of a document.
type Todo struct {
	Section string `json:"section"`
	Item    string `json:"item"`
	Label   string `json:"label"`
	Line    int    `json:"line"` // 1-based
}

// ExtractTodos returns the TODO lines of text in document order. A line is a
// TODO when, trimmed, it starts with "todo:" in any case. Section is the
// nearest heading at or before the line.
func ExtractTodos(text string) []Todo {
	headings := markdown.ParseHeadings(text)
	var todos []Todo
	offset := 0

	for n, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), todoMarker) {
			todos = append(todos, Todo{
				Section: markdown.NearestHeadingBefore(headings, offset),
				Item:    strings.TrimSpace(trimmed[len(todoMarker):]),
				Line:    n + 1,
			})
		}
		offset += len(line) + 1
	}

	labels := todoLabels(todos)
	for i := range todos {
		todos[i].Label = labels[i]
	}
	return todos
}

// todoLabels returns the label of each todo. Todos with the same item share
// the label of the first one, since labeling matches lines by content.
func todoLabels(todos []Todo) []string {
	first := make(map[string]int, len(todos))
	labels := make([]string, len(todos))
	for i, t := range todos {
		j, ok := first[t.Item]
		if !ok {
			j = i
			first[t.Item] = i
		}
		labels[i] = fmt.Sprintf("todo-item-%d", j+1)
	}
	return labels
}

// LabelTodos appends a \label{} to every TODO line of text that matches one
// of todos. Matching is by line content, not position: identical TODO lines
// all carry the label of the first.
func LabelTodos(text string, todos []Todo) string {
	labels := todoLabels(todos)
	seen := make(map[string]bool, len(todos))
	for i, t := range todos {
		if seen[t.Item] {
			continue
		}
		seen[t.Item] = true

		re, err := regexp.Compile(`(?im)^(` + lineSpace + `todo:` + lineSpace + regexp.QuoteMeta(t.Item) + `)(` + lineSpace + `)$`)
		if err != nil {
			continue
		}
		text = re.ReplaceAllString(text, "${1} \\label{"+labels[i]+"}${2}")
	}
	return text
}

// DuplicateTodos returns the items that occur on more than one TODO line.
func DuplicateTodos(todos []Todo) []string {
	counts := make(map[string]int, len(todos))
	var dups []string
	for _, t := range todos {
		counts[t.Item]++
		if counts[t.Item] == 2 {
			dups = append(dups, t.Item)
		}
	}
	return dups
}

// FormatTodoList renders the "TODO List" section: message, then a table with
// each todo's section, item and a \pageref to its label.
func FormatTodoList(todos []Todo, message string) string {
	labels := todoLabels(todos)
	var sb strings.Builder
	sb.WriteString("# TODO List\n\n")
	sb.WriteString(message)
	sb.WriteString("\n\n")
	sb.WriteString("| Section | TODO Item | Page |\n")
	sb.WriteString("|---------|-----------|------|\n")
	for i, t := range todos {
		fmt.Fprintf(&sb, "| %s | %s | \\pageref{%s} |\n", escapeCell(t.Section), escapeCell(t.Item), labels[i])
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
