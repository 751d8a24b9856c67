package review

import (
	"strings"
	"sync"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var (
	markdownParserInstance goldmark.Markdown
	markdownParserOnce     sync.Once
)

func getMarkdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParserInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return markdownParserInstance
}

// Summary describes the structure of a review document.
type Summary struct {
	Title    string
	Headings []string
	Words    int
}

// Inspect parses markdown and reports its title (first level-1 heading),
// all heading texts and the number of words in text nodes.
func Inspect(markdown string) Summary {
	var sum Summary
	if strings.TrimSpace(markdown) == "" {
		return sum
	}
	source := []byte(markdown)
	doc := getMarkdownParser().Parser().Parse(text.NewReader(source))

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			title := inlineText(node, source)
			sum.Headings = append(sum.Headings, title)
			if node.Level == 1 && sum.Title == "" {
				sum.Title = title
			}
		case *ast.Text:
			sum.Words += countWords(string(node.Segment.Value(source)))
		}
		return ast.WalkContinue, nil
	})
	return sum
}

// Extract returns the review document contained in a model reply: the text
// from the first level-1 heading to the end. Replies without such a
// heading are returned trimmed.
func Extract(reply string) string {
	source := []byte(reply)
	doc := getMarkdownParser().Parser().Parse(text.NewReader(source))

	start := -1
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if start >= 0 {
			return ast.WalkStop, nil
		}
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok || h.Level != 1 || h.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		seg := h.Lines().At(0)
		start = strings.LastIndexByte(reply[:seg.Start], '\n') + 1
		return ast.WalkStop, nil
	})

	if start < 0 {
		return strings.TrimSpace(reply)
	}
	return strings.TrimSpace(reply[start:])
}

func inlineText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := c.(*ast.Text); ok {
				sb.Write(t.Segment.Value(source))
				if t.SoftLineBreak() {
					sb.WriteByte(' ')
				}
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func countWords(s string) int {
	return len(strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'' && r != '-')
	}))
}
