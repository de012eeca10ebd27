package validate

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
)

var metadataDividerRe = regexp.MustCompile(`(?m)^---\s*$`)

// StripMarkdown reduces a wiki article to plain prose: heading markers, link
// syntax, emphasis, list markers, block quotes, and code are dropped while
// their visible text survives. Everything after the first "---" divider is
// treated as a metadata block and cut. The first level-1 heading becomes the
// article title.
func StripMarkdown(source []byte) (title, text string) {
	if loc := metadataDividerRe.FindIndex(source); loc != nil && loc[0] > 0 {
		source = source[:loc[0]]
	}

	doc := goldmark.New().Parser().Parse(gtext.NewReader(source))

	var b strings.Builder
	titleStart := -1
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.CodeSpan:
			return ast.WalkSkipChildren, nil
		case *ast.Heading:
			if entering {
				if node.Level == 1 && title == "" {
					titleStart = b.Len()
				}
			} else {
				if titleStart >= 0 {
					title = strings.TrimSpace(b.String()[titleStart:])
					titleStart = -1
				}
				b.WriteString("\n")
			}
		case *ast.Paragraph, *ast.ListItem, *ast.Blockquote:
			if !entering {
				b.WriteString("\n")
			}
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteString("\n")
				}
			}
		}
		return ast.WalkContinue, nil
	})

	return title, collapseWhitespace(b.String())
}

func collapseWhitespace(s string) string {
	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
