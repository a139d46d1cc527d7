package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var plainParser = goldmark.New()

// Plain renders markdown as plain text by walking the goldmark AST and
// collecting text segments. Formatting markers, link targets, and heading
// syntax are dropped; code block contents are kept verbatim.
func Plain(source string) string {
	src := []byte(source)
	doc := plainParser.Parser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte(' ')
				}
			}
		case *ast.AutoLink:
			if entering {
				b.Write(node.URL(src))
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
			}
		}

		// Separate block-level elements with a blank line.
		if !entering && n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
			if s := b.String(); s != "" && !strings.HasSuffix(s, "\n\n") {
				b.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}

// Truncate shortens s to at most n runes, appending "..." when content was
// cut. Rune-safe so multi-byte text is never split mid-character.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimRight(string(runes[:n]), " \t\n") + "..."
}
