package adf

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// FromMarkdown converts markdown source into a content slice. This is the
// forward-only conversion for brand-new generated text; it is never used to
// round-trip content that already lives in a document tree.
func FromMarkdown(src []byte) ([]*Node, error) {
	md := goldmark.New()
	reader := text.NewReader(src)
	doc := md.Parser().Parse(reader)

	var content []*Node
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		block, err := convertBlock(n, src)
		if err != nil {
			return nil, err
		}
		if block != nil {
			content = append(content, block)
		}
	}
	return content, nil
}

func convertBlock(n ast.Node, src []byte) (*Node, error) {
	switch node := n.(type) {
	case *ast.Heading:
		return &Node{
			Type:    TypeHeading,
			Attrs:   map[string]any{"level": node.Level},
			Content: convertInlines(node, src, nil),
		}, nil
	case *ast.Paragraph, *ast.TextBlock:
		return &Node{Type: TypeParagraph, Content: convertInlines(n, src, nil)}, nil
	case *ast.List:
		listType := TypeBulletList
		if node.IsOrdered() {
			listType = TypeOrderedList
		}
		list := &Node{Type: listType}
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			li := &Node{Type: TypeListItem}
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				block, err := convertBlock(c, src)
				if err != nil {
					return nil, err
				}
				if block != nil {
					li.Content = append(li.Content, block)
				}
			}
			list.Content = append(list.Content, li)
		}
		return list, nil
	case *ast.FencedCodeBlock:
		code := &Node{
			Type:    TypeCodeBlock,
			Content: []*Node{{Type: TypeText, Text: blockLines(n, src)}},
		}
		if lang := string(node.Language(src)); lang != "" {
			code.Attrs = map[string]any{"language": lang}
		}
		return code, nil
	case *ast.CodeBlock:
		return &Node{
			Type:    TypeCodeBlock,
			Content: []*Node{{Type: TypeText, Text: blockLines(n, src)}},
		}, nil
	case *ast.Blockquote:
		quote := &Node{Type: TypeBlockquote}
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			block, err := convertBlock(c, src)
			if err != nil {
				return nil, err
			}
			if block != nil {
				quote.Content = append(quote.Content, block)
			}
		}
		return quote, nil
	case *ast.ThematicBreak:
		return &Node{Type: TypeRule}, nil
	case *ast.HTMLBlock:
		// Raw HTML has no tree equivalent; keep its text in a paragraph.
		txt := strings.TrimSpace(blockLines(n, src))
		if txt == "" {
			return nil, nil
		}
		return &Node{Type: TypeParagraph, Content: []*Node{{Type: TypeText, Text: txt}}}, nil
	default:
		return nil, fmt.Errorf("unsupported markdown block: %s", n.Kind())
	}
}

// convertInlines flattens an inline container into text nodes carrying the
// accumulated mark stack, plus hardBreak nodes for hard line breaks.
func convertInlines(parent ast.Node, src []byte, marks []Mark) []*Node {
	var out []*Node
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			txt := string(node.Segment.Value(src))
			if txt != "" {
				out = append(out, textNode(txt, marks))
			}
			if node.HardLineBreak() {
				out = append(out, &Node{Type: TypeHardBreak})
			} else if node.SoftLineBreak() {
				out = append(out, textNode(" ", marks))
			}
		case *ast.String:
			out = append(out, textNode(string(node.Value), marks))
		case *ast.CodeSpan:
			out = append(out, textNode(codeSpanText(node, src), append(cloneMarks(marks), Mark{Type: MarkCode})))
		case *ast.Emphasis:
			markType := MarkEm
			if node.Level >= 2 {
				markType = MarkStrong
			}
			out = append(out, convertInlines(node, src, append(cloneMarks(marks), Mark{Type: markType}))...)
		case *ast.Link:
			link := Mark{Type: MarkLink, Attrs: map[string]any{"href": string(node.Destination)}}
			out = append(out, convertInlines(node, src, append(cloneMarks(marks), link))...)
		case *ast.AutoLink:
			url := string(node.URL(src))
			link := Mark{Type: MarkLink, Attrs: map[string]any{"href": url}}
			out = append(out, textNode(url, append(cloneMarks(marks), link)))
		case *ast.RawHTML:
			// Dropped; generated drafts should not contain raw HTML.
		default:
			// Unknown inline: keep its flattened text so no words are lost.
			out = append(out, convertInlines(c, src, marks)...)
		}
	}
	return out
}

func textNode(text string, marks []Mark) *Node {
	n := &Node{Type: TypeText, Text: text}
	if len(marks) > 0 {
		n.Marks = cloneMarks(marks)
	}
	return n
}

func cloneMarks(marks []Mark) []Mark {
	if marks == nil {
		return nil
	}
	out := make([]Mark, len(marks))
	copy(out, marks)
	return out
}

func codeSpanText(n ast.Node, src []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Segment.Value(src))
		}
	}
	return sb.String()
}

func blockLines(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		sb.Write(line.Value(src))
	}
	return strings.TrimRight(sb.String(), "\n")
}
