package adf

import (
	"fmt"
	"log/slog"
	"strings"
)

// Renderer converts a subtree to a flat lightweight-markup rendering, for
// feeding text to a generation call. Rendering is strictly one-way: output
// is never parsed back into a tree. Unknown block kinds fall back to their
// flattened children; unknown inline kinds degrade to raw text with a
// warning, never an error.
type Renderer struct {
	log *slog.Logger
}

func NewRenderer(log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{log: log}
}

// Render renders a content slice to text.
func (r *Renderer) Render(content []*Node) string {
	var sb strings.Builder
	r.renderBlocks(&sb, content, "")
	return strings.TrimRight(sb.String(), "\n")
}

func (r *Renderer) renderBlocks(sb *strings.Builder, content []*Node, indent string) {
	for _, n := range content {
		if n == nil {
			continue
		}
		r.renderBlock(sb, n, indent)
	}
}

func (r *Renderer) renderBlock(sb *strings.Builder, n *Node, indent string) {
	switch n.Type {
	case TypeParagraph:
		sb.WriteString(indent)
		sb.WriteString(r.renderInlines(n.Content))
		sb.WriteString("\n\n")
	case TypeHeading:
		sb.WriteString(strings.Repeat("#", n.HeadingLevel()))
		sb.WriteByte(' ')
		sb.WriteString(r.renderInlines(n.Content))
		sb.WriteString("\n\n")
	case TypeBulletList:
		r.renderList(sb, n, indent, func(int) string { return "- " })
		sb.WriteString("\n")
	case TypeOrderedList:
		r.renderList(sb, n, indent, func(i int) string { return fmt.Sprintf("%d. ", i+1) })
		sb.WriteString("\n")
	case TypeCodeBlock:
		lang, _ := n.Attrs["language"].(string)
		sb.WriteString(indent + "```" + lang + "\n")
		sb.WriteString(TextOf(n.Content))
		sb.WriteString("\n" + indent + "```\n\n")
	case TypeBlockquote:
		var inner strings.Builder
		r.renderBlocks(&inner, n.Content, "")
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			sb.WriteString(indent + "> " + line + "\n")
		}
		sb.WriteString("\n")
	case TypeTable:
		r.renderTable(sb, n, indent)
	case TypeRule:
		sb.WriteString(indent + "---\n\n")
	default:
		if len(n.Content) == 0 {
			// Inline node at block position; render it best-effort.
			sb.WriteString(indent)
			sb.WriteString(r.renderInline(n))
			sb.WriteString("\n\n")
			return
		}
		r.renderBlocks(sb, n.Content, indent)
	}
}

func (r *Renderer) renderList(sb *strings.Builder, list *Node, indent string, prefix func(int) string) {
	for i, item := range list.Content {
		if item == nil {
			continue
		}
		p := prefix(i)
		first := true
		for _, c := range item.Content {
			switch c.Type {
			case TypeBulletList, TypeOrderedList:
				var nested strings.Builder
				r.renderBlock(&nested, c, indent+"  ")
				sb.WriteString(strings.TrimRight(nested.String(), "\n") + "\n")
			default:
				line := r.renderInlines(c.Content)
				if c.Type != TypeParagraph {
					var inner strings.Builder
					r.renderBlock(&inner, c, "")
					line = strings.TrimRight(inner.String(), "\n")
				}
				if first {
					sb.WriteString(indent + p + line + "\n")
					first = false
				} else {
					sb.WriteString(indent + strings.Repeat(" ", len(p)) + line + "\n")
				}
			}
		}
	}
}

func (r *Renderer) renderTable(sb *strings.Builder, table *Node, indent string) {
	for ri, row := range table.Content {
		if row == nil || (row.Type != TypeTableRow) {
			continue
		}
		var cells []string
		header := false
		for _, cell := range row.Content {
			if cell == nil {
				continue
			}
			if cell.Type == TypeTableHeader {
				header = true
			}
			var inner strings.Builder
			r.renderBlocks(&inner, cell.Content, "")
			text := strings.ReplaceAll(strings.TrimSpace(inner.String()), "\n", " ")
			cells = append(cells, text)
		}
		sb.WriteString(indent + "| " + strings.Join(cells, " | ") + " |\n")
		if ri == 0 && header {
			seps := make([]string, len(cells))
			for i := range seps {
				seps[i] = "---"
			}
			sb.WriteString(indent + "| " + strings.Join(seps, " | ") + " |\n")
		}
	}
	sb.WriteString("\n")
}

func (r *Renderer) renderInlines(content []*Node) string {
	var sb strings.Builder
	for _, n := range content {
		if n == nil {
			continue
		}
		sb.WriteString(r.renderInline(n))
	}
	return sb.String()
}

func (r *Renderer) renderInline(n *Node) string {
	switch n.Type {
	case TypeText:
		return decorate(n)
	case TypeHardBreak:
		return "\n"
	case TypeInlineCard:
		if url, ok := n.Attrs["url"].(string); ok {
			return url
		}
		return ""
	default:
		r.log.Warn("unknown inline node, rendering raw text", "type", n.Type)
		if n.Text != "" {
			return n.Text
		}
		return r.renderInlines(n.Content)
	}
}

// decorate wraps text in the markdown equivalent of each mark. Link is
// applied outermost so nested styles stay inside the bracket text.
func decorate(n *Node) string {
	text := n.Text
	for _, m := range n.Marks {
		switch m.Type {
		case MarkCode:
			text = "`" + text + "`"
		case MarkEm:
			text = "_" + text + "_"
		case MarkStrong:
			text = "**" + text + "**"
		case MarkStrike:
			text = "~~" + text + "~~"
		case MarkUnderline:
			// No lightweight-markup equivalent; leave plain.
		case MarkLink:
			// Applied after the loop so it always wraps the styled text.
		}
	}
	if href, ok := n.LinkHref(); ok {
		text = "[" + text + "](" + href + ")"
	}
	return text
}
