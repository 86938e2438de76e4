package jira

import (
	"strings"

	"golang.org/x/net/html"
)

// flattenHTML reduces the tracker's rendered-HTML description to plain text:
// block elements become paragraph breaks, <br> a newline, script/style are
// skipped. Used only as prompt context for issues without a rich-text
// description tree; never a mutation medium.
func flattenHTML(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return strings.TrimSpace(src)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style":
				return
			case "br":
				sb.WriteByte('\n')
				return
			case "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote":
				if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n\n") {
					sb.WriteString("\n\n")
				}
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	// Collapse runs of blank lines left by nested block elements.
	lines := strings.Split(sb.String(), "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
