// Package adf models Atlassian-Document-Format rich-text trees and the
// generic operations the rest of the service performs on them: traversal,
// deep copy, section extraction, one-way text rendering and one-way
// markdown conversion.
package adf

// Well-known node and mark types. The type set is open: nodes whose Type
// matches none of these still round-trip through every operation in this
// package unmodified.
const (
	TypeDoc         = "doc"
	TypeParagraph   = "paragraph"
	TypeHeading     = "heading"
	TypeBulletList  = "bulletList"
	TypeOrderedList = "orderedList"
	TypeListItem    = "listItem"
	TypeText        = "text"
	TypeHardBreak   = "hardBreak"
	TypeCodeBlock   = "codeBlock"
	TypeBlockquote  = "blockquote"
	TypeRule        = "rule"
	TypeTable       = "table"
	TypeTableRow    = "tableRow"
	TypeTableCell   = "tableCell"
	TypeTableHeader = "tableHeader"
	TypeInlineCard  = "inlineCard"

	MarkCode      = "code"
	MarkEm        = "em"
	MarkStrong    = "strong"
	MarkLink      = "link"
	MarkStrike    = "strike"
	MarkUnderline = "underline"
)

// Mark is an inline decoration on a text node (emphasis, link, ...).
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Node is one node of the document tree. A node carries either Text or
// Content, never both.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
	Text    string         `json:"text,omitempty"`
	Content []*Node        `json:"content,omitempty"`
}

// Doc is the root wrapper around a top-level content sequence.
type Doc struct {
	Version int     `json:"version"`
	Type    string  `json:"type"`
	Content []*Node `json:"content"`
}

// NewDoc returns an empty version-1 document.
func NewDoc(content []*Node) *Doc {
	return &Doc{Version: 1, Type: TypeDoc, Content: content}
}

// HasMark reports whether the node carries a mark of the given type.
func (n *Node) HasMark(markType string) bool {
	for _, m := range n.Marks {
		if m.Type == markType {
			return true
		}
	}
	return false
}

// MarkAttr returns the named attribute of the first mark of the given type.
func (n *Node) MarkAttr(markType, attr string) (string, bool) {
	for _, m := range n.Marks {
		if m.Type != markType {
			continue
		}
		if v, ok := m.Attrs[attr].(string); ok {
			return v, true
		}
		return "", false
	}
	return "", false
}

// LinkHref returns the target of the node's link mark, if any.
func (n *Node) LinkHref() (string, bool) {
	return n.MarkAttr(MarkLink, "href")
}

// HeadingLevel returns the heading level attribute, defaulting to 1 when the
// attribute is absent or malformed. Callers should check Type first.
func (n *Node) HeadingLevel() int {
	switch v := n.Attrs["level"].(type) {
	case float64: // decoded JSON numbers
		return int(v)
	case int:
		return v
	}
	return 1
}
