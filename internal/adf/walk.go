package adf

import "strings"

// Visitor is invoked for each node in depth-first pre-order. It receives the
// content slice owning the node and the node's index in it, so callers can
// replace entries in place. Returning false stops the walk.
type Visitor func(n *Node, parent []*Node, index int) bool

// Walk visits every node under content in depth-first pre-order.
func Walk(content []*Node, visit Visitor) {
	walk(content, visit)
}

func walk(content []*Node, visit Visitor) bool {
	for i, n := range content {
		if n == nil {
			continue
		}
		if !visit(n, content, i) {
			return false
		}
		if !walk(n.Content, visit) {
			return false
		}
	}
	return true
}

// FindChild returns the first direct child of n with the given type.
func FindChild(n *Node, nodeType string) *Node {
	for _, c := range n.Content {
		if c != nil && c.Type == nodeType {
			return c
		}
	}
	return nil
}

// Clone deep-copies a node, including nested attribute objects and arrays
// (unknown node kinds like extensions carry those).
func Clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		Type:  n.Type,
		Text:  n.Text,
		Attrs: cloneAttrs(n.Attrs),
	}
	if n.Marks != nil {
		out.Marks = make([]Mark, len(n.Marks))
		for i, m := range n.Marks {
			out.Marks[i] = Mark{Type: m.Type, Attrs: cloneAttrs(m.Attrs)}
		}
	}
	if n.Content != nil {
		out.Content = CloneNodes(n.Content)
	}
	return out
}

// CloneNodes deep-copies a content slice.
func CloneNodes(content []*Node) []*Node {
	if content == nil {
		return nil
	}
	out := make([]*Node, len(content))
	for i, n := range content {
		out[i] = Clone(n)
	}
	return out
}

// Text flattens the literal text of a subtree, inserting a newline for each
// hardBreak node.
func Text(n *Node) string {
	var sb strings.Builder
	flattenText(n, &sb)
	return sb.String()
}

// TextOf flattens the literal text of a content slice.
func TextOf(content []*Node) string {
	var sb strings.Builder
	for _, n := range content {
		flattenText(n, &sb)
	}
	return sb.String()
}

func flattenText(n *Node, sb *strings.Builder) {
	if n == nil {
		return
	}
	if n.Type == TypeHardBreak {
		sb.WriteByte('\n')
		return
	}
	if n.Text != "" {
		sb.WriteString(n.Text)
	}
	for _, c := range n.Content {
		flattenText(c, sb)
	}
}

// Equal reports structural equality of two nodes, including attrs, marks and
// all descendants.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type != b.Type || a.Text != b.Text {
		return false
	}
	if !attrsEqual(a.Attrs, b.Attrs) {
		return false
	}
	if len(a.Marks) != len(b.Marks) {
		return false
	}
	for i := range a.Marks {
		if a.Marks[i].Type != b.Marks[i].Type || !attrsEqual(a.Marks[i].Attrs, b.Marks[i].Attrs) {
			return false
		}
	}
	return EqualNodes(a.Content, b.Content)
}

// EqualNodes reports structural equality of two content slices.
func EqualNodes(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func attrsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !attrValueEqual(av, bv) {
			return false
		}
	}
	return true
}

// attrValueEqual compares attribute values across the shapes JSON decoding
// produces: scalars, nested objects and arrays.
func attrValueEqual(a, b any) bool {
	switch av := a.(type) {
	case map[string]any:
		bv, ok := b.(map[string]any)
		return ok && attrsEqual(av, bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !attrValueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func cloneAttrs(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = cloneAttrValue(v)
	}
	return out
}

func cloneAttrValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return cloneAttrs(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = cloneAttrValue(e)
		}
		return out
	default:
		return v
	}
}
