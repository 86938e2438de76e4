package shell

import (
	"strings"
	"time"

	"storyforge/internal/adf"
)

// timestampFormat is the machine-parseable completion timestamp format.
const timestampFormat = time.RFC3339

// MarkCompleted returns a copy of section where the shell story identified
// by id carries a completion link to url and a trailing emphasis-marked
// timestamp. The input is never mutated, so callers can safely retry or
// roll back by keeping their original reference.
//
// Marking is idempotent. A title segment that already carries a link mark is
// left alone even when its target differs (first-write-wins); the timestamp
// trailer is overwritten in place rather than appended again.
//
// An id absent from the section yields a *RecordError with ErrUnknownID and
// no other effect. Callers that already committed a side effect keyed to id
// (such as creating the tracked issue) must treat that as a separate,
// already-successful fact when surfacing this error.
func MarkCompleted(section []*adf.Node, id, url string, completedAt time.Time) ([]*adf.Node, error) {
	out := adf.CloneNodes(section)

	li := findItem(out, id)
	if li == nil {
		return nil, &RecordError{Kind: ErrUnknownID, ID: id}
	}
	para := adf.FindChild(li, adf.TypeParagraph)

	markTitle(para, url)
	stampCompletion(para, completedAt)
	return out, nil
}

// findItem locates the listItem whose code-marked id token equals id.
func findItem(section []*adf.Node, id string) *adf.Node {
	for _, n := range section {
		if n == nil || n.Type != adf.TypeBulletList {
			continue
		}
		for _, li := range n.Content {
			if li == nil || li.Type != adf.TypeListItem {
				continue
			}
			para := adf.FindChild(li, adf.TypeParagraph)
			if para == nil {
				continue
			}
			for _, c := range para.Content {
				if c != nil && c.Type == adf.TypeText && c.HasMark(adf.MarkCode) {
					if strings.TrimSpace(c.Text) == id {
						return li
					}
					break
				}
			}
		}
	}
	return nil
}

// markTitle adds a link mark to every title text node between the id token
// and the separator glyph. When the title shares its text node with the
// separator, that node is split first so the link never covers description
// text.
func markTitle(para *adf.Node, url string) {
	idx := -1
	for i, n := range para.Content {
		if n != nil && n.Type == adf.TypeText && n.HasMark(adf.MarkCode) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	var titleNodes []*adf.Node
	for i := idx + 1; i < len(para.Content); i++ {
		n := para.Content[i]
		if n == nil || n.Type != adf.TypeText {
			continue
		}
		before, _, found := strings.Cut(n.Text, separator)
		if !found {
			if strings.TrimSpace(n.Text) != "" {
				titleNodes = append(titleNodes, n)
			}
			continue
		}
		if strings.TrimSpace(before) != "" {
			titleNodes = append(titleNodes, splitAtSeparator(para, i))
		}
		break
	}

	for _, n := range titleNodes {
		if !n.HasMark(adf.MarkLink) {
			n.Marks = append(n.Marks, adf.Mark{
				Type:  adf.MarkLink,
				Attrs: map[string]any{"href": url},
			})
		}
	}
}

// splitAtSeparator splits para.Content[i] into a title node and a node
// holding the separator plus the rest, preserving existing marks on both.
// Returns the new title node.
func splitAtSeparator(para *adf.Node, i int) *adf.Node {
	n := para.Content[i]
	before, after, _ := strings.Cut(n.Text, separator)

	title := adf.Clone(n)
	title.Text = before
	n.Text = separator + after

	content := make([]*adf.Node, 0, len(para.Content)+1)
	content = append(content, para.Content[:i]...)
	content = append(content, title, n)
	content = append(content, para.Content[i+1:]...)
	para.Content = content
	return title
}

// stampCompletion appends the emphasis-marked timestamp trailer, or
// overwrites the text of an existing one.
func stampCompletion(para *adf.Node, completedAt time.Time) {
	stamp := completedAt.UTC().Format(timestampFormat)

	for i := len(para.Content) - 1; i >= 0; i-- {
		n := para.Content[i]
		if n == nil {
			continue
		}
		if n.Type == adf.TypeText && strings.TrimSpace(n.Text) == "" {
			continue
		}
		if n.Type == adf.TypeText && n.HasMark(adf.MarkEm) {
			n.Text = stamp
			return
		}
		break
	}

	para.Content = append(para.Content,
		&adf.Node{Type: adf.TypeText, Text: " "},
		&adf.Node{Type: adf.TypeText, Text: stamp, Marks: []adf.Mark{{Type: adf.MarkEm}}},
	)
}
