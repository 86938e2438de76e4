// Package shell parses the shell-story bullet-list micro-syntax embedded in
// an epic's "Shell Stories" section and marks individual stories completed
// in place. A shell story item looks like
//
//	`st001` Login screen ⟩ Email/password sign-in
//	  - SCREENS: <links>
//	  - DEPENDENCIES: st002, st003
//
// where the id is a code-marked token, the title runs up to the ⟩ separator
// and the description follows it. A link mark on the title is the completion
// flag; a trailing emphasis-marked run is the completion timestamp.
package shell

import (
	"regexp"
	"strings"

	"storyforge/internal/adf"
)

const (
	separator = "⟩"

	labelScreens      = "SCREENS:"
	labelDependencies = "DEPENDENCIES:"
)

var idPattern = regexp.MustCompile(`^[a-z]+\d+$`)

// Record is the structured projection of one shell-story list item. Records
// are recomputed from the document on every parse and are never mutated; all
// mutation targets the document nodes via MarkCompleted.
type Record struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	ReferenceURL string   `json:"reference_url,omitempty"`
	Screens      []string `json:"screens"`
	Dependencies []string `json:"dependencies"`

	// Source is the originating listItem, retained for lossless
	// re-rendering. Shared with the parsed tree: read-only.
	Source *adf.Node `json:"-"`
}

// Completed reports whether the record carries a completion link.
func (r *Record) Completed() bool { return r.ReferenceURL != "" }

// ParseRecords interprets every top-level bullet list in the section as
// shell stories, in document order. Malformed records fail the whole parse:
// downstream automation assumes a complete, trustworthy roster, so there is
// no skip-and-continue.
func ParseRecords(section []*adf.Node) ([]Record, error) {
	var records []Record
	item := 0
	for _, n := range section {
		if n == nil || n.Type != adf.TypeBulletList {
			continue
		}
		for _, li := range n.Content {
			if li == nil || li.Type != adf.TypeListItem {
				continue
			}
			rec, err := parseItem(li, item)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
			item++
		}
	}
	return records, nil
}

func parseItem(li *adf.Node, item int) (Record, error) {
	rec := Record{Source: li, Screens: []string{}, Dependencies: []string{}}

	para := adf.FindChild(li, adf.TypeParagraph)
	if para == nil {
		return rec, &RecordError{Kind: ErrMissingID, Item: item}
	}

	// Identifier: the first code-marked text segment.
	idx := -1
	for i, n := range para.Content {
		if n != nil && n.Type == adf.TypeText && n.HasMark(adf.MarkCode) {
			token := strings.TrimSpace(n.Text)
			if !idPattern.MatchString(token) {
				return rec, &RecordError{Kind: ErrMissingID, Item: item}
			}
			rec.ID = token
			idx = i
			break
		}
	}
	if idx < 0 {
		return rec, &RecordError{Kind: ErrMissingID, Item: item}
	}

	// Title/description split on the separator glyph. A link mark seen on
	// any title segment is the completion flag.
	var title strings.Builder
	sepAt := -1
	descHead := ""
	for i := idx + 1; i < len(para.Content); i++ {
		n := para.Content[i]
		if n == nil {
			continue
		}
		if n.Type != adf.TypeText {
			if n.Type == adf.TypeHardBreak {
				title.WriteByte('\n')
			}
			continue
		}
		if href, ok := n.LinkHref(); ok && rec.ReferenceURL == "" {
			rec.ReferenceURL = href
		}
		before, after, found := strings.Cut(n.Text, separator)
		title.WriteString(before)
		if found {
			sepAt = i
			descHead = after
			break
		}
	}
	if sepAt < 0 {
		return rec, &RecordError{Kind: ErrMissingSeparator, ID: rec.ID, Item: item}
	}
	rec.Title = strings.TrimSpace(title.String())

	rec.Description = strings.TrimSpace(descHead + descriptionTail(para.Content[sepAt+1:]))
	if rec.Description == "" {
		return rec, &RecordError{Kind: ErrMissingDescription, ID: rec.ID, Item: item}
	}

	for _, c := range li.Content {
		if c == nil || c.Type != adf.TypeBulletList {
			continue
		}
		parseNestedList(c, &rec)
	}
	return rec, nil
}

// descriptionTail concatenates the inline run after the separator, turning
// hard breaks into literal newlines and dropping the trailing
// emphasis-marked timestamp run if one is present.
func descriptionTail(inlines []*adf.Node) string {
	end := len(inlines)
	for end > 0 {
		n := inlines[end-1]
		if n == nil {
			end--
			continue
		}
		if n.Type == adf.TypeText && n.HasMark(adf.MarkEm) {
			end--
			continue
		}
		if n.Type == adf.TypeText && strings.TrimSpace(n.Text) == "" &&
			end < len(inlines) {
			// Whitespace that padded a stripped trailer.
			end--
			continue
		}
		break
	}

	var sb strings.Builder
	for _, n := range inlines[:end] {
		if n == nil {
			continue
		}
		switch n.Type {
		case adf.TypeHardBreak:
			sb.WriteByte('\n')
		case adf.TypeText:
			sb.WriteString(n.Text)
		}
	}
	return sb.String()
}

// parseNestedList routes labeled nested items into Screens or Dependencies.
// Items with an unrecognized label contribute nothing but stay in Source.
func parseNestedList(list *adf.Node, rec *Record) {
	for _, li := range list.Content {
		if li == nil || li.Type != adf.TypeListItem {
			continue
		}
		para := adf.FindChild(li, adf.TypeParagraph)
		if para == nil {
			continue
		}
		text := strings.TrimSpace(adf.Text(para))
		switch {
		case strings.HasPrefix(text, labelScreens):
			// Screen URLs are the link targets of any link-marked
			// inlines, including hard-break-separated runs.
			adf.Walk(para.Content, func(n *adf.Node, _ []*adf.Node, _ int) bool {
				if href, ok := n.LinkHref(); ok {
					rec.Screens = append(rec.Screens, href)
				}
				return true
			})
		case strings.HasPrefix(text, labelDependencies):
			rest := strings.TrimSpace(strings.TrimPrefix(text, labelDependencies))
			if strings.EqualFold(rest, "none") || rest == "" {
				continue
			}
			for _, dep := range strings.Split(rest, ",") {
				if dep = strings.TrimSpace(dep); dep != "" {
					rec.Dependencies = append(rec.Dependencies, dep)
				}
			}
		}
	}
}
