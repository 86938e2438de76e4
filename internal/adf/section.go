package adf

import "strings"

// ExtractSection splits content into a heading-delimited section and
// everything else. The section starts at the first heading whose text
// contains label (case-insensitive) and runs up to, but not including, the
// next heading with a level less than or equal to the starting heading's.
//
// No matching heading is not an error: the section is empty and remainder is
// the full input. Duplicate headings are not detected here — callers wanting
// strictness check CountSections first; extraction always takes the first
// match. The returned slices share nodes with the input; callers that intend
// to mutate must clone.
func ExtractSection(content []*Node, label string) (section, remainder []*Node) {
	i := findHeading(content, label, 0)
	if i < 0 {
		return nil, content
	}
	level := content[i].HeadingLevel()
	j := len(content)
	for k := i + 1; k < len(content); k++ {
		if content[k].Type == TypeHeading && content[k].HeadingLevel() <= level {
			j = k
			break
		}
	}
	section = content[i:j]
	remainder = make([]*Node, 0, len(content)-len(section))
	remainder = append(remainder, content[:i]...)
	remainder = append(remainder, content[j:]...)
	return section, remainder
}

// CountSections returns how many top-level headings match label. A document
// is well-formed for extraction only when the count is exactly one; callers
// reject duplicates before extracting.
func CountSections(content []*Node, label string) int {
	count := 0
	for i := 0; i < len(content); {
		j := findHeading(content, label, i)
		if j < 0 {
			break
		}
		count++
		i = j + 1
	}
	return count
}

func findHeading(content []*Node, label string, from int) int {
	want := strings.ToLower(label)
	for i := from; i < len(content); i++ {
		n := content[i]
		if n == nil || n.Type != TypeHeading {
			continue
		}
		if strings.Contains(strings.ToLower(Text(n)), want) {
			return i
		}
	}
	return -1
}
