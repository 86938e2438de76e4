package adf

import (
	"log/slog"
	"strings"
	"testing"
)

func testRenderer() *Renderer {
	return NewRenderer(slog.New(slog.DiscardHandler))
}

func TestRender_HeadingsAndParagraphs(t *testing.T) {
	out := testRenderer().Render([]*Node{
		heading(2, "Shell Stories"),
		para("Plain text."),
	})
	if !strings.Contains(out, "## Shell Stories") {
		t.Errorf("expected level-2 heading prefix, got:\n%s", out)
	}
	if !strings.Contains(out, "Plain text.") {
		t.Errorf("expected paragraph text, got:\n%s", out)
	}
}

func TestRender_InlineMarks(t *testing.T) {
	n := &Node{Type: TypeParagraph, Content: []*Node{
		{Type: TypeText, Text: "st001", Marks: []Mark{{Type: MarkCode}}},
		{Type: TypeText, Text: " "},
		{Type: TypeText, Text: "Login", Marks: []Mark{{Type: MarkStrong}}},
		{Type: TypeText, Text: " docs", Marks: []Mark{
			{Type: MarkLink, Attrs: map[string]any{"href": "https://x"}},
		}},
		{Type: TypeText, Text: " gone", Marks: []Mark{{Type: MarkStrike}}},
	}}
	out := testRenderer().Render([]*Node{n})
	want := "`st001` **Login**[ docs](https://x)~~ gone~~"
	if out != want {
		t.Errorf("rendered %q, want %q", out, want)
	}
}

func TestRender_NestedLists(t *testing.T) {
	list := &Node{Type: TypeBulletList, Content: []*Node{
		{Type: TypeListItem, Content: []*Node{
			para("top"),
			{Type: TypeBulletList, Content: []*Node{
				{Type: TypeListItem, Content: []*Node{para("nested")}},
			}},
		}},
	}}
	out := testRenderer().Render([]*Node{list})
	if !strings.Contains(out, "- top") {
		t.Errorf("missing top-level bullet:\n%s", out)
	}
	if !strings.Contains(out, "  - nested") {
		t.Errorf("nesting must increase indentation:\n%s", out)
	}
}

func TestRender_OrderedListAndCodeBlock(t *testing.T) {
	nodes := []*Node{
		{Type: TypeOrderedList, Content: []*Node{
			{Type: TypeListItem, Content: []*Node{para("first")}},
			{Type: TypeListItem, Content: []*Node{para("second")}},
		}},
		{Type: TypeCodeBlock, Attrs: map[string]any{"language": "go"},
			Content: []*Node{{Type: TypeText, Text: "x := 1"}}},
	}
	out := testRenderer().Render(nodes)
	if !strings.Contains(out, "1. first") || !strings.Contains(out, "2. second") {
		t.Errorf("ordered list numbering wrong:\n%s", out)
	}
	if !strings.Contains(out, "```go\nx := 1\n```") {
		t.Errorf("code fence wrong:\n%s", out)
	}
}

func TestRender_BlockquoteAndTable(t *testing.T) {
	nodes := []*Node{
		{Type: TypeBlockquote, Content: []*Node{para("quoted")}},
		{Type: TypeTable, Content: []*Node{
			{Type: TypeTableRow, Content: []*Node{
				{Type: TypeTableHeader, Content: []*Node{para("ID")}},
				{Type: TypeTableHeader, Content: []*Node{para("Title")}},
			}},
			{Type: TypeTableRow, Content: []*Node{
				{Type: TypeTableCell, Content: []*Node{para("st001")}},
				{Type: TypeTableCell, Content: []*Node{para("Login")}},
			}},
		}},
	}
	out := testRenderer().Render(nodes)
	if !strings.Contains(out, "> quoted") {
		t.Errorf("blockquote prefix missing:\n%s", out)
	}
	if !strings.Contains(out, "| ID | Title |") || !strings.Contains(out, "| --- | --- |") {
		t.Errorf("table header rows wrong:\n%s", out)
	}
	if !strings.Contains(out, "| st001 | Login |") {
		t.Errorf("table body row wrong:\n%s", out)
	}
}

func TestRender_UnknownKindsDegradeGracefully(t *testing.T) {
	nodes := []*Node{
		{Type: "panel", Attrs: map[string]any{"panelType": "info"},
			Content: []*Node{para("inside a panel")}},
		{Type: TypeParagraph, Content: []*Node{
			{Type: "emoji", Attrs: map[string]any{"shortName": ":smile:"}, Text: "🙂"},
		}},
	}
	out := testRenderer().Render(nodes)
	if !strings.Contains(out, "inside a panel") {
		t.Errorf("unknown block must flatten its children:\n%s", out)
	}
	if !strings.Contains(out, "🙂") {
		t.Errorf("unknown inline must fall back to raw text:\n%s", out)
	}
}
