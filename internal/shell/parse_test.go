package shell

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"storyforge/internal/adf"
)

func text(s string, marks ...adf.Mark) *adf.Node {
	n := &adf.Node{Type: adf.TypeText, Text: s}
	if len(marks) > 0 {
		n.Marks = marks
	}
	return n
}

func code(s string) *adf.Node { return text(s, adf.Mark{Type: adf.MarkCode}) }

func hardBreak() *adf.Node { return &adf.Node{Type: adf.TypeHardBreak} }

func link(url string) adf.Mark {
	return adf.Mark{Type: adf.MarkLink, Attrs: map[string]any{"href": url}}
}

func paragraph(inlines ...*adf.Node) *adf.Node {
	return &adf.Node{Type: adf.TypeParagraph, Content: inlines}
}

func listItem(children ...*adf.Node) *adf.Node {
	return &adf.Node{Type: adf.TypeListItem, Content: children}
}

func bulletList(items ...*adf.Node) *adf.Node {
	return &adf.Node{Type: adf.TypeBulletList, Content: items}
}

func sectionWith(items ...*adf.Node) []*adf.Node {
	return []*adf.Node{
		{Type: adf.TypeHeading, Attrs: map[string]any{"level": 2},
			Content: []*adf.Node{text("Shell Stories")}},
		bulletList(items...),
	}
}

// storyItem builds the canonical `st001` Title ⟩ description shape.
func storyItem(id, title, desc string, nested ...*adf.Node) *adf.Node {
	children := []*adf.Node{paragraph(
		code(id),
		text(" "),
		text(title, adf.Mark{Type: adf.MarkStrong}),
		text(" ⟩ "+desc),
	)}
	if len(nested) > 0 {
		children = append(children, bulletList(nested...))
	}
	return listItem(children...)
}

func TestParseRecords_MinimalItem(t *testing.T) {
	section := sectionWith(storyItem("st001", "Login", "desc"))

	records, err := ParseRecords(section)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	want := Record{
		ID:           "st001",
		Title:        "Login",
		Description:  "desc",
		Screens:      []string{},
		Dependencies: []string{},
	}
	if diff := cmp.Diff(want, records[0], cmpopts.IgnoreFields(Record{}, "Source")); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	if records[0].Source == nil {
		t.Error("source subtree must be retained")
	}
	if records[0].Completed() {
		t.Error("record without a title link is not completed")
	}
}

func TestParseRecords_ScreensAndDependencies(t *testing.T) {
	section := sectionWith(storyItem("st002", "Checkout", "pay for the cart",
		listItem(paragraph(
			text("SCREENS: "),
			text("cart", link("https://figma.com/design/f/a?node-id=1-2")),
			hardBreak(),
			text("payment", link("https://figma.com/design/f/a?node-id=3-4")),
		)),
		listItem(paragraph(text("DEPENDENCIES: st001, st003"))),
	))

	records, err := ParseRecords(section)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := records[0]

	wantScreens := []string{
		"https://figma.com/design/f/a?node-id=1-2",
		"https://figma.com/design/f/a?node-id=3-4",
	}
	if diff := cmp.Diff(wantScreens, rec.Screens); diff != "" {
		t.Errorf("screens mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"st001", "st003"}, rec.Dependencies); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRecords_DependenciesNoneIsEmpty(t *testing.T) {
	section := sectionWith(storyItem("st001", "Login", "desc",
		listItem(paragraph(text("DEPENDENCIES: None"))),
	))
	records, err := ParseRecords(section)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records[0].Dependencies) != 0 {
		t.Errorf("expected empty dependencies for None, got %v", records[0].Dependencies)
	}
}

func TestParseRecords_UnknownNestedLabelIgnoredButRetained(t *testing.T) {
	section := sectionWith(storyItem("st001", "Login", "desc",
		listItem(paragraph(text("NOTES: keep the old flow around"))),
	))
	records, err := ParseRecords(section)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := records[0]
	if len(rec.Screens) != 0 || len(rec.Dependencies) != 0 {
		t.Errorf("unknown label must not populate fields: %+v", rec)
	}
	nested := adf.FindChild(rec.Source, adf.TypeBulletList)
	if nested == nil || len(nested.Content) != 1 {
		t.Fatal("unknown nested item must survive in the source subtree")
	}
}

func TestParseRecords_CompletionLinkDetected(t *testing.T) {
	section := sectionWith(listItem(paragraph(
		code("st001"),
		text(" "),
		text("Login", link("https://jira.example.com/browse/PROJ-7")),
		text(" ⟩ desc"),
		text(" "),
		text("2026-08-29T10:00:00Z", adf.Mark{Type: adf.MarkEm}),
	)))

	records, err := ParseRecords(section)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec := records[0]
	if rec.ReferenceURL != "https://jira.example.com/browse/PROJ-7" {
		t.Errorf("reference url wrong: %q", rec.ReferenceURL)
	}
	if !rec.Completed() {
		t.Error("record with linked title must report completed")
	}
	if rec.Description != "desc" {
		t.Errorf("timestamp trailer must not leak into description: %q", rec.Description)
	}
}

func TestParseRecords_HardBreakBecomesNewline(t *testing.T) {
	section := sectionWith(listItem(paragraph(
		code("st001"),
		text(" Login ⟩ first line"),
		hardBreak(),
		text("second line"),
	)))
	records, err := ParseRecords(section)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].Description != "first line\nsecond line" {
		t.Errorf("hard break must become a literal newline: %q", records[0].Description)
	}
}

func TestParseRecords_MissingIDFails(t *testing.T) {
	section := sectionWith(listItem(paragraph(text("no id here ⟩ desc"))))
	_, err := ParseRecords(section)
	var recErr *RecordError
	if !errors.As(err, &recErr) || recErr.Kind != ErrMissingID {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestParseRecords_BadIDTokenFails(t *testing.T) {
	section := sectionWith(listItem(paragraph(code("NOT-AN-ID"), text(" t ⟩ d"))))
	_, err := ParseRecords(section)
	var recErr *RecordError
	if !errors.As(err, &recErr) || recErr.Kind != ErrMissingID {
		t.Fatalf("expected ErrMissingID for malformed token, got %v", err)
	}
}

func TestParseRecords_MissingSeparatorFailsWithID(t *testing.T) {
	section := sectionWith(listItem(paragraph(code("st004"), text(" title but no separator"))))
	_, err := ParseRecords(section)
	var recErr *RecordError
	if !errors.As(err, &recErr) || recErr.Kind != ErrMissingSeparator {
		t.Fatalf("expected ErrMissingSeparator, got %v", err)
	}
	if recErr.ID != "st004" {
		t.Errorf("error must name the offending id, got %q", recErr.ID)
	}
}

func TestParseRecords_MissingDescriptionFails(t *testing.T) {
	section := sectionWith(listItem(paragraph(code("st005"), text(" title ⟩ "))))
	_, err := ParseRecords(section)
	var recErr *RecordError
	if !errors.As(err, &recErr) || recErr.Kind != ErrMissingDescription {
		t.Fatalf("expected ErrMissingDescription, got %v", err)
	}
}

func TestParseRecords_DocumentOrder(t *testing.T) {
	section := sectionWith(
		storyItem("st002", "B", "b"),
		storyItem("st001", "A", "a"),
	)
	records, err := ParseRecords(section)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].ID != "st002" || records[1].ID != "st001" {
		t.Errorf("records must keep document order: %s, %s", records[0].ID, records[1].ID)
	}
}
