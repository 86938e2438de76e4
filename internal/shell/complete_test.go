package shell

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"storyforge/internal/adf"
)

var completedAt = time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

const issueURL = "https://jira.example.com/browse/PROJ-42"

func TestMarkCompleted_AddsLinkAndTimestamp(t *testing.T) {
	section := sectionWith(storyItem("st001", "Login", "desc"))

	out, err := MarkCompleted(section, "st001", issueURL, completedAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := ParseRecords(out)
	if err != nil {
		t.Fatalf("mutated section must still parse: %v", err)
	}
	rec := records[0]
	if rec.ReferenceURL != issueURL {
		t.Errorf("title must gain the link mark, got %q", rec.ReferenceURL)
	}

	para := adf.FindChild(rec.Source, adf.TypeParagraph)
	last := para.Content[len(para.Content)-1]
	if !last.HasMark(adf.MarkEm) || last.Text != "2026-08-29T10:00:00Z" {
		t.Errorf("expected trailing em-marked RFC3339 timestamp, got %+v", last)
	}
}

func TestMarkCompleted_Idempotent(t *testing.T) {
	section := sectionWith(storyItem("st001", "Login", "desc"))

	once, err := MarkCompleted(section, "st001", issueURL, completedAt)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	twice, err := MarkCompleted(once, "st001", issueURL, completedAt)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !adf.EqualNodes(once, twice) {
		t.Errorf("marking twice must be a no-op:\n%s", cmp.Diff(once, twice))
	}
}

func TestMarkCompleted_FirstWriteWins(t *testing.T) {
	section := sectionWith(storyItem("st001", "Login", "desc"))

	once, err := MarkCompleted(section, "st001", issueURL, completedAt)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	again, err := MarkCompleted(once, "st001", "https://jira.example.com/browse/OTHER-1", completedAt)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	records, err := ParseRecords(again)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if records[0].ReferenceURL != issueURL {
		t.Errorf("existing link target must be kept, got %q", records[0].ReferenceURL)
	}
}

func TestMarkCompleted_RefreshesTimestampInPlace(t *testing.T) {
	section := sectionWith(storyItem("st001", "Login", "desc"))

	once, _ := MarkCompleted(section, "st001", issueURL, completedAt)
	later := completedAt.Add(48 * time.Hour)
	again, err := MarkCompleted(once, "st001", issueURL, later)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}

	records, _ := ParseRecords(again)
	para := adf.FindChild(records[0].Source, adf.TypeParagraph)

	stamps := 0
	var lastStamp string
	for _, n := range para.Content {
		if n.Type == adf.TypeText && n.HasMark(adf.MarkEm) {
			stamps++
			lastStamp = n.Text
		}
	}
	if stamps != 1 {
		t.Fatalf("expected exactly one timestamp run, got %d", stamps)
	}
	if lastStamp != "2026-08-31T10:00:00Z" {
		t.Errorf("timestamp must be overwritten, got %q", lastStamp)
	}
}

func TestMarkCompleted_DoesNotAliasInput(t *testing.T) {
	section := sectionWith(storyItem("st001", "Login", "desc"))
	snapshot := adf.CloneNodes(section)

	if _, err := MarkCompleted(section, "st001", issueURL, completedAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !adf.EqualNodes(section, snapshot) {
		t.Errorf("input must be unchanged:\n%s", cmp.Diff(snapshot, section))
	}
}

func TestMarkCompleted_UnknownIDFailsCleanly(t *testing.T) {
	section := sectionWith(storyItem("st001", "Login", "desc"))
	snapshot := adf.CloneNodes(section)

	_, err := MarkCompleted(section, "st999", issueURL, completedAt)
	var recErr *RecordError
	if !errors.As(err, &recErr) || recErr.Kind != ErrUnknownID {
		t.Fatalf("expected ErrUnknownID, got %v", err)
	}
	if recErr.ID != "st999" {
		t.Errorf("error must name the missing id, got %q", recErr.ID)
	}
	if !adf.EqualNodes(section, snapshot) {
		t.Error("failed lookup must not corrupt the input")
	}
}

func TestMarkCompleted_RoundTripStability(t *testing.T) {
	section := sectionWith(storyItem("st001", "Login", "first line",
		listItem(paragraph(text("DEPENDENCIES: st002"))),
	))

	before, err := ParseRecords(section)
	if err != nil {
		t.Fatalf("parse before: %v", err)
	}
	out, err := MarkCompleted(section, "st001", issueURL, completedAt)
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	after, err := ParseRecords(out)
	if err != nil {
		t.Fatalf("parse after: %v", err)
	}

	if after[0].ID != before[0].ID ||
		after[0].Title != before[0].Title ||
		after[0].Description != before[0].Description {
		t.Errorf("id/title/description must survive mutation:\nbefore %+v\nafter  %+v",
			before[0], after[0])
	}
	if diff := cmp.Diff(before[0].Dependencies, after[0].Dependencies); diff != "" {
		t.Errorf("dependencies changed (-before +after):\n%s", diff)
	}
}

func TestMarkCompleted_PreservesUnknownAndHardBreakNodes(t *testing.T) {
	unknown := &adf.Node{
		Type:  "mediaSingle",
		Attrs: map[string]any{"layout": "wide"},
	}
	item := listItem(
		paragraph(
			code("st001"),
			text(" Login ⟩ first"),
			hardBreak(),
			text("second"),
		),
		bulletList(listItem(paragraph(text("NOTES: misc")))),
	)
	section := []*adf.Node{
		{Type: adf.TypeHeading, Attrs: map[string]any{"level": 2},
			Content: []*adf.Node{text("Shell Stories")}},
		bulletList(item),
		unknown,
	}

	out, err := MarkCompleted(section, "st001", issueURL, completedAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !adf.Equal(out[2], unknown) {
		t.Error("unknown node kind must pass through unchanged")
	}

	breaks := 0
	adf.Walk(out, func(n *adf.Node, _ []*adf.Node, _ int) bool {
		if n.Type == adf.TypeHardBreak {
			breaks++
		}
		return true
	})
	if breaks != 1 {
		t.Errorf("hard break count changed: %d", breaks)
	}

	nested := adf.FindChild(out[1].Content[0], adf.TypeBulletList)
	if nested == nil || adf.Text(nested) != "NOTES: misc" {
		t.Error("unrecognized nested list must survive mutation")
	}
}

// Title embedded in the same text node as the separator still gets a link
// that covers only the title.
func TestMarkCompleted_SplitsSharedTitleNode(t *testing.T) {
	section := sectionWith(listItem(paragraph(
		code("st001"),
		text(" Login ⟩ desc"),
	)))

	out, err := MarkCompleted(section, "st001", issueURL, completedAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := ParseRecords(out)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rec := records[0]
	if rec.ReferenceURL != issueURL {
		t.Errorf("title must carry the link, got %q", rec.ReferenceURL)
	}
	if rec.Title != "Login" || rec.Description != "desc" {
		t.Errorf("split must not change title/description: %q / %q", rec.Title, rec.Description)
	}

	para := adf.FindChild(rec.Source, adf.TypeParagraph)
	for _, n := range para.Content {
		if href, ok := n.LinkHref(); ok {
			if n.Text != " Login " && n.Text != "Login" {
				t.Errorf("link must cover only title text, covers %q", n.Text)
			}
			_ = href
		}
	}
}

// A title spread over several text nodes where the last word shares its node
// with the separator: every title node gets the link, including the split-off
// trailing word.
func TestMarkCompleted_LinksTrailingTitleWordInSeparatorNode(t *testing.T) {
	section := sectionWith(listItem(paragraph(
		code("st001"),
		text(" Login "),
		text("now ⟩ desc"),
	)))

	out, err := MarkCompleted(section, "st001", issueURL, completedAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := ParseRecords(out)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rec := records[0]
	if rec.Title != "Login now" || rec.Description != "desc" {
		t.Fatalf("title/description = %q / %q", rec.Title, rec.Description)
	}
	if rec.ReferenceURL != issueURL {
		t.Errorf("title must carry the link, got %q", rec.ReferenceURL)
	}

	var linked []string
	itemPara := adf.FindChild(rec.Source, adf.TypeParagraph)
	for _, n := range itemPara.Content {
		if _, ok := n.LinkHref(); ok {
			linked = append(linked, n.Text)
		}
	}
	if diff := cmp.Diff([]string{" Login ", "now "}, linked); diff != "" {
		t.Errorf("linked title runs mismatch (-want +got):\n%s", diff)
	}

	// Re-marking the split result must be a no-op.
	twice, err := MarkCompleted(out, "st001", issueURL, completedAt)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !adf.EqualNodes(out, twice) {
		t.Errorf("marking twice must be a no-op:\n%s", cmp.Diff(out, twice))
	}
}
