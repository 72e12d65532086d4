package annotate

import (
	"testing"

	"github.com/kobzarvs/capedit/internal/analysis"
)

func offset(n int) *int { return &n }

type slot struct {
	Text  string
	Start int
	End   int
}

func slots(text string, spans []MappedSpan) []slot {
	buf := []rune(text)
	out := make([]slot, len(spans))
	for i, s := range spans {
		out[i] = slot{Text: string(buf[s.Start:s.End]), Start: s.Start, End: s.End}
	}
	return out
}

func TestAnchorRecoversDistinctSubstrings(t *testing.T) {
	text := "Great shoes! Buy now. Limited stock."
	spans := []analysis.RawSpan{
		{ID: "c", Text: "Limited stock."},
		{ID: "a", Text: "Great"},
		{ID: "b", Text: "Buy now."},
	}
	got := slots(text, Anchor(text, spans, DefaultVocabulary()))
	want := []slot{
		{Text: "Great", Start: 0, End: 5},
		{Text: "Buy now.", Start: 13, End: 21},
		{Text: "Limited stock.", Start: 22, End: 36},
	}
	if len(got) != len(want) {
		t.Fatalf("anchored %d spans, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("span %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestAnchorBuyNowExample(t *testing.T) {
	text := "Great shoes! Buy now."
	got := Anchor(text, []analysis.RawSpan{{ID: "s1", Text: "Buy now.", Severity: analysis.SeverityMajor}}, DefaultVocabulary())
	if len(got) != 1 {
		t.Fatalf("anchored %d spans, want 1", len(got))
	}
	if got[0].Start != 13 || got[0].End != 21 {
		t.Fatalf("range = %d..%d, want 13..21", got[0].Start, got[0].End)
	}
	if got[0].Severity != analysis.SeverityMajor {
		t.Fatalf("severity = %q, want major", got[0].Severity)
	}
}

func TestAnchorDuplicateTextClaimsNextOccurrence(t *testing.T) {
	text := "Buy now. Buy now."
	spans := []analysis.RawSpan{
		{ID: "first", Text: "Buy now."},
		{ID: "second", Text: "Buy now."},
	}
	got := Anchor(text, spans, DefaultVocabulary())
	if len(got) != 2 {
		t.Fatalf("anchored %d spans, want 2", len(got))
	}
	if got[0].ID != "first" || got[0].Start != 0 || got[0].End != 8 {
		t.Fatalf("first = %s %d..%d, want first 0..8", got[0].ID, got[0].Start, got[0].End)
	}
	if got[1].ID != "second" || got[1].Start != 9 || got[1].End != 17 {
		t.Fatalf("second = %s %d..%d, want second 9..17", got[1].ID, got[1].Start, got[1].End)
	}
}

func TestAnchorThirdDuplicateIsDropped(t *testing.T) {
	text := "go go"
	spans := []analysis.RawSpan{{ID: "1", Text: "go"}, {ID: "2", Text: "go"}, {ID: "3", Text: "go"}}
	if got := Anchor(text, spans, DefaultVocabulary()); len(got) != 2 {
		t.Fatalf("anchored %d spans, want 2", len(got))
	}
}

func TestAnchorTrustsVerifiedOffsets(t *testing.T) {
	text := "buy now or buy now"
	got := Anchor(text, []analysis.RawSpan{
		{ID: "s", Text: "buy now", StartOffset: offset(11), EndOffset: offset(18)},
	}, DefaultVocabulary())
	if len(got) != 1 || got[0].Start != 11 || got[0].End != 18 {
		t.Fatalf("got %+v, want 11..18", slots(text, got))
	}
}

func TestAnchorFallsBackWhenOffsetsDisagree(t *testing.T) {
	tests := []struct {
		name       string
		start, end *int
	}{
		{name: "text mismatch", start: offset(0), end: offset(3)},
		{name: "past end", start: offset(20), end: offset(26)},
		{name: "inverted", start: offset(9), end: offset(6)},
		{name: "negative", start: offset(-1), end: offset(2)},
		{name: "only start", start: offset(6), end: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "Hello, now what"
			got := Anchor(text, []analysis.RawSpan{
				{ID: "s", Text: "now", StartOffset: tt.start, EndOffset: tt.end},
			}, DefaultVocabulary())
			if len(got) != 1 || got[0].Start != 7 || got[0].End != 10 {
				t.Fatalf("got %+v, want now at 7..10", slots(text, got))
			}
		})
	}
}

func TestAnchorOffsetOverlappingEarlierClaimFallsBack(t *testing.T) {
	text := "sale sale"
	got := Anchor(text, []analysis.RawSpan{
		{ID: "a", Text: "sale", StartOffset: offset(0), EndOffset: offset(4)},
		{ID: "b", Text: "sale", StartOffset: offset(0), EndOffset: offset(4)},
	}, DefaultVocabulary())
	if len(got) != 2 {
		t.Fatalf("anchored %d spans, want 2", len(got))
	}
	if got[1].ID != "b" || got[1].Start != 5 {
		t.Fatalf("second = %s at %d, want b at 5", got[1].ID, got[1].Start)
	}
}

func TestAnchorDropsMissingAndEmptySpans(t *testing.T) {
	text := "Nothing to see here"
	got := Anchor(text, []analysis.RawSpan{
		{ID: "missing", Text: "Buy now."},
		{ID: "empty", Text: "", StartOffset: offset(0), EndOffset: offset(3)},
	}, DefaultVocabulary())
	if len(got) != 0 {
		t.Fatalf("anchored %d spans, want 0", len(got))
	}
}

func TestAnchorCountsCodePoints(t *testing.T) {
	text := "Café ☕ time"
	got := Anchor(text, []analysis.RawSpan{
		{ID: "t", Text: "time"},
		{ID: "c", Text: "☕", StartOffset: offset(5), EndOffset: offset(6)},
	}, DefaultVocabulary())
	want := []slot{{Text: "☕", Start: 5, End: 6}, {Text: "time", Start: 7, End: 11}}
	gotSlots := slots(text, got)
	if len(gotSlots) != 2 || gotSlots[0] != want[0] || gotSlots[1] != want[1] {
		t.Fatalf("got %+v, want %+v", gotSlots, want)
	}
}

func TestAnchorNormalizesSeverity(t *testing.T) {
	got := Anchor("abc", []analysis.RawSpan{{ID: "x", Text: "b", Severity: "catastrophic"}}, DefaultVocabulary())
	if len(got) != 1 || got[0].Severity != analysis.SeverityMinor {
		t.Fatalf("severity = %q, want minor", got[0].Severity)
	}
	custom := NewVocabulary(SeverityLevel{Name: "note"}, SeverityLevel{Name: "blocker"})
	got = Anchor("abc", []analysis.RawSpan{{ID: "x", Text: "b", Severity: "BLOCKER"}}, custom)
	if got[0].Severity != "blocker" {
		t.Fatalf("severity = %q, want blocker", got[0].Severity)
	}
	if label := custom.Label("missing"); label != "note" {
		t.Fatalf("label = %q, want note", label)
	}
}

func TestRequestCaption(t *testing.T) {
	tests := []struct {
		text    string
		caption string
		lead    int
	}{
		{"Great shoes!", "Great shoes!", 0},
		{"  Great shoes!\n", "Great shoes!", 2},
		{" \tÜber cool ", "Über cool", 2},
		{"   ", "", 3},
	}
	for _, tt := range tests {
		caption, lead := RequestCaption(tt.text)
		if caption != tt.caption || lead != tt.lead {
			t.Fatalf("RequestCaption(%q) = %q, %d, want %q, %d", tt.text, caption, lead, tt.caption, tt.lead)
		}
	}
}

func TestShiftOffsetsLeavesInputAlone(t *testing.T) {
	spans := []analysis.RawSpan{
		{ID: "a", Text: "Sale!", StartOffset: offset(6), EndOffset: offset(11)},
		{ID: "b", Text: "now"},
	}
	got := ShiftOffsets(spans, 3)
	if *got[0].StartOffset != 9 || *got[0].EndOffset != 14 {
		t.Fatalf("shifted = %d..%d, want 9..14", *got[0].StartOffset, *got[0].EndOffset)
	}
	if got[1].StartOffset != nil || got[1].EndOffset != nil {
		t.Fatalf("span without offsets gained some: %+v", got[1])
	}
	if *spans[0].StartOffset != 6 {
		t.Fatalf("input offsets modified: %d", *spans[0].StartOffset)
	}
}
