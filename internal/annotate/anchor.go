package annotate

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kobzarvs/capedit/internal/analysis"
)

type interval struct {
	start int
	end   int
}

// claims is the set of slots already taken during one Anchor call.
type claims []interval

func (c claims) overlaps(start, end int) bool {
	for _, iv := range c {
		if !(end <= iv.start || start >= iv.end) {
			return true
		}
	}
	return false
}

// Anchor resolves spans onto text in the order they were returned. A span
// keeps its offsets only when they are in range, unclaimed and select exactly
// the span's text; otherwise the first unclaimed occurrence of its text is
// used. Spans that cannot be placed are dropped. The result is disjoint and
// sorted by Start.
func Anchor(text string, spans []analysis.RawSpan, vocab Vocabulary) []MappedSpan {
	buf := []rune(text)
	var used claims
	out := make([]MappedSpan, 0, len(spans))
	for _, span := range spans {
		needle := []rune(span.Text)
		if len(needle) == 0 {
			continue
		}
		start, end, ok := offsetSlot(buf, needle, span, used)
		if !ok {
			start, end, ok = searchSlot(buf, needle, used)
		}
		if !ok {
			continue
		}
		used = append(used, interval{start: start, end: end})
		mapped := MappedSpan{RawSpan: span, Start: start, End: end}
		mapped.Severity = vocab.Normalize(span.Severity)
		out = append(out, mapped)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// RequestCaption is text as sent to the service, trimmed of surrounding
// space, and the number of runes cut from its start.
func RequestCaption(text string) (string, int) {
	rest := strings.TrimLeftFunc(text, unicode.IsSpace)
	lead := utf8.RuneCountInString(text[:len(text)-len(rest)])
	return strings.TrimRightFunc(rest, unicode.IsSpace), lead
}

// ShiftOffsets moves offset hints n runes to the right, mapping positions in
// a trimmed caption back onto the full text.
func ShiftOffsets(spans []analysis.RawSpan, n int) []analysis.RawSpan {
	if n == 0 {
		return spans
	}
	out := make([]analysis.RawSpan, len(spans))
	for i, span := range spans {
		if span.StartOffset != nil {
			start := *span.StartOffset + n
			span.StartOffset = &start
		}
		if span.EndOffset != nil {
			end := *span.EndOffset + n
			span.EndOffset = &end
		}
		out[i] = span
	}
	return out
}

func offsetSlot(buf, needle []rune, span analysis.RawSpan, used claims) (int, int, bool) {
	if span.StartOffset == nil || span.EndOffset == nil {
		return 0, 0, false
	}
	start, end := *span.StartOffset, *span.EndOffset
	if start < 0 || end <= start || end > len(buf) {
		return 0, 0, false
	}
	if used.overlaps(start, end) {
		return 0, 0, false
	}
	if !equalRunes(buf[start:end], needle) {
		return 0, 0, false
	}
	return start, end, true
}

func searchSlot(buf, needle []rune, used claims) (int, int, bool) {
	from := 0
	for {
		found := indexRunes(buf, needle, from)
		if found < 0 {
			return 0, 0, false
		}
		end := found + len(needle)
		if !used.overlaps(found, end) {
			return found, end, true
		}
		from = found + 1
	}
}

func indexRunes(buf, needle []rune, from int) int {
	for i := from; i+len(needle) <= len(buf); i++ {
		if equalRunes(buf[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func equalRunes(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
