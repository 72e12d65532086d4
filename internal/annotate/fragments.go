package annotate

// BuildFragments partitions text into plain and annotated fragments. spans
// must be sorted and disjoint (Anchor's output). Concatenating the fragment
// texts always yields text.
func BuildFragments(text string, spans []MappedSpan) []Fragment {
	buf := []rune(text)
	frags := make([]Fragment, 0, 2*len(spans)+1)
	cursor := 0
	for i := range spans {
		span := &spans[i]
		if span.Start < cursor || span.End > len(buf) || span.Start >= span.End {
			continue
		}
		if span.Start > cursor {
			frags = append(frags, Fragment{Text: string(buf[cursor:span.Start]), Start: cursor, End: span.Start})
		}
		frags = append(frags, Fragment{Text: string(buf[span.Start:span.End]), Start: span.Start, End: span.End, Span: span})
		cursor = span.End
	}
	if cursor < len(buf) {
		frags = append(frags, Fragment{Text: string(buf[cursor:]), Start: cursor, End: len(buf)})
	}
	return frags
}

// SpanAt returns the span containing offset. Both ends are inclusive so a
// cursor parked right after a span still selects it.
func SpanAt(spans []MappedSpan, offset int) (MappedSpan, bool) {
	for _, span := range spans {
		if offset >= span.Start && offset <= span.End {
			return span, true
		}
	}
	return MappedSpan{}, false
}
