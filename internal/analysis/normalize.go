package analysis

import (
	"strings"

	"github.com/google/uuid"
)

// Normalize drops spans with blank text, fills in missing ids and removes
// suggestions that are blank or identical to the flagged text. Span and
// suggestion text is stored trimmed.
func Normalize(spans []RawSpan) []RawSpan {
	out := make([]RawSpan, 0, len(spans))
	for _, span := range spans {
		if strings.TrimSpace(span.Text) == "" {
			continue
		}
		if span.ID == "" {
			span.ID = uuid.NewString()
		}
		flagged := strings.TrimSpace(span.Text)
		span.Text = flagged
		suggestions := make([]Suggestion, 0, len(span.Suggestions))
		for _, sug := range span.Suggestions {
			text := strings.TrimSpace(sug.Text)
			if text == "" || text == flagged {
				continue
			}
			if sug.ID == "" {
				sug.ID = uuid.NewString()
			}
			sug.Text = text
			suggestions = append(suggestions, sug)
		}
		span.Suggestions = suggestions
		out = append(out, span)
	}
	return out
}
