package annotate

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	minorEditMaxDelta      = 2
	minorEditMinSimilarity = 0.9
)

// IsSignificantChange reports whether an edit should drop the displayed
// highlights and trigger a new analysis. Edits of at most two characters that
// keep the length ratio at 0.9 or above are not significant.
func IsSignificantChange(oldText, newText string) bool {
	delta := utf8.RuneCountInString(newText) - utf8.RuneCountInString(oldText)
	if delta < 0 {
		delta = -delta
	}
	if delta > minorEditMaxDelta {
		return true
	}
	return SimilarityRatio(oldText, newText) < minorEditMinSimilarity
}

// SimilarityRatio is min(len)/max(len) over the trimmed, case-folded texts.
// An empty old text has ratio 0.
func SimilarityRatio(oldText, newText string) float64 {
	a := utf8.RuneCountInString(foldText(oldText))
	b := utf8.RuneCountInString(foldText(newText))
	if a == 0 {
		return 0
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return float64(lo) / float64(hi)
}

func foldText(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}
