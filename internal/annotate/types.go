// Package annotate anchors advisory spans onto a live caption buffer and
// drives the edit/analyze/apply cycle of one caption editor.
package annotate

import (
	"strings"

	"github.com/kobzarvs/capedit/internal/analysis"
)

// MappedSpan is a RawSpan resolved onto the current buffer. Start and End are
// code point offsets with 0 <= Start < End <= len(buffer).
type MappedSpan struct {
	analysis.RawSpan
	Start int
	End   int
}

// Suggestion returns the suggestion with the given id.
func (m MappedSpan) Suggestion(id string) (analysis.Suggestion, bool) {
	for _, sug := range m.Suggestions {
		if sug.ID == id {
			return sug, true
		}
	}
	return analysis.Suggestion{}, false
}

// Fragment is a contiguous slice of the buffer, plain when Span is nil.
type Fragment struct {
	Text  string
	Start int
	End   int
	Span  *MappedSpan
}

// SeverityLevel is one entry of a severity vocabulary.
type SeverityLevel struct {
	Name  analysis.Severity
	Label string
}

// Vocabulary is the ordered set of severities a session understands. The
// first level is the fallback for unknown or empty severities.
type Vocabulary struct {
	levels []SeverityLevel
}

func DefaultVocabulary() Vocabulary {
	return NewVocabulary(
		SeverityLevel{Name: analysis.SeverityMinor, Label: "Minor issue"},
		SeverityLevel{Name: analysis.SeverityMajor, Label: "Major issue"},
		SeverityLevel{Name: analysis.SeverityBlocker, Label: "Blocker"},
	)
}

func NewVocabulary(levels ...SeverityLevel) Vocabulary {
	if len(levels) == 0 {
		return DefaultVocabulary()
	}
	return Vocabulary{levels: append([]SeverityLevel(nil), levels...)}
}

func (v Vocabulary) Levels() []SeverityLevel {
	if len(v.levels) == 0 {
		return DefaultVocabulary().levels
	}
	return v.levels
}

// Highest is the most severe level, the last one in the vocabulary.
func (v Vocabulary) Highest() analysis.Severity {
	levels := v.Levels()
	return levels[len(levels)-1].Name
}

func (v Vocabulary) Normalize(s analysis.Severity) analysis.Severity {
	levels := v.Levels()
	name := analysis.Severity(strings.ToLower(strings.TrimSpace(string(s))))
	for _, lvl := range levels {
		if lvl.Name == name {
			return lvl.Name
		}
	}
	return levels[0].Name
}

func (v Vocabulary) Label(s analysis.Severity) string {
	name := v.Normalize(s)
	for _, lvl := range v.Levels() {
		if lvl.Name == name {
			if lvl.Label != "" {
				return lvl.Label
			}
			return string(lvl.Name)
		}
	}
	return string(name)
}
