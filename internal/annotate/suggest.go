package annotate

import (
	"errors"
	"fmt"

	"github.com/kobzarvs/capedit/internal/analysis"
)

var (
	ErrRangeOutOfBounds  = errors.New("span range out of bounds")
	ErrNoSelection       = errors.New("no span selected")
	ErrUnknownSuggestion = errors.New("unknown suggestion")
)

// ApplySuggestion replaces buffer[span.Start:span.End] with the suggestion
// text. Everything outside the range is preserved.
func ApplySuggestion(buffer string, span MappedSpan, sug analysis.Suggestion) (string, error) {
	buf := []rune(buffer)
	if span.Start < 0 || span.End > len(buf) || span.Start >= span.End {
		return buffer, fmt.Errorf("apply suggestion %q: %w (%d..%d of %d)", sug.ID, ErrRangeOutOfBounds, span.Start, span.End, len(buf))
	}
	return string(buf[:span.Start]) + sug.Text + string(buf[span.End:]), nil
}
