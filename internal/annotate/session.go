package annotate

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kobzarvs/capedit/internal/analysis"
)

const (
	DefaultTitleMax   = 40
	DefaultCaptionMax = 500
	DefaultPlatform   = "instagram"
)

// SessionConfig parameterizes a Session. Zero values fall back to defaults.
type SessionConfig struct {
	Vocabulary Vocabulary
	Debounce   time.Duration
	TitleMax   int
	CaptionMax int
	Platform   string
	Campaign   *analysis.CampaignContext
	Clock      Clock
	Logger     *zap.Logger
	// OnChange is called whenever something visible changed, possibly from a
	// background goroutine. It must not call back into the Session.
	OnChange func()
}

func (c *SessionConfig) defaults() {
	if c.TitleMax <= 0 {
		c.TitleMax = DefaultTitleMax
	}
	if c.CaptionMax <= 0 {
		c.CaptionMax = DefaultCaptionMax
	}
	if c.Platform == "" {
		c.Platform = DefaultPlatform
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Session is the annotation state of one open caption editor: the text
// buffer, its suggestion history, the analysis scheduler and the span whose
// detail is open.
type Session struct {
	mu  sync.Mutex
	cfg SessionConfig
	log *zap.Logger

	title        string
	text         string
	initialTitle string
	initialText  string
	history      *History
	sched        *Scheduler
	selected     string
}

func NewSession(analyzer Analyzer, title, caption string, cfg SessionConfig) *Session {
	cfg.defaults()
	title = clampRunes(title, cfg.TitleMax)
	caption = clampRunes(caption, cfg.CaptionMax)
	s := &Session{
		cfg:          cfg,
		log:          cfg.Logger,
		title:        title,
		text:         caption,
		initialTitle: title,
		initialText:  caption,
		history:      NewHistory(caption),
	}
	s.sched = NewScheduler(analyzer, caption, SchedulerConfig{
		Debounce:   cfg.Debounce,
		Clock:      cfg.Clock,
		Vocabulary: cfg.Vocabulary,
		Logger:     cfg.Logger,
		OnChange:   func(AnalysisState) { s.notify() },
	})
	s.sched.SetRequestContext(s.requestContextLocked())
	return s
}

func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Session) Platform() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Platform
}

func (s *Session) Limits() (titleMax, captionMax int) {
	return s.cfg.TitleMax, s.cfg.CaptionMax
}

func (s *Session) Vocabulary() Vocabulary { return s.cfg.Vocabulary }

func (s *Session) State() AnalysisState { return s.sched.State() }

// Fragments renders the current text against the displayed analysis.
func (s *Session) Fragments() []Fragment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BuildFragments(s.text, s.sched.State().Spans)
}

// Dirty reports whether title or caption differ from what the session opened
// with, ignoring surrounding whitespace.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(s.title) != strings.TrimSpace(s.initialTitle) ||
		strings.TrimSpace(s.text) != strings.TrimSpace(s.initialText)
}

// MarkSaved makes the current title and caption the clean baseline.
func (s *Session) MarkSaved() {
	s.mu.Lock()
	s.initialTitle = s.title
	s.initialText = s.text
	s.mu.Unlock()
}

// Edit replaces the caption after a user edit. Text beyond the caption limit
// is clamped.
func (s *Session) Edit(newText string) {
	s.mu.Lock()
	newText = clampRunes(newText, s.cfg.CaptionMax)
	if newText == s.text {
		s.mu.Unlock()
		return
	}
	s.text = newText
	s.closeDetailLocked()
	s.sched.OnEdit(newText)
	s.mu.Unlock()
	s.notify()
}

func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	title = clampRunes(title, s.cfg.TitleMax)
	if title == s.title {
		s.mu.Unlock()
		return
	}
	s.title = title
	s.sched.SetRequestContext(s.requestContextLocked())
	s.mu.Unlock()
	s.notify()
}

func (s *Session) SetPlatform(platform string) {
	s.mu.Lock()
	if platform == "" {
		platform = DefaultPlatform
	}
	s.cfg.Platform = platform
	s.sched.SetRequestContext(s.requestContextLocked())
	s.mu.Unlock()
	s.notify()
}

func (s *Session) Focus() { s.sched.OnFocus() }

func (s *Session) Blur() { s.sched.OnBlur() }

// Analyze requests an analysis of the current caption right away.
func (s *Session) Analyze() { s.sched.RunAnalysis() }

// Click opens the detail of the span at offset, if any.
func (s *Session) Click(offset int) bool {
	s.mu.Lock()
	span, ok := SpanAt(s.sched.State().Spans, offset)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.selected = span.ID
	s.sched.SetViewing(true)
	s.mu.Unlock()
	s.log.Debug("span opened", zap.String("span_id", span.ID), zap.Int("start", span.Start))
	s.notify()
	return true
}

// Detail returns the span whose detail is open. A span that vanished with a
// newer analysis closes the detail.
func (s *Session) Detail() (MappedSpan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detailLocked()
}

func (s *Session) CloseDetail() {
	s.mu.Lock()
	s.closeDetailLocked()
	s.mu.Unlock()
	s.notify()
}

// ApplySuggestion rewrites the open span with one of its suggestions as a
// single undoable step and schedules a fresh analysis.
func (s *Session) ApplySuggestion(suggestionID string) error {
	s.mu.Lock()
	span, ok := s.detailLocked()
	if !ok {
		s.mu.Unlock()
		return ErrNoSelection
	}
	sug, ok := span.Suggestion(suggestionID)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownSuggestion, suggestionID)
	}
	updated, err := ApplySuggestion(s.text, span, sug)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.history.Push(s.text)
	s.history.Push(updated)
	s.text = updated
	s.closeDetailLocked()
	s.sched.Invalidate(updated)
	s.mu.Unlock()
	s.log.Info("suggestion applied", zap.String("span_id", span.ID), zap.String("suggestion_id", sug.ID))
	s.notify()
	return nil
}

func (s *Session) Undo() bool {
	return s.step((*History).Undo)
}

func (s *Session) Redo() bool {
	return s.step((*History).Redo)
}

func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanUndo()
}

func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.CanRedo()
}

// Close releases the scheduler. The session must not be used afterwards.
func (s *Session) Close() { s.sched.Close() }

func (s *Session) step(move func(*History) (string, bool)) bool {
	s.mu.Lock()
	text, ok := move(s.history)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.text = text
	s.closeDetailLocked()
	s.sched.Invalidate(text)
	s.mu.Unlock()
	s.notify()
	return true
}

func (s *Session) detailLocked() (MappedSpan, bool) {
	if s.selected == "" {
		return MappedSpan{}, false
	}
	for _, span := range s.sched.State().Spans {
		if span.ID == s.selected {
			return span, true
		}
	}
	s.closeDetailLocked()
	return MappedSpan{}, false
}

func (s *Session) closeDetailLocked() {
	s.selected = ""
	s.sched.SetViewing(false)
}

func (s *Session) requestContextLocked() RequestContext {
	return RequestContext{
		Title:    strings.TrimSpace(s.title),
		Platform: s.cfg.Platform,
		Campaign: s.cfg.Campaign,
	}
}

func (s *Session) notify() {
	if s.cfg.OnChange != nil {
		s.cfg.OnChange()
	}
}

func clampRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
