package annotate

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kobzarvs/capedit/internal/analysis"
)

const DefaultDebounce = 1200 * time.Millisecond

// Analyzer is the advisory service as seen by the scheduler.
type Analyzer interface {
	Draft(ctx context.Context, req analysis.DraftRequest) (analysis.DraftResponse, error)
}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// AnalysisState is what the UI displays. Spans are anchored onto the text the
// scheduler currently holds.
type AnalysisState struct {
	RequestID        uint64
	Status           Status
	Spans            []MappedSpan
	LastAnalyzedText string
	Err              string
	// Stale is set when the service reports the post changed after its snapshot.
	Stale bool
}

// RequestContext is sent with every analysis request.
type RequestContext struct {
	Title    string
	Platform string
	Campaign *analysis.CampaignContext
}

type SchedulerConfig struct {
	Debounce   time.Duration
	Clock      Clock
	Vocabulary Vocabulary
	Logger     *zap.Logger
	// OnChange is called after every state transition, outside the scheduler
	// lock. It must not block.
	OnChange func(AnalysisState)
}

// Scheduler debounces edits into analysis requests and keeps only the result
// of the latest request.
type Scheduler struct {
	mu       sync.Mutex
	analyzer Analyzer
	clock    Clock
	debounce time.Duration
	vocab    Vocabulary
	log      *zap.Logger
	onChange func(AnalysisState)

	text        string
	reqCtx      RequestContext
	counter     uint64
	timer       Timer
	timerGen    uint64
	cancel      context.CancelFunc
	pendingText string
	raw         []analysis.RawSpan
	state       AnalysisState
	viewing     bool
	closed      bool
	wg          sync.WaitGroup
}

func NewScheduler(analyzer Analyzer, text string, cfg SchedulerConfig) *Scheduler {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Scheduler{
		analyzer: analyzer,
		clock:    cfg.Clock,
		debounce: cfg.Debounce,
		vocab:    cfg.Vocabulary,
		log:      cfg.Logger,
		onChange: cfg.OnChange,
		text:     text,
		state:    AnalysisState{Status: StatusIdle},
	}
}

// State returns a copy of the current analysis state.
func (s *Scheduler) State() AnalysisState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Scheduler) SetRequestContext(rc RequestContext) {
	s.mu.Lock()
	s.reqCtx = rc
	s.mu.Unlock()
}

// OnEdit records newText. Significant changes clear the displayed analysis
// and arm the debounce timer. Minor ones keep the highlights, re-anchored,
// and restart a debounce that is already running.
func (s *Scheduler) OnEdit(newText string) {
	s.update(func() bool {
		old := s.text
		s.text = newText
		if !IsSignificantChange(old, newText) {
			// Typing keeps postponing a pending analysis. Nothing is armed
			// while a result is displayed or a request is in flight.
			if !s.viewing && (s.timer != nil || (s.state.Status == StatusIdle && strings.TrimSpace(newText) != "")) {
				s.armLocked()
			}
			if len(s.raw) == 0 {
				return false
			}
			s.state.Spans = Anchor(newText, s.raw, s.vocab)
			return true
		}
		s.clearLocked()
		s.armLocked()
		return true
	})
}

// OnFocus analyzes immediately when there is text and nothing pending or
// displayed, e.g. an editor opened on a caption never analyzed.
func (s *Scheduler) OnFocus() {
	s.update(func() bool {
		if strings.TrimSpace(s.text) == "" {
			return false
		}
		if s.state.Status == StatusPending || s.state.Status == StatusReady {
			return false
		}
		return s.runLocked()
	})
}

// OnBlur re-analyzes when the text moved away from the last analyzed text.
// It does nothing while a span is being viewed.
func (s *Scheduler) OnBlur() {
	s.update(func() bool {
		if s.viewing {
			return false
		}
		s.stopTimerLocked()
		current := strings.TrimSpace(s.text)
		if current == strings.TrimSpace(s.state.LastAnalyzedText) {
			return false
		}
		if s.state.Status == StatusPending && current == strings.TrimSpace(s.pendingText) {
			return false
		}
		return s.runLocked()
	})
}

// SetViewing marks a span detail as open. Opening one cancels the pending
// debounce so highlights stay put underneath it.
func (s *Scheduler) SetViewing(viewing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewing = viewing
	if viewing {
		s.stopTimerLocked()
	}
}

// Invalidate replaces the text, clears the analysis and schedules a new one.
// Offsets shift after a rewrite, so nothing is re-anchored.
func (s *Scheduler) Invalidate(newText string) {
	s.update(func() bool {
		s.text = newText
		s.clearLocked()
		s.armLocked()
		return true
	})
}

// RunAnalysis issues a request for the current text right away.
func (s *Scheduler) RunAnalysis() {
	s.update(s.runLocked)
}

// Close stops the timer, cancels the in-flight request and waits for request
// goroutines to finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopTimerLocked()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) update(fn func() bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	changed := fn()
	st := s.snapshotLocked()
	s.mu.Unlock()
	if changed && s.onChange != nil {
		s.onChange(st)
	}
}

func (s *Scheduler) snapshotLocked() AnalysisState {
	st := s.state
	st.Spans = slices.Clone(s.state.Spans)
	return st
}

func (s *Scheduler) clearLocked() {
	s.raw = nil
	s.state.Spans = nil
	s.state.Err = ""
	s.state.Stale = false
	s.state.Status = StatusIdle
	s.state.LastAnalyzedText = ""
}

func (s *Scheduler) armLocked() {
	s.stopTimerLocked()
	s.timerGen++
	gen := s.timerGen
	s.timer = s.clock.AfterFunc(s.debounce, func() { s.fire(gen) })
}

func (s *Scheduler) stopTimerLocked() {
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	s.timer = nil
	// A callback that already started sees a newer generation and returns.
	s.timerGen++
}

func (s *Scheduler) fire(gen uint64) {
	s.update(func() bool {
		if gen != s.timerGen {
			return false
		}
		s.timer = nil
		return s.runLocked()
	})
}

func (s *Scheduler) runLocked() bool {
	s.stopTimerLocked()
	caption, lead := RequestCaption(s.text)
	if caption == "" {
		s.clearLocked()
		return true
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.counter++
	id := s.counter
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.pendingText = s.text
	s.state.RequestID = id
	s.state.Status = StatusPending
	s.state.Err = ""

	req := analysis.DraftRequest{
		Title:           s.reqCtx.Title,
		Caption:         caption,
		Platform:        s.reqCtx.Platform,
		CampaignContext: s.reqCtx.Campaign,
	}
	analyzed := s.text
	s.log.Debug("analysis requested", zap.Uint64("request_id", id), zap.Int("caption_len", len(caption)))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		resp, err := s.analyzer.Draft(ctx, req)
		resp.Spans = ShiftOffsets(resp.Spans, lead)
		s.complete(id, analyzed, resp, err)
	}()
	return true
}

func (s *Scheduler) complete(id uint64, analyzed string, resp analysis.DraftResponse, err error) {
	s.mu.Lock()
	if s.closed || id != s.counter {
		current := s.counter
		s.mu.Unlock()
		s.log.Debug("discarding stale analysis", zap.Uint64("request_id", id), zap.Uint64("current", current))
		return
	}
	s.cancel = nil
	s.pendingText = ""
	s.state.LastAnalyzedText = analyzed
	if err != nil {
		s.raw = nil
		s.state.Spans = nil
		s.state.Stale = false
		s.state.Status = StatusError
		s.state.Err = err.Error()
		s.log.Warn("analysis failed", zap.Uint64("request_id", id), zap.Error(err))
	} else {
		s.raw = resp.Spans
		s.state.Spans = Anchor(s.text, resp.Spans, s.vocab)
		s.state.Stale = resp.PostUpdatedAfterSnapshot
		s.state.Status = StatusReady
		s.state.Err = ""
		if dropped := len(resp.Spans) - len(s.state.Spans); dropped > 0 {
			s.log.Debug("spans not anchored", zap.Uint64("request_id", id), zap.Int("dropped", dropped))
		}
	}
	st := s.snapshotLocked()
	s.mu.Unlock()
	if s.onChange != nil {
		s.onChange(st)
	}
}
