package annotate

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/kobzarvs/capedit/internal/analysis"
)

type reply struct {
	resp analysis.DraftResponse
	err  error
}

type call struct {
	ctx   context.Context
	req   analysis.DraftRequest
	reply chan reply
}

func (c call) respond(spans ...analysis.RawSpan) {
	c.reply <- reply{resp: analysis.DraftResponse{Status: "ok", Spans: spans}}
}

func (c call) fail(err error) {
	c.reply <- reply{err: err}
}

// scriptedAnalyzer hands every request to the test, which answers it.
type scriptedAnalyzer struct {
	calls        chan call
	ignoreCancel bool
}

func newScriptedAnalyzer() *scriptedAnalyzer {
	return &scriptedAnalyzer{calls: make(chan call, 16)}
}

func (a *scriptedAnalyzer) Draft(ctx context.Context, req analysis.DraftRequest) (analysis.DraftResponse, error) {
	c := call{ctx: ctx, req: req, reply: make(chan reply, 1)}
	a.calls <- c
	if a.ignoreCancel {
		r := <-c.reply
		return r.resp, r.err
	}
	select {
	case r := <-c.reply:
		return r.resp, r.err
	case <-ctx.Done():
		return analysis.DraftResponse{}, ctx.Err()
	}
}

func (a *scriptedAnalyzer) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-a.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("no analysis request issued")
		return call{}
	}
}

func newTestScheduler(a Analyzer, text string, clock Clock) *Scheduler {
	return NewScheduler(a, text, SchedulerConfig{Clock: clock, Vocabulary: DefaultVocabulary()})
}

type stater interface {
	State() AnalysisState
}

func eventually(t *testing.T, s stater, cond func(AnalysisState) bool) AnalysisState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		st := s.State()
		if cond(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("state not reached, last %+v", st)
		}
		time.Sleep(time.Millisecond)
	}
}

func isReady(st AnalysisState) bool { return st.Status == StatusReady }

func TestSchedulerDebounce(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := newManualClock()
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "", clock)
	defer s.Close()

	s.OnEdit("Great")
	s.OnEdit("Great shoes! Buy now.")
	if n := clock.Armed(); n != 1 {
		t.Fatalf("armed timers = %d, want 1", n)
	}
	clock.Advance(DefaultDebounce - time.Millisecond)
	if st := s.State(); st.Status != StatusIdle || st.RequestID != 0 {
		t.Fatalf("state before debounce = %+v, want idle without request", st)
	}
	clock.Advance(time.Millisecond)
	if st := s.State(); st.Status != StatusPending || st.RequestID != 1 {
		t.Fatalf("state after debounce = %+v, want pending request 1", st)
	}
	c := a.next(t)
	if c.req.Caption != "Great shoes! Buy now." {
		t.Fatalf("caption = %q", c.req.Caption)
	}
	c.respond(analysis.RawSpan{ID: "s1", Text: "Buy now.", Severity: analysis.SeverityMajor})
	st := eventually(t, s, isReady)
	if len(st.Spans) != 1 || st.Spans[0].Start != 13 || st.Spans[0].End != 21 {
		t.Fatalf("spans = %+v, want Buy now. at 13..21", st.Spans)
	}
	if st.LastAnalyzedText != "Great shoes! Buy now." {
		t.Fatalf("LastAnalyzedText = %q", st.LastAnalyzedText)
	}
}

func TestSchedulerTypingPostponesAnalysis(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := newManualClock()
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "", clock)
	defer s.Close()

	caption := "Great shoes for winter. Buy now."
	typed := []rune{}
	for _, r := range caption {
		typed = append(typed, r)
		s.OnEdit(string(typed))
		clock.Advance(150 * time.Millisecond)
	}
	if st := s.State(); st.RequestID != 0 {
		t.Fatalf("RequestID = %d while typing, want 0", st.RequestID)
	}
	if n := clock.Armed(); n != 1 {
		t.Fatalf("armed timers = %d, want 1", n)
	}

	clock.Advance(DefaultDebounce)
	c := a.next(t)
	if c.req.Caption != caption {
		t.Fatalf("caption = %q, want %q", c.req.Caption, caption)
	}
	c.respond()
	if st := eventually(t, s, isReady); st.RequestID != 1 {
		t.Fatalf("RequestID = %d, want 1", st.RequestID)
	}
}

func TestSchedulerRequestCarriesContext(t *testing.T) {
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "  Great shoes!  ", newManualClock())
	defer s.Close()
	campaign := &analysis.CampaignContext{Overview: "Spring running line"}
	s.SetRequestContext(RequestContext{Title: "Spring drop", Platform: "tiktok", Campaign: campaign})
	s.RunAnalysis()
	c := a.next(t)
	if c.req.Caption != "Great shoes!" || c.req.Title != "Spring drop" || c.req.Platform != "tiktok" {
		t.Fatalf("request = %+v", c.req)
	}
	if c.req.CampaignContext != campaign {
		t.Fatalf("campaign context not forwarded")
	}
}

func TestSchedulerKeepsLatestResponse(t *testing.T) {
	defer goleak.VerifyNone(t)
	a := newScriptedAnalyzer()
	a.ignoreCancel = true
	s := newTestScheduler(a, "Buy now. Limited stock.", newManualClock())

	s.RunAnalysis()
	first := a.next(t)
	s.RunAnalysis()
	second := a.next(t)

	second.respond(analysis.RawSpan{ID: "new", Text: "Limited stock."})
	st := eventually(t, s, isReady)
	if st.RequestID != 2 {
		t.Fatalf("RequestID = %d, want 2", st.RequestID)
	}
	first.respond(analysis.RawSpan{ID: "old", Text: "Buy now."})
	// let the first request's goroutine finish while the scheduler is open
	s.wg.Wait()

	st = s.State()
	if st.RequestID != 2 || len(st.Spans) != 1 || st.Spans[0].ID != "new" {
		t.Fatalf("state = %+v, want only the second response", st)
	}
	s.Close()
}

func TestSchedulerDiscardsSupersededCompletion(t *testing.T) {
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "Buy now.", newManualClock())
	defer s.Close()
	s.RunAnalysis()
	s.RunAnalysis()
	before := s.State()

	s.complete(1, "Buy now.", analysis.DraftResponse{Spans: []analysis.RawSpan{{ID: "old", Text: "Buy"}}}, nil)
	after := s.State()
	if after.Status != before.Status || len(after.Spans) != 0 || after.LastAnalyzedText != "" {
		t.Fatalf("superseded completion mutated state: %+v", after)
	}
}

func TestSchedulerCancelsPreviousRequest(t *testing.T) {
	defer goleak.VerifyNone(t)
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "Great shoes!", newManualClock())
	defer s.Close()

	s.RunAnalysis()
	first := a.next(t)
	s.RunAnalysis()
	a.next(t)
	select {
	case <-first.ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("previous request context not cancelled")
	}
	if !errors.Is(first.ctx.Err(), context.Canceled) {
		t.Fatalf("ctx err = %v, want canceled", first.ctx.Err())
	}
}

func TestSchedulerMinorEditKeepsHighlights(t *testing.T) {
	clock := newManualClock()
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "Hello world", clock)
	defer s.Close()

	s.RunAnalysis()
	a.next(t).respond(analysis.RawSpan{ID: "w", Text: "world"})
	eventually(t, s, isReady)

	s.OnEdit("Hello world!")
	st := s.State()
	if st.Status != StatusReady || len(st.Spans) != 1 || st.Spans[0].Start != 6 {
		t.Fatalf("state after minor edit = %+v, want highlights kept", st)
	}
	if n := clock.Armed(); n != 0 {
		t.Fatalf("armed timers = %d, want 0", n)
	}

	s.OnEdit("Completely different sentence")
	st = s.State()
	if st.Status != StatusIdle || len(st.Spans) != 0 {
		t.Fatalf("state after rewrite = %+v, want cleared", st)
	}
	if n := clock.Armed(); n != 1 {
		t.Fatalf("armed timers = %d, want 1", n)
	}
}

func TestSchedulerMinorEditReanchorsSpans(t *testing.T) {
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "Buy now. Hurry", newManualClock())
	defer s.Close()

	s.RunAnalysis()
	a.next(t).respond(analysis.RawSpan{ID: "h", Text: "Hurry"})
	eventually(t, s, isReady)

	s.OnEdit("Buy now! Hurry")
	s.OnEdit("Buy now!! Hurry")
	st := s.State()
	if len(st.Spans) != 1 || st.Spans[0].Start != 10 || st.Spans[0].End != 15 {
		t.Fatalf("spans = %+v, want Hurry at 10..15", st.Spans)
	}
}

func TestSchedulerAnchorsAgainstCurrentText(t *testing.T) {
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "Buy now.", newManualClock())
	defer s.Close()

	s.RunAnalysis()
	c := a.next(t)
	s.OnEdit("Hey! Buy now.")
	c.respond(analysis.RawSpan{ID: "b", Text: "Buy now.", StartOffset: offset(0), EndOffset: offset(8)})
	st := eventually(t, s, isReady)
	if len(st.Spans) != 1 || st.Spans[0].Start != 5 || st.Spans[0].End != 13 {
		t.Fatalf("spans = %+v, want Buy now. at 5..13", st.Spans)
	}
	if st.LastAnalyzedText != "Buy now." {
		t.Fatalf("LastAnalyzedText = %q, want the analyzed text", st.LastAnalyzedText)
	}
}

func TestSchedulerBlur(t *testing.T) {
	clock := newManualClock()
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "", clock)
	defer s.Close()

	s.OnEdit("Fresh caption text")
	s.OnBlur()
	if n := clock.Armed(); n != 0 {
		t.Fatalf("armed timers = %d, want 0 after blur", n)
	}
	c := a.next(t)
	if c.req.Caption != "Fresh caption text" {
		t.Fatalf("caption = %q", c.req.Caption)
	}
	c.respond()
	eventually(t, s, isReady)

	s.OnBlur()
	if id := s.State().RequestID; id != 1 {
		t.Fatalf("RequestID = %d after unchanged blur, want 1", id)
	}
}

func TestSchedulerBlurAfterRevertedRewrite(t *testing.T) {
	clock := newManualClock()
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "Great shoes! Buy now.", clock)
	defer s.Close()

	s.RunAnalysis()
	a.next(t).respond(analysis.RawSpan{ID: "b", Text: "Buy now."})
	eventually(t, s, isReady)

	s.OnEdit("Completely different sentence")
	if st := s.State(); st.LastAnalyzedText != "" {
		t.Fatalf("LastAnalyzedText = %q after clearing, want empty", st.LastAnalyzedText)
	}
	s.OnEdit("Great shoes! Buy now.")
	s.OnBlur()
	if n := clock.Armed(); n != 0 {
		t.Fatalf("armed timers = %d, want 0 after blur", n)
	}
	c := a.next(t)
	if c.req.Caption != "Great shoes! Buy now." {
		t.Fatalf("caption = %q", c.req.Caption)
	}
	c.respond(analysis.RawSpan{ID: "b", Text: "Buy now."})
	if st := eventually(t, s, isReady); st.RequestID != 2 || len(st.Spans) != 1 {
		t.Fatalf("state = %+v, want the reverted text analyzed again", st)
	}
}

func TestSchedulerShiftsOffsetsPastLeadingSpace(t *testing.T) {
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "\n  Sale! Sale!", newManualClock())
	defer s.Close()

	s.RunAnalysis()
	c := a.next(t)
	if c.req.Caption != "Sale! Sale!" {
		t.Fatalf("caption = %q", c.req.Caption)
	}
	// offsets point at the second copy within the trimmed caption
	c.respond(analysis.RawSpan{ID: "s", Text: "Sale!", StartOffset: offset(6), EndOffset: offset(11)})
	st := eventually(t, s, isReady)
	if len(st.Spans) != 1 || st.Spans[0].Start != 9 || st.Spans[0].End != 14 {
		t.Fatalf("spans = %+v, want Sale! at 9..14", st.Spans)
	}
}

func TestSchedulerBlurWhilePendingSameText(t *testing.T) {
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "Fresh caption", newManualClock())
	defer s.Close()

	s.RunAnalysis()
	a.next(t)
	s.OnBlur()
	if id := s.State().RequestID; id != 1 {
		t.Fatalf("RequestID = %d, want the pending request kept", id)
	}
}

func TestSchedulerBlurSuppressedWhileViewing(t *testing.T) {
	clock := newManualClock()
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "Great shoes!", clock)
	defer s.Close()

	s.RunAnalysis()
	a.next(t).respond(analysis.RawSpan{ID: "g", Text: "Great"})
	eventually(t, s, isReady)

	s.OnEdit("Great shoes! Buy now.")
	s.SetViewing(true)
	if n := clock.Armed(); n != 0 {
		t.Fatalf("armed timers = %d, want 0 while viewing", n)
	}
	s.OnBlur()
	if id := s.State().RequestID; id != 1 {
		t.Fatalf("RequestID = %d, want no request while viewing", id)
	}

	s.SetViewing(false)
	s.OnBlur()
	if id := s.State().RequestID; id != 2 {
		t.Fatalf("RequestID = %d, want 2 after the detail closed", id)
	}
	a.next(t)
}

func TestSchedulerFocus(t *testing.T) {
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "Pre-filled caption", newManualClock())
	defer s.Close()

	s.OnFocus()
	c := a.next(t)
	s.OnFocus()
	if id := s.State().RequestID; id != 1 {
		t.Fatalf("RequestID = %d, want 1 while pending", id)
	}
	c.respond()
	eventually(t, s, isReady)
	s.OnFocus()
	if id := s.State().RequestID; id != 1 {
		t.Fatalf("RequestID = %d, want 1 when ready", id)
	}

	empty := newTestScheduler(a, "   ", newManualClock())
	defer empty.Close()
	empty.OnFocus()
	if st := empty.State(); st.RequestID != 0 || st.Status != StatusIdle {
		t.Fatalf("empty focus state = %+v, want idle", st)
	}
}

func TestSchedulerEmptyTextGoesIdle(t *testing.T) {
	clock := newManualClock()
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "Hello world", clock)
	defer s.Close()

	s.RunAnalysis()
	a.next(t).respond(analysis.RawSpan{ID: "h", Text: "Hello"})
	eventually(t, s, isReady)

	s.OnEdit("  ")
	clock.Advance(DefaultDebounce)
	st := s.State()
	if st.Status != StatusIdle || len(st.Spans) != 0 || st.RequestID != 1 {
		t.Fatalf("state = %+v, want idle without a new request", st)
	}
}

func TestSchedulerErrorState(t *testing.T) {
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "Great shoes!", newManualClock())
	defer s.Close()

	s.RunAnalysis()
	a.next(t).fail(&analysis.AnalysisError{StatusCode: 502, Body: "upstream model unavailable"})
	st := eventually(t, s, func(st AnalysisState) bool { return st.Status == StatusError })
	if st.Err != "analysis request failed (502): upstream model unavailable" {
		t.Fatalf("Err = %q", st.Err)
	}
	if st.LastAnalyzedText != "Great shoes!" {
		t.Fatalf("LastAnalyzedText = %q", st.LastAnalyzedText)
	}
	s.OnBlur()
	if id := s.State().RequestID; id != 1 {
		t.Fatalf("RequestID = %d, want no retry on blur", id)
	}
	s.OnFocus()
	if id := s.State().RequestID; id != 2 {
		t.Fatalf("RequestID = %d, want focus to retry after an error", id)
	}
	a.next(t)
}

func TestSchedulerReportsStaleSnapshot(t *testing.T) {
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "Great shoes!", newManualClock())
	defer s.Close()

	s.RunAnalysis()
	a.next(t).reply <- reply{resp: analysis.DraftResponse{PostUpdatedAfterSnapshot: true}}
	if st := eventually(t, s, isReady); !st.Stale {
		t.Fatalf("Stale = false, want true")
	}
}

func TestSchedulerOnChangeMayReadState(t *testing.T) {
	a := newScriptedAnalyzer()
	seen := make(chan Status, 16)
	var s *Scheduler
	s = NewScheduler(a, "Great shoes!", SchedulerConfig{
		Clock: newManualClock(),
		OnChange: func(AnalysisState) {
			seen <- s.State().Status
		},
	})
	defer s.Close()

	s.RunAnalysis()
	if got := <-seen; got != StatusPending {
		t.Fatalf("first notification = %q, want pending", got)
	}
	a.next(t).respond()
	select {
	case got := <-seen:
		if got != StatusReady {
			t.Fatalf("second notification = %q, want ready", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no notification after completion")
	}
}

func TestSchedulerIgnoresEventsAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := newManualClock()
	a := newScriptedAnalyzer()
	s := newTestScheduler(a, "", clock)
	s.OnEdit("Great shoes!")
	s.Close()
	clock.Advance(DefaultDebounce)
	s.OnBlur()
	if st := s.State(); st.RequestID != 0 {
		t.Fatalf("RequestID = %d after close, want 0", st.RequestID)
	}
}
