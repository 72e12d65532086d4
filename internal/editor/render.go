package editor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/kobzarvs/capedit/internal/analysis"
	"github.com/kobzarvs/capedit/internal/annotate"
)

const (
	labelWidth  = 9
	captionTop  = 4
	popupMaxW   = 64
	minCaptionW = 10
)

// Render draws the whole editor. Layout, top to bottom: header, title row,
// caption label with counter, caption area, status line, command line.
func (e *Editor) Render(s tcell.Screen) {
	e.syncDetail()
	w, h := s.Size()
	s.Clear()
	for y := 0; y < h; y++ {
		clearLine(s, y, w, e.styleMain)
	}
	if w < minCaptionW || h < captionTop+3 {
		drawText(s, 0, 0, w, "window too small", e.styleMain)
		s.HideCursor()
		s.Show()
		return
	}

	e.renderHeader(s, w)
	e.renderTitle(s, w)
	e.renderCaption(s, w, h)
	e.renderStatus(s, w, h)
	e.renderCommand(s, w, h)
	if e.mode == ModeDetail {
		if span, ok := e.sess.Detail(); ok {
			e.renderDetail(s, w, h, span)
		}
	}
	s.Show()
}

func (e *Editor) renderHeader(s tcell.Screen, w int) {
	clearLine(s, 0, w, e.styleStatus)
	left := " capedit  " + e.target
	if e.sess.Dirty() {
		left += " [+]"
	}
	right := e.sess.Platform() + " "
	for x, r := range composeStatusLine(left, right, w) {
		s.SetContent(x, 0, r, nil, e.styleStatus)
	}
}

func (e *Editor) renderTitle(s tcell.Screen, w int) {
	titleMax, _ := e.sess.Limits()
	title := []rune(e.sess.Title())
	e.titleY = 1
	e.titleX = labelWidth + 1

	labelStyle := e.styleLabel
	if e.field == FieldTitle {
		labelStyle = e.styleActiveLabel
	}
	drawText(s, 1, e.titleY, labelWidth, "Title", labelStyle)
	counter := e.counter(len(title), titleMax)
	counterX := w - len(counter) - 1
	drawText(s, e.titleX, e.titleY, counterX-1, string(title), e.styleMain)
	drawText(s, counterX, e.titleY, w, counter, e.counterStyle(len(title), titleMax))

	if e.field == FieldTitle && e.mode == ModeEdit {
		x := e.titleX + cellsBetween(title, 0, e.titleCursor)
		if x >= counterX-1 {
			x = counterX - 2
		}
		s.ShowCursor(x, e.titleY)
	}
}

func (e *Editor) renderCaption(s tcell.Screen, w, h int) {
	_, captionMax := e.sess.Limits()
	buf := []rune(e.sess.Text())

	labelStyle := e.styleLabel
	if e.field == FieldCaption {
		labelStyle = e.styleActiveLabel
	}
	drawText(s, 1, captionTop-1, labelWidth, "Caption", labelStyle)
	counter := e.counter(len(buf), captionMax)
	drawText(s, w-len(counter)-1, captionTop-1, w, counter, e.counterStyle(len(buf), captionMax))

	e.captionX = 2
	e.captionY = captionTop
	e.captionH = h - 2 - captionTop
	e.textWidth = e.wrapWidth
	if e.textWidth > w-4 {
		e.textWidth = w - 4
	}

	styles := make([]tcell.Style, len(buf))
	for i := range styles {
		styles[i] = e.styleMain
	}
	for _, frag := range e.sess.Fragments() {
		if frag.Span == nil {
			continue
		}
		st := e.severityStyle(frag.Span.Severity)
		for i := frag.Start; i < frag.End && i < len(styles); i++ {
			styles[i] = st
		}
	}

	rows := wrapRows(buf, e.textWidth)
	cursorRow := rowIndex(rows, e.cursor)
	if cursorRow < e.scroll {
		e.scroll = cursorRow
	}
	if cursorRow >= e.scroll+e.captionH {
		e.scroll = cursorRow - e.captionH + 1
	}
	if e.scroll > len(rows)-1 {
		e.scroll = len(rows) - 1
	}
	if e.scroll < 0 {
		e.scroll = 0
	}

	for i := 0; i < e.captionH && e.scroll+i < len(rows); i++ {
		r := rows[e.scroll+i]
		x := e.captionX
		for off := r.start; off < r.end; off++ {
			ch := buf[off]
			if ch == '\t' {
				ch = ' '
			}
			s.SetContent(x, e.captionY+i, ch, nil, styles[off])
			x += runeWidth(buf[off])
		}
	}

	if e.field == FieldCaption && e.mode == ModeEdit {
		x := e.captionX + cellsBetween(buf, rows[cursorRow].start, e.cursor)
		s.ShowCursor(x, e.captionY+cursorRow-e.scroll)
	} else if e.field == FieldCaption {
		s.HideCursor()
	}
}

func (e *Editor) renderStatus(s tcell.Screen, w, h int) {
	y := h - 2
	clearLine(s, y, w, e.styleStatus)
	state := e.sess.State()

	style := e.styleStatus
	var left string
	switch state.Status {
	case annotate.StatusPending:
		left = " Analyzing…"
		style = e.stylePending
	case annotate.StatusError:
		left = " Analysis failed: " + singleLine(state.Err)
		style = e.styleError
	case annotate.StatusReady:
		if len(state.Spans) == 0 {
			left = " No issues"
		} else {
			left = " " + plural(len(state.Spans), "issue")
		}
	default:
		left = " "
	}
	if state.Stale {
		left += "  (post changed since analysis)"
	}

	counts := countBySeverity(state.Spans)
	var parts []string
	for _, lvl := range e.sess.Vocabulary().Levels() {
		if n := counts[lvl.Name]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", lvl.Name, n))
		}
	}
	right := strings.Join(parts, "  ") + " "

	line := composeStatusLine(left, right, w)
	leftLen := len([]rune(left))
	for x, r := range line {
		st := e.styleStatus
		if x < leftLen {
			st = style
		}
		s.SetContent(x, y, r, nil, st)
	}
}

func (e *Editor) renderCommand(s tcell.Screen, w, h int) {
	y := h - 1
	clearLine(s, y, w, e.styleCommand)
	var text string
	switch {
	case e.mode == ModeConfirmQuit:
		text = "Unsaved changes: (s)ave and quit, (d)iscard, (c)ancel"
	case e.statusMessage != "":
		text = e.statusMessage
	case e.mode == ModeDetail:
		text = "1-9 apply  " + hotkeyHint(e.keymap.detail, actionCloseDetail, "esc") + " close"
	default:
		text = hotkeyHint(e.keymap.edit, actionOpenSpan, "ctrl+o") + " open issue  " +
			hotkeyHint(e.keymap.edit, actionSave, "ctrl+s") + " save  " +
			hotkeyHint(e.keymap.edit, actionQuit, "ctrl+q") + " quit"
	}
	drawText(s, 0, y, w, singleLine(text), e.styleCommand)
}

// renderDetail draws the popup for span below its first row, or above it
// when there is no room.
func (e *Editor) renderDetail(s tcell.Screen, w, h int, span annotate.MappedSpan) {
	boxWidth := popupMaxW
	if boxWidth > w-2 {
		boxWidth = w - 2
	}
	inner := boxWidth - 4
	if inner < 4 {
		return
	}

	type line struct {
		text  string
		style tcell.Style
		key   string
	}
	var lines []line
	lines = append(lines, line{text: "\"" + singleLine(span.Text) + "\"", style: e.stylePopup})
	for _, l := range wrapString(singleLine(span.Comment), inner) {
		lines = append(lines, line{text: l, style: e.stylePopup})
	}
	lines = append(lines, line{style: e.stylePopup})
	if len(span.Suggestions) == 0 {
		lines = append(lines, line{text: "No suggestions", style: e.stylePopup.Dim(true)})
	}
	for i, sug := range span.Suggestions {
		st := e.stylePopup
		if i == e.detailIndex {
			st = st.Reverse(true)
		}
		key := ""
		if i < 9 {
			key = strconv.Itoa(i + 1)
		}
		lines = append(lines, line{text: singleLine(sug.Text), style: st, key: key})
	}
	if e.detailIndex < len(span.Suggestions) {
		if why := singleLine(span.Suggestions[e.detailIndex].Rationale); why != "" {
			lines = append(lines, line{style: e.stylePopup})
			for _, l := range wrapString(why, inner) {
				lines = append(lines, line{text: l, style: e.stylePopup.Italic(true)})
			}
		}
	}

	boxHeight := len(lines) + 2
	viewBottom := h - 2
	if boxHeight > viewBottom {
		boxHeight = viewBottom
		lines = lines[:boxHeight-2]
	}

	buf := []rune(e.sess.Text())
	rows := wrapRows(buf, e.textWidth)
	spanRow := rowIndex(rows, span.Start) - e.scroll
	y0 := e.captionY + spanRow + 1
	if y0+boxHeight > viewBottom {
		y0 = e.captionY + spanRow - boxHeight
	}
	if y0 < 1 {
		y0 = 1
	}
	if y0+boxHeight > viewBottom {
		y0 = viewBottom - boxHeight
	}
	x0 := e.captionX
	if x0+boxWidth > w {
		x0 = w - boxWidth
	}

	border := e.stylePopupBorder
	for x := 0; x < boxWidth; x++ {
		top, bottom := '─', '─'
		switch x {
		case 0:
			top, bottom = '┌', '└'
		case boxWidth - 1:
			top, bottom = '┐', '┘'
		}
		s.SetContent(x0+x, y0, top, nil, border)
		s.SetContent(x0+x, y0+boxHeight-1, bottom, nil, border)
	}
	title := " " + e.sess.Vocabulary().Label(span.Severity) + " "
	drawText(s, x0+2, y0, x0+boxWidth-2, title, e.severityStyle(span.Severity))

	for i := 1; i < boxHeight-1; i++ {
		s.SetContent(x0, y0+i, '│', nil, border)
		s.SetContent(x0+boxWidth-1, y0+i, '│', nil, border)
		for x := 1; x < boxWidth-1; x++ {
			s.SetContent(x0+x, y0+i, ' ', nil, e.stylePopup)
		}
		l := lines[i-1]
		if l.key != "" {
			s.SetContent(x0+2, y0+i, rune(l.key[0]), nil, e.stylePopupHotkey)
			drawText(s, x0+4, y0+i, x0+boxWidth-2, l.text, l.style)
			continue
		}
		drawText(s, x0+2, y0+i, x0+boxWidth-2, l.text, l.style)
	}
	s.HideCursor()
}

func (e *Editor) severityStyle(sev analysis.Severity) tcell.Style {
	if st, ok := e.severity[sev]; ok {
		return st
	}
	return e.styleMain.Underline(true)
}

func (e *Editor) counter(n, max int) string {
	return fmt.Sprintf("%d/%d", n, max)
}

func (e *Editor) counterStyle(n, max int) tcell.Style {
	if n >= max {
		return e.styleCounterOver
	}
	return e.styleCounter
}

// drawText writes text from x up to (not including) maxX and returns the
// column after the last cell written.
func drawText(s tcell.Screen, x, y, maxX int, text string, style tcell.Style) int {
	for _, r := range text {
		rw := runewidth.RuneWidth(r)
		if rw < 1 {
			rw = 1
		}
		if x+rw > maxX {
			break
		}
		s.SetContent(x, y, r, nil, style)
		x += rw
	}
	return x
}

// wrapString word-wraps plain text for the popup.
func wrapString(text string, width int) []string {
	if text == "" {
		return nil
	}
	buf := []rune(text)
	var out []string
	for _, r := range wrapRows(buf, width) {
		out = append(out, strings.TrimRight(string(buf[r.start:r.end]), " "))
	}
	return out
}

func clearLine(s tcell.Screen, y, w int, style tcell.Style) {
	for x := 0; x < w; x++ {
		s.SetContent(x, y, ' ', nil, style)
	}
}

func composeStatusLine(left, right string, width int) []rune {
	if width <= 0 {
		return nil
	}
	leftRunes := []rune(left)
	rightRunes := []rune(right)
	if len(leftRunes)+len(rightRunes) > width {
		if len(rightRunes) >= width {
			rightRunes = rightRunes[len(rightRunes)-width:]
			leftRunes = nil
		} else {
			leftRunes = leftRunes[:width-len(rightRunes)]
		}
	}
	line := make([]rune, 0, width)
	line = append(line, leftRunes...)
	for i := len(leftRunes) + len(rightRunes); i < width; i++ {
		line = append(line, ' ')
	}
	return append(line, rightRunes...)
}

func parseColor(name string, fallback tcell.Color) tcell.Color {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	if strings.HasPrefix(name, "#") && len(name) == 7 {
		v, err := strconv.ParseUint(name[1:], 16, 32)
		if err != nil {
			return fallback
		}
		return tcell.NewHexColor(int32(v))
	}
	name = strings.ToLower(name)
	if name == "default" {
		return tcell.ColorDefault
	}
	if c := tcell.GetColor(name); c != tcell.ColorDefault {
		return c
	}
	return fallback
}
