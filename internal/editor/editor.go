// Package editor is the terminal front end of a caption session: a title
// input, a wrapped caption area with highlighted issues, and a detail popup
// for reviewing and applying suggestions.
package editor

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/gdamore/tcell/v2"

	"github.com/kobzarvs/capedit/internal/analysis"
	"github.com/kobzarvs/capedit/internal/annotate"
	"github.com/kobzarvs/capedit/internal/config"
	"github.com/kobzarvs/capedit/internal/logger"
)

type Mode int

const (
	ModeEdit Mode = iota
	ModeDetail
	ModeConfirmQuit
)

type Field int

const (
	FieldCaption Field = iota
	FieldTitle
)

func (f Field) String() string {
	if f == FieldTitle {
		return "title"
	}
	return "caption"
}

const (
	actionMoveLeft       = "move_left"
	actionMoveRight      = "move_right"
	actionMoveUp         = "move_up"
	actionMoveDown       = "move_down"
	actionLineStart      = "line_start"
	actionLineEnd        = "line_end"
	actionTextStart      = "text_start"
	actionTextEnd        = "text_end"
	actionWordLeft       = "word_left"
	actionWordRight      = "word_right"
	actionBackspace      = "backspace"
	actionDeleteChar     = "delete_char"
	actionDeleteWordLeft = "delete_word_left"
	actionNewline        = "newline"
	actionNextField      = "next_field"
	actionPrevField      = "prev_field"
	actionUndo           = "undo"
	actionRedo           = "redo"
	actionOpenSpan       = "open_span"
	actionAnalyze        = "analyze"
	actionCyclePlatform  = "cycle_platform"
	actionSave           = "save"
	actionQuit           = "quit"
	actionBlur           = "blur"

	actionCloseDetail     = "close_detail"
	actionPrevSuggestion  = "prev_suggestion"
	actionNextSuggestion  = "next_suggestion"
	actionApplySuggestion = "apply_suggestion"
)

type keymapSet struct {
	edit   map[string]string
	detail map[string]string
}

type Editor struct {
	sess      *annotate.Session
	keymap    keymapSet
	platforms []string
	target    string

	mode    Mode
	field   Field
	focused bool

	cursor      int
	titleCursor int
	scroll      int
	wrapWidth   int
	textWidth   int

	detailIndex int

	statusMessage string
	saveRequested bool
	quitAfterSave bool

	// geometry of the last Render, for mouse hits
	titleY   int
	titleX   int
	captionX int
	captionY int
	captionH int

	styleMain        tcell.Style
	styleStatus      tcell.Style
	styleCommand     tcell.Style
	styleLabel       tcell.Style
	styleActiveLabel tcell.Style
	styleCounter     tcell.Style
	styleCounterOver tcell.Style
	styleError       tcell.Style
	stylePending     tcell.Style
	stylePopup       tcell.Style
	stylePopupBorder tcell.Style
	stylePopupHotkey tcell.Style
	severity         map[analysis.Severity]tcell.Style
}

// Vocabulary builds the session severity vocabulary from the configured
// levels, in order.
func Vocabulary(cfg config.Config) annotate.Vocabulary {
	levels := make([]annotate.SeverityLevel, 0, len(cfg.Severity))
	for _, sev := range cfg.Severity {
		levels = append(levels, annotate.SeverityLevel{
			Name:  analysis.Severity(sev.Name),
			Label: sev.Label,
		})
	}
	return annotate.NewVocabulary(levels...)
}

// New creates an editor over sess. target names what is being edited (a post
// title or a file path) for the header line.
func New(cfg config.Config, sess *annotate.Session, target string) *Editor {
	theme := cfg.Theme
	fg := parseColor(theme.Foreground, tcell.ColorWhite)
	bg := parseColor(theme.Background, tcell.ColorBlack)
	main := tcell.StyleDefault.Foreground(fg).Background(bg)

	statusFg := parseColor(theme.StatuslineForeground, fg)
	statusBg := parseColor(theme.StatuslineBackground, tcell.ColorDarkGray)
	cmdFg := parseColor(theme.CommandlineForeground, fg)
	cmdBg := parseColor(theme.CommandlineBackground, bg)
	popupFg := parseColor(theme.PopupForeground, fg)
	popupBg := parseColor(theme.PopupBackground, statusBg)
	popup := tcell.StyleDefault.Foreground(popupFg).Background(popupBg)

	e := &Editor{
		sess: sess,
		keymap: keymapSet{
			edit:   cfg.Keymap.Edit,
			detail: cfg.Keymap.Detail,
		},
		platforms:        config.Platforms,
		target:           target,
		wrapWidth:        cfg.Editor.WrapWidth,
		textWidth:        cfg.Editor.WrapWidth,
		styleMain:        main,
		styleStatus:      tcell.StyleDefault.Foreground(statusFg).Background(statusBg),
		styleCommand:     tcell.StyleDefault.Foreground(cmdFg).Background(cmdBg),
		styleLabel:       main.Foreground(parseColor(theme.LabelForeground, tcell.ColorGray)),
		styleActiveLabel: main.Foreground(parseColor(theme.ActiveLabelForeground, fg)).Bold(true),
		styleCounter:     main.Foreground(parseColor(theme.CounterForeground, tcell.ColorGray)),
		styleCounterOver: main.Foreground(parseColor(theme.CounterOverForeground, tcell.ColorRed)).Bold(true),
		styleError:       tcell.StyleDefault.Foreground(parseColor(theme.ErrorForeground, tcell.ColorRed)).Background(statusBg),
		stylePending:     tcell.StyleDefault.Foreground(parseColor(theme.PendingForeground, tcell.ColorYellow)).Background(statusBg),
		stylePopup:       popup,
		stylePopupBorder: popup.Foreground(parseColor(theme.PopupBorderForeground, popupFg)),
		stylePopupHotkey: popup.Foreground(parseColor(theme.PopupHotkeyForeground, tcell.ColorYellow)).Bold(true),
		severity:         make(map[analysis.Severity]tcell.Style),
	}
	if e.keymap.edit == nil {
		e.keymap.edit = map[string]string{}
	}
	if e.keymap.detail == nil {
		e.keymap.detail = map[string]string{}
	}
	if e.wrapWidth <= 0 {
		e.wrapWidth = 72
		e.textWidth = 72
	}
	for _, sev := range cfg.Severity {
		st := main.
			Foreground(parseColor(sev.Foreground, fg)).
			Background(parseColor(sev.Background, bg))
		if sev.Underline {
			st = st.Underline(true)
		}
		e.severity[analysis.Severity(sev.Name)] = st
	}
	e.cursor = len([]rune(sess.Text()))
	e.titleCursor = len([]rune(sess.Title()))
	return e
}

func (e *Editor) Mode() Mode { return e.mode }

func (e *Editor) Field() Field { return e.field }

// Cursor returns the focused field and the rune offset of the cursor in it.
func (e *Editor) Cursor() (Field, int) {
	if e.field == FieldTitle {
		return FieldTitle, e.titleCursor
	}
	return FieldCaption, e.cursor
}

// SetCursor restores a saved cursor, clamped to the field contents.
func (e *Editor) SetCursor(field Field, pos int) {
	e.field = field
	if field == FieldTitle {
		e.titleCursor = clamp(pos, 0, len([]rune(e.sess.Title())))
		return
	}
	e.cursor = clamp(pos, 0, len([]rune(e.sess.Text())))
}

// Focus puts the caption field in focus, which the session treats as the
// user starting to work on the caption.
func (e *Editor) Focus() {
	e.field = FieldCaption
	e.focusCaption()
}

func (e *Editor) StatusMessage() string { return e.statusMessage }

func (e *Editor) SetStatus(msg string) { e.statusMessage = msg }

// ConsumeSaveRequest reports whether the user asked to save since the last
// call, and whether the editor should quit once the save succeeds.
func (e *Editor) ConsumeSaveRequest() (quitAfter, ok bool) {
	if !e.saveRequested {
		return false, false
	}
	e.saveRequested = false
	return e.quitAfterSave, true
}

// SaveFinished reports the outcome of a requested save.
func (e *Editor) SaveFinished(err error) {
	if err != nil {
		e.quitAfterSave = false
		e.statusMessage = "Save failed: " + err.Error()
		return
	}
	e.sess.MarkSaved()
	e.statusMessage = "Saved"
}

// HandleKey processes one key event. It returns true when the editor wants
// to exit.
func (e *Editor) HandleKey(ev *tcell.EventKey) bool {
	e.syncDetail()
	if e.mode != ModeConfirmQuit {
		e.statusMessage = ""
	}
	switch e.mode {
	case ModeDetail:
		e.handleDetailKey(ev)
		return false
	case ModeConfirmQuit:
		return e.handleConfirmQuitKey(ev)
	}

	if action, ok := e.keymap.edit[keyString(ev)]; ok {
		return e.execAction(action)
	}
	if ev.Key() == tcell.KeyRune && ev.Modifiers()&(tcell.ModCtrl|tcell.ModAlt|tcell.ModMeta) == 0 {
		e.insertRune(ev.Rune())
	}
	return false
}

// HandleMouse moves the cursor to a click and opens the issue under it.
func (e *Editor) HandleMouse(ev *tcell.EventMouse) {
	if ev.Buttons()&tcell.Button1 == 0 {
		return
	}
	e.syncDetail()
	if e.mode == ModeConfirmQuit {
		return
	}
	if e.mode == ModeDetail {
		e.sess.CloseDetail()
		e.mode = ModeEdit
	}
	x, y := ev.Position()
	switch {
	case y == e.titleY:
		e.switchField(FieldTitle)
		title := []rune(e.sess.Title())
		e.titleCursor = offsetAtCell(title, row{end: len(title)}, x-e.titleX)
	case y >= e.captionY && y < e.captionY+e.captionH:
		buf := []rune(e.sess.Text())
		rows := wrapRows(buf, e.textWidth)
		idx := y - e.captionY + e.scroll
		if idx >= len(rows) {
			idx = len(rows) - 1
		}
		off := offsetAtCell(buf, rows[idx], x-e.captionX)
		e.switchField(FieldCaption)
		e.cursor = e.clampSoftEnd(buf, rows, idx, off)
		if off < rows[idx].end {
			e.openSpanAt(off, false)
		}
	}
}

func (e *Editor) execAction(action string) bool {
	switch action {
	case actionMoveLeft:
		e.moveHorizontal(-1)
	case actionMoveRight:
		e.moveHorizontal(1)
	case actionMoveUp:
		e.moveVertical(-1)
	case actionMoveDown:
		e.moveVertical(1)
	case actionLineStart:
		e.moveLineEdge(false)
	case actionLineEnd:
		e.moveLineEdge(true)
	case actionTextStart:
		if e.field == FieldTitle {
			e.titleCursor = 0
		} else {
			e.cursor = 0
			e.scroll = 0
		}
	case actionTextEnd:
		if e.field == FieldTitle {
			e.titleCursor = len([]rune(e.sess.Title()))
		} else {
			e.cursor = len([]rune(e.sess.Text()))
		}
	case actionWordLeft:
		e.setActiveCursor(wordLeft(e.activeRunes(), e.activeCursor()))
	case actionWordRight:
		e.setActiveCursor(wordRight(e.activeRunes(), e.activeCursor()))
	case actionBackspace:
		pos := e.activeCursor()
		if pos > 0 {
			e.replace(pos-1, pos, nil)
		}
	case actionDeleteChar:
		pos := e.activeCursor()
		if pos < len(e.activeRunes()) {
			e.replace(pos, pos+1, nil)
		}
	case actionDeleteWordLeft:
		pos := e.activeCursor()
		if start := wordLeft(e.activeRunes(), pos); start < pos {
			e.replace(start, pos, nil)
		}
	case actionNewline:
		if e.field == FieldTitle {
			e.switchField(FieldCaption)
		} else {
			e.insertRune('\n')
		}
	case actionNextField, actionPrevField:
		if e.field == FieldTitle {
			e.switchField(FieldCaption)
		} else {
			e.switchField(FieldTitle)
		}
	case actionUndo:
		if !e.sess.Undo() {
			e.statusMessage = "Nothing to undo"
		}
		e.clampCursors()
	case actionRedo:
		if !e.sess.Redo() {
			e.statusMessage = "Nothing to redo"
		}
		e.clampCursors()
	case actionOpenSpan:
		if e.field == FieldCaption {
			e.openSpanAt(e.cursor, true)
		}
	case actionAnalyze:
		e.sess.Analyze()
	case actionCyclePlatform:
		e.cyclePlatform()
	case actionSave:
		e.saveRequested = true
		e.quitAfterSave = false
	case actionQuit:
		if e.sess.Dirty() {
			e.mode = ModeConfirmQuit
			return false
		}
		return true
	case actionBlur:
		if e.focused {
			e.focused = false
			e.sess.Blur()
		}
	default:
		logger.Debug("unknown editor action", "action", action)
	}
	return false
}

func (e *Editor) handleDetailKey(ev *tcell.EventKey) {
	span, ok := e.sess.Detail()
	if !ok {
		e.mode = ModeEdit
		return
	}
	if ev.Key() == tcell.KeyRune && ev.Modifiers() == tcell.ModNone {
		if r := ev.Rune(); r >= '1' && r <= '9' {
			if idx := int(r - '1'); idx < len(span.Suggestions) {
				e.detailIndex = idx
				e.applySuggestion(span, idx)
			}
			return
		}
	}
	switch e.keymap.detail[keyString(ev)] {
	case actionCloseDetail:
		e.sess.CloseDetail()
		e.mode = ModeEdit
	case actionPrevSuggestion:
		if e.detailIndex > 0 {
			e.detailIndex--
		}
	case actionNextSuggestion:
		if e.detailIndex < len(span.Suggestions)-1 {
			e.detailIndex++
		}
	case actionApplySuggestion:
		if e.detailIndex < len(span.Suggestions) {
			e.applySuggestion(span, e.detailIndex)
		}
	}
}

func (e *Editor) handleConfirmQuitKey(ev *tcell.EventKey) bool {
	if ev.Key() == tcell.KeyEscape {
		e.mode = ModeEdit
		return false
	}
	if ev.Key() != tcell.KeyRune {
		return false
	}
	switch unicode.ToLower(ev.Rune()) {
	case 's':
		e.mode = ModeEdit
		e.saveRequested = true
		e.quitAfterSave = true
	case 'd':
		return true
	case 'c':
		e.mode = ModeEdit
	}
	return false
}

func (e *Editor) applySuggestion(span annotate.MappedSpan, idx int) {
	sug := span.Suggestions[idx]
	if err := e.sess.ApplySuggestion(sug.ID); err != nil {
		if errors.Is(err, annotate.ErrNoSelection) {
			e.mode = ModeEdit
		}
		e.statusMessage = err.Error()
		return
	}
	e.mode = ModeEdit
	e.cursor = span.Start + len([]rune(sug.Text))
	e.clampCursors()
	e.statusMessage = "Applied: " + sug.Text
}

func (e *Editor) openSpanAt(offset int, report bool) {
	if !e.sess.Click(offset) {
		if report {
			e.statusMessage = "No issue at cursor"
		}
		return
	}
	e.mode = ModeDetail
	e.detailIndex = 0
}

// syncDetail drops out of detail mode when the session closed the detail,
// e.g. because a newer analysis no longer has the span.
func (e *Editor) syncDetail() {
	if e.mode != ModeDetail {
		return
	}
	if _, ok := e.sess.Detail(); !ok {
		e.mode = ModeEdit
	}
}

func (e *Editor) cyclePlatform() {
	current := e.sess.Platform()
	next := e.platforms[0]
	for i, p := range e.platforms {
		if p == current {
			next = e.platforms[(i+1)%len(e.platforms)]
			break
		}
	}
	e.sess.SetPlatform(next)
	e.statusMessage = "Platform: " + next
}

func (e *Editor) switchField(field Field) {
	if field == e.field {
		if field == FieldCaption {
			e.focusCaption()
		}
		return
	}
	e.field = field
	if field == FieldCaption {
		e.focusCaption()
		return
	}
	if e.focused {
		e.focused = false
		e.sess.Blur()
	}
}

func (e *Editor) focusCaption() {
	if e.focused {
		return
	}
	e.focused = true
	e.sess.Focus()
}

func (e *Editor) insertRune(r rune) {
	if e.field == FieldTitle && r == '\n' {
		return
	}
	e.replace(e.activeCursor(), e.activeCursor(), []rune{r})
}

// replace swaps runes [start, end) of the focused field for ins and leaves
// the cursor after the inserted text.
func (e *Editor) replace(start, end int, ins []rune) {
	buf := e.activeRunes()
	next := make([]rune, 0, len(buf)-(end-start)+len(ins))
	next = append(next, buf[:start]...)
	next = append(next, ins...)
	next = append(next, buf[end:]...)

	titleMax, captionMax := e.sess.Limits()
	if e.field == FieldTitle {
		e.sess.SetTitle(string(next))
		e.titleCursor = start + len(ins)
		if len(next) > titleMax {
			e.statusMessage = fmt.Sprintf("Title is limited to %d characters", titleMax)
		}
	} else {
		e.focusCaption()
		e.sess.Edit(string(next))
		e.cursor = start + len(ins)
		if len(next) > captionMax {
			e.statusMessage = fmt.Sprintf("Caption is limited to %d characters", captionMax)
		}
	}
	e.clampCursors()
}

func (e *Editor) activeRunes() []rune {
	if e.field == FieldTitle {
		return []rune(e.sess.Title())
	}
	return []rune(e.sess.Text())
}

func (e *Editor) activeCursor() int {
	if e.field == FieldTitle {
		return e.titleCursor
	}
	return e.cursor
}

func (e *Editor) setActiveCursor(pos int) {
	if e.field == FieldTitle {
		e.titleCursor = pos
	} else {
		e.cursor = pos
	}
	e.clampCursors()
}

func (e *Editor) clampCursors() {
	e.titleCursor = clamp(e.titleCursor, 0, len([]rune(e.sess.Title())))
	e.cursor = clamp(e.cursor, 0, len([]rune(e.sess.Text())))
}

func (e *Editor) moveHorizontal(delta int) {
	e.setActiveCursor(e.activeCursor() + delta)
}

func (e *Editor) moveVertical(delta int) {
	if e.field == FieldTitle {
		if delta > 0 {
			e.switchField(FieldCaption)
		}
		return
	}
	buf := []rune(e.sess.Text())
	rows := wrapRows(buf, e.textWidth)
	idx := rowIndex(rows, e.cursor)
	target := idx + delta
	if target < 0 {
		e.switchField(FieldTitle)
		return
	}
	if target >= len(rows) {
		e.cursor = len(buf)
		return
	}
	col := cellsBetween(buf, rows[idx].start, e.cursor)
	off := offsetAtCell(buf, rows[target], col)
	e.cursor = e.clampSoftEnd(buf, rows, target, off)
}

func (e *Editor) moveLineEdge(end bool) {
	if e.field == FieldTitle {
		if end {
			e.titleCursor = len([]rune(e.sess.Title()))
		} else {
			e.titleCursor = 0
		}
		return
	}
	buf := []rune(e.sess.Text())
	rows := wrapRows(buf, e.textWidth)
	idx := rowIndex(rows, e.cursor)
	if !end {
		e.cursor = rows[idx].start
		return
	}
	e.cursor = e.clampSoftEnd(buf, rows, idx, rows[idx].end)
}

// clampSoftEnd keeps off on row idx: the end of a soft-wrapped row is the
// start of the next one, so the cursor stops one rune short.
func (e *Editor) clampSoftEnd(buf []rune, rows []row, idx, off int) int {
	r := rows[idx]
	if off == r.end && idx+1 < len(rows) && rows[idx+1].start == r.end && r.end > r.start {
		return r.end - 1
	}
	return off
}

func wordLeft(buf []rune, pos int) int {
	i := pos
	for i > 0 && !isWordRune(buf[i-1]) {
		i--
	}
	for i > 0 && isWordRune(buf[i-1]) {
		i--
	}
	return i
}

func wordRight(buf []rune, pos int) int {
	i := pos
	for i < len(buf) && isWordRune(buf[i]) {
		i++
	}
	for i < len(buf) && !isWordRune(buf[i]) {
		i++
	}
	return i
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '#' || r == '@'
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func countBySeverity(spans []annotate.MappedSpan) map[analysis.Severity]int {
	counts := make(map[analysis.Severity]int)
	for _, span := range spans {
		counts[span.Severity]++
	}
	return counts
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
