package annotate

// History is a linear snapshot stack over the caption. Only meaningful events
// push (a suggestion application pushes the text before and after), free
// typing is left to the input control.
type History struct {
	entries []string
	cursor  int
}

func NewHistory(seed string) *History {
	return &History{entries: []string{seed}}
}

// Push drops any redo tail and appends snapshot unless it equals the entry
// at the cursor.
func (h *History) Push(snapshot string) {
	h.entries = h.entries[:h.cursor+1]
	if h.entries[h.cursor] == snapshot {
		return
	}
	h.entries = append(h.entries, snapshot)
	h.cursor = len(h.entries) - 1
}

func (h *History) Undo() (string, bool) {
	if h.cursor == 0 {
		return "", false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

func (h *History) Redo() (string, bool) {
	if h.cursor >= len(h.entries)-1 {
		return "", false
	}
	h.cursor++
	return h.entries[h.cursor], true
}

func (h *History) Current() string { return h.entries[h.cursor] }
func (h *History) CanUndo() bool   { return h.cursor > 0 }
func (h *History) CanRedo() bool   { return h.cursor < len(h.entries)-1 }
func (h *History) Len() int        { return len(h.entries) }
