package editor

import "github.com/mattn/go-runewidth"

// row is one visual line of the caption: buffer offsets [start, end).
type row struct {
	start int
	end   int
}

func runeWidth(r rune) int {
	if r == '\t' {
		return 1
	}
	if w := runewidth.RuneWidth(r); w > 0 {
		return w
	}
	return 1
}

// wrapRows breaks buf into rows no wider than width cells. Hard newlines end
// a row; otherwise a row breaks after the last space that fits, or mid-word
// when there is none. There is always at least one row.
func wrapRows(buf []rune, width int) []row {
	if width < 1 {
		width = 1
	}
	var rows []row
	start := 0
	for {
		cells := 0
		lastSpace := -1
		i := start
		for i < len(buf) && buf[i] != '\n' {
			w := runeWidth(buf[i])
			if cells+w > width && i > start {
				break
			}
			cells += w
			if buf[i] == ' ' {
				lastSpace = i
			}
			i++
		}
		switch {
		case i >= len(buf):
			return append(rows, row{start: start, end: len(buf)})
		case buf[i] == '\n':
			rows = append(rows, row{start: start, end: i})
			start = i + 1
		default:
			end := i
			if lastSpace >= start {
				end = lastSpace + 1
			}
			rows = append(rows, row{start: start, end: end})
			start = end
		}
	}
}

// rowIndex returns the row that owns offset. A soft-wrapped boundary belongs
// to the following row.
func rowIndex(rows []row, offset int) int {
	idx := 0
	for i, r := range rows {
		if r.start > offset {
			break
		}
		idx = i
	}
	return idx
}

// cellsBetween is the display width of buf[from:to].
func cellsBetween(buf []rune, from, to int) int {
	n := 0
	for i := from; i < to && i < len(buf); i++ {
		n += runeWidth(buf[i])
	}
	return n
}

// offsetAtCell maps a display column within r back to a buffer offset.
func offsetAtCell(buf []rune, r row, col int) int {
	cells := 0
	for i := r.start; i < r.end; i++ {
		w := runeWidth(buf[i])
		if cells+w > col {
			return i
		}
		cells += w
	}
	return r.end
}
