package editor

import (
	"strings"

	"github.com/gdamore/tcell/v2"
)

func keyString(ev *tcell.EventKey) string {
	mods := ev.Modifiers()
	if mods&tcell.ModAlt != 0 {
		switch ev.Key() {
		case tcell.KeyLeft:
			return "alt+left"
		case tcell.KeyRight:
			return "alt+right"
		case tcell.KeyBackspace, tcell.KeyBackspace2:
			return "alt+backspace"
		}
	}
	if mods&tcell.ModCtrl != 0 {
		switch ev.Key() {
		case tcell.KeyHome:
			return "ctrl+home"
		case tcell.KeyEnd:
			return "ctrl+end"
		}
	}
	if mods&tcell.ModMeta != 0 {
		if ev.Key() == tcell.KeyRune {
			r := strings.ToLower(string(ev.Rune()))
			if mods&tcell.ModShift != 0 {
				return "cmd+shift+" + r
			}
			return "cmd+" + r
		}
		switch ev.Key() {
		case tcell.KeyBackspace, tcell.KeyBackspace2:
			return "cmd+backspace"
		case tcell.KeyLeft:
			return "cmd+left"
		case tcell.KeyRight:
			return "cmd+right"
		}
	}
	if ev.Key() == tcell.KeyRune && mods&tcell.ModCtrl != 0 {
		return "ctrl+" + strings.ToLower(string(ev.Rune()))
	}
	if ev.Key() == tcell.KeyRune {
		r := ev.Rune()
		if r == ' ' {
			return "space"
		}
		return string(r)
	}
	// Enter, Tab and Backspace share codes with Ctrl+M, Ctrl+I and Ctrl+H, so
	// they are named before ctrlKeyName gets a chance.
	switch ev.Key() {
	case tcell.KeyTab:
		if mods&tcell.ModShift != 0 {
			return "shift+tab"
		}
		return "tab"
	case tcell.KeyBacktab:
		return "shift+tab"
	case tcell.KeyEnter:
		return "enter"
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return "backspace"
	case tcell.KeyEscape:
		return "esc"
	}
	if name := ctrlKeyName(ev.Key()); name != "" {
		return name
	}
	switch ev.Key() {
	case tcell.KeyUp:
		return "up"
	case tcell.KeyDown:
		return "down"
	case tcell.KeyLeft:
		return "left"
	case tcell.KeyRight:
		return "right"
	case tcell.KeyPgUp:
		return "pgup"
	case tcell.KeyPgDn:
		return "pgdn"
	case tcell.KeyHome:
		return "home"
	case tcell.KeyEnd:
		return "end"
	case tcell.KeyDelete:
		return "del"
	}
	return ""
}

func ctrlKeyName(key tcell.Key) string {
	if key >= tcell.KeyCtrlA && key <= tcell.KeyCtrlZ {
		return "ctrl+" + string(rune('a'+int(key-tcell.KeyCtrlA)))
	}
	return ""
}

// hotkeyHint renders the first key bound to action for the command line.
func hotkeyHint(keymap map[string]string, action, fallback string) string {
	best := ""
	for key, bound := range keymap {
		if bound != action {
			continue
		}
		// prefer the shortest spelling, then alphabetical for stable output
		if best == "" || len(key) < len(best) || (len(key) == len(best) && key < best) {
			best = key
		}
	}
	if best == "" {
		return fallback
	}
	return best
}
