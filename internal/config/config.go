package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Keymap struct {
	Edit   map[string]string `toml:"edit"`
	Detail map[string]string `toml:"detail"`
}

type AnalysisOptions struct {
	BaseURL        string `toml:"base-url"`
	CampaignURL    string `toml:"campaign-url"`
	DebounceMS     int    `toml:"debounce-ms"`
	TimeoutSeconds int    `toml:"timeout-seconds"`
	Platform       string `toml:"platform"`
}

func (a AnalysisOptions) Debounce() time.Duration {
	return time.Duration(a.DebounceMS) * time.Millisecond
}

func (a AnalysisOptions) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

type Limits struct {
	TitleMax   int `toml:"title-max"`
	CaptionMax int `toml:"caption-max"`
}

type EditorOptions struct {
	WrapWidth       int  `toml:"wrap-width"`
	AutosaveSeconds int  `toml:"autosave-seconds"`
	RestoreDrafts   bool `toml:"restore-drafts"`
}

// Severity describes one level of the severity vocabulary and how spans of
// that level are drawn. Order matters: the first level is the fallback.
type Severity struct {
	Name       string `toml:"name"`
	Label      string `toml:"label"`
	Foreground string `toml:"foreground"`
	Background string `toml:"background"`
	Underline  bool   `toml:"underline"`
}

type Theme struct {
	Theme                 string `toml:"theme"`
	Foreground            string `toml:"foreground"`
	Background            string `toml:"background"`
	StatuslineForeground  string `toml:"statusline-foreground"`
	StatuslineBackground  string `toml:"statusline-background"`
	CommandlineForeground string `toml:"commandline-foreground"`
	CommandlineBackground string `toml:"commandline-background"`
	LabelForeground       string `toml:"label-foreground"`
	ActiveLabelForeground string `toml:"active-label-foreground"`
	CounterForeground     string `toml:"counter-foreground"`
	CounterOverForeground string `toml:"counter-over-foreground"`
	ErrorForeground       string `toml:"error-foreground"`
	PendingForeground     string `toml:"pending-foreground"`
	PopupForeground       string `toml:"popup-foreground"`
	PopupBackground       string `toml:"popup-background"`
	PopupBorderForeground string `toml:"popup-border-foreground"`
	PopupHotkeyForeground string `toml:"popup-hotkey-foreground"`
}

type Config struct {
	Analysis AnalysisOptions `toml:"analysis"`
	Limits   Limits          `toml:"limits"`
	Editor   EditorOptions   `toml:"editor"`
	Severity []Severity      `toml:"severity"`
	Theme    Theme           `toml:"theme"`
	Keymap   Keymap          `toml:"keymap"`
}

func Default() Config {
	return Config{
		Analysis: AnalysisOptions{
			BaseURL:        "http://localhost:8000/api",
			DebounceMS:     1200,
			TimeoutSeconds: 60,
			Platform:       "instagram",
		},
		Limits: Limits{
			TitleMax:   40,
			CaptionMax: 500,
		},
		Editor: EditorOptions{
			WrapWidth:       72,
			AutosaveSeconds: 5,
			RestoreDrafts:   true,
		},
		Severity: []Severity{
			{Name: "minor", Label: "Minor issue", Foreground: "#0A0E14", Background: "#E6B450"},
			{Name: "major", Label: "Major issue", Foreground: "#0A0E14", Background: "#FF8F40"},
			{Name: "blocker", Label: "Blocker", Foreground: "#FFFFFF", Background: "#D95757"},
		},
		Theme: Theme{
			Theme:                 "",
			Foreground:            "#B3B1AD",
			Background:            "#0A0E14",
			StatuslineForeground:  "#B3B1AD",
			StatuslineBackground:  "#0F1419",
			CommandlineForeground: "#B3B1AD",
			CommandlineBackground: "#0F1419",
			LabelForeground:       "#5C6773",
			ActiveLabelForeground: "#59C2FF",
			CounterForeground:     "#3E4B59",
			CounterOverForeground: "#FF3333",
			ErrorForeground:       "#FF3333",
			PendingForeground:     "#E6B450",
			PopupForeground:       "#B3B1AD",
			PopupBackground:       "#0F1419",
			PopupBorderForeground: "#3E4B59",
			PopupHotkeyForeground: "#59C2FF",
		},
		Keymap: Keymap{
			Edit: map[string]string{
				"left":          "move_left",
				"right":         "move_right",
				"up":            "move_up",
				"down":          "move_down",
				"home":          "line_start",
				"end":           "line_end",
				"ctrl+home":     "text_start",
				"ctrl+end":      "text_end",
				"alt+left":      "word_left",
				"alt+right":     "word_right",
				"backspace":     "backspace",
				"del":           "delete_char",
				"cmd+backspace": "delete_word_left",
				"alt+backspace": "delete_word_left",
				"ctrl+w":        "delete_word_left",
				"enter":         "newline",
				"tab":           "next_field",
				"shift+tab":     "prev_field",
				"ctrl+z":        "undo",
				"ctrl+y":        "redo",
				"cmd+z":         "undo",
				"cmd+shift+z":   "redo",
				"ctrl+o":        "open_span",
				"ctrl+a":        "analyze",
				"ctrl+p":        "cycle_platform",
				"ctrl+s":        "save",
				"cmd+s":         "save",
				"ctrl+q":        "quit",
				"ctrl+c":        "quit",
				"esc":           "blur",
			},
			Detail: map[string]string{
				"esc":   "close_detail",
				"q":     "close_detail",
				"up":    "prev_suggestion",
				"down":  "next_suggestion",
				"k":     "prev_suggestion",
				"j":     "next_suggestion",
				"enter": "apply_suggestion",
			},
		},
	}
}

// Platforms cycled by the cycle_platform action.
var Platforms = []string{"instagram", "tiktok", "linkedin", "x", "facebook"}

func Load() (Config, error) {
	cfg := Default()
	path, err := ConfigPath()
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	var userCfg Config
	meta, err := toml.Decode(string(data), &userCfg)
	if err != nil {
		return cfg, err
	}

	if userCfg.Analysis.BaseURL != "" {
		cfg.Analysis.BaseURL = strings.TrimSpace(userCfg.Analysis.BaseURL)
	}
	if userCfg.Analysis.CampaignURL != "" {
		cfg.Analysis.CampaignURL = strings.TrimSpace(userCfg.Analysis.CampaignURL)
	}
	if userCfg.Analysis.DebounceMS > 0 {
		cfg.Analysis.DebounceMS = userCfg.Analysis.DebounceMS
	}
	if userCfg.Analysis.TimeoutSeconds > 0 {
		cfg.Analysis.TimeoutSeconds = userCfg.Analysis.TimeoutSeconds
	}
	if userCfg.Analysis.Platform != "" {
		cfg.Analysis.Platform = strings.ToLower(strings.TrimSpace(userCfg.Analysis.Platform))
	}
	if userCfg.Limits.TitleMax > 0 {
		cfg.Limits.TitleMax = userCfg.Limits.TitleMax
	}
	if userCfg.Limits.CaptionMax > 0 {
		cfg.Limits.CaptionMax = userCfg.Limits.CaptionMax
	}
	if userCfg.Editor.WrapWidth > 0 {
		cfg.Editor.WrapWidth = userCfg.Editor.WrapWidth
	}
	if userCfg.Editor.AutosaveSeconds > 0 {
		cfg.Editor.AutosaveSeconds = userCfg.Editor.AutosaveSeconds
	}
	if meta.IsDefined("editor", "restore-drafts") {
		cfg.Editor.RestoreDrafts = userCfg.Editor.RestoreDrafts
	}
	if len(userCfg.Severity) > 0 {
		cfg.Severity = mergeSeverities(cfg.Severity, userCfg.Severity)
	}
	if userCfg.Theme.Theme != "" {
		cfg.Theme.Theme = userCfg.Theme.Theme
	}
	if cfg.Theme.Theme != "" {
		theme, err := LoadTheme(cfg.Theme.Theme)
		if err != nil {
			return cfg, err
		}
		mergeTheme(&cfg.Theme, theme)
	}
	mergeTheme(&cfg.Theme, userCfg.Theme)
	for k, v := range userCfg.Keymap.Edit {
		cfg.Keymap.Edit[k] = v
	}
	for k, v := range userCfg.Keymap.Detail {
		cfg.Keymap.Detail[k] = v
	}

	return cfg, nil
}

// mergeSeverities replaces the vocabulary with the user's levels. A user
// level that names a default level inherits its unset label and colors.
func mergeSeverities(defaults, user []Severity) []Severity {
	byName := make(map[string]Severity, len(defaults))
	for _, s := range defaults {
		byName[s.Name] = s
	}
	out := make([]Severity, 0, len(user))
	for _, s := range user {
		s.Name = strings.ToLower(strings.TrimSpace(s.Name))
		if s.Name == "" {
			continue
		}
		if d, ok := byName[s.Name]; ok {
			if s.Label == "" {
				s.Label = d.Label
			}
			if s.Foreground == "" {
				s.Foreground = d.Foreground
			}
			if s.Background == "" {
				s.Background = d.Background
			}
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return defaults
	}
	return out
}

func mergeTheme(dst *Theme, src Theme) {
	if src.Foreground != "" {
		dst.Foreground = src.Foreground
	}
	if src.Background != "" {
		dst.Background = src.Background
	}
	if src.StatuslineForeground != "" {
		dst.StatuslineForeground = src.StatuslineForeground
	}
	if src.StatuslineBackground != "" {
		dst.StatuslineBackground = src.StatuslineBackground
	}
	if src.CommandlineForeground != "" {
		dst.CommandlineForeground = src.CommandlineForeground
	}
	if src.CommandlineBackground != "" {
		dst.CommandlineBackground = src.CommandlineBackground
	}
	if src.LabelForeground != "" {
		dst.LabelForeground = src.LabelForeground
	}
	if src.ActiveLabelForeground != "" {
		dst.ActiveLabelForeground = src.ActiveLabelForeground
	}
	if src.CounterForeground != "" {
		dst.CounterForeground = src.CounterForeground
	}
	if src.CounterOverForeground != "" {
		dst.CounterOverForeground = src.CounterOverForeground
	}
	if src.ErrorForeground != "" {
		dst.ErrorForeground = src.ErrorForeground
	}
	if src.PendingForeground != "" {
		dst.PendingForeground = src.PendingForeground
	}
	if src.PopupForeground != "" {
		dst.PopupForeground = src.PopupForeground
	}
	if src.PopupBackground != "" {
		dst.PopupBackground = src.PopupBackground
	}
	if src.PopupBorderForeground != "" {
		dst.PopupBorderForeground = src.PopupBorderForeground
	}
	if src.PopupHotkeyForeground != "" {
		dst.PopupHotkeyForeground = src.PopupHotkeyForeground
	}
}

func ThemePath(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "theme", name+".toml"), nil
}

func LoadTheme(name string) (Theme, error) {
	path, err := ThemePath(name)
	if err != nil {
		return Theme{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Theme{}, err
	}
	var t Theme
	if _, err := toml.Decode(string(data), &t); err == nil {
		return t, nil
	}
	var wrap struct {
		Theme Theme `toml:"theme"`
	}
	if _, err := toml.Decode(string(data), &wrap); err != nil {
		return Theme{}, err
	}
	return wrap.Theme, nil
}

func ConfigDir() (string, error) {
	if v := os.Getenv("CAPEDIT_CONFIG_HOME"); v != "" {
		return filepath.Join(v), nil
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "capedit"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "capedit"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}
