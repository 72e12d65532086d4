// Package session persists unsaved caption drafts between runs.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultAutosave = 15 * time.Second

// Field is the input that had focus when a draft was recorded.
type Field string

const (
	FieldTitle   Field = "title"
	FieldCaption Field = "caption"
)

// Draft is the unsaved state of one editor target.
type Draft struct {
	Title     string    `json:"title"`
	Caption   string    `json:"caption"`
	Platform  string    `json:"platform,omitempty"`
	Field     Field     `json:"field,omitempty"`
	Cursor    int       `json:"cursor"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State is the on-disk document.
type State struct {
	Drafts     map[string]Draft `json:"drafts"`
	LastTarget string           `json:"last_target,omitempty"`
	LastSaved  time.Time        `json:"last_saved"`
}

// PostKey and FileKey name the two kinds of editor targets.
func PostKey(id string) string { return "post:" + id }

func FileKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file:" + path
}

type Options struct {
	// Path defaults to DefaultPath().
	Path string
	// Autosave is the flush interval; zero means 15s, negative disables it.
	Autosave time.Duration
	Logger   *zap.Logger
}

// Manager handles draft persistence.
type Manager struct {
	mu       sync.RWMutex
	state    State
	path     string
	dirty    bool
	log      *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		opts.Path = p
	}
	if opts.Autosave == 0 {
		opts.Autosave = defaultAutosave
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, err
	}

	m := &Manager{
		state:    State{Drafts: make(map[string]Draft)},
		path:     opts.Path,
		log:      opts.Logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	m.load()

	if opts.Autosave > 0 {
		go m.autosaveLoop(opts.Autosave)
	} else {
		close(m.done)
	}
	return m, nil
}

// DefaultPath is drafts.json under $CAPEDIT_STATE_HOME, or the capedit
// directory of $XDG_STATE_HOME (~/.local/state).
func DefaultPath() (string, error) {
	if v := os.Getenv("CAPEDIT_STATE_HOME"); v != "" {
		return filepath.Join(v, "drafts.json"), nil
	}
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		stateDir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDir, "capedit", "drafts.json"), nil
}

func (m *Manager) load() {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		m.log.Warn("ignoring unreadable drafts file", zap.String("path", m.path), zap.Error(err))
		return
	}
	if state.Drafts == nil {
		state.Drafts = make(map[string]Draft)
	}
	m.state = state
}

// Save writes the drafts if anything changed since the last write.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirty {
		return nil
	}

	m.state.LastSaved = time.Now()
	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return err
	}
	// rename keeps a crash from leaving a truncated file behind
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return err
	}

	m.dirty = false
	m.log.Debug("drafts saved", zap.Int("count", len(m.state.Drafts)))
	return nil
}

func (m *Manager) ForceSave() error {
	m.mu.Lock()
	m.dirty = true
	m.mu.Unlock()
	return m.Save()
}

func (m *Manager) Draft(key string) (Draft, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.state.Drafts[key]
	return d, ok
}

// SetDraft records the unsaved state of key and makes it the last target.
func (m *Manager) SetDraft(key string, d Draft) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.state.Drafts[key]; ok && sameDraft(old, d) {
		return
	}
	d.UpdatedAt = time.Now()
	m.state.Drafts[key] = d
	m.state.LastTarget = key
	m.dirty = true
}

// Discard forgets key, typically once its draft was saved upstream.
func (m *Manager) Discard(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.Drafts[key]; !ok {
		return
	}
	delete(m.state.Drafts, key)
	m.dirty = true
}

func (m *Manager) LastTarget() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.LastTarget
}

func (m *Manager) autosaveLoop(every time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Save(); err != nil {
				m.log.Warn("autosave failed", zap.Error(err))
			}
		case <-m.stopChan:
			return
		}
	}
}

// Stop ends the autosave loop and flushes pending changes.
func (m *Manager) Stop() error {
	m.stopOnce.Do(func() { close(m.stopChan) })
	<-m.done
	return m.Save()
}

func sameDraft(a, b Draft) bool {
	return a.Title == b.Title && a.Caption == b.Caption && a.Platform == b.Platform &&
		a.Field == b.Field && a.Cursor == b.Cursor
}
