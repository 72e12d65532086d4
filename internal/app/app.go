package app

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/kobzarvs/capedit/internal/analysis"
	"github.com/kobzarvs/capedit/internal/annotate"
	"github.com/kobzarvs/capedit/internal/config"
	"github.com/kobzarvs/capedit/internal/editor"
	"github.com/kobzarvs/capedit/internal/logger"
	"github.com/kobzarvs/capedit/internal/session"
)

// Options are the command-line choices of one editing run.
type Options struct {
	PostID   string
	FilePath string
	Title    string
	Platform string
	Campaign string
}

// App is the top-level runtime for capedit.
type App struct {
	opts Options
}

func New(opts Options) *App {
	return &App{opts: opts}
}

func (a *App) Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	briefs, err := config.LoadBriefs()
	if err != nil {
		return err
	}

	store := newCampaignClient(cfg)
	campaigns, drafts, err := startup(ctx, a.opts, briefs, store, func() (*session.Manager, error) {
		return newDraftManager(cfg)
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := drafts.Stop(); err != nil {
			logger.Warn("saving drafts failed", "error", err)
		}
	}()

	t, err := resolveTarget(a.opts, briefs, store, campaigns)
	if err != nil {
		return err
	}

	s, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	s.EnableMouse()
	defer s.Fini()

	analyzer := analysis.New(analysis.Options{
		BaseURL: cfg.Analysis.BaseURL,
		Timeout: cfg.Analysis.Timeout(),
		Logger:  logger.Named("analysis"),
	})
	return (&editRun{
		cfg:      cfg,
		screen:   s,
		analyzer: analyzer,
		target:   t,
		drafts:   drafts,
	}).run(ctx)
}

// editRun is one interactive session over a target.
type editRun struct {
	cfg      config.Config
	screen   tcell.Screen
	analyzer annotate.Analyzer
	target   target
	drafts   *session.Manager
}

func (r *editRun) run(ctx context.Context) error {
	t := r.target
	platform := t.platform
	draft, restored := r.restoreDraft()
	if platform == "" && restored {
		platform = draft.Platform
	}
	if platform == "" {
		platform = r.cfg.Analysis.Platform
	}

	s := r.screen
	sess := annotate.NewSession(r.analyzer, t.title, t.caption, annotate.SessionConfig{
		Vocabulary: editor.Vocabulary(r.cfg),
		Debounce:   r.cfg.Analysis.Debounce(),
		TitleMax:   r.cfg.Limits.TitleMax,
		CaptionMax: r.cfg.Limits.CaptionMax,
		Platform:   platform,
		Campaign:   t.campaign,
		Logger:     logger.Named("annotate"),
		OnChange: func() {
			// drawing stays on the event loop
			_ = s.PostEvent(tcell.NewEventInterrupt(nil))
		},
	})
	defer sess.Close()

	ed := editor.New(r.cfg, sess, t.label)
	if restored {
		// applied as edits so the session stays dirty against the original
		sess.SetTitle(draft.Title)
		sess.Edit(draft.Caption)
		field := editor.FieldCaption
		if draft.Field == session.FieldTitle {
			field = editor.FieldTitle
		}
		ed.SetCursor(field, draft.Cursor)
		ed.SetStatus("Restored unsaved draft")
	}
	if field, _ := ed.Cursor(); field == editor.FieldCaption {
		ed.Focus()
	}
	logger.Info("editor opened", "target", t.key, "platform", platform, "restored", restored)

	ed.Render(s)
	for {
		ev := s.PollEvent()
		if ev == nil {
			return nil
		}
		switch ev := ev.(type) {
		case *tcell.EventKey:
			if ed.HandleKey(ev) {
				// quitting clean or discarding: nothing worth keeping
				r.drafts.Discard(t.key)
				return nil
			}
		case *tcell.EventMouse:
			ed.HandleMouse(ev)
		case *tcell.EventResize:
			s.Sync()
		case *tcell.EventInterrupt:
		}

		if quitAfter, ok := ed.ConsumeSaveRequest(); ok {
			err := t.save(ctx, sess.Title(), sess.Text())
			ed.SaveFinished(err)
			if err != nil {
				logger.Warn("save failed", "target", t.key, "error", err)
			} else {
				logger.Info("saved", "target", t.key)
				r.drafts.Discard(t.key)
				if quitAfter {
					return nil
				}
			}
		}
		r.recordDraft(sess, ed)
		ed.Render(s)
	}
}

func (r *editRun) restoreDraft() (session.Draft, bool) {
	if !r.cfg.Editor.RestoreDrafts {
		return session.Draft{}, false
	}
	d, ok := r.drafts.Draft(r.target.key)
	if !ok {
		return session.Draft{}, false
	}
	if d.Title == r.target.title && d.Caption == r.target.caption {
		return session.Draft{}, false
	}
	return d, true
}

func (r *editRun) recordDraft(sess *annotate.Session, ed *editor.Editor) {
	if !sess.Dirty() {
		return
	}
	field, cursor := ed.Cursor()
	r.drafts.SetDraft(r.target.key, session.Draft{
		Title:    sess.Title(),
		Caption:  sess.Text(),
		Platform: sess.Platform(),
		Field:    session.Field(field.String()),
		Cursor:   cursor,
	})
}

// Describe is a one-line summary of what a run with opts would open, used by
// the CLI in error messages.
func (o Options) Describe() string {
	switch {
	case o.PostID != "":
		return fmt.Sprintf("post %s", o.PostID)
	case o.FilePath != "":
		return o.FilePath
	}
	return "scratch caption"
}
