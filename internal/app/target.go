package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kobzarvs/capedit/internal/analysis"
	"github.com/kobzarvs/capedit/internal/campaign"
	"github.com/kobzarvs/capedit/internal/config"
	"github.com/kobzarvs/capedit/internal/logger"
	"github.com/kobzarvs/capedit/internal/session"
)

const scratchKey = "scratch"

var errNoSaveTarget = errors.New("nothing to save to: open a --post or a --file")

// campaignStore is the part of the campaign service an editing run needs.
type campaignStore interface {
	ListCampaigns(ctx context.Context) ([]campaign.Campaign, error)
	UpdatePost(ctx context.Context, id string, upd campaign.PostUpdate) (campaign.Post, error)
}

// target is what an editing run opens and saves back to.
type target struct {
	key      string
	label    string
	title    string
	caption  string
	platform string
	campaign *analysis.CampaignContext
	save     func(ctx context.Context, title, caption string) error
}

func newCampaignClient(cfg config.Config) *campaign.Client {
	base := cfg.Analysis.CampaignURL
	if base == "" {
		base = cfg.Analysis.BaseURL
	}
	return campaign.New(campaign.Options{BaseURL: base, Logger: logger.Named("campaign")})
}

func newDraftManager(cfg config.Config) (*session.Manager, error) {
	return session.NewManager(session.Options{
		Autosave: time.Duration(cfg.Editor.AutosaveSeconds) * time.Second,
		Logger:   logger.Named("drafts"),
	})
}

// startup fetches campaigns and opens the draft store concurrently. Campaigns
// are only fetched when a post is opened or a campaign brief is not known
// locally; a failed fetch is fatal only for a post.
func startup(ctx context.Context, opts Options, briefs config.Briefs, store campaignStore, openDrafts func() (*session.Manager, error)) ([]campaign.Campaign, *session.Manager, error) {
	var (
		campaigns []campaign.Campaign
		drafts    *session.Manager
	)
	g, gctx := errgroup.WithContext(ctx)
	if opts.PostID != "" || (opts.Campaign != "" && briefs.Match(opts.Campaign) == nil) {
		g.Go(func() error {
			list, err := store.ListCampaigns(gctx)
			if err != nil {
				if opts.PostID != "" {
					return err
				}
				logger.Warn("campaigns unavailable", "campaign", opts.Campaign, "error", err)
				return nil
			}
			campaigns = list
			return nil
		})
	}
	g.Go(func() error {
		m, err := openDrafts()
		if err != nil {
			return fmt.Errorf("open drafts: %w", err)
		}
		drafts = m
		return nil
	})
	if err := g.Wait(); err != nil {
		if drafts != nil {
			_ = drafts.Stop()
		}
		return nil, nil, err
	}
	return campaigns, drafts, nil
}

// resolveTarget decides what to edit from the command line: a campaign post,
// a caption file, or an unsaved scratch caption.
func resolveTarget(opts Options, briefs config.Briefs, store campaignStore, campaigns []campaign.Campaign) (target, error) {
	var t target
	switch {
	case opts.PostID != "":
		c, post, ok := campaign.FindPost(campaigns, opts.PostID)
		if !ok {
			return target{}, fmt.Errorf("post %q not found", opts.PostID)
		}
		label := post.Title
		if label == "" {
			label = post.ID
		}
		t = target{
			key:      session.PostKey(post.ID),
			label:    c.Name + " / " + label,
			title:    post.Title,
			caption:  post.Caption,
			campaign: c.Brief.Context(),
			save: func(ctx context.Context, title, caption string) error {
				_, err := store.UpdatePost(ctx, post.ID, campaign.PostUpdate{Title: title, Caption: caption})
				return err
			},
		}
	case opts.FilePath != "":
		caption, err := readCaption(opts.FilePath)
		if err != nil {
			return target{}, err
		}
		path := opts.FilePath
		t = target{
			key:     session.FileKey(path),
			label:   path,
			caption: caption,
			save: func(_ context.Context, _, caption string) error {
				return writeCaption(path, caption)
			},
		}
	default:
		t = target{
			key:   scratchKey,
			label: "scratch",
			save: func(context.Context, string, string) error {
				return errNoSaveTarget
			},
		}
	}

	if opts.Title != "" {
		t.title = opts.Title
	}
	t.platform = strings.ToLower(strings.TrimSpace(opts.Platform))
	if opts.Campaign != "" {
		t.campaign = campaignContext(opts.Campaign, briefs, campaigns, t.campaign)
	}
	return t, nil
}

// campaignContext prefers a local brief, then a campaign of that name from
// the service, then fallback.
func campaignContext(name string, briefs config.Briefs, campaigns []campaign.Campaign, fallback *analysis.CampaignContext) *analysis.CampaignContext {
	if b := briefs.Match(name); b != nil {
		return campaign.Brief{
			Overview:       b.Overview,
			TargetAudience: b.TargetAudience,
			BrandVoice:     b.BrandVoice,
			Guardrails:     b.Guardrails,
		}.Context()
	}
	if c, ok := campaign.FindByName(campaigns, name); ok {
		return c.Brief.Context()
	}
	logger.Warn("unknown campaign", "name", name)
	return fallback
}

// readCaption loads a caption file. A missing file is a new, empty caption.
func readCaption(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func writeCaption(path, caption string) error {
	if err := os.WriteFile(path, []byte(caption+"\n"), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
