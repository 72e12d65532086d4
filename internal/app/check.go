package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/kobzarvs/capedit/internal/analysis"
	"github.com/kobzarvs/capedit/internal/annotate"
	"github.com/kobzarvs/capedit/internal/config"
	"github.com/kobzarvs/capedit/internal/editor"
)

// CheckOptions describe a one-shot analysis of a caption.
type CheckOptions struct {
	Title    string
	Caption  string
	Platform string
	Campaign *analysis.CampaignContext
}

// CheckResult is an anchored analysis of one caption.
type CheckResult struct {
	Caption    string
	Spans      []annotate.MappedSpan
	Stale      bool
	Blockers   int
	Unplaced   int
	Vocabulary annotate.Vocabulary
}

// Check analyzes a caption once and anchors the result onto it.
func Check(ctx context.Context, cfg config.Config, analyzer annotate.Analyzer, opts CheckOptions) (CheckResult, error) {
	platform := opts.Platform
	if platform == "" {
		platform = cfg.Analysis.Platform
	}
	caption, lead := annotate.RequestCaption(opts.Caption)
	resp, err := analyzer.Draft(ctx, analysis.DraftRequest{
		Title:           strings.TrimSpace(opts.Title),
		Caption:         caption,
		Platform:        platform,
		CampaignContext: opts.Campaign,
	})
	if err != nil {
		return CheckResult{}, fmt.Errorf("analyze caption: %w", err)
	}

	vocab := editor.Vocabulary(cfg)
	spans := annotate.Anchor(opts.Caption, annotate.ShiftOffsets(resp.Spans, lead), vocab)
	res := CheckResult{
		Caption:    opts.Caption,
		Spans:      spans,
		Stale:      resp.PostUpdatedAfterSnapshot,
		Unplaced:   len(resp.Spans) - len(spans),
		Vocabulary: vocab,
	}
	top := vocab.Highest()
	for _, span := range spans {
		if span.Severity == top {
			res.Blockers++
		}
	}
	return res, nil
}

// CheckBriefContext resolves --campaign for the check command from local
// briefs only; check never talks to the campaign service.
func CheckBriefContext(name string, briefs config.Briefs) *analysis.CampaignContext {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	return campaignContext(name, briefs, nil, nil)
}

var severityColors = map[analysis.Severity]*color.Color{
	analysis.SeverityMinor:   color.New(color.FgYellow, color.Underline),
	analysis.SeverityMajor:   color.New(color.FgHiYellow, color.Bold, color.Underline),
	analysis.SeverityBlocker: color.New(color.FgRed, color.Bold, color.Underline),
}

func colorFor(sev analysis.Severity) *color.Color {
	if c, ok := severityColors[sev]; ok {
		return c
	}
	return color.New(color.Underline)
}

// WriteReport prints the caption with its flagged ranges colored, followed by
// one numbered entry per span.
func WriteReport(w io.Writer, res CheckResult) {
	for _, frag := range annotate.BuildFragments(res.Caption, res.Spans) {
		if frag.Span == nil {
			fmt.Fprint(w, frag.Text)
			continue
		}
		colorFor(frag.Span.Severity).Fprint(w, frag.Text)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	if len(res.Spans) == 0 {
		color.New(color.FgGreen).Fprintln(w, "No issues found.")
	}
	dim := color.New(color.Faint)
	for i, span := range res.Spans {
		label := res.Vocabulary.Label(span.Severity)
		colorFor(span.Severity).Fprintf(w, "%d. %s", i+1, label)
		fmt.Fprintf(w, " %q\n", span.Text)
		if span.Comment != "" {
			fmt.Fprintf(w, "   %s\n", span.Comment)
		}
		for j, sug := range span.Suggestions {
			fmt.Fprintf(w, "   %c) %s\n", 'a'+j, sug.Text)
			if sug.Rationale != "" {
				dim.Fprintf(w, "      %s\n", sug.Rationale)
			}
		}
	}
	if res.Unplaced > 0 {
		dim.Fprintf(w, "%d flagged passage(s) no longer match the caption.\n", res.Unplaced)
	}
	if res.Stale {
		dim.Fprintln(w, "The post changed after the analysis snapshot.")
	}
}
