package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kobzarvs/capedit/internal/analysis"
	"github.com/kobzarvs/capedit/internal/app"
	"github.com/kobzarvs/capedit/internal/config"
	"github.com/kobzarvs/capedit/internal/logger"
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] [-]",
	Short: "Analyze a caption once and print the flagged passages",
	Long: `check sends a caption to the analysis service and prints it with the
flagged passages colored, followed by comments and suggestions. The caption is
read from --file, or from standard input when no file is given or the argument
is "-". The exit status is 1 when any blocker is reported.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("file", "", "read the caption from this file")
	checkCmd.Flags().String("title", "", "post title sent along with the caption")
	checkCmd.Flags().String("platform", "", "target platform")
	checkCmd.Flags().String("campaign", "", "campaign brief from campaigns.toml")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	path, _ := cmd.Flags().GetString("file")
	title, _ := cmd.Flags().GetString("title")
	platform, _ := cmd.Flags().GetString("platform")
	campaignName, _ := cmd.Flags().GetString("campaign")
	if len(args) == 1 && args[0] != "-" {
		return fmt.Errorf("check: unexpected argument %q (use --file)", args[0])
	}

	caption, err := readCheckInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(caption) == "" {
		return fmt.Errorf("check: caption is empty")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	briefs, err := config.LoadBriefs()
	if err != nil {
		return err
	}

	analyzer := analysis.New(analysis.Options{
		BaseURL: cfg.Analysis.BaseURL,
		Timeout: cfg.Analysis.Timeout(),
		Logger:  logger.Named("analysis"),
	})
	res, err := app.Check(cmd.Context(), cfg, analyzer, app.CheckOptions{
		Title:    title,
		Caption:  caption,
		Platform: strings.ToLower(strings.TrimSpace(platform)),
		Campaign: app.CheckBriefContext(campaignName, briefs),
	})
	if err != nil {
		return err
	}
	app.WriteReport(cmd.OutOrStdout(), res)
	if res.Blockers > 0 {
		return errBlockers
	}
	return nil
}

func readCheckInput(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read caption: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
