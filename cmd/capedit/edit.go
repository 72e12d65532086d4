package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kobzarvs/capedit/internal/app"
)

var editCmd = &cobra.Command{
	Use:   "edit [flags]",
	Short: "Open the caption editor (default command)",
	Args:  cobra.NoArgs,
	RunE:  runEdit,
}

func init() {
	addEditFlags(editCmd)
}

func addEditFlags(cmd *cobra.Command) {
	cmd.Flags().String("post", "", "edit the campaign post with this id")
	cmd.Flags().String("file", "", "edit the caption stored in this file")
	cmd.Flags().String("title", "", "post title sent along with the caption")
	cmd.Flags().String("platform", "", "target platform (instagram|tiktok|linkedin|x|facebook)")
	cmd.Flags().String("campaign", "", "campaign whose brief guides the analysis")
	cmd.MarkFlagsMutuallyExclusive("post", "file")
}

func runEdit(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	var opts app.Options
	for name, dst := range map[string]*string{
		"post":     &opts.PostID,
		"file":     &opts.FilePath,
		"title":    &opts.Title,
		"platform": &opts.Platform,
		"campaign": &opts.Campaign,
	} {
		v, err := cmd.Flags().GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if err := app.New(opts).Run(cmd.Context()); err != nil {
		return fmt.Errorf("edit %s: %w", opts.Describe(), err)
	}
	return nil
}
