package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kobzarvs/capedit/internal/logger"
)

// errBlockers makes check exit non-zero without printing anything more.
var errBlockers = errors.New("blocker issues found")

var rootCmd = &cobra.Command{
	Use:   "capedit",
	Short: "Terminal caption editor with inline campaign feedback",
	Long: `capedit edits social media captions and highlights the passages an
analysis service flags, with suggestions that can be applied in place.`,
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug, err := cmd.Flags().GetBool("debug")
		if err != nil {
			return err
		}
		if err := logger.Init(debug); err != nil {
			// logging is best effort; the editor works without it
			fmt.Fprintln(os.Stderr, "capedit: logging disabled:", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
	RunE: runEdit,
}

func main() {
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.PersistentFlags().Bool("debug", false, "write debug output to the log file")
	addEditFlags(rootCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errBlockers) {
			fmt.Fprintln(os.Stderr, "capedit:", err)
		}
		os.Exit(1)
	}
}
