package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/mono/internal/app"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [tasks...]",
		Short: "Run specified tasks across the workspace",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				// Display command usage help without returning an error
				_ = cmd.Help()
				return nil
			}
			noCache, _ := cmd.Flags().GetBool("no-cache")
			continueOnError, _ := cmd.Flags().GetBool("continue")
			parallelism, _ := cmd.Flags().GetInt("parallelism")
			filter, _ := cmd.Flags().GetStringSlice("filter")
			outputMode, _ := cmd.Flags().GetString("output-mode")
			ci, _ := cmd.Flags().GetBool("ci")
			watch, _ := cmd.Flags().GetBool("watch")

			// If --ci is set, override output-mode to "linear"
			if ci {
				outputMode = "linear"
			}

			return c.app.Run(cmd.Context(), args, app.RunOptions{
				Filter:          filter,
				Parallelism:     parallelism,
				NoCache:         noCache,
				ContinueOnError: continueOnError,
				OutputMode:      outputMode,
				Watch:           watch,
			})
		},
	}
	cmd.Flags().BoolP("no-cache", "n", false, "Bypass cache lookups and force execution")
	cmd.Flags().Bool("continue", false, "Keep running independent tasks after a failure")
	cmd.Flags().IntP("parallelism", "p", 0, "Maximum number of concurrent tasks (0 = number of CPUs)")
	cmd.Flags().StringSliceP("filter", "f", nil, "Restrict to the given packages (dependencies are always included)")
	cmd.Flags().StringP("output-mode", "o", "auto", "Output mode: auto, tui, or linear")
	cmd.Flags().Bool("ci", false, "Use linear output mode (shorthand for --output-mode=linear)")
	cmd.Flags().BoolP("watch", "w", false, "Rerun the tasks whenever workspace files change")
	return cmd
}
