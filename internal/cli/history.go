package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"counselor-assistant/internal/app"
	"counselor-assistant/internal/history"
)

func openLog(ctx context.Context) (*history.Log, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	done := func() {
		if closeStore != nil {
			_ = closeStore()
		}
	}
	return history.NewLog(store), done, nil
}

// NewStatsCmd creates the 'stats' command.
func NewStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show feedback statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, done, err := openLog(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			stats, err := log.ComputeStats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			fmt.Fprint(cmd.OutOrStdout(), stats.Summary())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	return cmd
}

// NewHistoryCmd creates the 'history' command.
func NewHistoryCmd() *cobra.Command {
	var (
		user       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the interactions of one counselor",
		Example: `  counselorctl history --user alice
  counselorctl history --user Unknown --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, done, err := openLog(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			records := log.ListForUser(cmd.Context(), user)
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No interaction history found.")
				return nil
			}
			for _, rec := range records {
				feedback := string(rec.Feedback)
				if !rec.Feedback.IsSet() {
					feedback = "-"
				}
				fmt.Fprintf(out, "%s  [%s]  %s\n", rec.Timestamp, feedback, rec.Challenge)
				if len(rec.Suggestions) > 0 {
					fmt.Fprintf(out, "    %s\n", strings.Join(rec.Suggestions, "\n    "))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "Counselor username")
	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
