package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sakinah/internal/session"
)

func (a *app) statsCmd() *cobra.Command {
	var (
		days   int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise recorded progress over recent days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, sess *session.Session) error {
				sum, err := sess.Summary(ctx, days)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), sum)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "period:       %s .. %s\n", sum.From, sum.To)
				fmt.Fprintf(out, "completions:  %d\n", sum.TaskCompletions)
				fmt.Fprintf(out, "days done:    %d\n", sum.DaysCompleted)
				fmt.Fprintf(out, "best streak:  %d\n", sum.BestStreak)
				fmt.Fprintf(out, "cards:        %d\n", sum.YellowCards)
				for reason, n := range sum.CardsByReason {
					fmt.Fprintf(out, "  %s  %d\n", reason, n)
				}
				fmt.Fprintf(out, "resets:       %d\n", sum.StreakResets)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "Number of days ending today")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
