package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sakinah/internal/model"
	"sakinah/internal/session"
)

type streakView struct {
	State               model.StreakState  `json:"state"`
	YellowCardsThisWeek []model.YellowCard `json:"yellowCardsThisWeek"`
	IsStreakAtRisk      bool               `json:"isStreakAtRisk"`
	ShouldResetStreak   bool               `json:"shouldResetStreak"`
}

func (a *app) streakCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "streak",
		Short: "Inspect and settle the streak",
	}

	var asJSON bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the streak and this week's yellow cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, sess *session.Session) error {
				v := streakView{
					State:               sess.Streak.State(),
					YellowCardsThisWeek: sess.Streak.YellowCardsThisWeek(),
					IsStreakAtRisk:      sess.Streak.IsStreakAtRisk(),
					ShouldResetStreak:   sess.Streak.ShouldResetStreak(),
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), v)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "streak:  %d\n", v.State.StreakCount)
				fmt.Fprintf(out, "today:   %s\n", v.State.TodayStatus)
				if last := v.State.LastCompleted(); !last.IsZero() {
					fmt.Fprintf(out, "last:    %s\n", last)
				}
				fmt.Fprintf(out, "cards:   %d this week\n", len(v.YellowCardsThisWeek))
				for _, c := range v.YellowCardsThisWeek {
					fmt.Fprintf(out, "  %s  %s\n", c.Date, c.Reason)
				}
				if v.IsStreakAtRisk {
					fmt.Fprintln(out, "warning: one more card resets the streak")
				}
				return nil
			})
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	closeDay := &cobra.Command{
		Use:   "close-day [date]",
		Short: "Settle a past day, issuing a yellow card if it was missed",
		Long: `Settle a past day (YYYY-MM-DD, default yesterday). A day that was
completed or already carries a card is left alone.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var day model.Date
			if len(args) == 1 {
				d, err := model.ParseDate(args[0])
				if err != nil {
					return err
				}
				day = d
			}
			return a.withSession(cmd, func(ctx context.Context, sess *session.Session) error {
				if day.IsZero() {
					day = sess.Today().AddDays(-1)
				}
				if sess.Streak.CloseDay(ctx, day) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: yellow card issued, streak %d\n", day, sess.Streak.State().StreakCount)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: nothing to settle\n", day)
				return nil
			})
		},
	}

	cmd.AddCommand(show, closeDay)
	return cmd
}

func (a *app) reminderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reminder",
		Short: "Print the reminder summary as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, sess *session.Session) error {
				return writeJSON(cmd.OutOrStdout(), sess.Reminder())
			})
		},
	}
}
