package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sakinah/internal/model"
	"sakinah/internal/session"
)

func (a *app) tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and edit today's checklist",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks, incomplete first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, sess *session.Session) error {
				tasks := sess.Tasks.Sorted()
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), tasks)
				}
				return writeTasks(cmd.OutOrStdout(), tasks)
			})
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	var category, priority string
	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a custom task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, sess *session.Session) error {
				t, err := sess.Tasks.Add(ctx, args[0], model.Category(category), model.Priority(priority))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), t.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&category, "category", string(model.CategoryWorship), "worship, character, knowledge or transformation")
	add.Flags().StringVar(&priority, "priority", string(model.PriorityRoutine), "critical, important or routine")

	toggle := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a task between done and not done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, sess *session.Session) error {
				t, err := sess.Tasks.Toggle(ctx, model.TaskID(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", checkbox(t.Completed), t.Title)
				return nil
			})
		},
	}

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a custom task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, sess *session.Session) error {
				return sess.Tasks.RemoveCustom(ctx, model.TaskID(args[0]))
			})
		},
	}

	cmd.AddCommand(list, add, toggle, rm)
	return cmd
}
