package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/ldi/pbltrack/internal/ui/components"
	"github.com/ldi/pbltrack/pkg/models"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var projectRef string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize a project's tasks by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			project, err := ws.project(ctx, projectRef)
			if err != nil {
				return err
			}
			tasks, err := ws.db.ListEvaluatedTasks(ctx, project.ID)
			if err != nil {
				return err
			}

			counts := make(map[models.TaskStatus]int)
			var blocked, completable int
			for _, t := range tasks {
				counts[t.Status]++
				if t.Blocked {
					blocked++
				}
				if t.Completable && t.Status != models.TaskStatusDone {
					completable++
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", project.Title)
			fmt.Fprintf(out, "Total Tasks:   %d\n", len(tasks))
			fmt.Fprintf(out, "Blocked:       %d\n", blocked)
			fmt.Fprintf(out, "Ready to Done: %d\n", completable)
			fmt.Fprintln(out, "\nTask Breakdown:")
			fmt.Fprintf(out, "  To Do:       %d\n", counts[models.TaskStatusTodo])
			fmt.Fprintf(out, "  In Progress: %d\n", counts[models.TaskStatusInProgress])
			fmt.Fprintf(out, "  Review:      %d\n", counts[models.TaskStatusReview])
			fmt.Fprintf(out, "  Done:        %d\n", counts[models.TaskStatusDone])

			board := components.NewStatusBoard(60)
			board.Title = ""
			board.SetTasks(tasks)
			fmt.Fprintf(out, "\n%s\n", board.View())
			return nil
		},
	}
	cmd.Flags().StringVar(&projectRef, "project", "", "project ID or title")
	return cmd
}

func newListTasksCmd(opts *rootOptions) *cobra.Command {
	var (
		projectRef string
		status     string
	)
	cmd := &cobra.Command{
		Use:   "list-tasks",
		Short: "List tasks with their blocked and completable flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter models.TaskStatus
			if status != "" {
				filter = models.TaskStatus(status)
				if !filter.Valid() {
					return fmt.Errorf("invalid --status %q", status)
				}
			}

			ctx := cmd.Context()
			ws, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer ws.Close()

			project, err := ws.project(ctx, projectRef)
			if err != nil {
				return err
			}
			tasks, err := ws.db.ListEvaluatedTasks(ctx, project.ID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tBLOCKED\tCOMPLETABLE\tASSIGNEE\tDUE")
			for _, t := range tasks {
				if filter != "" && t.Status != filter {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					t.ID,
					t.Title,
					t.Status,
					yesNo(t.Blocked),
					yesNo(t.Completable),
					optional(t.AssigneeID),
					formatDate(t.DueDate),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&projectRef, "project", "", "project ID or title")
	cmd.Flags().StringVar(&status, "status", "", "only tasks in this status (todo, in_progress, review, done)")
	return cmd
}
