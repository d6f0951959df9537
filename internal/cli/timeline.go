package cli

import (
	"fmt"
	"time"

	"github.com/ldi/pbltrack/internal/timeline"
	"github.com/ldi/pbltrack/internal/ui"
	"github.com/ldi/pbltrack/internal/ui/components"
	"github.com/spf13/cobra"
)

func newTimelineCmd(opts *rootOptions) *cobra.Command {
	var (
		projectRef string
		today      string
		printOnly  bool
		width      int
	)
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show a project's Gantt chart",
		Long:  "Opens an interactive Gantt chart with each task's critiques. Use --print for a one-off render.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			clock := time.Now
			if today != "" {
				d, err := timeline.ParseDate(today)
				if err != nil {
					return fmt.Errorf("invalid --today: %w", err)
				}
				clock = func() time.Time { return d }
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

			if !printOnly {
				return ui.RunTimeline(ws.db, project, clock)
			}

			grid, err := ws.db.Timeline(ctx, project.ID, clock())
			if err != nil {
				return err
			}
			g := components.NewGantt(*grid, width)
			fmt.Fprintln(cmd.OutOrStdout(), g.View())
			return nil
		},
	}
	cmd.Flags().StringVar(&projectRef, "project", "", "project ID or title")
	cmd.Flags().StringVar(&today, "today", "", "date to mark as today (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the chart instead of opening the viewer")
	cmd.Flags().IntVar(&width, "width", 100, "chart width in columns for --print")
	return cmd
}
