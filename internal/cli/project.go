package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/ldi/pbltrack/internal/timeline"
	"github.com/ldi/pbltrack/pkg/models"
	"github.com/spf13/cobra"
)

func newProjectCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create and list projects",
	}
	cmd.AddCommand(newProjectCreateCmd(opts), newProjectListCmd(opts))
	return cmd
}

func newProjectCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		start       string
		description string
		critique    bool
	)
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := &models.Project{
				Title:           args[0],
				Description:     description,
				RequireCritique: critique,
			}
			if start != "" {
				d, err := timeline.ParseDate(start)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				p.StartDate = &d
			}

			ws, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()

			if err := ws.db.CreateProject(cmd.Context(), p); err != nil {
				return err
			}
			ws.log.Printf("project: created %s %q", p.ID, p.Title)
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created project %s (%s)\n", p.Title, p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "project start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&description, "description", "", "project description")
	cmd.Flags().BoolVar(&critique, "require-critique", false, "gate completion on peer critique")
	return cmd
}

func newProjectListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()

			projects, err := ws.db.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTART\tCRITIQUE")
			for _, p := range projects {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Title, formatDate(p.StartDate), yesNo(p.RequireCritique))
			}
			return w.Flush()
		},
	}
}
