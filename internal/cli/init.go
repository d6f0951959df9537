package cli

import (
	"fmt"
	"path/filepath"

	"github.com/ldi/pbltrack/internal/config"
	"github.com/spf13/cobra"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize pbltrack in the workspace directory",
		Long:  "Creates .pbltrack/ with a default config.yaml and database, restoring the snapshot if one is present.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if err := config.Init(opts.dir); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Created %s\n", filepath.Join(opts.dir, config.Dir))

			ws, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()
			fmt.Fprintf(out, "✓ Initialized database at %s\n", ws.cfg.DBPath)

			projects, err := ws.db.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			if len(projects) > 0 {
				fmt.Fprintf(out, "✓ %d project(s) available\n", len(projects))
			}

			fmt.Fprintln(out, "\nNext steps:")
			fmt.Fprintln(out, "  1. pbltrack project create \"<title>\" --start YYYY-MM-DD")
			fmt.Fprintln(out, "  2. pbltrack mcp   or   pbltrack web")
			return nil
		},
	}
}
