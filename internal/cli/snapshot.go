package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Write every project to a JSONL snapshot",
		Long:  "Writes the database to path, or to the configured snapshot file when no path is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()

			path := ws.cfg.SnapshotPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := ws.db.ExportSnapshot(cmd.Context(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported snapshot to %s\n", path)
			return nil
		},
	}
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <path>",
		Short: "Merge a JSONL snapshot into the database",
		Long:  "Upserts every record in the snapshot. Records already in the database but absent from the file are kept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ws.Close()

			if err := ws.db.ImportSnapshot(cmd.Context(), args[0]); err != nil {
				return err
			}
			ws.log.Printf("snapshot: imported %s", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported snapshot from %s\n", args[0])
			return nil
		},
	}
}
