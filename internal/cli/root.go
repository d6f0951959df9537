package cli

import (
	"github.com/spf13/cobra"
)

// Version is reported by --version.
var Version = "0.1.0"

type rootOptions struct {
	dir          string
	dbPath       string
	snapshotPath string
	debug        bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pbltrack",
		Short: "Dependency-aware task gating for project-based learning",
		Long: `pbltrack keeps a class project's tasks honest: a task cannot start until its
prerequisites are done, and cannot finish until peer critique allows it.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.dir, "dir", ".", "workspace directory containing .pbltrack/")
	flags.StringVar(&opts.dbPath, "db-path", "", "database file (overrides config.yaml)")
	flags.StringVar(&opts.snapshotPath, "snapshot-path", "", "snapshot file (overrides config.yaml)")
	flags.BoolVar(&opts.debug, "debug", false, "log at debug level")

	cmd.AddCommand(
		newInitCmd(opts),
		newProjectCmd(opts),
		newStatusCmd(opts),
		newListTasksCmd(opts),
		newTimelineCmd(opts),
		newWebCmd(opts),
		newMCPCmd(opts),
		newExportCmd(opts),
		newImportCmd(opts),
	)
	return cmd
}

// Execute runs the command line in os.Args.
func Execute() error {
	return newRootCmd().Execute()
}

// Run executes a single subcommand by name with no further arguments, as
// picked from the interactive menu.
func Run(command string) error {
	cmd := newRootCmd()
	cmd.SetArgs([]string{command})
	return cmd.Execute()
}
