package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/lavadb/internal/config"
	"github.com/roach88/lavadb/internal/store"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Database string
	Manifest string
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or open a record database",
		Long: `Create a record database, applying schema and migrations, and print
its instance id. Opening an existing database is safe and changes nothing.

The database path comes from --db, or from the database field of a manifest
given with --config.

Example:
  lavadb init --db ./lava.db
  lavadb init --config pass.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Manifest, "config", "", "path to analysis-pass manifest")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	dbPath := opts.Database
	if opts.Manifest != "" {
		manifest, err := config.Load(opts.Manifest)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load manifest", err)
		}
		slog.Info("manifest loaded",
			"project", manifest.Project,
			"inputfiles", len(manifest.Inputfiles))
		if dbPath == "" {
			dbPath = manifest.Database
		}
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, "no database path: pass --db or --config")
	}

	slog.Info("opening database", "path", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return formatter.Success(map[string]any{
			"database":    dbPath,
			"instance_id": st.InstanceID(),
		})
	}
	return formatter.Success(fmt.Sprintf("database %s ready, instance %s", dbPath, st.InstanceID()))
}
