package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/lavadb/internal/store"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Database string
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify referential integrity",
		Long: `Sweep every stored record and report dangling references, both in
scalar reference fields and inside stored sequences. Exits nonzero when
any violation is found.

Example:
  lavadb check --db ./lava.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runCheck(opts *CheckOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	violations, err := st.CheckIntegrity(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "integrity check failed to run", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		if err := formatter.Success(map[string]any{
			"violations": violations,
			"clean":      len(violations) == 0,
		}); err != nil {
			return err
		}
	} else {
		for _, v := range violations {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d violation(s)\n", len(violations))
	}

	if len(violations) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d integrity violation(s)", len(violations)))
	}
	return nil
}
