package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/lavadb/internal/canon"
	"github.com/roach88/lavadb/internal/model"
	"github.com/roach88/lavadb/internal/store"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database string
	Entity   string
	Out      string
}

// exportOrder fixes the emission order for full exports.
var exportOrder = []string{
	"source_lvals",
	"labelsets",
	"source_functions",
	"calls",
	"duas",
	"attack_points",
	"bugs",
	"source_modifications",
	"builds",
	"runs",
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records as canonical JSON lines",
		Long: `Write stored records to stdout, one canonical JSON object per line.
Records are ordered by their natural key, so two databases holding the
same records export byte-identical streams regardless of insertion order.

Example:
  lavadb export --db ./lava.db
  lavadb export --db ./lava.db --entity bugs --out bugs.jsonl`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Entity, "entity", "all", "entity to export, or \"all\"")
	cmd.Flags().StringVar(&opts.Out, "out", "", "write to file instead of stdout")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	entities := exportOrder
	if opts.Entity != "all" {
		entities = []string{opts.Entity}
	}

	ctx := cmd.Context()
	var out io.Writer = cmd.OutOrStdout()
	if opts.Out != "" {
		f, err := os.Create(opts.Out)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create output file", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil {
				slog.Error("error closing output file", "error", closeErr)
			}
		}()
		out = f
	}
	for _, entity := range entities {
		n, err := exportEntity(ctx, st, entity, out)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to export %s", entity), err)
		}
		slog.Debug("entity exported", "entity", entity, "records", n)
	}
	return nil
}

func exportEntity(ctx context.Context, st *store.Store, entity string, out io.Writer) (int, error) {
	switch entity {
	case "source_lvals":
		recs, err := st.ScanSourceLvals(ctx)
		if err != nil {
			return 0, err
		}
		return writeRecords(out, entity, recs, func(r model.SourceLval) map[string]any {
			return map[string]any{
				"id":       int64(r.ID),
				"file":     r.File,
				"line":     r.Line,
				"ast_name": r.AstName,
				"timing":   r.Timing.String(),
			}
		})
	case "labelsets":
		recs, err := st.ScanLabelSets(ctx)
		if err != nil {
			return 0, err
		}
		return writeRecords(out, entity, recs, func(r model.LabelSet) map[string]any {
			return map[string]any{
				"id":        int64(r.ID),
				"ptr":       r.Ptr,
				"inputfile": r.Inputfile,
				"labels":    labelList(r.Labels),
			}
		})
	case "source_functions":
		recs, err := st.ScanSourceFunctions(ctx)
		if err != nil {
			return 0, err
		}
		return writeRecords(out, entity, recs, func(r model.SourceFunction) map[string]any {
			return map[string]any{
				"id":   int64(r.ID),
				"file": r.File,
				"line": r.Line,
				"name": r.Name,
			}
		})
	case "calls":
		recs, err := st.ScanCalls(ctx)
		if err != nil {
			return 0, err
		}
		return writeRecords(out, entity, recs, func(r model.Call) map[string]any {
			return map[string]any{
				"id":            int64(r.ID),
				"call_instr":    r.CallInstr,
				"ret_instr":     r.RetInstr,
				"function":      int64(r.CalledFunctionID),
				"callsite_file": r.CallsiteFile,
				"callsite_line": r.CallsiteLine,
			}
		})
	case "duas":
		recs, err := st.ScanDuas(ctx)
		if err != nil {
			return 0, err
		}
		return writeRecords(out, entity, recs, func(r model.Dua) map[string]any {
			return map[string]any{
				"id":              int64(r.ID),
				"lval":            int64(r.LvalID),
				"viable_bytes":    refList(r.ViableBytes),
				"all_labels":      labelList(r.AllLabels),
				"inputfile":       r.Inputfile,
				"max_tcn":         r.MaxTCN,
				"max_cardinality": r.MaxCardinality,
				"instr":           r.Instr,
				"fake_dua":        r.FakeDua,
			}
		})
	case "attack_points":
		recs, err := st.ScanAttackPoints(ctx)
		if err != nil {
			return 0, err
		}
		return writeRecords(out, entity, recs, func(r model.AttackPoint) map[string]any {
			return map[string]any{
				"id":   int64(r.ID),
				"file": r.File,
				"line": r.Line,
				"type": r.Type.String(),
			}
		})
	case "bugs":
		recs, err := st.ScanBugs(ctx)
		if err != nil {
			return 0, err
		}
		return writeRecords(out, entity, recs, func(r model.Bug) map[string]any {
			return map[string]any{
				"id":             int64(r.ID),
				"dua":            int64(r.DuaID),
				"atp":            int64(r.AtpID),
				"selected_bytes": labelList(r.SelectedBytes),
				"max_liveness":   r.MaxLiveness,
			}
		})
	case "source_modifications":
		recs, err := st.ScanSourceModifications(ctx)
		if err != nil {
			return 0, err
		}
		return writeRecords(out, entity, recs, func(r model.SourceModification) map[string]any {
			return map[string]any{
				"id":                  int64(r.ID),
				"lval":                int64(r.LvalID),
				"atp":                 int64(r.AtpID),
				"selected_bytes":      labelList(r.SelectedBytes),
				"selected_bytes_hash": r.SelectedBytesHash,
			}
		})
	case "builds":
		recs, err := st.ScanBuilds(ctx)
		if err != nil {
			return 0, err
		}
		return writeRecords(out, entity, recs, func(r model.Build) map[string]any {
			return map[string]any{
				"id":      int64(r.ID),
				"bugs":    refList(r.Bugs),
				"output":  r.Output,
				"compile": r.Compile,
			}
		})
	case "runs":
		recs, err := st.ScanRuns(ctx)
		if err != nil {
			return 0, err
		}
		return writeRecords(out, entity, recs, func(r model.Run) map[string]any {
			return map[string]any{
				"id":       int64(r.ID),
				"build":    int64(r.BuildID),
				"fuzzed":   int64(r.FuzzedID),
				"exitcode": r.Exitcode,
				"output":   r.Output,
				"success":  r.Success,
			}
		})
	}
	return 0, fmt.Errorf("unknown entity %q", entity)
}

// writeRecords emits one canonical JSON line per record, tagged with its
// entity name so a full export stays self-describing.
func writeRecords[T any](out io.Writer, entity string, recs []T, toMap func(T) map[string]any) (int, error) {
	for _, rec := range recs {
		obj := toMap(rec)
		obj["entity"] = entity
		line, err := canon.Marshal(obj)
		if err != nil {
			return 0, err
		}
		if _, err := out.Write(append(line, '\n')); err != nil {
			return 0, err
		}
	}
	return len(recs), nil
}

func labelList(labels []uint32) []any {
	out := make([]any, len(labels))
	for i, l := range labels {
		out[i] = l
	}
	return out
}

func refList(refs []model.RecID) []any {
	out := make([]any, len(refs))
	for i, r := range refs {
		out[i] = int64(r)
	}
	return out
}
