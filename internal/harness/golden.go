package harness

import (
	"context"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/lavadb/internal/store"
)

// RunWithGolden executes a scenario against st and, if the scenario names
// a trace, compares the rendered provenance lines against the golden file
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, st *store.Store, sc *Scenario) error {
	t.Helper()

	ctx := context.Background()
	runner := NewRunner(st)
	if err := runner.Run(ctx, sc); err != nil {
		return err
	}

	if len(sc.Trace) == 0 {
		return nil
	}

	var buf strings.Builder
	for _, alias := range sc.Trace {
		line, err := runner.TraceLine(ctx, alias)
		if err != nil {
			return err
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, []byte(buf.String()))

	return nil
}
