package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lavadb/internal/model"
	"github.com/roach88/lavadb/internal/store"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "lavadb", cmd.Use)
	assert.Contains(t, cmd.Long, "record database")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"init", "stats", "export", "check"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "stats", "--db", "x.db"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

// execute runs the CLI against args and returns captured stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInitCreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "lava.db")

	out, err := execute(t, "init", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, dbPath)
	assert.Contains(t, out, "instance")
}

func TestInitRequiresDatabasePath(t *testing.T) {
	_, err := execute(t, "init")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInitFromManifest(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "lava.db")
	manifestPath := filepath.Join(dir, "pass.yaml")
	manifest := "project: toy\ndatabase: " + dbPath + "\ninputfiles: [seed.bin]\n"
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifest), 0o644))

	out, err := execute(t, "init", "--config", manifestPath)
	require.NoError(t, err)
	assert.Contains(t, out, dbPath)
}

func TestStatsCountsRecords(t *testing.T) {
	dbPath := seedDatabase(t)

	out, err := execute(t, "stats", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "source_lvals")
	assert.Contains(t, out, "duas")
}

func TestExportEmitsCanonicalLines(t *testing.T) {
	dbPath := seedDatabase(t)

	out, err := execute(t, "export", "--db", dbPath, "--entity", "source_lvals")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"entity":"source_lvals"`)
	assert.Contains(t, lines[0], `"file":"src/parse.c"`)
}

func TestExportWritesToFile(t *testing.T) {
	dbPath := seedDatabase(t)
	outPath := filepath.Join(t.TempDir(), "dump.jsonl")

	stdout, err := execute(t, "export", "--db", dbPath, "--out", outPath)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"entity":"duas"`)
}

func TestExportRejectsUnknownEntity(t *testing.T) {
	dbPath := seedDatabase(t)

	_, err := execute(t, "export", "--db", dbPath, "--entity", "widgets")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheckCleanDatabase(t *testing.T) {
	dbPath := seedDatabase(t)

	out, err := execute(t, "check", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "0 violation(s)")
}

// seedDatabase creates a database holding one lval and one dua.
func seedDatabase(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "lava.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	lvalID, _, err := st.InternSourceLval(ctx, model.SourceLval{
		File: "src/parse.c", Line: 42, AstName: "buf", Timing: model.NullTiming,
	})
	require.NoError(t, err)
	_, _, err = st.InternDua(ctx, model.Dua{
		LvalID:         lvalID,
		AllLabels:      []uint32{1},
		Inputfile:      "seed.bin",
		MaxTCN:         1,
		MaxCardinality: 1,
		Instr:          100,
	})
	require.NoError(t, err)
	return dbPath
}
