package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidManifest(t *testing.T) {
	m, err := Parse([]byte(`
project: file
database: /tmp/file.db
source_root: /src/file-5.22
inputfiles:
  - inputs/a.bin
  - inputs/b.bin
`))
	require.NoError(t, err)
	assert.Equal(t, "file", m.Project)
	assert.Equal(t, "/tmp/file.db", m.Database)
	assert.Equal(t, "/src/file-5.22", m.SourceRoot)
	assert.Equal(t, []string{"inputs/a.bin", "inputs/b.bin"}, m.Inputfiles)
}

func TestParseMinimalManifest(t *testing.T) {
	m, err := Parse([]byte(`
project: file
database: file.db
inputfiles: []
`))
	require.NoError(t, err)
	assert.Empty(t, m.SourceRoot)
	assert.Empty(t, m.Inputfiles)
}

func TestParseRejectsMissingProject(t *testing.T) {
	_, err := Parse([]byte(`
database: file.db
inputfiles: []
`))
	assert.Error(t, err)
}

func TestParseRejectsEmptyDatabase(t *testing.T) {
	_, err := Parse([]byte(`
project: file
database: ""
inputfiles: []
`))
	assert.Error(t, err)
}

func TestParseRejectsEmptyInputfile(t *testing.T) {
	_, err := Parse([]byte(`
project: file
database: file.db
inputfiles: ["ok.bin", ""]
`))
	assert.Error(t, err)
}

func TestParseRejectsNonYAML(t *testing.T) {
	_, err := Parse([]byte(`{not yaml: [`))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pass.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
project: pcre
database: pcre.db
inputfiles: [corpus/0.txt]
`), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pcre", m.Project)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
