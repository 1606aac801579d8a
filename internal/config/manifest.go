// Package config loads and validates analysis-pass manifests.
//
// A manifest is a small YAML file naming the project, the record database,
// and the input files of one taint-analysis pass. Manifests are validated
// against an embedded CUE schema before use, so drivers fail fast on
// malformed configuration instead of partway through a pass.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Manifest describes one analysis pass.
type Manifest struct {
	// Project names the target program.
	Project string `yaml:"project"`

	// Database is the path to the SQLite record database.
	Database string `yaml:"database"`

	// SourceRoot is the root of the instrumented source tree.
	SourceRoot string `yaml:"source_root,omitempty"`

	// Inputfiles lists the inputs fed to the instrumented binary.
	Inputfiles []string `yaml:"inputfiles"`
}

// Load reads a YAML manifest from path and validates it against the
// embedded schema.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	// Decode generically first so schema validation sees unknown fields.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("parse manifest: empty document")
	}

	if err := validate(raw); err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// validate unifies the decoded document with the #Manifest schema.
func validate(raw map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile manifest schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Manifest"))
	if !def.Exists() {
		return fmt.Errorf("manifest schema missing #Manifest definition")
	}

	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("manifest does not satisfy schema: %w", err)
	}
	return nil
}
