package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a sequence of record
// submissions against a fresh store, with assertions on the resulting
// identities and an optional golden provenance trace.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Steps are executed in order against a fresh store.
	Steps []Step `yaml:"steps"`

	// Assertions validate identities after all steps have run.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Trace lists aliases whose provenance renderings form the golden
	// trace, one line per alias, in order.
	Trace []string `yaml:"trace,omitempty"`
}

// Step submits one candidate record.
//
// Intern names a keyed entity: source_lval, labelset, dua, attack_point,
// bug, source_modification, source_function, or call. Add names an
// append-only entity: build or run. Exactly one of the two must be set.
//
// Fields holds the candidate's attributes. Reference fields take the alias
// of an earlier step's record; sequence reference fields take a list of
// aliases, with 0 (or null) marking a permitted empty slot.
type Step struct {
	Intern string         `yaml:"intern,omitempty"`
	Add    string         `yaml:"add,omitempty"`
	As     string         `yaml:"as,omitempty"`
	Fields map[string]any `yaml:"fields"`

	// ExpectError is the error code this step must fail with. Steps
	// without it must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates identities recorded under step aliases.
type Assertion struct {
	// SameIdentity asserts all listed aliases share one identity.
	SameIdentity []string `yaml:"same_identity,omitempty"`

	// DistinctIdentity asserts the listed aliases are pairwise distinct.
	DistinctIdentity []string `yaml:"distinct_identity,omitempty"`
}

// LoadScenario reads a single scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if sc.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one step is required", path)
	}
	for i, step := range sc.Steps {
		if (step.Intern == "") == (step.Add == "") {
			return nil, fmt.Errorf("scenario %s: step %d must set exactly one of intern/add", path, i)
		}
	}

	return &sc, nil
}

// LoadScenarios reads every *.yaml scenario in a directory, sorted by
// filename for deterministic test order.
func LoadScenarios(dir string) ([]*Scenario, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("glob scenarios: %w", err)
	}
	sort.Strings(matches)

	scenarios := make([]*Scenario, 0, len(matches))
	for _, path := range matches {
		sc, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}
