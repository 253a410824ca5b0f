// Package harness runs declarative edit scenarios and compares the folded
// canvas against golden snapshots. Scenarios are YAML files describing a
// sequence of submissions plus routing checks; goldens pin the resulting
// program shape byte for byte.
package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tapestry/internal/op"
)

// Scenario defines one conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario pins down.
	Description string `yaml:"description,omitempty"`

	// Steps are the submissions, applied in order.
	Steps []Step `yaml:"steps"`

	// Routes are dispatch checks evaluated against the final canvas.
	Routes []RouteCheck `yaml:"routes,omitempty"`
}

// Step is one submitted batch of ops. Client and op_ctr carry the
// idempotency metadata; steps without them always apply.
type Step struct {
	Client string `yaml:"client,omitempty"`
	OpCtr  int64  `yaml:"op_ctr,omitempty"`

	// Ops holds the raw op documents. The shape mirrors the op wire
	// format: an "op" discriminator plus the variant's fields.
	Ops []yaml.Node `yaml:"ops"`
}

// RouteCheck resolves one request against the final canvas.
type RouteCheck struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
}

// Oplist decodes the step into the wire op representation.
func (s *Step) Oplist() (op.Oplist, error) {
	ops := make([]op.Op, 0, len(s.Ops))
	for i, node := range s.Ops {
		var doc any
		if err := node.Decode(&doc); err != nil {
			return op.Oplist{}, fmt.Errorf("op %d: %w", i, err)
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return op.Oplist{}, fmt.Errorf("op %d: %w", i, err)
		}
		decoded, err := op.UnmarshalOp(raw)
		if err != nil {
			return op.Oplist{}, fmt.Errorf("op %d: %w", i, err)
		}
		ops = append(ops, decoded)
	}
	return op.Oplist{ClientID: s.Client, OpCtr: s.OpCtr, Ops: ops}, nil
}

// LoadScenario reads one scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one step is required", path)
	}
	return &s, nil
}

// LoadScenarios reads every scenario under dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	scenarios := make([]*Scenario, 0, len(matches))
	for _, path := range matches {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
