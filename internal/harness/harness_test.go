package harness

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScenarios_Golden(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	if err != nil {
		t.Fatalf("LoadScenarios() failed: %v", err)
	}
	if len(scenarios) == 0 {
		t.Fatal("no scenarios found")
	}

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			RunWithGolden(t, s)
		})
	}
}

func TestLoadScenario_RequiresName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anon.yaml")
	src := "steps:\n  - ops:\n      - op: delete_tl\n        tlid: 1\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadScenario(path); err == nil {
		t.Fatal("scenario without a name should not load")
	}
}

func TestLoadScenario_RequiresSteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("name: empty\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadScenario(path); err == nil {
		t.Fatal("scenario without steps should not load")
	}
}

func TestStep_RejectsUnknownOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	src := "name: bad\nsteps:\n  - ops:\n      - op: teleport_tl\n        tlid: 1\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("LoadScenario() failed: %v", err)
	}
	if _, err := Run(s); err == nil {
		t.Fatal("unknown op kind should fail the run")
	}
}

func TestRun_CountsDroppedSteps(t *testing.T) {
	loaded, err := LoadScenario(writeScenario(t, `
name: dropped
steps:
  - client: a
    op_ctr: 1
    ops:
      - op: savepoint
        tlid: 1
  - client: a
    op_ctr: 1
    ops:
      - op: savepoint
        tlid: 1
`))
	if err != nil {
		t.Fatalf("LoadScenario() failed: %v", err)
	}

	result, err := Run(loaded)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if result.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", result.Dropped)
	}
}

func writeScenario(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
