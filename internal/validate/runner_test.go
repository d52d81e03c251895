package validate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lucasnoah/stagecraft/internal/config"
)

// mockRunner returns canned results per command.
type mockRunner struct {
	exitCodes map[string]int
	stderr    map[string]string
	calls     []string
}

func (m *mockRunner) Run(ctx context.Context, dir, command string) (string, string, int, error) {
	m.calls = append(m.calls, command)
	return "", m.stderr[command], m.exitCodes[command], nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestRunner(cmd CommandRunner, dir string, defaults config.Defaults) *Runner {
	if defaults.CheckTimeout == "" {
		defaults.CheckTimeout = "1m"
	}
	return NewRunner(cmd, dir, defaults)
}

func TestValidateArtifactChecks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "docs/arch.md", "# Architecture\n\n## Components\n\n"+strings.Repeat("x", 200))

	stage := &config.Stage{
		ID: "architecture",
		RequiredArtifacts: []config.Artifact{
			{Path: "docs/arch.md", MinBytes: 100, RequiredSections: []string{"## Components"}},
		},
	}

	r := newTestRunner(&mockRunner{}, dir, config.Defaults{})
	report, err := r.Validate(context.Background(), stage)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !report.RequiredPassed {
		t.Errorf("expected pass, failures: %v", report.FailedChecks)
	}
	if report.Score != 1.0 {
		t.Errorf("Score = %v, want 1.0", report.Score)
	}
}

func TestValidateMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	stage := &config.Stage{
		ID:                "plan",
		RequiredArtifacts: []config.Artifact{{Path: "docs/plan.md"}},
	}

	r := newTestRunner(&mockRunner{}, dir, config.Defaults{})
	report, err := r.Validate(context.Background(), stage)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.RequiredPassed {
		t.Error("expected failure for missing artifact")
	}
	if len(report.FailedChecks) != 1 || report.FailedChecks[0].Name != "artifact-exists" {
		t.Errorf("FailedChecks = %v", report.FailedChecks)
	}
	if report.FailedChecks[0].Severity != SeverityCritical {
		t.Errorf("Severity = %s", report.FailedChecks[0].Severity)
	}
}

func TestValidateTooSmallAndMissingSection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "docs/arch.md", "tiny")

	stage := &config.Stage{
		ID: "architecture",
		RequiredArtifacts: []config.Artifact{
			{Path: "docs/arch.md", MinBytes: 500, RequiredSections: []string{"## Components"}},
		},
	}

	r := newTestRunner(&mockRunner{}, dir, config.Defaults{})
	report, err := r.Validate(context.Background(), stage)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.RequiredPassed {
		t.Error("expected failure")
	}

	names := map[string]string{}
	for _, c := range report.FailedChecks {
		names[c.Name] = c.Severity
	}
	if names["artifact-size"] != SeverityCritical {
		t.Errorf("artifact-size severity = %q", names["artifact-size"])
	}
	if names["artifact-section"] != SeverityHigh {
		t.Errorf("artifact-section severity = %q", names["artifact-section"])
	}
}

func TestValidateCodeProducingGates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/demo\n")
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "util.go", "package main\n")

	stage := &config.Stage{
		ID:             "implement",
		CodeProducing:  true,
		MinSourceFiles: 2,
	}

	mock := &mockRunner{exitCodes: map[string]int{"make build": 0, "make test": 0}}
	r := newTestRunner(mock, dir, config.Defaults{BuildCommand: "make build", TestCommand: "make test"})

	report, err := r.Validate(context.Background(), stage)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !report.RequiredPassed {
		t.Errorf("expected pass, failures: %v", report.FailedChecks)
	}
	if len(mock.calls) != 2 {
		t.Errorf("expected build and test to run, got calls %v", mock.calls)
	}
}

func TestValidateBuildFailureIsCritical(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/demo\n")
	writeFile(t, dir, "main.go", "package main\n")

	mock := &mockRunner{
		exitCodes: map[string]int{"make build": 2},
		stderr:    map[string]string{"make build": "main.go:3: undefined: foo\nmore"},
	}
	r := newTestRunner(mock, dir, config.Defaults{BuildCommand: "make build"})

	stage := &config.Stage{ID: "implement", CodeProducing: true, MinSourceFiles: 1}
	report, err := r.Validate(context.Background(), stage)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.RequiredPassed {
		t.Error("build failure should fail required checks")
	}

	found := false
	for _, c := range report.FailedChecks {
		if c.Name == "build" {
			found = true
			if c.Severity != SeverityCritical {
				t.Errorf("build severity = %s", c.Severity)
			}
			if !strings.Contains(c.Detail, "undefined: foo") {
				t.Errorf("build detail should carry first stderr line: %q", c.Detail)
			}
		}
	}
	if !found {
		t.Errorf("no build failure recorded: %v", report.FailedChecks)
	}
}

func TestValidateNoManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")

	r := newTestRunner(&mockRunner{}, dir, config.Defaults{})
	stage := &config.Stage{ID: "implement", CodeProducing: true, MinSourceFiles: 1}

	report, err := r.Validate(context.Background(), stage)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if report.RequiredPassed {
		t.Error("missing project manifest should fail required checks")
	}
}

func TestValidateTestFailureIsHighOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/demo\n")
	writeFile(t, dir, "main.go", "package main\n")

	mock := &mockRunner{exitCodes: map[string]int{"make test": 1}}
	r := newTestRunner(mock, dir, config.Defaults{TestCommand: "make test"})

	stage := &config.Stage{ID: "test", CodeProducing: true, MinSourceFiles: 1}
	report, err := r.Validate(context.Background(), stage)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !report.RequiredPassed {
		t.Errorf("test failure alone should not fail required checks: %v", report.FailedChecks)
	}
	if got := ExitCode(report); got != 2 {
		t.Errorf("ExitCode = %d, want 2", got)
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		name   string
		report *Report
		want   int
	}{
		{"all pass", &Report{RequiredPassed: true}, 0},
		{"critical", &Report{FailedChecks: []Check{{Severity: SeverityCritical}}}, 1},
		{"high only", &Report{FailedChecks: []Check{{Severity: SeverityHigh}}}, 2},
		{"medium only", &Report{FailedChecks: []Check{{Severity: SeverityMedium}}}, 2},
		{"mixed", &Report{FailedChecks: []Check{{Severity: SeverityHigh}, {Severity: SeverityCritical}}}, 1},
	}
	for _, c := range cases {
		if got := ExitCode(c.report); got != c.want {
			t.Errorf("%s: ExitCode = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestDetectManifest(t *testing.T) {
	dir := t.TempDir()
	if _, ok := DetectManifest(dir); ok {
		t.Error("empty dir should have no manifest")
	}
	writeFile(t, dir, "package.json", "{}")
	name, ok := DetectManifest(dir)
	if !ok || name != "package.json" {
		t.Errorf("DetectManifest = %q, %v", name, ok)
	}
	// go.mod takes precedence in the detection order.
	writeFile(t, dir, "go.mod", "module x\n")
	name, _ = DetectManifest(dir)
	if name != "go.mod" {
		t.Errorf("DetectManifest = %q, want go.mod", name)
	}
}

func TestCountSourceFilesSkipsHiddenAndVendored(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "lib/util.py", "pass\n")
	writeFile(t, dir, "README.md", "docs\n")
	writeFile(t, dir, ".git/objects/x.go", "not source\n")
	writeFile(t, dir, "node_modules/dep/index.js", "x\n")
	writeFile(t, dir, ".stagecraft/stages/plan/synthesis.md", "x\n")

	count, err := CountSourceFiles(dir)
	if err != nil {
		t.Fatalf("CountSourceFiles: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}
