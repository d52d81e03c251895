package validate

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasnoah/stagecraft/internal/config"
)

// CommandRunner abstracts command execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, dir string, command string) (stdout string, stderr string, exitCode int, err error)
}

// ExecRunner implements CommandRunner by shelling out.
type ExecRunner struct{}

func (e *ExecRunner) Run(ctx context.Context, dir string, command string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return stdoutBuf.String(), stderrBuf.String(), -1, fmt.Errorf("exec: %w", err)
		}
	}
	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// Runner validates stage outputs: artifact manifest checks for every stage,
// plus source-count, project-manifest, and build/test gates for
// code-producing stages.
type Runner struct {
	cmd          CommandRunner
	projectDir   string
	buildCommand string
	testCommand  string
	timeout      time.Duration
}

// NewRunner creates a Runner for the given project directory. Build and
// test commands may be empty, in which case those gates are skipped.
func NewRunner(cmd CommandRunner, projectDir string, defaults config.Defaults) *Runner {
	timeout, err := time.ParseDuration(defaults.CheckTimeout)
	if err != nil || timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Runner{
		cmd:          cmd,
		projectDir:   projectDir,
		buildCommand: defaults.BuildCommand,
		testCommand:  defaults.TestCommand,
		timeout:      timeout,
	}
}

// Validate runs every check declared for the stage and returns a report.
// Check failures are reported, not returned as errors; the error return
// covers infrastructure problems only.
func (r *Runner) Validate(ctx context.Context, stage *config.Stage) (*Report, error) {
	report := &Report{Stage: stage.ID}
	total, passed := 0, 0

	fail := func(name, detail, severity string) {
		report.FailedChecks = append(report.FailedChecks, Check{
			Name:     name,
			Detail:   detail,
			Severity: severity,
		})
	}

	for _, a := range stage.RequiredArtifacts {
		path := filepath.Join(r.projectDir, a.Path)

		total++
		info, err := os.Stat(path)
		if err != nil {
			fail("artifact-exists", fmt.Sprintf("%s: missing", a.Path), SeverityCritical)
			continue
		}
		passed++

		if a.MinBytes > 0 {
			total++
			if info.Size() < int64(a.MinBytes) {
				fail("artifact-size", fmt.Sprintf("%s: %d bytes, need at least %d", a.Path, info.Size(), a.MinBytes), SeverityCritical)
			} else {
				passed++
			}
		}

		if len(a.RequiredSections) > 0 {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read artifact %s: %w", a.Path, err)
			}
			content := string(data)
			for _, section := range a.RequiredSections {
				total++
				if strings.Contains(content, section) {
					passed++
				} else {
					fail("artifact-section", fmt.Sprintf("%s: missing section %q", a.Path, section), SeverityHigh)
				}
			}
		}
	}

	if stage.CodeProducing {
		t, p, err := r.codeGates(ctx, stage, fail)
		if err != nil {
			return nil, err
		}
		total += t
		passed += p
	}

	if total > 0 {
		report.Score = float64(passed) / float64(total)
	} else {
		report.Score = 1.0
	}
	report.RequiredPassed = !hasCritical(report.FailedChecks)
	return report, nil
}

func (r *Runner) codeGates(ctx context.Context, stage *config.Stage, fail func(name, detail, severity string)) (total, passed int, err error) {
	if stage.MinSourceFiles > 0 {
		total++
		count, err := CountSourceFiles(r.projectDir)
		if err != nil {
			return total, passed, fmt.Errorf("count source files: %w", err)
		}
		if count < stage.MinSourceFiles {
			fail("source-files", fmt.Sprintf("%d source files, need at least %d", count, stage.MinSourceFiles), SeverityCritical)
		} else {
			passed++
		}
	}

	total++
	if _, ok := DetectManifest(r.projectDir); ok {
		passed++
	} else {
		fail("project-manifest", "no recognized project manifest (go.mod, package.json, pyproject.toml, Cargo.toml, Makefile)", SeverityCritical)
	}

	if r.buildCommand != "" {
		total++
		if ok, detail, err := r.runCommand(ctx, r.buildCommand); err != nil {
			return total, passed, fmt.Errorf("run build: %w", err)
		} else if ok {
			passed++
		} else {
			fail("build", detail, SeverityCritical)
		}
	}

	if r.testCommand != "" {
		total++
		if ok, detail, err := r.runCommand(ctx, r.testCommand); err != nil {
			return total, passed, fmt.Errorf("run tests: %w", err)
		} else if ok {
			passed++
		} else {
			fail("test", detail, SeverityHigh)
		}
	}

	return total, passed, nil
}

func (r *Runner) runCommand(ctx context.Context, command string) (bool, string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, stderr, exitCode, err := r.cmd.Run(ctx, r.projectDir, command)
	if err != nil {
		return false, "", err
	}
	if exitCode == 0 {
		return true, "", nil
	}
	detail := fmt.Sprintf("%q exited %d", command, exitCode)
	if line := firstLine(stderr); line != "" {
		detail += ": " + line
	}
	return false, detail, nil
}

func hasCritical(checks []Check) bool {
	for _, c := range checks {
		if c.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
