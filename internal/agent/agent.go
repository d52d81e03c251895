// Package agent defines the external agent-execution collaborator: given a
// directive and a model hint, return the agent's text output or a failure.
package agent

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Request describes one agent invocation.
type Request struct {
	Directive string
	Model     string
	Role      string
	Stage     string
}

// Response is a settled, successful invocation.
type Response struct {
	Text string
}

// Invoker executes agent directives. Implementations own timeout policy;
// callers pass a context and consume either a settled result or an error.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// ExecInvoker runs directives through a headless agent CLI, feeding the
// directive on stdin and capturing stdout.
type ExecInvoker struct {
	Command string // e.g. "claude"
	Flags   string // e.g. "--print --dangerously-skip-permissions"
	Workdir string
}

// NewExecInvoker creates an ExecInvoker.
func NewExecInvoker(command, flags, workdir string) *ExecInvoker {
	return &ExecInvoker{Command: command, Flags: flags, Workdir: workdir}
}

// Invoke runs the agent command once. A non-zero exit or empty output is
// the failure signal.
func (e *ExecInvoker) Invoke(ctx context.Context, req Request) (*Response, error) {
	args := buildArgs(e.Flags, req.Model)

	cmd := exec.CommandContext(ctx, e.Command, args...)
	cmd.Dir = e.Workdir
	cmd.Stdin = strings.NewReader(req.Directive)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("agent %s/%s: %w (stderr: %s)", req.Stage, req.Role, err, firstLine(stderr.String()))
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return nil, fmt.Errorf("agent %s/%s: empty output", req.Stage, req.Role)
	}
	return &Response{Text: text}, nil
}

// buildArgs assembles the CLI argument list from configured flags and the
// resolved model.
func buildArgs(flags, model string) []string {
	var args []string
	if flags != "" {
		args = append(args, strings.Fields(flags)...)
	}
	if model != "" {
		args = append(args, "--model", model)
	}
	return args
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
