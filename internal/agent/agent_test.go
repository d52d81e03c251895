package agent

import (
	"context"
	"strings"
	"testing"
)

func TestBuildArgs(t *testing.T) {
	args := buildArgs("--print --verbose", "model-x")
	want := []string{"--print", "--verbose", "--model", "model-x"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}

	if got := buildArgs("", ""); len(got) != 0 {
		t.Errorf("empty flags/model should yield no args, got %v", got)
	}
}

func TestExecInvokerEchoesDirective(t *testing.T) {
	// "cat" reads the directive from stdin and writes it back.
	inv := NewExecInvoker("cat", "", t.TempDir())
	resp, err := inv.Invoke(context.Background(), Request{
		Directive: "produce the architecture document",
		Stage:     "architecture",
		Role:      "architect",
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Text != "produce the architecture document" {
		t.Errorf("Text = %q", resp.Text)
	}
}

func TestExecInvokerFailure(t *testing.T) {
	inv := NewExecInvoker("false", "", t.TempDir())
	_, err := inv.Invoke(context.Background(), Request{Directive: "x", Stage: "plan", Role: "skeptic"})
	if err == nil {
		t.Fatal("expected error from failing command")
	}
	if !strings.Contains(err.Error(), "plan/skeptic") {
		t.Errorf("error should carry stage/role: %v", err)
	}
}

func TestExecInvokerEmptyOutputIsFailure(t *testing.T) {
	inv := NewExecInvoker("true", "", t.TempDir())
	_, err := inv.Invoke(context.Background(), Request{Directive: "x", Stage: "plan", Role: "skeptic"})
	if err == nil {
		t.Fatal("expected error for empty output")
	}
}

func TestExecInvokerMissingCommand(t *testing.T) {
	inv := NewExecInvoker("definitely-not-a-real-binary-xyz", "", t.TempDir())
	_, err := inv.Invoke(context.Background(), Request{Directive: "x"})
	if err == nil {
		t.Fatal("expected error for missing command")
	}
}
