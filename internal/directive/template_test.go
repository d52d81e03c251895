package directive

import (
	"strings"
	"testing"
)

func TestRenderVariables(t *testing.T) {
	got, err := Render("Hello {{name}}, stage {{stage}}", Vars{"name": "world", "stage": "plan"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Hello world, stage plan" {
		t.Errorf("got %q", got)
	}
}

func TestRenderMissingVariable(t *testing.T) {
	_, err := Render("Hello {{name}}", Vars{})
	if err == nil {
		t.Fatal("expected error for missing variable")
	}
	if !strings.Contains(err.Error(), "name") {
		t.Errorf("error should name the missing variable: %v", err)
	}
}

func TestRenderConditionals(t *testing.T) {
	tmpl := "{{#if focus}}Focus: {{focus}}{{/if}}always"

	got, err := Render(tmpl, Vars{"focus": "x"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Focus: xalways" {
		t.Errorf("got %q", got)
	}

	got, err = Render(tmpl, Vars{"focus": ""})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "always" {
		t.Errorf("got %q", got)
	}
}

func TestRenderNestedConditionals(t *testing.T) {
	tmpl := "{{#if a}}A{{#if b}}B{{/if}}{{/if}}"
	got, err := Render(tmpl, Vars{"a": "1", "b": ""})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "A" {
		t.Errorf("got %q", got)
	}
}

func TestRenderCollapsedBlockSkipsPlaceholders(t *testing.T) {
	// A placeholder inside a collapsed block must not be required.
	got, err := Render("{{#if focus}}{{focus_detail}}{{/if}}done", Vars{"focus": ""})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "done" {
		t.Errorf("got %q", got)
	}
}

func TestRenderDanglingClose(t *testing.T) {
	if _, err := Render("x{{/if}}", Vars{}); err == nil {
		t.Fatal("expected error for dangling close")
	}
}

func TestRenderUnclosedOpen(t *testing.T) {
	if _, err := Render("{{#if a}}x", Vars{"a": "1"}); err == nil {
		t.Fatal("expected error for unclosed conditional")
	}
}

func TestBuiltinTemplatesRender(t *testing.T) {
	b := &Builder{
		StageID:      "architecture",
		StageName:    "Architecture",
		Instructions: "Design the system.",
		Handoff:      "Prior decisions.",
	}

	artifacts := map[string]string{"architect": "position A", "skeptic": "position B"}

	checks := []struct {
		name string
		fn   func() (string, error)
	}{
		{"produce", func() (string, error) { return b.Produce("architect", []string{"storage layer"}) }},
		{"produce no focus", func() (string, error) { return b.Produce("skeptic", nil) }},
		{"review", func() (string, error) { return b.Review("skeptic", artifacts) }},
		{"evaluate", func() (string, error) { return b.Evaluate(2, artifacts) }},
		{"synthesize", func() (string, error) {
			return b.Synthesize([]map[string]string{artifacts}, []float64{0.8})
		}},
		{"step", func() (string, error) { return b.Step(1, "core", []string{"scaffold output"}) }},
		{"retry failures", func() (string, error) {
			return b.RetryWithFailures(2, []string{"missing docs/arch.md"})
		}},
		{"retry simplified", func() (string, error) {
			return b.RetrySimplified(3, []string{"docs/arch.md: at least 800 bytes"})
		}},
		{"handoff", func() (string, error) { return b.HandoffDirective("final output") }},
	}

	for _, c := range checks {
		out, err := c.fn()
		if err != nil {
			t.Errorf("%s: %v", c.name, err)
			continue
		}
		if out == "" {
			t.Errorf("%s: empty directive", c.name)
		}
		if strings.Contains(out, "{{") {
			t.Errorf("%s: unexpanded placeholder in %q", c.name, out)
		}
	}
}

func TestProduceCarriesFocusAndHandoff(t *testing.T) {
	b := &Builder{StageName: "Plan", Instructions: "Plan it.", Handoff: "arch handoff"}
	out, err := b.Produce("architect", []string{"unresolved point one"})
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if !strings.Contains(out, "arch handoff") {
		t.Error("directive should include the prior handoff")
	}
	if !strings.Contains(out, "unresolved point one") {
		t.Error("directive should include focus items")
	}
}

func TestFormatArtifactsSortedAndCompressed(t *testing.T) {
	big := strings.Repeat("line of content\n", 8000) // ~128KB
	artifacts := map[string]string{"zeta": big, "alpha": big}

	out := FormatArtifacts(artifacts)
	if len(out) > maxArtifactBytes+4096 {
		t.Errorf("formatted artifacts too large: %d bytes", len(out))
	}
	if !strings.Contains(out, "truncated for context limits") {
		t.Error("oversized artifacts should be truncated")
	}
	if strings.Index(out, "alpha") > strings.Index(out, "zeta") {
		t.Error("artifacts should be in sorted role order")
	}
}

func TestCompressShortContentUntouched(t *testing.T) {
	if got := compress("short", 100); got != "short" {
		t.Errorf("compress = %q", got)
	}
}
