package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stagecraft.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesBuiltinStages(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  name: demo
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p := cfg.Pipeline
	if p.Version != "v1" {
		t.Errorf("Version = %q, want v1", p.Version)
	}
	if len(p.Stages) != 8 {
		t.Fatalf("v1 pipeline has %d stages, want 8", len(p.Stages))
	}
	if p.Stages[0].ID != "brainstorm" || p.Stages[7].ID != "ship" {
		t.Errorf("stage order wrong: first=%q last=%q", p.Stages[0].ID, p.Stages[7].ID)
	}
	if p.Agent.Command != "claude" {
		t.Errorf("Agent.Command = %q, want claude", p.Agent.Command)
	}
	if p.Checkpoints.MaxRetention != 10 || !p.Checkpoints.PreserveMilestones {
		t.Errorf("checkpoint defaults not applied: %+v", p.Checkpoints)
	}
	for _, s := range p.Stages {
		if s.Instructions == "" {
			t.Errorf("stage %s has no instructions", s.ID)
		}
	}
}

func TestLoadV2HasTenStages(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  name: demo
  version: v2
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Pipeline.Stages) != 10 {
		t.Fatalf("v2 pipeline has %d stages, want 10", len(cfg.Pipeline.Stages))
	}
	research := cfg.Pipeline.StageByID("research")
	if research == nil {
		t.Fatal("v2 pipeline missing research stage")
	}
	req := cfg.Pipeline.StageByID("requirements")
	if len(req.Prereqs) != 1 || req.Prereqs[0] != "research" {
		t.Errorf("requirements prereqs = %v, want [research]", req.Prereqs)
	}
}

func TestLoadExplicitStagesOverrideBuiltins(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  name: custom
  stages:
    - id: design
      mode: debate
    - id: build
      mode: sequential
      prereqs: [design]
      steps: [core]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := cfg.Pipeline
	if len(p.Stages) != 2 {
		t.Fatalf("got %d stages, want 2", len(p.Stages))
	}
	// Debate stages without explicit roles get the default roster.
	if len(p.Stages[0].Roles) == 0 {
		t.Error("debate stage should get default roles")
	}
	if p.Stages[0].Intensity != IntensityStandard {
		t.Errorf("Intensity = %q, want default %q", p.Stages[0].Intensity, IntensityStandard)
	}
}

func TestNextStageID(t *testing.T) {
	p := Pipeline{Stages: BuiltinStages("v1")}
	if got := p.NextStageID("brainstorm"); got != "requirements" {
		t.Errorf("NextStageID(brainstorm) = %q, want requirements", got)
	}
	if got := p.NextStageID("ship"); got != "" {
		t.Errorf("NextStageID(ship) = %q, want empty", got)
	}
	if got := p.NextStageID("nope"); got != "" {
		t.Errorf("NextStageID(nope) = %q, want empty", got)
	}
}

func TestProfileFallback(t *testing.T) {
	p := Pipeline{
		Stages:   BuiltinStages("v1"),
		Profiles: map[string]Profile{IntensityLight: {Agents: 1, MinRounds: 1, MaxRounds: 2}},
	}
	light := p.Profile(&Stage{Intensity: IntensityLight})
	if light.Agents != 1 || light.MaxRounds != 2 {
		t.Errorf("config profile not used: %+v", light)
	}
	full := p.Profile(&Stage{Intensity: IntensityFull})
	if full.Agents != 4 || full.MinRounds != 2 || full.MaxRounds != 5 {
		t.Errorf("builtin full profile = %+v", full)
	}
}

func TestValidateBuiltins(t *testing.T) {
	for _, version := range []string{"v1", "v2"} {
		cfg := &PipelineConfig{Pipeline: Pipeline{Version: version}}
		applyDefaults(cfg)
		if errs := Validate(cfg); len(errs) != 0 {
			t.Errorf("builtin %s stage table invalid: %v", version, errs)
		}
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name  string
		p     Pipeline
		field string
	}{
		{
			name:  "no stages",
			p:     Pipeline{},
			field: "pipeline.stages",
		},
		{
			name: "duplicate id",
			p: Pipeline{Stages: []Stage{
				{ID: "a", Mode: ModeDebate, Intensity: IntensityLight, Roles: debateRoles},
				{ID: "a", Mode: ModeDebate, Intensity: IntensityLight, Roles: debateRoles},
			}},
			field: "pipeline.stages[1].id",
		},
		{
			name: "bad mode",
			p: Pipeline{Stages: []Stage{
				{ID: "a", Mode: "parallel", Intensity: IntensityLight, Roles: debateRoles},
			}},
			field: "pipeline.stages[0].mode",
		},
		{
			name: "sequential without steps",
			p: Pipeline{Stages: []Stage{
				{ID: "a", Mode: ModeSequential, Intensity: IntensityLight},
			}},
			field: "pipeline.stages[0].steps",
		},
		{
			name: "prereq on later stage",
			p: Pipeline{Stages: []Stage{
				{ID: "a", Mode: ModeDebate, Intensity: IntensityLight, Roles: debateRoles, Prereqs: []string{"b"}},
				{ID: "b", Mode: ModeDebate, Intensity: IntensityLight, Roles: debateRoles},
			}},
			field: "pipeline.stages[0].prereqs",
		},
		{
			name: "unknown prereq",
			p: Pipeline{Stages: []Stage{
				{ID: "a", Mode: ModeDebate, Intensity: IntensityLight, Roles: debateRoles, Prereqs: []string{"ghost"}},
			}},
			field: "pipeline.stages[0].prereqs",
		},
		{
			name: "profile max below min",
			p: Pipeline{
				Stages:   []Stage{{ID: "a", Mode: ModeDebate, Intensity: IntensityLight, Roles: debateRoles}},
				Profiles: map[string]Profile{IntensityLight: {Agents: 2, MinRounds: 3, MaxRounds: 1}},
			},
			field: "pipeline.profiles.light.max_rounds",
		},
		{
			name: "not enough roles for profile",
			p: Pipeline{
				Stages: []Stage{{ID: "a", Mode: ModeDebate, Intensity: IntensityFull, Roles: []string{"solo"}}},
			},
			field: "pipeline.stages[0].roles",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(&PipelineConfig{Pipeline: tt.p})
			for _, e := range errs {
				if e.Field == tt.field {
					return
				}
			}
			t.Errorf("expected error on field %q, got %v", tt.field, errs)
		})
	}
}
