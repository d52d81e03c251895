package config

// builtinProfiles are the default intensity profiles. A profiles block in
// the YAML overrides individual entries.
var builtinProfiles = map[string]Profile{
	IntensityFull:     {Agents: 4, MinRounds: 2, MaxRounds: 5},
	IntensityStandard: {Agents: 3, MinRounds: 1, MaxRounds: 3},
	IntensityLight:    {Agents: 2, MinRounds: 1, MaxRounds: 1},
}

// debateRoles is the default role roster, in role-index order. Stages take
// the first N roles for their profile's agent count.
var debateRoles = []string{"architect", "skeptic", "pragmatist", "innovator"}

// implementSteps is the default step list for sequential code stages.
var implementSteps = []string{"scaffold", "core", "integrate", "polish"}

// builtinStagesV1 is the 8-stage pipeline.
var builtinStagesV1 = []Stage{
	{
		ID: "brainstorm", Name: "Brainstorming", Mode: ModeDebate, Intensity: IntensityFull,
		Instructions: "Explore the problem space: candidate approaches, risks, and trade-offs. Write the outcome to docs/brainstorm.md.",
		Roles:        debateRoles,
		RequiredArtifacts: []Artifact{
			{Path: "docs/brainstorm.md", MinBytes: 500},
		},
	},
	{
		ID: "requirements", Name: "Requirements", Mode: ModeDebate, Intensity: IntensityStandard,
		Instructions: "Turn the brainstorm outcome into concrete functional and non-functional requirements in docs/requirements.md.",
		Prereqs:      []string{"brainstorm"},
		Roles:        debateRoles,
		RequiredArtifacts: []Artifact{
			{Path: "docs/requirements.md", MinBytes: 500, RequiredSections: []string{"Functional", "Non-functional"}},
		},
	},
	{
		ID: "architecture", Name: "Architecture", Mode: ModeDebate, Intensity: IntensityFull,
		Instructions: "Design the system architecture: components, data model, and key interfaces. Write docs/architecture.md.",
		Prereqs:      []string{"requirements"},
		Roles:        debateRoles,
		RequiredArtifacts: []Artifact{
			{Path: "docs/architecture.md", MinBytes: 800, RequiredSections: []string{"Components", "Data Model"}},
		},
	},
	{
		ID: "plan", Name: "Sprint Planning", Mode: ModeDebate, Intensity: IntensityLight,
		Instructions: "Break the architecture into an ordered implementation plan with sprint-sized tasks in docs/plan.md.",
		Prereqs:      []string{"architecture"},
		Roles:        debateRoles,
		RequiredArtifacts: []Artifact{
			{Path: "docs/plan.md", MinBytes: 300},
		},
	},
	{
		ID: "implement", Name: "Implementation", Mode: ModeSequential, Intensity: IntensityStandard,
		Instructions: "Implement the planned tasks in working code, following the architecture and plan documents.",
		Prereqs:      []string{"plan"}, CodeProducing: true, MinSourceFiles: 3,
		Steps: implementSteps,
	},
	{
		ID: "test", Name: "Testing", Mode: ModeSequential, Intensity: IntensityStandard,
		Instructions: "Write unit and integration tests for the implemented code and make them pass.",
		Prereqs:      []string{"implement"}, CodeProducing: true, MinSourceFiles: 1,
		Steps: []string{"unit", "integration"},
	},
	{
		ID: "review", Name: "Review", Mode: ModeDebate, Intensity: IntensityStandard,
		Instructions: "Review the implementation against the requirements and architecture; record findings in docs/review.md.",
		Prereqs:      []string{"test"},
		Roles:        debateRoles,
		RequiredArtifacts: []Artifact{
			{Path: "docs/review.md", MinBytes: 300},
		},
	},
	{
		ID: "ship", Name: "Delivery", Mode: ModeSequential, Intensity: IntensityLight,
		Instructions: "Prepare the release: changelog and release notes.",
		Prereqs:      []string{"review"},
		Steps:        []string{"changelog", "release-notes"},
		RequiredArtifacts: []Artifact{
			{Path: "CHANGELOG.md", MinBytes: 100},
		},
	},
}

// builtinStagesV2 is the 10-stage pipeline: v1 plus a research stage after
// brainstorming and a hardening stage after testing.
var builtinStagesV2 = []Stage{
	builtinStagesV1[0],
	{
		ID: "research", Name: "Research", Mode: ModeDebate, Intensity: IntensityStandard,
		Instructions: "Research prior art, applicable libraries, and constraints for the chosen direction. Write docs/research.md.",
		Prereqs:      []string{"brainstorm"},
		Roles:        debateRoles,
		RequiredArtifacts: []Artifact{
			{Path: "docs/research.md", MinBytes: 400},
		},
	},
	withPrereqs(builtinStagesV1[1], "research"),
	builtinStagesV1[2],
	builtinStagesV1[3],
	builtinStagesV1[4],
	builtinStagesV1[5],
	{
		ID: "hardening", Name: "Hardening", Mode: ModeSequential, Intensity: IntensityStandard,
		Instructions: "Harden the implementation: edge cases, error paths, input validation.",
		Prereqs:      []string{"test"}, CodeProducing: true, MinSourceFiles: 1,
		Steps: []string{"edge-cases", "error-paths"},
	},
	withPrereqs(builtinStagesV1[6], "hardening"),
	builtinStagesV1[7],
}

func withPrereqs(s Stage, prereqs ...string) Stage {
	s.Prereqs = prereqs
	return s
}

// BuiltinStages returns a copy of the built-in stage table for a pipeline
// version. Unknown versions fall back to v1.
func BuiltinStages(version string) []Stage {
	src := builtinStagesV1
	if version == "v2" {
		src = builtinStagesV2
	}
	out := make([]Stage, len(src))
	copy(out, src)
	return out
}
