package config

// PipelineConfig is the top-level configuration structure parsed from pipeline YAML.
type PipelineConfig struct {
	Pipeline Pipeline `yaml:"pipeline"`

	// Source is the path the config was loaded from, "" for defaults.
	Source string `yaml:"-"`
}

// Pipeline defines the full pipeline: metadata, collaborators, profiles, and stages.
type Pipeline struct {
	Name         string             `yaml:"name"`
	Version      string             `yaml:"version"` // "v1" or "v2"; selects the built-in stage table
	ProjectDir   string             `yaml:"project_dir"`
	Agent        Agent              `yaml:"agent"`
	Availability Availability       `yaml:"availability"`
	Checkpoints  Checkpoints        `yaml:"checkpoints"`
	Defaults     Defaults           `yaml:"defaults"`
	Profiles     map[string]Profile `yaml:"profiles"`
	Stages       []Stage            `yaml:"stages"`
}

// Agent configures the external agent-execution command.
type Agent struct {
	Command string `yaml:"command"`
	Flags   string `yaml:"flags"`
}

// Availability configures the model availability manifest source.
type Availability struct {
	ManifestURL string `yaml:"manifest_url"`
	Timeout     string `yaml:"timeout"`
}

// Checkpoints configures checkpoint retention.
type Checkpoints struct {
	MaxRetention       int  `yaml:"max_retention"`
	PreserveMilestones bool `yaml:"preserve_milestones"`
}

// Defaults holds values applied to stages that don't specify their own.
type Defaults struct {
	Intensity    string `yaml:"intensity"`
	BuildCommand string `yaml:"build_command"`
	TestCommand  string `yaml:"test_command"`
	CheckTimeout string `yaml:"check_timeout"`
}

// Profile bounds a debate: agent count and round limits.
type Profile struct {
	Agents    int `yaml:"agents"`
	MinRounds int `yaml:"min_rounds"`
	MaxRounds int `yaml:"max_rounds"`
}

// Artifact describes one required output file for a stage.
type Artifact struct {
	Path             string   `yaml:"path"`
	MinBytes         int      `yaml:"min_bytes"`
	RequiredSections []string `yaml:"required_sections"`
}

// Stage defines a single pipeline stage.
type Stage struct {
	ID                string     `yaml:"id"`
	Name              string     `yaml:"name"`
	Instructions      string     `yaml:"instructions"`
	Mode              string     `yaml:"mode"`      // "debate" or "sequential"
	Intensity         string     `yaml:"intensity"` // "full", "standard", "light"
	Prereqs           []string   `yaml:"prereqs"`
	CodeProducing     bool       `yaml:"code_producing"`
	Roles             []string   `yaml:"roles"` // debate roles in role-index order
	Steps             []string   `yaml:"steps"` // sequential step names in execution order
	MinSourceFiles    int        `yaml:"min_source_files"`
	RequiredArtifacts []Artifact `yaml:"required_artifacts"`
}

// Execution modes.
const (
	ModeDebate     = "debate"
	ModeSequential = "sequential"
)

// Intensity profiles.
const (
	IntensityFull     = "full"
	IntensityStandard = "standard"
	IntensityLight    = "light"
)

// StageByID returns the stage with the given ID, or nil.
func (p *Pipeline) StageByID(id string) *Stage {
	for i := range p.Stages {
		if p.Stages[i].ID == id {
			return &p.Stages[i]
		}
	}
	return nil
}

// NextStageID returns the stage ID after the given one, or "" if last.
func (p *Pipeline) NextStageID(id string) string {
	for i, s := range p.Stages {
		if s.ID == id && i+1 < len(p.Stages) {
			return p.Stages[i+1].ID
		}
	}
	return ""
}

// StageIDs returns all stage IDs in pipeline order.
func (p *Pipeline) StageIDs() []string {
	ids := make([]string, 0, len(p.Stages))
	for _, s := range p.Stages {
		ids = append(ids, s.ID)
	}
	return ids
}

// Profile returns the intensity profile for a stage, falling back to the
// built-in table when the config doesn't override it.
func (p *Pipeline) Profile(s *Stage) Profile {
	if prof, ok := p.Profiles[s.Intensity]; ok {
		return prof
	}
	return builtinProfiles[s.Intensity]
}
