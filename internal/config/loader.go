package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a pipeline configuration from the given YAML file path.
// After parsing, it resolves the built-in stage table for the selected version
// (unless the config declares its own stages) and applies defaults.
func Load(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	cfg.Source = path

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a pipeline config in standard locations and loads
// the first one found. Search order: ./stagecraft.yaml, ~/.stagecraft/config.yaml.
// If none exists, a default config for the current directory is returned.
func LoadDefault() (*PipelineConfig, error) {
	candidates := []string{"stagecraft.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".stagecraft", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := &PipelineConfig{}
	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills in version, project dir, agent command, profiles, and
// the built-in stage table for configs that don't specify their own.
func applyDefaults(cfg *PipelineConfig) {
	p := &cfg.Pipeline

	if p.Version == "" {
		p.Version = "v1"
	}
	if p.ProjectDir == "" {
		p.ProjectDir = "."
	}
	if p.Agent.Command == "" {
		p.Agent.Command = "claude"
	}
	if p.Agent.Flags == "" {
		p.Agent.Flags = "--print --dangerously-skip-permissions"
	}
	if p.Availability.Timeout == "" {
		p.Availability.Timeout = "5s"
	}
	if p.Checkpoints.MaxRetention == 0 {
		p.Checkpoints.MaxRetention = 10
		p.Checkpoints.PreserveMilestones = true
	}
	if p.Defaults.Intensity == "" {
		p.Defaults.Intensity = IntensityStandard
	}
	if p.Defaults.CheckTimeout == "" {
		p.Defaults.CheckTimeout = "5m"
	}

	if len(p.Stages) == 0 {
		p.Stages = BuiltinStages(p.Version)
	}

	for i := range p.Stages {
		s := &p.Stages[i]
		if s.Intensity == "" {
			s.Intensity = p.Defaults.Intensity
		}
		if s.Mode == "" {
			s.Mode = ModeDebate
		}
		if s.Mode == ModeDebate && len(s.Roles) == 0 {
			s.Roles = debateRoles
		}
		if s.Instructions == "" {
			s.Instructions = fmt.Sprintf("Complete the %s stage for this project.", s.Name)
		}
	}
}
