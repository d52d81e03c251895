package config

import "fmt"

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var recognizedModes = map[string]bool{
	ModeDebate:     true,
	ModeSequential: true,
}

var recognizedIntensities = map[string]bool{
	IntensityFull:     true,
	IntensityStandard: true,
	IntensityLight:    true,
}

// Validate checks a PipelineConfig for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *PipelineConfig) []ValidationError {
	var errs []ValidationError
	p := cfg.Pipeline

	if len(p.Stages) == 0 {
		errs = append(errs, ValidationError{Field: "pipeline.stages", Message: "at least one stage is required"})
	}

	// Build the position of each stage ID for prerequisite ordering checks.
	position := make(map[string]int)
	for i, s := range p.Stages {
		if s.ID == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("pipeline.stages[%d].id", i),
				Message: "is required",
			})
			continue
		}
		if _, dup := position[s.ID]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("pipeline.stages[%d].id", i),
				Message: fmt.Sprintf("duplicate stage ID %q", s.ID),
			})
			continue
		}
		position[s.ID] = i
	}

	for i, s := range p.Stages {
		prefix := fmt.Sprintf("pipeline.stages[%d]", i)

		if s.Mode != "" && !recognizedModes[s.Mode] {
			errs = append(errs, ValidationError{
				Field:   prefix + ".mode",
				Message: fmt.Sprintf("unrecognized mode %q", s.Mode),
			})
		}
		if s.Intensity != "" && !recognizedIntensities[s.Intensity] {
			errs = append(errs, ValidationError{
				Field:   prefix + ".intensity",
				Message: fmt.Sprintf("unrecognized intensity %q", s.Intensity),
			})
		}

		switch s.Mode {
		case ModeSequential:
			if len(s.Steps) == 0 {
				errs = append(errs, ValidationError{
					Field:   prefix + ".steps",
					Message: "sequential stage must have an explicit steps list",
				})
			}
		case ModeDebate:
			if len(s.Roles) == 0 {
				errs = append(errs, ValidationError{
					Field:   prefix + ".roles",
					Message: "debate stage must have a roles list",
				})
			}
		}

		// Prerequisites must name known, earlier stages.
		for _, pre := range s.Prereqs {
			pos, ok := position[pre]
			if !ok {
				errs = append(errs, ValidationError{
					Field:   prefix + ".prereqs",
					Message: fmt.Sprintf("references undefined stage %q", pre),
				})
				continue
			}
			if pos >= i {
				errs = append(errs, ValidationError{
					Field:   prefix + ".prereqs",
					Message: fmt.Sprintf("stage %q is not earlier in the pipeline", pre),
				})
			}
		}
	}

	for name, prof := range p.Profiles {
		prefix := fmt.Sprintf("pipeline.profiles.%s", name)
		if !recognizedIntensities[name] {
			errs = append(errs, ValidationError{
				Field:   prefix,
				Message: fmt.Sprintf("unrecognized intensity %q", name),
			})
		}
		if prof.Agents < 1 {
			errs = append(errs, ValidationError{Field: prefix + ".agents", Message: "must be at least 1"})
		}
		if prof.MinRounds < 1 {
			errs = append(errs, ValidationError{Field: prefix + ".min_rounds", Message: "must be at least 1"})
		}
		if prof.MaxRounds < prof.MinRounds {
			errs = append(errs, ValidationError{Field: prefix + ".max_rounds", Message: "must be >= min_rounds"})
		}
	}

	// Debate stages must have at least as many roles as the profile asks for.
	for i, s := range p.Stages {
		if s.Mode != ModeDebate {
			continue
		}
		prof := p.Profile(&s)
		if prof.Agents > len(s.Roles) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("pipeline.stages[%d].roles", i),
				Message: fmt.Sprintf("profile %q needs %d roles, only %d defined", s.Intensity, prof.Agents, len(s.Roles)),
			})
		}
	}

	return errs
}
