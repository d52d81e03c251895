package validate

import (
	"context"

	"github.com/lucasnoah/stagecraft/internal/config"
)

// Severity levels for failed checks.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
)

// Check describes one failed validation check.
type Check struct {
	Name     string `json:"name"`
	Detail   string `json:"detail"`
	Severity string `json:"severity"`
}

// Report is the structured outcome of validating a stage's outputs.
type Report struct {
	Stage          string  `json:"stage"`
	RequiredPassed bool    `json:"required_passed"`
	FailedChecks   []Check `json:"failed_checks,omitempty"`
	Score          float64 `json:"score"`
}

// Validator checks a stage's outputs against its declared requirements.
type Validator interface {
	Validate(ctx context.Context, stage *config.Stage) (*Report, error)
}

// ExitCode maps a report to the process exit-code convention:
// 0 all checks passed, 1 critical failures present, 2 only
// high/medium findings.
func ExitCode(r *Report) int {
	if len(r.FailedChecks) == 0 {
		return 0
	}
	for _, c := range r.FailedChecks {
		if c.Severity == SeverityCritical {
			return 1
		}
	}
	return 2
}
