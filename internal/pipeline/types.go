package pipeline

// Pipeline statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Per-stage progress statuses.
const (
	StagePending    = "pending"
	StageInProgress = "in_progress"
	StageCompleted  = "completed"
	StageSkipped    = "skipped"
)

// StageComplete is the terminal CurrentStage marker set when the last
// pipeline stage has finished.
const StageComplete = "complete"

// PipelineState is the singleton persisted state for one project's pipeline.
// Mutated only through the orchestrator's transition operations.
type PipelineState struct {
	Project      string      `json:"project"`
	Version      string      `json:"version"`
	CurrentStage string      `json:"current_stage"`
	Status       string      `json:"status"`
	Sprint       int         `json:"sprint"`
	Cycle        int         `json:"cycle"`
	RetryState   *RetryState `json:"retry_state,omitempty"`
	PausedReason string      `json:"paused_reason,omitempty"`
	CreatedAt    string      `json:"created_at"`
	UpdatedAt    string      `json:"updated_at"`
}

// RetryState is persisted when a stage is mid-retry so a restarted process
// can resume the ladder where it left off.
type RetryState struct {
	Stage    string   `json:"stage"`
	Attempt  int      `json:"attempt"`
	Failures []string `json:"failures,omitempty"`
}

// StageProgress is the durable per-stage status record.
type StageProgress struct {
	Status       string `json:"status"`
	StartedAt    string `json:"started_at,omitempty"`
	CompletedAt  string `json:"completed_at,omitempty"`
	CheckpointID string `json:"checkpoint_id,omitempty"`
	Attempts     int    `json:"attempts,omitempty"`
}

// Progress maps stage IDs to their progress records.
type Progress map[string]StageProgress

// Done reports whether a stage counts as satisfied for prerequisite checks.
func (p Progress) Done(stage string) bool {
	sp, ok := p[stage]
	return ok && (sp.Status == StageCompleted || sp.Status == StageSkipped)
}
