package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// StateDirName is the directory under the project root that holds all
// orchestrator state.
const StateDirName = ".stagecraft"

// Store manages pipeline state on disk for one project.
type Store struct {
	projectDir string
}

// NewStore creates a Store for the given project directory.
func NewStore(projectDir string) *Store {
	return &Store{projectDir: projectDir}
}

// ProjectDir returns the project root directory.
func (s *Store) ProjectDir() string {
	return s.projectDir
}

// StateDir returns the orchestrator state directory.
func (s *Store) StateDir() string {
	return filepath.Join(s.projectDir, StateDirName)
}

// CheckpointsDir returns the directory holding checkpoints.
func (s *Store) CheckpointsDir() string {
	return filepath.Join(s.StateDir(), "checkpoints")
}

// StagesDir returns the directory holding stage execution artifacts.
func (s *Store) StagesDir() string {
	return filepath.Join(s.StateDir(), "stages")
}

func (s *Store) statePath() string {
	return filepath.Join(s.StateDir(), "state.json")
}

func (s *Store) progressPath() string {
	return filepath.Join(s.StateDir(), "progress.json")
}

// RoundDir returns the directory for one debate round's artifacts.
func (s *Store) RoundDir(stage string, round int) string {
	return filepath.Join(s.StagesDir(), stage, fmt.Sprintf("round-%d", round))
}

// StepsDir returns the directory for a sequential stage's step outputs.
func (s *Store) StepsDir(stage string) string {
	return filepath.Join(s.StagesDir(), stage, "steps")
}

// HandoffPath returns the path of a stage's handoff summary.
func (s *Store) HandoffPath(stage string) string {
	return filepath.Join(s.StateDir(), "handoffs", stage+".md")
}

// Init creates the on-disk layout and the initial pipeline state. It fails
// if the project is already initialized.
func (s *Store) Init(project, version, firstStage string, stages []string) (*PipelineState, error) {
	if _, err := os.Stat(s.statePath()); err == nil {
		return nil, fmt.Errorf("pipeline already initialized in %s", s.projectDir)
	}

	if err := os.MkdirAll(s.StagesDir(), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir stages: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	ps := &PipelineState{
		Project:      project,
		Version:      version,
		CurrentStage: firstStage,
		Status:       StatusPending,
		Sprint:       1,
		Cycle:        1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := SaveJSON(s.statePath(), ps); err != nil {
		return nil, fmt.Errorf("write state.json: %w", err)
	}

	progress := make(Progress, len(stages))
	for _, id := range stages {
		progress[id] = StageProgress{Status: StagePending}
	}
	if err := SaveJSON(s.progressPath(), progress); err != nil {
		return nil, fmt.Errorf("write progress.json: %w", err)
	}
	return ps, nil
}

// State reads the pipeline state.
func (s *Store) State() (*PipelineState, error) {
	var ps PipelineState
	if err := LoadJSON(s.statePath(), &ps); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("pipeline not initialized in %s", s.projectDir)
		}
		return nil, err
	}
	return &ps, nil
}

// UpdateState performs a read-modify-write of the pipeline state.
func (s *Store) UpdateState(fn func(*PipelineState)) error {
	ps, err := s.State()
	if err != nil {
		return err
	}
	fn(ps)
	ps.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return SaveJSON(s.statePath(), ps)
}

// Progress reads the per-stage progress records.
func (s *Store) Progress() (Progress, error) {
	var p Progress
	if err := LoadJSON(s.progressPath(), &p); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("pipeline not initialized in %s", s.projectDir)
		}
		return nil, err
	}
	return p, nil
}

// UpdateProgress performs a read-modify-write of one stage's progress record.
func (s *Store) UpdateProgress(stage string, fn func(*StageProgress)) error {
	p, err := s.Progress()
	if err != nil {
		return err
	}
	sp := p[stage]
	fn(&sp)
	p[stage] = sp
	return SaveJSON(s.progressPath(), p)
}

// SaveArtifact writes one role's output for a debate round.
func (s *Store) SaveArtifact(stage string, round int, role string, content string) error {
	return commitFile(filepath.Join(s.RoundDir(stage, round), role+".md"), []byte(content))
}

// Artifact reads one role's output for a debate round.
func (s *Store) Artifact(stage string, round int, role string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.RoundDir(stage, round), role+".md"))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RoundArtifacts reads all artifacts of a round, keyed by role name,
// in sorted role order.
func (s *Store) RoundArtifacts(stage string, round int) (map[string]string, error) {
	entries, err := os.ReadDir(s.RoundDir(stage, round))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read round dir: %w", err)
	}

	out := make(map[string]string)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.RoundDir(stage, round), name))
		if err != nil {
			return nil, err
		}
		out[strings.TrimSuffix(name, ".md")] = string(data)
	}
	return out, nil
}

// SaveStepOutput writes one sequential step's output.
func (s *Store) SaveStepOutput(stage string, index int, step string, content string) error {
	name := fmt.Sprintf("%02d-%s.md", index+1, step)
	return commitFile(filepath.Join(s.StepsDir(stage), name), []byte(content))
}

// StepOutputs reads all step outputs of a sequential stage in execution order.
func (s *Store) StepOutputs(stage string) ([]string, error) {
	entries, err := os.ReadDir(s.StepsDir(stage))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read steps dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // zero-padded index prefix keeps execution order

	var outputs []string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.StepsDir(stage), name))
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, string(data))
	}
	return outputs, nil
}

// SaveSynthesis writes a debate stage's final synthesized artifact.
func (s *Store) SaveSynthesis(stage string, content string) error {
	return commitFile(filepath.Join(s.StagesDir(), stage, "synthesis.md"), []byte(content))
}

// Synthesis reads a debate stage's final synthesized artifact.
func (s *Store) Synthesis(stage string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.StagesDir(), stage, "synthesis.md"))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SaveHandoff writes a stage's handoff summary.
func (s *Store) SaveHandoff(stage string, content string) error {
	return commitFile(s.HandoffPath(stage), []byte(content))
}

// Handoff reads a stage's handoff summary, or "" if none exists.
func (s *Store) Handoff(stage string) (string, error) {
	data, err := os.ReadFile(s.HandoffPath(stage))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// commitFile stages data next to its destination and renames it into
// place, so a crash mid-write never leaves a torn document behind. The
// orchestrator is the store's single writer, so the fixed staging name
// cannot collide.
func commitFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	staged := path + ".staged"
	if err := os.WriteFile(staged, data, 0o644); err != nil {
		return fmt.Errorf("stage %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(staged, path); err != nil {
		os.Remove(staged)
		return fmt.Errorf("commit %s: %w", filepath.Base(path), err)
	}
	return nil
}

// SaveJSON durably writes v as an indented JSON document. Checkpoint
// metadata shares this path so every JSON file under the state dir has
// the same shape on disk.
func SaveJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return commitFile(path, append(data, '\n'))
}

// LoadJSON reads the JSON document at path into v. A missing file comes
// back as the bare os error so callers can map it to their own
// not-initialized message.
func LoadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
