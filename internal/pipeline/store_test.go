package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

var testStages = []string{"plan", "build", "ship"}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(t.TempDir())
	if _, err := s.Init("demo", "v1", "plan", testStages); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func TestInitAndState(t *testing.T) {
	s := newTestStore(t)

	ps, err := s.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if ps.Project != "demo" {
		t.Errorf("Project = %q, want demo", ps.Project)
	}
	if ps.CurrentStage != "plan" {
		t.Errorf("CurrentStage = %q, want plan", ps.CurrentStage)
	}
	if ps.Status != StatusPending {
		t.Errorf("Status = %q, want %q", ps.Status, StatusPending)
	}
	if ps.Sprint != 1 || ps.Cycle != 1 {
		t.Errorf("Sprint/Cycle = %d/%d, want 1/1", ps.Sprint, ps.Cycle)
	}

	p, err := s.Progress()
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if len(p) != 3 {
		t.Fatalf("Progress has %d entries, want 3", len(p))
	}
	for _, id := range testStages {
		if p[id].Status != StagePending {
			t.Errorf("stage %s status = %q, want pending", id, p[id].Status)
		}
	}
}

func TestInitTwiceFails(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Init("demo", "v1", "plan", testStages); err == nil {
		t.Fatal("expected error initializing twice")
	}
}

func TestStateNotInitialized(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.State(); err == nil {
		t.Fatal("expected error for uninitialized project")
	}
	if _, err := s.Progress(); err == nil {
		t.Fatal("expected error for uninitialized project")
	}
}

func TestUpdateState(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateState(func(ps *PipelineState) {
		ps.Status = StatusRunning
		ps.CurrentStage = "build"
		ps.RetryState = &RetryState{Stage: "build", Attempt: 2, Failures: []string{"missing docs/plan.md"}}
	})
	if err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	ps, err := s.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if ps.Status != StatusRunning || ps.CurrentStage != "build" {
		t.Errorf("state = %s/%s, want running/build", ps.Status, ps.CurrentStage)
	}
	if ps.RetryState == nil || ps.RetryState.Attempt != 2 {
		t.Errorf("RetryState not persisted: %+v", ps.RetryState)
	}
	if ps.UpdatedAt == "" {
		t.Error("UpdatedAt should be set after UpdateState")
	}
}

func TestUpdateProgress(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateProgress("plan", func(sp *StageProgress) {
		sp.Status = StageCompleted
		sp.CheckpointID = "plan-12345"
		sp.Attempts = 1
	})
	if err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	p, err := s.Progress()
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if p["plan"].Status != StageCompleted {
		t.Errorf("plan status = %q, want completed", p["plan"].Status)
	}
	if p["plan"].CheckpointID != "plan-12345" {
		t.Errorf("CheckpointID = %q", p["plan"].CheckpointID)
	}
	// Other stages untouched.
	if p["build"].Status != StagePending {
		t.Errorf("build status = %q, want pending", p["build"].Status)
	}
}

func TestProgressDone(t *testing.T) {
	p := Progress{
		"a": {Status: StageCompleted},
		"b": {Status: StageSkipped},
		"c": {Status: StageInProgress},
	}
	if !p.Done("a") || !p.Done("b") {
		t.Error("completed and skipped stages should count as done")
	}
	if p.Done("c") || p.Done("missing") {
		t.Error("in_progress and unknown stages should not count as done")
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveArtifact("plan", 1, "skeptic", "# Concerns\n"); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}
	if err := s.SaveArtifact("plan", 1, "architect", "# Proposal\n"); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}

	got, err := s.Artifact("plan", 1, "skeptic")
	if err != nil {
		t.Fatalf("Artifact: %v", err)
	}
	if got != "# Concerns\n" {
		t.Errorf("Artifact = %q", got)
	}

	all, err := s.RoundArtifacts("plan", 1)
	if err != nil {
		t.Fatalf("RoundArtifacts: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("RoundArtifacts has %d entries, want 2", len(all))
	}
	if all["architect"] != "# Proposal\n" {
		t.Errorf("architect artifact = %q", all["architect"])
	}

	// A round with no artifacts returns nil, not an error.
	empty, err := s.RoundArtifacts("plan", 9)
	if err != nil || empty != nil {
		t.Errorf("empty round = %v, %v; want nil, nil", empty, err)
	}
}

func TestStepOutputsOrdered(t *testing.T) {
	s := newTestStore(t)

	steps := []string{"scaffold", "core", "integrate"}
	for i, step := range steps {
		if err := s.SaveStepOutput("build", i, step, "output of "+step); err != nil {
			t.Fatalf("SaveStepOutput: %v", err)
		}
	}

	outputs, err := s.StepOutputs("build")
	if err != nil {
		t.Fatalf("StepOutputs: %v", err)
	}
	if len(outputs) != 3 {
		t.Fatalf("got %d outputs, want 3", len(outputs))
	}
	for i, step := range steps {
		if outputs[i] != "output of "+step {
			t.Errorf("outputs[%d] = %q, want output of %s", i, outputs[i], step)
		}
	}
}

func TestHandoff(t *testing.T) {
	s := newTestStore(t)

	// Missing handoff reads as empty, not an error.
	h, err := s.Handoff("plan")
	if err != nil || h != "" {
		t.Errorf("missing handoff = %q, %v; want empty, nil", h, err)
	}

	if err := s.SaveHandoff("plan", "summary"); err != nil {
		t.Fatalf("SaveHandoff: %v", err)
	}
	h, err = s.Handoff("plan")
	if err != nil {
		t.Fatalf("Handoff: %v", err)
	}
	if h != "summary" {
		t.Errorf("Handoff = %q, want summary", h)
	}
}

func TestCommitFileReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")

	if err := commitFile(path, []byte("one")); err != nil {
		t.Fatalf("commitFile: %v", err)
	}
	if err := commitFile(path, []byte("two")); err != nil {
		t.Fatalf("commitFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "two" {
		t.Errorf("content = %q, want two", data)
	}

	// No staging file left behind.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}

func TestSaveJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "state.json")

	in := map[string]int{"attempts": 2}
	if err := SaveJSON(path, in); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	var out map[string]int
	if err := LoadJSON(path, &out); err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if out["attempts"] != 2 {
		t.Errorf("attempts = %d, want 2", out["attempts"])
	}

	if err := LoadJSON(filepath.Join(dir, "absent.json"), &out); !os.IsNotExist(err) {
		t.Errorf("missing file should surface as not-exist, got %v", err)
	}
}
