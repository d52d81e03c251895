// Package orchestrator is the pipeline state machine: it drives one stage
// at a time through load, protocol execution, validation, retry, handoff,
// and advancement, and owns all PipelineState and Progress mutation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lucasnoah/stagecraft/internal/checkpoint"
	"github.com/lucasnoah/stagecraft/internal/config"
	"github.com/lucasnoah/stagecraft/internal/db"
	"github.com/lucasnoah/stagecraft/internal/debate"
	"github.com/lucasnoah/stagecraft/internal/directive"
	"github.com/lucasnoah/stagecraft/internal/handoff"
	"github.com/lucasnoah/stagecraft/internal/model"
	"github.com/lucasnoah/stagecraft/internal/pipeline"
	"github.com/lucasnoah/stagecraft/internal/validate"
)

// maxAttempts bounds the validation retry ladder. Fixed; never exceeded
// automatically.
const maxAttempts = 3

// ErrPaused is returned when the pipeline stops on a paused state, either
// user-requested or after retry exhaustion.
var ErrPaused = errors.New("pipeline paused")

// StageRunner executes one stage's protocol. Satisfied by *debate.Engine.
type StageRunner interface {
	Run(ctx context.Context, stage *config.Stage, extraInstructions string) (*debate.RunResult, error)
}

// EventLog is the slice of the event store the orchestrator needs.
// Satisfied by *db.DB.
type EventLog interface {
	LogExecutionEvent(e db.ExecutionEvent) error
	StagesWithoutEvents(project string, stages []string) ([]string, error)
}

// Options wires an Orchestrator's collaborators.
type Options struct {
	Config      *config.Pipeline
	Store       *pipeline.Store
	Engine      StageRunner
	Validator   validate.Validator
	Handoff     handoff.Generator
	Checkpoints *checkpoint.Manager
	Events      EventLog
	Resolver    *model.Resolver
	Progress    io.Writer
}

// Orchestrator is the single writer of PipelineState and Progress.
type Orchestrator struct {
	cfg         *config.Pipeline
	store       *pipeline.Store
	engine      StageRunner
	validator   validate.Validator
	handoff     handoff.Generator
	checkpoints *checkpoint.Manager
	events      EventLog
	resolver    *model.Resolver
	progress    io.Writer
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		cfg:         opts.Config,
		store:       opts.Store,
		engine:      opts.Engine,
		validator:   opts.Validator,
		handoff:     opts.Handoff,
		checkpoints: opts.Checkpoints,
		events:      opts.Events,
		resolver:    opts.Resolver,
		progress:    opts.Progress,
	}
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.progress != nil {
		fmt.Fprintf(o.progress, format+"\n", args...)
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// StageExecution is the context PrepareStageExecution assembles: the lead
// production directive plus the resolved model per role. No agent has been
// invoked yet.
type StageExecution struct {
	Stage     *config.Stage
	Directive string
	Models    map[string]model.Assignment
}

// PrepareStageExecution checks prerequisites, marks the stage in_progress,
// and assembles its execution context. The status write is the only side
// effect.
func (o *Orchestrator) PrepareStageExecution(ctx context.Context, stageID string) (*StageExecution, error) {
	stage := o.cfg.StageByID(stageID)
	if stage == nil {
		return nil, fmt.Errorf("unknown stage %q", stageID)
	}

	prog, err := o.store.Progress()
	if err != nil {
		return nil, err
	}
	if sp, ok := prog[stageID]; ok && (sp.Status == pipeline.StageCompleted || sp.Status == pipeline.StageSkipped) {
		return nil, fmt.Errorf("stage %s already %s", stageID, sp.Status)
	}
	for _, pre := range stage.Prereqs {
		if !prog.Done(pre) {
			return nil, fmt.Errorf("stage %s: prerequisite %s not completed or skipped", stageID, pre)
		}
	}

	if err := o.store.UpdateProgress(stageID, func(sp *pipeline.StageProgress) {
		sp.Status = pipeline.StageInProgress
		if sp.StartedAt == "" {
			sp.StartedAt = now()
		}
	}); err != nil {
		return nil, err
	}
	if err := o.store.UpdateState(func(st *pipeline.PipelineState) {
		st.CurrentStage = stageID
		if st.Status == pipeline.StatusPending {
			st.Status = pipeline.StatusRunning
		}
	}); err != nil {
		return nil, err
	}

	b := o.builder(stage)
	var d string
	if stage.Mode == config.ModeSequential && len(stage.Steps) > 0 {
		d, err = b.Step(0, stage.Steps[0], nil)
	} else if len(stage.Roles) > 0 {
		d, err = b.Produce(stage.Roles[0], nil)
	}
	if err != nil {
		return nil, err
	}

	models := make(map[string]model.Assignment)
	for i, role := range stage.Roles {
		models[role] = o.resolver.Resolve(stageID, i)
	}
	return &StageExecution{Stage: stage, Directive: d, Models: models}, nil
}

func (o *Orchestrator) builder(stage *config.Stage) *directive.Builder {
	return &directive.Builder{
		StageID:      stage.ID,
		StageName:    stage.Name,
		Instructions: stage.Instructions,
	}
}

// FinalizeResult is FinalizeStage's outcome.
type FinalizeResult struct {
	Success   bool
	Report    *validate.Report
	NextStage string
	Completed bool
}

// FinalizeStage validates the stage's outputs. On success it generates the
// handoff, marks the stage completed, creates a milestone checkpoint, and
// advances to the next stage (or pipeline completion). On validation
// failure it returns Success=false without advancing.
func (o *Orchestrator) FinalizeStage(ctx context.Context, stage *config.Stage, result *debate.RunResult) (*FinalizeResult, error) {
	report, err := o.validator.Validate(ctx, stage)
	if err != nil {
		return nil, fmt.Errorf("validate stage %s: %w", stage.ID, err)
	}
	o.logValidation(stage.ID, report)

	if !report.RequiredPassed {
		return &FinalizeResult{Success: false, Report: report}, nil
	}

	output := ""
	if result != nil {
		output = result.Synthesis
	}
	h, err := o.handoff.Generate(ctx, stage, output)
	if err != nil || strings.TrimSpace(h) == "" {
		// The generator falls back internally; an empty handoff here is a bug.
		return nil, fmt.Errorf("handoff for stage %s: %v", stage.ID, err)
	}
	if err := o.store.SaveHandoff(stage.ID, h); err != nil {
		return nil, err
	}

	checkpointID := ""
	if meta, err := o.checkpoints.Create(stage.ID, "stage completed", true, checkpoint.IncludeAll()); err != nil {
		o.logf("stage %s: milestone checkpoint failed: %v", stage.ID, err)
	} else {
		checkpointID = meta.ID
	}

	if err := o.store.UpdateProgress(stage.ID, func(sp *pipeline.StageProgress) {
		sp.Status = pipeline.StageCompleted
		sp.CompletedAt = now()
		sp.CheckpointID = checkpointID
	}); err != nil {
		return nil, err
	}
	o.logEvent(stage.ID, db.EventCompleted, "stage completed")

	return o.advance(stage, report)
}

// advance moves CurrentStage past a completed or skipped stage.
func (o *Orchestrator) advance(stage *config.Stage, report *validate.Report) (*FinalizeResult, error) {
	next := o.cfg.NextStageID(stage.ID)
	fin := &FinalizeResult{Success: true, Report: report, NextStage: next}

	err := o.store.UpdateState(func(st *pipeline.PipelineState) {
		st.RetryState = nil
		if next == "" {
			st.CurrentStage = pipeline.StageComplete
			st.Status = pipeline.StatusCompleted
		} else {
			st.CurrentStage = next
		}
	})
	if err != nil {
		return nil, err
	}

	if next == "" {
		fin.Completed = true
		o.reportCompliance()
	}
	return fin, nil
}

// RunStage drives one stage through the bounded retry ladder: attempt 1 as
// configured, attempt 2 with the validation failures appended, attempt 3
// with a simplified file-by-file requirement list. Exhaustion pauses the
// pipeline with the retry state persisted; there is never a 4th automatic
// attempt.
func (o *Orchestrator) RunStage(ctx context.Context, stageID string) error {
	if _, err := o.PrepareStageExecution(ctx, stageID); err != nil {
		return err
	}
	stage := o.cfg.StageByID(stageID)

	startAttempt := 1
	var failures []string
	state, err := o.store.State()
	if err != nil {
		return err
	}
	if rs := state.RetryState; rs != nil && rs.Stage == stageID {
		startAttempt = rs.Attempt
		failures = rs.Failures
	}

	for attempt := startAttempt; attempt <= maxAttempts; attempt++ {
		if paused, err := o.isPaused(); err != nil {
			return err
		} else if paused {
			return ErrPaused
		}

		extra, err := o.retryDirective(stage, attempt, failures)
		if err != nil {
			return err
		}
		if err := o.store.UpdateProgress(stageID, func(sp *pipeline.StageProgress) {
			sp.Attempts = attempt
		}); err != nil {
			return err
		}
		o.logf("stage %s: attempt %d/%d", stageID, attempt, maxAttempts)

		result, runErr := o.engine.Run(ctx, stage, extra)
		if runErr == nil {
			fin, err := o.FinalizeStage(ctx, stage, result)
			if err != nil {
				return err
			}
			if fin.Success {
				return nil
			}
			failures = checkFailures(fin.Report)
		} else {
			o.logf("stage %s: execution failed: %v", stageID, runErr)
			failures = []string{runErr.Error()}
		}

		if attempt < maxAttempts {
			o.logEvent(stageID, db.EventRetry, strings.Join(failures, "; "))
			if err := o.store.UpdateState(func(st *pipeline.PipelineState) {
				st.RetryState = &pipeline.RetryState{
					Stage:    stageID,
					Attempt:  attempt + 1,
					Failures: failures,
				}
			}); err != nil {
				return err
			}
		}
	}

	reason := fmt.Sprintf("stage %s failed after %d attempts: %s", stageID, maxAttempts, strings.Join(failures, "; "))
	o.logf("%s", reason)
	if err := o.store.UpdateState(func(st *pipeline.PipelineState) {
		st.Status = pipeline.StatusPaused
		st.PausedReason = reason
		st.RetryState = &pipeline.RetryState{Stage: stageID, Attempt: maxAttempts, Failures: failures}
	}); err != nil {
		return err
	}
	o.logEvent(stageID, db.EventPaused, reason)
	return ErrPaused
}

// retryDirective builds the per-attempt directive addendum.
func (o *Orchestrator) retryDirective(stage *config.Stage, attempt int, failures []string) (string, error) {
	b := o.builder(stage)
	switch attempt {
	case 2:
		return b.RetryWithFailures(attempt, failures)
	case 3:
		return b.RetrySimplified(attempt, simplifiedRequirements(stage))
	default:
		return "", nil
	}
}

// simplifiedRequirements turns a stage's declared outputs into the
// explicit file-by-file list used on the final attempt.
func simplifiedRequirements(stage *config.Stage) []string {
	var reqs []string
	for _, a := range stage.RequiredArtifacts {
		r := a.Path
		if a.MinBytes > 0 {
			r += fmt.Sprintf(": at least %d bytes", a.MinBytes)
		}
		if len(a.RequiredSections) > 0 {
			r += ", must contain sections: " + strings.Join(a.RequiredSections, ", ")
		}
		reqs = append(reqs, r)
	}
	if stage.CodeProducing {
		reqs = append(reqs, fmt.Sprintf("at least %d source files, and the project must build and pass its tests", stage.MinSourceFiles))
	}
	if len(reqs) == 0 {
		reqs = append(reqs, "the outputs described in the stage instructions")
	}
	return reqs
}

func checkFailures(report *validate.Report) []string {
	var out []string
	for _, c := range report.FailedChecks {
		out = append(out, fmt.Sprintf("%s: %s", c.Name, c.Detail))
	}
	return out
}

// Run executes stages from the current position until completion or pause.
// Pausing is cooperative: it takes effect between operations, never
// mid-round.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		state, err := o.store.State()
		if err != nil {
			return err
		}
		switch {
		case state.Status == pipeline.StatusPaused:
			return ErrPaused
		case state.Status == pipeline.StatusCompleted || state.CurrentStage == pipeline.StageComplete:
			return nil
		}

		if err := o.RunStage(ctx, state.CurrentStage); err != nil {
			return err
		}
	}
}

// Pause requests a cooperative pause.
func (o *Orchestrator) Pause(reason string) error {
	err := o.store.UpdateState(func(st *pipeline.PipelineState) {
		st.Status = pipeline.StatusPaused
		st.PausedReason = reason
	})
	if err != nil {
		return err
	}
	state, err := o.store.State()
	if err != nil {
		return err
	}
	o.logEvent(state.CurrentStage, db.EventPaused, reason)
	return nil
}

// Resume clears a paused state. Any persisted retry state is kept so the
// ladder resumes where it stopped.
func (o *Orchestrator) Resume() error {
	state, err := o.store.State()
	if err != nil {
		return err
	}
	if state.Status != pipeline.StatusPaused {
		return fmt.Errorf("pipeline is %s, not paused", state.Status)
	}
	return o.store.UpdateState(func(st *pipeline.PipelineState) {
		st.Status = pipeline.StatusRunning
		st.PausedReason = ""
	})
}

// Skip marks the current stage skipped, writes the minimal omission
// handoff, and advances regardless of missing outputs. Only the current
// stage can be skipped: advancing past any other stage would leave
// CurrentStage pointing beyond pending work.
func (o *Orchestrator) Skip(stageID string) error {
	stage := o.cfg.StageByID(stageID)
	if stage == nil {
		return fmt.Errorf("unknown stage %q", stageID)
	}
	state, err := o.store.State()
	if err != nil {
		return err
	}
	if state.CurrentStage != stageID {
		return fmt.Errorf("cannot skip stage %s: current stage is %s", stageID, state.CurrentStage)
	}
	prog, err := o.store.Progress()
	if err != nil {
		return err
	}
	if sp, ok := prog[stageID]; ok && sp.Status == pipeline.StageCompleted {
		return fmt.Errorf("stage %s already completed", stageID)
	}

	if err := o.store.SaveHandoff(stageID, handoff.Skipped(stage)); err != nil {
		return err
	}
	if err := o.store.UpdateProgress(stageID, func(sp *pipeline.StageProgress) {
		sp.Status = pipeline.StageSkipped
		sp.CompletedAt = now()
	}); err != nil {
		return err
	}
	o.logEvent(stageID, db.EventSkipped, "explicitly skipped")

	_, err = o.advance(stage, nil)
	return err
}

// Compliance lists the stages that never recorded an execution event. An
// empty list means the pipeline is compliant.
func (o *Orchestrator) Compliance() ([]string, error) {
	return o.events.StagesWithoutEvents(o.cfg.Name, o.cfg.StageIDs())
}

func (o *Orchestrator) reportCompliance() {
	missing, err := o.Compliance()
	if err != nil {
		o.logf("compliance check failed: %v", err)
		return
	}
	if len(missing) > 0 {
		o.logf("pipeline complete, but stages without execution events: %s", strings.Join(missing, ", "))
		return
	}
	o.logf("pipeline complete, all stages recorded execution events")
}

func (o *Orchestrator) isPaused() (bool, error) {
	state, err := o.store.State()
	if err != nil {
		return false, err
	}
	return state.Status == pipeline.StatusPaused, nil
}

func (o *Orchestrator) logValidation(stageID string, report *validate.Report) {
	detail := "passed"
	if !report.RequiredPassed {
		detail = strings.Join(checkFailures(report), "; ")
	}
	o.logEvent(stageID, db.EventValidation, detail)
}

func (o *Orchestrator) logEvent(stageID, event, detail string) {
	err := o.events.LogExecutionEvent(db.ExecutionEvent{
		Project: o.cfg.Name,
		Stage:   stageID,
		Event:   event,
		Detail:  detail,
	})
	if err != nil {
		o.logf("log %s event: %v", event, err)
	}
}
