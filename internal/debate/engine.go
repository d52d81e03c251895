// Package debate runs a stage's execution protocol: multi-round
// adversarial-collaborative debate, or an ordered sequence of steps, and
// decides when to stop.
package debate

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lucasnoah/stagecraft/internal/agent"
	"github.com/lucasnoah/stagecraft/internal/config"
	"github.com/lucasnoah/stagecraft/internal/db"
	"github.com/lucasnoah/stagecraft/internal/directive"
	"github.com/lucasnoah/stagecraft/internal/model"
	"github.com/lucasnoah/stagecraft/internal/pipeline"
)

// EventLogger records execution events and per-invocation outcomes.
// Satisfied by *db.DB.
type EventLogger interface {
	LogExecutionEvent(e db.ExecutionEvent) error
	LogInvocation(runID, stage, role, modelID string, round int, ok bool, durationMs int) error
}

// RunResult summarizes one stage execution.
type RunResult struct {
	RunID               string
	Mode                string
	Rounds              int
	Steps               int
	Scores              []float64
	Artifacts           map[string]string // latest round, keyed by role
	SingleAgentFallback bool
	Synthesis           string
}

// Engine executes one stage at a time. Rounds within a stage are strictly
// sequential; agents within a round run concurrently and the engine waits
// for all of them to settle before proceeding.
type Engine struct {
	invoker  agent.Invoker
	resolver *model.Resolver
	store    *pipeline.Store
	events   EventLogger
	cfg      *config.Pipeline
	progress io.Writer
}

// NewEngine creates an Engine.
func NewEngine(invoker agent.Invoker, resolver *model.Resolver, store *pipeline.Store, events EventLogger, cfg *config.Pipeline, progress io.Writer) *Engine {
	return &Engine{
		invoker:  invoker,
		resolver: resolver,
		store:    store,
		events:   events,
		cfg:      cfg,
		progress: progress,
	}
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.progress != nil {
		fmt.Fprintf(e.progress, format+"\n", args...)
	}
}

// Run executes a stage through its configured protocol. The directive may
// carry extra content (validation failures on retry) appended to the stage
// instructions; pass "" for a first attempt.
func (e *Engine) Run(ctx context.Context, stage *config.Stage, extraInstructions string) (*RunResult, error) {
	instructions := stage.Instructions
	if extraInstructions != "" {
		instructions += "\n\n" + extraInstructions
	}

	r := &run{
		engine: e,
		stage:  stage,
		id:     uuid.NewString(),
		builder: &directive.Builder{
			StageID:      stage.ID,
			StageName:    stage.Name,
			Instructions: instructions,
			Handoff:      e.priorHandoff(stage.ID),
		},
	}

	if stage.Mode == config.ModeSequential {
		return r.sequential(ctx)
	}
	return r.debate(ctx)
}

// priorHandoff returns the preceding stage's handoff summary, or "".
func (e *Engine) priorHandoff(stageID string) string {
	ids := e.cfg.StageIDs()
	for i, id := range ids {
		if id == stageID && i > 0 {
			h, err := e.store.Handoff(ids[i-1])
			if err != nil {
				return ""
			}
			return h
		}
	}
	return ""
}

// run carries per-execution state.
type run struct {
	engine  *Engine
	stage   *config.Stage
	builder *directive.Builder
	id      string
}

func (r *run) debate(ctx context.Context) (*RunResult, error) {
	e := r.engine
	profile := e.cfg.Profile(r.stage)
	roles := r.stage.Roles
	if len(roles) > profile.Agents {
		roles = roles[:profile.Agents]
	}

	result := &RunResult{RunID: r.id, Mode: config.ModeDebate}
	var rounds []map[string]string

	// Round 1: independent production, no cross-visibility.
	round := 1
	e.logf("stage %s: round 1: launching %d agents", r.stage.ID, len(roles))
	artifacts := r.fanOut(ctx, round, roles, func(role string) (string, error) {
		return r.builder.Produce(role, nil)
	})

	if len(artifacts) == 0 {
		return r.singleAgent(ctx, roles[0])
	}
	rounds = append(rounds, artifacts)

	light := r.stage.Intensity == config.IntensityLight

	// Round 2: cross-review over round-1 artifacts.
	if !light && profile.MaxRounds > 1 {
		round = 2
		e.logf("stage %s: round 2: cross-review", r.stage.ID)
		reviews := r.fanOut(ctx, round, roles, func(role string) (string, error) {
			return r.builder.Review(role, rounds[0])
		})
		if len(reviews) > 0 {
			rounds = append(rounds, reviews)
		} else {
			e.logf("stage %s: round 2 produced nothing, evaluating round 1", r.stage.ID)
			round = 1
		}
	}

	// Contention loop: evaluate the latest round, extend or synthesize.
	if !light {
		for round < profile.MaxRounds {
			cs := r.evaluate(ctx, round, rounds[len(rounds)-1])
			if cs == nil {
				break
			}
			result.Scores = append(result.Scores, cs.Score)
			if decide(round, cs.Score, profile) == RecommendSynthesize {
				break
			}

			round++
			e.logf("stage %s: round %d: extending on %d unresolved items", r.stage.ID, round, len(cs.Unresolved))
			next := r.fanOut(ctx, round, roles, func(role string) (string, error) {
				return r.builder.Produce(role, cs.Unresolved)
			})
			if len(next) == 0 {
				// Extension-round failure is tolerated.
				round--
				break
			}
			rounds = append(rounds, next)
		}
	}

	synthesis, err := r.synthesize(ctx, rounds, result.Scores)
	if err != nil {
		return nil, err
	}

	result.Rounds = len(rounds)
	result.Artifacts = rounds[len(rounds)-1]
	result.Synthesis = synthesis
	r.logEvent(db.EventDebate, result)
	return result, nil
}

// singleAgent is the fallback when every round-1 agent fails: one
// invocation on the reasoning tier, no debate.
func (r *run) singleAgent(ctx context.Context, role string) (*RunResult, error) {
	e := r.engine
	e.logf("stage %s: all round-1 agents failed, falling back to single-agent execution", r.stage.ID)

	d, err := r.builder.Produce(role, nil)
	if err != nil {
		return nil, err
	}
	text, err := r.invoke(ctx, model.SynthesizerRole, role, 1, d)
	if err != nil {
		return nil, fmt.Errorf("single-agent fallback: %w", err)
	}
	if err := e.store.SaveArtifact(r.stage.ID, 1, role, text); err != nil {
		return nil, err
	}
	if err := e.store.SaveSynthesis(r.stage.ID, text); err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:               r.id,
		Mode:                config.ModeDebate,
		Rounds:              1,
		Artifacts:           map[string]string{role: text},
		SingleAgentFallback: true,
		Synthesis:           text,
	}
	r.logEvent(db.EventSingleAgent, result)
	return result, nil
}

func (r *run) sequential(ctx context.Context) (*RunResult, error) {
	e := r.engine
	var outputs []string

	for i, step := range r.stage.Steps {
		e.logf("stage %s: step %d/%d: %s", r.stage.ID, i+1, len(r.stage.Steps), step)
		d, err := r.builder.Step(i, step, outputs)
		if err != nil {
			return nil, err
		}
		text, err := r.invoke(ctx, model.SequentialRole, step, i+1, d)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", step, err)
		}
		if err := e.store.SaveStepOutput(r.stage.ID, i, step, text); err != nil {
			return nil, err
		}
		outputs = append(outputs, text)
	}

	if len(outputs) == 0 {
		return nil, fmt.Errorf("stage %s: no steps configured", r.stage.ID)
	}
	final := outputs[len(outputs)-1]
	if err := e.store.SaveSynthesis(r.stage.ID, final); err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:     r.id,
		Mode:      config.ModeSequential,
		Steps:     len(outputs),
		Synthesis: final,
	}
	r.logEvent(db.EventSequential, result)
	return result, nil
}

// fanOut launches one invocation per role and waits for all of them to
// settle. Failed roles are dropped; survivors' artifacts are saved and
// returned.
func (r *run) fanOut(ctx context.Context, round int, roles []string, mkDirective func(role string) (string, error)) map[string]string {
	e := r.engine
	texts := make([]string, len(roles))
	errs := make([]error, len(roles))

	var wg sync.WaitGroup
	for i, role := range roles {
		wg.Add(1)
		go func(i int, role string) {
			defer wg.Done()
			d, err := mkDirective(role)
			if err != nil {
				errs[i] = err
				return
			}
			texts[i], errs[i] = r.invoke(ctx, i, role, round, d)
		}(i, role)
	}
	wg.Wait()

	artifacts := make(map[string]string)
	for i, role := range roles {
		if errs[i] != nil {
			e.logf("stage %s: round %d: %s failed: %v", r.stage.ID, round, role, errs[i])
			continue
		}
		if err := e.store.SaveArtifact(r.stage.ID, round, role, texts[i]); err != nil {
			e.logf("stage %s: round %d: save %s artifact: %v", r.stage.ID, round, role, err)
			continue
		}
		artifacts[role] = texts[i]
	}
	return artifacts
}

// evaluate asks the synthesizer for a contention verdict on the latest
// round. A failed invocation or malformed verdict returns nil, which the
// caller treats as a synthesize decision.
func (r *run) evaluate(ctx context.Context, round int, artifacts map[string]string) *ContentionScore {
	e := r.engine
	d, err := r.builder.Evaluate(round, artifacts)
	if err != nil {
		return nil
	}
	text, err := r.invoke(ctx, model.SynthesizerRole, "evaluator", round, d)
	if err != nil {
		e.logf("stage %s: round %d: contention evaluation failed: %v", r.stage.ID, round, err)
		return nil
	}
	cs, err := parseContention(text)
	if err != nil {
		e.logf("stage %s: round %d: %v", r.stage.ID, round, err)
		return nil
	}
	return cs
}

func (r *run) synthesize(ctx context.Context, rounds []map[string]string, scores []float64) (string, error) {
	e := r.engine
	d, err := r.builder.Synthesize(rounds, scores)
	if err != nil {
		return "", err
	}
	text, err := r.invoke(ctx, model.SynthesizerRole, "synthesizer", len(rounds), d)
	if err != nil {
		return "", fmt.Errorf("synthesis: %w", err)
	}
	if err := e.store.SaveSynthesis(r.stage.ID, text); err != nil {
		return "", err
	}
	return text, nil
}

// invoke resolves a model for the role index, runs the agent, and records
// the invocation outcome.
func (r *run) invoke(ctx context.Context, roleIndex int, role string, round int, d string) (string, error) {
	e := r.engine
	assignment := e.resolver.Resolve(r.stage.ID, roleIndex)

	start := time.Now()
	resp, err := e.invoker.Invoke(ctx, agent.Request{
		Directive: d,
		Model:     assignment.Model,
		Role:      role,
		Stage:     r.stage.ID,
	})
	durationMs := int(time.Since(start).Milliseconds())

	if logErr := e.events.LogInvocation(r.id, r.stage.ID, role, assignment.Model, round, err == nil, durationMs); logErr != nil {
		e.logf("stage %s: log invocation: %v", r.stage.ID, logErr)
	}
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (r *run) logEvent(event string, result *RunResult) {
	e := r.engine
	agents := 0
	if result.Artifacts != nil {
		agents = len(result.Artifacts)
	}
	err := e.events.LogExecutionEvent(db.ExecutionEvent{
		Project: e.cfg.Name,
		RunID:   r.id,
		Stage:   r.stage.ID,
		Event:   event,
		Mode:    result.Mode,
		Rounds:  result.Rounds,
		Steps:   result.Steps,
		Agents:  agents,
		Scores:  result.Scores,
	})
	if err != nil {
		e.logf("stage %s: log execution event: %v", r.stage.ID, err)
	}
}
