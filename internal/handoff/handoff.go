// Package handoff produces the summary carried from a completed stage into
// the next stage's directives.
package handoff

import (
	"context"
	"fmt"
	"strings"

	"github.com/lucasnoah/stagecraft/internal/agent"
	"github.com/lucasnoah/stagecraft/internal/config"
	"github.com/lucasnoah/stagecraft/internal/directive"
	"github.com/lucasnoah/stagecraft/internal/model"
)

// Generator produces a handoff summary for a completed stage.
type Generator interface {
	Generate(ctx context.Context, stage *config.Stage, output string) (string, error)
}

// AgentGenerator asks the agent for a condensed summary and falls back to
// a deterministic template when the invocation fails. It never returns an
// empty handoff alongside a nil error.
type AgentGenerator struct {
	invoker  agent.Invoker
	resolver *model.Resolver
}

// NewAgentGenerator creates an AgentGenerator.
func NewAgentGenerator(invoker agent.Invoker, resolver *model.Resolver) *AgentGenerator {
	return &AgentGenerator{invoker: invoker, resolver: resolver}
}

func (g *AgentGenerator) Generate(ctx context.Context, stage *config.Stage, output string) (string, error) {
	b := &directive.Builder{StageID: stage.ID, StageName: stage.Name}
	dir, err := b.HandoffDirective(output)
	if err != nil {
		return Fallback(stage, output), nil
	}

	assignment := g.resolver.Resolve(stage.ID, model.SynthesizerRole)
	resp, err := g.invoker.Invoke(ctx, agent.Request{
		Directive: dir,
		Model:     assignment.Model,
		Role:      "handoff",
		Stage:     stage.ID,
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		return Fallback(stage, output), nil
	}
	return resp.Text, nil
}

// Fallback builds a deterministic handoff from the stage output's leading
// content. Used when the agent path fails.
func Fallback(stage *config.Stage, output string) string {
	excerpt := strings.TrimSpace(output)
	const maxExcerpt = 2000
	if len(excerpt) > maxExcerpt {
		if cut := strings.LastIndexByte(excerpt[:maxExcerpt], '\n'); cut > 0 {
			excerpt = excerpt[:cut]
		} else {
			excerpt = excerpt[:maxExcerpt]
		}
		excerpt += "\n[...]"
	}
	if excerpt == "" {
		excerpt = "No output recorded."
	}
	return fmt.Sprintf("# Handoff: %s\n\nStage %q completed. Key output:\n\n%s\n", stage.Name, stage.ID, excerpt)
}

// Skipped notes an explicitly skipped stage so downstream directives see
// the omission rather than an absent handoff.
func Skipped(stage *config.Stage) string {
	return fmt.Sprintf("# Handoff: %s\n\nStage %q was explicitly skipped; it produced no outputs. Downstream stages should not assume its artifacts exist.\n", stage.Name, stage.ID)
}
