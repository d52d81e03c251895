// Package directive assembles the execution directives sent to agents:
// stage instructions plus persona, prior handoff, focus items, and prior
// artifacts, rendered through the built-in templates.
package directive

import (
	"fmt"
	"sort"
	"strings"
)

// maxArtifactBytes bounds the total prior-artifact volume included in a
// directive. Beyond it, each artifact is compressed to a head summary.
const maxArtifactBytes = 48 * 1024

// Builder renders directives for one stage.
type Builder struct {
	StageID   string
	StageName string
	// Instructions is the stage's task description shown to every agent.
	Instructions string
	// Handoff is the previous stage's handoff summary, possibly empty.
	Handoff string
}

// Produce builds the round-1 independent-production directive for a role.
// From round 2 of an extension onward, focus carries the narrowed
// unresolved-contention items.
func (b *Builder) Produce(role string, focus []string) (string, error) {
	tmpl, _ := Template("produce.md")
	return Render(tmpl, Vars{
		"persona":      Persona(role),
		"stage_name":   b.StageName,
		"handoff":      b.Handoff,
		"focus":        bulleted(focus),
		"instructions": b.Instructions,
	})
}

// Review builds the cross-review directive for a role, given all artifacts
// of the previous round.
func (b *Builder) Review(role string, artifacts map[string]string) (string, error) {
	tmpl, _ := Template("review.md")
	return Render(tmpl, Vars{
		"persona":    Persona(role),
		"stage_name": b.StageName,
		"artifacts":  FormatArtifacts(artifacts),
	})
}

// Evaluate builds the contention-evaluation directive over one round.
func (b *Builder) Evaluate(round int, artifacts map[string]string) (string, error) {
	tmpl, _ := Template("evaluate.md")
	return Render(tmpl, Vars{
		"persona":    Persona("synthesizer"),
		"stage_name": b.StageName,
		"round":      fmt.Sprintf("%d", round),
		"artifacts":  FormatArtifacts(artifacts),
	})
}

// Synthesize builds the synthesis directive over every round's artifacts.
// rounds is ordered; scores are the per-round contention scores.
func (b *Builder) Synthesize(rounds []map[string]string, scores []float64) (string, error) {
	var sb strings.Builder
	for i, artifacts := range rounds {
		fmt.Fprintf(&sb, "## Round %d\n\n%s\n", i+1, FormatArtifacts(artifacts))
	}

	scoreStrs := make([]string, len(scores))
	for i, s := range scores {
		scoreStrs[i] = fmt.Sprintf("%.2f", s)
	}
	scoreList := strings.Join(scoreStrs, ", ")
	if scoreList == "" {
		scoreList = "none"
	}

	tmpl, _ := Template("synthesize.md")
	return Render(tmpl, Vars{
		"persona":    Persona("synthesizer"),
		"stage_name": b.StageName,
		"artifacts":  sb.String(),
		"scores":     scoreList,
	})
}

// Step builds a sequential-step directive including all prior step outputs.
func (b *Builder) Step(index int, name string, priorOutputs []string) (string, error) {
	var prior strings.Builder
	for i, out := range priorOutputs {
		fmt.Fprintf(&prior, "### Step %d\n\n%s\n\n", i+1, compress(out, maxArtifactBytes/(len(priorOutputs)+1)))
	}

	tmpl, _ := Template("step.md")
	return Render(tmpl, Vars{
		"stage_name":   b.StageName,
		"step_index":   fmt.Sprintf("%d", index+1),
		"step_name":    name,
		"handoff":      b.Handoff,
		"prior_steps":  strings.TrimSpace(prior.String()),
		"instructions": b.Instructions,
	})
}

// RetryWithFailures builds the attempt-2 directive: the original
// instructions with the specific validation failures appended.
func (b *Builder) RetryWithFailures(attempt int, failures []string) (string, error) {
	tmpl, _ := Template("retry-failures.md")
	return Render(tmpl, Vars{
		"stage_name":   b.StageName,
		"attempt":      fmt.Sprintf("%d", attempt),
		"failures":     bulleted(failures),
		"instructions": b.Instructions,
	})
}

// RetrySimplified builds the attempt-3 directive: an explicit file-by-file
// requirement list replacing the original instructions.
func (b *Builder) RetrySimplified(attempt int, requirements []string) (string, error) {
	tmpl, _ := Template("retry-simplified.md")
	return Render(tmpl, Vars{
		"stage_name":   b.StageName,
		"attempt":      fmt.Sprintf("%d", attempt),
		"requirements": numbered(requirements),
	})
}

// HandoffDirective builds the handoff-generation directive over a stage's final output.
func (b *Builder) HandoffDirective(output string) (string, error) {
	tmpl, _ := Template("handoff.md")
	return Render(tmpl, Vars{
		"stage_name": b.StageName,
		"output":     compress(output, maxArtifactBytes),
	})
}

// FormatArtifacts renders a role→content map as markdown sections in
// sorted role order, compressing when the total volume is too large.
func FormatArtifacts(artifacts map[string]string) string {
	roles := make([]string, 0, len(artifacts))
	total := 0
	for role, content := range artifacts {
		roles = append(roles, role)
		total += len(content)
	}
	sort.Strings(roles)

	perArtifact := 0
	if total > maxArtifactBytes && len(artifacts) > 0 {
		perArtifact = maxArtifactBytes / len(artifacts)
	}

	var sb strings.Builder
	for _, role := range roles {
		content := artifacts[role]
		if perArtifact > 0 {
			content = compress(content, perArtifact)
		}
		fmt.Fprintf(&sb, "### Position: %s\n\n%s\n\n", role, strings.TrimSpace(content))
	}
	return strings.TrimSpace(sb.String())
}

// compress truncates content to limit bytes at a line boundary, noting the
// truncation. Summarization by truncation keeps the head, where agents put
// their conclusions.
func compress(content string, limit int) string {
	if limit <= 0 || len(content) <= limit {
		return content
	}
	cut := content[:limit]
	if i := strings.LastIndexByte(cut, '\n'); i > 0 {
		cut = cut[:i]
	}
	return cut + "\n\n[... truncated for context limits ...]"
}

func bulleted(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, item := range items {
		fmt.Fprintf(&sb, "- %s\n", item)
	}
	return strings.TrimSpace(sb.String())
}

func numbered(items []string) string {
	var sb strings.Builder
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, item)
	}
	return strings.TrimSpace(sb.String())
}
