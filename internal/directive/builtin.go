package directive

// personas describe each debate role's stance. They are prepended to
// production and review directives.
var personas = map[string]string{
	"architect": `You are the Architect. You favor clean structure, explicit contracts,
and long-term maintainability. Propose the design you would defend in review.`,
	"skeptic": `You are the Skeptic. Your job is to find what will break: hidden
assumptions, failure modes, scaling cliffs, and underspecified behavior.
Do not soften your findings.`,
	"pragmatist": `You are the Pragmatist. You optimize for shipping: smallest workable
solution, known tools, realistic timelines. Flag gold-plating wherever you see it.`,
	"innovator": `You are the Innovator. Look for the non-obvious approach the others
will miss: a different decomposition, an existing system to reuse, a constraint
worth dropping.`,
	"synthesizer": `You are the Synthesizer. You weigh every position on its evidence
and produce the single document the team will act on.`,
}

// Persona returns the stance text for a role, or "" for unknown roles.
func Persona(role string) string {
	return personas[role]
}

// builtinTemplates hold the directive bodies, keyed by name.
var builtinTemplates = map[string]string{
	"produce.md": `{{persona}}

# Stage: {{stage_name}}

Work independently. You cannot see the other agents' output.

{{#if handoff}}## Context from the previous stage

{{handoff}}

{{/if}}{{#if focus}}## Unresolved points to focus on

{{focus}}

Address only these points. Do not reopen settled questions.

{{/if}}## Task

{{instructions}}

Write your complete position as a markdown document. Take a stand on every
open question; "it depends" is not a position.`,

	"review.md": `{{persona}}

# Stage: {{stage_name}} — cross-review

Below are all positions produced in the previous round, including your own.

{{artifacts}}

## Task

Review every other position. For each, state what you accept, what you
reject, and why. Rebut with evidence, not restatement — do NOT repeat your
round-1 content. End with your updated position on the contested points only.`,

	"evaluate.md": `{{persona}}

# Stage: {{stage_name}} — contention evaluation

Below are all positions from round {{round}}.

{{artifacts}}

## Task

Score how much genuine disagreement remains between these positions.

Respond with ONLY a JSON object, no prose:

{
  "score": <number 0.0-1.0, where 0 = full agreement and 1 = total contradiction>,
  "unresolved": ["<each specific point still in genuine dispute>"]
}

Count only substantive disagreement about what to build or how. Differences
of emphasis or wording score zero.`,

	"synthesize.md": `{{persona}}

# Stage: {{stage_name}} — synthesis

Below is every artifact from every round of this debate.

{{artifacts}}

## Task

Produce the final {{stage_name}} document. Rules, all mandatory:

1. Points all agents agree on: include at high confidence.
2. Majority points: include, with a short dissent note naming the holdout view.
3. Direct contradictions: pick the better-evidenced position and record why.
4. Unique single-agent contributions: evaluate each; fold in the ones that
   hold up.
5. No substantive point from any agent may be silently dropped. Every point
   is included, modified, or explicitly rejected with a stated reason.

End the document with a "## Debate Notes" section recording: round count,
per-round contention scores ({{scores}}), consensus items, resolved
disagreements, and preserved minority opinions.`,

	"step.md": `# Stage: {{stage_name}} — step {{step_index}}: {{step_name}}

{{#if handoff}}## Context from the previous stage

{{handoff}}

{{/if}}{{#if prior_steps}}## Output of prior steps

{{prior_steps}}

{{/if}}## Task

{{instructions}}

Complete this step fully before stopping. Build on the prior steps' output;
do not redo their work.`,

	"retry-failures.md": `# Stage: {{stage_name}} — retry (attempt {{attempt}})

Your previous attempt failed validation. The specific failures:

{{failures}}

{{instructions}}

Fix every listed failure. Everything that already passed must keep passing.`,

	"retry-simplified.md": `# Stage: {{stage_name}} — retry (attempt {{attempt}}, simplified)

Previous attempts failed validation. Ignore the original directive. Produce
EXACTLY the following files, nothing else:

{{requirements}}

Work through the list file by file, in order. Each file must satisfy its
listed requirement before you move on.`,

	"handoff.md": `# Stage: {{stage_name}} — handoff summary

Below is the final output of the {{stage_name}} stage.

{{output}}

## Task

Write a handoff summary for the next stage's agents: decisions made, their
rationale, constraints to honor, and open items deliberately deferred.
Keep it under 500 words. Do not include the full output; summarize it.`,
}

// Template returns a built-in directive template by name.
func Template(name string) (string, bool) {
	t, ok := builtinTemplates[name]
	return t, ok
}
