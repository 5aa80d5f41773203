package engine

import (
	"context"
	"fmt"
	"strings"
)

// assessorOutput is the schema the Assessor node normalises its raw LLM
// output into, per spec.md §4.6.
type assessorOutput struct {
	Verdict            string `json:"verdict"`
	DivergenceAnalysis string `json:"divergence_analysis"`
	PriorWork          string `json:"prior_work"`
}

// AssessorNode performs the periodic or urgency-triggered strategic review
// described in spec.md §4.6: it judges whether recent work still serves the
// remit and milestone, and resets the urgency accumulator on every run; a
// minor_drift verdict then seeds it with UrgencyWeightPriorMinorDrift.
type AssessorNode struct {
	invoker    *AgentInvoker
	normaliser *Normaliser
	budget     int
}

// NewAssessorNode constructs the node.
func NewAssessorNode(invoker *AgentInvoker, normaliser *Normaliser, budget int) *AssessorNode {
	return &AssessorNode{invoker: invoker, normaliser: normaliser, budget: budget}
}

func (n *AssessorNode) Name() NodeName { return NodeAssessor }

func (n *AssessorNode) Execute(ctx context.Context, state *WorkflowState) (*StateUpdate, error) {
	milestone := state.ActiveMilestone()

	prompt := n.buildPrompt(state, milestone)
	result, err := n.invoker.Invoke(ctx, InvokeRequest{
		Role:         RolePrimary,
		SystemPrompt: assessorSystemPrompt,
		Turns:        []Turn{{Role: "human", Text: prompt}},
		MaxTokens:    n.budget,
	})
	if err != nil {
		return nil, err
	}

	var out assessorOutput
	if err := n.normaliser.NormaliseJSON(result.Text, "assessor_output", &out); err != nil {
		// The assessor is advisory, not a gate with its own error type in
		// spec.md §7: an unparseable verdict degrades to aligned so the
		// workflow continues rather than stalls.
		return n.verdictUpdate(state, VerdictAligned, "", ""), nil
	}

	verdict := AssessorVerdict(strings.ToLower(strings.TrimSpace(out.Verdict)))
	switch verdict {
	case VerdictAligned, VerdictMinorDrift, VerdictMajorDivergence, VerdictMilestoneComplete:
	default:
		verdict = VerdictAligned
	}

	return n.verdictUpdate(state, verdict, out.DivergenceAnalysis, out.PriorWork), nil
}

func (n *AssessorNode) verdictUpdate(state *WorkflowState, verdict AssessorVerdict, divergence, priorWork string) *StateUpdate {
	update := NewStateUpdate().
		Set(FieldLastAssessorVerdict, verdict).
		Set(FieldTasksSinceLastReview, 0).
		// Urgency resets to zero on every assessor run, per spec.md §4.6 —
		// the trigger that brought strategic attention here has now been
		// addressed one way or another.
		Set(FieldUrgency, 0.0)

	switch verdict {
	case VerdictMinorDrift:
		update.Set(FieldUrgency, UrgencyWeightPriorMinorDrift)
	case VerdictMajorDivergence:
		update.Set(FieldDivergenceAnalysis, divergence).
			Set(FieldPriorWork, priorWork).
			Set(FieldMilestoneAbortCount, 0)
	case VerdictMilestoneComplete:
		update.Set(FieldActiveMilestoneIndex, state.ActiveMilestoneIndex+1).
			Set(FieldMilestoneAbortCount, 0)
	}

	return update
}

func (n *AssessorNode) buildPrompt(state *WorkflowState, milestone *Milestone) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Remit: %s\n", state.Remit)
	if milestone != nil {
		fmt.Fprintf(&b, "Active milestone: %s\n", milestone.Description)
	}
	fmt.Fprintf(&b, "Tasks since last review: %d\n", state.TasksSinceLastReview)
	fmt.Fprintf(&b, "Accumulated urgency: %.2f\n", state.Urgency)
	fmt.Fprintf(&b, "Milestone abort count: %d\n", state.MilestoneAbortCount)

	window := lastN(state.DoneList, 10)
	if len(window) > 0 {
		b.WriteString("Recent work:\n")
		for _, entry := range window {
			status := "done"
			if entry.Failed {
				status = "failed"
			}
			fmt.Fprintf(&b, "- [%s] %s — %s\n", status, entry.TaskDescription, entry.ResultSummary)
		}
	}

	b.WriteString("Judge whether recent work still serves the remit and active milestone.")
	return b.String()
}

const assessorSystemPrompt = `You are the assessor for an autonomous development workflow, performing a
periodic strategic review. Judge whether recent work still serves the remit
and the active milestone. Respond with JSON:
{"verdict": "aligned|minor_drift|major_divergence|milestone_complete",
 "divergence_analysis": "...", "prior_work": "..."}
divergence_analysis and prior_work are only meaningful when verdict is
"major_divergence".`
