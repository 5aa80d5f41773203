package engine

import (
	"context"
	"fmt"
)

// scopeAgentOutput is the schema the ScopeAgent node normalises its raw LLM
// output into, per spec.md §4.2.
type scopeAgentOutput struct {
	Remit      string           `json:"remit"`
	Milestones []milestoneInput `json:"milestones"`
}

type milestoneInput struct {
	Description string `json:"description"`
	Sketch      string `json:"sketch"`
}

const (
	remitCharLimit     = 1000
	milestoneCharLimit = 200
)

// ScopeAgentNode produces remit and milestones, and on re-plan entry
// (major divergence) rewrites milestones from the active index forward
// while leaving completed milestones immutable, per spec.md §4.2.
type ScopeAgentNode struct {
	invoker    *AgentInvoker
	normaliser *Normaliser
	budget     int
}

// NewScopeAgentNode constructs the node.
func NewScopeAgentNode(invoker *AgentInvoker, normaliser *Normaliser, budget int) *ScopeAgentNode {
	return &ScopeAgentNode{invoker: invoker, normaliser: normaliser, budget: budget}
}

func (n *ScopeAgentNode) Name() NodeName { return NodeScopeAgent }

func (n *ScopeAgentNode) Execute(ctx context.Context, state *WorkflowState) (*StateUpdate, error) {
	prompt := n.buildPrompt(state)

	result, err := n.invoker.Invoke(ctx, InvokeRequest{
		Role:         RolePrimary,
		SystemPrompt: scopeAgentSystemPrompt,
		Turns:        []Turn{{Role: "human", Text: prompt}},
		MaxTokens:    n.budget,
	})
	if err != nil {
		return nil, &ScopeError{Reason: err.Error()}
	}

	var out scopeAgentOutput
	if err := n.normaliser.NormaliseJSON(result.Text, "scope_agent_output", &out); err != nil {
		return nil, &ScopeError{Reason: fmt.Sprintf("could not normalise scope output: %v", err)}
	}

	out.Remit = n.normaliser.TruncateField(out.Remit, remitCharLimit, "remit")

	if len(out.Milestones) == 0 {
		return nil, &ScopeError{Reason: "scope agent produced zero milestones"}
	}

	milestones := make([]Milestone, 0, len(out.Milestones))
	for _, m := range out.Milestones {
		desc := n.normaliser.TruncateField(m.Description, milestoneCharLimit, "milestone_description")
		if len(desc) > milestoneCharLimit {
			return nil, &ScopeError{Reason: "milestone exceeds length limit after normalisation"}
		}
		milestones = append(milestones, Milestone{Description: desc, Sketch: m.Sketch})
	}

	update := NewStateUpdate().
		Set(FieldRemit, out.Remit).
		Set(FieldCarryForward, []string{}).
		Set(FieldTasksSinceLastReview, 0).
		Set(FieldUrgency, 0.0).
		Set(FieldMilestoneAbortCount, 0)

	if state.PriorWork != "" {
		// Re-plan entry: completed milestones (index < active) are
		// immutable; rewrite from the active index forward only.
		preserved := append([]Milestone(nil), state.Milestones[:state.ActiveMilestoneIndex]...)
		update.Set(FieldMilestones, append(preserved, milestones...))
	} else {
		update.Set(FieldMilestones, milestones).Set(FieldActiveMilestoneIndex, 0)
	}

	return update, nil
}

func (n *ScopeAgentNode) buildPrompt(state *WorkflowState) string {
	if state.PriorWork == "" {
		return fmt.Sprintf("User request: %s\nRepo root: %s", state.UserRequest, state.RepoRoot)
	}
	return fmt.Sprintf(
		"Re-scoping after divergence.\nOriginal request: %s\nPrior work:\n%s\nDivergence analysis: %s\nMilestones before index %d are immutable.",
		state.UserRequest, state.PriorWork, state.DivergenceAnalysis, state.ActiveMilestoneIndex,
	)
}

const scopeAgentSystemPrompt = `You are the scope agent for an autonomous development workflow.
Produce a remit (<=1000 chars) and an ordered list of milestones. Each milestone
is a user-observable outcome, not an implementation step, with a description
(<=200 chars) and a non-binding sketch of work themes. Respond with JSON:
{"remit": "...", "milestones": [{"description": "...", "sketch": "..."}]}`
