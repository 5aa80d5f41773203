package engine

import (
	"context"
	"fmt"
	"strings"
)

// taskPlannerOutput is the schema the TaskPlanner node normalises its raw
// LLM output into, per spec.md §4.3.
type taskPlannerOutput struct {
	Action          string   `json:"action"`
	TaskDescription string   `json:"task_description"`
	ImplementationPlan string `json:"implementation_plan"`
	CarryForward    []string `json:"carry_forward"`
}

// taskDescriptionLimit bounds CurrentTaskDescription; spec.md §3 does not
// name an explicit limit for this field but the planner enforces one for
// the same reason it enforces one on milestone descriptions: a runaway
// LLM output must not propagate unbounded strings through the sliding
// window.
const taskDescriptionLimit = 300

// TaskPlannerNode is the sliding-window planner described in spec.md §4.3:
// it sees only the active milestone, the last N done entries, and
// carry_forward — never the full history — and emits exactly one of
// implement / skip / abort / milestone_done.
type TaskPlannerNode struct {
	invoker      *AgentInvoker
	normaliser   *Normaliser
	ledger       *RetryLedger
	budget       int
	windowSize   int
}

// NewTaskPlannerNode constructs the node. windowSize is the number of most
// recent DoneList entries shown to the planner (spec.md §4.3 "sliding
// window").
func NewTaskPlannerNode(invoker *AgentInvoker, normaliser *Normaliser, ledger *RetryLedger, budget, windowSize int) *TaskPlannerNode {
	if windowSize <= 0 {
		windowSize = 5
	}
	return &TaskPlannerNode{invoker: invoker, normaliser: normaliser, ledger: ledger, budget: budget, windowSize: windowSize}
}

func (n *TaskPlannerNode) Name() NodeName { return NodeTaskPlanner }

func (n *TaskPlannerNode) Execute(ctx context.Context, state *WorkflowState) (*StateUpdate, error) {
	milestone := state.ActiveMilestone()
	if milestone == nil {
		return nil, &PlannerError{Reason: "no active milestone to plan against"}
	}

	if directive, rest, ok := popDirective(state.PendingDirectives); ok {
		update := n.applyDirective(state, directive)
		update.Set(FieldPendingDirectives, rest)
		return update, nil
	}

	if n.ledger.SoftCapExceeded(state) {
		return NewStateUpdate().
			Set(FieldTaskPlannerAction, ActionAbort).
			Set(FieldEscalationContext, "milestone abort soft cap exceeded, escalating for re-scope"), nil
	}

	prompt := n.buildPrompt(state, *milestone)

	result, err := n.invoker.Invoke(ctx, InvokeRequest{
		Role:         RolePrimary,
		SystemPrompt: taskPlannerSystemPrompt,
		Turns:        []Turn{{Role: "human", Text: prompt}},
		MaxTokens:    n.budget,
	})
	if err != nil {
		return nil, &PlannerError{Reason: err.Error()}
	}

	var out taskPlannerOutput
	if err := n.normaliser.NormaliseJSON(result.Text, "task_planner_output", &out); err != nil {
		return nil, &PlannerError{Reason: fmt.Sprintf("could not normalise planner output: %v", err)}
	}

	action := TaskPlannerAction(strings.ToLower(strings.TrimSpace(out.Action)))
	switch action {
	case ActionImplement, ActionSkip, ActionAbort, ActionMilestoneDone:
	default:
		return nil, &PlannerError{Reason: fmt.Sprintf("planner emitted unrecognised action %q", out.Action)}
	}

	update := NewStateUpdate().Set(FieldTaskPlannerAction, action)

	if action == ActionImplement {
		desc := n.normaliser.TruncateField(out.TaskDescription, taskDescriptionLimit, "task_description")
		update.Set(FieldCurrentTaskDescription, desc).
			Set(FieldCurrentImplementationPlan, out.ImplementationPlan)
	}

	if len(out.CarryForward) > 0 {
		deduped := n.normaliser.Dedup(out.CarryForward, "carry_forward")
		update.Set(FieldCarryForward, mergeCarryForward(nil, deduped))
	}

	return update, nil
}

// applyDirective turns a pending supervisory directive straight into an
// implement action: its description becomes the task and its rationale the
// plan. carry_forward is not changed. Execute applies a directive before any
// LLM planning whenever one is pending, so a cleanup directive is taken as
// soon as no functional directive is queued (see popDirective).
func (n *TaskPlannerNode) applyDirective(state *WorkflowState, d Directive) *StateUpdate {
	update := NewStateUpdate().
		Set(FieldTaskPlannerAction, ActionImplement).
		Set(FieldCurrentTaskDescription, n.truncateTaskDescription(d.Description)).
		Set(FieldCurrentImplementationPlan, d.Rationale)
	return update
}

func (n *TaskPlannerNode) truncateTaskDescription(desc string) string {
	return n.normaliser.TruncateField(desc, taskDescriptionLimit, "task_description")
}

// popDirective returns the highest-priority functional directive first,
// falling back to the first cleanup directive if no functional directive is
// pending, along with the remaining queue.
func popDirective(directives []Directive) (Directive, []Directive, bool) {
	if len(directives) == 0 {
		return Directive{}, nil, false
	}

	bestIdx := -1
	for i, d := range directives {
		if d.Type != DirectiveFunctional {
			continue
		}
		if bestIdx == -1 || d.Priority > directives[bestIdx].Priority {
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		bestIdx = 0
	}

	chosen := directives[bestIdx]
	rest := make([]Directive, 0, len(directives)-1)
	rest = append(rest, directives[:bestIdx]...)
	rest = append(rest, directives[bestIdx+1:]...)
	return chosen, rest, true
}

func (n *TaskPlannerNode) buildPrompt(state *WorkflowState, milestone Milestone) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Active milestone: %s\nSketch: %s\n", milestone.Description, milestone.Sketch)

	window := lastN(state.DoneList, n.windowSize)
	if len(window) == 0 {
		b.WriteString("No prior work on this milestone yet.\n")
	} else {
		b.WriteString("Recent work (most recent last):\n")
		for _, entry := range window {
			status := "done"
			if entry.Failed {
				status = "failed"
			}
			fmt.Fprintf(&b, "- [%s] %s — %s\n", status, entry.TaskDescription, entry.ResultSummary)
		}
	}

	if len(state.CarryForward) > 0 {
		fmt.Fprintf(&b, "Carry-forward notes: %s\n", strings.Join(state.CarryForward, "; "))
	}
	if state.CorrectionHint != "" {
		fmt.Fprintf(&b, "Correction from last QA failure: %s\n", state.CorrectionHint)
	}

	fmt.Fprintf(&b, "Choose exactly one action: implement, skip, abort, milestone_done.")
	return b.String()
}

func lastN(entries []DoneEntry, n int) []DoneEntry {
	if len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

const taskPlannerSystemPrompt = `You are the task planner for an autonomous development workflow. You see
only the active milestone, a sliding window of recent work, and carry-forward
notes — never the full history. Decide the single next step. Respond with
JSON:
{"action": "implement|skip|abort|milestone_done", "task_description": "...",
 "implementation_plan": "...", "carry_forward": ["..."]}
task_description and implementation_plan are required only when action is
"implement".`
