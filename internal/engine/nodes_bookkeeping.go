package engine

import "context"

// carryForwardItemLimit and carryForwardCharLimit bound the sliding-window
// carry-forward list per spec.md §3 ("≤100 chars each, ≤10 items").
const (
	carryForwardItemLimit = 10
	carryForwardCharLimit = 100
	resultSummaryLimit    = 300
	qaFeedbackLimit       = 500
)

// MarkCompleteNode appends a successful DoneEntry, clears the ephemeral
// current-task fields, resets the attempt counter, and advances the
// sliding-window counters, per spec.md §4.7.
type MarkCompleteNode struct {
	ledger     *RetryLedger
	normaliser *Normaliser
}

// NewMarkCompleteNode constructs the node.
func NewMarkCompleteNode(ledger *RetryLedger, normaliser *Normaliser) *MarkCompleteNode {
	return &MarkCompleteNode{ledger: ledger, normaliser: normaliser}
}

func (n *MarkCompleteNode) Name() NodeName { return NodeMarkComplete }

func (n *MarkCompleteNode) Execute(ctx context.Context, state *WorkflowState) (*StateUpdate, error) {
	summary := ""
	var carry []string
	if state.CurrentImplementationResult != nil {
		summary = n.normaliser.TruncateField(state.CurrentImplementationResult.ResultSummary, resultSummaryLimit, "result_summary")
		carry = state.CurrentImplementationResult.Issues
	}
	feedback := ""
	if state.CurrentQAResult != nil {
		feedback = n.normaliser.TruncateField(state.CurrentQAResult.Feedback, qaFeedbackLimit, "qa_feedback")
	}

	entry := DoneEntry{
		TaskDescription: state.CurrentTaskDescription,
		ResultSummary:   summary,
		QAFeedback:      feedback,
		MilestoneIndex:  state.ActiveMilestoneIndex,
		Failed:          false,
	}
	doneList := append(append([]DoneEntry(nil), state.DoneList...), entry)

	nextCarry := mergeCarryForward(state.CarryForward, carry)
	churn := n.ledger.CarryForwardChurn(state.CarryForward, nextCarry)
	urgency := state.Urgency
	if churn > CarryChurnThreshold {
		urgency = n.ledger.AddUrgency(urgency, UrgencyWeightCarryChurn)
	}

	update := NewStateUpdate().
		Set(FieldDoneList, doneList).
		Set(FieldCarryForward, nextCarry).
		Set(FieldCurrentTaskDescription, "").
		Set(FieldCurrentImplementationPlan, "").
		Set(FieldCurrentImplementationResult, nil).
		Set(FieldCurrentQAResult, nil).
		Set(FieldAttemptCount, 0).
		Set(FieldTasksSinceLastReview, state.TasksSinceLastReview+1).
		Set(FieldUrgency, urgency)

	return update, nil
}

func mergeCarryForward(prev, additions []string) []string {
	merged := append(append([]string(nil), prev...), additions...)
	deduped := dedupStrings(merged)
	for i, item := range deduped {
		if len(item) > carryForwardCharLimit {
			deduped[i] = item[:carryForwardCharLimit]
		}
	}
	if len(deduped) > carryForwardItemLimit {
		deduped = deduped[len(deduped)-carryForwardItemLimit:]
	}
	return deduped
}

func dedupStrings(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// MarkFailedNode appends a failed DoneEntry and increments the milestone
// abort count, per spec.md §4.7.
type MarkFailedNode struct{}

// NewMarkFailedNode constructs the node.
func NewMarkFailedNode() *MarkFailedNode { return &MarkFailedNode{} }

func (n *MarkFailedNode) Name() NodeName { return NodeMarkFailed }

func (n *MarkFailedNode) Execute(ctx context.Context, state *WorkflowState) (*StateUpdate, error) {
	reason := state.EscalationContext
	if reason == "" && state.CurrentQAResult != nil {
		reason = state.CurrentQAResult.Feedback
	}

	entry := DoneEntry{
		TaskDescription: state.CurrentTaskDescription,
		ResultSummary:   hardTruncateAtSentence(reason, resultSummaryLimit),
		MilestoneIndex:  state.ActiveMilestoneIndex,
		Failed:          true,
	}
	doneList := append(append([]DoneEntry(nil), state.DoneList...), entry)

	update := NewStateUpdate().
		Set(FieldDoneList, doneList).
		Set(FieldCurrentTaskDescription, "").
		Set(FieldCurrentImplementationPlan, "").
		Set(FieldCurrentImplementationResult, nil).
		Set(FieldCurrentQAResult, nil).
		Set(FieldAttemptCount, 0).
		Set(FieldMilestoneAbortCount, state.MilestoneAbortCount+1).
		Set(FieldUrgency, NewRetryLedger().AddUrgency(state.Urgency, UrgencyWeightAbort))

	return update, nil
}

// IncrementAttemptNode bumps attempt_count and stages a correction hint for
// the next implementor pass, per spec.md §4.7. The router unconditionally
// sends increment_attempt back to task_planner.
type IncrementAttemptNode struct{}

// NewIncrementAttemptNode constructs the node.
func NewIncrementAttemptNode() *IncrementAttemptNode { return &IncrementAttemptNode{} }

func (n *IncrementAttemptNode) Name() NodeName { return NodeIncrementAttempt }

func (n *IncrementAttemptNode) Execute(ctx context.Context, state *WorkflowState) (*StateUpdate, error) {
	hint := ""
	if state.CurrentQAResult != nil {
		hint = state.CurrentQAResult.Feedback
		if len(hint) > 200 {
			hint = hint[:200]
		}
	}

	update := NewStateUpdate().
		Set(FieldAttemptCount, state.AttemptCount+1).
		Set(FieldCorrectionHint, hint).
		Set(FieldUrgency, NewRetryLedger().AddUrgency(state.Urgency, UrgencyWeightQAFail))

	return update, nil
}
