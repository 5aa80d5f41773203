package engine

// Router computes the next node from state after each node completes.
// Every method is a pure function of its WorkflowState argument: no side
// channels, no mutation, so the property "routing is a pure function of
// state" (spec.md §8, property 6) holds by construction — the same
// WorkflowState value always yields the same next node.
type Router struct {
	ledger *RetryLedger
}

// NewRouter constructs a Router. ledger supplies the threshold checks
// (review interval, urgency, attempt exhaustion) that several routing
// functions need; it is itself pure, so this doesn't compromise Router's
// purity.
func NewRouter(ledger *RetryLedger) *Router {
	return &Router{ledger: ledger}
}

// Next dispatches to the routing function for the node that just ran.
func (r *Router) Next(justRan NodeName, state *WorkflowState) NodeName {
	switch justRan {
	case NodeScopeAgent:
		return r.AfterScopeAgent(state)
	case NodeTaskPlanner:
		return r.AfterTaskPlanner(state)
	case NodeImplementor:
		return r.AfterImplementor(state)
	case NodeQA:
		return r.AfterQA(state)
	case NodeMarkComplete:
		return r.AfterMarkComplete(state)
	case NodeMarkFailed:
		// mark_failed always routes to assessor so strategic impact is
		// evaluated (spec.md §4.1).
		return NodeAssessor
	case NodeIncrementAttempt:
		return NodeTaskPlanner
	case NodeAssessor:
		return r.AfterAssessor(state)
	default:
		return End
	}
}

// AfterScopeAgent: if milestones non-empty → task_planner; else → report.
func (r *Router) AfterScopeAgent(state *WorkflowState) NodeName {
	if len(state.Milestones) > 0 {
		return NodeTaskPlanner
	}
	return NodeReport
}

// AfterTaskPlanner switches on task_planner_action.
func (r *Router) AfterTaskPlanner(state *WorkflowState) NodeName {
	switch state.TaskPlannerAction {
	case ActionImplement:
		return NodeImplementor
	case ActionSkip:
		return NodeMarkComplete
	case ActionAbort:
		return NodeMarkFailed
	case ActionMilestoneDone:
		return NodeAssessor
	default:
		// An unrecognised action means normalisation upstream failed to
		// enforce the closed set; treat it as PlannerError territory by
		// aborting rather than looping silently.
		return NodeMarkFailed
	}
}

// AfterImplementor always routes to qa.
func (r *Router) AfterImplementor(state *WorkflowState) NodeName {
	return NodeQA
}

// AfterQA: passed → mark_complete; attempt_count < max_attempts →
// increment_attempt; else → mark_failed.
func (r *Router) AfterQA(state *WorkflowState) NodeName {
	if state.CurrentQAResult != nil && state.CurrentQAResult.Passed {
		return NodeMarkComplete
	}
	if !r.ledger.ExhaustedAttempts(state) {
		return NodeIncrementAttempt
	}
	return NodeMarkFailed
}

// AfterMarkComplete: periodic review or urgency trigger → assessor; else →
// task_planner.
func (r *Router) AfterMarkComplete(state *WorkflowState) NodeName {
	if r.ledger.ShouldReview(state) {
		return NodeAssessor
	}
	return NodeTaskPlanner
}

// AfterAssessor switches on the assessor's verdict.
func (r *Router) AfterAssessor(state *WorkflowState) NodeName {
	switch state.LastAssessorVerdict {
	case VerdictAligned, VerdictMinorDrift:
		return NodeTaskPlanner
	case VerdictMilestoneComplete:
		if state.ActiveMilestoneIndex+1 < len(state.Milestones) {
			return NodeTaskPlanner
		}
		return NodeReport
	case VerdictMajorDivergence:
		return NodeScopeAgent
	default:
		return NodeReport
	}
}
