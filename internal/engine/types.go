// Package engine implements the devteam workflow engine: a single-threaded
// state machine composing five agent nodes (scope, task-planner, implementor,
// qa, assessor) and three bookkeeping nodes into a self-correcting loop over
// a sliding-window task-planning model.
package engine

import "time"

// NodeName identifies a node in the engine's state graph.
type NodeName string

const (
	NodeScopeAgent      NodeName = "scope_agent"
	NodeTaskPlanner     NodeName = "task_planner"
	NodeImplementor     NodeName = "implementor"
	NodeQA              NodeName = "qa"
	NodeAssessor        NodeName = "assessor"
	NodeMarkComplete    NodeName = "mark_complete"
	NodeMarkFailed      NodeName = "mark_failed"
	NodeIncrementAttempt NodeName = "increment_attempt"
	NodeReport          NodeName = "report"

	// End is the sentinel node name returned by the router when the graph
	// has reached a terminal state; the engine treats it as "stop looping".
	End NodeName = "__end__"
)

// Status is the terminal-or-running status of a WorkflowState.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// TaskPlannerAction is the closed set of actions the TaskPlanner node may
// return, per spec.md §4.3.
type TaskPlannerAction string

const (
	ActionImplement    TaskPlannerAction = "implement"
	ActionSkip         TaskPlannerAction = "skip"
	ActionAbort        TaskPlannerAction = "abort"
	ActionMilestoneDone TaskPlannerAction = "milestone_done"
)

// AssessorVerdict is the closed set of verdicts the Assessor node may
// return, per spec.md §4.6.
type AssessorVerdict string

const (
	VerdictAligned          AssessorVerdict = "aligned"
	VerdictMinorDrift       AssessorVerdict = "minor_drift"
	VerdictMajorDivergence  AssessorVerdict = "major_divergence"
	VerdictMilestoneComplete AssessorVerdict = "milestone_complete"
)

// DirectiveType distinguishes functional (prepend) from cleanup (append)
// directives, per spec.md §3.
type DirectiveType string

const (
	DirectiveFunctional DirectiveType = "functional"
	DirectiveCleanup    DirectiveType = "cleanup"
)

// Milestone is a user-observable interim outcome, not an implementation
// step (spec.md GLOSSARY).
type Milestone struct {
	Description string `json:"description"` // ≤200 chars after normalisation
	Sketch      string `json:"sketch"`       // non-binding work themes
}

// DoneEntry is a monotonic log record of a completed or failed task.
type DoneEntry struct {
	TaskDescription string `json:"task_description"`
	ResultSummary   string `json:"result_summary"` // ≤300 chars
	QAFeedback      string `json:"qa_feedback"`    // ≤500 chars
	MilestoneIndex  int    `json:"milestone_index"`
	Failed          bool   `json:"failed"`
}

// ImplementationResult is what the Implementor node reports back.
type ImplementationResult struct {
	FilesModified []string `json:"files_modified"`
	ResultSummary string   `json:"result_summary"`
	Issues        []string `json:"issues"`
	Success       bool     `json:"success"`
}

// QAResult is what the QA node reports back. Per spec.md §7 this is a
// result value, never an error (QAFailure is not an exception type).
type QAResult struct {
	Passed   bool     `json:"passed"`
	Feedback string   `json:"feedback"` // ≤500 chars
	Issues   []string `json:"issues"`
}

// Directive is a supervisory instruction placed onto the planner's queue by
// an external supervisor.
type Directive struct {
	Type        DirectiveType `json:"type"`
	Source      string        `json:"source"`
	Description string        `json:"description"`
	Rationale   string        `json:"rationale"`
	Priority    int           `json:"priority"`
}

// WorkflowState is the single record mutated by successive node updates. It
// is owned exclusively by the engine; nodes never mutate it in place — they
// return a StateUpdate patch that the StateStore applies (spec.md §9
// "Ownership").
type WorkflowState struct {
	// Immutable inputs.
	UserRequest string `json:"user_request"`
	RepoRoot    string `json:"repo_root"`

	// Scope.
	Remit                string      `json:"remit"` // ≤1000 chars
	Milestones           []Milestone `json:"milestones"`
	ActiveMilestoneIndex int         `json:"active_milestone_index"`

	// Sliding window.
	DoneList      []DoneEntry `json:"done_list"`
	CarryForward  []string    `json:"carry_forward"` // ≤100 chars each, ≤10 items

	// Current task (ephemeral; cleared on task boundary).
	CurrentTaskDescription     string                 `json:"current_task_description"`
	CurrentImplementationPlan  string                 `json:"current_implementation_plan"`
	CurrentImplementationResult *ImplementationResult `json:"current_implementation_result"`
	CurrentQAResult            *QAResult              `json:"current_qa_result"`

	// Routing controls.
	TaskPlannerAction  TaskPlannerAction `json:"task_planner_action"`
	EscalationContext  string            `json:"escalation_context"`
	CorrectionHint     string            `json:"correction_hint"` // ≤200 chars
	DivergenceAnalysis string            `json:"divergence_analysis"`
	PriorWork          string            `json:"prior_work"`

	// Counters.
	TasksSinceLastReview int     `json:"tasks_since_last_review"`
	ReviewInterval       int     `json:"review_interval"`
	AttemptCount         int     `json:"attempt_count"`
	MaxAttempts          int     `json:"max_attempts"`
	Urgency              float64 `json:"urgency"`
	MilestoneAbortCount  int     `json:"milestone_abort_count"`

	// Directives.
	PendingDirectives []Directive `json:"pending_directives"`

	// Status.
	Status     Status `json:"status"`
	Error      string `json:"error"`
	WorkReport string `json:"work_report"`

	// CurrentNode is the node the engine will invoke next; it is state so
	// the router remains a pure function of the whole record.
	CurrentNode NodeName `json:"current_node"`

	// LastAssessorVerdict holds the most recent verdict, consumed by
	// after_assessor.
	LastAssessorVerdict AssessorVerdict `json:"last_assessor_verdict"`
}

// NewWorkflowState creates the initial state for a run.
func NewWorkflowState(userRequest, repoRoot string, reviewInterval, maxAttempts int) *WorkflowState {
	return &WorkflowState{
		UserRequest:    userRequest,
		RepoRoot:       repoRoot,
		ReviewInterval: reviewInterval,
		MaxAttempts:    maxAttempts,
		Status:         StatusRunning,
		CurrentNode:    NodeScopeAgent,
		DoneList:       []DoneEntry{},
		CarryForward:   []string{},
		Milestones:     []Milestone{},
	}
}

// Clone returns a deep-enough copy of the state for router property tests
// and for building StateUpdates that must not alias the original slices.
func (s *WorkflowState) Clone() *WorkflowState {
	clone := *s
	clone.Milestones = append([]Milestone(nil), s.Milestones...)
	clone.DoneList = append([]DoneEntry(nil), s.DoneList...)
	clone.CarryForward = append([]string(nil), s.CarryForward...)
	clone.PendingDirectives = append([]Directive(nil), s.PendingDirectives...)
	if s.CurrentImplementationResult != nil {
		r := *s.CurrentImplementationResult
		r.FilesModified = append([]string(nil), s.CurrentImplementationResult.FilesModified...)
		r.Issues = append([]string(nil), s.CurrentImplementationResult.Issues...)
		clone.CurrentImplementationResult = &r
	}
	if s.CurrentQAResult != nil {
		q := *s.CurrentQAResult
		q.Issues = append([]string(nil), s.CurrentQAResult.Issues...)
		clone.CurrentQAResult = &q
	}
	return &clone
}

// ActiveMilestone returns the current milestone, or nil if the index is out
// of range (which should never happen while Status == StatusRunning, per
// spec.md §3 invariants).
func (s *WorkflowState) ActiveMilestone() *Milestone {
	if s.ActiveMilestoneIndex < 0 || s.ActiveMilestoneIndex >= len(s.Milestones) {
		return nil
	}
	return &s.Milestones[s.ActiveMilestoneIndex]
}

// StateSnapshot is a read-only view of WorkflowState handed to subscribers
// and to the recovery hook. It is a distinct type (rather than a shared
// pointer) so no subscriber can mutate engine-owned state.
type StateSnapshot struct {
	State     WorkflowState `json:"state"`
	CapturedAt time.Time    `json:"captured_at"`
}

// Snapshot produces a StateSnapshot from the current state.
func (s *WorkflowState) Snapshot(now time.Time) StateSnapshot {
	return StateSnapshot{State: *s.Clone(), CapturedAt: now}
}
