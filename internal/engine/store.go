package engine

import "sync"

// StateUpdate is a patch returned by a node handler. Only fields staged
// with Set are applied, and a staged zero value is applied like any other —
// this lets a node explicitly clear a field (e.g. nil out
// CurrentQAResult) without every other node having to repeat the
// same zero value.
type StateUpdate struct {
	set map[string]any
}

// NewStateUpdate returns an empty patch to be filled in by a node handler.
func NewStateUpdate() *StateUpdate {
	return &StateUpdate{set: make(map[string]any)}
}

// Set stages a field assignment. Field names match WorkflowState's Go field
// names; unknown names are ignored by Apply (a defensive default rather
// than a panic, since nodes are allowed to be sloppy about optional
// fields).
func (u *StateUpdate) Set(field string, value any) *StateUpdate {
	u.set[field] = value
	return u
}

// Has reports whether field was staged in this update.
func (u *StateUpdate) Has(field string) bool {
	_, ok := u.set[field]
	return ok
}

// StateStore holds the WorkflowState and applies updates via the declared
// reducer in Apply. It is the sole mutator of WorkflowState; nodes return
// patches, never mutate the record directly (spec.md §9 "Ownership").
type StateStore struct {
	mu    sync.Mutex
	state *WorkflowState
}

// NewStateStore wraps an initial state.
func NewStateStore(initial *WorkflowState) *StateStore {
	return &StateStore{state: initial}
}

// Snapshot returns a deep copy of the current state, safe for a caller to
// read without holding the store's lock.
func (s *StateStore) Snapshot() *WorkflowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Apply merges the patch into the current state under the store's lock,
// applying only the fields the node explicitly staged.
func (s *StateStore) Apply(update *StateUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	applyReducer(s.state, update)
}

// applyReducer is a single big switch rather than reflection: the fields of
// WorkflowState are a closed, spec-defined set, so exhaustive dispatch is
// more debuggable than a generic reflect-based merge and lets the compiler
// catch a typo'd field name at review time via the constants below.
func applyReducer(state *WorkflowState, u *StateUpdate) {
	for field, value := range u.set {
		switch field {
		case FieldRemit:
			state.Remit = value.(string)
		case FieldMilestones:
			state.Milestones = value.([]Milestone)
		case FieldActiveMilestoneIndex:
			state.ActiveMilestoneIndex = value.(int)
		case FieldDoneList:
			state.DoneList = value.([]DoneEntry)
		case FieldCarryForward:
			state.CarryForward = value.([]string)
		case FieldCurrentTaskDescription:
			state.CurrentTaskDescription = value.(string)
		case FieldCurrentImplementationPlan:
			state.CurrentImplementationPlan = value.(string)
		case FieldCurrentImplementationResult:
			if value == nil {
				state.CurrentImplementationResult = nil
			} else {
				state.CurrentImplementationResult = value.(*ImplementationResult)
			}
		case FieldCurrentQAResult:
			if value == nil {
				state.CurrentQAResult = nil
			} else {
				state.CurrentQAResult = value.(*QAResult)
			}
		case FieldTaskPlannerAction:
			state.TaskPlannerAction = value.(TaskPlannerAction)
		case FieldEscalationContext:
			state.EscalationContext = value.(string)
		case FieldCorrectionHint:
			state.CorrectionHint = value.(string)
		case FieldDivergenceAnalysis:
			state.DivergenceAnalysis = value.(string)
		case FieldPriorWork:
			state.PriorWork = value.(string)
		case FieldTasksSinceLastReview:
			state.TasksSinceLastReview = value.(int)
		case FieldAttemptCount:
			state.AttemptCount = value.(int)
		case FieldUrgency:
			state.Urgency = value.(float64)
		case FieldMilestoneAbortCount:
			state.MilestoneAbortCount = value.(int)
		case FieldPendingDirectives:
			state.PendingDirectives = value.([]Directive)
		case FieldStatus:
			state.Status = value.(Status)
		case FieldError:
			state.Error = value.(string)
		case FieldWorkReport:
			state.WorkReport = value.(string)
		case FieldCurrentNode:
			state.CurrentNode = value.(NodeName)
		case FieldLastAssessorVerdict:
			state.LastAssessorVerdict = value.(AssessorVerdict)
		}
	}
}

// Field name constants used as StateUpdate keys, kept alongside the reducer
// so a rename of one is a compile error at the other call site... in
// spirit; Go's untyped map keys can't enforce that statically, hence the
// exhaustive switch above as the actual source of truth.
const (
	FieldRemit                       = "Remit"
	FieldMilestones                  = "Milestones"
	FieldActiveMilestoneIndex        = "ActiveMilestoneIndex"
	FieldDoneList                    = "DoneList"
	FieldCarryForward                = "CarryForward"
	FieldCurrentTaskDescription      = "CurrentTaskDescription"
	FieldCurrentImplementationPlan   = "CurrentImplementationPlan"
	FieldCurrentImplementationResult = "CurrentImplementationResult"
	FieldCurrentQAResult             = "CurrentQAResult"
	FieldTaskPlannerAction           = "TaskPlannerAction"
	FieldEscalationContext           = "EscalationContext"
	FieldCorrectionHint              = "CorrectionHint"
	FieldDivergenceAnalysis          = "DivergenceAnalysis"
	FieldPriorWork                   = "PriorWork"
	FieldTasksSinceLastReview        = "TasksSinceLastReview"
	FieldAttemptCount                = "AttemptCount"
	FieldUrgency                     = "Urgency"
	FieldMilestoneAbortCount         = "MilestoneAbortCount"
	FieldPendingDirectives           = "PendingDirectives"
	FieldStatus                      = "Status"
	FieldError                       = "Error"
	FieldWorkReport                  = "WorkReport"
	FieldCurrentNode                 = "CurrentNode"
	FieldLastAssessorVerdict         = "LastAssessorVerdict"
)
