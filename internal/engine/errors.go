package engine

import "fmt"

// Error kinds per spec.md §7. Each is a distinct type so callers can use
// errors.As to branch on kind, following the teacher's fmt.Errorf("...: %w")
// wrapping idiom throughout internal/orchestrator.

// ToolError is raised by a tool tier invocation. It is surfaced into the
// calling agent's result summary and never silently swallowed.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// NormaliserError is raised by the Normaliser after all repair strategies
// fail. The caller (usually a node) converts it into a node-specific
// failure rather than letting it escape as a panic.
type NormaliserError struct {
	Schema string
	Raw    string
	Err    error
}

func (e *NormaliserError) Error() string {
	return fmt.Sprintf("failed to normalise output for schema %q: %v", e.Schema, e.Err)
}

func (e *NormaliserError) Unwrap() error { return e.Err }

// ScopeError is raised by the ScopeAgent node when it cannot produce at
// least one milestone, or a milestone exceeds the length limit after
// normalisation. It is terminal: the engine ends with status=failed.
type ScopeError struct {
	Reason string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("scope agent failed: %s", e.Reason)
}

// PlannerError is raised by the TaskPlanner node when its output cannot be
// normalised to one of the four actions. The engine treats this as an abort
// with synthetic escalation context, routing to mark_failed then assessor.
type PlannerError struct {
	Reason string
}

func (e *PlannerError) Error() string {
	return fmt.Sprintf("task planner failed: %s", e.Reason)
}

// BudgetError is raised by the AgentInvoker when a hard token-budget excess
// survives one summarisation attempt. The engine turns it into a planner
// abort (mark_failed, then assessor) on its first occurrence; it is not
// retried.
type BudgetError struct {
	Role         string
	TokenCount   int
	BudgetTokens int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("role %q exceeded budget: %d > %d tokens", e.Role, e.TokenCount, e.BudgetTokens)
}

// CancellationSignal is raised by the engine when cooperative cancellation
// is observed at a node boundary. It is terminal: status=failed, with a
// final event carrying the reason.
type CancellationSignal struct {
	Reason string
}

func (e *CancellationSignal) Error() string {
	return fmt.Sprintf("cancelled: %s", e.Reason)
}
