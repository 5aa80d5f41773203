package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// NodeHandler is implemented by each of the eight active nodes. Execute
// receives a read-only snapshot and returns a patch; it never mutates
// state directly (spec.md §9 "Ownership").
type NodeHandler interface {
	Name() NodeName
	Execute(ctx context.Context, state *WorkflowState) (*StateUpdate, error)
}

// RecoveryHook is the optional external persistence callback named in
// spec.md §6, invoked best-effort after every mark_complete/mark_failed.
// Errors are logged, never fatal (SPEC_FULL.md §4).
type RecoveryHook func(ctx context.Context, snap StateSnapshot) error

// Clock abstracts time.Now so engine tests can control timestamps; the
// zero value uses time.Now.
type Clock func() time.Time

// Engine drives the single-threaded cooperative loop described in spec.md
// §4.1: select node → invoke → apply update → route → emit events →
// repeat until terminal.
type Engine struct {
	store      *StateStore
	router     *Router
	ledger     *RetryLedger
	dispatcher *StreamDispatcher
	handlers   map[NodeName]NodeHandler
	reporter   *Reporter
	recovery   RecoveryHook
	logger     *zap.Logger
	clock      Clock

	maxIterations int
	cancel        func() bool
}

// NewEngine constructs an Engine. maxIterations caps the total number of
// planner rounds across the workflow (0 means unbounded, per the CLI flag's
// "integer ≥1" contract being optional); cancel is polled at node
// boundaries for cooperative cancellation (spec.md §5).
func NewEngine(
	store *StateStore,
	router *Router,
	ledger *RetryLedger,
	dispatcher *StreamDispatcher,
	handlers map[NodeName]NodeHandler,
	reporter *Reporter,
	recovery RecoveryHook,
	logger *zap.Logger,
	maxIterations int,
	cancel func() bool,
) *Engine {
	if cancel == nil {
		cancel = func() bool { return false }
	}
	return &Engine{
		store:         store,
		router:        router,
		ledger:        ledger,
		dispatcher:    dispatcher,
		handlers:      handlers,
		reporter:      reporter,
		recovery:      recovery,
		logger:        logger,
		clock:         time.Now,
		maxIterations: maxIterations,
		cancel:        cancel,
	}
}

// Run executes the driver loop until a terminal status is reached,
// max_iterations is exhausted, or cancellation is observed. It returns the
// final WorkflowState and the narrative report.
func (e *Engine) Run(ctx context.Context) (*WorkflowState, string, error) {
	iterations := 0

	for {
		state := e.store.Snapshot()

		if state.Status != StatusRunning {
			break
		}

		if e.cancel() {
			e.terminateWithCancellation(ctx, state, "external cancellation requested")
			break
		}
		select {
		case <-ctx.Done():
			e.terminateWithCancellation(ctx, state, ctx.Err().Error())
			return e.store.Snapshot(), "", &CancellationSignal{Reason: ctx.Err().Error()}
		default:
		}

		node := state.CurrentNode
		if node == End || node == NodeReport {
			break
		}

		handler, ok := e.handlers[node]
		if !ok {
			return state, "", fmt.Errorf("no handler registered for node %q", node)
		}

		if node == NodeTaskPlanner {
			iterations++
			if e.maxIterations > 0 && iterations > e.maxIterations {
				e.terminate(ctx, state, StatusFailed, "max_iterations exhausted")
				break
			}
		}

		started := e.clock()
		e.dispatcher.EmitNode(started, "start", node, 0, nil)

		update, err := handler.Execute(ctx, state)
		duration := e.clock().Sub(started).Milliseconds()

		if err != nil {
			e.dispatcher.EmitNode(e.clock(), "error", node, duration, err)
			update = e.failureUpdateFor(node, state, err)
		} else {
			e.dispatcher.EmitNode(e.clock(), "end", node, duration, nil)
		}

		if update == nil {
			update = NewStateUpdate()
		}

		e.store.Apply(update)
		next := e.store.Snapshot()

		nextNode := e.router.Next(node, next)
		routed := NewStateUpdate().Set(FieldCurrentNode, nextNode)
		e.store.Apply(routed)

		e.maybeRunRecoveryHook(ctx, node, next)

		if nextNode == End || nextNode == NodeReport {
			break
		}
	}

	final := e.store.Snapshot()
	if final.Status == StatusRunning {
		// Reaching report with no failure recorded means every milestone
		// was assessed complete (spec.md §3 "terminal status").
		e.store.Apply(NewStateUpdate().Set(FieldStatus, StatusComplete))
		final = e.store.Snapshot()
	}

	report := e.reporter.Summarize(final)
	e.store.Apply(NewStateUpdate().Set(FieldWorkReport, report))
	return e.store.Snapshot(), report, nil
}

// failureUpdateFor converts a node-handler error into a terminal or
// retryable StateUpdate, per the error taxonomy in spec.md §7. The engine
// never panics: every node returns either a success update or a
// structured failure update.
func (e *Engine) failureUpdateFor(node NodeName, state *WorkflowState, err error) *StateUpdate {
	update := NewStateUpdate()

	switch err.(type) {
	case *ScopeError:
		update.Set(FieldStatus, StatusFailed).Set(FieldError, err.Error())
	case *PlannerError:
		update.Set(FieldTaskPlannerAction, ActionAbort).Set(FieldEscalationContext, err.Error())
	case *BudgetError:
		update.Set(FieldTaskPlannerAction, ActionAbort).Set(FieldEscalationContext, err.Error())
	default:
		update.Set(FieldStatus, StatusFailed).Set(FieldError, err.Error())
	}

	if e.logger != nil {
		e.logger.Error("node failed", zap.String("node", string(node)), zap.Error(err))
	}
	return update
}

func (e *Engine) terminate(ctx context.Context, state *WorkflowState, status Status, reason string) {
	update := NewStateUpdate().Set(FieldStatus, status).Set(FieldError, reason).Set(FieldCurrentNode, End)
	e.store.Apply(update)
	e.dispatcher.EmitTask(e.clock(), "failed", "", state.ActiveMilestoneIndex)
}

func (e *Engine) terminateWithCancellation(ctx context.Context, state *WorkflowState, reason string) {
	e.terminate(ctx, state, StatusFailed, fmt.Sprintf("cancelled: %s", reason))
}

func (e *Engine) maybeRunRecoveryHook(ctx context.Context, justRan NodeName, state *WorkflowState) {
	if e.recovery == nil {
		return
	}
	if justRan != NodeMarkComplete && justRan != NodeMarkFailed {
		return
	}
	snap := state.Snapshot(e.clock())
	if err := e.recovery(ctx, snap); err != nil && e.logger != nil {
		e.logger.Warn("recovery hook failed", zap.Error(err))
	}
}
