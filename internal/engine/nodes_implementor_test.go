package engine

import (
	"context"
	"testing"
)

func implementorBaseState() *WorkflowState {
	s := NewWorkflowState("add a feature", "/repo", 5, 3)
	s.CurrentTaskDescription = "write the handler"
	s.CurrentImplementationPlan = "add a route and a test"
	return s
}

func TestImplementorNode_Success(t *testing.T) {
	invoker := testInvoker(t, `{"files_modified": ["handler.go"], "result_summary": "added handler", "success": true}`)
	node := NewImplementorNode(invoker, NewNormaliser(nil, nil), nil, 15000)

	update, err := node.Execute(context.Background(), implementorBaseState())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := update.set[FieldCurrentImplementationResult].(*ImplementationResult)
	if !result.Success || len(result.FilesModified) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestImplementorNode_UnparseableOutputBecomesFailedResultNotError(t *testing.T) {
	invoker := testInvoker(t, "not json")
	node := NewImplementorNode(invoker, NewNormaliser(nil, nil), nil, 15000)

	update, err := node.Execute(context.Background(), implementorBaseState())
	if err != nil {
		t.Fatalf("expected no error, implementor failures become results: %v", err)
	}
	result := update.set[FieldCurrentImplementationResult].(*ImplementationResult)
	if result.Success {
		t.Error("expected Success=false for unparseable output")
	}
}

func TestImplementorNode_ToolErrorBecomesFailedResult(t *testing.T) {
	invoker := NewAgentInvoker(nil, []ModelBinding{{Role: RolePrimary, Model: &fakeModel{err: errToolFailure}}}, map[Role]int{RolePrimary: 50000}, "cl100k_base", nil)
	node := NewImplementorNode(invoker, NewNormaliser(nil, nil), nil, 15000)

	update, err := node.Execute(context.Background(), implementorBaseState())
	if err != nil {
		t.Fatalf("expected no error, tool failures become results: %v", err)
	}
	result := update.set[FieldCurrentImplementationResult].(*ImplementationResult)
	if result.Success {
		t.Error("expected Success=false after tool error")
	}
}

var errToolFailure = fakeError("tool unavailable")

type fakeError string

func (e fakeError) Error() string { return string(e) }
