package engine

import (
	"context"
	"testing"
)

type fakeScanner struct {
	findings []SecretFinding
	err      error
}

func (f *fakeScanner) Scan(ctx context.Context, repoRoot string, files []string) ([]SecretFinding, error) {
	return f.findings, f.err
}

func qaBaseState() *WorkflowState {
	s := NewWorkflowState("add a feature", "/repo", 5, 3)
	s.CurrentTaskDescription = "write the handler"
	s.CurrentImplementationResult = &ImplementationResult{FilesModified: []string{"handler.go"}, Success: true}
	return s
}

func TestQANode_SecretScanFailsDeterministicallyBeforeLLM(t *testing.T) {
	invoker := testInvoker(t, `{"passed": true, "feedback": "fine"}`)
	scanner := &fakeScanner{findings: []SecretFinding{{File: "handler.go", Line: 12, Description: "aws access key"}}}
	node := NewQANode(invoker, NewNormaliser(nil, nil), scanner, 10000)

	update, err := node.Execute(context.Background(), qaBaseState())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := update.set[FieldCurrentQAResult].(*QAResult)
	if result.Passed {
		t.Error("expected QA to fail on secret scan finding, regardless of LLM verdict")
	}
	if len(result.Issues) != 1 {
		t.Errorf("expected 1 issue, got %+v", result.Issues)
	}
}

func TestQANode_CleanScanProceedsToLLMAssessment(t *testing.T) {
	invoker := testInvoker(t, `{"passed": true, "feedback": "looks good"}`)
	scanner := &fakeScanner{}
	node := NewQANode(invoker, NewNormaliser(nil, nil), scanner, 10000)

	update, err := node.Execute(context.Background(), qaBaseState())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := update.set[FieldCurrentQAResult].(*QAResult)
	if !result.Passed {
		t.Errorf("expected pass, got %+v", result)
	}
}

func TestQANode_NoScannerSkipsPreStep(t *testing.T) {
	invoker := testInvoker(t, `{"passed": false, "feedback": "missing test coverage"}`)
	node := NewQANode(invoker, NewNormaliser(nil, nil), nil, 10000)

	update, err := node.Execute(context.Background(), qaBaseState())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := update.set[FieldCurrentQAResult].(*QAResult)
	if result.Passed {
		t.Error("expected fail per LLM verdict")
	}
}

func TestQANode_NoImplementationResultIsToolError(t *testing.T) {
	invoker := testInvoker(t, `{"passed": true}`)
	node := NewQANode(invoker, NewNormaliser(nil, nil), nil, 10000)

	state := NewWorkflowState("add a feature", "/repo", 5, 3)
	_, err := node.Execute(context.Background(), state)
	if _, ok := err.(*ToolError); !ok {
		t.Errorf("expected *ToolError, got %T: %v", err, err)
	}
}
