package engine

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// implementorOutput is the schema the Implementor node normalises its raw
// LLM output into, per spec.md §4.4.
type implementorOutput struct {
	FilesModified []string `json:"files_modified"`
	ResultSummary string   `json:"result_summary"`
	Issues        []string `json:"issues"`
	Success       bool     `json:"success"`
}

// ImplementorNode carries out the current task using the declared tool set
// (go-git/go-github file and branch operations per SPEC_FULL.md §3), then
// reports a structured ImplementationResult, per spec.md §4.4.
type ImplementorNode struct {
	invoker    *AgentInvoker
	normaliser *Normaliser
	tools      []llms.Tool
	budget     int
}

// NewImplementorNode constructs the node. tools is the declared tool set
// the invoker may call (file edit, branch, commit); it may be empty in
// configurations where the Implementor is prompted to describe changes
// without executing them.
func NewImplementorNode(invoker *AgentInvoker, normaliser *Normaliser, tools []llms.Tool, budget int) *ImplementorNode {
	return &ImplementorNode{invoker: invoker, normaliser: normaliser, tools: tools, budget: budget}
}

func (n *ImplementorNode) Name() NodeName { return NodeImplementor }

func (n *ImplementorNode) Execute(ctx context.Context, state *WorkflowState) (*StateUpdate, error) {
	prompt := n.buildPrompt(state)

	result, err := n.invoker.Invoke(ctx, InvokeRequest{
		Role:         RolePrimary,
		SystemPrompt: implementorSystemPrompt,
		Turns:        []Turn{{Role: "human", Text: prompt}},
		Tools:        n.tools,
		MaxTokens:    n.budget,
	})
	if err != nil {
		// A failed implementor pass is not terminal: it becomes a failed
		// ImplementationResult so QA and the retry ledger see it, rather
		// than aborting the whole run on a single tool hiccup.
		toolErr, ok := err.(*ToolError)
		if !ok {
			return nil, err
		}
		return n.resultUpdate(&ImplementationResult{
			Success:       false,
			ResultSummary: n.normaliser.TruncateField(toolErr.Error(), resultSummaryLimit, "result_summary"),
			Issues:        []string{toolErr.Error()},
		}), nil
	}

	var out implementorOutput
	if err := n.normaliser.NormaliseJSON(result.Text, "implementor_output", &out); err != nil {
		return n.resultUpdate(&ImplementationResult{
			Success:       false,
			ResultSummary: "implementor output could not be parsed",
			Issues:        []string{err.Error()},
		}), nil
	}

	out.ResultSummary = n.normaliser.TruncateField(out.ResultSummary, resultSummaryLimit, "result_summary")
	out.Issues = n.normaliser.Dedup(out.Issues, "implementor_issues")

	return n.resultUpdate(&ImplementationResult{
		FilesModified: out.FilesModified,
		ResultSummary: out.ResultSummary,
		Issues:        out.Issues,
		Success:       out.Success,
	}), nil
}

func (n *ImplementorNode) resultUpdate(result *ImplementationResult) *StateUpdate {
	return NewStateUpdate().Set(FieldCurrentImplementationResult, result)
}

func (n *ImplementorNode) buildPrompt(state *WorkflowState) string {
	msg := fmt.Sprintf("Task: %s\nPlan: %s\nRepo root: %s\n", state.CurrentTaskDescription, state.CurrentImplementationPlan, state.RepoRoot)
	if state.CorrectionHint != "" {
		msg += fmt.Sprintf("Address this QA feedback from the previous attempt: %s\n", state.CorrectionHint)
	}
	return msg
}

const implementorSystemPrompt = `You are the implementor for an autonomous development workflow. Carry out
the given task using the available tools, then report what you did. Respond
with JSON:
{"files_modified": ["..."], "result_summary": "...", "issues": ["..."], "success": true|false}`
