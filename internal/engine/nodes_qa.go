package engine

import (
	"context"
	"fmt"
)

// qaAssessmentOutput is the schema the QA node's LLM phase normalises its
// raw output into, per spec.md §4.5.
type qaAssessmentOutput struct {
	Passed   bool     `json:"passed"`
	Feedback string   `json:"feedback"`
	Issues   []string `json:"issues"`
}

// SecretFinding is one result from the deterministic secret-scan pre-step.
type SecretFinding struct {
	File        string
	Line        int
	Description string
}

// SecretScanner is the deterministic pre-step tool the QA node runs before
// any LLM call, grounded on gitleaks per SPEC_FULL.md §3. A QA pass never
// reaches the LLM assessment phase if this step finds anything: a leaked
// credential is a deterministic fail, not a judgment call.
type SecretScanner interface {
	Scan(ctx context.Context, repoRoot string, files []string) ([]SecretFinding, error)
}

// QANode runs the deterministic secret-scan pre-step, then — only if that
// pre-step is clean — asks the LLM to assess whether the implementation
// satisfies the task, per spec.md §4.5's two-phase design.
type QANode struct {
	invoker    *AgentInvoker
	normaliser *Normaliser
	scanner    SecretScanner
	budget     int
}

// NewQANode constructs the node. scanner may be nil, in which case the
// deterministic pre-step is skipped entirely (used in configurations or
// tests with no gitleaks binary available) rather than treated as a
// passing scan.
func NewQANode(invoker *AgentInvoker, normaliser *Normaliser, scanner SecretScanner, budget int) *QANode {
	return &QANode{invoker: invoker, normaliser: normaliser, scanner: scanner, budget: budget}
}

func (n *QANode) Name() NodeName { return NodeQA }

func (n *QANode) Execute(ctx context.Context, state *WorkflowState) (*StateUpdate, error) {
	if state.CurrentImplementationResult == nil {
		return nil, &ToolError{Tool: "qa", Err: fmt.Errorf("no implementation result to assess")}
	}

	if n.scanner != nil {
		findings, err := n.scanner.Scan(ctx, state.RepoRoot, state.CurrentImplementationResult.FilesModified)
		if err != nil {
			return nil, &ToolError{Tool: "secret_scan", Err: err}
		}
		if len(findings) > 0 {
			return n.resultUpdate(&QAResult{
				Passed:   false,
				Feedback: n.normaliser.TruncateField(formatSecretFindings(findings), qaFeedbackLimit, "qa_feedback"),
				Issues:   secretFindingIssues(findings),
			}), nil
		}
	}

	prompt := n.buildPrompt(state)
	result, err := n.invoker.Invoke(ctx, InvokeRequest{
		Role:         RolePrimary,
		SystemPrompt: qaSystemPrompt,
		Turns:        []Turn{{Role: "human", Text: prompt}},
		MaxTokens:    n.budget,
	})
	if err != nil {
		return nil, err
	}

	var out qaAssessmentOutput
	if err := n.normaliser.NormaliseJSON(result.Text, "qa_assessment_output", &out); err != nil {
		return n.resultUpdate(&QAResult{
			Passed:   false,
			Feedback: "QA assessment output could not be parsed",
			Issues:   []string{err.Error()},
		}), nil
	}

	out.Feedback = n.normaliser.TruncateField(out.Feedback, qaFeedbackLimit, "qa_feedback")
	out.Issues = n.normaliser.Dedup(out.Issues, "qa_issues")

	return n.resultUpdate(&QAResult{Passed: out.Passed, Feedback: out.Feedback, Issues: out.Issues}), nil
}

func (n *QANode) resultUpdate(result *QAResult) *StateUpdate {
	return NewStateUpdate().Set(FieldCurrentQAResult, result)
}

func (n *QANode) buildPrompt(state *WorkflowState) string {
	impl := state.CurrentImplementationResult
	return fmt.Sprintf(
		"Task: %s\nPlan: %s\nFiles modified: %v\nImplementor summary: %s\nImplementor-reported issues: %v\nDoes this satisfy the task? Assess.",
		state.CurrentTaskDescription, state.CurrentImplementationPlan, impl.FilesModified, impl.ResultSummary, impl.Issues,
	)
}

func formatSecretFindings(findings []SecretFinding) string {
	msg := "secret scan found potential leaked credentials: "
	for i, f := range findings {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("%s:%d %s", f.File, f.Line, f.Description)
	}
	return msg
}

func secretFindingIssues(findings []SecretFinding) []string {
	issues := make([]string, 0, len(findings))
	for _, f := range findings {
		issues = append(issues, fmt.Sprintf("%s:%d %s", f.File, f.Line, f.Description))
	}
	return issues
}

const qaSystemPrompt = `You are the QA reviewer for an autonomous development workflow. Given a
task, its plan, and what the implementor reported, decide whether the work
satisfies the task. Respond with JSON:
{"passed": true|false, "feedback": "...", "issues": ["..."]}`
