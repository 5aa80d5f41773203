package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	response string
	err      error
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.response}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.response, m.err
}

func TestAgentInvoker_InvokeSuccess(t *testing.T) {
	model := &fakeModel{response: "hello from the model"}
	invoker := NewAgentInvoker(nil, []ModelBinding{{Role: RolePrimary, Model: model}}, map[Role]int{RolePrimary: 1000}, "cl100k_base", nil)

	result, err := invoker.Invoke(context.Background(), InvokeRequest{Role: RolePrimary, SystemPrompt: "sys", Turns: []Turn{{Role: llms.ChatMessageTypeHuman, Text: "hi"}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "hello from the model" {
		t.Errorf("expected model response, got %q", result.Text)
	}
}

func TestAgentInvoker_FallsBackToPrimaryRole(t *testing.T) {
	model := &fakeModel{response: "from primary"}
	invoker := NewAgentInvoker(nil, []ModelBinding{{Role: RolePrimary, Model: model}}, map[Role]int{RolePrimary: 1000}, "cl100k_base", nil)

	result, err := invoker.Invoke(context.Background(), InvokeRequest{Role: RoleResearch, SystemPrompt: "sys"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Text != "from primary" {
		t.Errorf("expected fallback to primary model, got %q", result.Text)
	}
}

func TestAgentInvoker_NoModelNoFallbackErrors(t *testing.T) {
	invoker := NewAgentInvoker(nil, nil, nil, "cl100k_base", nil)
	_, err := invoker.Invoke(context.Background(), InvokeRequest{Role: RoleResearch})
	if err == nil {
		t.Fatal("expected error when no model is bound and no primary fallback exists")
	}
}

func TestAgentInvoker_BudgetExceededReturnsBudgetError(t *testing.T) {
	model := &fakeModel{response: "irrelevant"}
	invoker := NewAgentInvoker(nil, []ModelBinding{{Role: RolePrimary, Model: model}}, map[Role]int{RolePrimary: 5}, "cl100k_base", nil)

	longText := "this is a long turn that should exceed a five token budget easily"
	_, err := invoker.Invoke(context.Background(), InvokeRequest{Role: RolePrimary, Turns: []Turn{{Role: llms.ChatMessageTypeHuman, Text: longText}}})
	if err == nil {
		t.Fatal("expected BudgetError")
	}
	if _, ok := err.(*BudgetError); !ok {
		t.Errorf("expected *BudgetError, got %T: %v", err, err)
	}
}

func TestAgentInvoker_ToolErrorOnModelFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("boom")}
	invoker := NewAgentInvoker(nil, []ModelBinding{{Role: RolePrimary, Model: model}}, map[Role]int{RolePrimary: 1000}, "cl100k_base", nil)

	_, err := invoker.Invoke(context.Background(), InvokeRequest{Role: RolePrimary})
	if _, ok := err.(*ToolError); !ok {
		t.Errorf("expected *ToolError, got %T: %v", err, err)
	}
}

func TestAgentInvoker_CountTokensFallsBackWithoutEncoding(t *testing.T) {
	invoker := NewAgentInvoker(nil, nil, nil, "not-a-real-encoding", nil)
	got := invoker.CountTokens("twenty characters!!")
	if got != len("twenty characters!!")/4 {
		t.Errorf("expected fallback char-count estimate, got %d", got)
	}
}

func TestSummarizationMiddleware_ShouldCompress(t *testing.T) {
	m := NewSummarizationMiddleware(100, 2, nil, func(s string) int { return len(s) })
	if !m.ShouldCompress(150) {
		t.Error("expected compress at or above threshold")
	}
	if m.ShouldCompress(50) {
		t.Error("expected no compress below threshold")
	}
}

func TestSummarizationMiddleware_CompressKeepsRecentTurnsVerbatim(t *testing.T) {
	m := NewSummarizationMiddleware(10, 1, nil, func(s string) int { return len(s) })
	turns := []Turn{
		{Role: llms.ChatMessageTypeHuman, Text: "first"},
		{Role: llms.ChatMessageTypeAI, Text: "second"},
		{Role: llms.ChatMessageTypeHuman, Text: "third, the most recent"},
	}
	compressed, err := m.Compress(context.Background(), turns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(compressed) != 2 {
		t.Fatalf("expected digest + 1 kept turn, got %d", len(compressed))
	}
	if compressed[len(compressed)-1].Text != "third, the most recent" {
		t.Errorf("expected last turn kept verbatim, got %q", compressed[len(compressed)-1].Text)
	}
}

func TestSummarizationMiddleware_CompressNoOpWhenUnderKeepTurns(t *testing.T) {
	m := NewSummarizationMiddleware(10, 5, nil, func(s string) int { return len(s) })
	turns := []Turn{{Role: llms.ChatMessageTypeHuman, Text: "only one"}}
	compressed, err := m.Compress(context.Background(), turns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(compressed) != 1 {
		t.Errorf("expected no-op, got %d turns", len(compressed))
	}
}
