package engine

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Role tags an AgentInvoker binding, per spec.md §6.
type Role string

const (
	RolePrimary    Role = "primary"
	RoleSummarizer Role = "summarizer"
	RoleResearch   Role = "research"
	RoleSupervisor Role = "supervisor"
)

// ModelBinding pairs a role with the langchaingo model that serves it.
// Role-tagged chat models are the concrete shape of the "capability-tagged
// invocation interface" spec.md §1 declares out of scope for the LLM
// backends themselves but in scope for how the engine addresses them.
type ModelBinding struct {
	Role  Role
	Model llms.Model
}

// Turn is one message in an agent conversation, mirroring langchaingo's
// llms.MessageContent shape closely enough to convert without a lossy
// translation layer.
type Turn struct {
	Role llms.ChatMessageType
	Text string
}

// InvokeRequest is what a node handler asks the AgentInvoker to run.
type InvokeRequest struct {
	Role         Role
	SystemPrompt string
	Turns        []Turn
	Tools        []llms.Tool
	MaxTokens    int
}

// InvokeResult is the raw text an AgentInvoker call produced, before any
// node-level normalisation.
type InvokeResult struct {
	Text        string
	InputTokens int
}

// AgentInvoker binds a role-tagged model and a declared tool set and
// enforces per-role token budgets (spec.md §4.9). It returns the model's raw
// text; repairing malformed output via the Normaliser is done by the node
// handlers that call it.
type AgentInvoker struct {
	logger       *zap.Logger
	bindings     map[Role]llms.Model
	encoding     *tiktoken.Tiktoken
	middleware   *SummarizationMiddleware
	budgetByRole map[Role]int
	limiters     map[Role]*rate.Limiter
}

// NewAgentInvoker constructs an AgentInvoker. encodingName follows
// tiktoken-go's model registry (e.g. "cl100k_base"); if it fails to load,
// token counting falls back to a whitespace-based estimate so the engine
// degrades rather than panics on an unusual model name.
func NewAgentInvoker(logger *zap.Logger, bindings []ModelBinding, budgetByRole map[Role]int, encodingName string, middleware *SummarizationMiddleware) *AgentInvoker {
	byRole := make(map[Role]llms.Model, len(bindings))
	for _, b := range bindings {
		byRole[b.Role] = b.Model
	}
	enc, _ := tiktoken.GetEncoding(encodingName)
	return &AgentInvoker{
		logger:       logger,
		bindings:     byRole,
		encoding:     enc,
		middleware:   middleware,
		budgetByRole: budgetByRole,
		limiters:     make(map[Role]*rate.Limiter),
	}
}

// SetRateLimit caps a role's call rate to the provider's own per-minute
// quota (ratePerSecond, with up to burst calls allowed back-to-back). A role
// with no configured limiter is unthrottled — this is opt-in per spec.md §6,
// since local/mock model bindings used in tests shouldn't wait on a limiter.
func (a *AgentInvoker) SetRateLimit(role Role, ratePerSecond float64, burst int) {
	a.limiters[role] = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
}

// resolveModel implements the graceful-degradation wrapper: on role-model
// unavailability, fall back to primary (spec.md §4.9).
func (a *AgentInvoker) resolveModel(role Role) (llms.Model, Role, error) {
	if model, ok := a.bindings[role]; ok {
		return model, role, nil
	}
	if model, ok := a.bindings[RolePrimary]; ok {
		if a.logger != nil {
			a.logger.Warn("role model unavailable, falling back to primary", zap.String("role", string(role)))
		}
		return model, RolePrimary, nil
	}
	return nil, role, fmt.Errorf("no model bound for role %q and no primary fallback configured", role)
}

// CountTokens estimates the token count of text.
func (a *AgentInvoker) CountTokens(text string) int {
	if a.encoding != nil {
		return len(a.encoding.Encode(text, nil, nil))
	}
	// Fallback estimate: ~4 chars/token, the commonly cited rule of thumb
	// for English text under BPE tokenizers.
	return len(text) / 4
}

// Invoke runs one agent call. A failed or empty model call is returned as a
// structured ToolError (never swallowed, not retried); on budget excess it
// applies the SummarizationMiddleware once before raising BudgetError, per
// spec.md §4.9.
func (a *AgentInvoker) Invoke(ctx context.Context, req InvokeRequest) (*InvokeResult, error) {
	model, resolvedRole, err := a.resolveModel(req.Role)
	if err != nil {
		return nil, err
	}

	budget := req.MaxTokens
	if budget == 0 {
		budget = a.budgetByRole[req.Role]
	}

	turns := req.Turns
	inputTokens := a.countTurns(req.SystemPrompt, turns)

	overBudget := budget > 0 && inputTokens > budget
	if a.middleware != nil && (overBudget || a.middleware.ShouldCompress(inputTokens)) {
		compressed, err := a.middleware.Compress(ctx, turns)
		if err != nil {
			return nil, fmt.Errorf("summarization middleware failed: %w", err)
		}
		turns = compressed
		inputTokens = a.countTurns(req.SystemPrompt, turns)
	}

	if budget > 0 && inputTokens > budget {
		return nil, &BudgetError{Role: string(resolvedRole), TokenCount: inputTokens, BudgetTokens: budget}
	}

	if limiter, ok := a.limiters[resolvedRole]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait for role %q: %w", resolvedRole, err)
		}
	}

	messages := toMessageContent(req.SystemPrompt, turns)
	resp, err := model.GenerateContent(ctx, messages, llms.WithTools(req.Tools))
	if err != nil {
		return nil, &ToolError{Tool: "llm:" + string(resolvedRole), Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ToolError{Tool: "llm:" + string(resolvedRole), Err: fmt.Errorf("empty response")}
	}

	return &InvokeResult{Text: resp.Choices[0].Content, InputTokens: inputTokens}, nil
}

func (a *AgentInvoker) countTurns(systemPrompt string, turns []Turn) int {
	total := a.CountTokens(systemPrompt)
	for _, t := range turns {
		total += a.CountTokens(t.Text)
	}
	return total
}

func toMessageContent(systemPrompt string, turns []Turn) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(turns)+1)
	if systemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	for _, t := range turns {
		messages = append(messages, llms.TextParts(t.Role, t.Text))
	}
	return messages
}

// SummarizationMiddleware replaces every turn older than the last keepTurns
// with a summariser-produced digest once the conversation crosses threshold
// tokens, keeping the last keepTurns verbatim (spec.md §4.9: threshold
// ≈30k tokens, keep last 10 turns).
type SummarizationMiddleware struct {
	threshold  int
	keepTurns  int
	summarizer Summarizer
	counter    func(string) int
}

// NewSummarizationMiddleware constructs the middleware. counter is usually
// AgentInvoker.CountTokens; it's passed in rather than referencing the
// invoker directly so the middleware can be constructed before the invoker
// and handed in as a dependency (matching the invoker's own constructor
// order).
func NewSummarizationMiddleware(threshold, keepTurns int, summarizer Summarizer, counter func(string) int) *SummarizationMiddleware {
	return &SummarizationMiddleware{threshold: threshold, keepTurns: keepTurns, summarizer: summarizer, counter: counter}
}

// ShouldCompress reports whether inputTokens crosses the threshold.
func (m *SummarizationMiddleware) ShouldCompress(inputTokens int) bool {
	return m.threshold > 0 && inputTokens >= m.threshold
}

// Compress replaces every turn before the last m.keepTurns with a single
// summary digest turn, keeping the last m.keepTurns verbatim.
func (m *SummarizationMiddleware) Compress(ctx context.Context, turns []Turn) ([]Turn, error) {
	if len(turns) <= m.keepTurns {
		return turns, nil
	}
	splitAt := len(turns) - m.keepTurns
	older := turns[:splitAt]
	recent := turns[splitAt:]

	var olderText string
	for _, t := range older {
		olderText += string(t.Role) + ": " + t.Text + "\n"
	}

	var digest string
	if m.summarizer != nil {
		summarized, err := m.summarizer.Summarize(olderText, 2000)
		if err != nil {
			return nil, err
		}
		digest = summarized
	} else {
		digest = hardTruncateAtSentence(olderText, 2000)
	}

	compressed := make([]Turn, 0, m.keepTurns+1)
	compressed = append(compressed, Turn{Role: llms.ChatMessageTypeSystem, Text: "Earlier conversation summary: " + digest})
	compressed = append(compressed, recent...)
	return compressed, nil
}
