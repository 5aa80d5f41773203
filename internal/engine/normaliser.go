package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Summarizer produces a shorter digest of text, backed by the summarizer
// role model (see AgentInvoker). The Normaliser uses it only for the
// length-truncation repair when a field is more than 2x its limit.
type Summarizer interface {
	Summarize(text string, targetChars int) (string, error)
}

// Normaliser accepts (raw-text, target-schema) and returns a normalised
// value. The repairs it applies are JSON extraction, length truncation and
// field deduplication, each tried at most once. Its type-coercion step
// (coerceCommonMistakes) changes nothing, and it inserts no defaults for
// missing fields.
type Normaliser struct {
	logger     *zap.Logger
	summarizer Summarizer
}

// NewNormaliser constructs a Normaliser. summarizer may be nil, in which
// case over-length fields are always hard-truncated (never LLM-compressed)
// — used in tests and in any deployment that hasn't wired a summarizer
// role.
func NewNormaliser(logger *zap.Logger, summarizer Summarizer) *Normaliser {
	return &Normaliser{logger: logger, summarizer: summarizer}
}

// repairLog is emitted for every repair, per spec.md §4.8 "every repair is
// logged for observability".
func (n *Normaliser) repairLog(strategy, schema string) {
	if n.logger != nil {
		n.logger.Debug("normaliser repair applied", zap.String("strategy", strategy), zap.String("schema", schema))
	}
}

// ExtractJSON strips code fences and locates the outermost JSON object or
// array in raw. Returns the raw text unchanged if no fences or brackets are
// found (nothing to repair).
func (n *Normaliser) ExtractJSON(raw, schema string) string {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		trimmed = strings.TrimSpace(trimmed)
		n.repairLog("json_extraction_fence", schema)
	}

	start := strings.IndexAny(trimmed, "{[")
	if start < 0 {
		return trimmed
	}
	openCh := trimmed[start]
	closeCh := byte('}')
	if openCh == '[' {
		closeCh = ']'
	}
	end := strings.LastIndexByte(trimmed, closeCh)
	if end < 0 || end < start {
		return trimmed
	}
	if start > 0 || end < len(trimmed)-1 {
		n.repairLog("json_extraction_outermost", schema)
	}
	return trimmed[start : end+1]
}

// TruncateField applies the length-truncation repair from spec.md §4.8: if
// value is more than 2x limit, invoke the summariser role; otherwise
// hard-truncate at a sentence boundary at or before limit.
func (n *Normaliser) TruncateField(value string, limit int, schema string) string {
	if len(value) <= limit {
		return value
	}
	if len(value) > 2*limit && n.summarizer != nil {
		if summarized, err := n.summarizer.Summarize(value, limit); err == nil {
			n.repairLog("length_truncation_summarize", schema)
			if len(summarized) <= limit {
				return summarized
			}
			value = summarized
		}
	}
	n.repairLog("length_truncation_hard", schema)
	return hardTruncateAtSentence(value, limit)
}

func hardTruncateAtSentence(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	cut := value[:limit]
	if idx := strings.LastIndexAny(cut, ".!?"); idx > 0 {
		return cut[:idx+1]
	}
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		return cut[:idx]
	}
	return cut
}

// Dedup removes consecutive-or-exact duplicate strings, preserving first
// occurrence order.
func (n *Normaliser) Dedup(items []string, schema string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	deduped := false
	for _, item := range items {
		if _, ok := seen[item]; ok {
			deduped = true
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	if deduped {
		n.repairLog("field_deduplication", schema)
	}
	return out
}

// NormaliseJSON runs JSON extraction then unmarshals into target. Because
// the type-coercion step changes nothing, a candidate that json.Unmarshal
// rejects (including a string where a list is expected, or a numeric
// string where a number is expected) yields a NormaliserError.
func (n *Normaliser) NormaliseJSON(raw string, schema string, target any) error {
	candidate := n.ExtractJSON(raw, schema)

	if err := json.Unmarshal([]byte(candidate), target); err == nil {
		return nil
	}

	coerced, ok := coerceCommonMistakes(candidate)
	if ok {
		n.repairLog("type_coercion", schema)
		if err := json.Unmarshal([]byte(coerced), target); err == nil {
			return nil
		}
	}

	return &NormaliserError{
		Schema: schema,
		Raw:    raw,
		Err:    fmt.Errorf("no repair strategy produced valid JSON for schema %q", schema),
	}
}

// coerceCommonMistakes is the type-coercion repair slot. It returns
// candidate unchanged with ok=false: the schema-agnostic Normaliser does not
// inspect the target's reflected shape, so no string<->list or
// numeric-string coercion is applied.
func coerceCommonMistakes(candidate string) (string, bool) {
	return candidate, false
}
