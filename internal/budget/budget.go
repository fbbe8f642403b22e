package budget

import (
	"math"
	"strings"
)

// EstimateTokensFromChars converts a character count into an estimated token
// count using a conservative heuristic (~4 chars per token in English). The
// result is always at least 1 when chars > 0.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(charCount) / 4.0))
}

// EstimateTokens returns the heuristic token count of a string.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(len(s))
}

// ModelContextTokens returns an estimated maximum context window for a given
// model name. Unknown models fall back to a sensible default.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return 8192
	}
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	// Heuristics based on common suffixes present in model names
	switch {
	case strings.HasSuffix(name, "1m"):
		return 1_000_000
	case strings.HasSuffix(name, "512k"):
		return 512_000
	case strings.HasSuffix(name, "200k"):
		return 200_000
	case strings.HasSuffix(name, "128k"):
		return 128_000
	case strings.Contains(name, "-mini"):
		return 128_000
	}
	return 8192
}

// HeadroomTokens returns a safety headroom to subtract from the model context
// so that routing avoids overruns due to tokenizer and message framing
// overheads: the larger of 5% of the model context or 512 tokens.
func HeadroomTokens(modelName string) int {
	max := ModelContextTokens(modelName)
	dyn := int(math.Ceil(float64(max) * 0.05))
	if dyn < 512 {
		return 512
	}
	return dyn
}

// DefaultLimit is the routing limit used for a primary model when no explicit
// limit is configured: the model context minus headroom.
func DefaultLimit(modelName string) int {
	limit := ModelContextTokens(modelName) - HeadroomTokens(modelName)
	if limit < 0 {
		return 0
	}
	return limit
}

// knownModelMax contains rough context sizes for common model identifiers.
// These are best-effort and do not need to be exhaustive.
var knownModelMax = map[string]int{
	// OpenAI family (approximate)
	"gpt-4o":        128_000,
	"gpt-4o-mini":   128_000,
	"gpt-4-turbo":   128_000,
	"gpt-4":         8_192,
	"gpt-4.1":       1_000_000,
	"gpt-4.1-mini":  1_000_000,
	"gpt-3.5-turbo": 16_384,

	// Google Gemini
	"gemini-1.5-pro":   2_000_000,
	"gemini-1.5-flash": 1_000_000,
	"gemini-2.5-pro":   1_000_000,
	"gemini-2.5-flash": 1_000_000,

	// Anthropic (approximate)
	"claude-3-5-sonnet": 200_000,
	"claude-3-opus":     200_000,
	"claude-3-haiku":    200_000,
}
