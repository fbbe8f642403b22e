// Package router decides which LLM backend receives a composed prompt.
package router

// Choice identifies the provider slot selected for a request.
type Choice int

const (
	Primary Choice = iota
	Secondary
)

func (c Choice) String() string {
	switch c {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// Choose routes to Primary while totalTokens is within limit (inclusive) and
// to Secondary otherwise. It has no state besides its arguments.
func Choose(totalTokens, limit int) Choice {
	if totalTokens <= limit {
		return Primary
	}
	return Secondary
}
