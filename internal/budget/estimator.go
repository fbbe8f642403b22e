package budget

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"github.com/rs/zerolog/log"
)

// DefaultEncoding is the BPE used by the GPT-4 model family.
const DefaultEncoding = "cl100k_base"

// Estimator converts text into an approximate token count. Implementations
// must be pure and deterministic: the same text always yields the same count
// and the empty string yields 0.
type Estimator interface {
	Count(text string) int
}

// Heuristic estimates tokens from character length. It is used when no BPE
// encoding is available.
type Heuristic struct{}

func (Heuristic) Count(text string) int { return EstimateTokens(text) }

// Tiktoken counts tokens with a tiktoken BPE so counts match the primary
// provider's tokenizer family.
type Tiktoken struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

var loaderOnce sync.Once

// NewTiktoken loads the named encoding from the BPE ranks compiled into the
// binary; no network access happens at runtime.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.enc.Encode(text, nil, nil))
}

// New returns a tiktoken estimator for the encoding, or the character
// heuristic when the encoding cannot be loaded.
func New(encoding string) Estimator {
	est, err := NewTiktoken(encoding)
	if err != nil {
		log.Warn().Err(err).Str("encoding", encoding).Msg("tokenizer unavailable; using character heuristic")
		return Heuristic{}
	}
	return est
}

// Sum adds the counts of several fragments. It is a diagnostic aggregate and
// not a substitute for counting the concatenated text.
func Sum(e Estimator, fragments ...string) int {
	total := 0
	for _, f := range fragments {
		total += e.Count(f)
	}
	return total
}
