package session

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens with tiktoken, falling back to a character
// heuristic when the BPE ranks cannot be loaded (offline machines).
type Tokenizer struct {
	encodingName string

	once     sync.Once
	encoder  *tiktoken.Tiktoken
	fallback bool
}

// NewTokenizer returns a tokenizer for the given model. The encoding is
// loaded lazily on the first count.
func NewTokenizer(model string) *Tokenizer {
	return &Tokenizer{encodingName: encodingFor(model)}
}

func (t *Tokenizer) load() {
	t.once.Do(func() {
		if t.fallback {
			return
		}
		enc, err := tiktoken.GetEncoding(t.encodingName)
		if err != nil {
			t.fallback = true
			return
		}
		t.encoder = enc
	})
}

func (t *Tokenizer) CountText(text string) int {
	if text == "" {
		return 0
	}
	t.load()
	if t.fallback {
		return heuristicCount(text)
	}
	return len(t.encoder.Encode(text, nil, nil))
}

// Precise reports whether counts come from tiktoken.
func (t *Tokenizer) Precise() bool {
	t.load()
	return !t.fallback
}

// heuristicCount assumes ~4 ASCII chars per token and ~1.5 tokens per CJK rune.
func heuristicCount(text string) int {
	var cjk, other int
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}
	n := int(float64(cjk)*1.5 + float64(other)*0.25)
	if n < 1 {
		n = 1
	}
	return n
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x3000 && r <= 0x303F) ||
		(r >= 0xFF00 && r <= 0xFFEF) ||
		(r >= 0xAC00 && r <= 0xD7AF)
}

func encodingFor(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	if i := strings.LastIndex(m, "/"); i >= 0 {
		m = m[i+1:]
	}
	switch {
	case strings.HasPrefix(m, "gpt-4o"), strings.HasPrefix(m, "chatgpt-4o"),
		strings.HasPrefix(m, "gpt-4.1"), strings.HasPrefix(m, "gpt-5"),
		strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return "o200k_base"
	default:
		return "cl100k_base"
	}
}
