package chat

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// EstimateTokens returns an approximate token count for text using the
// cl100k_base encoding. If the encoding cannot be loaded (e.g. offline and
// not cached) it falls back to a bytes/4 heuristic rather than failing.
func EstimateTokens(text string) int {
	encodingOnce.Do(func() {
		encoding, _ = tiktoken.GetEncoding("cl100k_base")
	})
	if encoding == nil {
		return approximateTokens(text)
	}
	return len(encoding.Encode(text, nil, nil))
}

// EstimateHistoryTokens sums the token estimate across all message content.
func EstimateHistoryTokens(history []Message) int {
	total := 0
	for _, m := range history {
		total += EstimateTokens(m.Content)
	}
	return total
}

func approximateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
