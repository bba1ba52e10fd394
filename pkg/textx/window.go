package textx

import (
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func getEncoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
	})
	return enc, encErr
}

// Window truncates s to at most maxTokens tokens, preserving the leading
// portion. Scoring workers use this to bound résumé/job text before keyword
// scanning so a pathologically long document cannot blow up worker latency.
func Window(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return s
	}
	e, err := getEncoding()
	if err != nil {
		// fall back to a rough 4-chars-per-token estimate
		maxChars := maxTokens * 4
		if len(s) <= maxChars {
			return s
		}
		return s[:maxChars]
	}
	tokens := e.Encode(s, nil, nil)
	if len(tokens) <= maxTokens {
		return s
	}
	return e.Decode(tokens[:maxTokens])
}
