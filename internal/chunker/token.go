package chunker

import "strings"

// EstimateTokens gives a rough token count for a text. English runs about
// 0.75 words per token, so the estimate is word count times 1.33. Exact
// tokenization is not required for budgeting.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
