package generate

import "strings"

// EstimateTokens gives a rough token count from the word count (~1.33
// tokens per English word). Exact tokenization is not required for prompt
// budgeting.
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

// TrimToTokens truncates text to roughly the given token budget, cutting at
// a word boundary and marking the cut.
func TrimToTokens(text string, budget int) string {
	if budget <= 0 || EstimateTokens(text) <= budget {
		return text
	}
	words := strings.Fields(text)
	keep := int(float64(budget) / 1.33)
	if keep >= len(words) {
		return text
	}
	return strings.Join(words[:keep], " ") + " …"
}
