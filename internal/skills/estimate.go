package skills

import "strings"

// EstimateTokens approximates the token count of s by averaging a word count
// with a characters-divided-by-four count. It is a billing heuristic, not a
// tokenizer; real counts for a given model can differ.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	words := len(strings.Fields(s))
	chars := len(s)
	return (words + chars/4) / 2
}
