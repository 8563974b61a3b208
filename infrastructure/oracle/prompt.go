package oracle

import (
	"encoding/json"
	"fmt"
	"strings"
)

// scorePromptPreamble instructs the model to act as a theater-review rater
// and reply with a bare JSON object. The reply contract is deliberately
// strict so extraction never has to guess.
const scorePromptPreamble = `You are rating a professional theater review on a 0-100 scale, where 0 is the harshest possible pan and 100 is an unqualified rave. Judge only the reviewer's overall verdict on the production, not the quality of the writing.

Respond with exactly one JSON object of the form {"score": N} where N is an integer from 0 to 100. Do not include any other text.

Review:
`

// buildScorePrompt wraps the review text in the rating instructions.
func buildScorePrompt(text string) string {
	return scorePromptPreamble + text
}

// scoreReply mirrors the JSON object the prompt demands.
type scoreReply struct {
	Score *int `json:"score"`
}

// extractScore pulls the integer score out of a provider reply. Models
// occasionally wrap the object in markdown fences or prose despite the
// instructions, so extraction tolerates surrounding noise but insists on a
// well-formed object with an integer score field.
func extractScore(response string) (int, error) {
	jsonStr := extractJSONObject(response)
	if jsonStr == "" {
		return 0, fmt.Errorf("%w: no JSON object in %q", ErrMalformedReply, truncate(response, 80))
	}

	var reply scoreReply
	if err := json.Unmarshal([]byte(jsonStr), &reply); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if reply.Score == nil {
		return 0, fmt.Errorf("%w: missing score field", ErrMalformedReply)
	}
	return *reply.Score, nil
}

// extractJSONObject attempts to extract a JSON object from a response that
// might contain markdown code blocks or surrounding prose.
func extractJSONObject(response string) string {
	response = strings.TrimSpace(response)

	// First, try to extract from a fenced ```json block.
	if start := strings.Index(response, "```json"); start != -1 {
		start += len("```json")
		if end := strings.Index(response[start:], "```"); end != -1 {
			return strings.TrimSpace(response[start : start+end])
		}
	}

	// Also check generic code fences, skipping any language identifier.
	if start := strings.Index(response, "```"); start != -1 {
		start += 3
		if nl := strings.Index(response[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(response[start:], "```"); end != -1 {
			candidate := strings.TrimSpace(response[start : start+end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	// Fall back to the first balanced object, tracking strings so braces
	// inside quoted text do not confuse the count.
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	braceCount := 0
	inString := false
	escapeNext := false
	for i := start; i < len(response); i++ {
		char := response[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if char == '\\' {
			escapeNext = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return response[start : i+1]
				}
			}
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
