package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// CaptionSystemPrompt asks a vision model for a short literal caption.
const CaptionSystemPrompt = `You are an image captioning model. Describe the visible content of the image in one short sentence of at most 20 words.

Rules:
- Describe only what is visible: subjects, setting, lighting.
- Use plain lowercase English, no quotes, no preamble such as "This image shows".
- Do not guess names of people or places.`

// CaptionUserPrompt is sent alongside the image.
const CaptionUserPrompt = "Caption this image."

// MoodSystemPrompt provides strict directions and schema for the mood ranking.
func MoodSystemPrompt(vocabulary []string) string {
	return fmt.Sprintf(`You are an image mood classifier. You must produce one valid JSON object only (no markdown, no commentary).

Score how well each mood label describes the emotional and aesthetic tone of the image.

Requirements:
- Use only these labels: %s.
- Every score is a number between 0 and 1; scores should sum to about 1.
- Labels that do not apply may be omitted.

Schema:
{"scores": {"<label>": <number>}}`, strings.Join(vocabulary, ", "))
}

// MoodUserPrompt is sent alongside the image.
const MoodUserPrompt = "Classify the mood of this image and respond with the JSON per schema."

var ErrNoScores = errors.New("mood response contains no scores")

// ParseMoodScores accepts {"scores": {...}} or a flat {"label": score}
// object, optionally wrapped in a markdown code fence.
func ParseMoodScores(content string) (map[string]float64, error) {
	content = stripFence(content)

	var wrapped struct {
		Scores map[string]float64 `json:"scores"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err == nil && len(wrapped.Scores) > 0 {
		return wrapped.Scores, nil
	}

	var flat map[string]float64
	if err := json.Unmarshal([]byte(content), &flat); err != nil {
		return nil, fmt.Errorf("decode mood response: %w", err)
	}
	if len(flat) == 0 {
		return nil, ErrNoScores
	}
	return flat, nil
}

// Normalize rescales positive scores so they sum to 1, like a softmax
// distribution over the vocabulary. Negative scores become 0.
func Normalize(scores map[string]float64) map[string]float64 {
	var sum float64
	for _, v := range scores {
		if v > 0 {
			sum += v
		}
	}
	out := make(map[string]float64, len(scores))
	for k, v := range scores {
		if v < 0 || sum == 0 {
			out[k] = 0
			continue
		}
		out[k] = v / sum
	}
	return out
}

// CleanCaption strips common LLM artifacts from a caption.
func CleanCaption(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "</think>"); idx >= 0 {
		s = strings.TrimSpace(s[idx+len("</think>"):])
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	lower := strings.ToLower(s)
	for _, p := range []string{"this image shows", "the image shows", "caption:"} {
		if strings.HasPrefix(lower, p) {
			s = strings.TrimSpace(s[len(p):])
			lower = strings.ToLower(s)
		}
	}
	return strings.TrimSpace(strings.TrimSuffix(s, "."))
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
