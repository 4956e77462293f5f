package sonify

import (
	"sort"
	"strings"
)

// DefaultMoodTags is the mood vocabulary used when none is configured.
var DefaultMoodTags = []string{
	"serene", "happy", "melancholic", "energetic", "peaceful",
	"chaotic", "mysterious", "romantic", "dramatic", "calm",
	"joyful", "somber", "intense", "light", "dark", "dreamy",
}

// RankMoods keeps the labels that belong to vocabulary, orders them by
// descending confidence (ties by vocabulary order) and truncates to topK.
// Confidences are clamped to [0,1].
func RankMoods(raw map[string]float64, vocabulary []string, topK int) []MoodScore {
	index := make(map[string]int, len(vocabulary))
	for i, v := range vocabulary {
		index[strings.ToLower(v)] = i
	}

	out := make([]MoodScore, 0, len(raw))
	for label, conf := range raw {
		l := strings.ToLower(strings.TrimSpace(label))
		if _, ok := index[l]; !ok {
			continue
		}
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		out = append(out, MoodScore{Label: l, Confidence: conf})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return index[out[i].Label] < index[out[j].Label]
	})

	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// ClampDuration constrains requested to [1, max] and reports whether it changed.
func ClampDuration(requested, max int) (int, bool) {
	if max < 1 {
		max = 1
	}
	switch {
	case requested < 1:
		return 1, true
	case requested > max:
		return max, true
	default:
		return requested, false
	}
}
