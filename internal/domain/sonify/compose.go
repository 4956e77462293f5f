package sonify

import "strings"

// SecondMoodThreshold is the confidence the runner-up mood needs before it is
// mentioned in the prompt.
const SecondMoodThreshold = 0.2

// GenreRule maps caption keywords and mood labels to an instrumentation hint.
type GenreRule struct {
	Category string
	Keywords []string
	Moods    []string
	Hint     string
}

// Matches reports whether the lower-cased caption contains one of the keywords
// and the lower-cased mood is one of the rule's moods.
func (r GenreRule) Matches(caption, mood string) bool {
	moodOK := false
	for _, m := range r.Moods {
		if mood == m {
			moodOK = true
			break
		}
	}
	if !moodOK {
		return false
	}
	for _, k := range r.Keywords {
		if strings.Contains(caption, k) {
			return true
		}
	}
	return false
}

var (
	natureKeywords = []string{"forest", "mountain", "ocean", "river", "nature"}
	urbanKeywords  = []string{"city", "building", "street", "urban"}
	peopleKeywords = []string{"person", "people", "portrait", "face"}
)

// DefaultGenreRules is checked top to bottom; categories are ordered nature, urban, people.
var DefaultGenreRules = []GenreRule{
	{Category: "nature", Keywords: natureKeywords, Moods: []string{"peaceful", "serene", "calm"}, Hint: "ambient pads and gentle flutes"},
	{Category: "nature", Keywords: natureKeywords, Moods: []string{"dramatic", "intense"}, Hint: "epic orchestral strings and horns"},
	{Category: "urban", Keywords: urbanKeywords, Moods: []string{"energetic", "chaotic"}, Hint: "electronic beats and synth bass"},
	{Category: "urban", Keywords: urbanKeywords, Moods: []string{"melancholic", "somber"}, Hint: "slow piano and distant city sounds"},
	{Category: "people", Keywords: peopleKeywords, Moods: []string{"happy", "joyful"}, Hint: "upbeat acoustic guitar and light percussion"},
	{Category: "people", Keywords: peopleKeywords, Moods: []string{"mysterious", "dreamy"}, Hint: "ethereal vocals and reverbed textures"},
}

// Composer builds the text prompt handed to the synthesizer.
type Composer struct {
	Rules     []GenreRule
	Threshold float64
}

// NewComposer returns a composer with the default rule table.
func NewComposer() *Composer {
	return &Composer{Rules: DefaultGenreRules, Threshold: SecondMoodThreshold}
}

// Compose joins the base clause, the optional runner-up mood clause and the
// optional genre hint with ", ".
func (c *Composer) Compose(caption, primaryMood string, scores []MoodScore) string {
	parts := []string{"A " + primaryMood + " piece of music for " + caption}

	if second, ok := secondMood(primaryMood, scores); ok && second.Confidence > c.Threshold {
		parts = append(parts, "with elements of "+second.Label)
	}
	if hint := c.GenreHint(caption, primaryMood); hint != "" {
		parts = append(parts, hint)
	}
	return strings.Join(parts, ", ")
}

// GenreHint returns the hint of the first matching rule, or "".
func (c *Composer) GenreHint(caption, mood string) string {
	caption = strings.ToLower(caption)
	mood = strings.ToLower(mood)
	for _, r := range c.Rules {
		if r.Matches(caption, mood) {
			return r.Hint
		}
	}
	return ""
}

// Compose uses the default composer.
func Compose(caption, primaryMood string, scores []MoodScore) string {
	return NewComposer().Compose(caption, primaryMood, scores)
}

// secondMood is the highest ranked entry that is not the primary mood.
// A ranking with fewer than two entries has no runner-up.
func secondMood(primary string, scores []MoodScore) (MoodScore, bool) {
	if len(scores) < 2 {
		return MoodScore{}, false
	}
	for _, s := range scores {
		if s.Label != primary {
			return s, true
		}
	}
	return MoodScore{}, false
}
