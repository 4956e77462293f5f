package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
)

var (
	composeCaption string
	composeMood    string
	composeScores  string
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Print the music prompt for a caption and mood",
	Long: `Build the prompt without running any model. Scores are given as
label=confidence pairs, e.g. --scores serene=0.6,mysterious=0.3`,
	Args: cobra.NoArgs,
	RunE: runCompose,
}

func init() {
	rootCmd.AddCommand(composeCmd)

	composeCmd.Flags().StringVar(&composeCaption, "caption", "", "Image caption")
	composeCmd.Flags().StringVar(&composeMood, "mood", "", "Primary mood (default: highest score)")
	composeCmd.Flags().StringVar(&composeScores, "scores", "", "Mood scores as label=conf,...")
}

func runCompose(cmd *cobra.Command, args []string) error {
	scores, err := parseScores(composeScores)
	if err != nil {
		return err
	}
	caption := strings.TrimSpace(composeCaption)
	if caption == "" {
		caption = domain.FallbackCaption
	}
	mood := strings.ToLower(strings.TrimSpace(composeMood))
	if mood == "" && len(scores) > 0 {
		mood = scores[0].Label
	}
	if mood == "" {
		mood = domain.FallbackMood
	}
	fmt.Fprintln(cmd.OutOrStdout(), domain.Compose(caption, mood, scores))
	return nil
}

// parseScores reads "calm=0.6,dreamy=0.3" into a ranking sorted by
// descending confidence.
func parseScores(raw string) ([]domain.MoodScore, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var scores []domain.MoodScore
	for _, pair := range strings.Split(raw, ",") {
		label, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		label = strings.ToLower(strings.TrimSpace(label))
		if !ok || label == "" {
			return nil, fmt.Errorf("invalid score %q, want label=confidence", pair)
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || conf < 0 || conf > 1 {
			return nil, fmt.Errorf("invalid confidence for %q: must be a number in [0,1]", label)
		}
		scores = append(scores, domain.MoodScore{Label: label, Confidence: conf})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Confidence > scores[j].Confidence })
	return scores, nil
}
