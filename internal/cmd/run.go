package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
	"github.com/bryanwahyu/sonifier/internal/infra/audio"
)

const defaultOutputDir = "outputs/audio"

var (
	runDuration int
	runOutput   string
)

var runCmd = &cobra.Command{
	Use:   "run IMAGE",
	Short: "Sonify a single image",
	Long: `Caption the image, detect its mood, compose a prompt and render the music.
The WAV is written to outputs/audio/<name>_sonified.wav unless --output is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVarP(&runDuration, "duration", "d", 0, "Length of the music in seconds (default from config)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Output WAV path")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	image := args[0]
	duration := runDuration
	if duration == 0 {
		duration = cfg.Audio.DefaultDuration
	}
	output := runOutput
	if output == "" {
		output = defaultOutput(defaultOutputDir, image)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Processing image: %s\n", image)

	res, err := buildPipeline(cfg, logger).Process(ctx, image, duration)
	if err != nil {
		return fmt.Errorf("sonify %s: %w", image, err)
	}
	if err := writeResult(output, res); err != nil {
		return err
	}
	printResult(out, res, output)
	return nil
}

// defaultOutput maps photos/harbour.jpg to <dir>/harbour_sonified.wav.
func defaultOutput(dir, image string) string {
	stem := strings.TrimSuffix(filepath.Base(image), filepath.Ext(image))
	return filepath.Join(dir, stem+"_sonified.wav")
}

func writeResult(path string, res *domain.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := audio.WriteFile(path, res.Waveform, res.SampleRate); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func printResult(w io.Writer, res *domain.Result, path string) {
	fmt.Fprintf(w, "  Caption: %s\n", res.Caption)
	fmt.Fprintf(w, "  Mood:    %s\n", res.PrimaryMood)
	for _, s := range res.MoodScores {
		fmt.Fprintf(w, "    - %s: %.2f\n", s.Label, s.Confidence)
	}
	fmt.Fprintf(w, "  Prompt:  %s\n", res.PromptUsed)
	fmt.Fprintf(w, "  Audio:   %s (%.1fs", path, res.DurationSeconds)
	if res.Retried {
		fmt.Fprintf(w, ", retried at %ds", res.EffectiveDuration)
	}
	fmt.Fprintln(w, ")")
}
