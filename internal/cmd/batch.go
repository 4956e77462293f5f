package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	batchDuration  int
	batchOutputDir string
)

var batchCmd = &cobra.Command{
	Use:   "batch IMAGE...",
	Short: "Sonify several images one after another",
	Long: `Process every image in order. A failing image is reported and skipped;
the command exits non-zero when at least one image failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVarP(&batchDuration, "duration", "d", 0, "Length of each piece in seconds (default from config)")
	batchCmd.Flags().StringVar(&batchOutputDir, "output-dir", defaultOutputDir, "Directory for the WAV files")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	duration := batchDuration
	if duration == 0 {
		duration = cfg.Audio.DefaultDuration
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Processing %d images\n", len(args))

	results := buildPipeline(cfg, logger).Batch(ctx, args, duration)
	failed := 0
	for i, res := range results {
		if res == nil {
			failed++
			fmt.Fprintf(out, "[%d/%d] %s: failed\n", i+1, len(args), args[i])
			continue
		}
		path := defaultOutput(batchOutputDir, args[i])
		if err := writeResult(path, res); err != nil {
			failed++
			fmt.Fprintf(out, "[%d/%d] %s: %v\n", i+1, len(args), args[i], err)
			continue
		}
		fmt.Fprintf(out, "[%d/%d] %s: ok -> %s (%s)\n", i+1, len(args), args[i], path, res.PrimaryMood)
	}

	fmt.Fprintf(out, "Done: %d succeeded, %d failed\n", len(args)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(args))
	}
	return nil
}
