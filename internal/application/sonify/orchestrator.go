package sonify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
	"github.com/bryanwahyu/sonifier/internal/logging"
)

// Orchestrator runs one image through caption, mood, prompt and synthesis.
// It holds no per-request state and may be shared between goroutines as long
// as its delegates allow it.
type Orchestrator struct {
	Captioner   domain.Captioner
	Classifier  domain.MoodClassifier
	Synthesizer domain.Synthesizer
	Composer    *domain.Composer
	Logger      *slog.Logger

	TopK        int
	MaxDuration int

	// Per-call timeouts; zero means no extra bound.
	CaptionTimeout time.Duration
	MoodTimeout    time.Duration
	SynthTimeout   time.Duration
}

// Process turns the image at imagePath into music of about requestedDuration
// seconds. Analysis failures degrade to fallbacks; only a missing image or a
// synthesis failure is returned as an error.
func (o *Orchestrator) Process(ctx context.Context, imagePath string, requestedDuration int) (res *domain.Result, err error) {
	log := o.logger().With("image", imagePath)
	done := logging.Time(ctx, log, "process", "requested_duration", requestedDuration)
	defer func() { done(err) }()

	if _, statErr := os.Stat(imagePath); statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return nil, fmt.Errorf("image %s: %w", imagePath, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("stat image: %w", statErr)
	}

	duration, clamped := domain.ClampDuration(requestedDuration, o.maxDuration())
	if clamped {
		log.WarnContext(ctx, "duration clamped", "requested", requestedDuration, "effective", duration, "max", o.maxDuration())
	}

	analysis := o.Analyze(ctx, imagePath)
	prompt := o.composer().Compose(analysis.Caption, analysis.PrimaryMood, analysis.MoodScores)
	log.InfoContext(ctx, "prompt composed", "prompt", prompt)

	gen, err := o.Generate(ctx, prompt, analysis.PrimaryMood, duration)
	if err != nil {
		return nil, err
	}
	gen.RequestedDuration = requestedDuration

	log.InfoContext(ctx, "sonification complete",
		"mood", analysis.PrimaryMood,
		"caption", analysis.Caption,
		"duration_seconds", gen.DurationSeconds,
		"retried", gen.Retried,
	)
	return &domain.Result{AnalysisResult: analysis, GenerationResult: gen}, nil
}

// Analyze captions the image and ranks its moods. It never fails: a failing
// delegate is replaced by its fallback value.
func (o *Orchestrator) Analyze(ctx context.Context, imagePath string) domain.AnalysisResult {
	log := o.logger().With("image", imagePath)
	analysis := domain.FallbackAnalysis(imagePath)

	if o.Captioner != nil {
		cctx, cancel := withTimeout(ctx, o.CaptionTimeout)
		caption, err := o.Captioner.Caption(cctx, imagePath)
		cancel()
		switch {
		case err != nil:
			log.WarnContext(ctx, "caption failed, using fallback", "err", err)
		case caption == "":
			log.WarnContext(ctx, "empty caption, using fallback")
		default:
			analysis.Caption = caption
		}
	}

	if o.Classifier != nil {
		mctx, cancel := withTimeout(ctx, o.MoodTimeout)
		_, scores, err := o.Classifier.Moods(mctx, imagePath, o.topK())
		cancel()
		switch {
		case err != nil:
			log.WarnContext(ctx, "mood classification failed, using fallback", "err", err)
		case len(scores) == 0:
			log.WarnContext(ctx, "no mood scores, using fallback")
		default:
			// the first entry of a descending ranking is the primary mood
			analysis.PrimaryMood = scores[0].Label
			analysis.MoodScores = scores
		}
	}
	return analysis
}

// Generate synthesizes duration seconds of audio for prompt. A resource
// exhausted failure is retried once at half the duration (at least 1s).
func (o *Orchestrator) Generate(ctx context.Context, prompt, mood string, duration int) (domain.GenerationResult, error) {
	if o.Synthesizer == nil {
		return domain.GenerationResult{}, errors.New("no synthesizer configured")
	}
	log := o.logger()

	audio, err := o.synthesize(ctx, prompt, mood, duration)
	retried := false
	if errors.Is(err, domain.ErrResourceExhausted) {
		half := max(1, duration/2)
		log.WarnContext(ctx, "synthesizer exhausted, retrying with shorter duration", "duration", duration, "retry_duration", half, "err", err)
		duration = half
		retried = true
		audio, err = o.synthesize(ctx, prompt, mood, duration)
	}
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("synthesize %ds: %w", duration, err)
	}
	if len(audio.Samples) == 0 || audio.SampleRate <= 0 {
		return domain.GenerationResult{}, errors.New("synthesizer returned no audio")
	}

	gen := domain.NewGenerationResult(audio, prompt)
	gen.EffectiveDuration = duration
	gen.Retried = retried
	return gen, nil
}

// Batch processes every image in order. A failed image leaves a nil entry.
func (o *Orchestrator) Batch(ctx context.Context, imagePaths []string, duration int) []*domain.Result {
	out := make([]*domain.Result, len(imagePaths))
	for i, p := range imagePaths {
		if ctx.Err() != nil {
			o.logger().WarnContext(ctx, "batch cancelled", "remaining", len(imagePaths)-i)
			break
		}
		res, err := o.Process(ctx, p, duration)
		if err != nil {
			o.logger().ErrorContext(ctx, "batch item failed", "index", i, "image", p, "err", err)
			continue
		}
		out[i] = res
	}
	return out
}

func (o *Orchestrator) synthesize(ctx context.Context, prompt, mood string, duration int) (domain.Audio, error) {
	sctx, cancel := withTimeout(ctx, o.SynthTimeout)
	defer cancel()
	return o.Synthesizer.Synthesize(sctx, domain.GenerationRequest{
		Prompt:          prompt,
		Mood:            mood,
		DurationSeconds: duration,
	})
}

func (o *Orchestrator) composer() *domain.Composer {
	if o.Composer == nil {
		return domain.NewComposer()
	}
	return o.Composer
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *Orchestrator) topK() int {
	if o.TopK < 1 {
		return 3
	}
	return o.TopK
}

func (o *Orchestrator) maxDuration() int {
	if o.MaxDuration < 1 {
		return 30
	}
	return o.MaxDuration
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
