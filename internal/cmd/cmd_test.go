package cmd

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	appsonify "github.com/bryanwahyu/sonifier/internal/application/sonify"
	"github.com/bryanwahyu/sonifier/internal/config"
	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
	"github.com/bryanwahyu/sonifier/internal/infra/audio"
	"github.com/bryanwahyu/sonifier/internal/logging"
)

type stubCaptioner struct{}

func (stubCaptioner) Caption(context.Context, string) (string, error) {
	return "a city street at night", nil
}

type stubClassifier struct{}

func (stubClassifier) Moods(context.Context, string, int) (string, []domain.MoodScore, error) {
	return "energetic", []domain.MoodScore{{Label: "energetic", Confidence: 0.7}, {Label: "dark", Confidence: 0.3}}, nil
}

// stubSynth returns silence, or an error when fail is set.
type stubSynth struct{ fail bool }

func (s *stubSynth) Synthesize(_ context.Context, req domain.GenerationRequest) (domain.Audio, error) {
	if s.fail {
		return domain.Audio{}, errors.New("model crashed")
	}
	return domain.Audio{Samples: make([]float32, req.DurationSeconds*50), SampleRate: 50}, nil
}

// withStubPipeline swaps buildPipeline and the package flags for one test.
func withStubPipeline(t *testing.T, synth *stubSynth) {
	t.Helper()
	orig := buildPipeline
	buildPipeline = func(*config.Config, *slog.Logger) *appsonify.Orchestrator {
		return &appsonify.Orchestrator{
			Captioner:   stubCaptioner{},
			Classifier:  stubClassifier{},
			Synthesizer: synth,
			Logger:      logging.Discard(),
		}
	}
	configPath = filepath.Join(t.TempDir(), "missing.yaml")
	t.Cleanup(func() {
		buildPipeline = orig
		runDuration, runOutput = 0, ""
		batchDuration, batchOutputDir = 0, defaultOutputDir
		composeCaption, composeMood, composeScores = "", "", ""
	})
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// --- run ---

func TestRun(t *testing.T) {
	withStubPipeline(t, &stubSynth{})
	dir := t.TempDir()
	img := writeImage(t, dir, "street.png")
	dst := filepath.Join(dir, "out", "street.wav")

	out, err := execute(t, "run", img, "--duration", "2", "--output", dst)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	want := "A energetic piece of music for a city street at night, with elements of dark, electronic beats and synth bass"
	if !strings.Contains(out, want) {
		t.Errorf("output does not contain prompt %q:\n%s", want, out)
	}

	f, err := os.Open(dst)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	samples, rate, err := audio.DecodeWAV(f)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 50 || len(samples) != 100 {
		t.Errorf("wav = %d samples @ %d Hz, want 100 @ 50", len(samples), rate)
	}
}

func TestRunMissingImage(t *testing.T) {
	withStubPipeline(t, &stubSynth{})
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "nope.png"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDefaultOutput(t *testing.T) {
	got := defaultOutput("outputs/audio", "photos/harbour.jpeg")
	if got != filepath.Join("outputs", "audio", "harbour_sonified.wav") {
		t.Errorf("defaultOutput = %q", got)
	}
}

// --- batch ---

func TestBatch(t *testing.T) {
	withStubPipeline(t, &stubSynth{})
	dir := t.TempDir()
	a := writeImage(t, dir, "a.png")
	missing := filepath.Join(dir, "missing.png")
	outDir := filepath.Join(dir, "wav")

	out, err := execute(t, "batch", a, missing, "--duration", "1", "--output-dir", outDir)
	if err == nil {
		t.Fatal("batch with a missing image = nil error, want error")
	}
	if !strings.Contains(out, "1 succeeded, 1 failed") {
		t.Errorf("summary missing:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(outDir, "a_sonified.wav")); err != nil {
		t.Errorf("a_sonified.wav not written: %v", err)
	}
}

func TestBatchSynthFailure(t *testing.T) {
	withStubPipeline(t, &stubSynth{fail: true})
	img := writeImage(t, t.TempDir(), "a.png")
	out, err := execute(t, "batch", img)
	if err == nil || !strings.Contains(out, "a.png: failed") {
		t.Errorf("err = %v, output:\n%s", err, out)
	}
}

// --- compose ---

func TestCompose(t *testing.T) {
	withStubPipeline(t, &stubSynth{})
	out, err := execute(t, "compose", "--caption", "a misty forest at dawn", "--scores", "mysterious=0.3,serene=0.6")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	want := "A serene piece of music for a misty forest at dawn, with elements of mysterious, ambient pads and gentle flutes\n"
	if out != want {
		t.Errorf("compose = %q, want %q", out, want)
	}
}

func TestParseScores(t *testing.T) {
	scores, err := parseScores(" calm=0.2, Happy=0.7 ")
	if err != nil {
		t.Fatalf("parseScores: %v", err)
	}
	if len(scores) != 2 || scores[0].Label != "happy" || scores[1].Label != "calm" {
		t.Errorf("scores = %v, want happy then calm", scores)
	}

	for _, bad := range []string{"calm", "=0.3", "calm=high", "calm=1.5"} {
		if _, err := parseScores(bad); err == nil {
			t.Errorf("parseScores(%q) = nil error, want error", bad)
		}
	}
	if s, err := parseScores(""); err != nil || s != nil {
		t.Errorf("parseScores(\"\") = %v, %v", s, err)
	}
}

// --- version ---

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "sonify version dev") {
		t.Errorf("version output = %q", out)
	}
}
