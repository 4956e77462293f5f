package musicgen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
	"github.com/bryanwahyu/sonifier/internal/infra/audio"
)

// fakeScript writes an executable shell script standing in for MusicGen.
func fakeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "musicgen.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestRunner(t *testing.T, bin string) *Runner {
	r := NewRunner(bin, "cpu")
	r.TempDir = t.TempDir()
	return r
}

func TestRunnerSynthesize(t *testing.T) {
	fixture := filepath.Join(t.TempDir(), "fixture.wav")
	samples := make([]float32, 32000*3)
	if err := audio.WriteFile(fixture, samples, 32000); err != nil {
		t.Fatal(err)
	}
	argsFile := filepath.Join(t.TempDir(), "args.txt")
	t.Setenv("FIXTURE", fixture)
	t.Setenv("ARGS_FILE", argsFile)

	bin := fakeScript(t, `
echo "$@" > "$ARGS_FILE"
while [ $# -gt 0 ]; do
  case "$1" in
    --output_path) out="$2"; shift;;
  esac
  shift
done
cp "$FIXTURE" "$out"
`)
	r := newTestRunner(t, bin)
	a, err := r.Synthesize(context.Background(), domain.GenerationRequest{Prompt: "A calm piece", DurationSeconds: 3})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if a.SampleRate != 32000 || a.Seconds() != 3 {
		t.Errorf("audio = %v s @ %d, want 3 s @ 32000", a.Seconds(), a.SampleRate)
	}

	raw, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	args := string(raw)
	for _, want := range []string{"--description A calm piece", "--duration 3", "--device cpu", "--output_path"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}

	// the output file is removed after decoding
	entries, _ := os.ReadDir(r.TempDir)
	if len(entries) != 0 {
		t.Errorf("temp dir has %d leftover files", len(entries))
	}
}

func TestRunnerOutOfMemory(t *testing.T) {
	bin := fakeScript(t, `echo "torch.cuda.OutOfMemoryError: CUDA out of memory" >&2; exit 1`)
	_, err := newTestRunner(t, bin).Synthesize(context.Background(), domain.GenerationRequest{Prompt: "x", DurationSeconds: 30})
	if !errors.Is(err, domain.ErrResourceExhausted) {
		t.Errorf("err = %v, want ErrResourceExhausted", err)
	}
}

func TestRunnerFailure(t *testing.T) {
	bin := fakeScript(t, `echo "model weights missing" >&2; exit 2`)
	_, err := newTestRunner(t, bin).Synthesize(context.Background(), domain.GenerationRequest{Prompt: "x", DurationSeconds: 1})
	if err == nil {
		t.Fatal("Synthesize = nil error, want error")
	}
	if errors.Is(err, domain.ErrResourceExhausted) {
		t.Errorf("err = %v, must not be ErrResourceExhausted", err)
	}
	if !strings.Contains(err.Error(), "exit 2") {
		t.Errorf("err = %v, want exit code in message", err)
	}
}

func TestRunnerNoOutput(t *testing.T) {
	bin := fakeScript(t, `exit 0`)
	if _, err := newTestRunner(t, bin).Synthesize(context.Background(), domain.GenerationRequest{Prompt: "x", DurationSeconds: 1}); err == nil {
		t.Error("Synthesize without output file = nil error, want error")
	}
}

func TestNewRunnerPythonScript(t *testing.T) {
	if r := NewRunner("/opt/musicgen/generate.py", "cuda"); r.Python != "python3" {
		t.Errorf("Python = %q, want python3", r.Python)
	}
	if r := NewRunner("/usr/local/bin/musicgen", "cpu"); r.Python != "" {
		t.Errorf("Python = %q, want empty", r.Python)
	}
}
