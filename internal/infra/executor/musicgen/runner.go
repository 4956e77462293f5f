package musicgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
	"github.com/bryanwahyu/sonifier/internal/infra/audio"
)

// Runner synthesizes audio by running a local MusicGen script once per request.
type Runner struct {
	Bin     string // script or executable
	Python  string // interpreter, empty when Bin is executable on its own
	Device  string // cpu | cuda | mps
	TempDir string

	mu         sync.Mutex
	randSource *rand.Rand
}

func NewRunner(bin, device string) *Runner {
	// Create a dedicated random source to avoid contention
	src := rand.NewSource(time.Now().UnixNano())
	r := &Runner{
		Bin:        bin,
		Device:     device,
		TempDir:    filepath.Join(".", "temp"),
		randSource: rand.New(src),
	}
	if strings.HasSuffix(bin, ".py") {
		r.Python = "python3"
	}
	return r
}

// Synthesize implements domain.Synthesizer.
func (r *Runner) Synthesize(ctx context.Context, req domain.GenerationRequest) (domain.Audio, error) {
	if err := os.MkdirAll(r.TempDir, 0o755); err != nil {
		return domain.Audio{}, fmt.Errorf("create temp dir: %w", err)
	}
	outPath := filepath.Join(r.TempDir, fmt.Sprintf("musicgen-%d.wav", r.next()))
	defer os.Remove(outPath)

	args := []string{
		"--description", req.Prompt,
		"--duration", strconv.Itoa(req.DurationSeconds),
		"--output_path", outPath,
	}
	if r.Device != "" {
		args = append(args, "--device", r.Device)
	}

	var cmd *exec.Cmd
	if r.Python != "" {
		cmd = exec.CommandContext(ctx, r.Python, append([]string{r.Bin}, args...)...)
	} else {
		cmd = exec.CommandContext(ctx, r.Bin, args...)
	}

	// jalankan musicgen
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := tail(string(out), 512)
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			return domain.Audio{}, fmt.Errorf("run error: %v, output=%s", err, msg)
		}
		if IsOutOfMemory(msg) {
			return domain.Audio{}, fmt.Errorf("%w: musicgen exit %d: %s", domain.ErrResourceExhausted, ee.ExitCode(), msg)
		}
		return domain.Audio{}, fmt.Errorf("musicgen exit %d: %s", ee.ExitCode(), msg)
	}

	f, err := os.Open(outPath)
	if err != nil {
		return domain.Audio{}, fmt.Errorf("musicgen produced no output: %w", err)
	}
	defer f.Close()
	samples, rate, err := audio.DecodeWAV(f)
	if err != nil {
		return domain.Audio{}, fmt.Errorf("decode musicgen output: %w", err)
	}
	return domain.Audio{Samples: samples, SampleRate: rate}, nil
}

func (r *Runner) next() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.randSource.Int()
}

// IsOutOfMemory reports whether process output describes memory exhaustion.
func IsOutOfMemory(out string) bool {
	o := strings.ToLower(out)
	return strings.Contains(o, "out of memory") || strings.Contains(o, "outofmemoryerror")
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}
