package sonify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
)

type fakeCaptioner struct {
	caption string
	err     error
}

func (f fakeCaptioner) Caption(context.Context, string) (string, error) { return f.caption, f.err }

type fakeClassifier struct {
	scores []domain.MoodScore
	err    error
}

func (f fakeClassifier) Moods(_ context.Context, _ string, topK int) (string, []domain.MoodScore, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	s := f.scores
	if len(s) > topK {
		s = s[:topK]
	}
	if len(s) == 0 {
		return "", nil, nil
	}
	return s[0].Label, s, nil
}

// fakeSynth returns one error per call from errs, then succeeds with
// rate*duration silent samples.
type fakeSynth struct {
	mu    sync.Mutex
	rate  int
	errs  []error
	calls []domain.GenerationRequest
}

func (f *fakeSynth) Synthesize(_ context.Context, req domain.GenerationRequest) (domain.Audio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return domain.Audio{}, err
		}
	}
	rate := f.rate
	if rate == 0 {
		rate = 100
	}
	samples := make([]float32, rate*req.DurationSeconds)
	for i := range samples {
		samples[i] = 0.25
	}
	return domain.Audio{Samples: samples, SampleRate: rate}, nil
}

var errBoom = errors.New("boom")

func writeImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nfake"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
