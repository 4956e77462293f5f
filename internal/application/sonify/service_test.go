package sonify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bryanwahyu/sonifier/internal/application"
	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
	"github.com/bryanwahyu/sonifier/internal/infra/audio"
	"github.com/bryanwahyu/sonifier/internal/infra/db/memory"
	"github.com/bryanwahyu/sonifier/internal/infra/storage"
	"github.com/bryanwahyu/sonifier/internal/logging"
)

type serviceFixture struct {
	svc      *Service
	synth    *fakeSynth
	repo     *memory.SonificationRepo
	failures *memory.FailureRepo
	tempDir  string
}

func newServiceFixture(t *testing.T, synth *fakeSynth) *serviceFixture {
	t.Helper()
	store, err := storage.NewLocal(filepath.Join(t.TempDir(), "store"), "/files")
	if err != nil {
		t.Fatal(err)
	}
	o := newOrchestrator(
		fakeCaptioner{caption: "a quiet forest"},
		fakeClassifier{scores: []domain.MoodScore{{Label: "calm", Confidence: 0.8}, {Label: "dreamy", Confidence: 0.2}}},
		synth,
	)
	repo := memory.NewSonificationRepo()
	fails := memory.NewFailureRepo()
	svc := NewService(o, repo, fails, store, 1)
	svc.Logger = logging.Discard()
	svc.Clock = application.FixedClock{T: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svc.TempDir = t.TempDir()
	return &serviceFixture{svc: svc, synth: synth, repo: repo, failures: fails, tempDir: svc.TempDir}
}

func secs(n int) *int { return &n }

func pngReader() io.Reader { return bytes.NewReader([]byte("\x89PNG\r\n\x1a\nfake")) }

func (f *serviceFixture) assertTempEmpty(t *testing.T) {
	t.Helper()
	entries, _ := os.ReadDir(f.tempDir)
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("temp dir not cleaned: %v", names)
	}
}

// --- Sonify ---

func TestSonify(t *testing.T) {
	f := newServiceFixture(t, &fakeSynth{})
	ctx := context.Background()

	rec, err := f.svc.Sonify(ctx, SonifyCommand{TenantID: "t1", ImageName: "photo.PNG", Image: pngReader(), Duration: secs(4)})
	if err != nil {
		t.Fatalf("Sonify: %v", err)
	}
	if rec.Status != domain.StatusSuccess {
		t.Errorf("Status = %q, want success", rec.Status)
	}
	if rec.Caption != "a quiet forest" || rec.PrimaryMood != "calm" {
		t.Errorf("analysis = %q/%q", rec.Caption, rec.PrimaryMood)
	}
	if !strings.HasPrefix(rec.Prompt, "A calm piece of music for a quiet forest") {
		t.Errorf("Prompt = %q", rec.Prompt)
	}
	if rec.AudioKey != "t1/audio/"+string(rec.ID)+".wav" {
		t.Errorf("AudioKey = %q", rec.AudioKey)
	}
	if !strings.HasSuffix(rec.ImageURL, ".png") {
		t.Errorf("ImageURL = %q", rec.ImageURL)
	}

	stored, err := f.svc.Get(ctx, "t1", rec.ID)
	if err != nil || stored.Status != domain.StatusSuccess {
		t.Fatalf("Get = %+v, %v", stored, err)
	}

	rc, size, err := f.svc.OpenAudio(ctx, "t1", rec.ID)
	if err != nil {
		t.Fatalf("OpenAudio: %v", err)
	}
	defer rc.Close()
	samples, rate, err := audio.DecodeWAV(rc)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if rate != 100 || len(samples) != 400 || size <= 44 {
		t.Errorf("audio = %d samples @ %d (%d bytes)", len(samples), rate, size)
	}
	// the stored WAV is peak normalised
	if samples[0] < 0.99 {
		t.Errorf("first sample = %v, want normalised to ~1", samples[0])
	}
	f.assertTempEmpty(t)
}

func TestSonifyZeroDurationIsClamped(t *testing.T) {
	f := newServiceFixture(t, &fakeSynth{})
	f.svc.DefaultDuration = 7
	rec, err := f.svc.Sonify(context.Background(), SonifyCommand{TenantID: "t1", ImageName: "a.png", Image: pngReader(), Duration: secs(0)})
	if err != nil {
		t.Fatal(err)
	}
	if rec.RequestedDuration != 0 {
		t.Errorf("RequestedDuration = %d, want 0", rec.RequestedDuration)
	}
	if rec.EffectiveDuration != 1 || f.synth.calls[0].DurationSeconds != 1 {
		t.Errorf("effective = %d / synth %d, want 1", rec.EffectiveDuration, f.synth.calls[0].DurationSeconds)
	}
}

func TestSonifyDefaultsDuration(t *testing.T) {
	f := newServiceFixture(t, &fakeSynth{})
	f.svc.DefaultDuration = 7
	rec, err := f.svc.Sonify(context.Background(), SonifyCommand{TenantID: "t1", ImageName: "a.jpg", Image: pngReader()})
	if err != nil {
		t.Fatal(err)
	}
	if rec.RequestedDuration != 7 || f.synth.calls[0].DurationSeconds != 7 {
		t.Errorf("duration = %d / %d, want 7", rec.RequestedDuration, f.synth.calls[0].DurationSeconds)
	}
}

func TestSonifyRejectsInput(t *testing.T) {
	f := newServiceFixture(t, &fakeSynth{})
	ctx := context.Background()

	if _, err := f.svc.Sonify(ctx, SonifyCommand{TenantID: "t1", ImageName: "a.gif", Image: pngReader()}); !errors.Is(err, domain.ErrUnsupportedMedia) {
		t.Errorf("gif err = %v, want ErrUnsupportedMedia", err)
	}
	if _, err := f.svc.Sonify(ctx, SonifyCommand{TenantID: "t1", ImageName: "a.png"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("nil image err = %v, want ErrInvalidInput", err)
	}
	if _, err := f.svc.Sonify(ctx, SonifyCommand{ImageName: "a.png", Image: pngReader()}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("no tenant err = %v, want ErrInvalidInput", err)
	}
	if len(f.synth.calls) != 0 {
		t.Errorf("synthesizer ran for rejected input")
	}
}

func TestSonifyFailureIsRecorded(t *testing.T) {
	f := newServiceFixture(t, &fakeSynth{errs: []error{domain.ErrResourceExhausted, domain.ErrResourceExhausted}})
	ctx := context.Background()

	rec, err := f.svc.Sonify(ctx, SonifyCommand{TenantID: "t1", ImageName: "a.png", Image: pngReader(), Duration: secs(10)})
	if !errors.Is(err, domain.ErrResourceExhausted) {
		t.Fatalf("err = %v, want ErrResourceExhausted", err)
	}
	if rec == nil || rec.Status != domain.StatusFailed || rec.Error == "" {
		t.Fatalf("record = %+v, want failed with error", rec)
	}

	stored, _ := f.svc.Get(ctx, "t1", rec.ID)
	if stored.Status != domain.StatusFailed {
		t.Errorf("stored Status = %q, want failed", stored.Status)
	}

	fails, err := f.svc.Failures(ctx, "t1", rec.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(fails) != 1 || fails[0].Phase != "synthesize" {
		t.Fatalf("failures = %+v", fails)
	}
	if !strings.Contains(fails[0].DetailsJSON, `"resource_exhausted":true`) {
		t.Errorf("DetailsJSON = %s", fails[0].DetailsJSON)
	}

	if _, _, err := f.svc.OpenAudio(ctx, "t1", rec.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("OpenAudio on failed record err = %v, want ErrNotFound", err)
	}
	f.assertTempEmpty(t)
}

func TestSonifyAsync(t *testing.T) {
	f := newServiceFixture(t, &fakeSynth{})
	ctx, cancel := context.WithCancel(context.Background())

	queued, err := f.svc.SonifyAsync(ctx, SonifyCommand{TenantID: "t1", ImageName: "a.png", Image: pngReader(), Duration: secs(2)})
	if err != nil {
		t.Fatalf("SonifyAsync: %v", err)
	}
	// request context ends right away; the job must still complete
	cancel()
	if queued.Status != domain.StatusQueued {
		t.Errorf("returned Status = %q, want queued", queued.Status)
	}
	f.svc.Wait()

	rec, err := f.svc.Get(context.Background(), "t1", queued.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != domain.StatusSuccess {
		t.Errorf("final Status = %q (%s), want success", rec.Status, rec.Error)
	}
	f.assertTempEmpty(t)
}

// --- Queries ---

func TestQueries(t *testing.T) {
	f := newServiceFixture(t, &fakeSynth{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := f.svc.Sonify(ctx, SonifyCommand{TenantID: "t1", ImageName: "a.png", Image: pngReader(), Duration: secs(2)}); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := f.svc.Latest(ctx, "t1", 2)
	if err != nil || len(latest) != 2 {
		t.Errorf("Latest = %d, %v, want 2", len(latest), err)
	}
	page, err := f.svc.List(ctx, "t1", 1, 2, map[string]string{"mood": "calm"})
	if err != nil || page.Total != 3 || page.TotalPages != 2 {
		t.Errorf("List = %+v, %v", page, err)
	}
	sum, err := f.svc.Summary(ctx, "t1", 36500)
	if err != nil || sum.Success != 3 || sum.Moods["calm"] != 3 {
		t.Errorf("Summary = %+v, %v", sum, err)
	}

	if _, err := f.svc.Get(ctx, "t1", "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get missing err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Failures(ctx, "t1", "nope", 10); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Failures missing err = %v, want ErrNotFound", err)
	}
}
