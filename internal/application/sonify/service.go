package sonify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/bryanwahyu/sonifier/internal/application"
	"github.com/bryanwahyu/sonifier/internal/domain/failures"
	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
	"github.com/bryanwahyu/sonifier/internal/infra/audio"
)

// Processor runs the sonification pipeline for one image.
type Processor interface {
	Process(ctx context.Context, imagePath string, requestedDuration int) (*domain.Result, error)
}

// Service implements use-cases untuk Sonification.
// Service is safe for concurrent use; pipeline runs are gated by a semaphore.
type Service struct {
	Pipeline   Processor
	Repo       domain.Repository
	FailureLog failures.Repository
	Artifacts  domain.ArtifactStore
	Clock      application.Clock
	Logger     *slog.Logger

	DefaultDuration int
	TempDir         string

	gate *semaphore.Weighted
	wg   sync.WaitGroup
}

// NewService wires a service that runs at most maxConcurrent pipelines at once.
func NewService(p Processor, repo domain.Repository, fails failures.Repository, store domain.ArtifactStore, maxConcurrent int) *Service {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Service{
		Pipeline:        p,
		Repo:            repo,
		FailureLog:      fails,
		Artifacts:       store,
		Clock:           application.SystemClock{},
		Logger:          slog.Default(),
		DefaultDuration: 10,
		TempDir:         filepath.Join(".", "temp"),
		gate:            semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

//
// ==== USE CASES ====
//

// SonifyCommand untuk trigger sonification
type SonifyCommand struct {
	TenantID  string
	ImageName string
	Image     io.Reader
	Duration  *int // nil uses the default; other values are clamped by the pipeline
}

// Sonify stages the upload, runs the pipeline and stores the result.
// The returned record reflects the final status even when err != nil.
func (s *Service) Sonify(ctx context.Context, cmd SonifyCommand) (*domain.Record, error) {
	rec, imgPath, err := s.prepare(ctx, cmd, domain.StatusRunning)
	if err != nil {
		return rec, err
	}
	defer os.Remove(imgPath)
	return s.run(ctx, rec, imgPath)
}

// SonifyAsync stages the upload, saves a queued record and finishes the work
// in the background. Use Wait to drain pending jobs.
func (s *Service) SonifyAsync(ctx context.Context, cmd SonifyCommand) (*domain.Record, error) {
	rec, imgPath, err := s.prepare(ctx, cmd, domain.StatusQueued)
	if err != nil {
		return rec, err
	}
	queued := *rec

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer os.Remove(imgPath)
		// jalan di background, gak ikut context request
		bg := context.WithoutCancel(ctx)
		if _, err := s.run(bg, rec, imgPath); err != nil {
			s.logger().Error("background sonification failed", "tenant", rec.TenantID, "id", rec.ID, "err", err)
		}
	}()
	return &queued, nil
}

// Wait blocks until all background jobs finished.
func (s *Service) Wait() { s.wg.Wait() }

// prepare validates the command, stages the image on disk, uploads it and
// saves the initial record.
func (s *Service) prepare(ctx context.Context, cmd SonifyCommand, status domain.Status) (*domain.Record, string, error) {
	if strings.TrimSpace(cmd.TenantID) == "" {
		return nil, "", fmt.Errorf("%w: tenant is required", domain.ErrInvalidInput)
	}
	if cmd.Image == nil {
		return nil, "", fmt.Errorf("%w: image is required", domain.ErrInvalidInput)
	}
	ext, err := imageExt(cmd.ImageName)
	if err != nil {
		return nil, "", err
	}
	duration := s.DefaultDuration
	if cmd.Duration != nil {
		duration = *cmd.Duration
	}

	now := s.Clock.Now()
	rec := &domain.Record{
		ID:                domain.ID(uuid.New().String()),
		TenantID:          cmd.TenantID,
		CreatedAt:         now,
		UpdatedAt:         now,
		Status:            status,
		ImageName:         filepath.Base(cmd.ImageName),
		RequestedDuration: duration,
	}

	imgPath, err := s.stage(cmd.Image, string(rec.ID)+ext)
	if err != nil {
		return rec, "", s.fail(ctx, rec, failures.PhaseValidate, err)
	}

	// Create an initial row so we always have an ID to reference
	if err := s.Repo.Save(ctx, rec); err != nil {
		os.Remove(imgPath)
		return rec, "", fmt.Errorf("save record: %w", err)
	}

	if s.Artifacts != nil {
		key := fmt.Sprintf("%s/images/%s%s", rec.TenantID, rec.ID, ext)
		url, err := s.Artifacts.Upload(ctx, imgPath, key)
		if err != nil {
			os.Remove(imgPath)
			return rec, "", s.fail(ctx, rec, failures.PhaseUpload, err)
		}
		rec.ImageURL = url
	}
	return rec, imgPath, nil
}

// run executes the pipeline under the gate and persists the outcome.
func (s *Service) run(ctx context.Context, rec *domain.Record, imgPath string) (*domain.Record, error) {
	start := s.Clock.Now()

	if err := s.gate.Acquire(ctx, 1); err != nil {
		return rec, s.fail(ctx, rec, failures.PhaseSynthesize, err)
	}
	rec.Status = domain.StatusRunning
	rec.UpdatedAt = s.Clock.Now()
	if err := s.Repo.Save(ctx, rec); err != nil {
		s.logger().Warn("failed to mark running", "id", rec.ID, "err", err)
	}
	res, err := s.Pipeline.Process(ctx, imgPath, rec.RequestedDuration)
	s.gate.Release(1)
	if err != nil {
		return rec, s.fail(ctx, rec, failures.PhaseSynthesize, err)
	}
	rec.Apply(res)

	// tulis WAV (peak normalised) lalu upload
	wavPath := filepath.Join(s.TempDir, string(rec.ID)+".wav")
	if err := audio.WriteFile(wavPath, res.Waveform, res.SampleRate); err != nil {
		os.Remove(wavPath)
		return rec, s.fail(ctx, rec, failures.PhaseUpload, err)
	}
	if s.Artifacts != nil {
		key := fmt.Sprintf("%s/audio/%s.wav", rec.TenantID, rec.ID)
		url, err := s.Artifacts.UploadAndCleanup(ctx, wavPath, key)
		if err != nil {
			// Clean up the temporary file even if upload fails
			os.Remove(wavPath)
			return rec, s.fail(ctx, rec, failures.PhaseUpload, err)
		}
		rec.AudioKey = key
		rec.AudioURL = url
	} else {
		rec.AudioKey = wavPath
	}

	rec.Status = domain.StatusSuccess
	rec.UpdatedAt = s.Clock.Now()
	rec.ProcessingMS = rec.UpdatedAt.Sub(start).Milliseconds()
	if err := s.Repo.Save(ctx, rec); err != nil {
		return rec, s.fail(ctx, rec, failures.PhasePersist, err)
	}
	return rec, nil
}

// fail marks the record failed and writes an entry to the failure log.
// It returns cause unchanged.
func (s *Service) fail(ctx context.Context, rec *domain.Record, phase failures.Phase, cause error) error {
	rec.Status = domain.StatusFailed
	rec.Error = cause.Error()
	rec.UpdatedAt = s.Clock.Now()

	// persist with a context that survives request cancellation
	pctx := context.WithoutCancel(ctx)
	if phase != failures.PhasePersist {
		if err := s.Repo.Save(pctx, rec); err != nil {
			s.logger().Warn("failed to persist failed record", "id", rec.ID, "err", err)
		}
	}
	if s.FailureLog != nil {
		f := &failures.Failure{
			TenantID:       rec.TenantID,
			SonificationID: string(rec.ID),
			Phase:          phase,
			Message:        cause.Error(),
			DetailsJSON:    fmt.Sprintf(`{"requested_duration":%d,"resource_exhausted":%t}`, rec.RequestedDuration, errors.Is(cause, domain.ErrResourceExhausted)),
			CreatedAt:      rec.UpdatedAt,
		}
		if err := s.FailureLog.Save(pctx, f); err != nil {
			s.logger().Warn("failed to write failure log", "id", rec.ID, "err", err)
		}
	}
	s.logger().Error("sonification failed", "tenant", rec.TenantID, "id", rec.ID, "phase", phase, "err", cause)
	return cause
}

func (s *Service) stage(r io.Reader, name string) (string, error) {
	if err := os.MkdirAll(s.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	path := filepath.Join(s.TempDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("stage image: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("stage image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("stage image: %w", err)
	}
	return path, nil
}

// Get ambil 1 sonification by id
func (s *Service) Get(ctx context.Context, tenant string, id domain.ID) (*domain.Record, error) {
	rec, err := s.Repo.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("sonification %s: %w", id, domain.ErrNotFound)
	}
	return rec, nil
}

// Latest ambil N sonification terakhir
func (s *Service) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Record, error) {
	return s.Repo.Latest(ctx, tenant, limit)
}

// List returns one page of records, optionally filtered by status, mood or caption.
func (s *Service) List(ctx context.Context, tenant string, page, pageSize int, filters map[string]string) (*domain.PaginatedResult, error) {
	return s.Repo.Paginate(ctx, tenant, page, pageSize, filters)
}

// Summary rekap hasil sonification N hari terakhir
func (s *Service) Summary(ctx context.Context, tenant string, sinceDays int) (*domain.Summary, error) {
	return s.Repo.Summary(ctx, tenant, sinceDays)
}

// Failures lists the failure log of one sonification, newest first.
func (s *Service) Failures(ctx context.Context, tenant string, id domain.ID, limit int) ([]*failures.Failure, error) {
	if _, err := s.Get(ctx, tenant, id); err != nil {
		return nil, err
	}
	if s.FailureLog == nil {
		return []*failures.Failure{}, nil
	}
	return s.FailureLog.ListBySonification(ctx, tenant, string(id), limit)
}

// OpenAudio streams the generated WAV of a finished sonification.
func (s *Service) OpenAudio(ctx context.Context, tenant string, id domain.ID) (io.ReadCloser, int64, error) {
	rec, err := s.Get(ctx, tenant, id)
	if err != nil {
		return nil, 0, err
	}
	if rec.Status != domain.StatusSuccess || rec.AudioKey == "" {
		return nil, 0, fmt.Errorf("audio for %s (status %s): %w", id, rec.Status, domain.ErrNotFound)
	}
	if s.Artifacts == nil {
		f, err := os.Open(rec.AudioKey)
		if err != nil {
			return nil, 0, fmt.Errorf("audio for %s: %w", id, domain.ErrNotFound)
		}
		st, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, 0, err
		}
		return f, st.Size(), nil
	}
	return s.Artifacts.Open(ctx, rec.AudioKey)
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// imageExt accepts JPEG and PNG file names only.
func imageExt(name string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".jpg", ".jpeg":
		return ".jpg", nil
	case ".png":
		return ".png", nil
	default:
		return "", fmt.Errorf("%w: %q must be a JPEG or PNG image", domain.ErrUnsupportedMedia, name)
	}
}
