package sonify

import (
	"context"
	"io"
)

// Captioner describes the visible content of an image.
type Captioner interface {
	Caption(ctx context.Context, imagePath string) (string, error)
}

// MoodClassifier ranks the moods of an image. scores is sorted by descending
// confidence and holds at most topK entries.
type MoodClassifier interface {
	Moods(ctx context.Context, imagePath string, topK int) (primary string, scores []MoodScore, err error)
}

// Synthesizer turns a prompt into audio. Capacity failures must wrap ErrResourceExhausted.
type Synthesizer interface {
	Synthesize(ctx context.Context, req GenerationRequest) (Audio, error)
}

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, r *Record) error
	Get(ctx context.Context, tenant string, id ID) (*Record, error)
	Latest(ctx context.Context, tenant string, limit int) ([]*Record, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int, filters map[string]string) (*PaginatedResult, error)
	Summary(ctx context.Context, tenant string, sinceDays int) (*Summary, error)
}

// ArtifactStore port (interface untuk penyimpanan artefak)
type ArtifactStore interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
	UploadAndCleanup(ctx context.Context, localPath, key string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
}
