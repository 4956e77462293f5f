// Package bootstrap builds the adapters shared by the API server and the CLI
// from a loaded config.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	appsonify "github.com/bryanwahyu/sonifier/internal/application/sonify"
	"github.com/bryanwahyu/sonifier/internal/config"
	"github.com/bryanwahyu/sonifier/internal/device"
	"github.com/bryanwahyu/sonifier/internal/domain/failures"
	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
	"github.com/bryanwahyu/sonifier/internal/infra/ai/openai"
	"github.com/bryanwahyu/sonifier/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/sonifier/internal/infra/db/mysql"
	"github.com/bryanwahyu/sonifier/internal/infra/db/postgres"
	musicgenrunner "github.com/bryanwahyu/sonifier/internal/infra/executor/musicgen"
	"github.com/bryanwahyu/sonifier/internal/infra/storage"
	musicgenhttp "github.com/bryanwahyu/sonifier/internal/infra/synth/musicgen"
)

// Synthesizer picks the MusicGen backend named by audio.backend.
func Synthesizer(cfg *config.Config, logger *slog.Logger) domain.Synthesizer {
	switch cfg.Audio.Backend {
	case "cli":
		dev := device.Select(cfg.Models.Device)
		logger.Info("using musicgen cli backend", "bin", cfg.Audio.MusicgenBin, "device", dev)
		return musicgenrunner.NewRunner(cfg.Audio.MusicgenBin, dev)
	default:
		logger.Info("using musicgen http backend", "url", cfg.Audio.ServiceURL)
		return musicgenhttp.NewClient(cfg.Audio.ServiceURL, cfg.Audio.ServiceAPIKey)
	}
}

// Orchestrator wires caption, mood and synthesis into a pipeline.
func Orchestrator(cfg *config.Config, synth domain.Synthesizer, logger *slog.Logger) *appsonify.Orchestrator {
	vision := openai.NewClient(
		cfg.Models.OpenAIAPIKey,
		cfg.Models.OpenAIBaseURL,
		cfg.Models.CaptionModel,
		cfg.Models.MoodModel,
		cfg.Models.MoodTags,
	)
	return &appsonify.Orchestrator{
		Captioner:      vision,
		Classifier:     vision,
		Synthesizer:    synth,
		Composer:       domain.NewComposer(),
		Logger:         logger,
		TopK:           cfg.Models.TopK,
		MaxDuration:    cfg.Audio.MaxDuration,
		CaptionTimeout: cfg.CaptionTimeout(),
		MoodTimeout:    cfg.MoodTimeout(),
		SynthTimeout:   cfg.SynthTimeout(),
	}
}

// Repositories holds the persistence adapters. DB is nil for the memory driver.
type Repositories struct {
	Sonifications domain.Repository
	Failures      failures.Repository
	DB            *sql.DB
}

// Close releases the database connection, if any.
func (r *Repositories) Close() error {
	if r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// OpenRepositories connects to the configured database and migrates it when
// database.migrate is set.
func OpenRepositories(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Repositories, error) {
	var (
		db      *sql.DB
		err     error
		migrate func(context.Context, *sql.DB) error
		repos   = &Repositories{}
	)
	switch cfg.Database.Driver {
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		repos.Sonifications = mysqlp.NewSonificationRepository(db)
		repos.Failures = mysqlp.NewFailureRepository(db)
		migrate = mysqlp.Migrate
	case "postgres":
		db, err = postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		repos.Sonifications = postgres.NewSonificationRepository(db)
		repos.Failures = postgres.NewFailureRepository(db)
		migrate = postgres.Migrate
	default:
		logger.Warn("database driver none: records are kept in memory only")
		repos.Sonifications = memory.NewSonificationRepo()
		repos.Failures = memory.NewFailureRepo()
		return repos, nil
	}
	repos.DB = db

	if cfg.Database.Migrate {
		if err := migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("database migrated", "driver", cfg.Database.Driver)
	}
	return repos, nil
}

// ArtifactStore returns MinIO when an endpoint is configured, else a local directory.
func ArtifactStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.ArtifactStore, error) {
	if cfg.Minio.Endpoint == "" {
		local, err := storage.NewLocal(cfg.Storage.LocalDir, "/files")
		if err != nil {
			return nil, err
		}
		logger.Info("using local artifact store", "dir", cfg.Storage.LocalDir)
		return local, nil
	}
	store, err := storage.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		return nil, fmt.Errorf("minio init: %w", err)
	}
	logger.Info("using minio artifact store", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.BucketName)
	return store, nil
}
