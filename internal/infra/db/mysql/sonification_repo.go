package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
)

type SonificationRepository struct {
	db *sql.DB
}

func NewSonificationRepository(db *sql.DB) *SonificationRepository {
	return &SonificationRepository{db: db}
}

const selectColumns = `
SELECT id, tenant_id, created_at, updated_at, status, image_name, image_url,
       caption, primary_mood, mood_scores, prompt,
       requested_duration, effective_duration, duration_seconds, sample_rate, retried,
       audio_key, audio_url, error_message, processing_ms
FROM sonifications `

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var scores []byte
	if err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.CreatedAt, &rec.UpdatedAt, &rec.Status, &rec.ImageName, &rec.ImageURL,
		&rec.Caption, &rec.PrimaryMood, &scores, &rec.Prompt,
		&rec.RequestedDuration, &rec.EffectiveDuration, &rec.DurationSeconds, &rec.SampleRate, &rec.Retried,
		&rec.AudioKey, &rec.AudioURL, &rec.Error, &rec.ProcessingMS,
	); err != nil {
		return nil, err
	}
	rec.MoodScores = decodeScores(scores)
	return &rec, nil
}

// Save insert/update sonification record
func (r *SonificationRepository) Save(ctx context.Context, s *domain.Record) error {
	const q = `
INSERT INTO sonifications
(id, tenant_id, created_at, updated_at, status, image_name, image_url,
 caption, primary_mood, mood_scores, prompt,
 requested_duration, effective_duration, duration_seconds, sample_rate, retried,
 audio_key, audio_url, error_message, processing_ms)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 updated_at=VALUES(updated_at), status=VALUES(status), image_url=VALUES(image_url),
 caption=VALUES(caption), primary_mood=VALUES(primary_mood), mood_scores=VALUES(mood_scores),
 prompt=VALUES(prompt), effective_duration=VALUES(effective_duration),
 duration_seconds=VALUES(duration_seconds), sample_rate=VALUES(sample_rate), retried=VALUES(retried),
 audio_key=VALUES(audio_key), audio_url=VALUES(audio_url),
 error_message=VALUES(error_message), processing_ms=VALUES(processing_ms);
`
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	_, err := r.db.ExecContext(ctx, q,
		s.ID, stringOrDash(s.TenantID), created, updated, stringOrDash(string(s.Status)), s.ImageName, s.ImageURL,
		s.Caption, s.PrimaryMood, encodeScores(s.MoodScores), s.Prompt,
		s.RequestedDuration, s.EffectiveDuration, s.DurationSeconds, s.SampleRate, s.Retried,
		s.AudioKey, s.AudioURL, s.Error, s.ProcessingMS,
	)
	return err
}

// Get by ID + Tenant
func (r *SonificationRepository) Get(ctx context.Context, tenant string, id domain.ID) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+"WHERE tenant_id=? AND id=? LIMIT 1", tenant, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sonification %s: %w", id, domain.ErrNotFound)
	}
	return rec, err
}

// Latest sonifications per tenant
func (r *SonificationRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+"WHERE tenant_id=? ORDER BY created_at DESC, id DESC LIMIT ?", tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Paginate with offset + limit (classic pagination)
func (r *SonificationRepository) Paginate(ctx context.Context, tenant string, page, pageSize int, filters map[string]string) (*domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	where, args := filterClause(tenant, filters)
	rows, err := r.db.QueryContext(ctx,
		selectColumns+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, pageSize, offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sonifications: %w", err)
	}
	defer rows.Close()

	var data []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		data = append(data, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	// Get total count for pagination
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sonifications "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("getting total count: %w", err)
	}
	return domain.NewPaginatedResult(data, page, pageSize, total), nil
}

// Summary counts sonification results since N days
func (r *SonificationRepository) Summary(ctx context.Context, tenant string, sinceDays int) (*domain.Summary, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)

	const q = `
SELECT COUNT(*),
       COALESCE(SUM(status='success'),0),
       COALESCE(SUM(status='failed'),0),
       COALESCE(AVG(CASE WHEN status='success' THEN duration_seconds END),0)
FROM sonifications
WHERE tenant_id=? AND created_at >= ?;
`
	sum := &domain.Summary{Moods: map[string]int{}}
	if err := r.db.QueryRowContext(ctx, q, tenant, cut).Scan(&sum.Total, &sum.Success, &sum.Failed, &sum.AverageDuration); err != nil {
		return nil, err
	}

	const moods = `
SELECT primary_mood, COUNT(*)
FROM sonifications
WHERE tenant_id=? AND created_at >= ? AND status='success' AND primary_mood <> ''
GROUP BY primary_mood;
`
	rows, err := r.db.QueryContext(ctx, moods, tenant, cut)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var mood string
		var n int
		if err := rows.Scan(&mood, &n); err != nil {
			return nil, err
		}
		sum.Moods[mood] = n
	}
	return sum, rows.Err()
}
