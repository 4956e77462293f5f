// Package memory holds repositories used when no database is configured.
// Data lives for the lifetime of the process.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bryanwahyu/sonifier/internal/domain/failures"
	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
)

type SonificationRepo struct {
	mu      sync.RWMutex
	records map[string]*domain.Record // tenant/id -> record
	now     func() time.Time
}

func NewSonificationRepo() *SonificationRepo {
	return &SonificationRepo{records: map[string]*domain.Record{}, now: time.Now}
}

func key(tenant string, id domain.ID) string { return tenant + "/" + string(id) }

// Save upserts a copy of r.
func (r *SonificationRepo) Save(_ context.Context, rec *domain.Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("%w: record without id", domain.ErrInvalidInput)
	}
	cp := *rec
	cp.MoodScores = append([]domain.MoodScore(nil), rec.MoodScores...)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = r.now()
	}
	r.mu.Lock()
	if old, ok := r.records[key(cp.TenantID, cp.ID)]; ok {
		cp.CreatedAt = old.CreatedAt
	}
	r.records[key(cp.TenantID, cp.ID)] = &cp
	r.mu.Unlock()
	return nil
}

func (r *SonificationRepo) Get(_ context.Context, tenant string, id domain.ID) (*domain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[key(tenant, id)]
	if !ok {
		return nil, fmt.Errorf("sonification %s: %w", id, domain.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (r *SonificationRepo) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Record, error) {
	if limit <= 0 {
		limit = 10
	}
	all := r.list(tenant, nil)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *SonificationRepo) Paginate(_ context.Context, tenant string, page, pageSize int, filters map[string]string) (*domain.PaginatedResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	all := r.list(tenant, filters)
	total := int64(len(all))
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return domain.NewPaginatedResult(all[start:end], page, pageSize, total), nil
}

func (r *SonificationRepo) Summary(_ context.Context, tenant string, sinceDays int) (*domain.Summary, error) {
	since := r.now().AddDate(0, 0, -sinceDays)
	sum := &domain.Summary{Moods: map[string]int{}}
	var durations float64
	for _, rec := range r.list(tenant, nil) {
		if rec.CreatedAt.Before(since) {
			continue
		}
		sum.Total++
		switch rec.Status {
		case domain.StatusSuccess:
			sum.Success++
			durations += rec.DurationSeconds
			if rec.PrimaryMood != "" {
				sum.Moods[rec.PrimaryMood]++
			}
		case domain.StatusFailed:
			sum.Failed++
		}
	}
	if sum.Success > 0 {
		sum.AverageDuration = durations / float64(sum.Success)
	}
	return sum, nil
}

// list returns copies of the tenant's records, newest first.
func (r *SonificationRepo) list(tenant string, filters map[string]string) []*domain.Record {
	r.mu.RLock()
	out := make([]*domain.Record, 0, len(r.records))
	for _, rec := range r.records {
		if rec.TenantID != tenant || !matches(rec, filters) {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func matches(rec *domain.Record, filters map[string]string) bool {
	if v := filters["status"]; v != "" && string(rec.Status) != v {
		return false
	}
	if v := filters["mood"]; v != "" && !strings.EqualFold(rec.PrimaryMood, v) {
		return false
	}
	if v := filters["caption"]; v != "" && !strings.Contains(strings.ToLower(rec.Caption), strings.ToLower(v)) {
		return false
	}
	return true
}

type FailureRepo struct {
	mu     sync.Mutex
	nextID int64
	items  []*failures.Failure
}

func NewFailureRepo() *FailureRepo { return &FailureRepo{} }

func (r *FailureRepo) Save(_ context.Context, f *failures.Failure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cp := *f
	cp.ID = r.nextID
	cp.DetailsJSON = failures.NormalizeDetails(cp.DetailsJSON)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	f.ID = cp.ID
	r.items = append(r.items, &cp)
	return nil
}

func (r *FailureRepo) ListBySonification(_ context.Context, tenant, sonificationID string, limit int) ([]*failures.Failure, error) {
	if limit <= 0 {
		limit = 50
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*failures.Failure{}
	for i := len(r.items) - 1; i >= 0 && len(out) < limit; i-- {
		f := r.items[i]
		if f.TenantID == tenant && f.SonificationID == sonificationID {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}
