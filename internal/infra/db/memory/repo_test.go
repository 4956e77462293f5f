package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bryanwahyu/sonifier/internal/domain/failures"
	domain "github.com/bryanwahyu/sonifier/internal/domain/sonify"
)

func seed(t *testing.T, r *SonificationRepo, base time.Time) {
	t.Helper()
	recs := []*domain.Record{
		{ID: "a", TenantID: "t1", CreatedAt: base.Add(-3 * time.Hour), Status: domain.StatusSuccess, PrimaryMood: "calm", Caption: "a misty forest", DurationSeconds: 10},
		{ID: "b", TenantID: "t1", CreatedAt: base.Add(-2 * time.Hour), Status: domain.StatusFailed, Error: "boom"},
		{ID: "c", TenantID: "t1", CreatedAt: base.Add(-1 * time.Hour), Status: domain.StatusSuccess, PrimaryMood: "calm", Caption: "A city street", DurationSeconds: 20},
		{ID: "d", TenantID: "t1", CreatedAt: base.AddDate(0, 0, -10), Status: domain.StatusSuccess, PrimaryMood: "dark", DurationSeconds: 5},
		{ID: "x", TenantID: "t2", CreatedAt: base, Status: domain.StatusSuccess, PrimaryMood: "happy"},
	}
	for _, rec := range recs {
		if err := r.Save(context.Background(), rec); err != nil {
			t.Fatal(err)
		}
	}
}

func TestGetAndUpsert(t *testing.T) {
	r := NewSonificationRepo()
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = r.Save(ctx, &domain.Record{ID: "a", TenantID: "t1", CreatedAt: created, Status: domain.StatusQueued})
	_ = r.Save(ctx, &domain.Record{ID: "a", TenantID: "t1", CreatedAt: created.Add(time.Hour), Status: domain.StatusSuccess})

	got, err := r.Get(ctx, "t1", "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusSuccess {
		t.Errorf("Status = %q, want success", got.Status)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want original %v", got.CreatedAt, created)
	}

	if _, err := r.Get(ctx, "t2", "a"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get other tenant err = %v, want ErrNotFound", err)
	}
}

func TestLatestAndPaginate(t *testing.T) {
	r := NewSonificationRepo()
	seed(t, r, time.Now())
	ctx := context.Background()

	latest, _ := r.Latest(ctx, "t1", 2)
	if len(latest) != 2 || latest[0].ID != "c" || latest[1].ID != "b" {
		t.Errorf("Latest = %v, want [c b]", ids(latest))
	}

	page, _ := r.Paginate(ctx, "t1", 2, 3, nil)
	if page.Total != 4 || page.TotalPages != 2 || len(page.Data) != 1 || page.Data[0].ID != "d" {
		t.Errorf("Paginate page 2 = total %d pages %d data %v", page.Total, page.TotalPages, ids(page.Data))
	}

	calm, _ := r.Paginate(ctx, "t1", 1, 10, map[string]string{"mood": "CALM"})
	if calm.Total != 2 {
		t.Errorf("mood filter total = %d, want 2", calm.Total)
	}
	city, _ := r.Paginate(ctx, "t1", 1, 10, map[string]string{"caption": "city"})
	if city.Total != 1 || city.Data[0].ID != "c" {
		t.Errorf("caption filter = %v, want [c]", ids(city.Data))
	}
	failed, _ := r.Paginate(ctx, "t1", 1, 10, map[string]string{"status": "failed"})
	if failed.Total != 1 {
		t.Errorf("status filter total = %d, want 1", failed.Total)
	}

	empty, _ := r.Paginate(ctx, "t1", 9, 10, nil)
	if empty.Data == nil || len(empty.Data) != 0 {
		t.Errorf("out of range page data = %v, want empty slice", empty.Data)
	}
}

func TestSummary(t *testing.T) {
	r := NewSonificationRepo()
	seed(t, r, time.Now())

	sum, err := r.Summary(context.Background(), "t1", 7)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total != 3 || sum.Success != 2 || sum.Failed != 1 {
		t.Errorf("Summary = %+v, want total 3 success 2 failed 1", sum)
	}
	if sum.AverageDuration != 15 {
		t.Errorf("AverageDuration = %v, want 15", sum.AverageDuration)
	}
	if sum.Moods["calm"] != 2 || len(sum.Moods) != 1 {
		t.Errorf("Moods = %v, want calm:2", sum.Moods)
	}
}

func TestFailureRepo(t *testing.T) {
	r := NewFailureRepo()
	ctx := context.Background()
	for i, msg := range []string{"first", "second", "third"} {
		f := &failures.Failure{TenantID: "t1", SonificationID: "s1", Phase: failures.PhaseSynthesize, Message: msg}
		if i == 2 {
			f.SonificationID = "s2"
		}
		if err := r.Save(ctx, f); err != nil {
			t.Fatal(err)
		}
		if f.ID != int64(i+1) {
			t.Errorf("ID = %d, want %d", f.ID, i+1)
		}
	}

	got, _ := r.ListBySonification(ctx, "t1", "s1", 10)
	if len(got) != 2 || got[0].Message != "second" {
		t.Fatalf("ListBySonification = %d entries, want newest first", len(got))
	}
	if got[0].DetailsJSON != "{}" {
		t.Errorf("DetailsJSON = %q, want {}", got[0].DetailsJSON)
	}
	if other, _ := r.ListBySonification(ctx, "t2", "s1", 10); len(other) != 0 {
		t.Errorf("other tenant sees %d failures", len(other))
	}
}

func ids(recs []*domain.Record) []domain.ID {
	out := make([]domain.ID, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
