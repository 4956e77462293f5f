package failures

import (
	"context"
)

// Repository defines persistence for pipeline failures
type Repository interface {
	Save(ctx context.Context, f *Failure) error
	ListBySonification(ctx context.Context, tenant string, sonificationID string, limit int) ([]*Failure, error)
}
