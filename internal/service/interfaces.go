// Package service defines the interfaces for application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/bates-must-flow/internal/model"
)

// RunFilter defines filtering options for run queries.
type RunFilter struct {
	Since      *time.Time
	Kind       model.ErrorKind
	FileID     string
	Limit      int
	FailedOnly bool
}

// Storage defines the contract for the run audit log.
type Storage interface {
	RecordRun(ctx context.Context, rec model.RunRecord) error
	GetRun(ctx context.Context, id string) (*model.RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.RunRecord, error)
	CountByOutcome(ctx context.Context, since time.Time) (map[string]int, error)

	Migrate(ctx context.Context) error
	Close() error
}
