package store

import "context"

// Store defines the persistence layer contract for analysis history.
// All implementations must be safe for concurrent use.
type Store interface {
	// Analysis runs
	SaveRun(ctx context.Context, run *AnalysisRun) error
	GetRun(ctx context.Context, id string) (*AnalysisRun, error)
	LatestByHash(ctx context.Context, contentHash string) (*AnalysisRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*AnalysisRun, error)
	DeleteRun(ctx context.Context, id string) error

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
