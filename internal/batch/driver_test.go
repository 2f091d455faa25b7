package batch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/pkg/schema"
)

const workflowSrc = `package pay

//workflow:definition
type PayWorkflow struct{}

//workflow:run
func (w *PayWorkflow) Run(ctx workflow.Context, in Input) error {
	workflow.ExecuteActivity(ctx, "authorize", in)
	workflow.ExecuteActivity(ctx, "capture", in)
	return nil
}
`

const brokenSrc = `package broken

func NotAWorkflow() {}
`

// memStore is an in-memory Store for driver tests.
type memStore struct {
	mu     sync.Mutex
	byID   map[string]*store.AnalysisRun
	byHash map[string]*store.AnalysisRun
	saves  int
}

func newMemStore() *memStore {
	return &memStore{
		byID:   make(map[string]*store.AnalysisRun),
		byHash: make(map[string]*store.AnalysisRun),
	}
}

func (m *memStore) SaveRun(ctx context.Context, run *store.AnalysisRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.byID[run.ID] = run
	m.byHash[run.ContentHash] = run
	return nil
}

func (m *memStore) GetRun(ctx context.Context, id string) (*store.AnalysisRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.byID[id]; ok {
		return run, nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeNotFound, "run %q not found", id)
}

func (m *memStore) LatestByHash(ctx context.Context, hash string) (*store.AnalysisRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, ok := m.byHash[hash]; ok {
		return run, nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeNotFound, "hash %q not found", hash)
}

func (m *memStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.AnalysisRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var runs []*store.AnalysisRun
	for _, run := range m.byID {
		runs = append(runs, run)
	}
	return runs, nil
}

func (m *memStore) DeleteRun(ctx context.Context, id string) error { return nil }
func (m *memStore) Migrate(ctx context.Context) error              { return nil }
func (m *memStore) Vacuum(ctx context.Context) error               { return nil }
func (m *memStore) Close() error                                   { return nil }

func writeFixture(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestDriverRun(t *testing.T) {
	dir := t.TempDir()
	good := writeFixture(t, dir, "pay.go", workflowSrc)
	bad := writeFixture(t, dir, "broken.go", brokenSrc)

	d := NewDriver(schema.Options{}, 2, nil, nil)
	report, err := d.Run(context.Background(), []string{good, bad})
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	// Results keep input order.
	assert.Equal(t, good, report.Results[0].File)
	require.NotNil(t, report.Results[0].Graph)
	assert.Equal(t, "PayWorkflow", report.Results[0].Graph.Workflow)

	assert.Equal(t, bad, report.Results[1].File)
	require.Error(t, report.Results[1].Err)
	assert.Equal(t, schema.ErrCodeNotAWorkflow, schema.CodeOf(report.Results[1].Err))
}

func TestDriverIsolation(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFixture(t, dir, "a.go", workflowSrc),
		filepath.Join(dir, "missing.go"),
		writeFixture(t, dir, "b.go", brokenSrc),
	}

	d := NewDriver(schema.Options{}, 4, nil, nil)
	report, err := d.Run(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.NotNil(t, report.Results[0].Graph)
}

func TestDriverCacheHit(t *testing.T) {
	dir := t.TempDir()
	file := writeFixture(t, dir, "pay.go", workflowSrc)
	ms := newMemStore()

	d := NewDriver(schema.Options{}, 1, ms, nil)
	ctx := context.Background()

	first, err := d.Run(ctx, []string{file})
	require.NoError(t, err)
	assert.Equal(t, 0, first.CacheHits)
	assert.Equal(t, 1, ms.saves)

	second, err := d.Run(ctx, []string{file})
	require.NoError(t, err)
	assert.Equal(t, 1, second.CacheHits)
	assert.Equal(t, 1, ms.saves, "cache hit must not re-save")

	require.NotNil(t, second.Results[0].Graph)
	assert.Equal(t, "PayWorkflow", second.Results[0].Graph.Workflow)
	assert.True(t, second.Results[0].Cached)
}

func TestDriverFailureRecorded(t *testing.T) {
	dir := t.TempDir()
	file := writeFixture(t, dir, "broken.go", brokenSrc)
	ms := newMemStore()

	d := NewDriver(schema.Options{}, 1, ms, nil)
	report, err := d.Run(context.Background(), []string{file})
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)

	run, err := ms.GetRun(context.Background(), report.Results[0].RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusFailed, run.Status)
	assert.Equal(t, schema.ErrCodeNotAWorkflow, run.ErrorCode)
}

func TestDriverFailedRunNotCached(t *testing.T) {
	dir := t.TempDir()
	file := writeFixture(t, dir, "broken.go", brokenSrc)
	ms := newMemStore()

	d := NewDriver(schema.Options{}, 1, ms, nil)
	ctx := context.Background()

	_, err := d.Run(ctx, []string{file})
	require.NoError(t, err)

	second, err := d.Run(ctx, []string{file})
	require.NoError(t, err)
	assert.Equal(t, 0, second.CacheHits)
	assert.Equal(t, 1, second.Failed)
}
