package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlens/internal/batch"
)

// mockRunner records the file sets it was asked to analyze.
type mockRunner struct {
	mu    sync.Mutex
	calls [][]string
	fail  bool
}

func (m *mockRunner) Run(ctx context.Context, files []string) (*batch.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, files)
	report := &batch.Report{Succeeded: len(files)}
	if m.fail {
		report.Succeeded = 0
		report.Failed = len(files)
	}
	return report, nil
}

func (m *mockRunner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func writeWorkflowFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("package x\n"), 0o644))
	return path
}

func TestAddWatch(t *testing.T) {
	s := NewScheduler(&mockRunner{}, nil)

	w, err := s.AddWatch("w1", "/tmp/*.go", "*/5 * * * *")
	require.NoError(t, err)
	assert.Equal(t, "w1", w.ID)
	require.NotNil(t, w.NextRunAt)
	assert.True(t, w.NextRunAt.After(time.Now().UTC().Add(-time.Minute)))

	_, err = s.AddWatch("w1", "/tmp/*.go", "*/5 * * * *")
	require.Error(t, err, "duplicate watch ID rejected")
}

func TestAddWatchBadCron(t *testing.T) {
	s := NewScheduler(&mockRunner{}, nil)
	_, err := s.AddWatch("w1", "/tmp/*.go", "not a cron")
	require.Error(t, err)
}

func TestRemoveWatch(t *testing.T) {
	s := NewScheduler(&mockRunner{}, nil)
	_, err := s.AddWatch("w1", "/tmp/*.go", "* * * * *")
	require.NoError(t, err)

	s.RemoveWatch("w1")
	assert.Empty(t, s.Watches())

	s.RemoveWatch("unknown") // no-op
}

func TestTickRunsDueWatch(t *testing.T) {
	dir := t.TempDir()
	file := writeWorkflowFile(t, dir, "wf.go")

	runner := &mockRunner{}
	s := NewScheduler(runner, nil)

	w, err := s.AddWatch("w1", filepath.Join(dir, "*.go"), "* * * * *")
	require.NoError(t, err)

	// Force the watch due.
	past := time.Now().UTC().Add(-time.Minute)
	s.watchMu.Lock()
	w.NextRunAt = &past
	s.watchMu.Unlock()

	s.Tick(context.Background())

	require.Equal(t, 1, runner.callCount())
	assert.Equal(t, []string{file}, runner.calls[0])

	watches := s.Watches()
	require.Len(t, watches, 1)
	assert.Equal(t, "success", watches[0].LastRunStatus)
	require.NotNil(t, watches[0].NextRunAt)
	assert.True(t, watches[0].NextRunAt.After(time.Now().UTC().Add(-time.Second)))
}

func TestTickSkipsFutureWatch(t *testing.T) {
	runner := &mockRunner{}
	s := NewScheduler(runner, nil)

	_, err := s.AddWatch("w1", "/nonexistent/*.go", "0 0 1 1 *")
	require.NoError(t, err)

	s.Tick(context.Background())
	assert.Equal(t, 0, runner.callCount())
}

func TestTickPartialStatus(t *testing.T) {
	dir := t.TempDir()
	writeWorkflowFile(t, dir, "wf.go")

	runner := &mockRunner{fail: true}
	s := NewScheduler(runner, nil)

	w, err := s.AddWatch("w1", filepath.Join(dir, "*.go"), "* * * * *")
	require.NoError(t, err)
	past := time.Now().UTC().Add(-time.Minute)
	s.watchMu.Lock()
	w.NextRunAt = &past
	s.watchMu.Unlock()

	s.Tick(context.Background())

	watches := s.Watches()
	require.Len(t, watches, 1)
	assert.Equal(t, "partial", watches[0].LastRunStatus)
}

func TestCalculateNextRun(t *testing.T) {
	s := NewScheduler(&mockRunner{}, nil)

	from := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	next, err := s.CalculateNextRun("*/15 * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 12, 15, 0, 0, time.UTC), next)

	_, err = s.CalculateNextRun("bogus", from)
	require.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(&mockRunner{}, nil)

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()), "double start rejected")

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop(), "idempotent stop")
}
