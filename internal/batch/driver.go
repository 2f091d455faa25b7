package batch

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/rendis/flowlens/internal/analyzer"
	"github.com/rendis/flowlens/internal/logging"
	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/pkg/schema"
)

// FileResult is the outcome of analyzing one source file.
type FileResult struct {
	File   string        `json:"file"`
	RunID  string        `json:"run_id,omitempty"`
	Graph  *schema.Graph `json:"graph,omitempty"`
	Cached bool          `json:"cached,omitempty"`
	Err    error         `json:"-"`
}

// Report aggregates the results of a batch run. Results preserve the input
// file order regardless of completion order.
type Report struct {
	Results   []FileResult `json:"results"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	CacheHits int          `json:"cache_hits"`
}

// Driver analyzes a set of workflow source files concurrently. Each file is
// isolated: a failure in one never aborts the others. When a store is
// configured, results are cached by content hash and persisted as analysis
// runs.
type Driver struct {
	opts    schema.Options
	workers int
	store   store.Store
	logger  *slog.Logger
}

// NewDriver creates a batch driver. The store may be nil, in which case
// caching and history recording are disabled.
func NewDriver(opts schema.Options, workers int, st store.Store, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{opts: opts, workers: workers, store: st, logger: logger}
}

// Run analyzes every file and returns the aggregated report. The context
// cancels pending submissions; files already in flight run to completion.
func (d *Driver) Run(ctx context.Context, files []string) (*Report, error) {
	pool := NewWorkerPool(d.workers)
	defer pool.Shutdown()

	results := make([]FileResult, len(files))
	var mu sync.Mutex

	for i, file := range files {
		i, file := i, file
		err := pool.Submit(ctx, func(ctx context.Context) error {
			res := d.analyzeOne(ctx, file)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return res.Err
		})
		if err != nil {
			mu.Lock()
			results[i] = FileResult{File: file, Err: err}
			mu.Unlock()
			if ctx.Err() != nil {
				break
			}
		}
	}

	pool.Wait()

	report := &Report{Results: results}
	for _, r := range results {
		switch {
		case r.Err != nil:
			report.Failed++
		default:
			report.Succeeded++
			if r.Cached {
				report.CacheHits++
			}
		}
	}
	return report, nil
}

// analyzeOne runs a single file through the cache, the analyzer and the
// history store. Store failures degrade to uncached analysis rather than
// failing the file.
func (d *Driver) analyzeOne(ctx context.Context, file string) FileResult {
	runID := uuid.New().String()
	ctx = logging.WithIDs(ctx, runID, file, "")
	log := logging.LogWith(ctx, d.logger)

	src, err := os.ReadFile(file)
	if err != nil {
		log.Error("read source failed", slog.String("error", err.Error()))
		return FileResult{File: file, RunID: runID,
			Err: schema.NewErrorf(schema.ErrCodeParse, "read source: %v", err).WithFile(file).WithCause(err)}
	}

	hash := store.HashSource(src)
	if cached, ok := d.lookupCache(ctx, hash); ok {
		log.Debug("cache hit", slog.String("content_hash", hash))
		return FileResult{File: file, RunID: cached.ID, Graph: cachedGraph(cached), Cached: true}
	}

	g, err := analyzer.Analyze(file, src, d.opts)
	if err != nil {
		log.Warn("analysis failed",
			slog.String("code", schema.CodeOf(err)),
			slog.String("error", err.Error()))
		d.recordFailure(ctx, runID, file, hash, err)
		return FileResult{File: file, RunID: runID, Err: err}
	}

	log.Info("analysis complete",
		slog.String("workflow", g.Workflow),
		slog.Int("nodes", len(g.Nodes)),
		slog.Int("paths", len(g.Paths)))
	d.recordSuccess(ctx, runID, file, hash, g)
	return FileResult{File: file, RunID: runID, Graph: g}
}

// lookupCache returns the latest successful run for the hash, if any.
func (d *Driver) lookupCache(ctx context.Context, hash string) (*store.AnalysisRun, bool) {
	if d.store == nil {
		return nil, false
	}
	run, err := d.store.LatestByHash(ctx, hash)
	if err != nil || run.Status != store.RunStatusOK || len(run.Graph) == 0 {
		return nil, false
	}
	return run, true
}

func (d *Driver) recordSuccess(ctx context.Context, runID, file, hash string, g *schema.Graph) {
	if d.store == nil {
		return
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return
	}
	run := &store.AnalysisRun{
		ID:          runID,
		File:        file,
		Workflow:    g.Workflow,
		ContentHash: hash,
		Status:      store.RunStatusOK,
		Graph:       raw,
		NodeCount:   len(g.Nodes),
		PathCount:   len(g.Paths),
	}
	if err := d.store.SaveRun(ctx, run); err != nil {
		logging.LogWith(ctx, d.logger).Warn("record run failed", slog.String("error", err.Error()))
	}
}

func (d *Driver) recordFailure(ctx context.Context, runID, file, hash string, analysisErr error) {
	if d.store == nil {
		return
	}
	run := &store.AnalysisRun{
		ID:          runID,
		File:        file,
		ContentHash: hash,
		Status:      store.RunStatusFailed,
		ErrorCode:   schema.CodeOf(analysisErr),
		ErrorMsg:    analysisErr.Error(),
	}
	if err := d.store.SaveRun(ctx, run); err != nil {
		logging.LogWith(ctx, d.logger).Warn("record run failed", slog.String("error", err.Error()))
	}
}

// cachedGraph decodes the stored graph JSON, or nil when it is corrupt.
func cachedGraph(run *store.AnalysisRun) *schema.Graph {
	var g schema.Graph
	if err := json.Unmarshal(run.Graph, &g); err != nil {
		return nil
	}
	return &g
}
