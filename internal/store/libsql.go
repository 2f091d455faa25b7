package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/flowlens/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Analysis runs ---

func (s *LibSQLStore) SaveRun(ctx context.Context, run *AnalysisRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_runs (id, file, workflow, content_hash, status, graph, node_count, path_count, error_code, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.File, nullStr(run.Workflow), run.ContentHash, run.Status,
		nullRaw(run.Graph), run.NodeCount, run.PathCount,
		nullStr(run.ErrorCode), nullStr(run.ErrorMsg), timeOrNow(run.CreatedAt),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "save run %q: %v", run.ID, err).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) GetRun(ctx context.Context, id string) (*AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file, workflow, content_hash, status, graph, node_count, path_count, error_code, error_message, created_at
		 FROM analysis_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("analysis run", id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// LatestByHash returns the most recent run recorded for a content hash, or a
// NOT_FOUND error when the hash has never been analyzed.
func (s *LibSQLStore) LatestByHash(ctx context.Context, contentHash string) (*AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file, workflow, content_hash, status, graph, node_count, path_count, error_code, error_message, created_at
		 FROM analysis_runs WHERE content_hash = ? ORDER BY created_at DESC, id DESC LIMIT 1`, contentHash)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("analysis run for hash", contentHash)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *LibSQLStore) ListRuns(ctx context.Context, filter RunFilter) ([]*AnalysisRun, error) {
	query := `SELECT id, file, workflow, content_hash, status, graph, node_count, path_count, error_code, error_message, created_at FROM analysis_runs`
	var where []string
	var args []any

	if filter.File != "" {
		where = append(where, "file = ?")
		args = append(args, filter.File)
	}
	if filter.Workflow != "" {
		where = append(where, "workflow = ?")
		args = append(args, filter.Workflow)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *filter.Since)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *LibSQLStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "analysis run", id)
}

// --- Helpers ---

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*AnalysisRun, error) {
	run := &AnalysisRun{}
	var workflow, graph, errCode, errMsg sql.NullString
	if err := sc.Scan(&run.ID, &run.File, &workflow, &run.ContentHash, &run.Status,
		&graph, &run.NodeCount, &run.PathCount, &errCode, &errMsg, &run.CreatedAt); err != nil {
		return nil, err
	}
	run.Workflow = workflow.String
	run.Graph = rawOrNil(graph)
	run.ErrorCode = errCode.String
	run.ErrorMsg = errMsg.String
	return run, nil
}

func storeNotFound(resource, id string) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r []byte) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) []byte {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return []byte(ns.String)
}

var _ Store = (*LibSQLStore)(nil)
