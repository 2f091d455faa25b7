package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Run status values.
const (
	RunStatusOK     = "ok"
	RunStatusFailed = "failed"
)

// AnalysisRun is the persisted record of one analysis of one source file.
// Successful runs carry the serialized graph; failed runs carry the error
// code and message instead.
type AnalysisRun struct {
	ID          string          `json:"id"`
	File        string          `json:"file"`
	Workflow    string          `json:"workflow,omitempty"`
	ContentHash string          `json:"content_hash"`
	Status      string          `json:"status"`
	Graph       json.RawMessage `json:"graph,omitempty"`
	NodeCount   int             `json:"node_count"`
	PathCount   int             `json:"path_count"`
	ErrorCode   string          `json:"error_code,omitempty"`
	ErrorMsg    string          `json:"error_message,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RunFilter specifies criteria for listing analysis runs.
type RunFilter struct {
	File     string     `json:"file,omitempty"`
	Workflow string     `json:"workflow,omitempty"`
	Status   string     `json:"status,omitempty"`
	Since    *time.Time `json:"since,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Offset   int        `json:"offset,omitempty"`
}

// HashSource returns the hex SHA-256 digest of a source file's contents.
// Runs are keyed by this hash so unchanged files skip re-analysis.
func HashSource(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}
