// Package pending implements the pending-compact record: the protocol by
// which a supervised auto-compact stashes a computed selection and summary
// for the supervisor to apply once the agent reaches a safe reload
// boundary.
//
// Persistence follows an atomic write-then-rename pattern, one JSON file
// per session. State transitions follow a pure Transition function shape
// (a current-state/event pair mapping to a next state plus declared side
// effects), applied here to the running/ready/failed/stale lifecycle.
package pending

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/compaction"
	"github.com/eversession/core/internal/evscore"
	"github.com/eversession/core/internal/fileio"
	"github.com/eversession/core/internal/jsonutil"
)

// Status is the pending-compact lifecycle state.
type Status string

const (
	StatusRunning Status = "running"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
	StatusStale   Status = "stale"
)

// SchemaVersion is the only accepted schema_version; Load rejects any other
// value, never attempting to upgrade or interpret it.
const SchemaVersion = 1

// Source is the (mtime_ms, size) guard recorded alongside a pending
// compact, reusing fileio.StatToken's shape.
type Source struct {
	MtimeMS int64 `json:"mtime_ms"`
	Size    int64 `json:"size"`
}

// Record is the pending-compact record.
type Record struct {
	SchemaVersion  int                    `json:"schema_version"`
	SessionID      string                 `json:"session_id"`
	Status         Status                 `json:"status"`
	CreatedAt      string                 `json:"created_at"`
	ReadyAt        string                 `json:"ready_at,omitempty"`
	FailedAt       string                 `json:"failed_at,omitempty"`
	ThresholdTokens int                   `json:"threshold_tokens"`
	TokensAtTrigger int                   `json:"tokens_at_trigger"`
	AmountMode     agent.AmountMode       `json:"amount_mode"`
	AmountRaw      string                 `json:"amount_raw"`
	Model          string                 `json:"model"`
	Summary        string                 `json:"summary,omitempty"`
	Selection      compaction.Fingerprint `json:"selection"`
	Source         Source                 `json:"source"`
	Error          string                 `json:"error,omitempty"`
}

// FileName is the pending-compact record's fixed file name within a
// session directory.
const FileName = "pending-compact.json"

// Path returns the pending-compact record path for sessionDir.
func Path(sessionDir string) string {
	return filepath.Join(sessionDir, FileName)
}

// Load reads and validates the pending-compact record at sessionDir. A
// missing file is not an error: it returns (nil, nil), meaning no pending
// compact exists for this session.
func Load(sessionDir string) (*Record, error) {
	path := Path(sessionDir)
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a validated session directory
	if os.IsNotExist(err) {
		return nil, nil //nolint:nilnil // absence is the expected common case
	}
	if err != nil {
		return nil, evscore.NewIOError(path, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, evscore.NewIOError(path, fmt.Errorf("invalid pending-compact record: %w", err))
	}
	if rec.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: pending-compact schema_version %d, want %d", evscore.ErrInvalidPending, rec.SchemaVersion, SchemaVersion)
	}
	return &rec, nil
}

// Save atomically writes rec to sessionDir, creating the directory if
// needed.
func Save(sessionDir string, rec *Record) error {
	if err := os.MkdirAll(sessionDir, 0o750); err != nil {
		return evscore.NewIOError(sessionDir, err)
	}
	data, err := jsonutil.MarshalIndentWithNewline(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling pending-compact record: %w", err)
	}
	return fileio.AtomicWrite(Path(sessionDir), data, 0o600)
}

// Delete removes the pending-compact record for sessionDir. A missing file
// is not an error: the supervisor's apply pipeline deletes on success and
// must tolerate a record that's already gone.
func Delete(sessionDir string) error {
	path := Path(sessionDir)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return evscore.NewIOError(path, err)
	}
	return nil
}
