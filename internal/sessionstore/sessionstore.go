// Package sessionstore implements the per-session on-disk directory:
// `<global-root>/sessions/<session-id>/` holding `state.json`, `log.jsonl`,
// and a FIFO-capped `backups/` directory of pre-rewrite snapshots.
//
// Persistence follows an atomic write-then-rename JSON pattern with a
// directory-per-session layout. The backup-retention rule exists because
// EverSession rewrites a live transcript in place, so a pre-rewrite
// snapshot is its only undo mechanism.
package sessionstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/eversession/core/internal/evscore"
	"github.com/eversession/core/internal/fileio"
	"github.com/eversession/core/internal/jsonutil"
	"github.com/eversession/core/internal/redact"
)

// BackupCap is the maximum number of retained backups per session,
// retained FIFO.
const BackupCap = 10

// Dir returns the per-session storage directory under globalRoot.
func Dir(globalRoot, sessionID string) string {
	return filepath.Join(globalRoot, "sessions", sessionID)
}

// PendingReload is state.json's optional pending-reload marker.
type PendingReload struct {
	TS     string `json:"ts"`
	Reason string `json:"reason"`
}

// LastCompact is state.json's optional last-compaction record.
type LastCompact struct {
	TS           string `json:"ts"`
	TokensBefore int    `json:"tokensBefore"`
	TokensAfter  int    `json:"tokensAfter"`
	Model        string `json:"model"`
}

// Project is state.json's optional project hint.
type Project struct {
	Cwd  string `json:"cwd"`
	Hash string `json:"hash"`
}

// State is the state.json document.
type State struct {
	PendingReload *PendingReload `json:"pendingReload,omitempty"`
	LastCompact   *LastCompact   `json:"lastCompact,omitempty"`
	Project       *Project       `json:"project,omitempty"`
}

const stateFileName = "state.json"

// LoadState reads state.json from dir. A missing file returns a zero State,
// not an error: a session's first write to the directory is always via
// Save, not via a pre-seeded file.
func LoadState(dir string) (*State, error) {
	path := filepath.Join(dir, stateFileName)
	data, err := os.ReadFile(path) //nolint:gosec // dir is a derived session directory, not user input
	if os.IsNotExist(err) {
		return &State{}, nil
	}
	if err != nil {
		return nil, evscore.NewIOError(path, err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, evscore.NewIOError(path, fmt.Errorf("invalid state.json: %w", err))
	}
	return &s, nil
}

// SaveState atomically writes state.json to dir.
func SaveState(dir string, s *State) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return evscore.NewIOError(dir, err)
	}
	data, err := jsonutil.MarshalIndentWithNewline(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state.json: %w", err)
	}
	return fileio.AtomicWrite(filepath.Join(dir, stateFileName), data, 0o600)
}

const logFileName = "log.jsonl"

// LogEntry is one line of log.jsonl: mandatory ts/event, plus
// event-specific payload keys folded in at the top level.
type LogEntry struct {
	TS      string         `json:"ts"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"-"`
}

// MarshalJSON flattens Payload's keys alongside ts/event, so log lines read
// as a single flat object rather than a nested "payload" field.
func (e LogEntry) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(e.Payload)+2)
	for k, v := range e.Payload {
		m[k] = v
	}
	m["ts"] = e.TS
	m["event"] = e.Event
	return json.Marshal(m)
}

// AppendLog appends one log entry to dir's log.jsonl. The entry's payload
// is scrubbed through internal/redact first: event payloads can carry
// arbitrary strings pulled from a transcript (summaries, tool output), and
// log.jsonl is a plain file a backup tool or support bundle might pick up.
func AppendLog(dir string, entry LogEntry) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return evscore.NewIOError(dir, err)
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling log entry: %w", err)
	}
	line, err = redact.JSONLBytes(line)
	if err != nil {
		return fmt.Errorf("redacting log entry: %w", err)
	}
	path := filepath.Join(dir, logFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return evscore.NewIOError(path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return evscore.NewIOError(path, err)
	}
	return nil
}

// backupTimestampLayout matches the backups/<YYYYMMDD-HHMMSS-mmm>.jsonl naming.
const backupTimestampLayout = "20060102-150405.000"

// Backup writes data as a new timestamped snapshot under dir/backups/,
// named from now, then prunes older backups beyond BackupCap (FIFO).
func Backup(dir string, now time.Time, data []byte) (string, error) {
	backupsDir := filepath.Join(dir, "backups")
	if err := os.MkdirAll(backupsDir, 0o750); err != nil {
		return "", evscore.NewIOError(backupsDir, err)
	}
	name := strings.ReplaceAll(now.UTC().Format(backupTimestampLayout), ".", "-") + ".jsonl"
	path := filepath.Join(backupsDir, name)
	if err := fileio.AtomicWrite(path, data, 0o600); err != nil {
		return "", err
	}
	if err := pruneBackups(backupsDir); err != nil {
		return path, err
	}
	return path, nil
}

func pruneBackups(backupsDir string) error {
	entries, err := os.ReadDir(backupsDir)
	if err != nil {
		return evscore.NewIOError(backupsDir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // the timestamp-prefixed name sorts chronologically
	if len(names) <= BackupCap {
		return nil
	}
	for _, n := range names[:len(names)-BackupCap] {
		path := filepath.Join(backupsDir, n)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return evscore.NewIOError(path, err)
		}
	}
	return nil
}
