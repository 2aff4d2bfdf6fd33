// Package control implements the supervisor's control surface: the
// handshake file a hooked-in agent writes on session start/turn, the
// append-only control log external callers use to request a reload, and
// the active-runs registry that records what a supervisor instance
// currently owns.
//
// The handshake file and registry use the same atomic write-then-rename
// persistence as internal/sessionstore; the control log reuses
// internal/sessionstore.AppendLog's append-only JSONL shape, just rooted in
// a control directory rather than a per-session one.
package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eversession/core/internal/evscore"
	"github.com/eversession/core/internal/fileio"
	"github.com/eversession/core/internal/jsonutil"
)

const (
	handshakeFileName = "handshake.json"
	controlLogName    = "control.log"
)

// Handshake is the latest handshake.json written by the agent-side hook on
// session start or turn completion.
type Handshake struct {
	RunID     string `json:"run_id"`
	SessionID string `json:"session_id"`

	// TranscriptPath identifies the live session for Agent A; ThreadID+Cwd
	// does the same for Agent B. Exactly one pair is populated depending on
	// which agent wrote the handshake.
	TranscriptPath string `json:"transcript_path,omitempty"`
	ThreadID       string `json:"thread_id,omitempty"`
	Cwd            string `json:"cwd,omitempty"`

	TS string `json:"ts"`
}

// HandshakePath returns the handshake file path within a control directory.
func HandshakePath(controlDir string) string {
	return filepath.Join(controlDir, handshakeFileName)
}

// WriteHandshake atomically replaces the handshake file, called by the hook
// ingestion path (internal/hooks) whenever the agent reports in.
func WriteHandshake(controlDir string, h Handshake) error {
	if err := os.MkdirAll(controlDir, 0o750); err != nil {
		return evscore.NewIOError(controlDir, err)
	}
	data, err := jsonutil.MarshalIndentWithNewline(h, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling handshake: %w", err)
	}
	return fileio.AtomicWrite(HandshakePath(controlDir), data, 0o600)
}

// ReadHandshake reads the current handshake, if any. A missing file is not
// an error: the supervisor hasn't seen a handshake yet.
func ReadHandshake(controlDir string) (*Handshake, error) {
	path := HandshakePath(controlDir)
	data, err := os.ReadFile(path) //nolint:gosec // controlDir is process-internal, not user input
	if os.IsNotExist(err) {
		return nil, nil //nolint:nilnil // absence is the expected common case before the first handshake
	}
	if err != nil {
		return nil, evscore.NewIOError(path, err)
	}
	var h Handshake
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, evscore.NewIOError(path, fmt.Errorf("invalid handshake.json: %w", err))
	}
	return &h, nil
}

// Command is one control.log entry: currently only "reload" is defined, but
// the type carries whatever cmd is on disk rather than rejecting unknown
// values, matching the validator/fixer posture of preserving what it
// doesn't understand.
type Command struct {
	TS     string `json:"ts"`
	Cmd    string `json:"cmd"`
	Reason string `json:"reason,omitempty"`
}

// CmdReload is the one command kind the supervisor acts on.
const CmdReload = "reload"

// controlLogPath returns the control log path within a control directory.
func controlLogPath(controlDir string) string {
	return filepath.Join(controlDir, controlLogName)
}

// AppendCommand appends one command line to controlDir's control.log,
// called by whatever external trigger (a CLI subcommand, a file watcher)
// decides the agent should reload.
func AppendCommand(controlDir string, cmd Command) error {
	if err := os.MkdirAll(controlDir, 0o750); err != nil {
		return evscore.NewIOError(controlDir, err)
	}
	line, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshaling control command: %w", err)
	}
	path := controlLogPath(controlDir)
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

// ReadCommandsSince reads control.log lines at index cursor and beyond (0
// based, one line per command), returning the new commands and the cursor
// to resume from next time. A missing file behaves as empty: the
// supervisor's poll loop must tolerate a control.log that doesn't exist yet.
//
// Malformed lines are skipped rather than treated as fatal — control.log is
// an external surface the supervisor doesn't own exclusively, and one bad
// line shouldn't stall the reload protocol for every line after it.
func ReadCommandsSince(controlDir string, cursor int) ([]Command, int, error) {
	path := controlLogPath(controlDir)
	f, err := os.Open(path) //nolint:gosec // controlDir is process-internal, not user input
	if os.IsNotExist(err) {
		return nil, cursor, nil
	}
	if err != nil {
		return nil, cursor, evscore.NewIOError(path, err)
	}
	defer f.Close()

	var commands []Command
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		idx := line
		line++
		if idx < cursor {
			continue
		}
		var cmd Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			continue
		}
		commands = append(commands, cmd)
	}
	if err := scanner.Err(); err != nil {
		return commands, line, evscore.NewIOError(path, err)
	}
	return commands, line, nil
}
