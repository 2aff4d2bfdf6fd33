package control

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/evscore"
	"github.com/eversession/core/internal/fileio"
	"github.com/eversession/core/internal/jsonutil"
)

// RunEntry is one active-runs registry row.
type RunEntry struct {
	AgentKind   agent.Kind        `json:"agent"`
	RunID       string            `json:"run_id"`
	PID         int               `json:"pid"`
	Cwd         string            `json:"cwd"`
	StartedAt   string            `json:"started_at"`
	ReloadMode  evscore.ReloadMode `json:"reload_mode"`
	ControlDir  string            `json:"control_dir"`
}

const registryFileName = "active-runs.json"

func registryPath(globalRoot string) string {
	return filepath.Join(globalRoot, registryFileName)
}

// loadRegistry reads the registry, treating a missing file as empty.
func loadRegistry(globalRoot string) ([]RunEntry, error) {
	path := registryPath(globalRoot)
	data, err := os.ReadFile(path) //nolint:gosec // globalRoot is process configuration, not user input
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, evscore.NewIOError(path, err)
	}
	var entries []RunEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, evscore.NewIOError(path, err)
	}
	return entries, nil
}

func saveRegistry(globalRoot string, entries []RunEntry) error {
	if err := os.MkdirAll(globalRoot, 0o750); err != nil {
		return evscore.NewIOError(globalRoot, err)
	}
	data, err := jsonutil.MarshalIndentWithNewline(entries, "", "  ")
	if err != nil {
		return err
	}
	return fileio.AtomicWrite(registryPath(globalRoot), data, 0o600)
}

// RegisterRun adds or replaces (by RunID) an active-runs registry entry,
// called when the supervisor spawns a new child generation.
func RegisterRun(globalRoot string, entry RunEntry) error {
	entries, err := loadRegistry(globalRoot)
	if err != nil {
		return err
	}
	replaced := false
	for i := range entries {
		if entries[i].RunID == entry.RunID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	return saveRegistry(globalRoot, entries)
}

// DeregisterRun removes an active-runs registry entry by RunID, called when
// a supervisor instance exits for good (not on a reload, which re-registers
// under the same RunID via RegisterRun).
func DeregisterRun(globalRoot, runID string) error {
	entries, err := loadRegistry(globalRoot)
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.RunID != runID {
			kept = append(kept, e)
		}
	}
	return saveRegistry(globalRoot, kept)
}

// ListRuns returns every entry currently in the active-runs registry.
func ListRuns(globalRoot string) ([]RunEntry, error) {
	return loadRegistry(globalRoot)
}
