// Package fork implements the fork command: given a live transcript, write
// a sibling copy under a freshly generated id with every session id inside
// rewritten to match, leaving the source untouched.
//
// Id generation uses google/uuid, the same source this module uses
// elsewhere for synthesized chain ids; rewriting the parsed tree in place
// before re-stringifying reuses internal/agenta's and internal/agentb's own
// RewriteSessionID mutation helpers, the same pattern internal/fix already
// uses for in-place transcript edits.
package fork

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/agenta"
	"github.com/eversession/core/internal/agentb"
	"github.com/eversession/core/internal/fileio"
	"github.com/eversession/core/internal/jsonl"
	"github.com/google/uuid"
)

// Result describes a completed fork.
type Result struct {
	NewID   string
	NewPath string
}

// Fork reads the transcript at sourcePath, rewrites every session id inside
// to a freshly generated UUID, and writes the result to a sibling path
// derived per kind's filename rule. The source file is never modified.
func Fork(sourcePath string, kind agent.Kind) (*Result, error) {
	data, err := os.ReadFile(sourcePath) //nolint:gosec // sourcePath comes from session discovery, not user input
	if err != nil {
		return nil, fmt.Errorf("reading source transcript: %w", err)
	}

	newID := uuid.NewString()
	records := jsonl.Parse(data)

	var fixedRecords []*jsonl.Record
	var oldID string
	switch kind {
	case agent.KindA:
		fixedRecords = forkA(records, newID)
	case agent.KindB:
		fixedRecords, oldID = forkB(records, newID)
	default:
		return nil, fmt.Errorf("fork: unrecognized agent kind %q", kind)
	}

	out, err := jsonl.StringifyPtr(fixedRecords)
	if err != nil {
		return nil, fmt.Errorf("encoding forked transcript: %w", err)
	}

	newPath := destinationPath(sourcePath, kind, oldID, newID)
	if err := fileio.AtomicWrite(newPath, out, 0o600); err != nil {
		return nil, fmt.Errorf("writing forked transcript: %w", err)
	}

	return &Result{NewID: newID, NewPath: newPath}, nil
}

func forkA(records []jsonl.Record, newID string) []*jsonl.Record {
	tr := agenta.Parse(records)
	for _, e := range tr.Entries {
		e.RewriteSessionID(newID)
	}
	return tr.Records
}

// forkB rewrites the session_meta line's payload.id and returns the old id
// alongside the fixed records, so destinationPath can check the source
// filename against the id it actually carried rather than guessing at a
// hyphen boundary inside a UUID.
func forkB(records []jsonl.Record, newID string) ([]*jsonl.Record, string) {
	tr := agentb.Parse(records)
	var oldID string
	if l, ok := tr.SessionMeta(); ok {
		oldID, _ = l.SessionMetaID()
		l.RewriteSessionID(newID)
	}
	return tr.Records, oldID
}

// destinationPath derives the sibling path: Agent A always names the new
// file after the generated UUID; Agent B replaces a
// "-<old>.jsonl" suffix in place when the source filename actually ends
// with the old session id, falling back to "rollout-fork-<new>.jsonl"
// otherwise.
func destinationPath(sourcePath string, kind agent.Kind, oldID, newID string) string {
	dir := filepath.Dir(sourcePath)
	if kind == agent.KindA {
		return filepath.Join(dir, newID+".jsonl")
	}

	base := filepath.Base(sourcePath)
	if oldID != "" && strings.HasSuffix(base, "-"+oldID+".jsonl") {
		prefix := strings.TrimSuffix(base, oldID+".jsonl")
		return filepath.Join(dir, prefix+newID+".jsonl")
	}
	return filepath.Join(dir, "rollout-fork-"+newID+".jsonl")
}
