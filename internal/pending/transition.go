package pending

import "github.com/eversession/core/internal/compaction"

// Event is something that happens to a pending compact after it's created.
type Event int

const (
	// EventSummarizeFailed: the summarizer exhausted its fallback ladder
	// before a running record ever became ready.
	EventSummarizeFailed Event = iota
	// EventSummarized: a summary was produced; the record becomes ready
	// for the supervisor to apply.
	EventSummarized
	// EventFingerprintMismatch: at apply time, recomputing the selection
	// fingerprint against the live transcript didn't match the stored one.
	EventFingerprintMismatch
	// EventApplied: the supervisor's apply pipeline succeeded; the record
	// should be deleted, not merely transitioned, so Transition never
	// returns a "terminal applied" status — callers delete on success.
	EventApplied
)

// Transition computes the next status for a pure running/ready/failed/stale
// lifecycle, given the current status and an event. This has no side
// effects; callers persist the result via Save.
func Transition(current Status, event Event) Status {
	switch current {
	case StatusRunning:
		switch event {
		case EventSummarized:
			return StatusReady
		case EventSummarizeFailed:
			return StatusFailed
		default:
			return current
		}
	case StatusReady:
		switch event {
		case EventFingerprintMismatch:
			return StatusStale
		default:
			return current
		}
	default:
		// Failed and stale are both terminal: a fresh auto-compact run
		// always starts a brand new record rather than resurrecting one.
		return current
	}
}

// Fingerprint returns the selection.Fingerprint field reused inside a
// Record, so callers don't need to import compaction just to spell the
// type when constructing a Record literal inline.
type Fingerprint = compaction.Fingerprint
