// Package fix implements the pure transcript fixer: given a parsed grammar
// and options, produce the next set of mutated values plus a
// changelog, without writing anything. Idempotent by construction — each
// rule only acts when its precondition still holds, so re-running on
// already-fixed values finds nothing left to do.
//
// Grounded on the same rule-per-behavior shape as internal/validate; no
// corpus library models a transcript fixer, so this is hand-rolled pure
// Go, same justification as the validator.
package fix

import "github.com/eversession/core/internal/agent"

// Options configures a fix pass.
type Options struct {
	RemovalMode          agent.RemovalMode
	InsertAbortedOutputs bool
}

// Change is one entry in a fixer's changelog.
type Change struct {
	Code    string
	Line    int
	Message string
}
