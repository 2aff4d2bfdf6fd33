// Package cli assembles the eversession binary's cobra command tree. Every
// subcommand here is a thin wrapper: flag parsing and formatting only, with
// every actual decision delegated to an internal/ package. No flag here
// grows beyond what its wired operation already accepts as a Go option.
package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version and Commit are set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// SilentError wraps an error that a subcommand has already printed (in its
// own format, e.g. a JSON result with an "error" field) so main.go's
// top-level handler doesn't print it a second time.
type SilentError struct {
	Err error
}

func (e *SilentError) Error() string { return e.Err.Error() }
func (e *SilentError) Unwrap() error { return e.Err }

// NewSilentError wraps err, or returns nil if err is nil.
func NewSilentError(err error) *SilentError {
	if err == nil {
		return nil
	}
	return &SilentError{Err: err}
}

// NewRootCmd builds the eversession command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eversession",
		Short: "Session-lifecycle manager for coding-agent transcripts",
		Long: "eversession validates, fixes, auto-compacts and supervises the " +
			"append-only JSONL transcripts that chat-style and rollout-style " +
			"coding agents persist their conversation state to.",
		// main.go handles error printing, to avoid printing twice.
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newCompactCmd())
	cmd.AddCommand(newApplyCmd())
	cmd.AddCommand(newForkCmd())
	cmd.AddCommand(newSuperviseCmd())
	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "eversession %s (%s)\n", Version, Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Go version: %s\n", runtime.Version())
			fmt.Fprintf(cmd.OutOrStdout(), "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
