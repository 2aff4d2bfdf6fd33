package supervisor

import (
	"os"

	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/agenta"
	"github.com/eversession/core/internal/agentb"
	"github.com/eversession/core/internal/fileio"
	"github.com/eversession/core/internal/fix"
	"github.com/eversession/core/internal/jsonl"
)

// lastChanceFix runs a best-effort fix pass against the now-idle
// transcript, repairing whatever the agent's own process left
// behind (a torn tool-result pairing, a missing summary block) before the
// next generation resumes it. Unlike the auto-compact pipeline's fixer
// call, there's no validation gate here and no abort path — a failed
// repair just leaves the transcript as it was, logged by the caller.
func lastChanceFix(opts Options) error {
	before, err := os.ReadFile(opts.TranscriptPath) //nolint:gosec // opts.TranscriptPath comes from session discovery, not user input
	if err != nil {
		return err
	}

	rawRecords := jsonl.Parse(before)

	var fixedRecords []*jsonl.Record
	switch opts.Kind {
	case agent.KindA:
		tr := agenta.Parse(rawRecords)
		fix.A(tr, fix.Options{RemovalMode: opts.RemovalMode, InsertAbortedOutputs: true})
		fixedRecords = tr.Records
	case agent.KindB:
		tr := agentb.Parse(rawRecords)
		fix.B(tr, fix.Options{RemovalMode: opts.RemovalMode, InsertAbortedOutputs: true})
		fixedRecords = tr.Records
	default:
		return nil
	}

	after, err := jsonl.StringifyPtr(fixedRecords)
	if err != nil {
		return err
	}
	return fileio.AtomicWrite(opts.TranscriptPath, after, 0o600)
}
