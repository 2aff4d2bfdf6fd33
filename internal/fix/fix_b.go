package fix

import "github.com/eversession/core/internal/agentb"

// B runs the Agent B fixer rules over tr in place, returning a changelog.
func B(tr *agentb.Transcript, opts Options) []Change {
	var changes []Change
	changes = append(changes, normalizeSandboxPoliciesB(tr)...)
	changes = append(changes, removeOrphanOutputsB(tr)...)
	if opts.InsertAbortedOutputs {
		changes = append(changes, insertAbortedOutputsB(tr)...)
	}
	return changes
}

// normalizeSandboxPoliciesB rewrites stale sandbox_policy.mode fields to
// sandbox_policy.type across every turn_context line.
func normalizeSandboxPoliciesB(tr *agentb.Transcript) []Change {
	var changes []Change
	for _, l := range tr.Lines {
		if l.NormalizeSandboxPolicy() {
			changes = append(changes, Change{
				Code:    "normalized_sandbox_policy",
				Line:    l.LineNumber,
				Message: "sandbox_policy.mode renamed to sandbox_policy.type",
			})
		}
	}
	return changes
}

// removeOrphanOutputsB drops output response_items whose call_id has no
// matching call line, the Agent B analog of rule 4's orphan removal.
func removeOrphanOutputsB(tr *agentb.Transcript) []Change {
	var changes []Change
	callIDs := make(map[string]bool)
	for _, l := range tr.Lines {
		if l.IsCall() {
			callIDs[l.CallID] = true
		}
	}

	var kept []*agentb.Line
	for _, l := range tr.Lines {
		if l.IsOutput() && !callIDs[l.CallID] {
			changes = append(changes, Change{
				Code:    "removed_orphan_output",
				Line:    l.LineNumber,
				Message: "removed output with no matching call for call_id " + l.CallID,
			})
			continue
		}
		kept = append(kept, l)
	}
	if len(changes) == 0 {
		return changes
	}
	tr.ReplaceLines(kept)
	return changes
}

// insertAbortedOutputsB inserts a synthesized function_call_output/
// custom_tool_call_output marked aborted for every call with no output, the
// Agent B analog of rule 4's stub insertion.
func insertAbortedOutputsB(tr *agentb.Transcript) []Change {
	var changes []Change
	for _, pair := range tr.Calls() {
		if pair.Output != nil || pair.Call == nil {
			continue
		}
		outputKind, ok := pair.Call.ItemType.MatchingOutputKind()
		if !ok {
			continue
		}
		stub := agentb.NewAbortedOutputLine(pair.Call.CallID, outputKind)
		if tr.InsertLineAfter(pair.Call, stub) {
			changes = append(changes, Change{
				Code:    "inserted_aborted_output",
				Line:    stub.LineNumber,
				Message: "inserted aborted output for call_id " + pair.CallID,
			})
		}
	}
	return changes
}
