package validate

import (
	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/agentb"
	"github.com/eversession/core/internal/jsonl"
)

// B validates an Agent B transcript against every record (valid and
// invalid) and the parsed grammar.
func B(records []jsonl.Record, tr *agentb.Transcript) []agent.Issue {
	var issues []agent.Issue
	issues = append(issues, invalidJSONIssues(records)...)
	issues = append(issues, sessionMetaIssues(tr)...)
	issues = append(issues, callPairIssues(tr)...)
	issues = append(issues, sandboxPolicyIssues(tr)...)
	return issues
}

// sessionMetaIssues flags a missing session_meta line, a non-object
// payload, or an empty payload.id.
func sessionMetaIssues(tr *agentb.Transcript) []agent.Issue {
	var issues []agent.Issue
	meta, ok := tr.SessionMeta()
	if !ok {
		issues = append(issues, agent.Issue{
			Severity: agent.SeverityError,
			Code:     "missing_session_meta",
			Message:  "no session_meta line found",
		})
		return issues
	}
	if !meta.Payload.IsObject() {
		issues = append(issues, agent.Issue{
			Severity: agent.SeverityError,
			Code:     "session_meta_payload_not_object",
			Location: agent.Location{Line: meta.LineNumber},
			Message:  "session_meta payload is not a JSON object",
		})
		return issues
	}
	if id, ok := meta.SessionMetaID(); !ok || id == "" {
		issues = append(issues, agent.Issue{
			Severity: agent.SeverityError,
			Code:     "missing_session_meta",
			Location: agent.Location{Line: meta.LineNumber},
			Message:  "session_meta payload.id is empty",
		})
	}
	return issues
}

// callPairIssues flags call/output mismatches: at most one output and
// exactly one call per call_id, output kind matching call kind, and output
// strictly after its call in file order.
func callPairIssues(tr *agentb.Transcript) []agent.Issue {
	var issues []agent.Issue

	callsByID := make(map[string][]*agentb.Line)
	outputsByID := make(map[string][]*agentb.Line)
	for _, l := range tr.Lines {
		if l.Type != agentb.LineResponse || l.CallID == "" {
			continue
		}
		switch {
		case l.IsCall():
			callsByID[l.CallID] = append(callsByID[l.CallID], l)
		case l.IsOutput():
			outputsByID[l.CallID] = append(outputsByID[l.CallID], l)
		}
	}

	for callID, outputs := range outputsByID {
		calls := callsByID[callID]
		if len(calls) == 0 {
			issues = append(issues, agent.Issue{
				Severity: agent.SeverityError,
				Code:     "orphan_output",
				Location: agent.Location{Line: outputs[0].LineNumber, CallID: callID},
				Message:  "output references call_id " + callID + " with no matching call",
			})
			continue
		}
		call := calls[0]
		if outputs[0].LineNumber <= call.LineNumber {
			issues = append(issues, agent.Issue{
				Severity: agent.SeverityError,
				Code:     "output_before_call",
				Location: agent.Location{Line: outputs[0].LineNumber, CallID: callID},
				Message:  "output for call_id " + callID + " appears at or before its call",
			})
		}
		if want, ok := call.ItemType.MatchingOutputKind(); ok && outputs[0].ItemType != want {
			issues = append(issues, agent.Issue{
				Severity: agent.SeverityError,
				Code:     "output_before_call",
				Location: agent.Location{Line: outputs[0].LineNumber, CallID: callID},
				Message:  "output kind " + string(outputs[0].ItemType) + " does not match call kind " + string(call.ItemType),
			})
		}
		if len(outputs) > 1 {
			issues = append(issues, agent.Issue{
				Severity: agent.SeverityWarning,
				Code:     "duplicate_outputs_for_call_id",
				Location: agent.Location{Line: outputs[1].LineNumber, CallID: callID},
				Message:  "more than one output line for call_id " + callID,
			})
		}
	}

	for callID, calls := range callsByID {
		if len(calls) > 1 {
			issues = append(issues, agent.Issue{
				Severity: agent.SeverityWarning,
				Code:     "duplicate_call_id",
				Location: agent.Location{Line: calls[1].LineNumber, CallID: callID},
				Message:  "more than one call line for call_id " + callID,
			})
		}
		if _, ok := outputsByID[callID]; !ok {
			issues = append(issues, agent.Issue{
				Severity: agent.SeverityWarning,
				Code:     "missing_output",
				Location: agent.Location{Line: calls[0].LineNumber, CallID: callID},
				Message:  "no output line for call_id " + callID,
			})
		}
	}

	return issues
}

// sandboxPolicyIssues flags a turn_context sandbox_policy with neither a
// "mode" nor a "type" field.
func sandboxPolicyIssues(tr *agentb.Transcript) []agent.Issue {
	var issues []agent.Issue
	for _, l := range tr.Lines {
		if l.Type != agentb.LineTurnContext || !l.Payload.IsObject() {
			continue
		}
		sp := l.Payload.Get("sandbox_policy")
		if sp == nil || !sp.IsObject() {
			continue
		}
		_, _, present := l.SandboxPolicyMode()
		if !present {
			issues = append(issues, agent.Issue{
				Severity: agent.SeverityWarning,
				Code:     "sandbox_policy_missing_mode_or_type",
				Location: agent.Location{Line: l.LineNumber},
				Message:  "sandbox_policy has neither mode nor type",
			})
		}
	}
	return issues
}
