package validate

import (
	"strconv"

	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/agenta"
	"github.com/eversession/core/internal/jsonl"
)

// A validates an Agent A transcript against every record (valid and
// invalid) and the parsed grammar, emitting one issue per violated
// invariant occurrence. records must be the same sequence tr was parsed
// from (invalid-json lines don't appear in tr.Entries).
func A(records []jsonl.Record, tr *agenta.Transcript) []agent.Issue {
	var issues []agent.Issue
	issues = append(issues, invalidJSONIssues(records)...)
	issues = append(issues, duplicateUUIDs(tr)...)
	issues = append(issues, brokenParentChain(tr)...)
	issues = append(issues, orphanToolResults(tr)...)
	issues = append(issues, thinkingBlockOrder(tr)...)
	issues = append(issues, apiErrorMessages(tr)...)
	return issues
}

// duplicateUUIDs flags any uuid reused across more than one entry.
func duplicateUUIDs(tr *agenta.Transcript) []agent.Issue {
	var issues []agent.Issue
	seen := make(map[string]int) // uuid -> first line number
	for _, e := range tr.Entries {
		if e.UUID == "" {
			continue
		}
		if first, ok := seen[e.UUID]; ok {
			issues = append(issues, agent.Issue{
				Severity: agent.SeverityError,
				Code:     "duplicate_uuid",
				Location: agent.Location{Line: e.LineNumber},
				Message:  "uuid already used at line " + strconv.Itoa(first),
			})
			continue
		}
		seen[e.UUID] = e.LineNumber
	}
	return issues
}

// brokenParentChain flags any parent_uuid that does not reference an
// existing uuid in the same file (empty is a valid root).
func brokenParentChain(tr *agenta.Transcript) []agent.Issue {
	var issues []agent.Issue
	for _, e := range tr.Entries {
		if !e.IsChainEligible() || e.ParentUUID == "" {
			continue
		}
		if _, ok := tr.ByUUID(e.ParentUUID); !ok {
			issues = append(issues, agent.Issue{
				Severity: agent.SeverityError,
				Code:     "broken_parent_chain",
				Location: agent.Location{Line: e.LineNumber},
				Message:  "parentUuid " + e.ParentUUID + " does not exist in this transcript",
			})
		}
	}
	return issues
}

// orphanToolResults flags every tool_result.tool_use_id that isn't
// preceded, in file order within the active chain, by a matching
// tool_use.id.
func orphanToolResults(tr *agenta.Transcript) []agent.Issue {
	var issues []agent.Issue
	chain := tr.ActiveChain()
	seenToolUse := make(map[string]bool)
	for _, e := range chain {
		for _, id := range e.ToolUseIDs() {
			seenToolUse[id] = true
		}
		for _, id := range e.ToolResultIDs() {
			if !seenToolUse[id] {
				issues = append(issues, agent.Issue{
					Severity: agent.SeverityError,
					Code:     "orphan_tool_result",
					Location: agent.Location{Line: e.LineNumber, CallID: id},
					Message:  "tool_result references tool_use_id " + id + " with no preceding tool_use",
				})
			}
		}
	}
	return issues
}

// thinkingBlockOrder runs both flavors of the thinking-first check
// (per-entry and merged-turn): a thinking block, if present, must lead.
func thinkingBlockOrder(tr *agenta.Transcript) []agent.Issue {
	var issues []agent.Issue
	for _, e := range tr.Entries {
		if e.Type != agenta.EntryAssistant || !e.ContentIsBlocks {
			continue
		}
		if containsThinking(e.Content) && !e.HasThinkingFirst() {
			issues = append(issues, agent.Issue{
				Severity: agent.SeverityError,
				Code:     "thinking_block_order",
				Location: agent.Location{Line: e.LineNumber},
				Message:  "assistant turn contains a thinking block that is not first",
			})
		}
	}

	turns := agenta.MergeStreamingTurns(tr.Entries)
	for _, turn := range turns {
		if len(turn.Fragments) < 2 {
			continue
		}
		merged := turn.MergedContent()
		if containsThinking(merged) && (len(merged) == 0 || merged[0].Type != agenta.BlockThinking) {
			issues = append(issues, agent.Issue{
				Severity: agent.SeverityError,
				Code:     "thinking_block_order_merged",
				Location: agent.Location{Line: turn.Fragments[0].LineNumber},
				Message:  "merged streaming turn contains a thinking block that is not first once fragments are combined",
			})
		}
	}
	return issues
}

func containsThinking(blocks []agenta.ContentBlock) bool {
	for _, b := range blocks {
		if b.Type == agenta.BlockThinking {
			return true
		}
	}
	return false
}

// apiErrorMessages emits a warning for assistant entries the agent marked
// as carrying an API error (isApiErrorMessage: true on the top-level
// record), surfaced so a human reviewing validator output can spot a
// truncated or failed turn without reading transcript text.
func apiErrorMessages(tr *agenta.Transcript) []agent.Issue {
	var issues []agent.Issue
	for _, e := range tr.Entries {
		flag := e.Record.Value.Get("isApiErrorMessage")
		if flag == nil || flag.Kind != jsonl.KindBool || !flag.Bool {
			continue
		}
		issues = append(issues, agent.Issue{
			Severity: agent.SeverityWarning,
			Code:     "api_error_message",
			Location: agent.Location{Line: e.LineNumber},
			Message:  "entry is flagged as an API error message",
		})
	}
	return issues
}
