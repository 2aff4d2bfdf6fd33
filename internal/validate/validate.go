// Package validate implements pure transcript validators: given a parsed
// grammar, emit a list of issues (severity, code, location) without
// mutating anything. Each validator is a pure rule-per-behavior pass; no
// third-party rule-engine library fits this shape, so the engine itself is
// hand-rolled, with each rule's rationale recorded in the repository's
// design ledger.
package validate

import (
	"github.com/eversession/core/internal/agent"
	"github.com/eversession/core/internal/jsonl"
)

// invalidJSONIssues emits invalid_json_line errors for every record that
// failed to parse as JSON, shared between both agents since it operates at
// the record level, before any grammar is imposed.
func invalidJSONIssues(records []jsonl.Record) []agent.Issue {
	var issues []agent.Issue
	for _, r := range records {
		if r.Valid {
			continue
		}
		issues = append(issues, agent.Issue{
			Severity: agent.SeverityError,
			Code:     "invalid_json_line",
			Location: agent.Location{Line: r.LineNumber},
			Message:  r.ParseError.Error(),
		})
	}
	return issues
}
