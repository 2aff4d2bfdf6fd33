package compaction

import (
	"strings"

	"github.com/eversession/core/internal/agenta"
	"github.com/eversession/core/internal/agentb"
	"github.com/eversession/core/internal/summarize"
	"github.com/eversession/core/internal/tokencount"
)

// PromptEntriesA converts an Agent A selection's removed range into the
// compact role-prefixed entries the summarizer's FormatPrompt expects. The
// summarize package never imports agenta directly — this adapter boundary
// keeps all grammar knowledge here.
func PromptEntriesA(chain []*agenta.Entry, uuids []string) []summarize.PromptEntry {
	want := make(map[string]bool, len(uuids))
	for _, id := range uuids {
		want[id] = true
	}
	var out []summarize.PromptEntry
	for _, e := range chain {
		if !want[e.UUID] {
			continue
		}
		out = append(out, summarize.PromptEntry{Role: entryRoleA(e), Text: entryTextA(e)})
	}
	return out
}

func entryRoleA(e *agenta.Entry) string {
	switch e.Type {
	case agenta.EntryUser:
		return "user"
	case agenta.EntryAssistant:
		return "assistant"
	case agenta.EntrySystem:
		return "system"
	default:
		return "other"
	}
}

func entryTextA(e *agenta.Entry) string {
	if !e.ContentIsBlocks {
		return e.ContentText
	}
	var b strings.Builder
	for _, block := range e.Content {
		switch block.Type {
		case agenta.BlockText, agenta.BlockThinking:
			b.WriteString(block.Text)
			b.WriteByte(' ')
		case agenta.BlockToolUse:
			b.WriteString("[used tool " + block.ToolName + "]")
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(b.String())
}

// PromptEntriesB converts an Agent B selection's removed lines into
// role-prefixed entries, reusing tokencount.LineText for the text extraction
// since the token estimator and the summarizer want the same natural-
// language projection of a response_item payload.
func PromptEntriesB(tr *agentb.Transcript, lines []int) []summarize.PromptEntry {
	want := make(map[int]bool, len(lines))
	for _, ln := range lines {
		want[ln] = true
	}
	var out []summarize.PromptEntry
	for _, l := range tr.Lines {
		if !want[l.LineNumber] {
			continue
		}
		out = append(out, summarize.PromptEntry{Role: roleB(l), Text: tokencount.LineText(l)})
	}
	return out
}

func roleB(l *agentb.Line) string {
	if l.Payload == nil || !l.Payload.IsObject() {
		return "other"
	}
	if rv := l.Payload.Get("role"); rv != nil {
		if s, ok := rv.AsString(); ok && s != "" {
			return s
		}
	}
	return "other"
}
