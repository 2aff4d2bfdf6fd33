// Package tokencount estimates the token size of a transcript's active
// content for the compaction planner. Grounded on the corpus's shared
// choice of github.com/pkoukk/tiktoken-go (roelfdiedericks-goclaw,
// kadirpekel-hector, yangruihan-go-pi all vendor it) with the cl100k_base
// encoding, the closest offline approximation to Anthropic's public
// tokenizer available in Go: no library in the pack ships an Anthropic-native
// BPE table, and the estimate only needs to be monotonic and roughly
// bucketed, not an exact count.
package tokencount

import (
	"strings"
	"sync"

	"github.com/eversession/core/internal/agenta"
	"github.com/eversession/core/internal/agentb"
	"github.com/eversession/core/internal/jsonl"
	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		enc, _ = tiktoken.GetEncoding("cl100k_base")
	})
	return enc
}

// Count returns the estimated BPE token length of s. Falls back to a
// character-based approximation if the encoding failed to load, so a
// missing tokenizer degrades the estimate instead of panicking.
func Count(s string) int {
	if s == "" {
		return 0
	}
	if e := encoding(); e != nil {
		return len(e.Encode(s, nil, nil))
	}
	return len(s)/4 + 1
}

// A estimates the token size of an Agent A active chain: the normalized
// text of every entry concatenated in file order.
func A(chain []*agenta.Entry) int {
	var b strings.Builder
	for _, e := range chain {
		writeEntryText(&b, e)
	}
	return Count(b.String())
}

func writeEntryText(b *strings.Builder, e *agenta.Entry) {
	if !e.ContentIsBlocks {
		b.WriteString(e.ContentText)
		b.WriteByte('\n')
		return
	}
	for _, block := range e.Content {
		switch block.Type {
		case agenta.BlockText, agenta.BlockThinking:
			b.WriteString(block.Text)
			b.WriteByte('\n')
		case agenta.BlockToolUse:
			b.WriteString(block.ToolName)
			b.WriteByte('\n')
		case agenta.BlockToolResult:
			writeRawContentText(b, block.Raw)
		}
	}
}

// writeRawContentText reads a tool_result block's "content" field, which may
// be a plain string or an array of {type,text} blocks; ContentBlock doesn't
// decode it since the fixer/validator never need it, only the estimator.
func writeRawContentText(b *strings.Builder, raw *jsonl.OrderedValue) {
	if raw == nil || !raw.IsObject() {
		return
	}
	content := raw.Get("content")
	if content == nil {
		return
	}
	switch content.Kind {
	case jsonl.KindString:
		b.WriteString(content.Str)
		b.WriteByte('\n')
	case jsonl.KindArray:
		for _, item := range content.Arr {
			if item == nil || !item.IsObject() {
				continue
			}
			if tv := item.Get("text"); tv != nil {
				if s, ok := tv.AsString(); ok {
					b.WriteString(s)
					b.WriteByte('\n')
				}
			}
		}
	}
}

// B estimates the token size of an Agent B transcript: prefer the last
// token_count event_msg's reported total; if a compacted
// line appears after it, that total is stale, so re-estimate from the
// response items still visible after the last compact boundary.
func B(tr *agentb.Transcript) int {
	reported, hasReported := lastTokenCount(tr)
	compacted, hasCompacted := tr.LastCompacted()

	if hasReported && (!hasCompacted || compacted.LineNumber <= reportedAt(tr)) {
		return reported
	}

	var b strings.Builder
	for _, l := range tr.VisibleResponseItems() {
		b.WriteString(LineText(l))
		b.WriteByte('\n')
	}
	return Count(b.String())
}

// LineText extracts the best-effort natural-language text out of a
// response_item payload, for per-line cost estimation by the compaction
// planner as well as B's whole-transcript re-estimate above.
func LineText(l *agentb.Line) string {
	var b strings.Builder
	writeLineText(&b, l)
	return b.String()
}

func lastTokenCount(tr *agentb.Transcript) (int, bool) {
	var total int
	var found bool
	for _, l := range tr.Lines {
		if n, ok := l.TotalTokenUsage(); ok {
			total, found = n, true
		}
	}
	return total, found
}

// reportedAt returns the line number of the last token_count event_msg, or 0
// if none exists, used only to compare against the last compacted line.
func reportedAt(tr *agentb.Transcript) int {
	var line int
	for _, l := range tr.Lines {
		if _, ok := l.TotalTokenUsage(); ok {
			line = l.LineNumber
		}
	}
	return line
}

func writeLineText(b *strings.Builder, l *agentb.Line) {
	if !l.Payload.IsObject() {
		return
	}
	for _, key := range []string{"text", "arguments", "output", "summary"} {
		if v := l.Payload.Get(key); v != nil {
			if s, ok := v.AsString(); ok {
				b.WriteString(s)
				b.WriteByte('\n')
			}
		}
	}
	if content := l.Payload.Get("content"); content != nil && content.Kind == jsonl.KindArray {
		for _, item := range content.Arr {
			if item == nil || !item.IsObject() {
				continue
			}
			if tv := item.Get("text"); tv != nil {
				if s, ok := tv.AsString(); ok {
					b.WriteString(s)
					b.WriteByte('\n')
				}
			}
		}
	}
}
