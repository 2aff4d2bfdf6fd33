// Package discovery implements session discovery: given a working
// directory, an optional explicit id, an optional content-match string, and
// a lookback window, find the transcript file that is (most likely) the
// live session for that directory.
//
// Agent A candidate scanning hashes the working directory into a
// project-directory name (every non-alphanumeric character becomes a
// dash); Agent B candidate scanning generalizes a
// "~/<home>/tmp/<project-hash>/chats/" sessions-under-a-hashed-project
// idiom to a date-bucketed rollout directory layout.
package discovery

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/eversession/core/internal/agent"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// SanitizeCwd hashes a working directory into Agent A's project-directory
// name: every non-alphanumeric character becomes a dash.
func SanitizeCwd(cwd string) string {
	return nonAlphanumeric.ReplaceAllString(cwd, "-")
}

// Method identifies how a candidate was found.
type Method string

const (
	MethodSessionID Method = "session-id"
	MethodCwdHash   Method = "cwd-hash"
	MethodMatch     Method = "match"
	MethodFallback  Method = "fallback"
)

// Confidence is the discovery result's overall confidence.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Candidate is one scored transcript file.
type Candidate struct {
	Path         string
	Kind         agent.Kind
	Method       Method
	Score        int
	SessionID    string
	Cwd          string
	LastActivity time.Time
	MTime        time.Time
	InvalidLines bool
}

// Options configure a discovery run.
type Options struct {
	Cwd            string
	ExplicitID     string
	Match          string
	LookbackDays   int // Agent B only; default 30
	MaxCandidates  int // default 50
	TailLines      int // default 200
	HeadLines      int // default 200
}

func (o Options) withDefaults() Options {
	if o.LookbackDays <= 0 {
		o.LookbackDays = 30
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = 50
	}
	if o.TailLines <= 0 {
		o.TailLines = 200
	}
	if o.HeadLines <= 0 {
		o.HeadLines = 200
	}
	return o
}

// Result is a discovery run's outcome: a principal hit plus up to 5
// alternatives.
type Result struct {
	Principal    *Candidate
	Confidence   Confidence
	Alternatives []*Candidate
}

// head holds the bounded-read metadata used for scoring.
type head struct {
	sessionID    string
	cwd          string
	hasMeta      bool
	invalidLines bool
	agentMatches bool
}

// scan reads up to opts.HeadLines lines from path looking for identifying
// metadata, and up to opts.TailLines trailing lines for a content match.
// kind selects which fields identify the session (Agent A: "sessionId"/
// "cwd" at top level; Agent B: session_meta.payload.id/cwd).
func scan(path string, kind agent.Kind, opts Options) (head, bool) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from a directory scan under a trusted root
	if err != nil {
		return head{}, false
	}
	lines := strings.Split(string(data), "\n")

	var h head
	limit := opts.HeadLines
	for i, line := range lines {
		if i >= limit {
			break
		}
		if line == "" {
			continue
		}
		id, cwd, ok := identifyingFields(line, kind)
		if !ok {
			h.invalidLines = true
			continue
		}
		if id != "" {
			h.sessionID = id
			h.hasMeta = true
		}
		if cwd != "" {
			h.cwd = cwd
		}
		if looksLikeAgent(line, kind) {
			h.agentMatches = true
		}
	}

	if opts.Match != "" {
		tailStart := len(lines) - opts.TailLines
		if tailStart < 0 {
			tailStart = 0
		}
		for _, line := range lines[tailStart:] {
			if strings.Contains(line, opts.Match) {
				h.agentMatches = true
				break
			}
		}
	}

	return h, true
}

func identifyingFields(line string, kind agent.Kind) (id, cwd string, ok bool) {
	switch kind {
	case agent.KindA:
		return extractField(line, "sessionId"), extractField(line, "cwd"), strings.HasPrefix(strings.TrimSpace(line), "{")
	default:
		return extractField(line, "id"), extractField(line, "cwd"), strings.HasPrefix(strings.TrimSpace(line), "{")
	}
}

// extractField is a best-effort, allocation-light string search for a
// top-level or one-nested "key":"value" pair; discovery's scoring only
// needs presence/value, not full parsing, and the candidate's content is
// re-parsed properly by the grammar layer once a principal is chosen.
func extractField(line, key string) string {
	needle := `"` + key + `":"`
	idx := strings.Index(line, needle)
	if idx < 0 {
		return ""
	}
	rest := line[idx+len(needle):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}

func looksLikeAgent(line string, kind agent.Kind) bool {
	switch kind {
	case agent.KindA:
		return strings.Contains(line, `"type":"user"`) || strings.Contains(line, `"type":"assistant"`)
	default:
		return strings.Contains(line, `"type":"session_meta"`) || strings.Contains(line, `"type":"response_item"`)
	}
}

// score applies a fixed set of integer weights.
func score(h head, wantCwd string, wrongAgent bool) int {
	s := 0
	if h.hasMeta {
		s += 50
	}
	if wantCwd != "" && h.cwd == wantCwd {
		s += 100
	}
	if h.agentMatches {
		s += 20
	}
	if h.invalidLines {
		s -= 50
	}
	if wrongAgent {
		s -= 100
	}
	return s
}

// confidenceFor maps a method and score into an overall confidence.
func confidenceFor(method Method, s int) Confidence {
	switch method {
	case MethodSessionID:
		return ConfidenceHigh
	case MethodFallback:
		return ConfidenceLow
	}
	switch {
	case s >= 140:
		return ConfidenceHigh
	case s >= 80:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// lastTimestamp returns the timestamp field of the last non-empty line of
// path, used to break ties by last-activity.
func lastTimestamp(path string) time.Time {
	f, err := os.Open(path) //nolint:gosec // path comes from a directory scan under a trusted root
	if err != nil {
		return time.Time{}
	}
	defer f.Close()

	var last string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if l := sc.Text(); l != "" {
			last = l
		}
	}
	ts := extractField(last, "timestamp")
	if ts == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}
	}
	return t
}

// rank orders candidates: newer last-activity > newer file mtime > higher
// score.
func rank(candidates []*Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.LastActivity.Equal(b.LastActivity) {
			return a.LastActivity.After(b.LastActivity)
		}
		if !a.MTime.Equal(b.MTime) {
			return a.MTime.After(b.MTime)
		}
		return a.Score > b.Score
	})
}

func topResult(candidates []*Candidate, method Method) *Result {
	if len(candidates) == 0 {
		return nil
	}
	rank(candidates)
	principal := candidates[0]
	alts := candidates[1:]
	if len(alts) > 5 {
		alts = alts[:5]
	}
	return &Result{
		Principal:    principal,
		Confidence:   confidenceFor(method, principal.Score),
		Alternatives: alts,
	}
}

func walkFiles(root string, pattern func(name string) bool) []string {
	var out []string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d == nil || d.IsDir() {
			return nil
		}
		if pattern(d.Name()) {
			out = append(out, path)
		}
		return nil
	})
	return out
}
