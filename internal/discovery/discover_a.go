package discovery

import (
	"os"
	"path/filepath"

	"github.com/eversession/core/internal/agent"
)

// AgentAProjectDir returns ~/.claude-equivalent project directory for cwd:
// globalClaudeHome/projects/<sanitized-cwd>, the directory Agent A scans
// for candidate transcripts.
func AgentAProjectDir(claudeHome, cwd string) string {
	return filepath.Join(claudeHome, "projects", SanitizeCwd(cwd))
}

// DiscoverA runs session discovery for Agent A: candidates are *.jsonl
// files directly under the cwd-hashed project directory.
func DiscoverA(claudeHome string, opts Options) *Result {
	opts = opts.withDefaults()

	if opts.ExplicitID != "" {
		path := filepath.Join(AgentAProjectDir(claudeHome, opts.Cwd), opts.ExplicitID+".jsonl")
		if info, err := os.Stat(path); err == nil {
			return &Result{
				Principal: &Candidate{
					Path: path, Kind: agent.KindA, Method: MethodSessionID,
					SessionID: opts.ExplicitID, MTime: info.ModTime(), LastActivity: lastTimestamp(path),
				},
				Confidence: ConfidenceHigh,
			}
		}
	}

	dir := AgentAProjectDir(claudeHome, opts.Cwd)
	paths := walkFiles(dir, func(name string) bool {
		return filepath.Ext(name) == ".jsonl"
	})
	if len(paths) > opts.MaxCandidates {
		paths = paths[:opts.MaxCandidates]
	}

	var candidates []*Candidate
	for _, p := range paths {
		h, ok := scan(p, agent.KindA, opts)
		if !ok {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		method := MethodCwdHash
		if opts.Match != "" {
			method = MethodMatch
		}
		candidates = append(candidates, &Candidate{
			Path:         p,
			Kind:         agent.KindA,
			Method:       method,
			Score:        score(h, opts.Cwd, false),
			SessionID:    h.sessionID,
			Cwd:          h.cwd,
			MTime:        info.ModTime(),
			LastActivity: lastTimestamp(p),
			InvalidLines: h.invalidLines,
		})
	}

	result := topResult(candidates, MethodCwdHash)
	if result != nil {
		return result
	}

	// Fallback: no scorable candidate found; if exactly one file exists in
	// the project directory, return it at low confidence rather than
	// nothing.
	if len(paths) == 1 {
		info, err := os.Stat(paths[0])
		if err == nil {
			return &Result{
				Principal: &Candidate{
					Path: paths[0], Kind: agent.KindA, Method: MethodFallback,
					MTime: info.ModTime(), LastActivity: lastTimestamp(paths[0]),
				},
				Confidence: ConfidenceLow,
			}
		}
	}
	return nil
}
