package discovery

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eversession/core/internal/agent"
)

// sessionsRootB returns <codexHome>/sessions, the root Agent B buckets
// rollout transcripts under YYYY/MM/DD/ subdirectories.
func sessionsRootB(codexHome string) string {
	return filepath.Join(codexHome, "sessions")
}

// DiscoverB runs session discovery for Agent B: candidates are
// rollout-*.jsonl files under date-bucketed subdirectories within the
// lookback window.
func DiscoverB(codexHome string, opts Options) *Result {
	opts = opts.withDefaults()
	root := sessionsRootB(codexHome)

	var dayDirs []string
	now := time.Now()
	for d := 0; d <= opts.LookbackDays; d++ {
		day := now.AddDate(0, 0, -d)
		dayDirs = append(dayDirs, filepath.Join(root, day.Format("2006"), day.Format("01"), day.Format("02")))
	}

	if opts.ExplicitID != "" {
		for _, dir := range dayDirs {
			paths := walkFiles(dir, func(name string) bool {
				return filepath.Ext(name) == ".jsonl" && containsID(name, opts.ExplicitID)
			})
			if len(paths) > 0 {
				info, err := os.Stat(paths[0])
				if err == nil {
					return &Result{
						Principal: &Candidate{
							Path: paths[0], Kind: agent.KindB, Method: MethodSessionID,
							SessionID: opts.ExplicitID, MTime: info.ModTime(), LastActivity: lastTimestamp(paths[0]),
						},
						Confidence: ConfidenceHigh,
					}
				}
			}
		}
	}

	var candidates []*Candidate
	for _, dir := range dayDirs {
		paths := walkFiles(dir, func(name string) bool {
			return filepath.Ext(name) == ".jsonl"
		})
		for _, p := range paths {
			if len(candidates) >= opts.MaxCandidates {
				break
			}
			h, ok := scan(p, agent.KindB, opts)
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
				Kind:         agent.KindB,
				Method:       method,
				Score:        score(h, opts.Cwd, false),
				SessionID:    h.sessionID,
				Cwd:          h.cwd,
				MTime:        info.ModTime(),
				LastActivity: lastTimestamp(p),
				InvalidLines: h.invalidLines,
			})
		}
	}

	return topResult(candidates, MethodCwdHash)
}

func containsID(name, id string) bool {
	return id != "" && strings.Contains(name, id)
}
