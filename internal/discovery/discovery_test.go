package discovery

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eversession/core/internal/agent"
	"github.com/stretchr/testify/require"
)

func TestSanitizeCwdReplacesPathSeparators(t *testing.T) {
	require.Equal(t, "-Users-test-myrepo", SanitizeCwd("/Users/test/myrepo"))
	require.Equal(t, "-path-with-spaces-here", SanitizeCwd("/path/with spaces/here"))
}

func TestDiscoverAFindsCwdMatch(t *testing.T) {
	claudeHome := t.TempDir()
	cwd := "/Users/test/myrepo"
	dir := AgentAProjectDir(claudeHome, cwd)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	other := filepath.Join(dir, "other.jsonl")
	require.NoError(t, os.WriteFile(other, []byte(
		`{"type":"user","uuid":"u1","sessionId":"wrong","cwd":"/elsewhere","timestamp":"2026-01-01T00:00:00Z"}`+"\n"), 0o644))

	match := filepath.Join(dir, "match.jsonl")
	require.NoError(t, os.WriteFile(match, []byte(
		`{"type":"user","uuid":"u1","sessionId":"abc","cwd":"/Users/test/myrepo","timestamp":"2026-01-02T00:00:00Z"}`+"\n"), 0o644))

	result := DiscoverA(claudeHome, Options{Cwd: cwd})
	require.NotNil(t, result)
	require.Equal(t, match, result.Principal.Path)
	require.Equal(t, ConfidenceHigh, result.Confidence)
}

func TestDiscoverAExplicitIDTakesPrecedence(t *testing.T) {
	claudeHome := t.TempDir()
	cwd := "/Users/test/myrepo"
	dir := AgentAProjectDir(claudeHome, cwd)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "abc-123.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"user","uuid":"u1"}`+"\n"), 0o644))

	result := DiscoverA(claudeHome, Options{Cwd: cwd, ExplicitID: "abc-123"})
	require.NotNil(t, result)
	require.Equal(t, MethodSessionID, result.Principal.Method)
	require.Equal(t, ConfidenceHigh, result.Confidence)
}

func TestDiscoverBFindsDateBucketedCandidate(t *testing.T) {
	codexHome := t.TempDir()
	today := time.Now()
	dir := filepath.Join(sessionsRootB(codexHome), today.Format("2006"), today.Format("01"), today.Format("02"))
	require.NoError(t, os.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "rollout-xyz.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"timestamp":"2026-01-01T00:00:00Z","type":"session_meta","payload":{"id":"xyz","cwd":"/repo"}}`+"\n"), 0o644))

	result := DiscoverB(codexHome, Options{Cwd: "/repo"})
	require.NotNil(t, result)
	require.Equal(t, path, result.Principal.Path)
	require.Equal(t, agent.KindB, result.Principal.Kind)
}

func TestRankPrefersNewerLastActivity(t *testing.T) {
	candidates := []*Candidate{
		{Path: "old", LastActivity: time.Unix(100, 0)},
		{Path: "new", LastActivity: time.Unix(200, 0)},
	}
	rank(candidates)
	require.Equal(t, "new", candidates[0].Path)
}
