package fork

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eversession/core/internal/agent"
	"github.com/stretchr/testify/require"
)

func TestForkAWritesNewUUIDNamedFileAndRewritesSessionID(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "1111aaaa-1111-1111-1111-111111111111.jsonl")
	src := `{"type":"user","uuid":"u1","parentUuid":null,"sessionId":"1111aaaa-1111-1111-1111-111111111111","timestamp":"2024-01-01T00:00:00Z","message":{"content":"hi"}}
{"type":"assistant","uuid":"a1","parentUuid":"u1","sessionId":"1111aaaa-1111-1111-1111-111111111111","timestamp":"2024-01-01T00:00:01Z","message":{"content":"hello"}}
`
	require.NoError(t, os.WriteFile(srcPath, []byte(src), 0o600))

	result, err := Fork(srcPath, agent.KindA)
	require.NoError(t, err)
	require.NotEqual(t, "1111aaaa-1111-1111-1111-111111111111", result.NewID)
	require.Equal(t, filepath.Join(dir, result.NewID+".jsonl"), result.NewPath)

	// Source untouched.
	unchanged, err := os.ReadFile(srcPath)
	require.NoError(t, err)
	require.Equal(t, src, string(unchanged))

	forked, err := os.ReadFile(result.NewPath)
	require.NoError(t, err)
	require.NotContains(t, string(forked), "1111aaaa-1111-1111-1111-111111111111")
	require.Equal(t, 2, strings.Count(string(forked), result.NewID))
}

func TestForkBReplacesTrailingIDWhenFilenameEndsWithOldID(t *testing.T) {
	dir := t.TempDir()
	oldID := "2222bbbb-2222-2222-2222-222222222222"
	srcPath := filepath.Join(dir, "rollout-2024-01-01T00-00-00-"+oldID+".jsonl")
	src := `{"timestamp":"2024-01-01T00:00:00Z","type":"session_meta","payload":{"id":"` + oldID + `"}}
{"timestamp":"2024-01-01T00:00:01Z","type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"hi"}]}}
`
	require.NoError(t, os.WriteFile(srcPath, []byte(src), 0o600))

	result, err := Fork(srcPath, agent.KindB)
	require.NoError(t, err)
	wantPath := filepath.Join(dir, "rollout-2024-01-01T00-00-00-"+result.NewID+".jsonl")
	require.Equal(t, wantPath, result.NewPath)

	forked, err := os.ReadFile(result.NewPath)
	require.NoError(t, err)
	require.Contains(t, string(forked), result.NewID)
	require.NotContains(t, string(forked), oldID)
}

func TestForkBFallsBackToRolloutForkNameWhenFilenameDoesNotMatch(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "rollout.jsonl")
	src := `{"timestamp":"2024-01-01T00:00:00Z","type":"session_meta","payload":{"id":"3333cccc-3333-3333-3333-333333333333"}}
`
	require.NoError(t, os.WriteFile(srcPath, []byte(src), 0o600))

	result, err := Fork(srcPath, agent.KindB)
	require.NoError(t, err)
	wantPath := filepath.Join(dir, "rollout-fork-"+result.NewID+".jsonl")
	require.Equal(t, wantPath, result.NewPath)
}
