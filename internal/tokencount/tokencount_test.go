package tokencount

import (
	"strings"
	"testing"

	"github.com/eversession/core/internal/agenta"
	"github.com/eversession/core/internal/agentb"
	"github.com/eversession/core/internal/jsonl"
	"github.com/stretchr/testify/require"
)

func TestCountIsMonotonicInTextLength(t *testing.T) {
	short := Count("hello world")
	long := Count(strings.Repeat("hello world ", 50))
	require.Greater(t, long, short)
}

func TestCountEmptyStringIsZero(t *testing.T) {
	require.Equal(t, 0, Count(""))
}

func TestAConcatenatesChainText(t *testing.T) {
	data := `{"type":"user","uuid":"u1","parentUuid":null,"timestamp":"t0","message":{"content":"short"}}
{"type":"assistant","uuid":"a1","parentUuid":"u1","timestamp":"t1","message":{"id":"m1","content":[{"type":"text","text":"a somewhat longer reply with more words in it"}]}}
`
	tr := agenta.Parse(jsonl.Parse([]byte(data)))
	chain := tr.ActiveChain()
	require.Len(t, chain, 2)

	withBoth := A(chain)
	withOne := A(chain[:1])
	require.Greater(t, withBoth, withOne)
}

func TestBPrefersReportedTokenCountWhenNoCompactionFollows(t *testing.T) {
	data := `{"timestamp":"t0","type":"session_meta","payload":{"id":"s1"}}
{"timestamp":"t1","type":"event_msg","payload":{"token_count":{"total_token_usage":{"total_tokens":4242}}}}
`
	tr := agentb.Parse(jsonl.Parse([]byte(data)))
	require.Equal(t, 4242, B(tr))
}

func TestBReestimatesWhenCompactionFollowsReportedCount(t *testing.T) {
	data := `{"timestamp":"t0","type":"session_meta","payload":{"id":"s1"}}
{"timestamp":"t1","type":"event_msg","payload":{"token_count":{"total_token_usage":{"total_tokens":4242}}}}
{"timestamp":"t2","type":"compacted","payload":{"message":"summary"}}
{"timestamp":"t3","type":"response_item","payload":{"type":"message","text":"fresh content after the compact boundary"}}
`
	tr := agentb.Parse(jsonl.Parse([]byte(data)))
	require.NotEqual(t, 4242, B(tr))
	require.Greater(t, B(tr), 0)
}
