// Package telemetry is a best-effort, opt-in-only client that reports
// pipeline outcomes, not CLI commands, to PostHog: an auto-compact run's
// terminal Outcome, which agent kind produced it, and token counts
// before/after.
//
// Uses a fast-timeout HTTP transport and a silent logger (telemetry must
// never be the reason a pipeline run is slow or noisy), an
// EVERSESSION_TELEMETRY_OPTOUT environment override with a
// default-disabled-unless-configured posture, and a machineid-derived
// distinct_id. There's no detached-subprocess variant: the supervisor is a
// long-running process, not a short-lived CLI invocation that exits before
// telemetry could flush, so there's nothing to detach from.
package telemetry

import (
	"net"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/posthog/posthog-go"

	"github.com/eversession/core/internal/redact"
)

var (
	// PostHogAPIKey is set at build time for production.
	PostHogAPIKey = "phc_development_key"
	// PostHogEndpoint is set at build time for production.
	PostHogEndpoint = "https://eu.i.posthog.com"
)

const optOutEnvVar = "EVERSESSION_TELEMETRY_OPTOUT"

// Client is the telemetry interface the supervisor and CLI call into.
type Client interface {
	TrackOutcome(event Event)
	Close()
}

// Event describes one pipeline run worth reporting. Fields are already
// coarse enums/counts, not free text, by construction — the one place a
// caller could slip in something sensitive is Detail, so TrackOutcome runs
// it through internal/redact before it leaves the process.
type Event struct {
	Outcome      string // autocompact.Outcome value, e.g. "success", "aborted_guard"
	AgentKind    string // "agentA" or "agentB"
	Supervised   bool
	TokensBefore int
	TokensAfter  int
	Detail       string // optional free-text context, e.g. an error's Error() string
}

// NoOpClient is a no-op implementation used whenever telemetry is disabled.
type NoOpClient struct{}

func (NoOpClient) TrackOutcome(Event) {}
func (NoOpClient) Close()             {}

// silentLogger suppresses PostHog's own log output: timeouts here are
// expected, not a problem to surface.
type silentLogger struct{}

func (silentLogger) Logf(_ string, _ ...interface{})   {}
func (silentLogger) Debugf(_ string, _ ...interface{}) {}
func (silentLogger) Warnf(_ string, _ ...interface{})  {}
func (silentLogger) Errorf(_ string, _ ...interface{}) {}

// PostHogClient is the real telemetry client.
type PostHogClient struct {
	client     posthog.Client
	machineID  string
	cliVersion string
	mu         sync.RWMutex
}

// NewClient builds a Client based on opt-in settings. enabled being nil or
// false returns a NoOpClient: telemetry here defaults to off, unlike most of
// this module's other ambient concerns, per its spec non-goal wording
// ("OS notifications" and friends are out of scope; telemetry is in scope
// but must never be on by surprise).
//
//nolint:ireturn // factory function, returns NoOpClient or PostHogClient based on settings
func NewClient(version string, enabled *bool) Client {
	if os.Getenv(optOutEnvVar) != "" {
		return NoOpClient{}
	}
	if enabled == nil || !*enabled {
		return NoOpClient{}
	}

	id, err := machineid.ProtectedID("eversession")
	if err != nil {
		return NoOpClient{}
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 100 * time.Millisecond,
		}).DialContext,
		TLSHandshakeTimeout:   100 * time.Millisecond,
		ResponseHeaderTimeout: 100 * time.Millisecond,
	}

	client, err := posthog.NewWithConfig(PostHogAPIKey, posthog.Config{
		Endpoint:           PostHogEndpoint,
		ShutdownTimeout:    100 * time.Millisecond,
		BatchUploadTimeout: 200 * time.Millisecond,
		Transport:          transport,
		Logger:             silentLogger{},
		DisableGeoIP:       posthog.Ptr(true),
		DefaultEventProperties: posthog.NewProperties().
			Set("eversession_version", version).
			Set("os", runtime.GOOS).
			Set("arch", runtime.GOARCH),
	})
	if err != nil {
		return NoOpClient{}
	}

	return &PostHogClient{
		client:     client,
		machineID:  id,
		cliVersion: version,
	}
}

// TrackOutcome records one pipeline run's terminal outcome.
func (p *PostHogClient) TrackOutcome(event Event) {
	p.mu.RLock()
	id := p.machineID
	c := p.client
	p.mu.RUnlock()
	if c == nil {
		return
	}

	props := posthog.NewProperties().
		Set("outcome", event.Outcome).
		Set("agent_kind", event.AgentKind).
		Set("supervised", event.Supervised).
		Set("tokens_before", event.TokensBefore).
		Set("tokens_after", event.TokensAfter)
	if event.Detail != "" {
		props.Set("detail", redact.String(event.Detail))
	}

	//nolint:errcheck // best-effort telemetry, failures should not affect the pipeline
	_ = c.Enqueue(posthog.Capture{
		DistinctId: id,
		Event:      "auto_compact_outcome",
		Properties: props,
	})
}

// Close flushes pending events.
func (p *PostHogClient) Close() {
	p.mu.RLock()
	c := p.client
	p.mu.RUnlock()
	if c != nil {
		_ = c.Close()
	}
}
