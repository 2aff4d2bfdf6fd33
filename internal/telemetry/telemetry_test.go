package telemetry

import "testing"

func TestNewClientOptOut(t *testing.T) {
	t.Setenv(optOutEnvVar, "1")
	enabled := true

	client := NewClient("1.0.0", &enabled)

	if _, ok := client.(NoOpClient); !ok {
		t.Error("EVERSESSION_TELEMETRY_OPTOUT=1 should return NoOpClient even when enabled")
	}
}

func TestNewClientOptOutWithAnyValue(t *testing.T) {
	t.Setenv(optOutEnvVar, "yes")
	enabled := true

	client := NewClient("1.0.0", &enabled)

	if _, ok := client.(NoOpClient); !ok {
		t.Error("EVERSESSION_TELEMETRY_OPTOUT with any value should return NoOpClient")
	}
}

func TestNewClientDisabledByDefault(t *testing.T) {
	client := NewClient("1.0.0", nil)

	if _, ok := client.(NoOpClient); !ok {
		t.Error("nil enabled should default to NoOpClient")
	}
}

func TestNewClientDisabledExplicitly(t *testing.T) {
	disabled := false
	client := NewClient("1.0.0", &disabled)

	if _, ok := client.(NoOpClient); !ok {
		t.Error("enabled=false should return NoOpClient")
	}
}

func TestNoOpClientMethodsDoNotPanic(_ *testing.T) {
	client := NoOpClient{}
	client.TrackOutcome(Event{Outcome: "success"})
	client.Close()
}

func TestPostHogClientTrackOutcomeSkipsWithNilInternalClient(_ *testing.T) {
	client := &PostHogClient{machineID: "test-id"}

	// A zero-value PostHogClient has no posthog.Client wired up; TrackOutcome
	// must no-op rather than panic.
	client.TrackOutcome(Event{Outcome: "aborted_guard", AgentKind: "agentA"})
}

func TestPostHogClientCloseWithNilInternalClient(_ *testing.T) {
	client := &PostHogClient{machineID: "test-id"}
	client.Close()
}
