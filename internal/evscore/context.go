// Package evscore holds the process-wide configuration and clock that every
// other package threads explicitly instead of reaching for globals.
package evscore

import (
	"os"
	"time"
)

// ReloadMode controls how a supervised auto-compact result is turned into a
// restart request.
type ReloadMode string

const (
	ReloadAuto   ReloadMode = "auto"
	ReloadManual ReloadMode = "manual"
	ReloadOff    ReloadMode = "off"
)

// Clock is injected everywhere a timestamp is produced so tests can freeze it.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FrozenClock is a test Clock that always returns the same instant unless
// advanced explicitly.
type FrozenClock struct {
	t time.Time
}

func NewFrozenClock(t time.Time) *FrozenClock { return &FrozenClock{t: t} }

func (c *FrozenClock) Now() time.Time { return c.t }

func (c *FrozenClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// Context carries every piece of process-wide state: the global storage
// root, per-agent supervisor environment, and the injected clock. It is
// populated once at program entry and passed explicitly through every API
// rather than held in package-level caches, a deviation recorded in
// DESIGN.md.
type Context struct {
	// GlobalRoot is the directory under which sessions/, active/ and
	// telemetry.jsonl live.
	GlobalRoot string

	// CodexHome is the root for Agent B sessions (CODEX_HOME, defaults to
	// ~/.codex).
	CodexHome string

	// CodexStatePath overrides the byCwd->thread_id cache file location
	// (EVS_CODEX_STATE_PATH).
	CodexStatePath string

	// ClaudeControlDir / ClaudeRunID mark the process as running under an
	// Agent A supervisor (EVS_CLAUDE_CONTROL_DIR / EVS_CLAUDE_RUN_ID).
	ClaudeControlDir string
	ClaudeRunID      string
	ClaudeReloadMode ReloadMode

	// CodexControlDir / CodexRunID are the Agent B equivalents.
	CodexControlDir string
	CodexRunID      string

	// ClaudeTranscriptPath is the fallback transcript hint for
	// non-supervised invocations (EVS_CLAUDE_TRANSCRIPT_PATH).
	ClaudeTranscriptPath string

	Clock Clock
}

// FromEnvironment reads the relevant environment variables exactly once and
// returns a populated Context. Callers that need determinism in tests
// should build a Context literal instead.
func FromEnvironment() *Context {
	home, _ := os.UserHomeDir()
	codexHome := os.Getenv("CODEX_HOME")
	if codexHome == "" {
		codexHome = home + "/.codex"
	}

	globalRoot := os.Getenv("EVERSESSION_HOME")
	if globalRoot == "" {
		globalRoot = home + "/.eversession"
	}

	return &Context{
		GlobalRoot:           globalRoot,
		CodexHome:            codexHome,
		CodexStatePath:       os.Getenv("EVS_CODEX_STATE_PATH"),
		ClaudeControlDir:     os.Getenv("EVS_CLAUDE_CONTROL_DIR"),
		ClaudeRunID:          os.Getenv("EVS_CLAUDE_RUN_ID"),
		ClaudeReloadMode:     ReloadMode(os.Getenv("EVS_CLAUDE_RELOAD_MODE")),
		CodexControlDir:      os.Getenv("EVS_CODEX_CONTROL_DIR"),
		CodexRunID:           os.Getenv("EVS_CODEX_RUN_ID"),
		ClaudeTranscriptPath: os.Getenv("EVS_CLAUDE_TRANSCRIPT_PATH"),
		Clock:                SystemClock{},
	}
}

// SupervisedAgentA reports whether this process is running under an Agent A
// supervisor (both control dir and run id are required).
func (c *Context) SupervisedAgentA() bool {
	return c.ClaudeControlDir != "" && c.ClaudeRunID != ""
}

// SupervisedAgentB reports whether this process is running under an Agent B
// supervisor.
func (c *Context) SupervisedAgentB() bool {
	return c.CodexControlDir != "" && c.CodexRunID != ""
}

// Supervised reports whether either supervisor environment is present.
func (c *Context) Supervised() bool {
	return c.SupervisedAgentA() || c.SupervisedAgentB()
}

func (c *Context) now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

// Now returns the context's current time, UTC, ISO-8601 friendly.
func (c *Context) Now() time.Time {
	return c.now().UTC()
}
