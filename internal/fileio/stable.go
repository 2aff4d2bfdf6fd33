package fileio

import (
	"time"

	"github.com/eversession/core/internal/evscore"
)

// StableOptions configures WaitStable.
type StableOptions struct {
	PollInterval time.Duration // default 100ms
	StableFor    time.Duration // default 200ms; must see two identical samples spanning at least this long
	Timeout      time.Duration // default 5s
	Sleep        func(time.Duration)
	Clock        evscore.Clock
}

func (o StableOptions) withDefaults() StableOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = 100 * time.Millisecond
	}
	if o.StableFor <= 0 {
		o.StableFor = 200 * time.Millisecond
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	if o.Clock == nil {
		o.Clock = evscore.SystemClock{}
	}
	return o
}

// WaitStable polls path's (mtime_ms, size) every PollInterval, declaring it
// stable once two successive samples are identical and the elapsed time
// between the first of those samples and now is at least StableFor.
// Returns the final StatToken. Fails with evscore.ErrBusyTimeout if the
// file never stabilizes within Timeout.
func WaitStable(path string, opts StableOptions) (StatToken, error) {
	opts = opts.withDefaults()

	deadline := opts.Clock.Now().Add(opts.Timeout)

	last, err := Stat(path)
	if err != nil {
		return StatToken{}, err
	}
	lastSeenAt := opts.Clock.Now()

	for {
		if opts.Clock.Now().After(deadline) {
			return StatToken{}, evscore.ErrBusyTimeout
		}

		opts.Sleep(opts.PollInterval)

		current, err := Stat(path)
		if err != nil {
			return StatToken{}, err
		}

		now := opts.Clock.Now()
		if current == last {
			if now.Sub(lastSeenAt) >= opts.StableFor {
				return current, nil
			}
			continue
		}

		last = current
		lastSeenAt = now
	}
}
