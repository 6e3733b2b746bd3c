// Package paxosconfig holds the small set of process-wide knobs this
// system exposes, as an immutable value built once at startup and
// passed explicitly into every component that needs it.
//
// The teacher repository kept an equivalent set of knobs in a package
// level `var Config = config{}` that every package reached into
// directly. That global is exactly the anti-pattern flagged by this
// system's own design notes, so here the same fields are carried on a
// plain struct and threaded through constructors instead.
package paxosconfig

import "time"

// Config is a plain value passed by copy. The drivers adjust the
// fields of the value Default returns at startup, before handing it to
// any constructor; no component mutates it after that.
type Config struct {
	// Debug enables verbose per-handler trace logging. No protocol effect.
	Debug bool
	// Backoff enables a proposer's bounded random retry after a NACK.
	// Default disabled, per the system's conservative liveness stance.
	Backoff bool
	// BackoffMin/BackoffMax bound the random wait before a proposer
	// re-enters Phase 1a after an abandoned round.
	BackoffMin time.Duration
	BackoffMax time.Duration
}

// Default returns the conservative configuration described in the
// system overview: tracing off, retries off.
func Default() Config {
	return Config{
		Debug:      false,
		Backoff:    false,
		BackoffMin: 50 * time.Millisecond,
		BackoffMax: 250 * time.Millisecond,
	}
}
