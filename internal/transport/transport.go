// Package transport defines the best-effort, connectionless,
// message-boundary-preserving transport this system requires, and two
// implementations: a real UDP transport for condriver/clidriver, and
// an in-memory one (with optional latency and partition injection) for
// tests and the playground.
package transport

import (
	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/wire"
)

// MaxDatagramSize bounds a single message, mirroring the original
// implementation's BUFFER_SIZE.
const MaxDatagramSize = 4096

// Transport is the only interface the rest of the system depends on.
// Listen must fully arm the receiver (e.g. bind the socket) before
// returning, so that a caller's first Send is guaranteed not to race
// an unarmed receiver -- this is the explicit readiness handshake
// spec.md's design notes call for, in place of a startup sleep.
type Transport interface {
	// Listen arms the transport to receive for this endpoint and
	// returns a channel of inbound messages. Safe to call once.
	Listen() (<-chan wire.Message, error)
	// Send delivers msg to the given endpoint, best-effort. A
	// transport-level send failure (e.g. unreachable in a simulated
	// partition) is reported via the bool return, not an error, since
	// the protocol treats it identically to silent datagram loss.
	Send(to directory.Endpoint, msg wire.Message) bool
	// Close releases any transport resources (e.g. the UDP socket).
	Close() error
}
