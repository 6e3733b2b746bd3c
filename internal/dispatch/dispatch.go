// Package dispatch implements the per-node message dispatcher: a
// receiver that only ever appends to a queue, and a single worker that
// drains it and calls a handler, serially. This is the sole mutator of
// a node's Paxos/election/role state; every other goroutine in the
// process only ever sends into the queue or reads already-published
// results.
package dispatch

import (
	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/logging"
	"github.com/dvossen/paxosring/internal/transport"
	"github.com/dvossen/paxosring/internal/wire"
)

// Handler processes one message. Called only from the worker
// goroutine, so implementations never need their own locking for
// state the dispatcher owns.
type Handler func(wire.Message)

// Dispatcher owns a transport and a handler, and runs the worker half
// of the receiver/worker pair described in spec.md section 4.1; the
// receiver side is the transport's own arrival channel.
type Dispatcher struct {
	transport transport.Transport
	logger    *logging.Logger
	handler   Handler
	quit      chan struct{}
}

// New creates a Dispatcher. Call Start to arm the transport and begin
// processing.
func New(t transport.Transport, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{transport: t, logger: logger, quit: make(chan struct{})}
}

// Start arms the transport (synchronously -- for UDP this binds the
// socket) and spawns the worker goroutine that drains the channel
// Listen returned. Returning
// only after Listen succeeds is the readiness handshake described in
// SPEC_FULL.md 6.1: by the time Start returns, the caller's first Send
// is guaranteed to race a fully-armed receiver rather than one that
// hasn't bound yet.
func (d *Dispatcher) Start(handler Handler) error {
	d.handler = handler
	arrivals, err := d.transport.Listen()
	if err != nil {
		return err
	}

	go d.worker(arrivals)
	return nil
}

func (d *Dispatcher) worker(arrivals <-chan wire.Message) {
	for {
		select {
		case msg, ok := <-arrivals:
			if !ok {
				return
			}
			d.handler(msg)
		case <-d.quit:
			return
		}
	}
}

// Send delivers msg to the given endpoint via the underlying
// transport. The bool result mirrors transport.Transport.Send: false
// means best-effort delivery failed (loss or a simulated partition),
// never a process-visible error.
func (d *Dispatcher) Send(to directory.Endpoint, msg wire.Message) bool {
	return d.transport.Send(to, msg)
}

// Broadcast sends msg to every endpoint in to, ignoring individual
// delivery failures (datagram loss is expected and handled by
// quorum/majority logic upstream, not by the dispatcher).
func (d *Dispatcher) Broadcast(to []directory.Endpoint, msg wire.Message) {
	for _, e := range to {
		d.transport.Send(e, msg)
	}
}

// Stop terminates the worker goroutine and releases the transport.
func (d *Dispatcher) Stop() {
	close(d.quit)
	d.transport.Close()
}
