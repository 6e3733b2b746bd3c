package transport

import (
	"math/rand"
	"sync"
	"time"

	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/wire"
)

// Network is a shared in-process hub that multiple MemoryTransport
// endpoints register with, adapted from the teacher playground's
// networkController: it supports injected latency and network
// partitions so tests and the playground can exercise the same
// failure scenarios spec.md section 8 describes (acceptor minority
// failure, NACK races) without real sockets.
type Network struct {
	mu      sync.Mutex
	inboxes map[directory.Endpoint]chan wire.Message
	splits  [][]directory.Endpoint
	latency time.Duration
	jitter  time.Duration
}

// NewNetwork creates a hub with no partitions (every endpoint can
// reach every other) and no artificial latency.
func NewNetwork() *Network {
	return &Network{
		inboxes: make(map[directory.Endpoint]chan wire.Message),
	}
}

// SetLatency configures a fixed delay plus up to `jitter` of added
// random delay on every delivered message.
func (n *Network) SetLatency(latency, jitter time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.latency = latency
	n.jitter = jitter
}

// SetPartitions splits the cluster into sets that can only reach other
// members of the same set. An empty splits list means "fully
// connected". Matches the teacher's network-splits command.
func (n *Network) SetPartitions(splits [][]directory.Endpoint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.splits = splits
}

func (n *Network) canReach(from, to directory.Endpoint) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.splits) == 0 {
		return true
	}
	for _, split := range n.splits {
		if contains(split, from) && contains(split, to) {
			return true
		}
	}
	return false
}

func contains(set []directory.Endpoint, e directory.Endpoint) bool {
	for _, x := range set {
		if x == e {
			return true
		}
	}
	return false
}

func (n *Network) register(e directory.Endpoint) chan wire.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ch, ok := n.inboxes[e]; ok {
		return ch
	}
	ch := make(chan wire.Message, 1024)
	n.inboxes[e] = ch
	return ch
}

func (n *Network) deliver(from, to directory.Endpoint, msg wire.Message) bool {
	if !n.canReach(from, to) {
		return false
	}
	n.mu.Lock()
	ch, ok := n.inboxes[to]
	latency, jitter := n.latency, n.jitter
	n.mu.Unlock()
	if !ok {
		return false
	}

	deliverNow := func() {
		select {
		case ch <- msg:
		default:
			// Inbox full: treat as loss rather than blocking the sender.
		}
	}

	if latency == 0 && jitter == 0 {
		deliverNow()
		return true
	}

	delay := latency
	if jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(jitter)))
	}
	go func() {
		time.Sleep(delay)
		deliverNow()
	}()
	return true
}

// MemoryTransport is a Transport backed by a shared Network.
type MemoryTransport struct {
	self    directory.Endpoint
	network *Network
	inbox   chan wire.Message
}

// NewMemory creates a transport for self on the given hub.
func NewMemory(network *Network, self directory.Endpoint) *MemoryTransport {
	return &MemoryTransport{self: self, network: network}
}

func (t *MemoryTransport) Listen() (<-chan wire.Message, error) {
	t.inbox = t.network.register(t.self)
	return t.inbox, nil
}

func (t *MemoryTransport) Send(to directory.Endpoint, msg wire.Message) bool {
	return t.network.deliver(t.self, to, msg)
}

func (t *MemoryTransport) Close() error {
	return nil
}
