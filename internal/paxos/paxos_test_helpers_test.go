package paxos

import (
	"sync"
	"testing"

	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/dispatch"
	"github.com/dvossen/paxosring/internal/logging"
	"github.com/dvossen/paxosring/internal/wire"
)

// recordingTransport captures every Send, keyed by destination endpoint,
// without any real delivery -- the tests in this package drive the
// proposer/acceptor/learner handlers directly.
type recordingTransport struct {
	mu     sync.Mutex
	sent   map[directory.Endpoint][]wire.Message
	notify chan struct{} // buffered; receives one signal per Send, for tests waiting on an async send
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{sent: make(map[directory.Endpoint][]wire.Message), notify: make(chan struct{}, 1024)}
}

func (t *recordingTransport) Listen() (<-chan wire.Message, error) {
	return make(chan wire.Message), nil
}

func (t *recordingTransport) Send(to directory.Endpoint, msg wire.Message) bool {
	t.mu.Lock()
	t.sent[to] = append(t.sent[to], msg)
	t.mu.Unlock()
	select {
	case t.notify <- struct{}{}:
	default:
	}
	return true
}

func (t *recordingTransport) sentTo(to directory.Endpoint) []wire.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]wire.Message, len(t.sent[to]))
	copy(out, t.sent[to])
	return out
}

func (t *recordingTransport) Close() error { return nil }

func newTestDispatcher(t *testing.T) (*dispatch.Dispatcher, *recordingTransport) {
	t.Helper()
	rt := newRecordingTransport()
	disp := dispatch.New(rt, logging.New("[test]", make(chan logging.LoggerEntry, 64)))
	if err := disp.Start(func(wire.Message) {}); err != nil {
		t.Fatalf("unexpected dispatcher start error: %v", err)
	}
	return disp, rt
}

func testLogger() *logging.Logger {
	return logging.New("[test]", make(chan logging.LoggerEntry, 64))
}

func endpointFor(id directory.NodeID) directory.Endpoint {
	return directory.Endpoint{Host: "127.0.0.1", Port: 10000 + int(id)}
}
