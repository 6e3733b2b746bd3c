package dispatch

import (
	"testing"
	"time"

	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/logging"
	"github.com/dvossen/paxosring/internal/transport"
	"github.com/dvossen/paxosring/internal/wire"
)

func TestDispatcherRoutesArrivalsToHandlerInOrder(t *testing.T) {
	network := transport.NewNetwork()
	ep := directory.Endpoint{Host: "127.0.0.1", Port: 10000}
	mt := transport.NewMemory(network, ep)

	received := make(chan wire.Message, 4)
	disp := New(mt, logging.New("[test]", make(chan logging.LoggerEntry, 64)))
	if err := disp.Start(func(msg wire.Message) { received <- msg }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer disp.Stop()

	disp.Send(ep, wire.Message{Header: wire.Elect, CandidateID: 1})
	disp.Send(ep, wire.Message{Header: wire.Elect, CandidateID: 2})

	for _, want := range []directory.NodeID{1, 2} {
		select {
		case msg := <-received:
			if msg.CandidateID != want {
				t.Fatalf("expected candidate %d, got %d", want, msg.CandidateID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message")
		}
	}
}

func TestBroadcastSendsToEveryEndpoint(t *testing.T) {
	network := transport.NewNetwork()
	selfEp := directory.Endpoint{Host: "127.0.0.1", Port: 20000}
	mt := transport.NewMemory(network, selfEp)

	targets := []directory.Endpoint{
		{Host: "127.0.0.1", Port: 20001},
		{Host: "127.0.0.1", Port: 20002},
	}
	receivers := make([]<-chan wire.Message, len(targets))
	for i, ep := range targets {
		target := transport.NewMemory(network, ep)
		ch, err := target.Listen()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		receivers[i] = ch
	}

	disp := New(mt, logging.New("[test]", make(chan logging.LoggerEntry, 64)))
	if err := disp.Start(func(wire.Message) {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer disp.Stop()

	disp.Broadcast(targets, wire.Message{Header: wire.Start})

	for i, ch := range receivers {
		select {
		case msg := <-ch:
			if msg.Header != wire.Start {
				t.Fatalf("target %d: expected START, got %+v", i, msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("target %d: timed out waiting for broadcast", i)
		}
	}
}
