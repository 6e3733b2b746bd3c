package election

import (
	"strings"
	"testing"

	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/dispatch"
	"github.com/dvossen/paxosring/internal/logging"
	"github.com/dvossen/paxosring/internal/wire"
	"github.com/go-test/deep"
)

const threeNodeDirectory = `PROPOSERS 1
ACCEPTORS 1
LEARNERS 1
127.0.0.1 10000 con
127.0.0.1 10001 con
127.0.0.1 10002 con
127.0.0.1 10003 cli
`

// recordingTransport captures every message handed to Send, without any
// real delivery -- election tests drive HandleElect/HandleElected
// directly rather than through a live worker loop.
type recordingTransport struct {
	sent []sentMessage
}

type sentMessage struct {
	to  directory.Endpoint
	msg wire.Message
}

func (t *recordingTransport) Listen() (<-chan wire.Message, error) {
	return make(chan wire.Message), nil
}

func (t *recordingTransport) Send(to directory.Endpoint, msg wire.Message) bool {
	t.sent = append(t.sent, sentMessage{to: to, msg: msg})
	return true
}

func (t *recordingTransport) Close() error { return nil }

func newEngineForTest(t *testing.T, self directory.NodeID) (*Engine, *recordingTransport, *directory.Directory) {
	t.Helper()
	dir, err := directory.ParseDirectory(strings.NewReader(threeNodeDirectory))
	if err != nil {
		t.Fatalf("unexpected directory error: %v", err)
	}
	rt := &recordingTransport{}
	disp := dispatch.New(rt, logging.New("[test]", make(chan logging.LoggerEntry, 64)))
	if err := disp.Start(func(wire.Message) {}); err != nil {
		t.Fatalf("unexpected dispatcher start error: %v", err)
	}
	return New(dir, self, disp, logging.New("[test]", make(chan logging.LoggerEntry, 64))), rt, dir
}

func TestBeginSendsOwnIDToSuccessor(t *testing.T) {
	e, rt, dir := newEngineForTest(t, 0)
	e.Begin()

	if len(rt.sent) != 1 {
		t.Fatalf("expected exactly one ELECT send, got %d", len(rt.sent))
	}
	want := sentMessage{
		to:  dir.Endpoint(1),
		msg: wire.Message{Header: wire.Elect, SenderID: 0, CandidateID: 0},
	}
	if diff := deep.Equal(rt.sent[0], want); diff != nil {
		t.Fatalf("mismatch: %v", diff)
	}
}

func TestHandleElectForwardsLargerCandidateUnchanged(t *testing.T) {
	e, rt, dir := newEngineForTest(t, 1)
	e.HandleElect(wire.Message{Header: wire.Elect, SenderID: 0, CandidateID: 2})

	if len(rt.sent) != 1 {
		t.Fatalf("expected one forward, got %d", len(rt.sent))
	}
	want := sentMessage{to: dir.Endpoint(2), msg: wire.Message{Header: wire.Elect, SenderID: 1, CandidateID: 2}}
	if diff := deep.Equal(rt.sent[0], want); diff != nil {
		t.Fatalf("mismatch: %v", diff)
	}
}

func TestHandleElectReplacesSmallerCandidateWithOwnID(t *testing.T) {
	e, rt, dir := newEngineForTest(t, 1)
	e.HandleElect(wire.Message{Header: wire.Elect, SenderID: 0, CandidateID: 0})

	want := sentMessage{to: dir.Endpoint(2), msg: wire.Message{Header: wire.Elect, SenderID: 1, CandidateID: 1}}
	if diff := deep.Equal(rt.sent[0], want); diff != nil {
		t.Fatalf("mismatch: %v", diff)
	}
}

func TestHandleElectDropsSmallerCandidateAfterForwardingLarger(t *testing.T) {
	e, rt, _ := newEngineForTest(t, 1)
	e.HandleElect(wire.Message{Header: wire.Elect, SenderID: 0, CandidateID: 2}) // forwards 2, maxForwarded=2
	e.HandleElect(wire.Message{Header: wire.Elect, SenderID: 0, CandidateID: 0}) // smaller, dropped

	if len(rt.sent) != 1 {
		t.Fatalf("expected the second, smaller candidate to be dropped, but got %d sends", len(rt.sent))
	}
}

func TestHandleElectDeclaresLeaderOnOwnID(t *testing.T) {
	e, rt, dir := newEngineForTest(t, 2)
	e.HandleElect(wire.Message{Header: wire.Elect, SenderID: 1, CandidateID: 2})

	if len(rt.sent) != 1 || rt.sent[0].msg.Header != wire.Elected {
		t.Fatalf("expected node 2 to announce ELECTED, got %+v", rt.sent)
	}
	want := sentMessage{to: dir.Endpoint(0), msg: wire.Message{Header: wire.Elected, SenderID: 2, LeaderID: 2}}
	if diff := deep.Equal(rt.sent[0], want); diff != nil {
		t.Fatalf("mismatch: %v", diff)
	}

	// The leader learns its own result once its ELECTED announcement has
	// cycled the ring and come back to it.
	e.HandleElected(wire.Message{Header: wire.Elected, SenderID: 1, LeaderID: 2})

	result := e.Result()
	if !result.Won || result.LeaderID != 2 {
		t.Fatalf("expected Won=true LeaderID=2, got %+v", result)
	}
}

func TestHandleElectedRelaysAndStopsAtOrigin(t *testing.T) {
	e, rt, dir := newEngineForTest(t, 0)
	e.HandleElected(wire.Message{Header: wire.Elected, SenderID: 2, LeaderID: 2})

	if len(rt.sent) != 1 {
		t.Fatalf("expected a relay, got %d sends", len(rt.sent))
	}
	want := sentMessage{to: dir.Endpoint(1), msg: wire.Message{Header: wire.Elected, SenderID: 0, LeaderID: 2}}
	if diff := deep.Equal(rt.sent[0], want); diff != nil {
		t.Fatalf("mismatch: %v", diff)
	}

	result := e.Result()
	if result.Won || result.LeaderID != 2 {
		t.Fatalf("expected Won=false LeaderID=2, got %+v", result)
	}
}

func TestHandleElectedCompletesCycleWithoutRelay(t *testing.T) {
	e, rt, _ := newEngineForTest(t, 2)
	e.HandleElected(wire.Message{Header: wire.Elected, SenderID: 1, LeaderID: 2})

	if len(rt.sent) != 0 {
		t.Fatalf("expected the announcement's origin to stop relaying, got %d sends", len(rt.sent))
	}

	result := e.Result()
	if !result.Won || result.LeaderID != 2 {
		t.Fatalf("expected Won=true LeaderID=2, got %+v", result)
	}
}
