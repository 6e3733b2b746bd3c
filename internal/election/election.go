// Package election implements Chang-Roberts leader election over the
// consensus nodes, arranged in a unidirectional ring by ascending id.
// This bootstraps the cluster: the winner (always the maximum
// consensus id, by construction) goes on to run role assignment in
// internal/roles.
package election

import (
	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/dispatch"
	"github.com/dvossen/paxosring/internal/logging"
	"github.com/dvossen/paxosring/internal/wire"
)

// Result is delivered exactly once, to every consensus node, once the
// ELECTED announcement has cycled the ring.
type Result struct {
	LeaderID directory.NodeID
	Won      bool // true only for the node that is the leader itself
}

// Engine runs one election for a single consensus node. It is driven
// entirely by dispatcher callbacks (HandleElect/HandleElected); it
// never blocks waiting on the network itself, matching the
// single-writer-per-node discipline the rest of the system follows.
type Engine struct {
	dir    *directory.Directory
	self   directory.NodeID
	disp   *dispatch.Dispatcher
	logger *logging.Logger

	// maxForwarded is the largest candidate id this node has ever sent
	// onward. It starts at self because entering the election counts as
	// forwarding its own id once.
	maxForwarded directory.NodeID
	done         chan Result
	resultSent   bool
}

// New creates an election engine for node self.
func New(dir *directory.Directory, self directory.NodeID, disp *dispatch.Dispatcher, logger *logging.Logger) *Engine {
	return &Engine{
		dir:          dir,
		self:         self,
		disp:         disp,
		logger:       logger,
		maxForwarded: self,
		done:         make(chan Result, 1),
	}
}

// Begin sends this node's own id as a token to its successor. Call
// once, after the dispatcher has been started (so the successor's
// receiver is already armed -- see SPEC_FULL.md 6.1).
func (e *Engine) Begin() {
	e.logger.Logf("election: entering ring with id %d", e.self)
	e.sendElect(e.self)
}

// Result blocks until this node has learned the election's outcome.
func (e *Engine) Result() Result {
	return <-e.done
}

// HandleElect processes one ELECT token, per spec.md 4.2:
//
//   - v == own id:   this node is the leader.
//   - v > own id:    forward unchanged.
//   - v < own id:    replace with own id and forward, unless this node
//     has already forwarded a larger id (maxForwarded > self), in
//     which case the smaller candidate is dropped.
func (e *Engine) HandleElect(msg wire.Message) {
	v := msg.CandidateID

	if v == e.self {
		e.declareLeader()
		return
	}

	if v > e.self {
		e.sendElect(v)
		if v > e.maxForwarded {
			e.maxForwarded = v
		}
		return
	}

	// v < e.self
	if e.maxForwarded > e.self {
		e.logger.Logf("election: dropping candidate %d, already forwarded %d", v, e.maxForwarded)
		return
	}
	e.sendElect(e.self)
}

// HandleElected processes the ELECTED announcement as it cycles the
// ring exactly once: every node (including the leader when it sees its
// own announcement return) learns the leader id, and every node other
// than the leader relays it onward.
func (e *Engine) HandleElected(msg wire.Message) {
	if e.self == msg.LeaderID {
		// Announcement has completed one full cycle back to its origin.
		e.publish(Result{LeaderID: msg.LeaderID, Won: true})
		return
	}
	e.publish(Result{LeaderID: msg.LeaderID, Won: false})
	e.forwardElected(msg.LeaderID)
}

func (e *Engine) declareLeader() {
	e.logger.Logf("election: id %d is the maximum, declaring leader", e.self)
	e.forwardElected(e.self)
}

func (e *Engine) forwardElected(leaderID directory.NodeID) {
	successor := e.dir.Successor(e.self)
	e.disp.Send(e.dir.Endpoint(successor), wire.Message{
		Header:   wire.Elected,
		SenderID: e.self,
		LeaderID: leaderID,
	})
}

func (e *Engine) sendElect(candidate directory.NodeID) {
	successor := e.dir.Successor(e.self)
	e.disp.Send(e.dir.Endpoint(successor), wire.Message{
		Header:      wire.Elect,
		SenderID:    e.self,
		CandidateID: candidate,
	})
}

func (e *Engine) publish(r Result) {
	if e.resultSent {
		return
	}
	e.resultSent = true
	e.done <- r
}
