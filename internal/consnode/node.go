// Package consnode wires together the directory, dispatcher, election
// engine, role assignment, and Paxos state machines into the single
// message-routing loop a consensus process runs, per spec.md 4.1's
// bootstrap-then-steady-state lifecycle. It is the glue cmd/condriver
// and the playground both build on; internal/integration drives it
// directly over the in-memory transport.
package consnode

import (
	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/dispatch"
	"github.com/dvossen/paxosring/internal/election"
	"github.com/dvossen/paxosring/internal/logging"
	"github.com/dvossen/paxosring/internal/paxos"
	"github.com/dvossen/paxosring/internal/paxosconfig"
	"github.com/dvossen/paxosring/internal/roles"
	"github.com/dvossen/paxosring/internal/timer"
	"github.com/dvossen/paxosring/internal/transport"
	"github.com/dvossen/paxosring/internal/wire"
)

// Node is one consensus process: it runs the election, then (as leader
// or follower) waits for role assignment, then routes Paxos messages
// to whichever of proposer/acceptor/learner its assigned role built.
type Node struct {
	dir    *directory.Directory
	self   directory.NodeID
	disp   *dispatch.Dispatcher
	logger *logging.Logger
	cfg    paxosconfig.Config
	timers timer.Factory

	election *election.Engine

	role      directory.Role
	roleReady bool
	proposers []directory.Endpoint
	acceptors []directory.Endpoint
	learners  []directory.Endpoint

	proposer *paxos.Proposer
	acceptor *paxos.Acceptor
	learner  *paxos.Learner

	done       chan struct{}
	terminated bool
}

// New builds a Node for consensus id self, using t as its transport.
func New(dir *directory.Directory, self directory.NodeID, t transport.Transport, logger *logging.Logger, cfg paxosconfig.Config, timers timer.Factory) *Node {
	n := &Node{
		dir:    dir,
		self:   self,
		disp:   dispatch.New(t, logger),
		logger: logger,
		cfg:    cfg,
		timers: timers,
		done:   make(chan struct{}),
	}
	n.election = election.New(dir, self, n.disp, logger)
	return n
}

// Start arms the transport and begins the election. Safe to call once.
func (n *Node) Start() error {
	if err := n.disp.Start(n.handle); err != nil {
		return err
	}
	n.election.Begin()
	return nil
}

// Done closes once this node has processed TERMINATE.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

// Stop releases the node's transport.
func (n *Node) Stop() {
	n.disp.Stop()
}

// AwaitLeadership blocks until the election engine resolves, and runs
// role assignment if this node won. Every consensus node must call
// this once after Start.
func (n *Node) AwaitLeadership() election.Result {
	result := n.election.Result()
	if result.Won {
		n.logger.Logf("node %d: elected leader, assigning roles", n.self)
		roles.AssignAndBroadcast(n.dir, n.disp, n.logger)
	}
	return result
}

func (n *Node) handle(msg wire.Message) {
	switch msg.Header {
	case wire.Elect:
		n.election.HandleElect(msg)
	case wire.Elected:
		n.election.HandleElected(msg)
	case wire.Assign:
		n.applyAssignment(msg)
	case wire.Start:
		n.onStart()
	case wire.Proposal:
		if n.acceptor != nil {
			n.acceptor.HandlePrepare(msg)
		}
	case wire.Ack:
		if n.proposer != nil {
			n.proposer.HandleAck(msg)
		}
	case wire.Nack:
		if n.proposer != nil {
			n.proposer.HandleNack(msg)
		}
	case wire.Accept:
		// ACCEPT is overloaded: a proposer's request to acceptors, and an
		// acceptor's confirmation back to the proposer. This node's
		// assigned role disambiguates which side of the exchange it is.
		switch {
		case n.acceptor != nil:
			n.acceptor.HandleAccept(msg)
		case n.proposer != nil:
			n.proposer.HandleAcceptConfirm(msg)
		}
	case wire.Learn:
		if n.learner != nil {
			n.learner.HandleLearn(msg.ProposalNumber, msg.Value, msg.AcceptorID)
		}
	case wire.Fwd:
		if n.proposer != nil {
			n.proposer.HandleFwd(msg)
		}
	case wire.Terminate:
		// Every client broadcasts TERMINATE independently on Cleanup
		// (spec.md 4.7), so a node with several clients may see it more
		// than once; only the first closes done.
		if n.terminated {
			return
		}
		n.terminated = true
		n.logger.Logf("node %d: received TERMINATE", n.self)
		close(n.done)
	}
}

// applyAssignment implements the node side of spec.md 4.3: learn this
// node's role and the full topology, and build the one Paxos state
// machine that role requires. resolve maps any node id in the cluster
// back to its endpoint, using the directory's own dense assignment.
func (n *Node) applyAssignment(msg wire.Message) {
	n.role = msg.Role
	n.proposers = msg.Proposers
	n.acceptors = msg.Acceptors
	n.learners = msg.Learners
	n.roleReady = true

	resolve := func(id directory.NodeID) directory.Endpoint {
		return n.dir.Endpoint(id)
	}

	switch n.role {
	case directory.Proposer:
		n.proposer = paxos.NewProposer(n.self, n.dir.Counts.ConsensusCount(), n.acceptors, resolve, n.disp, n.logger, n.cfg, n.timers)
	case directory.Acceptor:
		n.acceptor = paxos.NewAcceptor(n.self, n.learners, resolve, n.disp, n.logger, n.cfg)
	case directory.Learner:
		n.learner = paxos.NewLearner(n.self, msg.Counts.Acceptors, n.dir.ClientEndpoints(), n.disp, n.logger)
	}

	n.logger.Logf("node %d: assigned role %s", n.self, n.role)
}

// onStart implements the "every consensus node forwards the proposer
// list to every client" half of spec.md 4.3's START handling.
func (n *Node) onStart() {
	roles.NotifyClients(n.dir, n.proposers, n.disp)
}

// Snapshot is a point-in-time, best-effort read of this node's role and
// Paxos state, for the playground's node-state pane. It is read from a
// separate rendering goroutine without locking, the same way the
// teacher playground's renderNodesState reads Node.PersistentState
// directly -- acceptable because it is a display-only read racing a
// single writer, never something the protocol itself depends on.
type Snapshot struct {
	ID             directory.NodeID
	Role           directory.Role
	RoleReady      bool
	MinProposal    int64
	AcceptedNumber int64
	AcceptedValue  int64
	HasAccepted    bool
	ActiveRounds   []int64
}

func (n *Node) Snapshot() Snapshot {
	s := Snapshot{ID: n.self, Role: n.role, RoleReady: n.roleReady}
	if n.acceptor != nil {
		s.MinProposal, s.AcceptedNumber, s.AcceptedValue, s.HasAccepted = n.acceptor.State()
	}
	if n.proposer != nil {
		s.ActiveRounds = n.proposer.ActiveRounds()
	}
	return s
}
