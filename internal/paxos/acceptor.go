// Package paxos implements the proposer, acceptor, and learner state
// machines of single-decree Paxos, per spec.md 4.4-4.6. All state here
// is mutated only from the owning node's dispatcher worker goroutine;
// none of these types take a lock.
package paxos

import (
	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/dispatch"
	"github.com/dvossen/paxosring/internal/logging"
	"github.com/dvossen/paxosring/internal/paxosconfig"
	"github.com/dvossen/paxosring/internal/wire"
)

// Resolver maps a node id back to its endpoint, so a handler can reply
// to whoever sent a message. Built from role-assignment topology and
// shared across a node's proposer/acceptor/learner.
type Resolver func(directory.NodeID) directory.Endpoint

// Acceptor holds the single mutable record spec.md 3 describes:
// minProposal, acceptedNumber, acceptedValue. minProposal is "none"
// (NoProposal) until the first promise; acceptedNumber and
// acceptedValue hold zero, and mean nothing, until hasAccepted is set.
type Acceptor struct {
	self     directory.NodeID
	learners []directory.Endpoint
	resolve  Resolver
	disp     *dispatch.Dispatcher
	logger   *logging.Logger
	cfg      paxosconfig.Config

	minProposal    int64
	acceptedNumber int64
	acceptedValue  int64
	hasAccepted    bool
}

// NewAcceptor creates an Acceptor. learners is the endpoint list learned
// at role assignment; resolve maps a proposer's node id to its endpoint.
func NewAcceptor(self directory.NodeID, learners []directory.Endpoint, resolve Resolver, disp *dispatch.Dispatcher, logger *logging.Logger, cfg paxosconfig.Config) *Acceptor {
	return &Acceptor{
		self:        self,
		learners:    learners,
		resolve:     resolve,
		disp:        disp,
		logger:      logger,
		cfg:         cfg,
		minProposal: wire.NoProposal,
	}
}

// HandlePrepare implements spec.md 4.5's PROPOSAL handling: promise if
// n is strictly greater than any number this acceptor has promised (or
// it has never promised), otherwise NACK.
//
// Strict inequality here enforces the "promise monotonicity" and
// "accept implies promise" invariants together with the tie-break rule
// in 4.5: equal proposal numbers are always rejected at PROPOSAL time,
// since proposal numbers are globally unique and an equal one would
// only ever arrive as a stray duplicate.
func (a *Acceptor) HandlePrepare(msg wire.Message) {
	n := msg.ProposalNumber
	from := a.resolve(msg.SenderID)

	if a.minProposal == wire.NoProposal || n > a.minProposal {
		a.minProposal = n
		a.logger.Debugf(a.cfg.Debug, "acceptor %d promises %d", a.self, n)
		a.disp.Send(from, wire.Message{
			Header:         wire.Ack,
			SenderID:       a.self,
			AcceptorID:     a.self,
			ProposalNumber: n,
			HasAccepted:    a.hasAccepted,
			AcceptedNumber: a.acceptedNumber,
			AcceptedValue:  a.acceptedValue,
		})
		return
	}

	a.disp.Send(from, wire.Message{
		Header:         wire.Nack,
		SenderID:       a.self,
		ProposalNumber: n,
		MinProposal:    a.minProposal,
	})
}

// HandleAccept implements spec.md 4.5's ACCEPT handling. Note the
// boundary is non-strict (n >= minProposal): an acceptor that has
// promised exactly n may still accept n, since ACCEPT for n always
// follows a PROPOSAL for that same n in the normal flow.
func (a *Acceptor) HandleAccept(msg wire.Message) {
	n := msg.ProposalNumber
	from := a.resolve(msg.SenderID)

	if a.minProposal != wire.NoProposal && n < a.minProposal {
		a.disp.Send(from, wire.Message{
			Header:         wire.Nack,
			SenderID:       a.self,
			ProposalNumber: n,
			MinProposal:    a.minProposal,
		})
		return
	}

	a.minProposal = n
	a.acceptedNumber = n
	a.acceptedValue = msg.Value
	a.hasAccepted = true

	a.logger.Debugf(a.cfg.Debug, "acceptor %d accepts (%d, %d)", a.self, n, msg.Value)

	a.disp.Broadcast(a.learners, wire.Message{
		Header:         wire.Learn,
		SenderID:       a.self,
		AcceptorID:     a.self,
		ProposalNumber: n,
		Value:          msg.Value,
	})

	a.disp.Send(from, wire.Message{
		Header:         wire.Accept,
		SenderID:       a.self,
		ProposalNumber: n,
	})
}

// State exposes the acceptor's current (minProposal, acceptedNumber,
// acceptedValue) for tests and the playground monitor.
func (a *Acceptor) State() (minProposal, acceptedNumber, acceptedValue int64, hasAccepted bool) {
	return a.minProposal, a.acceptedNumber, a.acceptedValue, a.hasAccepted
}
