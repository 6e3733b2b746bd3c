package paxos

import (
	"math/rand"
	"time"

	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/dispatch"
	"github.com/dvossen/paxosring/internal/logging"
	"github.com/dvossen/paxosring/internal/paxosconfig"
	"github.com/dvossen/paxosring/internal/timer"
	"github.com/dvossen/paxosring/internal/wire"
)

// round is the per-outstanding-proposal state spec.md 3 describes:
// the candidate value, the client awaiting a reply, and the ACK/ACCEPT
// tallies needed to detect a majority.
type round struct {
	number        int64
	clientID      directory.NodeID
	clientValue   int64
	candidate     int64
	bestAckNumber int64 // highest acceptedNumber seen among ACKs so far, or NoProposal
	acked         map[directory.NodeID]struct{}
	accepted      map[directory.NodeID]struct{}
	phase2Started bool
	abandoned     bool
}

// Proposer is a single proposer's state machine. lastSeq is the
// highest proposal number this proposer has ever emitted; every new
// round advances it by exactly consensusCount, keeping each proposer's
// residue class disjoint from every other proposer's (spec.md 3's
// ProposalNumber invariant).
type Proposer struct {
	self           directory.NodeID
	consensusCount int
	acceptors      []directory.Endpoint
	resolve        Resolver
	disp           *dispatch.Dispatcher
	logger         *logging.Logger
	cfg            paxosconfig.Config
	timers         timer.Factory

	lastSeq int64
	rounds  map[int64]*round
}

// NewProposer creates a Proposer. self is this proposer's node id,
// which both seeds its proposal-number sequence and fixes its residue
// class modulo consensusCount (P+A+L).
func NewProposer(self directory.NodeID, consensusCount int, acceptors []directory.Endpoint, resolve Resolver, disp *dispatch.Dispatcher, logger *logging.Logger, cfg paxosconfig.Config, timers timer.Factory) *Proposer {
	return &Proposer{
		self:           self,
		consensusCount: consensusCount,
		acceptors:      acceptors,
		resolve:        resolve,
		disp:           disp,
		logger:         logger,
		cfg:            cfg,
		timers:         timers,
		lastSeq:        int64(self) - int64(consensusCount), // first nextSeq() call yields self
		rounds:         make(map[int64]*round),
	}
}

func (p *Proposer) nextSeq() int64 {
	p.lastSeq += int64(p.consensusCount)
	return p.lastSeq
}

// ActiveRounds reports the proposal numbers this proposer currently has
// outstanding, for tests and the playground monitor.
func (p *Proposer) ActiveRounds() []int64 {
	out := make([]int64, 0, len(p.rounds))
	for n := range p.rounds {
		out = append(out, n)
	}
	return out
}

// HandleFwd implements spec.md 4.4 Phase 1a: on receiving a client's
// FWD, start a brand new round with the next proposal number in this
// proposer's residue class and send PROPOSAL to every acceptor.
func (p *Proposer) HandleFwd(msg wire.Message) {
	n := p.nextSeq()
	r := &round{
		number:        n,
		clientID:      msg.ClientID,
		clientValue:   msg.Value,
		candidate:     msg.Value,
		bestAckNumber: wire.NoProposal,
		acked:         make(map[directory.NodeID]struct{}),
		accepted:      make(map[directory.NodeID]struct{}),
	}
	p.rounds[n] = r

	p.logger.Logf("proposer %d starting round %d for client %d value %d", p.self, n, msg.ClientID, msg.Value)
	p.disp.Broadcast(p.acceptors, wire.Message{
		Header:         wire.Proposal,
		SenderID:       p.self,
		ProposalNumber: n,
	})
}

// HandleAck implements spec.md 4.4 Phase 1b. ACKs for a proposal
// number with no matching in-flight round are dropped -- this is the
// per-round correlation the Open Question in spec.md 9 calls for,
// using the proposal number itself rather than a separate id.
func (p *Proposer) HandleAck(msg wire.Message) {
	r, ok := p.rounds[msg.ProposalNumber]
	if !ok || r.abandoned || r.phase2Started {
		return
	}

	r.acked[msg.AcceptorID] = struct{}{}
	if msg.HasAccepted && msg.AcceptedNumber > r.bestAckNumber {
		r.bestAckNumber = msg.AcceptedNumber
		r.candidate = msg.AcceptedValue
	}

	if len(r.acked) >= p.majority() {
		p.beginPhase2(r)
	}
}

func (p *Proposer) majority() int {
	return len(p.acceptors)/2 + 1
}

// beginPhase2 implements spec.md 4.4 Phase 2a: send ACCEPT to every
// acceptor with the value-preservation rule from spec.md 3 --
// whichever accepted value carried the highest accepted number among
// this round's ACKs, or the client's original value if none did.
func (p *Proposer) beginPhase2(r *round) {
	r.phase2Started = true
	p.logger.Logf("proposer %d round %d reached ACK majority, sending ACCEPT(%d, %d)", p.self, r.number, r.number, r.candidate)
	p.disp.Broadcast(p.acceptors, wire.Message{
		Header:         wire.Accept,
		SenderID:       p.self,
		ProposalNumber: r.number,
		Value:          r.candidate,
	})
}

// HandleAcceptConfirm implements spec.md 4.4 Phase 2b: count distinct
// confirming acceptors; once a majority confirms, this proposer's
// obligation is discharged (learners notify the client, see
// internal/paxos/learner.go) and the round state can be dropped.
func (p *Proposer) HandleAcceptConfirm(msg wire.Message) {
	r, ok := p.rounds[msg.ProposalNumber]
	if !ok || r.abandoned {
		return
	}

	r.accepted[msg.SenderID] = struct{}{}
	if len(r.accepted) >= p.majority() {
		p.logger.Logf("proposer %d round %d reached ACCEPT majority, round complete", p.self, r.number)
		delete(p.rounds, r.number)
	}
}

// HandleNack implements spec.md 4.4's NACK handling: abandon the
// round. Without BACKOFF the round is simply dropped -- a known
// liveness compromise the spec documents explicitly. With BACKOFF
// enabled, wait a random bounded interval and re-enter Phase 1a with a
// freshly advanced proposal number, carrying the same client forward.
func (p *Proposer) HandleNack(msg wire.Message) {
	r, ok := p.rounds[msg.ProposalNumber]
	if !ok || r.abandoned {
		return
	}
	r.abandoned = true
	delete(p.rounds, r.number)

	if !p.cfg.Backoff {
		p.logger.Logf("proposer %d round %d NACKed, dropping (backoff disabled)", p.self, r.number)
		return
	}

	p.logger.Logf("proposer %d round %d NACKed, backing off before retry", p.self, r.number)
	wait := p.cfg.BackoffMin
	if p.cfg.BackoffMax > p.cfg.BackoffMin {
		wait += time.Duration(rand.Int63n(int64(p.cfg.BackoffMax - p.cfg.BackoffMin)))
	}

	// The retry must not touch p.rounds from this goroutine directly --
	// all round state is owned by the dispatcher's worker. Instead, send
	// a FWD to this proposer's own endpoint so the retry re-enters Phase
	// 1a through the normal receive path, the same way a fresh client
	// request would.
	self := p.resolve(p.self)
	clientID, value := r.clientID, r.clientValue
	timeout := p.timers.After(wait)
	go func() {
		<-timeout.Done()
		p.disp.Send(self, wire.Message{
			Header:   wire.Fwd,
			ClientID: clientID,
			Value:    value,
		})
	}()
}
