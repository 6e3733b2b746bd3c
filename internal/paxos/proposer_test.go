package paxos

import (
	"testing"
	"time"

	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/paxosconfig"
	"github.com/dvossen/paxosring/internal/timer"
	"github.com/dvossen/paxosring/internal/wire"
)

func newTestProposer(t *testing.T, self directory.NodeID, consensusCount int, acceptors []directory.Endpoint, cfg paxosconfig.Config, timers timer.Factory) (*Proposer, *recordingTransport) {
	t.Helper()
	disp, rt := newTestDispatcher(t)
	resolve := func(id directory.NodeID) directory.Endpoint { return endpointFor(id) }
	return NewProposer(self, consensusCount, acceptors, resolve, disp, testLogger(), cfg, timers), rt
}

func TestProposerFirstProposalNumberIsOwnID(t *testing.T) {
	p, rt := newTestProposer(t, 4, 9, []directory.Endpoint{endpointFor(1)}, paxosconfig.Default(), timer.RealFactory{})
	p.HandleFwd(wire.Message{ClientID: 20, Value: 55})

	sent := rt.sent[endpointFor(1)]
	if len(sent) != 1 || sent[0].Header != wire.Proposal || sent[0].ProposalNumber != 4 {
		t.Fatalf("expected PROPOSAL(4), got %+v", sent)
	}
}

func TestProposerSecondProposalAdvancesByConsensusCount(t *testing.T) {
	p, rt := newTestProposer(t, 0, 3, []directory.Endpoint{endpointFor(1)}, paxosconfig.Default(), timer.RealFactory{})
	p.HandleFwd(wire.Message{ClientID: 5, Value: 55})
	p.HandleFwd(wire.Message{ClientID: 6, Value: 56})

	sent := rt.sent[endpointFor(1)]
	if len(sent) != 2 || sent[0].ProposalNumber != 0 || sent[1].ProposalNumber != 3 {
		t.Fatalf("expected proposal numbers 0 then 3, got %+v", sent)
	}
}

func TestProposerEntersPhase2OnAckMajorityWithClientValue(t *testing.T) {
	acceptors := []directory.Endpoint{endpointFor(1), endpointFor(2), endpointFor(3)}
	p, rt := newTestProposer(t, 0, 9, acceptors, paxosconfig.Default(), timer.RealFactory{})
	p.HandleFwd(wire.Message{ClientID: 5, Value: 210})
	n := int64(0)

	p.HandleAck(wire.Message{ProposalNumber: n, AcceptorID: 1})
	if len(p.rounds) != 1 {
		t.Fatalf("round should still be outstanding after one ACK")
	}
	p.HandleAck(wire.Message{ProposalNumber: n, AcceptorID: 2})

	for _, ep := range acceptors {
		sent := rt.sent[ep]
		if len(sent) != 2 || sent[1].Header != wire.Accept || sent[1].Value != 210 {
			t.Fatalf("expected ACCEPT(210) broadcast to %s once majority ACKed, got %+v", ep, sent)
		}
	}
}

func TestProposerPrefersHighestAcceptedValueAmongAcks(t *testing.T) {
	acceptors := []directory.Endpoint{endpointFor(1), endpointFor(2), endpointFor(3)}
	p, rt := newTestProposer(t, 0, 9, acceptors, paxosconfig.Default(), timer.RealFactory{})
	p.HandleFwd(wire.Message{ClientID: 5, Value: 210})
	n := int64(0)

	p.HandleAck(wire.Message{ProposalNumber: n, AcceptorID: 1, HasAccepted: true, AcceptedNumber: 2, AcceptedValue: 55})
	p.HandleAck(wire.Message{ProposalNumber: n, AcceptorID: 2, HasAccepted: true, AcceptedNumber: 7, AcceptedValue: 999})

	sent := rt.sent[endpointFor(1)]
	if len(sent) != 2 || sent[1].Value != 999 {
		t.Fatalf("expected the ACCEPT value to be the one with the highest accepted number (999), got %+v", sent)
	}
}

func TestProposerIgnoresAckForUnknownRound(t *testing.T) {
	p, rt := newTestProposer(t, 0, 9, []directory.Endpoint{endpointFor(1)}, paxosconfig.Default(), timer.RealFactory{})
	p.HandleAck(wire.Message{ProposalNumber: 42, AcceptorID: 1})

	if len(rt.sent[endpointFor(1)]) != 0 {
		t.Fatalf("expected no sends for an ACK with no matching round")
	}
}

func TestProposerDiscardsRoundOnAcceptMajority(t *testing.T) {
	acceptors := []directory.Endpoint{endpointFor(1), endpointFor(2)}
	p, _ := newTestProposer(t, 0, 9, acceptors, paxosconfig.Default(), timer.RealFactory{})
	p.HandleFwd(wire.Message{ClientID: 5, Value: 210})
	n := int64(0)
	p.HandleAck(wire.Message{ProposalNumber: n, AcceptorID: 1})
	p.HandleAck(wire.Message{ProposalNumber: n, AcceptorID: 2})

	p.HandleAcceptConfirm(wire.Message{ProposalNumber: n, SenderID: 1})
	if len(p.rounds) != 1 {
		t.Fatalf("round should still be outstanding after one ACCEPT confirm out of 2")
	}
	p.HandleAcceptConfirm(wire.Message{ProposalNumber: n, SenderID: 2})
	if len(p.rounds) != 0 {
		t.Fatalf("expected round state to be discarded once ACCEPT majority reached")
	}
}

func TestProposerNackWithoutBackoffDropsRound(t *testing.T) {
	p, _ := newTestProposer(t, 0, 9, []directory.Endpoint{endpointFor(1)}, paxosconfig.Default(), timer.RealFactory{})
	p.HandleFwd(wire.Message{ClientID: 5, Value: 210})
	p.HandleNack(wire.Message{ProposalNumber: 0, MinProposal: 9})

	if len(p.rounds) != 0 {
		t.Fatalf("expected the round to be dropped on NACK when backoff is disabled")
	}
}

func TestProposerNackWithBackoffRetriesWithAdvancedNumber(t *testing.T) {
	cfg := paxosconfig.Default()
	cfg.Backoff = true

	factory := timer.NewControllableFactory(nil)

	p, rt := newTestProposer(t, 0, 9, []directory.Endpoint{endpointFor(1)}, cfg, factory)
	p.HandleFwd(wire.Message{ClientID: 5, Value: 210})
	<-rt.notify // the PROPOSAL(0) send; the wait below must observe only the retry
	p.HandleNack(wire.Message{ProposalNumber: 0, MinProposal: 9})

	self := endpointFor(0)
	factory.FireNext()

	select {
	case <-rt.notify:
	case <-time.After(time.Second):
		t.Fatalf("expected proposer to retry by sending itself a FWD")
	}

	msgs := rt.sentTo(self)
	if len(msgs) != 1 || msgs[0].Header != wire.Fwd || msgs[0].Value != 210 {
		t.Fatalf("expected a self-FWD(210) retry, got %+v", msgs)
	}

	// Processing the retry starts a new round with the next number in
	// this proposer's residue class.
	p.HandleFwd(msgs[0])
	proposals := rt.sentTo(endpointFor(1))
	if len(proposals) != 2 || proposals[1].Header != wire.Proposal || proposals[1].ProposalNumber != 9 {
		t.Fatalf("expected the retry to send PROPOSAL(9), got %+v", proposals)
	}
}
