// Package clientnode implements the client side of spec.md 4.7: select
// a proposer from the topology the cluster announces, submit a value,
// and block for the learners' FINAL delivery.
package clientnode

import (
	"fmt"

	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/dispatch"
	"github.com/dvossen/paxosring/internal/logging"
	"github.com/dvossen/paxosring/internal/wire"
)

// Client runs a single SET request against the cluster. Initialize
// blocks until the consensus side has announced its proposer list;
// Set blocks until a FINAL arrives; Cleanup broadcasts TERMINATE to
// every consensus node and releases the transport.
type Client struct {
	self                 directory.NodeID
	desiredProposerIndex int
	consensus            []directory.Endpoint
	disp                 *dispatch.Dispatcher
	logger               *logging.Logger

	proposers chan []directory.Endpoint
	finals    chan int64
}

// New creates a Client. desiredProposerIndex is reduced modulo the
// announced proposer count at Initialize time, per spec.md 3's
// ClientRequest definition. consensus is every consensus node's
// endpoint, so Cleanup can broadcast TERMINATE to all of them as
// spec.md 4.7 requires.
func New(self directory.NodeID, desiredProposerIndex int, consensus []directory.Endpoint, disp *dispatch.Dispatcher, logger *logging.Logger) *Client {
	return &Client{
		self:                 self,
		desiredProposerIndex: desiredProposerIndex,
		consensus:            consensus,
		disp:                 disp,
		logger:               logger,
		proposers:            make(chan []directory.Endpoint, 1),
		finals:               make(chan int64, 1),
	}
}

// Handle is the client's dispatcher handler: it recognizes exactly the
// two headers a client ever receives, ASSIGN (the proposer list) and
// FINAL (the chosen value).
func (c *Client) Handle(msg wire.Message) {
	switch msg.Header {
	case wire.Assign:
		select {
		case c.proposers <- msg.Proposers:
		default:
		}
	case wire.Final:
		select {
		case c.finals <- msg.Value:
		default:
		}
	}
}

// Initialize blocks until the proposer list has arrived and resolves
// this client's target proposer endpoint.
func (c *Client) Initialize() (directory.Endpoint, error) {
	proposers := <-c.proposers
	if len(proposers) == 0 {
		return directory.Endpoint{}, fmt.Errorf("clientnode: empty proposer list")
	}
	idx := c.desiredProposerIndex % len(proposers)
	target := proposers[idx]
	c.logger.Logf("client %d: selected proposer %s (index %d)", c.self, target, idx)
	return target, nil
}

// Set sends FWD{clientId, value} to the given proposer and blocks on
// the first FINAL received from any learner, per spec.md 4.7: "the
// client exits its listen loop on the first FINAL received."
func (c *Client) Set(proposer directory.Endpoint, value int64) int64 {
	c.logger.Logf("client %d: sending value %d to proposer %s", c.self, value, proposer)
	c.disp.Send(proposer, wire.Message{
		Header:   wire.Fwd,
		SenderID: c.self,
		ClientID: c.self,
		Value:    value,
	})
	chosen := <-c.finals
	c.logger.Logf("client %d: received FINAL(%d)", c.self, chosen)
	return chosen
}

// Cleanup broadcasts TERMINATE to every consensus node, per spec.md
// 4.7, then releases the client's transport resources.
func (c *Client) Cleanup() {
	c.logger.Logf("client %d: broadcasting TERMINATE", c.self)
	c.disp.Broadcast(c.consensus, wire.Message{
		Header:   wire.Terminate,
		SenderID: c.self,
	})
	c.disp.Stop()
}
