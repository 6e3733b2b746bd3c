// Package integration drives the full stack -- election, role
// assignment, the Paxos state machines, and client delivery -- over the
// in-memory transport, exercising the end-to-end scenarios spec.md
// section 8 describes without needing real UDP sockets or separate
// condriver/clidriver processes.
package integration

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dvossen/paxosring/internal/clientnode"
	"github.com/dvossen/paxosring/internal/consnode"
	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/dispatch"
	"github.com/dvossen/paxosring/internal/logging"
	"github.com/dvossen/paxosring/internal/paxosconfig"
	"github.com/dvossen/paxosring/internal/timer"
	"github.com/dvossen/paxosring/internal/transport"
	"github.com/dvossen/paxosring/internal/wire"
)

// BuildDirectoryText renders a directory file with consensus nodes on
// 127.0.0.1 starting at basePort and client nodes immediately after.
func BuildDirectoryText(p, a, l, clients int, basePort int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PROPOSERS %d\nACCEPTORS %d\nLEARNERS %d\n", p, a, l)
	port := basePort
	for i := 0; i < p+a+l; i++ {
		fmt.Fprintf(&b, "127.0.0.1 %d con\n", port)
		port++
	}
	for i := 0; i < clients; i++ {
		fmt.Fprintf(&b, "127.0.0.1 %d cli\n", port)
		port++
	}
	return b.String()
}

// Cluster is a fully wired, in-memory instance of every consensus node
// and client named by a directory. All log output is discarded.
type Cluster struct {
	Dir     *directory.Directory
	network *transport.Network
	cfg     paxosconfig.Config

	nodes   map[directory.NodeID]*consnode.Node
	clients map[directory.NodeID]*clientnode.Client

	proposalMu  sync.Mutex
	proposalLog map[directory.NodeID][]int64 // PROPOSAL numbers sent, one per round, keyed by sending proposer id
}

// proposalSpy wraps a transport.Transport and records the number of
// every outgoing PROPOSAL against the sending node, so tests can assert
// on spec.md 3's proposal-number-uniqueness invariant without reaching
// into paxos.Proposer's private state. A proposer sends each round's
// PROPOSAL to every acceptor; only the copy addressed to recordTo (the
// first acceptor) is recorded, so the log holds one entry per round.
type proposalSpy struct {
	transport.Transport
	self     directory.NodeID
	recordTo directory.Endpoint
	c        *Cluster
}

func (s *proposalSpy) Send(to directory.Endpoint, msg wire.Message) bool {
	if msg.Header == wire.Proposal && to == s.recordTo {
		s.c.proposalMu.Lock()
		s.c.proposalLog[s.self] = append(s.c.proposalLog[s.self], msg.ProposalNumber)
		s.c.proposalMu.Unlock()
	}
	return s.Transport.Send(to, msg)
}

// NewCluster parses dirText and constructs (but does not start) every
// node and client it names.
func NewCluster(dirText string, cfg paxosconfig.Config) (*Cluster, error) {
	dir, err := directory.ParseDirectory(strings.NewReader(dirText))
	if err != nil {
		return nil, err
	}

	c := &Cluster{
		Dir:         dir,
		network:     transport.NewNetwork(),
		cfg:         cfg,
		nodes:       make(map[directory.NodeID]*consnode.Node),
		clients:     make(map[directory.NodeID]*clientnode.Client),
		proposalLog: make(map[directory.NodeID][]int64),
	}

	sink := make(chan logging.LoggerEntry, 4096)
	go drain(sink)

	firstAcceptor := dir.Endpoint(directory.NodeID(dir.Counts.Proposers))
	for _, entry := range dir.ConsensusEntries() {
		logger := logging.New(fmt.Sprintf("[con %d]", entry.ID), sink)
		t := transport.Transport(transport.NewMemory(c.network, entry.Endpoint))
		t = &proposalSpy{Transport: t, self: entry.ID, recordTo: firstAcceptor, c: c}
		c.nodes[entry.ID] = consnode.New(dir, entry.ID, t, logger, cfg, timer.RealFactory{})
	}

	consensusEndpoints := make([]directory.Endpoint, 0, len(dir.ConsensusEntries()))
	for _, e := range dir.ConsensusEntries() {
		consensusEndpoints = append(consensusEndpoints, e.Endpoint)
	}

	for i, entry := range dir.ClientEntries() {
		logger := logging.New(fmt.Sprintf("[cli %d]", entry.ID), sink)
		t := transport.NewMemory(c.network, entry.Endpoint)
		disp := dispatch.New(t, logger)
		client := clientnode.New(entry.ID, i, consensusEndpoints, disp, logger)
		if err := disp.Start(client.Handle); err != nil {
			return nil, err
		}
		c.clients[entry.ID] = client
	}

	return c, nil
}

// drain discards log entries so the shared sink channel never blocks a
// node's worker goroutine.
func drain(sink <-chan logging.LoggerEntry) {
	for range sink {
	}
}

// Start arms every consensus node's transport, begins the election on
// each, and blocks until bootstrap (election + role assignment +
// START) has completed across the whole cluster.
func (c *Cluster) Start() error {
	for _, node := range c.nodes {
		if err := node.Start(); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	for _, node := range c.nodes {
		wg.Add(1)
		go func(n *consnode.Node) {
			defer wg.Done()
			n.AwaitLeadership()
		}(node)
	}
	wg.Wait()
	return nil
}

// Client returns the client with the given id.
func (c *Cluster) Client(id directory.NodeID) *clientnode.Client {
	return c.clients[id]
}

// Stop heals any partition set by SetPartitions, broadcasts TERMINATE
// via every client's Cleanup, waits for each consensus node to process
// it, then releases every transport.
func (c *Cluster) Stop() {
	c.network.SetPartitions(nil)
	for _, client := range c.clients {
		client.Cleanup()
	}
	for _, node := range c.nodes {
		<-node.Done()
		node.Stop()
	}
}

// SetPartitions exposes the underlying network's partition injection to
// tests, for the acceptor-minority-failure scenario.
func (c *Cluster) SetPartitions(splits [][]directory.Endpoint) {
	c.network.SetPartitions(splits)
}

// ProposalNumbersByProposer returns the number of every proposal round
// started so far, in order, keyed by the sending proposer's node id,
// for asserting on
// spec.md 3's proposal-number-uniqueness invariant.
func (c *Cluster) ProposalNumbersByProposer() map[directory.NodeID][]int64 {
	c.proposalMu.Lock()
	defer c.proposalMu.Unlock()
	out := make(map[directory.NodeID][]int64, len(c.proposalLog))
	for id, nums := range c.proposalLog {
		cp := make([]int64, len(nums))
		copy(cp, nums)
		out[id] = cp
	}
	return out
}
