// Package roles implements the leader-driven role assignment and
// readiness handshake described in spec.md 4.3: the leader partitions
// the consensus id space into proposers/acceptors/learners, unicasts
// each node its role and the full topology, then broadcasts START.
// Every consensus node, the leader included, on receiving START,
// forwards the proposer list to every client so clients can pick a
// proposer.
package roles

import (
	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/dispatch"
	"github.com/dvossen/paxosring/internal/logging"
	"github.com/dvossen/paxosring/internal/wire"
)

// Assignment is what a consensus node learns before Paxos messages are
// permitted: its own role, and the full proposer/acceptor/learner
// endpoint lists.
type Assignment struct {
	Role      directory.Role
	Proposers []directory.Endpoint
	Acceptors []directory.Endpoint
	Learners  []directory.Endpoint
	Counts    directory.RoleCounts
}

// AssignAndBroadcast runs on the leader only. It partitions the
// consensus ids, unicasts each node its Assignment via ASSIGN, then
// broadcasts START to every consensus node (including itself, so the
// leader's own worker loop follows the identical START->notify-clients
// path every other node does).
func AssignAndBroadcast(dir *directory.Directory, disp *dispatch.Dispatcher, logger *logging.Logger) {
	roleByID := dir.PartitionRoles()
	proposers := dir.EndpointsForRole(roleByID, directory.Proposer)
	acceptors := dir.EndpointsForRole(roleByID, directory.Acceptor)
	learners := dir.EndpointsForRole(roleByID, directory.Learner)

	for _, entry := range dir.ConsensusEntries() {
		disp.Send(entry.Endpoint, wire.Message{
			Header:    wire.Assign,
			Role:      roleByID[entry.ID],
			Proposers: proposers,
			Acceptors: acceptors,
			Learners:  learners,
			Counts:    dir.Counts,
		})
	}

	logger.Log("role assignment: broadcasting START")
	for _, entry := range dir.ConsensusEntries() {
		disp.Send(entry.Endpoint, wire.Message{Header: wire.Start})
	}
}

// NotifyClients is called by every consensus node on receiving START:
// it forwards the proposer endpoint list to every client so clients
// can select one at Initialize.
func NotifyClients(dir *directory.Directory, proposers []directory.Endpoint, disp *dispatch.Dispatcher) {
	for _, client := range dir.ClientEntries() {
		disp.Send(client.Endpoint, wire.Message{
			Header:    wire.Assign,
			Proposers: proposers,
		})
	}
}
