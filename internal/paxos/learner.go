package paxos

import (
	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/dispatch"
	"github.com/dvossen/paxosring/internal/logging"
)

// decree keys a learner's per-(proposalNumber, value) tally of
// distinct reporting acceptors.
type decree struct {
	number int64
	value  int64
}

// Learner implements spec.md 4.6: it tallies distinct acceptors
// reporting LEARN for the same (n, v), and forwards the value to every
// client once that tally reaches a strict majority of acceptors.
type Learner struct {
	self          directory.NodeID
	acceptorCount int
	clients       []directory.Endpoint
	disp          *dispatch.Dispatcher
	logger        *logging.Logger

	tallies map[decree]map[directory.NodeID]struct{}
}

// NewLearner creates a Learner. acceptorCount is A, used to compute the
// strict-majority threshold A/2+1 (integer division).
func NewLearner(self directory.NodeID, acceptorCount int, clients []directory.Endpoint, disp *dispatch.Dispatcher, logger *logging.Logger) *Learner {
	return &Learner{
		self:          self,
		acceptorCount: acceptorCount,
		clients:       clients,
		disp:          disp,
		logger:        logger,
		tallies:       make(map[decree]map[directory.NodeID]struct{}),
	}
}

func (l *Learner) majority() int {
	return l.acceptorCount/2 + 1
}

// HandleLearn implements spec.md 4.6. Every LEARN that brings a
// (proposalNumber, value) pair's distinct-acceptor tally to or past
// majority results in a FINAL delivery to every client -- including
// repeat deliveries for LEARN messages that arrive after the value was
// already chosen. Spec.md explicitly tolerates and expects these
// redundant deliveries rather than suppressing them.
func (l *Learner) HandleLearn(n int64, value int64, acceptorID directory.NodeID) {
	key := decree{number: n, value: value}
	set, ok := l.tallies[key]
	if !ok {
		set = make(map[directory.NodeID]struct{})
		l.tallies[key] = set
	}
	set[acceptorID] = struct{}{}

	if len(set) < l.majority() {
		return
	}

	l.logger.Logf("learner %d: (%d, %d) reached majority (%d/%d acceptors), delivering", l.self, n, value, len(set), l.acceptorCount)
	for _, client := range l.clients {
		l.disp.Send(client, finalMessage(n, value))
	}
}

// Chosen reports whether (n, value) has reached majority at this
// learner, for tests.
func (l *Learner) Chosen(n int64, value int64) bool {
	set, ok := l.tallies[decree{number: n, value: value}]
	return ok && len(set) >= l.majority()
}
