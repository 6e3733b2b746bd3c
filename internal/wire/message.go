// Package wire defines the on-the-wire message shape for this
// system's closed header set and the gob codec used to move it over a
// datagram transport. Gob as the wire codec is grounded on the
// relab-goxos paxos package's own Prepare/Promise/Accept/Learn
// messages, which register and gob-encode in exactly this fashion.
package wire

import (
	"bytes"
	"encoding/gob"

	"github.com/dvossen/paxosring/internal/directory"
)

// Header is one of the closed set of message kinds this system
// recognizes. Deliberately a string type (not iota) so a dropped
// datagram or a mismatched build still decodes into a readable,
// loggable value rather than a silently-wrong integer.
type Header string

const (
	Elect     Header = "ELECT"
	Elected   Header = "ELECTED"
	Assign    Header = "ASSIGN"
	Start     Header = "START"
	Fwd       Header = "FWD"
	Proposal  Header = "PROPOSAL"
	Ack       Header = "ACK"
	Nack      Header = "NACK"
	Accept    Header = "ACCEPT"
	Learn     Header = "LEARN"
	Final     Header = "FINAL"
	Terminate Header = "TERMINATE"
)

// NoProposal is the sentinel for a "none" proposal number, treated as
// -infinity: an acceptor's minProposal before its first promise, and a
// proposer's highest seen accepted number before any ACK carries one.
// Whether an acceptor has accepted anything is carried by HasAccepted
// instead.
const NoProposal int64 = -1

// Message is the single envelope type carried over the transport.
// Fields are header-specific; unused fields are left at their zero
// value. A tagged union kept as one flat struct (rather than an
// interface per header) matches the design note in spec.md 9:
// "dynamic dispatch on message header... do not reach for open-ended
// polymorphism" -- here that means one exhaustive switch on Header,
// not N message types satisfying an interface.
type Message struct {
	Header   Header
	SenderID directory.NodeID

	// Election (ELECT, ELECTED)
	CandidateID directory.NodeID
	LeaderID    directory.NodeID

	// Role assignment (ASSIGN, START)
	Role      directory.Role
	Proposers []directory.Endpoint
	Acceptors []directory.Endpoint
	Learners  []directory.Endpoint
	Counts    directory.RoleCounts

	// Paxos (FWD, PROPOSAL, ACK, NACK, ACCEPT, LEARN, FINAL)
	ProposalNumber int64
	Value          int64
	HasAccepted    bool
	AcceptedNumber int64
	AcceptedValue  int64
	MinProposal    int64
	AcceptorID     directory.NodeID
	ClientID       directory.NodeID
}

func init() {
	gob.Register(Message{})
}

// Encode serializes a Message for transport.
func Encode(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes a Message received from the transport.
func Decode(data []byte) (Message, error) {
	var msg Message
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&msg)
	return msg, err
}
