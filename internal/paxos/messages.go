package paxos

import "github.com/dvossen/paxosring/internal/wire"

func finalMessage(n int64, value int64) wire.Message {
	return wire.Message{
		Header:         wire.Final,
		ProposalNumber: n,
		Value:          value,
	}
}
