// Command clidriver runs a single client: it waits for the consensus
// cluster to announce its proposer list, submits one value, blocks for
// the FINAL delivery, and exits. See spec.md 4.7 and 6.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/dvossen/paxosring/internal/clientnode"
	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/dispatch"
	"github.com/dvossen/paxosring/internal/logging"
	"github.com/dvossen/paxosring/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "clidriver:", err)
		os.Exit(1)
	}
}

func run() error {
	hostsPath := flag.String("hosts", "hosts.txt", "path to the host directory file")
	flag.Parse()

	args := flag.Args()
	if len(args) != 3 {
		return fmt.Errorf("usage: clidriver [flags] <uid> <value> <desiredProposerIndex>")
	}
	uid, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad uid %q: %w", args[0], err)
	}
	value, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("bad value %q: %w", args[1], err)
	}
	desiredProposerIndex, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("bad desiredProposerIndex %q: %w", args[2], err)
	}

	dir, err := directory.LoadFile(*hostsPath)
	if err != nil {
		return err
	}
	self := directory.NodeID(uid)
	if dir.IsConsensus(self) {
		return fmt.Errorf("uid %d is a consensus node, not a client, in %s", uid, *hostsPath)
	}

	logs := make(chan logging.LoggerEntry, 64)
	done := make(chan struct{})
	go logging.ConsoleSink(logs, done)
	logger := logging.New(fmt.Sprintf("[cli %d]", uid), logs)

	endpoint := dir.Endpoint(self)
	t, err := transport.NewUDP(endpoint)
	if err != nil {
		return err
	}

	consensus := make([]directory.Endpoint, 0, dir.Counts.ConsensusCount())
	for _, e := range dir.ConsensusEntries() {
		consensus = append(consensus, e.Endpoint)
	}

	disp := dispatch.New(t, logger)
	client := clientnode.New(self, desiredProposerIndex, consensus, disp, logger)
	if err := disp.Start(client.Handle); err != nil {
		return err
	}

	proposer, err := client.Initialize()
	if err != nil {
		client.Cleanup()
		close(done)
		return err
	}

	result := client.Set(proposer, value)
	fmt.Printf("%d\n", result)

	client.Cleanup()
	close(done)
	return nil
}
