// Command condriver runs a single consensus process: it loads the
// shared host directory, determines its own identity from the uid
// argument, runs the election/role-assignment bootstrap, then serves
// Paxos messages until it receives TERMINATE. See spec.md 4.1 and 6.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/dvossen/paxosring/internal/consnode"
	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/logging"
	"github.com/dvossen/paxosring/internal/paxosconfig"
	"github.com/dvossen/paxosring/internal/timer"
	"github.com/dvossen/paxosring/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "condriver:", err)
		os.Exit(1)
	}
}

func run() error {
	hostsPath := flag.String("hosts", "hosts.txt", "path to the host directory file")
	debug := flag.Bool("debug", false, "enable verbose handler tracing")
	backoff := flag.Bool("backoff", false, "enable bounded proposer retry after NACK")
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		return fmt.Errorf("usage: condriver [flags] <uid>")
	}
	uid, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad uid %q: %w", args[0], err)
	}
	self := directory.NodeID(uid)

	dir, err := directory.LoadFile(*hostsPath)
	if err != nil {
		return err
	}
	if !dir.IsConsensus(self) {
		return fmt.Errorf("uid %d is not a consensus node in %s", uid, *hostsPath)
	}

	cfg := paxosconfig.Default()
	cfg.Debug = *debug
	cfg.Backoff = *backoff

	logs := make(chan logging.LoggerEntry, 256)
	done := make(chan struct{})
	go logging.ConsoleSink(logs, done)
	logger := logging.New(fmt.Sprintf("[con %d]", uid), logs)

	endpoint := dir.Endpoint(self)
	t, err := transport.NewUDP(endpoint)
	if err != nil {
		return err
	}

	node := consnode.New(dir, self, t, logger, cfg, timer.RealFactory{})
	if err := node.Start(); err != nil {
		return err
	}
	node.AwaitLeadership()

	<-node.Done()
	node.Stop()
	close(done)
	return nil
}
