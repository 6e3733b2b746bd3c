// Command playground is an interactive, in-process simulator for the
// bootstrap-and-Paxos protocol, adapted in spirit from the teacher
// playground's cli package: it wires an entire cluster over the
// in-memory transport in a single process and drives a tview terminal
// UI instead of real sockets and separate condriver/clidriver
// invocations. It is not part of the CORE and never changes the
// CORE's semantics -- it is a thin harness over the same internal
// packages cmd/condriver and cmd/clidriver use.
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dvossen/paxosring/internal/clientnode"
	"github.com/dvossen/paxosring/internal/consnode"
	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/dispatch"
	"github.com/dvossen/paxosring/internal/logging"
	"github.com/dvossen/paxosring/internal/monitor"
	"github.com/dvossen/paxosring/internal/paxosconfig"
	"github.com/dvossen/paxosring/internal/timer"
	"github.com/dvossen/paxosring/internal/transport"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

func main() {
	proposers := flag.Int("proposers", 1, "number of proposers")
	acceptors := flag.Int("acceptors", 3, "number of acceptors")
	learners := flag.Int("learners", 1, "number of learners")
	clients := flag.Int("clients", 2, "number of clients")
	debug := flag.Bool("debug", false, "enable verbose handler tracing")
	backoff := flag.Bool("backoff", false, "enable bounded proposer retry after NACK")
	flag.Parse()

	cfg := paxosconfig.Default()
	cfg.Debug = *debug
	cfg.Backoff = *backoff

	dirText := buildDirectoryText(*proposers, *acceptors, *learners, *clients, 20000)
	dir, err := directory.ParseDirectory(strings.NewReader(dirText))
	if err != nil {
		log.Fatalf("playground: %v", err)
	}

	p := newPlayground(dir, cfg)
	p.startConsensusNodes()

	app := monitor.Build(p.consensusNodes(), p.logs)
	defer app.Stop()

	go listenForCommands(app.Input, p)

	if err := app.Application.Run(); err != nil {
		log.Fatalf("playground: %v", err)
	}
}

// playground owns the in-memory network and every node/client wired to
// it, plus the per-client proposer selection learned at Initialize, so
// repeated "client" commands don't need to re-announce topology.
type playground struct {
	dir     *directory.Directory
	cfg     paxosconfig.Config
	network *transport.Network
	logs    chan logging.LoggerEntry

	nodes map[directory.NodeID]*consnode.Node

	mu        sync.Mutex
	clients   map[directory.NodeID]*clientnode.Client
	proposers map[directory.NodeID]directory.Endpoint
}

func newPlayground(dir *directory.Directory, cfg paxosconfig.Config) *playground {
	return &playground{
		dir:       dir,
		cfg:       cfg,
		network:   transport.NewNetwork(),
		logs:      make(chan logging.LoggerEntry, 2000),
		nodes:     make(map[directory.NodeID]*consnode.Node),
		clients:   make(map[directory.NodeID]*clientnode.Client),
		proposers: make(map[directory.NodeID]directory.Endpoint),
	}
}

func (p *playground) startConsensusNodes() {
	for _, entry := range p.dir.ConsensusEntries() {
		logger := logging.New(fmt.Sprintf("[con %d]", entry.ID), p.logs)
		t := transport.NewMemory(p.network, entry.Endpoint)
		node := consnode.New(p.dir, entry.ID, t, logger, p.cfg, timer.RealFactory{})
		p.nodes[entry.ID] = node
		if err := node.Start(); err != nil {
			log.Fatalf("playground: node %d: %v", entry.ID, err)
		}
	}
	for _, node := range p.nodes {
		go node.AwaitLeadership()
	}
}

func (p *playground) consensusNodes() []*consnode.Node {
	out := make([]*consnode.Node, 0, len(p.nodes))
	for _, n := range p.nodes {
		out = append(out, n)
	}
	return out
}

func (p *playground) consensusEndpoints() []directory.Endpoint {
	out := make([]directory.Endpoint, 0, len(p.dir.ConsensusEntries()))
	for _, e := range p.dir.ConsensusEntries() {
		out = append(out, e.Endpoint)
	}
	return out
}

// submit lazily builds and starts the Client for id, and -- the
// first time -- blocks (in a goroutine, not the caller) on Initialize
// to learn its proposer, reusing the teacher playground's
// lazily-started-per-command-node pattern from command_handling.go's
// "client" case.
func (p *playground) submit(id directory.NodeID, value int64, desiredProposerIndex int, logger *logging.Logger) {
	p.mu.Lock()
	client, ok := p.clients[id]
	if !ok {
		t := transport.NewMemory(p.network, p.dir.Endpoint(id))
		disp := dispatch.New(t, logger)
		client = clientnode.New(id, desiredProposerIndex, p.consensusEndpoints(), disp, logger)
		if err := disp.Start(client.Handle); err != nil {
			p.mu.Unlock()
			logger.Logf("client %d: start failed: %v", id, err)
			return
		}
		p.clients[id] = client
	}
	p.mu.Unlock()

	go func() {
		p.mu.Lock()
		proposer, cached := p.proposers[id]
		p.mu.Unlock()
		if !cached {
			selected, err := client.Initialize()
			if err != nil {
				logger.Logf("client %d: initialize failed: %v", id, err)
				return
			}
			p.mu.Lock()
			p.proposers[id] = selected
			p.mu.Unlock()
			proposer = selected
		}

		result := client.Set(proposer, value)
		logger.Logf("client %d: SET(%d) -> %d", id, value, result)
	}()
}

func buildDirectoryText(p, a, l, clients, basePort int) string {
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

// listenForCommands is the playground's command loop, adapted from the
// teacher's cli.listenForUserCommands / handleCommand.
func listenForCommands(input *tview.InputField, p *playground) {
	logger := logging.New("[COMMAND]", p.logs)
	commands := make(chan string)
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			if text := input.GetText(); text != "" {
				commands <- text
			}
		}
	})

	for command := range commands {
		handleCommand(command, p, logger)
		input.SetText("")
	}
}

func handleCommand(command string, p *playground, logger *logging.Logger) {
	tokens := strings.Fields(command)
	if len(tokens) == 0 {
		return
	}

	switch tokens[0] {
	case "client":
		if len(tokens) != 4 {
			logInvalidCommand(command, logger)
			return
		}
		id, err1 := strconv.Atoi(tokens[1])
		value, err2 := strconv.ParseInt(tokens[2], 10, 64)
		idx, err3 := strconv.Atoi(tokens[3])
		if err1 != nil || err2 != nil || err3 != nil {
			logInvalidCommand(command, logger)
			return
		}
		logger.Log(command)
		p.submit(directory.NodeID(id), value, idx, logger)

	case "network-splits":
		if len(tokens) < 2 {
			logInvalidCommand(command, logger)
			return
		}
		splits := make([][]directory.Endpoint, len(tokens[1:]))
		for i, group := range tokens[1:] {
			ids := strings.Split(group, ",")
			splits[i] = make([]directory.Endpoint, len(ids))
			for j, idStr := range ids {
				id, err := strconv.Atoi(idStr)
				if err != nil {
					logInvalidCommand(command, logger)
					return
				}
				splits[i][j] = p.dir.Endpoint(directory.NodeID(id))
			}
		}
		p.network.SetPartitions(splits)
		logger.Log(command)

	case "network-latency":
		if len(tokens) != 2 {
			logInvalidCommand(command, logger)
			return
		}
		ms, err := strconv.Atoi(tokens[1])
		if err != nil {
			logInvalidCommand(command, logger)
			return
		}
		latency := time.Duration(ms) * time.Millisecond
		p.network.SetLatency(latency, latency/4+1)
		logger.Log(command)

	case "help":
		logHelp(logger)

	default:
		logInvalidCommand(command, logger)
	}
}

func logInvalidCommand(command string, logger *logging.Logger) {
	logger.Log(fmt.Sprintf("'%s' - invalid command", command))
	logHelp(logger)
}

func logHelp(logger *logging.Logger) {
	logger.LogMultiple([]string{
		"Available commands:",
		"client <ID> <VALUE> <PROPOSER_INDEX> (e.g. client 6 210 0) - submits a value as the given client",
		"network-splits <GROUP> [<GROUP>...] (e.g. network-splits 0,1,2 3,4) - partitions nodes by id into groups that can only reach their own group",
		"network-latency <MILLIS> (e.g. network-latency 200) - sets simulated network latency",
		"help - displays this information",
	})
}
