// Package monitor renders the live state of a simulated cluster into a
// tview terminal UI: a node-state table and a scrolling log pane,
// adapted from the teacher playground's cli.renderNodesState and
// cli.renderLogs. It is used only by cmd/playground; nothing in the
// CORE (condriver, clidriver, the internal protocol packages) depends
// on it.
package monitor

import (
	"fmt"
	"sort"
	"time"

	"github.com/dvossen/paxosring/internal/consnode"
	"github.com/dvossen/paxosring/internal/directory"
	"github.com/dvossen/paxosring/internal/logging"
	"github.com/rivo/tview"
)

// App bundles the tview application and the quit channel that stops
// its background render loops, mirroring the teacher's
// (app, appQuit) return from setupApp.
type App struct {
	Application *tview.Application
	Input       *tview.InputField
	quit        chan struct{}
}

// Build constructs the three-pane layout (node table, log view, command
// input) and starts the background goroutines that keep the node table
// refreshed and drain the shared log channel into the log view, exactly
// as the teacher's setupApp does for its raft node table.
func Build(nodes []*consnode.Node, logs chan logging.LoggerEntry) *App {
	flex := tview.NewFlex()
	flex.SetDirection(tview.FlexRow)

	nodesView := tview.NewTextView()
	nodesView.SetBorder(true).SetTitle("Cluster State")
	flex.AddItem(nodesView, 0, 2, false)

	logsView := tview.NewTextView()
	logsView.SetBorder(true).SetTitle("Logs")
	flex.AddItem(logsView, 0, 3, false)

	input := tview.NewInputField()
	input.SetBorder(true).SetTitle("Commands Input")
	flex.AddItem(input, 3, 1, true)

	quit := make(chan struct{})
	application := tview.NewApplication().SetRoot(flex, true)

	go renderLogs(logs, logsView, quit)
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				renderNodes(nodes, nodesView)
				application.Draw()
			case <-quit:
				return
			}
		}
	}()

	return &App{Application: application, Input: input, quit: quit}
}

// Stop releases the render loops started by Build.
func (a *App) Stop() {
	close(a.quit)
}

func renderNodes(nodes []*consnode.Node, view *tview.TextView) {
	writer := view.BatchWriter()
	writer.Clear()
	defer writer.Close()

	snapshots := make([]consnode.Snapshot, len(nodes))
	for i, n := range nodes {
		snapshots[i] = n.Snapshot()
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].ID < snapshots[j].ID })

	for _, s := range snapshots {
		if !s.RoleReady {
			fmt.Fprintf(writer, "NODE: %d  ROLE: %-10s\n\n", s.ID, "(electing)")
			continue
		}
		fmt.Fprintf(writer, "NODE: %d  ROLE: %-10s\n", s.ID, s.Role.String())
		switch s.Role {
		case directory.Acceptor:
			fmt.Fprintf(writer, "  minProposal: %s  acceptedNumber: %s  acceptedValue: %s\n",
				formatOptional(s.MinProposal), formatOptional(s.AcceptedNumber), formatAcceptedValue(s))
		case directory.Proposer:
			fmt.Fprintf(writer, "  active rounds: %v\n", s.ActiveRounds)
		}
		fmt.Fprintf(writer, "\n")
	}
}

func formatOptional(n int64) string {
	if n < 0 {
		return "none"
	}
	return fmt.Sprintf("%d", n)
}

func formatAcceptedValue(s consnode.Snapshot) string {
	if !s.HasAccepted {
		return "none"
	}
	return fmt.Sprintf("%d", s.AcceptedValue)
}

func renderLogs(logs chan logging.LoggerEntry, view *tview.TextView, quit chan struct{}) {
	start := time.Now()
	for {
		select {
		case entry := <-logs:
			writer := view.BatchWriter()
			prefix := formatTimestamp(start, entry.Timestamp)
			for _, message := range entry.Messages {
				fmt.Fprintf(writer, "%s %s\n", prefix, message)
			}
			writer.Close()
		case <-quit:
			return
		}
	}
}

func formatTimestamp(start time.Time, end time.Time) string {
	diff := end.Sub(start)
	return fmt.Sprintf("[%02d:%02d:%04d]", int(diff.Minutes()), int(diff.Seconds())%60, diff.Milliseconds()%1000)
}
