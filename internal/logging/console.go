package logging

import "fmt"

// ConsoleSink drains logs and prints each entry to stdout, one line per
// message, prefixed with a formatted timestamp. This is the sink used
// by condriver and clidriver; the playground uses a tview text view
// sink instead (see internal/monitor).
func ConsoleSink(logs chan LoggerEntry, done <-chan struct{}) {
	start := nowFunc()
	for {
		select {
		case entry, ok := <-logs:
			if !ok {
				return
			}
			prefix := formatTimestamp(start, entry.Timestamp)
			for _, message := range entry.Messages {
				fmt.Printf("%s %s\n", prefix, message)
			}
		case <-done:
			return
		}
	}
}
