package logging

import (
	"fmt"
	"time"
)

func nowFunc() time.Time {
	return time.Now()
}

// formatTimestamp renders the time elapsed since start as
// [MM:SS:mmmm] (milliseconds zero-padded to four digits), matching the
// teacher playground's renderLogs format.
func formatTimestamp(start time.Time, end time.Time) string {
	diff := end.Sub(start)
	return fmt.Sprintf("[%02d:%02d:%04d]", int(diff.Minutes()), int(diff.Seconds())%60, diff.Milliseconds()%1000)
}
