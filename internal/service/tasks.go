package service

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Task names registered with the scheduler.
const (
	TaskPrintStory      = "story.print"
	TaskExtractDocument = "document.extract"
)

// Scheduler runs a named task after delay without blocking the caller.
type Scheduler interface {
	Schedule(ctx context.Context, name string, payload any, delay time.Duration) (string, error)
}

// workPayload is what both task handlers receive. Handlers reload the
// work item by id, so a re-run sees current state.
type workPayload struct {
	ID string `json:"id"`
}

// FormatDelay renders seconds as "1h 2m 5s", dropping leading zero units.
func FormatDelay(seconds int) string {
	if seconds <= 0 {
		return "0s"
	}
	h, m, s := seconds/3600, seconds%3600/60, seconds%60

	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if h > 0 || m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	parts = append(parts, fmt.Sprintf("%ds", s))
	return strings.Join(parts, " ")
}

func delayOf(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
