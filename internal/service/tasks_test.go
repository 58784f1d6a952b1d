package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scheduled is one call captured by fakeScheduler.
type scheduled struct {
	name    string
	payload []byte
	delay   time.Duration
}

// fakeScheduler records Schedule calls instead of running anything. Tests
// invoke the task handler with the recorded payload.
type fakeScheduler struct {
	mu    sync.Mutex
	calls []scheduled
	err   error
}

func (f *fakeScheduler) Schedule(_ context.Context, name string, payload any, delay time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, scheduled{name: name, payload: b, delay: delay})
	return "task-1", nil
}

func (f *fakeScheduler) last(t *testing.T) scheduled {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls, "nothing scheduled")
	return f.calls[len(f.calls)-1]
}

var errScheduler = errors.New("scheduler down")

func TestFormatDelay(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{-5, "0s"},
		{0, "0s"},
		{59, "59s"},
		{60, "1m 0s"},
		{3600, "1h 0m 0s"},
		{3725, "1h 2m 5s"},
		{90061, "25h 1m 1s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDelay(tt.seconds))
		})
	}
}

func TestProperty_FormatDelayRoundTrips(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("parsing the rendered units gives back the seconds", prop.ForAll(
		func(seconds int) bool {
			d, err := time.ParseDuration(stripSpaces(FormatDelay(seconds)))
			return err == nil && int(d.Seconds()) == seconds
		},
		gen.IntRange(0, 10*24*3600),
	))

	properties.TestingRun(t)
}

func stripSpaces(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
