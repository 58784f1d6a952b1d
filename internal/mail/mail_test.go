package mail

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMailer_Send(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer("no-reply@test", slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, m.Send(context.Background(), VerificationMessage("a@example.com", "123456")))
	out := buf.String()
	assert.True(t, strings.Contains(out, "to=a@example.com"), out)
	assert.True(t, strings.Contains(out, "123456"), out)

	assert.Error(t, m.Send(context.Background(), Message{Subject: "x"}))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	_, ok := r.Last()
	assert.False(t, ok)

	_ = r.Send(context.Background(), WelcomeMessage("a@example.com", "alex"))
	_ = r.Send(context.Background(), VerificationMessage("b@example.com", "000111"))

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "b@example.com", last.To)
	assert.Len(t, r.Sent(), 2)
}
