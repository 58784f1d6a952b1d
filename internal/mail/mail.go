// Package mail sends account email. Only a logging transport ships; a real
// SMTP or API sender implements Mailer the same way.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes each message to the logger instead of delivering it.
type LogMailer struct {
	from   string
	logger *slog.Logger
}

func NewLogMailer(from string, logger *slog.Logger) *LogMailer {
	return &LogMailer{from: from, logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("mail: message has no recipient")
	}
	m.logger.InfoContext(ctx, "email sent",
		slog.String("from", m.from),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Body),
	)
	return nil
}

// Recorder keeps sent messages in memory. Tests use it to read codes.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

// Last returns the most recent message, or false when nothing was sent.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Message{}, false
	}
	return r.sent[len(r.sent)-1], true
}

func VerificationMessage(to, code string) Message {
	return Message{
		To:      to,
		Subject: "Your verification code",
		Body:    fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", code),
	}
}

func WelcomeMessage(to, username string) Message {
	return Message{
		To:      to,
		Subject: "Welcome to videohub",
		Body:    fmt.Sprintf("Hi %s, your email is verified and your account is ready.", username),
	}
}
