package helper

import (
	"context"
	"sync"
)

// SentMessage is one message handed to NotifierSpy.
type SentMessage struct {
	To      string
	Subject string
	Body    string
}

// NotifierSpy records sent messages and can be told to fail for specific recipients.
type NotifierSpy struct {
	sent    []SentMessage
	failFor map[string]error
	mu      sync.Mutex
}

// NewNotifierSpy creates a NotifierSpy that accepts every message.
func NewNotifierSpy() *NotifierSpy {
	return &NotifierSpy{
		sent:    make([]SentMessage, 0),
		failFor: make(map[string]error),
	}
}

// FailFor makes every Send to recipient return err.
func (s *NotifierSpy) FailFor(recipient string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failFor[recipient] = err
}

// Send records the message unless the recipient is configured to fail.
func (s *NotifierSpy) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failFor[to]; ok {
		return err
	}

	s.sent = append(s.sent, SentMessage{To: to, Subject: subject, Body: body})

	return nil
}

// Sent returns a copy of the messages sent so far.
func (s *NotifierSpy) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	sent := make([]SentMessage, len(s.sent))
	copy(sent, s.sent)

	return sent
}
