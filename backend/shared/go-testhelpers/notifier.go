package testhelpers

import (
	"context"
	"sync"
)

// SentMessage is one notification captured by RecordingSender.
type SentMessage struct {
	To      string
	Subject string
	Body    string
}

// RecordingSender captures notifications instead of delivering them. Set
// Err to make every send fail.
type RecordingSender struct {
	mu   sync.Mutex
	Err  error
	sent []SentMessage
}

func (s *RecordingSender) Send(_ context.Context, to, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.sent = append(s.sent, SentMessage{To: to, Subject: subject, Body: body})
	return nil
}

func (s *RecordingSender) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentMessage(nil), s.sent...)
}

// Recipients lists the addresses notified so far, in send order.
func (s *RecordingSender) Recipients() []string {
	out := []string{}
	for _, m := range s.Sent() {
		out = append(out, m.To)
	}
	return out
}
