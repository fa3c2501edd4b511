package email

import (
	"context"
	"sync"
)

// SentEmail is a message captured by MemorySender
type SentEmail struct {
	To    string
	Token string
}

// MemorySender records messages instead of sending them. Used in tests and
// when SES is not configured in development.
type MemorySender struct {
	mu   sync.Mutex
	Sent []SentEmail
	Err  error
}

var _ Sender = (*MemorySender)(nil)

func (m *MemorySender) SendPasswordResetEmail(_ context.Context, toEmail, resetToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentEmail{To: toEmail, Token: resetToken})
	return nil
}

// Last returns the most recent message, if any
func (m *MemorySender) Last() (SentEmail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return SentEmail{}, false
	}
	return m.Sent[len(m.Sent)-1], true
}
