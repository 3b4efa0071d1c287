// Package session sequences user interaction with the prompt gateway as a
// two-state machine with an append-only transcript.
package session

import (
	"context"
	"log"
	"strings"
	"sync"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. Messages are never mutated after
// creation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// State is the submission state of the session.
type State int

const (
	// StateIdle accepts submissions.
	StateIdle State = iota
	// StatePending has exactly one gateway call in flight.
	StatePending
)

// Apology is appended to the transcript when a gateway call fails, whatever
// the cause. The underlying error is only logged.
const Apology = "Sorry, I encountered an error. Please try again."

// Completer issues one completion call to the gateway.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Session holds the ordered transcript and enforces single-flight
// submission. The zero value is not usable; use New.
type Session struct {
	mu         sync.Mutex
	state      State
	transcript []Message
	completer  Completer
}

// New creates an idle session with an empty transcript.
func New(completer Completer) *Session {
	return &Session{
		state:     StateIdle,
		completer: completer,
	}
}

// Submit appends the user message and issues one asynchronous gateway
// call. It is a no-op (ok=false, nil channel) if the session is pending or
// the text is blank. The returned channel is closed when the call settles
// and the assistant (or apology) message has been appended.
func (s *Session) Submit(ctx context.Context, text string) (<-chan struct{}, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, false
	}
	s.transcript = append(s.transcript, Message{Role: RoleUser, Content: text})
	s.state = StatePending
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)

		reply, err := s.completer.Complete(ctx, text)
		if err != nil {
			log.Printf("WARN: gateway call failed: %v", err)
			reply = Apology
		}

		s.mu.Lock()
		s.transcript = append(s.transcript, Message{Role: RoleAssistant, Content: reply})
		s.state = StateIdle
		s.mu.Unlock()
	}()

	return done, true
}

// State returns the current submission state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the transcript in insertion order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Len returns the transcript length.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}
