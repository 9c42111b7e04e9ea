package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/samber/do"
)

const subscriberBuffer = 8

type Kind string

const (
	KindSummaryStored Kind = "summary_stored"
	KindFinalized     Kind = "finalized"
)

type Event struct {
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"session_id"`
	Partner   string    `json:"partner,omitempty"`
	Text      string    `json:"text,omitempty"`
	At        time.Time `json:"at"`
}

var _ do.Shutdownable = (*Service)(nil)

// Service fans session events out to in-process subscribers.
type Service struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Event
	closed bool
}

func New(_ *do.Injector) (*Service, error) {
	return NewService(), nil
}

func NewService() *Service {
	return &Service{
		subs: make(map[string]map[int]chan Event),
	}
}

// Subscribe returns a channel receiving the session's events until cancel is called.
func (s *Service) Subscribe(sessionID string) (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++

	if s.subs[sessionID] == nil {
		s.subs[sessionID] = make(map[int]chan Event)
	}
	s.subs[sessionID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			if sub, ok := s.subs[sessionID][id]; ok {
				delete(s.subs[sessionID], id)
				if len(s.subs[sessionID]) == 0 {
					delete(s.subs, sessionID)
				}
				close(sub)
			}
		})
	}

	return ch, cancel
}

// Subscribers counts the session's open subscriptions.
func (s *Service) Subscribers(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.subs[sessionID])
}

// Publish never blocks; a subscriber whose buffer is full misses the event.
func (s *Service) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs[event.SessionID] {
		select {
		case ch <- event:
		default:
			slog.Warn("event subscriber is full",
				"session_id", event.SessionID,
				"kind", event.Kind)
		}
	}
}

func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for sessionID, subs := range s.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(s.subs, sessionID)
	}

	return nil
}
