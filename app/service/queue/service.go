package queue

import (
	"log/slog"
	"sync"

	"pairtalk/app/config"

	"github.com/samber/do"
)

var _ do.Shutdownable = (*Service)(nil)

// Service holds session ids whose finalization check failed and must be retried.
type Service struct {
	mu     sync.RWMutex
	queue  chan string
	closed bool
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(cfg.Mediation.QueueSize), nil
}

func NewService(size int) *Service {
	return &Service{
		queue: make(chan string, size),
	}
}

// Add never blocks. When the queue is full the session is left to the periodic sweep.
func (s *Service) Add(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.queue <- sessionID:
		return true
	default:
		slog.Warn("finalize queue is full",
			"session_id", sessionID)
		return false
	}
}

func (s *Service) Channel() <-chan string {
	return s.queue
}

func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.queue)
	}

	return nil
}
