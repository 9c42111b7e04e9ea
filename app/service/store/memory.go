package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"pairtalk/app/util/apperr"
)

var _ Store = (*Memory)(nil)

// Memory keeps everything in process. It is not persistent and is meant for local mode and tests.
type Memory struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	messages  map[string][]*Message
	summaries map[string]*Summary
	framings  map[string]string

	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		sessions:  make(map[string]*Session),
		messages:  make(map[string][]*Message),
		summaries: make(map[string]*Summary),
		framings:  make(map[string]string),
		now:       time.Now,
	}
}

func (s *Memory) CreateSession(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return apperr.Conflict(domain, "session %s already exists", session.ID)
	}

	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}

	stored := *session
	s.sessions[session.ID] = &stored

	return nil
}

func (s *Memory) GetSession(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, sessionNotFound(id)
	}

	result := *session
	return &result, nil
}

func (s *Memory) ListSessions(_ context.Context) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		copied := *session
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (s *Memory) AppendMessages(_ context.Context, msgs ...*Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range msgs {
		if _, ok := s.sessions[msg.SessionID]; !ok {
			return sessionNotFound(msg.SessionID)
		}
	}

	s.appendLocked(msgs)

	return nil
}

func (s *Memory) AppendTurn(_ context.Context, turn *Turn) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[turn.SessionID]
	if !ok {
		return false, sessionNotFound(turn.SessionID)
	}

	for _, msg := range turn.Messages {
		if msg.SessionID != turn.SessionID {
			return false, apperr.Validation(domain, "message for session %s in a turn of %s", msg.SessionID, turn.SessionID)
		}
	}

	if turn.Summary != nil && session.PartnerIndex(turn.Summary.Partner) < 0 {
		return false, notPartner(turn.SessionID, turn.Summary.Partner)
	}

	s.appendLocked(turn.Messages)

	if turn.Framing != nil {
		key := summaryKey(turn.SessionID, turn.Partner)
		if _, exists := s.framings[key]; !exists {
			s.framings[key] = *turn.Framing
		}
	}

	if turn.Summary == nil {
		return false, nil
	}

	key := summaryKey(turn.SessionID, turn.Summary.Partner)
	if _, exists := s.summaries[key]; exists {
		return false, nil
	}

	if turn.Summary.CreatedAt.IsZero() {
		turn.Summary.CreatedAt = s.now()
	}

	stored := *turn.Summary
	s.summaries[key] = &stored

	return true, nil
}

func (s *Memory) appendLocked(msgs []*Message) {
	for _, msg := range msgs {
		log := s.messages[msg.SessionID]

		msg.Seq = uint64(len(log)) + 1
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = s.now()
		}

		stored := *msg
		s.messages[msg.SessionID] = append(log, &stored)
	}
}

func (s *Memory) ListMessages(_ context.Context, sessionID string) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, sessionNotFound(sessionID)
	}

	log := s.messages[sessionID]
	result := make([]*Message, 0, len(log))
	for _, msg := range log {
		copied := *msg
		result = append(result, &copied)
	}

	return result, nil
}

func (s *Memory) CreateSummary(_ context.Context, summary *Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[summary.SessionID]
	if !ok {
		return sessionNotFound(summary.SessionID)
	}
	if session.PartnerIndex(summary.Partner) < 0 {
		return notPartner(summary.SessionID, summary.Partner)
	}

	key := summaryKey(summary.SessionID, summary.Partner)
	if _, exists := s.summaries[key]; exists {
		return summaryExists(summary.SessionID, summary.Partner)
	}

	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = s.now()
	}

	stored := *summary
	s.summaries[key] = &stored

	return nil
}

func (s *Memory) GetSummary(_ context.Context, sessionID, partner string) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[summaryKey(sessionID, partner)]
	if !ok {
		return nil, summaryNotFound(sessionID, partner)
	}

	result := *summary
	return &result, nil
}

func (s *Memory) ListSummaries(_ context.Context, sessionID string) ([]*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sessionNotFound(sessionID)
	}

	result := make([]*Summary, 0, 2)
	for _, partner := range session.Partners {
		if summary, ok := s.summaries[summaryKey(sessionID, partner)]; ok {
			copied := *summary
			result = append(result, &copied)
		}
	}

	return result, nil
}

func (s *Memory) GetFraming(_ context.Context, sessionID, partner string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text, ok := s.framings[summaryKey(sessionID, partner)]
	return text, ok, nil
}

func (s *Memory) PutFraming(_ context.Context, sessionID, partner, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return sessionNotFound(sessionID)
	}

	key := summaryKey(sessionID, partner)
	if _, exists := s.framings[key]; !exists {
		s.framings[key] = text
	}

	return nil
}
