package store

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session pairs exactly two partners. Partners never change after creation.
type Session struct {
	ID        string    `json:"id"`
	Partners  [2]string `json:"partners"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Composite joins the partner names with sep, the form the session was requested in.
func (s *Session) Composite(sep string) string {
	return strings.Join(s.Partners[:], " "+sep+" ")
}

// PartnerIndex returns 0 or 1 for a partner of the session, -1 otherwise.
func (s *Session) PartnerIndex(name string) int {
	for i, partner := range s.Partners {
		if partner == name {
			return i
		}
	}

	return -1
}

// Message is one entry of a session's append-only log. Seq is assigned by the store.
type Message struct {
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Role      Role      `json:"role"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type Summary struct {
	SessionID string    `json:"session_id"`
	Partner   string    `json:"partner"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Turn is everything one conversation turn writes. Summary and Framing are optional.
type Turn struct {
	SessionID string
	Partner   string
	Messages  []*Message
	Summary   *Summary
	Framing   *string
}
