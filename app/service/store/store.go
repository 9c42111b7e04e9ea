package store

import (
	"context"
	"fmt"

	"pairtalk/app/config"
	"pairtalk/app/util/apperr"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/do"
)

const domain = "store"

// Store is the session, message log and summary persistence used by every service.
type Store interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context) ([]*Session, error)

	// AppendMessages appends msgs contiguously, in order, assigning Seq and, when unset, CreatedAt.
	AppendMessages(ctx context.Context, msgs ...*Message) error
	ListMessages(ctx context.Context, sessionID string) ([]*Message, error)

	// AppendTurn writes the turn's messages, summary and framing together or not at all.
	// A summary the partner already has is kept; summaryStored reports whether turn.Summary was written.
	AppendTurn(ctx context.Context, turn *Turn) (summaryStored bool, err error)

	// CreateSummary fails with apperr.ErrConflict when the partner already has one.
	CreateSummary(ctx context.Context, summary *Summary) error
	GetSummary(ctx context.Context, sessionID, partner string) (*Summary, error)
	ListSummaries(ctx context.Context, sessionID string) ([]*Summary, error)

	// Framing is the first partner's summary as seen when the other partner's conversation started.
	GetFraming(ctx context.Context, sessionID, partner string) (string, bool, error)
	PutFraming(ctx context.Context, sessionID, partner, text string) error
}

func New(di *do.Injector) (Store, error) {
	cfg := do.MustInvoke[*config.Config](di)

	switch cfg.Storage.Backend {
	case "badger":
		db := do.MustInvoke[*badger.DB](di)
		return NewBadger(db), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, apperr.Validation(domain, "unknown storage backend %q", cfg.Storage.Backend)
	}
}

func sessionNotFound(id string) error {
	return apperr.NotFound(domain, "session %s not found", id)
}

func summaryNotFound(sessionID, partner string) error {
	return apperr.NotFound(domain, "summary for %s in session %s not found", partner, sessionID)
}

func summaryExists(sessionID, partner string) error {
	return apperr.Conflict(domain, "summary for %s in session %s already exists", partner, sessionID)
}

func notPartner(sessionID, partner string) error {
	return apperr.Validation(domain, "%s is not a partner of session %s", partner, sessionID)
}

func summaryKey(sessionID, partner string) string {
	return fmt.Sprintf("%s\x00%s", sessionID, partner)
}
