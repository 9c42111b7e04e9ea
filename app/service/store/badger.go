package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"pairtalk/app/util/apperr"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const maxConflictRetries = 64

var (
	_ Store           = (*Badger)(nil)
	_ do.Shutdownable = (*Badger)(nil)
)

// Badger persists sessions in an embedded BadgerDB.
//
// Key layout:
//
//	s/<session>                session
//	seq/<session>              last assigned message sequence (uint64, big endian)
//	m/<session>/<seq:020d>     message
//	sum/<session>/<partner>    summary
//	frm/<session>/<partner>    framing snapshot
type Badger struct {
	db  *badger.DB
	now func() time.Time
}

func NewBadger(db *badger.DB) *Badger {
	return &Badger{
		db:  db,
		now: time.Now,
	}
}

func sessionKey(id string) []byte {
	return []byte("s/" + id)
}

func seqKey(sessionID string) []byte {
	return []byte("seq/" + sessionID)
}

func messagePrefix(sessionID string) []byte {
	return []byte("m/" + sessionID + "/")
}

func messageKey(sessionID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("m/%s/%020d", sessionID, seq))
}

func summaryPrefix(sessionID string) []byte {
	return []byte("sum/" + sessionID + "/")
}

func badgerSummaryKey(sessionID, partner string) []byte {
	return append(summaryPrefix(sessionID), partner...)
}

func framingKey(sessionID, partner string) []byte {
	return []byte("frm/" + sessionID + "/" + partner)
}

func (s *Badger) CreateSession(_ context.Context, session *Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}

	return s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get(sessionKey(session.ID)); err == nil {
			return apperr.Conflict(domain, "session %s already exists", session.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		return setJSON(txn, sessionKey(session.ID), session)
	})
}

func (s *Badger) GetSession(_ context.Context, id string) (*Session, error) {
	var session Session

	err := s.db.View(func(txn *badger.Txn) error {
		return getSession(txn, id, &session)
	})
	if err != nil {
		return nil, wrapBadger(err, "get session")
	}

	return &session, nil
}

func (s *Badger) ListSessions(_ context.Context) ([]*Session, error) {
	var result []*Session

	err := s.db.View(func(txn *badger.Txn) error {
		return iteratePrefix(txn, []byte("s/"), func(value []byte) error {
			var session Session
			if err := json.Unmarshal(value, &session); err != nil {
				return err
			}

			result = append(result, &session)
			return nil
		})
	})
	if err != nil {
		return nil, wrapBadger(err, "list sessions")
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (s *Badger) AppendMessages(_ context.Context, msgs ...*Message) error {
	s.stamp(msgs)

	return s.update(func(txn *badger.Txn) error {
		return appendTxn(txn, msgs)
	})
}

func (s *Badger) AppendTurn(_ context.Context, turn *Turn) (bool, error) {
	s.stamp(turn.Messages)
	if turn.Summary != nil && turn.Summary.CreatedAt.IsZero() {
		turn.Summary.CreatedAt = s.now()
	}

	var summaryStored bool

	err := s.update(func(txn *badger.Txn) error {
		summaryStored = false

		var session Session
		if err := getSession(txn, turn.SessionID, &session); err != nil {
			return err
		}

		for _, msg := range turn.Messages {
			if msg.SessionID != turn.SessionID {
				return apperr.Validation(domain, "message for session %s in a turn of %s", msg.SessionID, turn.SessionID)
			}
		}

		if turn.Summary != nil && session.PartnerIndex(turn.Summary.Partner) < 0 {
			return notPartner(turn.SessionID, turn.Summary.Partner)
		}

		if err := appendTxn(txn, turn.Messages); err != nil {
			return err
		}

		if turn.Framing != nil {
			if err := setIfAbsent(txn, framingKey(turn.SessionID, turn.Partner), []byte(*turn.Framing)); err != nil {
				return err
			}
		}

		if turn.Summary == nil {
			return nil
		}

		key := badgerSummaryKey(turn.SessionID, turn.Summary.Partner)
		exists, err := keyExists(txn, key)
		if err != nil || exists {
			return err
		}

		summaryStored = true
		return setJSON(txn, key, turn.Summary)
	})
	if err != nil {
		return false, err
	}

	return summaryStored, nil
}

func (s *Badger) stamp(msgs []*Message) {
	now := s.now()
	for _, msg := range msgs {
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = now
		}
	}
}

// appendTxn assigns sequence numbers and writes msgs, failing when a session does not exist.
func appendTxn(txn *badger.Txn, msgs []*Message) error {
	last := make(map[string]uint64)

	for _, msg := range msgs {
		seq, ok := last[msg.SessionID]
		if !ok {
			var err error
			if seq, err = lastSeq(txn, msg.SessionID); err != nil {
				return err
			}
		}

		seq++
		msg.Seq = seq
		last[msg.SessionID] = seq

		if err := setJSON(txn, messageKey(msg.SessionID, seq), msg); err != nil {
			return err
		}
	}

	for sessionID, seq := range last {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, seq)
		if err := txn.Set(seqKey(sessionID), buf); err != nil {
			return err
		}
	}

	return nil
}

func (s *Badger) ListMessages(_ context.Context, sessionID string) ([]*Message, error) {
	result := make([]*Message, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		var session Session
		if err := getSession(txn, sessionID, &session); err != nil {
			return err
		}

		return iteratePrefix(txn, messagePrefix(sessionID), func(value []byte) error {
			var msg Message
			if err := json.Unmarshal(value, &msg); err != nil {
				return err
			}

			result = append(result, &msg)
			return nil
		})
	})
	if err != nil {
		return nil, wrapBadger(err, "list messages")
	}

	return result, nil
}

func (s *Badger) CreateSummary(_ context.Context, summary *Summary) error {
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = s.now()
	}

	return s.update(func(txn *badger.Txn) error {
		var session Session
		if err := getSession(txn, summary.SessionID, &session); err != nil {
			return err
		}
		if session.PartnerIndex(summary.Partner) < 0 {
			return notPartner(summary.SessionID, summary.Partner)
		}

		key := badgerSummaryKey(summary.SessionID, summary.Partner)
		if _, err := txn.Get(key); err == nil {
			return summaryExists(summary.SessionID, summary.Partner)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		return setJSON(txn, key, summary)
	})
}

func (s *Badger) GetSummary(_ context.Context, sessionID, partner string) (*Summary, error) {
	var summary Summary

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerSummaryKey(sessionID, partner))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return summaryNotFound(sessionID, partner)
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &summary)
		})
	})
	if err != nil {
		return nil, wrapBadger(err, "get summary")
	}

	return &summary, nil
}

func (s *Badger) ListSummaries(_ context.Context, sessionID string) ([]*Summary, error) {
	result := make([]*Summary, 0, 2)

	err := s.db.View(func(txn *badger.Txn) error {
		var session Session
		if err := getSession(txn, sessionID, &session); err != nil {
			return err
		}

		return iteratePrefix(txn, summaryPrefix(sessionID), func(value []byte) error {
			var summary Summary
			if err := json.Unmarshal(value, &summary); err != nil {
				return err
			}

			result = append(result, &summary)
			return nil
		})
	})
	if err != nil {
		return nil, wrapBadger(err, "list summaries")
	}

	return result, nil
}

func (s *Badger) GetFraming(_ context.Context, sessionID, partner string) (string, bool, error) {
	var (
		text  string
		found bool
	)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(framingKey(sessionID, partner))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		found = true
		return item.Value(func(val []byte) error {
			text = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, wrapBadger(err, "get framing")
	}

	return text, found, nil
}

func (s *Badger) PutFraming(_ context.Context, sessionID, partner, text string) error {
	return s.update(func(txn *badger.Txn) error {
		var session Session
		if err := getSession(txn, sessionID, &session); err != nil {
			return err
		}

		return setIfAbsent(txn, framingKey(sessionID, partner), []byte(text))
	})
}

func (s *Badger) Shutdown() error {
	return s.db.Close()
}

// update runs fn in a read-write transaction, retrying when a concurrent writer wins the commit.
func (s *Badger) update(fn func(txn *badger.Txn) error) error {
	var err error

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}

	return wrapBadger(err, "update")
}

func getSession(txn *badger.Txn, id string, session *Session) error {
	item, err := txn.Get(sessionKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return sessionNotFound(id)
	}
	if err != nil {
		return err
	}

	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, session)
	})
}

// lastSeq returns the highest sequence assigned in the session, failing when the session does not exist.
func lastSeq(txn *badger.Txn, sessionID string) (uint64, error) {
	var session Session
	if err := getSession(txn, sessionID, &session); err != nil {
		return 0, err
	}

	item, err := txn.Get(seqKey(sessionID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var seq uint64
	err = item.Value(func(val []byte) error {
		seq = binary.BigEndian.Uint64(val)
		return nil
	})

	return seq, err
}

func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

func setIfAbsent(txn *badger.Txn, key, value []byte) error {
	exists, err := keyExists(txn, key)
	if err != nil || exists {
		return err
	}

	return txn.Set(key, value)
}

func setJSON(txn *badger.Txn, key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return oops.Errorf("failed to marshal %s: %w", key, err)
	}

	return txn.Set(key, data)
}

func iteratePrefix(txn *badger.Txn, prefix []byte, fn func(value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}

	return nil
}

// wrapBadger keeps domain errors as they are and marks everything else as an upstream storage failure.
func wrapBadger(err error, op string) error {
	if err == nil {
		return nil
	}

	if apperr.Kind(err) != nil {
		return err
	}

	return apperr.Upstream(domain, err, "badger %s", op)
}
