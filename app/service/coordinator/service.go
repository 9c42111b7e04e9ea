package coordinator

import (
	"context"
	"log/slog"

	"pairtalk/app/config"
	"pairtalk/app/service/notify"
	"pairtalk/app/service/store"
	"pairtalk/app/util/apperr"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"golang.org/x/sync/singleflight"
)

const domain = "coordinator"

type Outcome int

const (
	// Pending means fewer than two partners have a summary.
	Pending Outcome = iota
	// AlreadyFinalized means the shared solution entry was in the log before this check.
	AlreadyFinalized
	// Finalized means this check appended the shared solution entry.
	Finalized
)

func (o Outcome) String() string {
	switch o {
	case AlreadyFinalized:
		return "already_finalized"
	case Finalized:
		return "finalized"
	default:
		return "pending"
	}
}

// Service appends the shared solution entry once both partners have a summary.
type Service struct {
	store        store.Store
	notifySvc    *notify.Service
	sharedAuthor string

	group singleflight.Group
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		do.MustInvoke[store.Store](di),
		do.MustInvoke[*notify.Service](di),
		cfg.Mediation.SharedAuthor,
	), nil
}

func NewService(st store.Store, notifySvc *notify.Service, sharedAuthor string) *Service {
	return &Service{
		store:        st,
		notifySvc:    notifySvc,
		sharedAuthor: sharedAuthor,
	}
}

// CheckAndMaybeFinalize is safe to call any number of times, concurrently. Checks for the same session
// within this process are collapsed; the log is always read before the shared entry is written.
// A failed append leaves nothing behind, so the next call tries again.
func (s *Service) CheckAndMaybeFinalize(ctx context.Context, sessionID string) (Outcome, error) {
	ctx = context.WithoutCancel(ctx)

	result, err, _ := s.group.Do(sessionID, func() (any, error) {
		return s.check(ctx, sessionID)
	})
	if err != nil {
		return Pending, err
	}

	return result.(Outcome), nil
}

func (s *Service) check(ctx context.Context, sessionID string) (Outcome, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Pending, err
	}

	summaries, err := s.store.ListSummaries(ctx, sessionID)
	if err != nil {
		return Pending, apperr.Upstream(domain, err, "failed to list summaries")
	}

	done := pie.Unique(pie.Map(summaries, func(sum *store.Summary) string { return sum.Partner }))
	done = pie.Filter(done, func(partner string) bool { return session.PartnerIndex(partner) >= 0 })
	if len(done) < 2 {
		return Pending, nil
	}

	log, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return Pending, apperr.Upstream(domain, err, "failed to load log")
	}

	if SharedEntry(log, s.sharedAuthor) != nil {
		return AlreadyFinalized, nil
	}

	mediator := session.Partners[1]
	idx := pie.FindFirstUsing(summaries, func(sum *store.Summary) bool { return sum.Partner == mediator })
	solution := summaries[idx]

	entry := &store.Message{
		SessionID: sessionID,
		Role:      store.RoleAssistant,
		Author:    s.sharedAuthor,
		Text:      solution.Text,
	}
	if err = s.store.AppendMessages(ctx, entry); err != nil {
		slog.Error("Failed to append shared solution",
			"session_id", sessionID,
			"error", err)
		return Pending, apperr.Upstream(domain, err, "failed to append shared solution")
	}

	slog.Info("Session finalized",
		"session_id", sessionID,
		"seq", entry.Seq,
		"telegram", true)

	s.notifySvc.Publish(notify.Event{
		Kind:      notify.KindFinalized,
		SessionID: sessionID,
		Text:      entry.Text,
	})

	return Finalized, nil
}

// SharedEntry returns the shared solution entry of a log, or nil.
func SharedEntry(log []*store.Message, sharedAuthor string) *store.Message {
	idx := pie.FindFirstUsing(log, func(msg *store.Message) bool { return msg.Author == sharedAuthor })
	if idx < 0 {
		return nil
	}

	return log[idx]
}
