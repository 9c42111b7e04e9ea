package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"pairtalk/app/client/llm"
	"pairtalk/app/config"
	"pairtalk/app/service/coordinator"
	"pairtalk/app/service/detector"
	"pairtalk/app/service/notify"
	"pairtalk/app/service/queue"
	"pairtalk/app/service/store"
	"pairtalk/app/service/thread"
	"pairtalk/app/util/apperr"

	"github.com/google/uuid"
	"github.com/samber/do"
)

const domain = "conversation"

type Service struct {
	cfg            config.Mediation
	store          store.Store
	coordinatorSvc *coordinator.Service
	notifySvc      *notify.Service
	queueSvc       *queue.Service

	driver      *Driver
	partitioner *thread.Partitioner
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		cfg.Mediation,
		do.MustInvoke[store.Store](di),
		do.MustInvoke[llm.Completer](di),
		do.MustInvoke[*coordinator.Service](di),
		do.MustInvoke[*notify.Service](di),
		do.MustInvoke[*queue.Service](di),
	), nil
}

func NewService(
	cfg config.Mediation,
	st store.Store,
	completer llm.Completer,
	coordinatorSvc *coordinator.Service,
	notifySvc *notify.Service,
	queueSvc *queue.Service,
) *Service {
	markers := detector.NewMarkers(cfg.SummaryMarkers)
	partitioner := thread.NewPartitioner(cfg.SharedAuthor, thread.ParseOpenerRule(cfg.OpenerRule))

	return &Service{
		cfg:            cfg,
		store:          st,
		coordinatorSvc: coordinatorSvc,
		notifySvc:      notifySvc,
		queueSvc:       queueSvc,
		driver:         NewDriver(st, completer, markers, partitioner, markers.Phrase(), cfg.StartSentinel),
		partitioner:    partitioner,
	}
}

// CreateSession expects both partner names in one string, e.g. "Alice & Bob".
func (s *Service) CreateSession(ctx context.Context, composite string) (*store.Session, string, error) {
	names := strings.Split(composite, s.cfg.NameSeparator)
	if len(names) != 2 {
		return nil, "", apperr.Validation(domain, "expected two names separated by %q", s.cfg.NameSeparator)
	}

	first, second := strings.TrimSpace(names[0]), strings.TrimSpace(names[1])
	switch {
	case first == "" || second == "":
		return nil, "", apperr.Validation(domain, "partner names must not be empty")
	case first == second:
		return nil, "", apperr.Validation(domain, "partner names must differ")
	case first == s.cfg.SharedAuthor || second == s.cfg.SharedAuthor:
		return nil, "", apperr.Validation(domain, "%q is reserved", s.cfg.SharedAuthor)
	}

	session := &store.Session{
		ID:       uuid.NewString(),
		Partners: [2]string{first, second},
		Type:     s.cfg.SessionType,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, "", apperr.Upstream(domain, err, "failed to create session")
	}

	slog.Info("Session created",
		"session_id", session.ID,
		"partners", session.Composite(s.cfg.NameSeparator))

	return session, session.Composite(s.cfg.NameSeparator), nil
}

func (s *Service) GetSession(ctx context.Context, sessionID string) (*store.Session, error) {
	if sessionID == "" {
		return nil, apperr.Validation(domain, "session id is required")
	}

	return s.store.GetSession(ctx, sessionID)
}

// SendTurn runs one turn and stores it. The reply is stored under the partner's name.
// The turn's messages, summary and framing are stored together; on any failure nothing is.
func (s *Service) SendTurn(ctx context.Context, sessionID, partner, text string) (*TurnOutcome, error) {
	switch {
	case sessionID == "":
		return nil, apperr.Validation(domain, "session id is required")
	case strings.TrimSpace(partner) == "":
		return nil, apperr.Validation(domain, "partner is required")
	case strings.TrimSpace(text) == "":
		return nil, apperr.Validation(domain, "text is required")
	}

	result, err := s.driver.HandleTurn(ctx, TurnInput{
		SessionID: sessionID,
		Partner:   partner,
		Text:      text,
	})
	if err != nil {
		return nil, err
	}

	reply := &store.Message{
		SessionID: sessionID,
		Role:      store.RoleAssistant,
		Author:    partner,
		Text:      result.Reply,
	}

	turn := &store.Turn{
		SessionID: sessionID,
		Partner:   partner,
		Messages:  []*store.Message{reply},
	}
	if text != s.cfg.StartSentinel {
		turn.Messages = []*store.Message{{
			SessionID: sessionID,
			Role:      store.RoleUser,
			Author:    partner,
			Text:      text,
		}, reply}
	}
	if result.NewFraming {
		turn.Framing = &result.Framing
	}
	if result.HasSummary {
		turn.Summary = &store.Summary{
			SessionID: sessionID,
			Partner:   partner,
			Text:      result.Summary,
		}
	}

	summaryStored, err := s.store.AppendTurn(ctx, turn)
	if err != nil {
		return nil, apperr.Upstream(domain, err, "failed to store turn")
	}

	outcome := &TurnOutcome{Reply: reply}

	if !result.HasSummary {
		return outcome, nil
	}

	if !summaryStored {
		slog.Debug("Summary already stored",
			"session_id", sessionID,
			"partner", partner)
		return outcome, nil
	}

	summary := turn.Summary
	outcome.Summary = summary

	slog.Info("Summary stored",
		"session_id", sessionID,
		"partner", partner,
		"telegram", true)

	s.notifySvc.Publish(notify.Event{
		Kind:      notify.KindSummaryStored,
		SessionID: sessionID,
		Partner:   partner,
		Text:      summary.Text,
	})

	finalized, err := s.coordinatorSvc.CheckAndMaybeFinalize(ctx, sessionID)
	if err != nil {
		slog.Warn("Finalization check failed, queued for retry",
			"session_id", sessionID,
			"error", err)
		s.queueSvc.Add(sessionID)
		return outcome, nil
	}

	outcome.Finalized = finalized == coordinator.Finalized

	return outcome, nil
}

// Thread returns the part of the session log the partner sees.
func (s *Service) Thread(ctx context.Context, sessionID, partner string) ([]*store.Message, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.PartnerIndex(partner) < 0 {
		return nil, apperr.Validation(domain, "%q is not a partner of session %s", partner, sessionID)
	}

	log, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, apperr.Upstream(domain, err, "failed to load log")
	}

	return s.partitioner.For(log, partner), nil
}

// Summary returns false when the partner has no summary yet.
func (s *Service) Summary(ctx context.Context, sessionID, partner string) (*store.Summary, bool, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}

	if session.PartnerIndex(partner) < 0 {
		return nil, false, apperr.Validation(domain, "%q is not a partner of session %s", partner, sessionID)
	}

	summary, err := s.store.GetSummary(ctx, sessionID, partner)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, apperr.Upstream(domain, err, "failed to load summary")
	}

	return summary, true, nil
}

// Status reports each partner's progress. It also runs the finalization check, so polling it
// eventually produces the shared solution.
func (s *Service) Status(ctx context.Context, sessionID string) (*SessionStatus, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if _, err = s.coordinatorSvc.CheckAndMaybeFinalize(ctx, sessionID); err != nil {
		slog.Warn("Finalization check failed",
			"session_id", sessionID,
			"error", err)
	}

	summaries, err := s.store.ListSummaries(ctx, sessionID)
	if err != nil {
		return nil, apperr.Upstream(domain, err, "failed to list summaries")
	}

	log, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, apperr.Upstream(domain, err, "failed to load log")
	}

	summarized := make(map[string]bool, len(summaries))
	for _, summary := range summaries {
		summarized[summary.Partner] = true
	}

	status := &SessionStatus{
		SessionID: sessionID,
		BothDone:  true,
	}

	for _, partner := range session.Partners {
		state := StateNotStarted
		switch {
		case summarized[partner]:
			state = StateSummarized
		case s.started(log, partner):
			state = StateInProgress
		}

		if state != StateSummarized {
			status.BothDone = false
		}

		status.Partners = append(status.Partners, PartnerStatus{Name: partner, State: state})
	}

	if entry := coordinator.SharedEntry(log, s.cfg.SharedAuthor); entry != nil {
		status.Solution = entry.Text
	}

	return status, nil
}

// started ignores the shared entry, which is in every thread.
func (s *Service) started(log []*store.Message, partner string) bool {
	for msg := range s.partitioner.Seq(log, partner) {
		if msg.Author != s.cfg.SharedAuthor {
			return true
		}
	}

	return false
}

func (s *Service) NameSeparator() string {
	return s.cfg.NameSeparator
}
