package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pairtalk/app/client/llm"
	"pairtalk/app/service/detector"
	"pairtalk/app/service/store"
	"pairtalk/app/service/thread"
	"pairtalk/app/util/apperr"
)

// Driver produces the assistant's next reply for one partner. It reads the store but never writes it.
type Driver struct {
	store       store.Store
	completer   llm.Completer
	classifier  detector.Classifier
	partitioner *thread.Partitioner

	marker        string
	startSentinel string
}

func NewDriver(
	st store.Store,
	completer llm.Completer,
	classifier detector.Classifier,
	partitioner *thread.Partitioner,
	marker string,
	startSentinel string,
) *Driver {
	return &Driver{
		store:         st,
		completer:     completer,
		classifier:    classifier,
		partitioner:   partitioner,
		marker:        marker,
		startSentinel: startSentinel,
	}
}

func (d *Driver) HandleTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, apperr.Validation(domain, "text is required")
	}

	session, err := d.store.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	idx := session.PartnerIndex(in.Partner)
	if idx < 0 {
		return nil, apperr.Validation(domain, "%q is not a partner of session %s", in.Partner, in.SessionID)
	}

	log, err := d.store.ListMessages(ctx, in.SessionID)
	if err != nil {
		return nil, apperr.Upstream(domain, err, "failed to load log")
	}
	history := d.partitioner.For(log, in.Partner)

	var result TurnResult

	var prompt string
	if idx == 0 {
		prompt = firstPartnerPrompt(in.Partner, session.Partners[1], d.marker)
	} else {
		framing, err := d.framing(ctx, session, &result)
		if err != nil {
			return nil, err
		}
		prompt = secondPartnerPrompt(in.Partner, session.Partners[0], framing, d.marker)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: prompt})
	messages = append(messages, toCompletion(history)...)

	if in.Text == d.startSentinel {
		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: fmt.Sprintf(openerRequest, in.Partner),
		})
	} else {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: in.Text})
	}

	start := time.Now()

	reply, err := d.completer.Complete(ctx, messages)
	if err != nil {
		return nil, apperr.Upstream(domain, err, "completion failed")
	}
	if strings.TrimSpace(reply) == "" {
		return nil, apperr.Upstream(domain, errors.New("empty reply"), "completion failed")
	}

	result.Reply = reply
	result.Summary, result.HasSummary = d.classifier.Detect(reply)

	slog.Debug("Turn completed",
		"session_id", in.SessionID,
		"partner", in.Partner,
		"history", len(history),
		"summary", result.HasSummary,
		"duration", time.Since(start))

	return &result, nil
}

// framing returns the first partner's summary as it was when the second partner's conversation
// started. On the first turn it is looked up and handed back in result for the caller to store.
func (d *Driver) framing(ctx context.Context, session *store.Session, result *TurnResult) (string, error) {
	second := session.Partners[1]

	text, found, err := d.store.GetFraming(ctx, session.ID, second)
	if err != nil {
		return "", apperr.Upstream(domain, err, "failed to load framing")
	}
	if found {
		return text, nil
	}

	summary, err := d.store.GetSummary(ctx, session.ID, session.Partners[0])
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		text = ""
	case err != nil:
		return "", apperr.Upstream(domain, err, "failed to load first partner summary")
	default:
		text = summary.Text
	}

	result.Framing = text
	result.NewFraming = true

	return text, nil
}
