package api

import (
	"time"

	"pairtalk/app/service/notify"
	"pairtalk/app/util/apperr"

	"github.com/gofiber/fiber/v2"
)

const domain = "api"

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := s.parseBody(c, &req); err != nil {
		return err
	}

	session, names, err := s.conversationSvc.CreateSession(c.UserContext(), req.Names)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(toSessionResponse(session, names))
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	session, err := s.conversationSvc.GetSession(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(toSessionResponse(session, session.Composite(s.conversationSvc.NameSeparator())))
}

func (s *Server) handleSendTurn(c *fiber.Ctx) error {
	var req sendTurnRequest
	if err := s.parseBody(c, &req); err != nil {
		return err
	}

	outcome, err := s.conversationSvc.SendTurn(c.UserContext(), c.Params("id"), req.Partner, req.Text)
	if err != nil {
		return err
	}

	return c.JSON(turnResponse{
		Reply:     outcome.Reply,
		Summary:   outcome.Summary,
		Finalized: outcome.Finalized,
	})
}

func (s *Server) handleThread(c *fiber.Ctx) error {
	partner := c.Query("partner")
	if partner == "" {
		return apperr.Validation(domain, "partner query parameter is required")
	}

	messages, err := s.conversationSvc.Thread(c.UserContext(), c.Params("id"), partner)
	if err != nil {
		return err
	}

	return c.JSON(threadResponse{
		Partner:  partner,
		Messages: messages,
	})
}

func (s *Server) handleSummary(c *fiber.Ctx) error {
	summary, found, err := s.conversationSvc.Summary(c.UserContext(), c.Params("id"), c.Params("partner"))
	if err != nil {
		return err
	}

	return c.JSON(summaryResponse{
		Found:   found,
		Summary: summary,
	})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	status, err := s.conversationSvc.Status(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(status)
}

// handleEvents waits for the next event of a session, up to the wait query parameter.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	wait := s.cfg.MaxWait
	if raw := c.Query("wait"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			return apperr.Validation(domain, "invalid wait %q", raw)
		}
		wait = min(parsed, s.cfg.MaxWait)
	}

	sessionID := c.Params("id")

	events, cancel := s.notifySvc.Subscribe(sessionID)
	defer cancel()

	// subscribed first, so a finalization racing this check is still delivered
	status, err := s.conversationSvc.Status(c.UserContext(), sessionID)
	if err != nil {
		return err
	}

	if status.Solution != "" {
		return c.JSON(eventResponse{Event: &notify.Event{
			Kind:      notify.KindFinalized,
			SessionID: sessionID,
			Text:      status.Solution,
			At:        time.Now(),
		}})
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case event, ok := <-events:
		if !ok {
			return c.JSON(eventResponse{})
		}
		return c.JSON(eventResponse{Event: &event})
	case <-timer.C:
		return c.JSON(eventResponse{})
	case <-c.Context().Done():
		return nil
	}
}

func (s *Server) parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Validation(domain, "invalid request body: %v", err)
	}

	if err := s.validate.Struct(out); err != nil {
		return apperr.Validation(domain, "%v", err)
	}

	return nil
}
