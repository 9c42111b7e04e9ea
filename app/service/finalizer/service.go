package finalizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pairtalk/app/config"
	"pairtalk/app/service/coordinator"
	"pairtalk/app/service/queue"
	"pairtalk/app/service/store"

	"github.com/samber/do"
)

const retryDelay = time.Minute

var errQueueClosed = errors.New("queue closed")

// Service retries queued finalization checks and periodically sweeps every session, so a session
// whose synchronous check failed still gets its shared solution.
type Service struct {
	store          store.Store
	coordinatorSvc *coordinator.Service
	queueSvc       *queue.Service

	sweepInterval time.Duration
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		do.MustInvoke[store.Store](di),
		do.MustInvoke[*coordinator.Service](di),
		do.MustInvoke[*queue.Service](di),
		cfg.Mediation.SweepInterval,
	), nil
}

func NewService(
	st store.Store,
	coordinatorSvc *coordinator.Service,
	queueSvc *queue.Service,
	sweepInterval time.Duration,
) *Service {
	return &Service{
		store:          st,
		coordinatorSvc: coordinatorSvc,
		queueSvc:       queueSvc,
		sweepInterval:  sweepInterval,
	}
}

func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.runIteration(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, errQueueClosed) {
				return
			}

			slog.Error("Error running finalizer iteration", "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
		}
	}
}

func (s *Service) runIteration(ctx context.Context) error {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sessionID, ok := <-s.queueSvc.Channel():
			if !ok {
				return errQueueClosed
			}

			s.check(ctx, sessionID)
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
		}
	}
}

// Sweep runs the finalization check on every session.
func (s *Service) Sweep(ctx context.Context) error {
	start := time.Now()

	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	finalized := 0
	for _, session := range sessions {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if s.check(ctx, session.ID) == coordinator.Finalized {
			finalized++
		}
	}

	slog.Debug("Sweep finished",
		"sessions", len(sessions),
		"finalized", finalized,
		"duration", time.Since(start))

	return nil
}

func (s *Service) check(ctx context.Context, sessionID string) coordinator.Outcome {
	outcome, err := s.coordinatorSvc.CheckAndMaybeFinalize(ctx, sessionID)
	if err != nil {
		slog.Warn("Finalization check failed",
			"session_id", sessionID,
			"error", err)
		return outcome
	}

	if outcome == coordinator.Finalized {
		slog.Info("Finalized session in background",
			"session_id", sessionID)
	}

	return outcome
}
