package api

import (
	"context"
	"log/slog"
	"time"

	"pairtalk/app/config"
	"pairtalk/app/service/conversation"
	"pairtalk/app/service/notify"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/samber/do"
)

const shutdownTimeout = 10 * time.Second

var _ do.Shutdownable = (*Server)(nil)

type Server struct {
	cfg             config.HTTP
	conversationSvc *conversation.Service
	notifySvc       *notify.Service
	validate        *validator.Validate

	app *fiber.App
}

func New(di *do.Injector) (*Server, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewServer(
		cfg.HTTP,
		do.MustInvoke[*conversation.Service](di),
		do.MustInvoke[*notify.Service](di),
	), nil
}

func NewServer(cfg config.HTTP, conversationSvc *conversation.Service, notifySvc *notify.Service) *Server {
	s := &Server{
		cfg:             cfg,
		conversationSvc: conversationSvc,
		notifySvc:       notifySvc,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "pairtalk",
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,OPTIONS",
	}))
	s.app.Use(requestLogger)

	s.routes()

	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.handleHealth)

	sessions := s.app.Group("/sessions")
	sessions.Post("/", s.handleCreateSession)
	sessions.Get("/:id", s.handleGetSession)
	sessions.Post("/:id/turns", s.handleSendTurn)
	sessions.Get("/:id/thread", s.handleThread)
	sessions.Get("/:id/summaries/:partner", s.handleSummary)
	sessions.Get("/:id/status", s.handleStatus)
	sessions.Get("/:id/events", s.handleEvents)
}

// App exposes the fiber app for in-process requests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run blocks until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", s.cfg.Listen)
		errCh <- s.app.Listen(s.cfg.Listen)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(shutdownTimeout)
}

func requestLogger(c *fiber.Ctx) error {
	start := time.Now()

	err := c.Next()

	slog.Debug("HTTP request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
		"error", err)

	return err
}
