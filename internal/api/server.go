// Package api exposes the pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultBodyLimit caps uploads at 32 MiB.
const DefaultBodyLimit = 32 << 20

// DefaultRequestTimeout bounds the pipeline work of one request. It leaves
// room for a rate-limited, retried model call.
const DefaultRequestTimeout = 2 * time.Minute

// Options configures the HTTP app.
type Options struct {
	BodyLimit int
	Version   string
	// RequestTimeout cancels a request's pipeline work once exceeded.
	// Fiber never cancels the user context on its own.
	RequestTimeout time.Duration
	// Metrics, when set, is served at GET /metrics.
	Metrics http.Handler
}

// NewApp builds the fiber app with all routes and middleware registered.
func NewApp(h *Handler, opts Options) *fiber.App {
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = DefaultBodyLimit
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	h.version = opts.Version

	app := fiber.New(fiber.Config{
		AppName:               "statement-normalizer",
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          h.handleError,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(cors.New())
	app.Use(h.requestLogger)
	app.Use(withDeadline(opts.RequestTimeout))

	app.Get("/", h.HandleHealth)
	app.Get("/api/health", h.HandleHealth)
	app.Post("/extract-pdf", h.HandleExtract)
	app.Post("/process-pdf", h.HandleProcess)
	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics))
	}
	return app
}

// requestLogger carries a request-scoped logger in the user context and
// logs each completed request.
func (h *Handler) requestLogger(c *fiber.Ctx) error {
	logger := h.Logger.With().
		Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Logger()
	c.SetUserContext(logger.WithContext(c.UserContext()))

	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = statusOf(err)
	}
	var ev *zerolog.Event
	if status >= fiber.StatusInternalServerError {
		ev = logger.Error()
	} else {
		ev = logger.Info()
	}
	ev.Int("status", status).Msg("request completed")
	return err
}

func withDeadline(d time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), d)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
