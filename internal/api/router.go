// Package api is the HTTP transport: fiber routes under /api/v1 that answer
// with a uniform JSON envelope.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func NewApp(cfg Config, svc Service, gate Authenticator, log *logrus.Entry) *fiber.App {
	log = log.WithField("component", "http")

	app := fiber.New(fiber.Config{
		AppName:               "go-bookstore",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(log),
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware)
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} - ${latency} - ${locals:request_id}\n",
		Output: log.WriterLevel(logrus.InfoLevel),
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))
	app.Use(authMiddleware(gate))

	registerRoutes(app, NewHandler(svc))
	return app
}

func registerRoutes(app *fiber.App, h *Handler) {
	api := app.Group("/api/v1")

	api.Get("/health", h.Health)

	books := api.Group("/books")
	books.Get("/", h.ListBooks)
	books.Get("/search", h.SearchBooks)
	books.Get("/:id", h.GetBook)
	books.Get("/:id/related", h.RelatedBooks)
	books.Post("/", h.CreateBook)
	books.Put("/:id", h.UpdateBook)
	books.Delete("/:id", h.DeleteBook)

	api.Post("/auth/register", h.Register)
	api.Post("/auth/login", h.Login)
	api.Get("/me", h.Me)
	api.Get("/users", h.ListUsers)

	orders := api.Group("/orders")
	orders.Get("/mine", h.MyOrders)
	orders.Get("/", h.AllOrders)
	orders.Post("/", h.CreateOrder)
	orders.Patch("/:id/status", h.UpdateOrderStatus)

	api.Post("/payment-intents", h.CreatePaymentIntent)

	app.Use(func(c *fiber.Ctx) error {
		return fail(c, fiber.StatusNotFound, APIError{Code: "NOT_FOUND", Message: "Route not found"})
	})
}

func errorHandler(log *logrus.Entry) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, apiErr := classify(err)

		entry := log.WithError(err).WithFields(logrus.Fields{
			"request_id": requestID(c),
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
		})
		if status >= fiber.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Debug("request rejected")
		}

		return fail(c, status, apiErr)
	}
}
