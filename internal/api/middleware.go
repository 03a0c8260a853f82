package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/safar/go-bookstore/internal/auth"
	"github.com/safar/go-bookstore/internal/models"
)

const (
	requestIDHeader = "X-Request-ID"
	localRequestID  = "request_id"
	localCaller     = "caller"
)

// Authenticator resolves a bearer credential to a principal.
type Authenticator interface {
	Authenticate(credential string) (*models.Principal, bool)
}

func requestIDMiddleware(c *fiber.Ctx) error {
	id := c.Get(requestIDHeader)
	if id == "" {
		id = uuid.New().String()
	}
	c.Locals(localRequestID, id)
	c.Set(requestIDHeader, id)
	return c.Next()
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(localRequestID).(string); ok {
		return id
	}
	return c.Get(requestIDHeader)
}

// authMiddleware attaches the caller to the request. A missing or invalid
// credential leaves the request anonymous; operations that need a caller
// reject it themselves.
func authMiddleware(gate Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc := auth.Anonymous(requestID(c))

		header := c.Get(fiber.HeaderAuthorization)
		if token, found := strings.CutPrefix(header, "Bearer "); found {
			if p, ok := gate.Authenticate(strings.TrimSpace(token)); ok {
				rc.Principal = p
			}
		}

		c.Locals(localCaller, rc)
		return c.Next()
	}
}

func caller(c *fiber.Ctx) auth.RequestContext {
	if rc, ok := c.Locals(localCaller).(auth.RequestContext); ok {
		return rc
	}
	return auth.Anonymous(requestID(c))
}
