package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/safar/go-bookstore/internal/apperr"
	"github.com/safar/go-bookstore/internal/auth"
	"github.com/safar/go-bookstore/internal/checkout"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/payment"
	"github.com/safar/go-bookstore/internal/service"
	"github.com/safar/go-bookstore/internal/store"
)

// Service is the surface the HTTP layer exposes.
type Service interface {
	Health(ctx context.Context) service.Health

	GetBooks(ctx context.Context, rc auth.RequestContext, q service.BooksQuery) ([]models.Book, error)
	GetBookByID(ctx context.Context, rc auth.RequestContext, id int64) (*models.Book, error)
	GetRelatedBooks(ctx context.Context, rc auth.RequestContext, id int64, limit int) ([]models.Book, error)
	SearchBooks(ctx context.Context, rc auth.RequestContext, query string) ([]models.Book, error)
	CreateBook(ctx context.Context, rc auth.RequestContext, in service.BookInput) (*models.Book, error)
	UpdateBook(ctx context.Context, rc auth.RequestContext, id int64, in service.BookUpdate) (*models.Book, error)
	DeleteBook(ctx context.Context, rc auth.RequestContext, id int64) (bool, error)

	Register(ctx context.Context, rc auth.RequestContext, in service.RegisterInput) (*service.AuthPayload, error)
	Login(ctx context.Context, rc auth.RequestContext, in service.LoginInput) (*service.AuthPayload, error)
	GetMe(ctx context.Context, rc auth.RequestContext) (*models.User, error)
	GetUsers(ctx context.Context, rc auth.RequestContext, page, pageSize int) (*store.OffsetPage, error)

	CreateOrder(ctx context.Context, rc auth.RequestContext, in service.CreateOrderInput) (*checkout.CommitResult, error)
	GetMyOrders(ctx context.Context, rc auth.RequestContext, cursor string, limit int) (*store.CursorPage, error)
	GetAllOrders(ctx context.Context, rc auth.RequestContext, page, pageSize int) (*store.OffsetPage, error)
	UpdateOrderStatus(ctx context.Context, rc auth.RequestContext, orderID int64, status string) (*models.Order, error)

	CreatePaymentIntent(ctx context.Context, rc auth.RequestContext, in service.PaymentIntentInput) (*payment.Intent, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func idParam(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return 0, apperr.Validation("id", "must be a positive integer")
	}
	return int64(id), nil
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Validation("body", "malformed request body")
	}
	return nil
}

func (h *Handler) Health(c *fiber.Ctx) error {
	health := h.svc.Health(c.UserContext())
	if health.Status != "ok" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(APIResponse{
			Success:   false,
			Message:   "Service is degraded",
			Data:      health,
			RequestID: requestID(c),
			Timestamp: health.Time,
		})
	}
	return ok(c, "Service is healthy", health)
}

func (h *Handler) ListBooks(c *fiber.Ctx) error {
	books, err := h.svc.GetBooks(c.UserContext(), caller(c), service.BooksQuery{
		Category: c.Query("category"),
		Limit:    c.QueryInt("limit", 0),
		Offset:   c.QueryInt("offset", 0),
	})
	if err != nil {
		return err
	}
	return ok(c, "Books retrieved successfully", books)
}

func (h *Handler) SearchBooks(c *fiber.Ctx) error {
	books, err := h.svc.SearchBooks(c.UserContext(), caller(c), c.Query("q"))
	if err != nil {
		return err
	}
	return ok(c, "Search completed", books)
}

func (h *Handler) GetBook(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	book, err := h.svc.GetBookByID(c.UserContext(), caller(c), id)
	if err != nil {
		return err
	}
	return ok(c, "Book retrieved successfully", book)
}

func (h *Handler) RelatedBooks(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	books, err := h.svc.GetRelatedBooks(c.UserContext(), caller(c), id, c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return ok(c, "Related books retrieved successfully", books)
}

func (h *Handler) CreateBook(c *fiber.Ctx) error {
	var in service.BookInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	book, err := h.svc.CreateBook(c.UserContext(), caller(c), in)
	if err != nil {
		return err
	}
	return created(c, "Book created successfully", book)
}

func (h *Handler) UpdateBook(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in service.BookUpdate
	if err := parseBody(c, &in); err != nil {
		return err
	}
	book, err := h.svc.UpdateBook(c.UserContext(), caller(c), id, in)
	if err != nil {
		return err
	}
	return ok(c, "Book updated successfully", book)
}

func (h *Handler) DeleteBook(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	deleted, err := h.svc.DeleteBook(c.UserContext(), caller(c), id)
	if err != nil {
		return err
	}
	return ok(c, "Delete processed", fiber.Map{"deleted": deleted})
}

func (h *Handler) Register(c *fiber.Ctx) error {
	var in service.RegisterInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	payload, err := h.svc.Register(c.UserContext(), caller(c), in)
	if err != nil {
		return err
	}
	return created(c, "Registration successful", payload)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var in service.LoginInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	payload, err := h.svc.Login(c.UserContext(), caller(c), in)
	if err != nil {
		return err
	}
	return ok(c, "Login successful", payload)
}

func (h *Handler) Me(c *fiber.Ctx) error {
	user, err := h.svc.GetMe(c.UserContext(), caller(c))
	if err != nil {
		return err
	}
	return ok(c, "User retrieved successfully", user)
}

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	page, err := h.svc.GetUsers(c.UserContext(), caller(c), c.QueryInt("page", 0), c.QueryInt("page_size", 0))
	if err != nil {
		return err
	}
	return ok(c, "Users retrieved successfully", page)
}

func (h *Handler) CreateOrder(c *fiber.Ctx) error {
	var in service.CreateOrderInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	res, err := h.svc.CreateOrder(c.UserContext(), caller(c), in)
	if err != nil {
		return err
	}
	if res.Replayed {
		return ok(c, "Order already recorded for this payment", res.Order)
	}
	return created(c, "Order created successfully", res.Order)
}

func (h *Handler) MyOrders(c *fiber.Ctx) error {
	page, err := h.svc.GetMyOrders(c.UserContext(), caller(c), c.Query("cursor"), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	return ok(c, "Orders retrieved successfully", page)
}

func (h *Handler) AllOrders(c *fiber.Ctx) error {
	page, err := h.svc.GetAllOrders(c.UserContext(), caller(c), c.QueryInt("page", 0), c.QueryInt("page_size", 0))
	if err != nil {
		return err
	}
	return ok(c, "Orders retrieved successfully", page)
}

func (h *Handler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var in struct {
		Status string `json:"status"`
	}
	if err := parseBody(c, &in); err != nil {
		return err
	}
	order, err := h.svc.UpdateOrderStatus(c.UserContext(), caller(c), id, in.Status)
	if err != nil {
		return err
	}
	return ok(c, "Order status updated", order)
}

func (h *Handler) CreatePaymentIntent(c *fiber.Ctx) error {
	var in service.PaymentIntentInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	intent, err := h.svc.CreatePaymentIntent(c.UserContext(), caller(c), in)
	if err != nil {
		return err
	}
	return created(c, "Payment intent created", fiber.Map{
		"client_secret":     intent.ClientSecret,
		"payment_intent_id": intent.ID,
	})
}
