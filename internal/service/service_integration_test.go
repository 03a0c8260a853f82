package service

import (
	"context"
	"testing"
	"time"

	"github.com/safar/go-bookstore/internal/apperr"
	"github.com/safar/go-bookstore/internal/auth"
	"github.com/safar/go-bookstore/internal/checkout"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/payment"
	"github.com/safar/go-bookstore/internal/store"
	"github.com/safar/go-bookstore/internal/testutil/pgtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onlineService(t *testing.T) (*Service, *payment.MockGateway) {
	t.Helper()
	db := pgtest.Start(t)

	gate, err := auth.NewGate("test-secret", time.Hour)
	require.NoError(t, err)
	gateway := payment.NewMockGateway(quietLogger())
	orchestrator := checkout.NewOrchestrator(checkout.NewPostgresStore(db, 3),
		checkout.WithPaymentVerification(gateway),
		checkout.WithLogger(quietLogger()))

	return New(Deps{
		DB:       db,
		Gate:     gate,
		Checkout: orchestrator,
		Payments: gateway,
		Log:      quietLogger(),
	}), gateway
}

func asUser(t *testing.T, s *Service, payload *AuthPayload) auth.RequestContext {
	t.Helper()
	p, ok := s.gate.Authenticate(payload.Token)
	require.True(t, ok)
	return auth.RequestContext{Principal: p}
}

func TestRegisterLoginAndMe(t *testing.T) {
	s, _ := onlineService(t)
	ctx := context.Background()

	registered, err := s.Register(ctx, anonymous, RegisterInput{Name: "Ada", Email: "Ada@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", registered.User.Email)
	assert.Equal(t, models.RoleUser, registered.User.Role)

	_, err = s.Register(ctx, anonymous, RegisterInput{Name: "Eve", Email: "ada@example.com", Password: "secret2"})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)

	_, err = s.Login(ctx, anonymous, LoginInput{Email: "ada@example.com", Password: "wrong-pw"})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	_, err = s.Login(ctx, anonymous, LoginInput{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	loggedIn, err := s.Login(ctx, anonymous, LoginInput{Email: "ADA@example.com", Password: "secret1"})
	require.NoError(t, err)

	me, err := s.GetMe(ctx, asUser(t, s, loggedIn))
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, me.ID)
}

func TestCatalogAdministration(t *testing.T) {
	s, _ := onlineService(t)
	ctx := context.Background()

	book, err := s.CreateBook(ctx, admin, validBook())
	require.NoError(t, err)

	got, err := s.GetBookByID(ctx, anonymous, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Deep Work", got.Title)

	stock := 10
	updated, err := s.UpdateBook(ctx, admin, book.ID, BookUpdate{Stock: &stock, Version: &book.Version})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Stock)

	_, err = s.UpdateBook(ctx, admin, book.ID, BookUpdate{Stock: &stock, Version: &book.Version})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = s.UpdateBook(ctx, admin, book.ID+1000, BookUpdate{Stock: &stock})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	books, err := s.GetBooks(ctx, anonymous, BooksQuery{Category: string(models.CategorySelfHelp)})
	require.NoError(t, err)
	assert.Len(t, books, 1)

	related, err := s.GetRelatedBooks(ctx, anonymous, book.ID+1000, 0)
	require.NoError(t, err)
	assert.Empty(t, related)

	deleted, err := s.DeleteBook(ctx, admin, book.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteBook(ctx, admin, book.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.GetBookByID(ctx, anonymous, book.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCheckoutAndReconciliation(t *testing.T) {
	s, gateway := onlineService(t)
	ctx := context.Background()

	in := validBook()
	in.Price = decimal.RequireFromString("10.00")
	in.Stock = 3
	book, err := s.CreateBook(ctx, admin, in)
	require.NoError(t, err)

	buyer, err := s.Register(ctx, anonymous, RegisterInput{Name: "Buyer", Email: "buyer@example.com", Password: "secret1"})
	require.NoError(t, err)
	rc := asUser(t, s, buyer)

	intent, err := s.CreatePaymentIntent(ctx, rc, PaymentIntentInput{Amount: decimal.RequireFromString("20.00")})
	require.NoError(t, err)
	require.Equal(t, payment.StatusSucceeded, intent.Status)

	declined, err := s.CreatePaymentIntent(ctx, rc, PaymentIntentInput{Amount: decimal.RequireFromString("10.00")})
	require.NoError(t, err)
	require.NoError(t, gateway.MarkFailed(declined.ID))

	order := CreateOrderInput{
		Books: []checkout.LineRequest{{BookID: book.ID, Quantity: 2}},
		ShippingAddress: models.ShippingAddress{
			FullName: "Buyer", Email: "buyer@example.com", Phone: "555-0100", Address: "1 Main St",
		},
		PaymentIntentID: intent.ID,
	}
	rejected := order
	rejected.Books = []checkout.LineRequest{{BookID: book.ID, Quantity: 1}}
	rejected.PaymentIntentID = declined.ID
	_, err = s.CreateOrder(ctx, rc, rejected)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	res, err := s.CreateOrder(ctx, rc, order)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, models.PaymentStatusPaid, res.Order.PaymentStatus)

	again, err := s.CreateOrder(ctx, rc, order)
	require.NoError(t, err)
	assert.True(t, again.Replayed)

	got, err := s.GetBookByID(ctx, anonymous, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)

	mine, err := s.GetMyOrders(ctx, rc, "", 0)
	require.NoError(t, err)
	assert.Len(t, mine.Items.([]models.Order), 1)

	failed, err := s.UpdateOrderStatus(ctx, admin, res.Order.ID, "failed")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, failed.PaymentStatus)

	same, err := s.UpdateOrderStatus(ctx, admin, res.Order.ID, "failed")
	require.NoError(t, err)
	assert.Equal(t, failed.Version, same.Version)

	_, err = s.UpdateOrderStatus(ctx, admin, res.Order.ID, "pending")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.UpdateOrderStatus(ctx, admin, res.Order.ID+1000, "paid")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	all, err := s.GetAllOrders(ctx, admin, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), all.Total)

	tx, err := s.db.Begin()
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()
	events, err := store.ClaimUnpublishedEvents(ctx, tx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, store.EventOrderPlaced, events[0].EventType)
	assert.Equal(t, store.EventOrderStatusChanged, events[1].EventType)
}
