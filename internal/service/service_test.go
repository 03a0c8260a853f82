package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/safar/go-bookstore/internal/apperr"
	"github.com/safar/go-bookstore/internal/auth"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/payment"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

var (
	anonymous = auth.Anonymous("req-test")
	customer  = auth.RequestContext{Principal: &models.Principal{UserID: 1, Email: "c@example.com", Role: models.RoleUser}}
	admin     = auth.RequestContext{Principal: &models.Principal{UserID: 2, Email: "a@example.com", Role: models.RoleAdmin}}
)

// offlineService has no database; every call exercised here must fail
// before reaching it.
func offlineService(t *testing.T) *Service {
	t.Helper()
	gate, err := auth.NewGate("test-secret", time.Hour)
	require.NoError(t, err)
	return New(Deps{
		Gate:     gate,
		Payments: payment.NewMockGateway(quietLogger()),
		Log:      quietLogger(),
	})
}

func validBook() BookInput {
	return BookInput{
		Title:       "Deep Work",
		Author:      "Cal Newport",
		Description: "Rules for focused success",
		Price:       decimal.RequireFromString("22.99"),
		Category:    models.CategorySelfHelp,
		Image:       "https://example.com/deep-work.jpg",
		Rating:      decimal.RequireFromString("4.5"),
		Stock:       55,
	}
}

func TestAdminOperationsRequireAdmin(t *testing.T) {
	s := offlineService(t)
	ctx := context.Background()

	_, err := s.CreateBook(ctx, anonymous, validBook())
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = s.CreateBook(ctx, customer, validBook())
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = s.UpdateBook(ctx, customer, 1, BookUpdate{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = s.DeleteBook(ctx, customer, 1)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = s.GetUsers(ctx, customer, 1, 10)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = s.GetAllOrders(ctx, customer, 1, 10)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = s.UpdateOrderStatus(ctx, customer, 1, "paid")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestUserOperationsRequireLogin(t *testing.T) {
	s := offlineService(t)
	ctx := context.Background()

	_, err := s.GetMe(ctx, anonymous)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = s.GetMyOrders(ctx, anonymous, "", 10)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = s.CreateOrder(ctx, anonymous, CreateOrderInput{})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = s.CreatePaymentIntent(ctx, anonymous, PaymentIntentInput{Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestBookInputValidation(t *testing.T) {
	s := offlineService(t)
	ctx := context.Background()

	cases := map[string]struct {
		mutate func(*BookInput)
		field  string
	}{
		"missing title":    {func(b *BookInput) { b.Title = "" }, "title"},
		"long title":       {func(b *BookInput) { b.Title = string(make([]byte, 201)) }, "title"},
		"negative price":   {func(b *BookInput) { b.Price = decimal.RequireFromString("-0.01") }, "price"},
		"unknown category": {func(b *BookInput) { b.Category = "Poetry" }, "category"},
		"rating above 5":   {func(b *BookInput) { b.Rating = decimal.RequireFromString("5.1") }, "rating"},
		"negative stock":   {func(b *BookInput) { b.Stock = -1 }, "stock"},
		"missing image":    {func(b *BookInput) { b.Image = "" }, "image"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := validBook()
			tc.mutate(&in)

			_, err := s.CreateBook(ctx, admin, in)
			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestBookUpdateValidation(t *testing.T) {
	s := offlineService(t)
	ctx := context.Background()

	empty := ""
	_, err := s.UpdateBook(ctx, admin, 1, BookUpdate{Title: &empty})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	negative := -3
	_, err = s.UpdateBook(ctx, admin, 1, BookUpdate{Stock: &negative})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	rating := decimal.RequireFromString("7")
	_, err = s.UpdateBook(ctx, admin, 1, BookUpdate{Rating: &rating})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPagingValidation(t *testing.T) {
	s := offlineService(t)
	ctx := context.Background()

	_, err := s.GetBooks(ctx, anonymous, BooksQuery{Limit: 101})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.GetBooks(ctx, anonymous, BooksQuery{Offset: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.GetBooks(ctx, anonymous, BooksQuery{Category: "Poetry"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.GetMyOrders(ctx, customer, "%%%", 10)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.GetAllOrders(ctx, admin, -1, 10)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateOrderStatusRejectsUnknownStatus(t *testing.T) {
	_, err := offlineService(t).UpdateOrderStatus(context.Background(), admin, 1, "refunded")
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "status", verr.Field)
}

func TestRegisterValidation(t *testing.T) {
	s := offlineService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, anonymous, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "12345"})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)

	_, err = s.Register(ctx, anonymous, RegisterInput{Name: "Ada", Email: "nope", Password: "123456"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)
}

func TestCreatePaymentIntent(t *testing.T) {
	s := offlineService(t)
	ctx := context.Background()

	_, err := s.CreatePaymentIntent(ctx, customer, PaymentIntentInput{Amount: decimal.Zero})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	intent, err := s.CreatePaymentIntent(ctx, customer, PaymentIntentInput{Amount: decimal.RequireFromString("30.00")})
	require.NoError(t, err)
	assert.Equal(t, int64(3000), intent.Amount)
	assert.Equal(t, "usd", intent.Currency)
	assert.NotEmpty(t, intent.ClientSecret)

	intent, err = s.CreatePaymentIntent(ctx, customer, PaymentIntentInput{Amount: decimal.NewFromInt(5), Currency: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, "eur", intent.Currency)

	s.payments.(*payment.MockGateway).SetUnavailable(true)
	_, err = s.CreatePaymentIntent(ctx, customer, PaymentIntentInput{Amount: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, apperr.ErrPersistence)
}
