package service

import (
	"context"
	"errors"

	"github.com/safar/go-bookstore/internal/apperr"
	"github.com/safar/go-bookstore/internal/auth"
	"github.com/safar/go-bookstore/internal/payment"
	"github.com/shopspring/decimal"
)

type PaymentIntentInput struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (s *Service) CreatePaymentIntent(ctx context.Context, rc auth.RequestContext, in PaymentIntentInput) (*payment.Intent, error) {
	if _, err := rc.RequireUser(); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, apperr.Validation("amount", "must be greater than 0")
	}

	intent, err := s.payments.CreatePaymentIntent(ctx, in.Amount, payment.NormalizeCurrency(in.Currency, s.currency))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidAmount) {
			return nil, apperr.Validation("amount", err.Error())
		}
		return nil, apperr.Persistence("create payment intent", err)
	}
	return intent, nil
}
