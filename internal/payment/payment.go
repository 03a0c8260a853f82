// Package payment is the boundary to the external payment processor. The
// processor itself is out of scope; Bridge describes the two operations the
// bookstore consumes and MockGateway stands in for it.
package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusRequiresConfirmation Status = "requires_confirmation"
	StatusSucceeded            Status = "succeeded"
	StatusFailed               Status = "failed"
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrUnknownIntent  = errors.New("unknown payment intent")
	ErrGatewayFailure = errors.New("payment gateway failure")
)

type Intent struct {
	ID           string `json:"payment_intent_id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       Status `json:"status"`
}

// Confirmation is the processor's view of an intent. Amount is in minor units.
type Confirmation struct {
	IntentID string `json:"payment_intent_id"`
	Status   Status `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Bridge interface {
	CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency string) (*Intent, error)
	ConfirmPayment(ctx context.Context, intentID string) (*Confirmation, error)
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount (dollars) to minor units (cents).
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// NormalizeCurrency lowercases a currency code, defaulting to fallback.
func NormalizeCurrency(currency, fallback string) string {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return strings.ToLower(fallback)
	}
	return currency
}
