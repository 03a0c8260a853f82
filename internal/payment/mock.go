package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// MockGateway is an in-process stand-in for the payment processor. Every
// intent it creates confirms as succeeded unless marked failed.
type MockGateway struct {
	mu      sync.Mutex
	intents map[string]*Intent
	log     *logrus.Entry

	unavailable bool
}

func NewMockGateway(log *logrus.Entry) *MockGateway {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MockGateway{
		intents: make(map[string]*Intent),
		log:     log.WithField("component", "mock-payment-gateway"),
	}
}

func (m *MockGateway) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency string) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return nil, ErrGatewayFailure
	}

	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	intent := &Intent{
		ID:           id,
		ClientSecret: fmt.Sprintf("%s_secret_%s", id, uuid.NewString()[:8]),
		Amount:       ToMinorUnits(amount),
		Currency:     NormalizeCurrency(currency, "usd"),
		Status:       StatusSucceeded,
	}
	m.intents[id] = intent

	m.log.WithFields(logrus.Fields{
		"payment_intent_id": id,
		"amount":            intent.Amount,
		"currency":          intent.Currency,
	}).Info("payment intent created")

	copied := *intent
	return &copied, nil
}

func (m *MockGateway) ConfirmPayment(ctx context.Context, intentID string) (*Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return nil, ErrGatewayFailure
	}

	intent, ok := m.intents[intentID]
	if !ok {
		return &Confirmation{IntentID: intentID, Status: StatusFailed}, nil
	}

	return &Confirmation{
		IntentID: intent.ID,
		Status:   intent.Status,
		Amount:   intent.Amount,
		Currency: intent.Currency,
	}, nil
}

// SetUnavailable makes every call fail as if the processor were down.
func (m *MockGateway) SetUnavailable(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = down
}

// MarkFailed simulates a declined charge for an existing intent.
func (m *MockGateway) MarkFailed(intentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[intentID]
	if !ok {
		return ErrUnknownIntent
	}
	intent.Status = StatusFailed
	return nil
}
