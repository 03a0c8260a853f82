package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/safar/go-bookstore/internal/apperr"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/payment"
	"github.com/safar/go-bookstore/internal/store"
	"github.com/safar/go-bookstore/internal/validation"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CommitRequest struct {
	UserID          int64                  `json:"user_id" validate:"gt=0"`
	Lines           []LineRequest          `json:"books"`
	ClientTotal     *decimal.Decimal       `json:"total_amount"`
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	PaymentIntentID string                 `json:"payment_intent_id" validate:"required"`
}

type CommitResult struct {
	Order *models.Order
	// Replayed is set when the payment reference already had an order and
	// that order was returned instead of creating a new one.
	Replayed bool
}

// PaymentConfirmer is the part of the payment bridge the orchestrator needs.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, intentID string) (*payment.Confirmation, error)
}

type Orchestrator struct {
	store    Store
	payments PaymentConfirmer
	currency string
	timeout  time.Duration
	log      *logrus.Entry
}

type Option func(*Orchestrator)

// WithPaymentVerification makes Commit check the payment reference with the
// processor before touching stock. Without it the reference is trusted.
func WithPaymentVerification(payments PaymentConfirmer) Option {
	return func(o *Orchestrator) { o.payments = payments }
}

// WithCurrency sets the currency a confirmed payment must be in. Defaults to usd.
func WithCurrency(currency string) Option {
	return func(o *Orchestrator) { o.currency = payment.NormalizeCurrency(currency, "usd") }
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = timeout }
}

func WithLogger(log *logrus.Entry) Option {
	return func(o *Orchestrator) { o.log = log }
}

func NewOrchestrator(s Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    s,
		currency: "usd",
		log:      logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.WithField("component", "checkout")
	return o
}

// Commit creates a paid order for req. Stock is decremented if and only if
// the order is written. Calling Commit again with the same payment reference
// returns the existing order.
func (o *Orchestrator) Commit(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	req.PaymentIntentID = strings.TrimSpace(req.PaymentIntentID)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	log := o.log.WithFields(logrus.Fields{
		"user_id":           req.UserID,
		"payment_intent_id": req.PaymentIntentID,
	})

	if existing, err := o.existingOrder(ctx, req); err != nil || existing != nil {
		if existing != nil {
			log.WithField("order_id", existing.Order.ID).Info("payment reference replayed")
		}
		return existing, err
	}

	lines, err := BuildLines(ctx, o.store, req.Lines)
	if err != nil {
		return nil, err
	}

	total := Total(lines)
	if req.ClientTotal != nil && !req.ClientTotal.Equal(total) {
		log.WithFields(logrus.Fields{
			"client_total": req.ClientTotal.String(),
			"total":        total.String(),
		}).Warn("client total differs from priced total; using priced total")
	}

	if err := o.verifyPayment(ctx, req.PaymentIntentID, total); err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:          req.UserID,
		Lines:           lines,
		TotalAmount:     total,
		PaymentStatus:   models.PaymentStatusPaid,
		PaymentIntentID: req.PaymentIntentID,
		ShippingAddress: req.ShippingAddress,
	}

	err = o.store.WithinTx(ctx, func(tx Tx) error {
		reservation, err := Reserve(ctx, tx, lines)
		if err != nil {
			return err
		}

		if err := tx.InsertOrder(ctx, order); err != nil {
			if relErr := Release(ctx, tx, reservation); relErr != nil {
				log.WithError(relErr).Error("release reservation after failed order insert")
				return fmt.Errorf("%w (release failed: %v)", err, relErr)
			}
			return err
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicatePaymentIntent) {
			return o.replayAfterConflict(ctx, req, log)
		}
		if apperr.IsDomain(err) {
			log.WithError(err).Info("checkout rejected")
			return nil, err
		}
		log.WithError(err).Error("checkout failed")
		return nil, apperr.Persistence("commit order", err)
	}

	log.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total":        order.TotalAmount.String(),
	}).Info("order committed")

	return &CommitResult{Order: order}, nil
}

// existingOrder returns the order already recorded for req's payment
// reference, or nil if there is none.
func (o *Orchestrator) existingOrder(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	existing, err := o.store.OrderByPaymentIntent(ctx, req.PaymentIntentID)
	if err != nil {
		if errors.Is(err, database.ErrOrderNotFound) {
			return nil, nil
		}
		return nil, apperr.Persistence("look up payment reference", err)
	}

	if existing.UserID != req.UserID {
		return nil, apperr.Validation("payment_intent_id", "already used by another order")
	}

	return &CommitResult{Order: existing, Replayed: true}, nil
}

// replayAfterConflict handles a commit that lost the race to insert an order
// for the same payment reference. Its reservation has already been released.
func (o *Orchestrator) replayAfterConflict(ctx context.Context, req CommitRequest, log *logrus.Entry) (*CommitResult, error) {
	existing, err := o.existingOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, apperr.Persistence("commit order", fmt.Errorf("payment reference %s conflicted but no order found", req.PaymentIntentID))
	}

	log.WithField("order_id", existing.Order.ID).Info("concurrent commit for payment reference; returning existing order")
	return existing, nil
}

func (o *Orchestrator) verifyPayment(ctx context.Context, intentID string, total decimal.Decimal) error {
	if o.payments == nil {
		return nil
	}

	conf, err := o.payments.ConfirmPayment(ctx, intentID)
	if err != nil {
		return apperr.Persistence("confirm payment", err)
	}

	if conf.Status != payment.StatusSucceeded {
		return apperr.Validation("payment_intent_id", "payment not confirmed")
	}

	if currency := payment.NormalizeCurrency(conf.Currency, ""); currency != o.currency {
		return apperr.Validation("payment_intent_id",
			fmt.Sprintf("currency mismatch: paid in %q, orders are in %q", currency, o.currency))
	}

	if conf.Amount != payment.ToMinorUnits(total) {
		return apperr.Validation("payment_intent_id",
			fmt.Sprintf("amount mismatch: paid %d, order total %d", conf.Amount, payment.ToMinorUnits(total)))
	}

	return nil
}
