package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-bookstore/internal/apperr"
	"github.com/safar/go-bookstore/internal/auth"
	"github.com/safar/go-bookstore/internal/checkout"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CreateOrderInput struct {
	Books           []checkout.LineRequest `json:"books"`
	TotalAmount     *decimal.Decimal       `json:"total_amount"`
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	PaymentIntentID string                 `json:"payment_intent_id"`
}

// StatusChanged is the payload of the order.status_changed event.
type StatusChanged struct {
	OrderID int64                `json:"order_id"`
	From    models.PaymentStatus `json:"from"`
	To      models.PaymentStatus `json:"to"`
	ByUser  int64                `json:"by_user_id"`
}

// CreateOrder commits an order for the caller. Prices come from the catalog;
// the client's total is only compared and logged.
func (s *Service) CreateOrder(ctx context.Context, rc auth.RequestContext, in CreateOrderInput) (*checkout.CommitResult, error) {
	p, err := rc.RequireUser()
	if err != nil {
		return nil, err
	}

	res, err := s.checkout.Commit(ctx, checkout.CommitRequest{
		UserID:          p.UserID,
		Lines:           in.Books,
		ClientTotal:     in.TotalAmount,
		ShippingAddress: in.ShippingAddress,
		PaymentIntentID: in.PaymentIntentID,
	})
	if err != nil {
		return nil, err
	}

	if !res.Replayed {
		ids := make([]int64, len(res.Order.Lines))
		for i, line := range res.Order.Lines {
			ids[i] = line.BookID
		}
		s.invalidate(ctx, ids...)
	}
	return res, nil
}

func (s *Service) GetMyOrders(ctx context.Context, rc auth.RequestContext, cursor string, limit int) (*store.CursorPage, error) {
	p, err := rc.RequireUser()
	if err != nil {
		return nil, err
	}

	limit, err = limitOrDefault("limit", limit, DefaultLimit)
	if err != nil {
		return nil, err
	}
	if _, err := store.DecodeCursor(cursor); err != nil {
		return nil, apperr.Validation("cursor", "malformed")
	}

	page, err := store.ListOrdersCursor(ctx, s.db, p.UserID, cursor, limit)
	if err != nil {
		return nil, persistence("list my orders", err)
	}
	return page, nil
}

func (s *Service) GetAllOrders(ctx context.Context, rc auth.RequestContext, page, pageSize int) (*store.OffsetPage, error) {
	if _, err := rc.RequireAdmin(); err != nil {
		return nil, err
	}

	page, pageSize, err := pageOrDefault(page, pageSize)
	if err != nil {
		return nil, err
	}

	orders, err := store.ListAllOrders(ctx, s.db, page, pageSize)
	if err != nil {
		return nil, persistence("list orders", err)
	}
	return orders, nil
}

// UpdateOrderStatus moves an order's payment status along the allowed
// transitions. Setting the current status again changes nothing. The status
// change and its event are written in one transaction.
func (s *Service) UpdateOrderStatus(ctx context.Context, rc auth.RequestContext, orderID int64, status string) (*models.Order, error) {
	admin, err := rc.RequireAdmin()
	if err != nil {
		return nil, err
	}

	next := models.PaymentStatus(status)
	if !next.Valid() {
		return nil, apperr.Validation("status", fmt.Sprintf("unknown status %q", status))
	}

	var updated *models.Order
	err = database.WithRetry(ctx, s.db, s.txOpts, func(tx *sql.Tx) error {
		order, err := store.GetOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus == next {
			updated = order
			return nil
		}
		if !order.PaymentStatus.CanTransitionTo(next) {
			return apperr.Validation("status",
				fmt.Sprintf("cannot change from %s to %s", order.PaymentStatus, next))
		}

		if err := store.UpdatePaymentStatus(ctx, tx, orderID, order.PaymentStatus, next); err != nil {
			return err
		}

		_, err = store.InsertEvent(ctx, tx, orderID, store.EventOrderStatusChanged, StatusChanged{
			OrderID: orderID,
			From:    order.PaymentStatus,
			To:      next,
			ByUser:  admin.UserID,
		})
		if err != nil {
			return err
		}

		updated, err = store.GetOrder(ctx, tx, orderID)
		return err
	})
	switch {
	case errors.Is(err, database.ErrOrderNotFound):
		return nil, apperr.NotFound("order", orderID)
	case errors.Is(err, database.ErrStaleStatus):
		return nil, apperr.Conflict("order", orderID)
	case err != nil:
		return nil, persistence("update order status", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   updated.PaymentStatus,
	}).Info("order status updated")
	return updated, nil
}
