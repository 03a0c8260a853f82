// Package service is the query and mutation surface of the store. Every
// operation takes the caller's auth.RequestContext and returns errors from
// the apperr taxonomy.
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/safar/go-bookstore/internal/apperr"
	"github.com/safar/go-bookstore/internal/auth"
	"github.com/safar/go-bookstore/internal/cache"
	"github.com/safar/go-bookstore/internal/checkout"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/payment"
	"github.com/sirupsen/logrus"
)

const (
	DefaultLimit        = 20
	MaxLimit            = 100
	DefaultRelatedLimit = 4
)

type Deps struct {
	DB       *sql.DB
	Gate     *auth.Gate
	Books    cache.BookCache
	Checkout *checkout.Orchestrator
	Payments payment.Bridge
	Currency string
	Log      *logrus.Entry
}

type Service struct {
	db       *sql.DB
	gate     *auth.Gate
	books    cache.BookCache
	checkout *checkout.Orchestrator
	payments payment.Bridge
	currency string
	txOpts   database.TxOptions
	log      *logrus.Entry
}

func New(deps Deps) *Service {
	books := deps.Books
	if books == nil {
		books = cache.Nop{}
	}
	log := deps.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		db:       deps.DB,
		gate:     deps.Gate,
		books:    books,
		checkout: deps.Checkout,
		payments: deps.Payments,
		currency: payment.NormalizeCurrency(deps.Currency, "usd"),
		txOpts:   database.DefaultTxOptions(),
		log:      log.WithField("component", "service"),
	}
}

// Health is reported by the health endpoint.
type Health struct {
	Status   string    `json:"status"`
	Database string    `json:"database"`
	Time     time.Time `json:"time"`
}

func (s *Service) Health(ctx context.Context) Health {
	h := Health{Status: "ok", Database: "ok", Time: time.Now().UTC()}
	if err := s.db.PingContext(ctx); err != nil {
		s.log.WithError(err).Warn("health check: database unreachable")
		h.Status = "degraded"
		h.Database = "unreachable"
	}
	return h
}

func persistence(op string, err error) error {
	if apperr.IsDomain(err) {
		return err
	}
	return apperr.Persistence(op, err)
}

// limitOrDefault applies the default page size to 0 and rejects values
// outside 1..MaxLimit.
func limitOrDefault(field string, limit, def int) (int, error) {
	if limit == 0 {
		return def, nil
	}
	if limit < 1 || limit > MaxLimit {
		return 0, apperr.Validation(field, "must be between 1 and 100")
	}
	return limit, nil
}
