package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/store"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory Store. Transactions are serialized by a single
// mutex and are not rolled back on error, so anything a failed commit leaves
// behind is visible to the test.
type memStore struct {
	mu       sync.Mutex
	books    map[int64]*models.Book
	orders   map[string]*models.Order
	nextID   int64
	touched  []int64
	failNext error
}

func newMemStore(books ...models.Book) *memStore {
	s := &memStore{
		books:  make(map[int64]*models.Book),
		orders: make(map[string]*models.Order),
	}
	for i := range books {
		b := books[i]
		s.books[b.ID] = &b
	}
	return s
}

func book(id int64, title, price string, stock int) models.Book {
	return models.Book{ID: id, Title: title, Price: decimal.RequireFromString(price), Stock: stock, Category: models.CategoryFiction}
}

func (s *memStore) BooksByID(_ context.Context, ids []int64) (map[int64]*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int64]*models.Book, len(ids))
	for _, id := range ids {
		if b, ok := s.books[id]; ok {
			copied := *b
			out[id] = &copied
		}
	}
	return out, nil
}

func (s *memStore) OrderByPaymentIntent(_ context.Context, ref string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[ref]
	if !ok {
		return nil, database.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *memStore) WithinTx(_ context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(memTx{s})
}

func (s *memStore) stock(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books[id].Stock
}

func (s *memStore) setPrice(id int64, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[id].Price = decimal.RequireFromString(price)
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// failInsert makes the next InsertOrder fail with err.
func (s *memStore) failInsert(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// memTx runs with memStore.mu already held.
type memTx struct {
	s *memStore
}

func (t memTx) DecrementStock(_ context.Context, id int64, quantity int) (bool, error) {
	t.s.touched = append(t.s.touched, id)
	b, ok := t.s.books[id]
	if !ok || b.Stock < quantity {
		return false, nil
	}
	b.Stock -= quantity
	b.Version++
	return true, nil
}

func (t memTx) IncrementStock(_ context.Context, id int64, quantity int) error {
	b, ok := t.s.books[id]
	if !ok {
		return database.ErrBookNotFound
	}
	b.Stock += quantity
	b.Version++
	return nil
}

func (t memTx) StockLevel(_ context.Context, id int64) (int, error) {
	b, ok := t.s.books[id]
	if !ok {
		return 0, database.ErrBookNotFound
	}
	return b.Stock, nil
}

func (t memTx) InsertOrder(_ context.Context, order *models.Order) error {
	if err := t.s.failNext; err != nil {
		t.s.failNext = nil
		return err
	}
	if _, exists := t.s.orders[order.PaymentIntentID]; exists {
		return store.ErrDuplicatePaymentIntent
	}

	t.s.nextID++
	order.ID = t.s.nextID
	order.OrderNumber = "ORD-test"
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	order.Version = 1

	copied := *order
	copied.Lines = append([]models.OrderLine(nil), order.Lines...)
	t.s.orders[order.PaymentIntentID] = &copied
	return nil
}
