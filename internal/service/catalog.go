package service

import (
	"context"
	"errors"
	"strings"

	"github.com/safar/go-bookstore/internal/apperr"
	"github.com/safar/go-bookstore/internal/auth"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/store"
	"github.com/safar/go-bookstore/internal/validation"
	"github.com/shopspring/decimal"
)

var maxRating = decimal.NewFromInt(5)

type BooksQuery struct {
	Category string
	Limit    int
	Offset   int
}

type BookInput struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Author      string          `json:"author" validate:"required"`
	Description string          `json:"description" validate:"required,max=5000"`
	Price       decimal.Decimal `json:"price"`
	Category    models.Category `json:"category" validate:"required"`
	Image       string          `json:"image" validate:"required"`
	Rating      decimal.Decimal `json:"rating"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

// BookUpdate changes only the fields that are set. Version, when set, must
// match the stored book or the update fails with a conflict.
type BookUpdate struct {
	Title       *string          `json:"title" validate:"omitnil,min=1,max=200"`
	Author      *string          `json:"author" validate:"omitnil,min=1"`
	Description *string          `json:"description" validate:"omitnil,min=1,max=5000"`
	Price       *decimal.Decimal `json:"price"`
	Category    *models.Category `json:"category"`
	Image       *string          `json:"image" validate:"omitnil,min=1"`
	Rating      *decimal.Decimal `json:"rating"`
	Stock       *int             `json:"stock" validate:"omitnil,gte=0"`
	Version     *int             `json:"version"`
}

func checkPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return apperr.Validation("price", "must be greater than or equal to 0")
	}
	return nil
}

func checkRating(rating decimal.Decimal) error {
	if rating.IsNegative() || rating.GreaterThan(maxRating) {
		return apperr.Validation("rating", "must be between 0 and 5")
	}
	return nil
}

func checkCategory(category models.Category) error {
	if !category.Valid() {
		return apperr.Validation("category", "unknown category")
	}
	return nil
}

func (in BookInput) validate() error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	if err := checkPrice(in.Price); err != nil {
		return err
	}
	if err := checkCategory(in.Category); err != nil {
		return err
	}
	return checkRating(in.Rating)
}

func (in BookUpdate) validate() error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	if in.Price != nil {
		if err := checkPrice(*in.Price); err != nil {
			return err
		}
	}
	if in.Category != nil {
		if err := checkCategory(*in.Category); err != nil {
			return err
		}
	}
	if in.Rating != nil {
		return checkRating(*in.Rating)
	}
	return nil
}

func (s *Service) GetBooks(ctx context.Context, _ auth.RequestContext, q BooksQuery) ([]models.Book, error) {
	limit, err := limitOrDefault("limit", q.Limit, DefaultLimit)
	if err != nil {
		return nil, err
	}
	if q.Offset < 0 {
		return nil, apperr.Validation("offset", "must be greater than or equal to 0")
	}

	category := models.Category(strings.TrimSpace(q.Category))
	if category != "" {
		if err := checkCategory(category); err != nil {
			return nil, err
		}
	}

	books, err := store.ListBooks(ctx, s.db, store.BookFilter{Category: category, Limit: limit, Offset: q.Offset})
	if err != nil {
		return nil, persistence("list books", err)
	}
	return books, nil
}

func (s *Service) GetBookByID(ctx context.Context, _ auth.RequestContext, id int64) (*models.Book, error) {
	return s.books.GetOrLoad(ctx, id, func(ctx context.Context) (*models.Book, error) {
		book, err := store.GetBook(ctx, s.db, id)
		if err != nil {
			if errors.Is(err, database.ErrBookNotFound) {
				return nil, apperr.NotFound("book", id)
			}
			return nil, persistence("get book", err)
		}
		return book, nil
	})
}

// GetRelatedBooks returns an empty list for an unknown source book.
func (s *Service) GetRelatedBooks(ctx context.Context, rc auth.RequestContext, id int64, limit int) ([]models.Book, error) {
	limit, err := limitOrDefault("limit", limit, DefaultRelatedLimit)
	if err != nil {
		return nil, err
	}

	source, err := s.GetBookByID(ctx, rc, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return []models.Book{}, nil
		}
		return nil, err
	}

	books, err := store.RelatedBooks(ctx, s.db, source, limit)
	if err != nil {
		return nil, persistence("related books", err)
	}
	return books, nil
}

func (s *Service) SearchBooks(ctx context.Context, _ auth.RequestContext, query string) ([]models.Book, error) {
	books, err := store.SearchBooks(ctx, s.db, query)
	if err != nil {
		return nil, persistence("search books", err)
	}
	return books, nil
}

func (s *Service) CreateBook(ctx context.Context, rc auth.RequestContext, in BookInput) (*models.Book, error) {
	if _, err := rc.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	book, err := store.CreateBook(ctx, s.db, store.BookInput{
		Title:       strings.TrimSpace(in.Title),
		Author:      strings.TrimSpace(in.Author),
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Image:       in.Image,
		Rating:      in.Rating,
		Stock:       in.Stock,
	})
	if err != nil {
		return nil, persistence("create book", err)
	}

	s.log.WithField("book_id", book.ID).Info("book created")
	return book, nil
}

func (s *Service) UpdateBook(ctx context.Context, rc auth.RequestContext, id int64, in BookUpdate) (*models.Book, error) {
	if _, err := rc.RequireAdmin(); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	book, err := store.UpdateBook(ctx, s.db, id, store.BookPatch{
		Title:           in.Title,
		Author:          in.Author,
		Description:     in.Description,
		Price:           in.Price,
		Category:        in.Category,
		Image:           in.Image,
		Rating:          in.Rating,
		Stock:           in.Stock,
		ExpectedVersion: in.Version,
	})
	switch {
	case errors.Is(err, database.ErrBookNotFound):
		return nil, apperr.NotFound("book", id)
	case errors.Is(err, database.ErrOptimisticLockFailed):
		return nil, apperr.Conflict("book", id)
	case err != nil:
		return nil, persistence("update book", err)
	}

	s.invalidate(ctx, id)
	s.log.WithField("book_id", id).Info("book updated")
	return book, nil
}

// DeleteBook reports whether a book was removed. Orders that include it keep
// their line snapshots.
func (s *Service) DeleteBook(ctx context.Context, rc auth.RequestContext, id int64) (bool, error) {
	if _, err := rc.RequireAdmin(); err != nil {
		return false, err
	}

	deleted, err := store.DeleteBook(ctx, s.db, id)
	if err != nil {
		return false, persistence("delete book", err)
	}

	if deleted {
		s.invalidate(ctx, id)
		s.log.WithField("book_id", id).Info("book deleted")
	}
	return deleted, nil
}

func (s *Service) invalidate(ctx context.Context, ids ...int64) {
	if err := s.books.Invalidate(ctx, ids...); err != nil {
		s.log.WithError(err).WithField("book_ids", ids).Warn("book cache invalidation failed")
	}
}
