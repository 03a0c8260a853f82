package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/shopspring/decimal"
)

const bookColumns = `id, title, author, description, price, category, image, rating, stock, created_at, updated_at, version`

// relatedPriceBand is the ±30% window used for similar-price recommendations.
var relatedPriceBand = decimal.RequireFromString("0.3")

const SearchLimit = 20

type BookInput struct {
	Title       string
	Author      string
	Description string
	Price       decimal.Decimal
	Category    models.Category
	Image       string
	Rating      decimal.Decimal
	Stock       int
}

// BookPatch holds the fields of an update; nil fields are left unchanged.
type BookPatch struct {
	Title       *string
	Author      *string
	Description *string
	Price       *decimal.Decimal
	Category    *models.Category
	Image       *string
	Rating      *decimal.Decimal
	Stock       *int

	// ExpectedVersion, when set, makes the update conditional on the book
	// not having changed since the caller read it. Stock movements from
	// checkouts bump the version too.
	ExpectedVersion *int
}

type BookFilter struct {
	Category models.Category
	Limit    int
	Offset   int
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*models.Book, error) {
	book := &models.Book{}
	err := row.Scan(
		&book.ID,
		&book.Title,
		&book.Author,
		&book.Description,
		&book.Price,
		&book.Category,
		&book.Image,
		&book.Rating,
		&book.Stock,
		&book.CreatedAt,
		&book.UpdatedAt,
		&book.Version,
	)
	if err != nil {
		return nil, err
	}
	return book, nil
}

func collectBooks(rows *sql.Rows) ([]models.Book, error) {
	defer rows.Close()

	books := []models.Book{}
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, *book)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return books, nil
}

func CreateBook(ctx context.Context, db database.DBTX, in BookInput) (*models.Book, error) {
	query := `
		INSERT INTO books (title, author, description, price, category, image, rating, stock, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW(), 1)
		RETURNING ` + bookColumns

	book, err := scanBook(db.QueryRowContext(ctx, query,
		in.Title, in.Author, in.Description, in.Price, in.Category, in.Image, in.Rating, in.Stock))
	if err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	return book, nil
}

func GetBook(ctx context.Context, db database.DBTX, id int64) (*models.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`

	book, err := scanBook(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	return book, nil
}

// GetBooksByIDs returns the existing books among ids keyed by id. Missing ids
// are simply absent from the map.
func GetBooksByIDs(ctx context.Context, db database.DBTX, ids []int64) (map[int64]*models.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = ANY($1)`

	rows, err := db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get books: %w", err)
	}

	books, err := collectBooks(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*models.Book, len(books))
	for i := range books {
		byID[books[i].ID] = &books[i]
	}
	return byID, nil
}

func UpdateBook(ctx context.Context, db database.DBTX, id int64, patch BookPatch) (*models.Book, error) {
	var sets []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Author != nil {
		add("author", *patch.Author)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.Image != nil {
		add("image", *patch.Image)
	}
	if patch.Rating != nil {
		add("rating", *patch.Rating)
	}
	if patch.Stock != nil {
		add("stock", *patch.Stock)
	}

	if len(sets) == 0 {
		return GetBook(ctx, db, id)
	}

	args = append(args, id)
	where := fmt.Sprintf("id = $%d", len(args))
	if patch.ExpectedVersion != nil {
		args = append(args, *patch.ExpectedVersion)
		where += fmt.Sprintf(" AND version = $%d", len(args))
	}

	query := fmt.Sprintf(`
		UPDATE books
		SET %s, updated_at = NOW(), version = version + 1
		WHERE %s
		RETURNING %s`, strings.Join(sets, ", "), where, bookColumns)

	book, err := scanBook(db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("update book: %w", err)
		}
		if patch.ExpectedVersion == nil {
			return nil, database.ErrBookNotFound
		}
		if _, getErr := GetBook(ctx, db, id); getErr != nil {
			return nil, getErr
		}
		return nil, database.ErrOptimisticLockFailed
	}

	return book, nil
}

// DeleteBook removes a book and reports whether it existed. Order lines that
// reference it keep their snapshot.
func DeleteBook(ctx context.Context, db database.DBTX, id int64) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete book: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func ListBooks(ctx context.Context, db database.DBTX, filter BookFilter) ([]models.Book, error) {
	query := `
		SELECT ` + bookColumns + `
		FROM books
		WHERE ($1 = '' OR category = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, string(filter.Category), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	return collectBooks(rows)
}

// RelatedBooks returns books sharing the source's category or priced within
// ±30% of it, best rated first, never including the source itself.
func RelatedBooks(ctx context.Context, db database.DBTX, source *models.Book, limit int) ([]models.Book, error) {
	band := source.Price.Mul(relatedPriceBand)
	priceMin := source.Price.Sub(band)
	priceMax := source.Price.Add(band)

	query := `
		SELECT ` + bookColumns + `
		FROM books
		WHERE id <> $1
		  AND (category = $2 OR price BETWEEN $3 AND $4)
		ORDER BY rating DESC, id
		LIMIT $5`

	rows, err := db.QueryContext(ctx, query, source.ID, source.Category, priceMin, priceMax, limit)
	if err != nil {
		return nil, fmt.Errorf("related books: %w", err)
	}

	return collectBooks(rows)
}

// SearchBooks matches text against title, author and description using the
// full-text index, falling back to a case-insensitive substring match.
func SearchBooks(ctx context.Context, db database.DBTX, text string) ([]models.Book, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []models.Book{}, nil
	}

	query := `
		SELECT ` + bookColumns + `
		FROM books
		WHERE search_vector @@ plainto_tsquery('english', $1)
		   OR title ILIKE $2 OR author ILIKE $2 OR description ILIKE $2
		ORDER BY ts_rank(search_vector, plainto_tsquery('english', $1)) DESC, rating DESC, id
		LIMIT $3`

	rows, err := db.QueryContext(ctx, query, text, "%"+escapeLike(text)+"%", SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}

	return collectBooks(rows)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// DecrementStock removes quantity units from a book only if at least that
// many are in stock, as a single conditional update. It reports whether the
// decrement was applied.
func DecrementStock(ctx context.Context, db database.DBTX, bookID int64, quantity int) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE books
		 SET stock = stock - $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock >= $1`,
		quantity, bookID)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

func IncrementStock(ctx context.Context, db database.DBTX, bookID int64, quantity int) error {
	result, err := db.ExecContext(ctx,
		`UPDATE books
		 SET stock = stock + $1,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $2`,
		quantity, bookID)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrBookNotFound
	}

	return nil
}

func StockLevel(ctx context.Context, db database.DBTX, bookID int64) (int, error) {
	var stock int
	err := db.QueryRowContext(ctx, `SELECT stock FROM books WHERE id = $1`, bookID).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, database.ErrBookNotFound
		}
		return 0, fmt.Errorf("stock level: %w", err)
	}
	return stock, nil
}
