// Package seed loads the starter catalog and the bootstrap admin account.
package seed

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/safar/go-bookstore/internal/auth"
	"github.com/safar/go-bookstore/internal/database"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/safar/go-bookstore/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

//go:embed books.yaml
var catalog []byte

type bookEntry struct {
	Title       string `yaml:"title"`
	Author      string `yaml:"author"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Category    string `yaml:"category"`
	Image       string `yaml:"image"`
	Rating      string `yaml:"rating"`
	Stock       int    `yaml:"stock"`
}

// Books parses the embedded catalog.
func Books() ([]store.BookInput, error) {
	return parse(catalog)
}

func parse(data []byte) ([]store.BookInput, error) {
	var doc struct {
		Books []bookEntry `yaml:"books"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	books := make([]store.BookInput, 0, len(doc.Books))
	for i, entry := range doc.Books {
		price, err := decimal.NewFromString(entry.Price)
		if err != nil {
			return nil, fmt.Errorf("book %d (%s): price: %w", i, entry.Title, err)
		}
		rating, err := decimal.NewFromString(entry.Rating)
		if err != nil {
			return nil, fmt.Errorf("book %d (%s): rating: %w", i, entry.Title, err)
		}
		category := models.Category(entry.Category)
		if !category.Valid() {
			return nil, fmt.Errorf("book %d (%s): unknown category %q", i, entry.Title, entry.Category)
		}
		if entry.Stock < 0 {
			return nil, fmt.Errorf("book %d (%s): negative stock", i, entry.Title)
		}

		books = append(books, store.BookInput{
			Title:       entry.Title,
			Author:      entry.Author,
			Description: entry.Description,
			Price:       price,
			Category:    category,
			Image:       entry.Image,
			Rating:      rating,
			Stock:       entry.Stock,
		})
	}

	return books, nil
}

// Catalog inserts the embedded books when the catalog is empty and returns
// how many were inserted. A non-empty catalog is left untouched.
func Catalog(ctx context.Context, db *sql.DB, log *logrus.Entry) (int, error) {
	books, err := Books()
	if err != nil {
		return 0, err
	}

	inserted := 0
	err = database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		existing, err := store.ListBooks(ctx, tx, store.BookFilter{Limit: 1})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			log.Info("catalog already populated; skipping books")
			return nil
		}

		for _, in := range books {
			book, err := store.CreateBook(ctx, tx, in)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{"book_id": book.ID, "title": book.Title}).Debug("seeded book")
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

type Admin struct {
	Name     string
	Email    string
	Password string
}

// UpsertAdmin creates the admin account, or promotes and resets an existing
// account with the same email.
func UpsertAdmin(ctx context.Context, db *sql.DB, admin Admin) (*models.User, error) {
	if admin.Email == "" || len(admin.Password) < 6 {
		return nil, fmt.Errorf("admin needs an email and a password of at least 6 characters")
	}
	if admin.Name == "" {
		admin.Name = "Administrator"
	}

	hash, err := auth.HashPassword(admin.Password)
	if err != nil {
		return nil, err
	}

	return store.UpsertAdmin(ctx, db, admin.Name, admin.Email, hash)
}
