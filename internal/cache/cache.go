// Package cache keeps hot catalog reads out of Postgres. Entries are
// best-effort: a cache failure falls back to the loader and is only logged.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safar/go-bookstore/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type Loader func(ctx context.Context) (*models.Book, error)

type BookCache interface {
	// GetOrLoad returns the cached book or calls load and caches its result.
	GetOrLoad(ctx context.Context, id int64, load Loader) (*models.Book, error)
	Invalidate(ctx context.Context, ids ...int64) error
}

func Key(id int64) string {
	return "bookstore:book:" + strconv.FormatInt(id, 10)
}

type RedisBookCache struct {
	client redis.Cmdable
	ttl    time.Duration
	group  singleflight.Group
	log    *logrus.Entry
}

func NewRedisBookCache(client redis.Cmdable, ttl time.Duration, log *logrus.Entry) *RedisBookCache {
	return &RedisBookCache{
		client: client,
		ttl:    ttl,
		log:    log.WithField("component", "book-cache"),
	}
}

func (c *RedisBookCache) GetOrLoad(ctx context.Context, id int64, load Loader) (*models.Book, error) {
	if book, ok := c.get(ctx, id); ok {
		return book, nil
	}

	// Concurrent misses for one id share a single load.
	value, err, _ := c.group.Do(Key(id), func() (interface{}, error) {
		book, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.set(ctx, book)
		return book, nil
	})
	if err != nil {
		return nil, err
	}

	copied := *value.(*models.Book)
	return &copied, nil
}

func (c *RedisBookCache) get(ctx context.Context, id int64) (*models.Book, bool) {
	payload, err := c.client.Get(ctx, Key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WithError(err).WithField("book_id", id).Warn("cache read failed")
		}
		return nil, false
	}

	var book models.Book
	if err := json.Unmarshal(payload, &book); err != nil {
		c.log.WithError(err).WithField("book_id", id).Warn("discarding undecodable cache entry")
		return nil, false
	}
	return &book, true
}

func (c *RedisBookCache) set(ctx context.Context, book *models.Book) {
	payload, err := json.Marshal(book)
	if err != nil {
		c.log.WithError(err).WithField("book_id", book.ID).Warn("encode cache entry")
		return
	}
	if err := c.client.Set(ctx, Key(book.ID), payload, c.ttl).Err(); err != nil {
		c.log.WithError(err).WithField("book_id", book.ID).Warn("cache write failed")
	}
}

func (c *RedisBookCache) Invalidate(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = Key(id)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate books: %w", err)
	}
	return nil
}

// Nop is a BookCache that always loads.
type Nop struct{}

func (Nop) GetOrLoad(ctx context.Context, _ int64, load Loader) (*models.Book, error) {
	return load(ctx)
}

func (Nop) Invalidate(context.Context, ...int64) error { return nil }
