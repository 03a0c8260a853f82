package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
	MaxRetries     int
	InitialBackoff time.Duration
}

func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		ReadOnly:       false,
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
	}
}

func WithTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{
		Isolation: opts.IsolationLevel,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// WithRetry runs fn in a fresh transaction per attempt and retries only on
// deadlock, serialization and lock-timeout failures, with jittered
// exponential backoff bounded by opts.MaxRetries.
func WithRetry(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	initial := opts.InitialBackoff
	if initial <= 0 {
		initial = 50 * time.Millisecond
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = initial
	expo.RandomizationFactor = 0.25
	expo.Multiplier = 2
	expo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(max(opts.MaxRetries, 0))), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := WithTransaction(ctx, db, opts, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil && IsRetryable(err) && attempt > opts.MaxRetries {
		return fmt.Errorf("max retries (%d) exceeded: %w", opts.MaxRetries, err)
	}
	return err
}
