// Package repository implements all database queries for the enrolment
// service. It uses pgx directly (no ORM) so the row-level locking that keeps
// capacity and credential allocation consistent stays visible in the SQL.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/culturekids/enrolment-service/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// notFound wraps pgx.ErrNoRows as the domain's existence error. Existence and
// visibility are deliberately conflated at the API boundary, so repositories
// never distinguish "absent" from "not visible".
func notFound(what string) error {
	return apperr.New(apperr.CodeObjectDoesNotExist, what+" does not exist")
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// inTx runs fn inside a transaction, rolling back on error. Every
// check-then-act sequence in this package goes through it so a failed
// precondition never leaves partial mutations behind.
func inTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
