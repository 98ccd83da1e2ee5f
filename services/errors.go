package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound: referenced user or season does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAction: action/difficulty outside the enumerated domain.
	ErrInvalidAction = errors.New("invalid action")
	// ErrConcurrencyConflict: an atomic update lost a race; safe to retry.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	// ErrStoreUnavailable: the database could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrSelfAward: the actor would be rewarding themselves.
	ErrSelfAward = errors.New("self award not allowed")
	// ErrForbiddenAward: the actor is not allowed to trigger this award.
	ErrForbiddenAward = errors.New("award not allowed for actor")
	// ErrDuplicateAward: a different event already paid for the same question or answer.
	ErrDuplicateAward = errors.New("award already granted")
)

// Postgres SQLSTATEs that mean "retry the transaction".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// classifyStoreErr maps driver/ORM errors onto the service taxonomy.
// Errors already in the taxonomy pass through unchanged.
func classifyStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidAction),
		errors.Is(err, ErrConcurrencyConflict),
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrDuplicateAward):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, driver.ErrBadConn):
		return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected {
			return fmt.Errorf("%s: %w: %v", op, ErrConcurrencyConflict, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
