package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	SerializationFailureCode = "40001"
	DeadlockDetectedCode     = "40P01"
	LockNotAvailableCode     = "55P03"
	DuplicateKeyErrorCode    = "23505"
)

// IsRetryable reports whether err is a Postgres error that a fresh
// transaction attempt may succeed on.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case SerializationFailureCode, DeadlockDetectedCode, LockNotAvailableCode:
		return true
	}
	return false
}

func IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == DuplicateKeyErrorCode
}
