package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBackendUnavailable matches every *BackendError under errors.Is.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrUnknownField is returned when a live-value read or write names a
	// field outside the item column set.
	ErrUnknownField = errors.New("unknown field")
)

// BackendError wraps a driver failure with the operation that hit it.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is makes every BackendError match ErrBackendUnavailable.
func (e *BackendError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

// backendErr wraps err as a *BackendError, passing nil through.
func backendErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}

// IsTransient reports whether err is a backend failure worth retrying:
// a dropped connection, a busy or locked SQLite database, or a MySQL lock
// wait timeout or deadlock.
func IsTransient(err error) bool {
	if err == nil || !errors.Is(err, ErrBackendUnavailable) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1205, 1213: // lock wait timeout, deadlock
			return true
		}
		return false
	}

	var be *BackendError
	if errors.As(err, &be) && be.Op == "connect" {
		return true
	}
	return false
}
