// Package warehouse reads point-in-time snapshots from the upstream
// analytical warehouse. All queries are read-only; retry policy belongs to
// the caller.
package warehouse

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// ErrSourceUnavailable wraps any warehouse connection or query failure.
// Callers match it with errors.Is.
var ErrSourceUnavailable = errors.New("warehouse: source unavailable")

// Reader issues named analytical queries against the warehouse.
type Reader struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// Open connects to the warehouse with bounded connect and query timeouts.
func Open(dsn string, connectTimeout, queryTimeout time.Duration) (*Reader, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("warehouse: open: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("warehouse: ping: %w: %v", ErrSourceUnavailable, err)
	}
	return &Reader{db: db, queryTimeout: queryTimeout}, nil
}

// NewReader wraps an existing connection, used by tests.
func NewReader(db *sql.DB, queryTimeout time.Duration) *Reader {
	return &Reader{db: db, queryTimeout: queryTimeout}
}

// Close releases the underlying connection pool.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Ping verifies the warehouse is reachable.
func (r *Reader) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("warehouse: ping: %w: %v", ErrSourceUnavailable, err)
	}
	return nil
}

// Params filters a snapshot query. Zero values mean no filter.
type Params struct {
	From      time.Time
	To        time.Time
	ProjectID uint
}

// IsTransient reports whether err looks like a transient network failure
// worth a single retry, as opposed to a query error which is not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// queryError ties a failed named query to ErrSourceUnavailable while
// keeping the driver error reachable for errors.Is/As.
type queryError struct {
	name  string
	cause error
}

func (e *queryError) Error() string {
	return fmt.Sprintf("warehouse: query %s: %v", e.name, e.cause)
}

func (e *queryError) Is(target error) bool { return target == ErrSourceUnavailable }

func (e *queryError) Unwrap() error { return e.cause }
