package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

const defaultQueryTimeout = 5 * time.Second

// ErrNotPending is returned when a state transition requires a PENDING
// row and the row has already reached a terminal state.
var ErrNotPending = errors.New("not in pending state")

type PgGuildRepository struct {
	conn    *sql.DB
	timeout time.Duration
}

func NewPgGuildRepository(dsn string) (*PgGuildRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgGuildRepository{conn: db, timeout: defaultQueryTimeout}, nil
}

func (db *PgGuildRepository) Ping() error {
	return db.conn.Ping()
}

func (db *PgGuildRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// queryCtx bounds every store call so a stalled database surfaces as a
// retryable timeout instead of a hung request.
func (db *PgGuildRepository) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), db.timeout)
}

// IsUniqueViolation reports whether err is a Postgres unique-index
// violation. Uniqueness races (duplicate member, duplicate pending
// invite, duplicate friendship pair) are surfaced this way and mapped
// to Conflict by the service layer.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
