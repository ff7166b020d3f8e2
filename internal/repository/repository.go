package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = pgx.ErrNoRows
	// ErrAlreadyVoted is returned when a user votes on an article a second time.
	ErrAlreadyVoted = errors.New("user has already voted on this article")
	// ErrTicketTaken is returned when a claim loses to another assignee or the ticket left status new.
	ErrTicketTaken = errors.New("ticket already taken")
	// ErrStaleState is returned when a conditional update finds the record in another state.
	ErrStaleState = errors.New("record is no longer in the expected state")
	// ErrDuplicateEmail is returned when an email is already registered.
	ErrDuplicateEmail = errors.New("email already in use")
	// ErrUserInUse is returned when deleting a user who still owns tickets.
	ErrUserInUse = errors.New("user still owns tickets")
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
