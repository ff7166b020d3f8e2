package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// PendingUserRepository stores self-registrations awaiting approval.
type PendingUserRepository interface {
	Create(ctx context.Context, pending *domain.PendingUser) error
	GetByID(ctx context.Context, id string) (*domain.PendingUser, error)
	GetByEmail(ctx context.Context, email string) (*domain.PendingUser, error)
	List(ctx context.Context, status *domain.RegistrationStatus) ([]domain.PendingUser, error)
	// UpdateStatus moves a pending registration to status. It returns
	// ErrStaleState when the registration was already decided.
	UpdateStatus(ctx context.Context, id string, status domain.RegistrationStatus, decidedBy string, at time.Time) error
	// Reopen returns a decided registration in status from back to pending and
	// clears the decision. It returns ErrStaleState when the status differs.
	Reopen(ctx context.Context, id string, from domain.RegistrationStatus) error
}

const pendingUserColumns = `id, email, first_name, last_name, middle_name, phone, department, position,
       employee_id, password_hash, status, created_at, decided_at, decided_by`

type pendingUserRepository struct {
	pool *pgxpool.Pool
}

// NewPendingUserRepository returns a Postgres-backed implementation.
func NewPendingUserRepository(pool *pgxpool.Pool) PendingUserRepository {
	return &pendingUserRepository{pool: pool}
}

func (r *pendingUserRepository) Create(ctx context.Context, p *domain.PendingUser) error {
	const query = `
        INSERT INTO pending_users (id, email, first_name, last_name, middle_name, phone, department, position,
            employee_id, password_hash, status, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Email,
		p.FirstName,
		p.LastName,
		p.MiddleName,
		p.Phone,
		p.Department,
		p.Position,
		p.EmployeeID,
		p.PasswordHash,
		p.Status,
		p.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *pendingUserRepository) GetByID(ctx context.Context, id string) (*domain.PendingUser, error) {
	return scanPendingUser(r.pool.QueryRow(ctx, `SELECT `+pendingUserColumns+` FROM pending_users WHERE id=$1`, id))
}

func (r *pendingUserRepository) GetByEmail(ctx context.Context, email string) (*domain.PendingUser, error) {
	return scanPendingUser(r.pool.QueryRow(ctx, `SELECT `+pendingUserColumns+` FROM pending_users WHERE LOWER(email)=LOWER($1)`, email))
}

func (r *pendingUserRepository) List(ctx context.Context, status *domain.RegistrationStatus) ([]domain.PendingUser, error) {
	query := `SELECT ` + pendingUserColumns + ` FROM pending_users`
	args := []any{}
	if status != nil {
		query += ` WHERE status=$1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PendingUser
	for rows.Next() {
		p, err := scanPendingUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (r *pendingUserRepository) UpdateStatus(ctx context.Context, id string, status domain.RegistrationStatus, decidedBy string, at time.Time) error {
	const query = `
        UPDATE pending_users SET status=$2, decided_by=$3, decided_at=$4
        WHERE id=$1 AND status=$5`
	cmd, err := r.pool.Exec(ctx, query, id, status, decidedBy, at, domain.RegistrationPending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrStaleState
}

func (r *pendingUserRepository) Reopen(ctx context.Context, id string, from domain.RegistrationStatus) error {
	const query = `
        UPDATE pending_users SET status=$2, decided_by=NULL, decided_at=NULL
        WHERE id=$1 AND status=$3`
	cmd, err := r.pool.Exec(ctx, query, id, domain.RegistrationPending, from)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrStaleState
}

func scanPendingUser(row rowScanner) (*domain.PendingUser, error) {
	var p domain.PendingUser
	if err := row.Scan(
		&p.ID,
		&p.Email,
		&p.FirstName,
		&p.LastName,
		&p.MiddleName,
		&p.Phone,
		&p.Department,
		&p.Position,
		&p.EmployeeID,
		&p.PasswordHash,
		&p.Status,
		&p.CreatedAt,
		&p.DecidedAt,
		&p.DecidedBy,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
