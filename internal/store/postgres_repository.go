/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface. It holds the
 * connection pool and the login-identity queries, including the atomic lockout update.
 * Account, transfer and outbox queries live in the sibling postgres_*.go files.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/jackc/pgx/v5/pgconn: Error codes for constraint violations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/upbank/core-service/internal/domain"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

const userColumns = `id, btrim(username), password_hash, client_id, role_id, status, COALESCE(failed_attempts, 0), last_login_at`

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db            *pgxpool.Pool
	eventExchange string
}

// NewPostgresRepository creates a new instance of PostgresRepository. Outbox events written by
// transfers are addressed to eventExchange.
func NewPostgresRepository(db *pgxpool.Pool, eventExchange string) *PostgresRepository {
	return &PostgresRepository{db: db, eventExchange: strings.TrimSpace(eventExchange)}
}

// Ping checks that the pool can reach the database.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user        domain.User
		roleID      int16
		status      string
		lastLoginAt *time.Time
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.ClientID,
		&roleID,
		&status,
		&user.FailedAttempts,
		&lastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = domain.RoleFromID(int(roleID))
	user.Status = domain.UserStatus(status)
	user.LastLoginAt = lastLoginAt
	return &user, nil
}

// FindUserByUsername retrieves a user by username, ignoring case and surrounding spaces.
func (r *PostgresRepository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(username) = lower(btrim($1))`
	user, err := scanUser(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// FindUserByID retrieves a user by primary key.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// RecordFailedLoginAttempt atomically increments failed attempts and applies the block.
// A NULL counter counts as zero. The status guard makes a concurrent loser see ErrUserBlocked
// instead of pushing the counter past the threshold.
func (r *PostgresRepository) RecordFailedLoginAttempt(ctx context.Context, userID int64, maxAttempts int) (*domain.User, error) {
	query := `
		UPDATE users
		SET
			failed_attempts = COALESCE(failed_attempts, 0) + 1,
			status = CASE
				WHEN COALESCE(failed_attempts, 0) + 1 >= $2 THEN 'blocked'
				ELSE status
			END,
			updated_at = NOW()
		WHERE id = $1 AND status <> 'blocked'
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRow(ctx, query, userID, maxAttempts))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var status string
	err = r.db.QueryRow(ctx, `SELECT status FROM users WHERE id = $1`, userID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return nil, ErrUserBlocked
}

// ResetFailedLoginAttempts clears the counter after a successful login and stamps last_login_at.
// A user blocked since it was read keeps its counter and yields ErrUserBlocked.
func (r *PostgresRepository) ResetFailedLoginAttempts(ctx context.Context, userID int64) error {
	query := `
		UPDATE users
		SET failed_attempts = 0, last_login_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status <> 'blocked'
	`
	result, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = r.db.QueryRow(ctx, `SELECT status FROM users WHERE id = $1`, userID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	return ErrUserBlocked
}

// UnblockUser is the administrative reset: status active and a zero counter.
func (r *PostgresRepository) UnblockUser(ctx context.Context, userID int64) (*domain.User, error) {
	query := `
		UPDATE users
		SET status = 'active', failed_attempts = 0, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ListUsers returns every login with its client's name for the admin dashboard.
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	query := `
		SELECT u.id, btrim(u.username), btrim(c.first_name || ' ' || c.last_name),
		       u.status, u.role_id, COALESCE(u.failed_attempts, 0)
		FROM users u
		JOIN clients c ON c.id = u.client_id
		ORDER BY u.id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserSummary, 0)
	for rows.Next() {
		var (
			summary domain.UserSummary
			status  string
			roleID  int16
		)
		if err := rows.Scan(&summary.ID, &summary.Username, &summary.ClientName, &status, &roleID, &summary.FailedAttempts); err != nil {
			return nil, err
		}
		summary.Status = domain.UserStatus(status)
		summary.Role = domain.RoleFromID(int(roleID))
		users = append(users, summary)
	}
	return users, rows.Err()
}

// CountUsersByStatus feeds the blocked-users gauge.
func (r *PostgresRepository) CountUsersByStatus(ctx context.Context, status domain.UserStatus) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE status = $1`, string(status)).Scan(&count)
	return count, err
}

// mapConstraintError turns constraint violations raised inside a transfer into store sentinels.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgCheckViolation:
		if pgErr.ConstraintName == "accounts_balance_non_negative" {
			return ErrInsufficientFunds
		}
		if pgErr.ConstraintName == "transfers_distinct_accounts" {
			return ErrSameAccount
		}
	case pgUniqueViolation:
		return ErrDuplicateIdentifier
	}
	return err
}
