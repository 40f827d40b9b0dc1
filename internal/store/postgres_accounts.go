package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/upbank/core-service/internal/domain"
)

const accountColumns = `a.id, a.client_id, a.account_number, a.clabe, a.balance, a.status, a.opened_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account domain.Account
		balance int64
		status  string
	)
	err := row.Scan(
		&account.ID,
		&account.ClientID,
		&account.AccountNumber,
		&account.Clabe,
		&balance,
		&status,
		&account.OpenedAt,
	)
	if err != nil {
		return nil, err
	}
	account.Balance = domain.Money(balance)
	account.Status = domain.AccountStatus(status)
	return &account, nil
}

func (r *PostgresRepository) findAccount(ctx context.Context, query string, args ...any) (*domain.Account, error) {
	account, err := scanAccount(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (r *PostgresRepository) findClient(ctx context.Context, query string, arg int64) (*domain.Client, error) {
	var client domain.Client
	var email *string
	err := r.db.QueryRow(ctx, query, arg).Scan(&client.ID, &client.FirstName, &client.LastName, &email, &client.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if email != nil {
		client.Email = *email
	}
	return &client, nil
}

// FindClientByID retrieves a client by primary key.
func (r *PostgresRepository) FindClientByID(ctx context.Context, clientID int64) (*domain.Client, error) {
	return r.findClient(ctx, `SELECT id, first_name, last_name, email, created_at FROM clients WHERE id = $1`, clientID)
}

// FindClientByUserID retrieves the client a login belongs to.
func (r *PostgresRepository) FindClientByUserID(ctx context.Context, userID int64) (*domain.Client, error) {
	query := `
		SELECT c.id, c.first_name, c.last_name, c.email, c.created_at
		FROM clients c
		JOIN users u ON u.client_id = c.id
		WHERE u.id = $1
	`
	return r.findClient(ctx, query, userID)
}

// FindAccountByID retrieves an account by primary key.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID int64) (*domain.Account, error) {
	return r.findAccount(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.id = $1`, accountID)
}

// FindAccountByUserID returns the primary account of the user's client: the oldest one that is
// not closed.
func (r *PostgresRepository) FindAccountByUserID(ctx context.Context, userID int64) (*domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		JOIN users u ON u.client_id = a.client_id
		WHERE u.id = $1 AND a.status <> 'closed'
		ORDER BY a.id
		LIMIT 1
	`
	return r.findAccount(ctx, query, userID)
}

// FindAccountByNumber looks an account up by its bank account number.
func (r *PostgresRepository) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return r.findAccount(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.account_number = $1`, accountNumber)
}

// FindAccountByClabe looks an account up by its 18-digit CLABE.
func (r *PostgresRepository) FindAccountByClabe(ctx context.Context, clabe string) (*domain.Account, error) {
	return r.findAccount(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.clabe = $1`, clabe)
}

// ListAccounts returns every account with its holder's name for the admin dashboard.
func (r *PostgresRepository) ListAccounts(ctx context.Context) ([]domain.AccountSummary, error) {
	query := `
		SELECT ` + accountColumns + `, btrim(c.first_name || ' ' || c.last_name)
		FROM accounts a
		JOIN clients c ON c.id = a.client_id
		ORDER BY a.id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]domain.AccountSummary, 0)
	for rows.Next() {
		var (
			summary domain.AccountSummary
			balance int64
			status  string
		)
		err := rows.Scan(
			&summary.ID, &summary.ClientID, &summary.AccountNumber, &summary.Clabe,
			&balance, &status, &summary.OpenedAt, &summary.ClientName,
		)
		if err != nil {
			return nil, err
		}
		summary.Balance = domain.Money(balance)
		summary.Status = domain.AccountStatus(status)
		accounts = append(accounts, summary)
	}
	return accounts, rows.Err()
}

// UnfreezeAccount moves a frozen account back to active. Closed accounts stay closed.
func (r *PostgresRepository) UnfreezeAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	query := `
		UPDATE accounts a
		SET status = 'active', updated_at = NOW()
		WHERE a.id = $1 AND a.status <> 'closed'
		RETURNING ` + accountColumns
	account, err := scanAccount(r.db.QueryRow(ctx, query, accountID))
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, findErr := r.FindAccountByID(ctx, accountID); findErr != nil {
		return nil, findErr
	}
	return nil, ErrAccountNotActive
}

// CountAccountsByStatus feeds the frozen-accounts gauge.
func (r *PostgresRepository) CountAccountsByStatus(ctx context.Context, status domain.AccountStatus) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE status = $1`, string(status)).Scan(&count)
	return count, err
}
