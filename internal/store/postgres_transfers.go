package store

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/upbank/core-service/internal/domain"
)

type lockedAccount struct {
	id      int64
	balance int64
	status  domain.AccountStatus
}

func lockAccountTx(ctx context.Context, tx pgx.Tx, accountID int64) (*lockedAccount, error) {
	var (
		locked lockedAccount
		status string
	)
	err := tx.QueryRow(ctx, `SELECT id, balance, status FROM accounts WHERE id = $1 FOR UPDATE`, accountID).
		Scan(&locked.id, &locked.balance, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to lock account %d: %w", accountID, err)
	}
	locked.status = domain.AccountStatus(status)
	return &locked, nil
}

// ExecuteTransfer moves money between two accounts inside one database transaction.
func (r *PostgresRepository) ExecuteTransfer(ctx context.Context, cmd domain.TransferCommand) (*domain.Transfer, error) {
	if cmd.SourceAccountID == cmd.DestinationAccountID {
		return nil, ErrSameAccount
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Lock both rows, lowest id first.
	locked := make(map[int64]*lockedAccount, 2)
	for _, id := range LockOrder(cmd.SourceAccountID, cmd.DestinationAccountID) {
		account, err := lockAccountTx(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = account
	}
	source := locked[cmd.SourceAccountID]
	destination := locked[cmd.DestinationAccountID]

	// 2. Re-validate under the locks.
	if source.status != domain.AccountActive || destination.status != domain.AccountActive {
		return nil, ErrAccountNotActive
	}
	amount := int64(cmd.Amount)
	if amount > source.balance {
		return nil, ErrInsufficientFunds
	}
	if destination.balance > math.MaxInt64-amount {
		return nil, ErrBalanceOverflow
	}

	// 3. Move the money.
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance - $2, updated_at = NOW() WHERE id = $1`, source.id, amount); err != nil {
		return nil, fmt.Errorf("failed to debit source account: %w", mapConstraintError(err))
	}
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $2, updated_at = NOW() WHERE id = $1`, destination.id, amount); err != nil {
		return nil, fmt.Errorf("failed to credit destination account: %w", mapConstraintError(err))
	}

	// 4. Record the transfer.
	transfer := domain.Transfer{
		Reference:            uuid.New(),
		SourceAccountID:      source.id,
		DestinationAccountID: destination.id,
		Amount:               cmd.Amount,
		Concept:              cmd.Concept,
	}
	insertQuery := `
		INSERT INTO transfers (reference, source_account_id, destination_account_id, amount, concept)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, transfer_date
	`
	err = tx.QueryRow(ctx, insertQuery, transfer.Reference, transfer.SourceAccountID, transfer.DestinationAccountID, amount, transfer.Concept).
		Scan(&transfer.ID, &transfer.TransferDate)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transfer record: %w", mapConstraintError(err))
	}

	// 5. Enqueue the event in the same transaction.
	if err := enqueueEventTx(ctx, tx, r.eventExchange, domain.RoutingKeyTransferCompleted, domain.NewTransferCompletedEvent(transfer)); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transfer: %w", err)
	}
	return &transfer, nil
}

// FindTransfersByUserID lists every transfer touching any account of the user's client, oldest
// first, with both parties' names.
func (r *PostgresRepository) FindTransfersByUserID(ctx context.Context, userID int64, limit int, offset int) ([]domain.HistoryEntry, error) {
	limit, offset = NormalizePage(limit, offset)

	var clientID int64
	if err := r.db.QueryRow(ctx, `SELECT client_id FROM users WHERE id = $1`, userID).Scan(&clientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	query := `
		SELECT t.id, t.reference, t.source_account_id, t.destination_account_id, t.amount,
		       t.concept, t.transfer_date,
		       sa.account_number, da.account_number, sa.client_id, da.client_id,
		       btrim(sc.first_name || ' ' || sc.last_name),
		       btrim(dc.first_name || ' ' || dc.last_name)
		FROM transfers t
		JOIN accounts sa ON sa.id = t.source_account_id
		JOIN accounts da ON da.id = t.destination_account_id
		JOIN clients sc ON sc.id = sa.client_id
		JOIN clients dc ON dc.id = da.client_id
		WHERE sa.client_id = $1 OR da.client_id = $1
		ORDER BY t.transfer_date ASC, t.id ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, clientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var (
			entry  domain.HistoryEntry
			amount int64
		)
		err := rows.Scan(
			&entry.ID, &entry.Reference, &entry.SourceAccountID, &entry.DestinationAccountID, &amount,
			&entry.Concept, &entry.TransferDate,
			&entry.SourceAccountNumber, &entry.DestinationAccountNumber,
			&entry.SourceClientID, &entry.DestinationClientID,
			&entry.SourceClientName, &entry.DestinationClientName,
		)
		if err != nil {
			return nil, err
		}
		entry.Amount = domain.Money(amount)
		entry.Annotate(clientID)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
