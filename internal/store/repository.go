/**
 * @description
 * This file defines the `Repository` interface, the contract for every data access operation
 * the banking core needs. It is split by concern so that each application component can
 * depend on the narrowest store it uses. Both the PostgreSQL and in-memory drivers satisfy it.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - internal/domain: The service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/upbank/core-service/internal/domain"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserBlocked         = errors.New("user is blocked")
	ErrClientNotFound      = errors.New("client not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountNotActive    = errors.New("account is not active")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrSameAccount         = errors.New("source and destination account are the same")
	ErrBalanceOverflow     = errors.New("balance overflow")
	ErrDuplicateIdentifier = errors.New("identifier already in use")
)

// UserStore holds login identities and the lockout counter.
type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	FindUserByID(ctx context.Context, userID int64) (*domain.User, error)
	// RecordFailedLoginAttempt increments the counter and blocks the user once it reaches
	// maxAttempts, in a single atomic write. It returns ErrUserBlocked if the user was
	// already blocked when the write ran.
	RecordFailedLoginAttempt(ctx context.Context, userID int64, maxAttempts int) (*domain.User, error)
	ResetFailedLoginAttempts(ctx context.Context, userID int64) error
	UnblockUser(ctx context.Context, userID int64) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.UserSummary, error)
	CountUsersByStatus(ctx context.Context, status domain.UserStatus) (int, error)
}

// AccountStore owns accounts and the clients that hold them.
type AccountStore interface {
	FindClientByID(ctx context.Context, clientID int64) (*domain.Client, error)
	FindClientByUserID(ctx context.Context, userID int64) (*domain.Client, error)
	FindAccountByID(ctx context.Context, accountID int64) (*domain.Account, error)
	FindAccountByUserID(ctx context.Context, userID int64) (*domain.Account, error)
	FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	FindAccountByClabe(ctx context.Context, clabe string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.AccountSummary, error)
	UnfreezeAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	CountAccountsByStatus(ctx context.Context, status domain.AccountStatus) (int, error)
}

// TransferStore executes and lists transfers.
type TransferStore interface {
	// ExecuteTransfer debits, credits, records the transfer and enqueues its outbox event as
	// one atomic unit. Both account rows are locked in ascending id order.
	ExecuteTransfer(ctx context.Context, cmd domain.TransferCommand) (*domain.Transfer, error)
	FindTransfersByUserID(ctx context.Context, userID int64, limit int, offset int) ([]domain.HistoryEntry, error)
}

// OutboxMessage is a claimed event waiting to be published.
type OutboxMessage struct {
	ID         int64
	Exchange   string
	RoutingKey string
	Payload    []byte
	Attempts   int
}

// OutboxStore is drained by the outbox dispatcher.
type OutboxStore interface {
	ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, id int64) error
	MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error
	PurgePublishedOutbox(ctx context.Context, publishedBefore time.Time) (int64, error)
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	UserStore
	AccountStore
	TransferStore
	OutboxStore
	Ping(ctx context.Context) error
}

// Pagination bounds shared by both drivers.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// NormalizePage clamps limit and offset for history queries.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// LockOrder returns the two account ids in the order their rows must be locked. Every
// transfer takes locks lowest id first, so two opposite-direction transfers between the
// same accounts can never wait on each other.
func LockOrder(a, b int64) [2]int64 {
	if a <= b {
		return [2]int64{a, b}
	}
	return [2]int64{b, a}
}

var (
	_ Repository = (*PostgresRepository)(nil)
	_ Repository = (*MemoryRepository)(nil)
)
