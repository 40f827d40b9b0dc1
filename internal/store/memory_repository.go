/**
 * @description
 * In-memory implementation of the `Repository` interface. It backs the `memory` store driver
 * for local demos and gives the application tests a real store with the same semantics as
 * PostgreSQL: a single mutex serialises every mutation, so each transfer is all-or-nothing.
 *
 * @dependencies
 * - sync, sort, time: Standard Go libraries.
 * - github.com/google/uuid: Transfer references.
 */

package store

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upbank/core-service/internal/domain"
)

type outboxStatus string

const (
	outboxPending    outboxStatus = "pending"
	outboxProcessing outboxStatus = "processing"
	outboxPublished  outboxStatus = "published"
)

type memoryOutboxEntry struct {
	message             OutboxMessage
	status              outboxStatus
	nextAttemptAt       time.Time
	processingStartedAt time.Time
	publishedAt         time.Time
	lastError           string
	createdAt           time.Time
}

// MemoryRepository keeps every table in maps guarded by one mutex.
type MemoryRepository struct {
	mu            sync.Mutex
	now           func() time.Time
	eventExchange string

	clients   map[int64]domain.Client
	accounts  map[int64]domain.Account
	users     map[int64]domain.User
	transfers []domain.Transfer
	outbox    []*memoryOutboxEntry

	nextClientID   int64
	nextAccountID  int64
	nextUserID     int64
	nextTransferID int64
	nextOutboxID   int64
}

// NewMemoryRepository returns an empty store.
func NewMemoryRepository(eventExchange string) *MemoryRepository {
	return &MemoryRepository{
		now:           time.Now,
		eventExchange: strings.TrimSpace(eventExchange),
		clients:       make(map[int64]domain.Client),
		accounts:      make(map[int64]domain.Account),
		users:         make(map[int64]domain.User),
	}
}

// SetClock replaces the time source. Tests use it to control transfer dates.
func (r *MemoryRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Ping always succeeds.
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// AddClient inserts a client and returns it with its id.
func (r *MemoryRepository) AddClient(client domain.Client) domain.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextClientID++
	client.ID = r.nextClientID
	if client.CreatedAt.IsZero() {
		client.CreatedAt = r.now()
	}
	r.clients[client.ID] = client
	return client
}

// AddAccount inserts an account. Account number and CLABE must be unique.
func (r *MemoryRepository) AddAccount(account domain.Account) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[account.ClientID]; !ok {
		return domain.Account{}, ErrClientNotFound
	}
	if account.Balance < 0 {
		return domain.Account{}, ErrInsufficientFunds
	}
	for _, existing := range r.accounts {
		if existing.AccountNumber == account.AccountNumber || existing.Clabe == account.Clabe {
			return domain.Account{}, ErrDuplicateIdentifier
		}
	}
	r.nextAccountID++
	account.ID = r.nextAccountID
	if account.Status == "" {
		account.Status = domain.AccountActive
	}
	if account.OpenedAt.IsZero() {
		account.OpenedAt = r.now()
	}
	r.accounts[account.ID] = account
	return account, nil
}

// AddUser inserts a login. Usernames are unique ignoring case.
func (r *MemoryRepository) AddUser(user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[user.ClientID]; !ok {
		return domain.User{}, ErrClientNotFound
	}
	key := normalizeUsername(user.Username)
	for _, existing := range r.users {
		if normalizeUsername(existing.Username) == key {
			return domain.User{}, ErrDuplicateIdentifier
		}
	}
	r.nextUserID++
	user.ID = r.nextUserID
	user.Username = strings.TrimSpace(user.Username)
	if user.Status == "" {
		user.Status = domain.UserActive
	}
	if user.Role == "" {
		user.Role = domain.RoleCustomer
	}
	r.users[user.ID] = user
	return user, nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (r *MemoryRepository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := normalizeUsername(username)
	for _, user := range r.users {
		if normalizeUsername(user.Username) == key {
			found := user
			return &found, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemoryRepository) FindUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (r *MemoryRepository) RecordFailedLoginAttempt(ctx context.Context, userID int64, maxAttempts int) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	if user.Status == domain.UserBlocked {
		return nil, ErrUserBlocked
	}
	user.FailedAttempts++
	if user.FailedAttempts >= maxAttempts {
		user.Status = domain.UserBlocked
	}
	r.users[userID] = user
	return &user, nil
}

func (r *MemoryRepository) ResetFailedLoginAttempts(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	if user.Status == domain.UserBlocked {
		return ErrUserBlocked
	}
	now := r.now()
	user.FailedAttempts = 0
	user.LastLoginAt = &now
	r.users[userID] = user
	return nil
}

func (r *MemoryRepository) UnblockUser(ctx context.Context, userID int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	user.Status = domain.UserActive
	user.FailedAttempts = 0
	r.users[userID] = user
	return &user, nil
}

func (r *MemoryRepository) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]domain.UserSummary, 0, len(r.users))
	for _, user := range r.users {
		users = append(users, domain.UserSummary{
			ID:             user.ID,
			Username:       user.Username,
			ClientName:     r.clients[user.ClientID].DisplayName(),
			Status:         user.Status,
			Role:           user.Role,
			FailedAttempts: user.FailedAttempts,
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *MemoryRepository) CountUsersByStatus(ctx context.Context, status domain.UserStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, user := range r.users {
		if user.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) FindClientByID(ctx context.Context, clientID int64) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.clients[clientID]
	if !ok {
		return nil, ErrClientNotFound
	}
	return &client, nil
}

func (r *MemoryRepository) FindClientByUserID(ctx context.Context, userID int64) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, ErrClientNotFound
	}
	client, ok := r.clients[user.ClientID]
	if !ok {
		return nil, ErrClientNotFound
	}
	return &client, nil
}

func (r *MemoryRepository) FindAccountByID(ctx context.Context, accountID int64) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

func (r *MemoryRepository) FindAccountByUserID(ctx context.Context, userID int64) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	var primary *domain.Account
	for _, account := range r.accounts {
		if account.ClientID != user.ClientID || account.Status == domain.AccountClosed {
			continue
		}
		if primary == nil || account.ID < primary.ID {
			candidate := account
			primary = &candidate
		}
	}
	if primary == nil {
		return nil, ErrAccountNotFound
	}
	return primary, nil
}

func (r *MemoryRepository) findAccountWhere(match func(domain.Account) bool) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if match(account) {
			found := account
			return &found, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (r *MemoryRepository) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return r.findAccountWhere(func(a domain.Account) bool { return a.AccountNumber == accountNumber })
}

func (r *MemoryRepository) FindAccountByClabe(ctx context.Context, clabe string) (*domain.Account, error) {
	return r.findAccountWhere(func(a domain.Account) bool { return a.Clabe == clabe })
}

func (r *MemoryRepository) ListAccounts(ctx context.Context) ([]domain.AccountSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	accounts := make([]domain.AccountSummary, 0, len(r.accounts))
	for _, account := range r.accounts {
		accounts = append(accounts, domain.AccountSummary{
			Account:    account,
			ClientName: r.clients[account.ClientID].DisplayName(),
		})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

// FreezeAccount is used by seeds and tests. There is no API that freezes accounts.
func (r *MemoryRepository) FreezeAccount(accountID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return ErrAccountNotFound
	}
	account.Status = domain.AccountFrozen
	r.accounts[accountID] = account
	return nil
}

func (r *MemoryRepository) UnfreezeAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[accountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if account.Status == domain.AccountClosed {
		return nil, ErrAccountNotActive
	}
	account.Status = domain.AccountActive
	r.accounts[accountID] = account
	return &account, nil
}

func (r *MemoryRepository) CountAccountsByStatus(ctx context.Context, status domain.AccountStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, account := range r.accounts {
		if account.Status == status {
			count++
		}
	}
	return count, nil
}

// ExecuteTransfer applies the same checks as the PostgreSQL driver while holding the mutex.
func (r *MemoryRepository) ExecuteTransfer(ctx context.Context, cmd domain.TransferCommand) (*domain.Transfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cmd.SourceAccountID == cmd.DestinationAccountID {
		return nil, ErrSameAccount
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	source, ok := r.accounts[cmd.SourceAccountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	destination, ok := r.accounts[cmd.DestinationAccountID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if source.Status != domain.AccountActive || destination.Status != domain.AccountActive {
		return nil, ErrAccountNotActive
	}
	if cmd.Amount > source.Balance {
		return nil, ErrInsufficientFunds
	}
	if int64(destination.Balance) > math.MaxInt64-int64(cmd.Amount) {
		return nil, ErrBalanceOverflow
	}

	r.nextTransferID++
	transfer := domain.Transfer{
		ID:                   r.nextTransferID,
		Reference:            uuid.New(),
		SourceAccountID:      source.ID,
		DestinationAccountID: destination.ID,
		Amount:               cmd.Amount,
		Concept:              cmd.Concept,
		TransferDate:         r.now(),
	}
	payload, err := json.Marshal(domain.NewTransferCompletedEvent(transfer))
	if err != nil {
		r.nextTransferID--
		return nil, err
	}

	source.Balance -= cmd.Amount
	destination.Balance += cmd.Amount
	r.accounts[source.ID] = source
	r.accounts[destination.ID] = destination
	r.transfers = append(r.transfers, transfer)
	r.enqueueLocked(domain.RoutingKeyTransferCompleted, payload)
	return &transfer, nil
}

func (r *MemoryRepository) FindTransfersByUserID(ctx context.Context, userID int64, limit int, offset int) ([]domain.HistoryEntry, error) {
	limit, offset = NormalizePage(limit, offset)

	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}

	entries := make([]domain.HistoryEntry, 0)
	for _, transfer := range r.transfers {
		source := r.accounts[transfer.SourceAccountID]
		destination := r.accounts[transfer.DestinationAccountID]
		if source.ClientID != user.ClientID && destination.ClientID != user.ClientID {
			continue
		}
		entry := domain.HistoryEntry{
			Transfer:                 transfer,
			SourceAccountNumber:      source.AccountNumber,
			DestinationAccountNumber: destination.AccountNumber,
			SourceClientID:           source.ClientID,
			DestinationClientID:      destination.ClientID,
			SourceClientName:         r.clients[source.ClientID].DisplayName(),
			DestinationClientName:    r.clients[destination.ClientID].DisplayName(),
		}
		entry.Annotate(user.ClientID)
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TransferDate.Equal(entries[j].TransferDate) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].TransferDate.Before(entries[j].TransferDate)
	})

	if offset >= len(entries) {
		return []domain.HistoryEntry{}, nil
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end], nil
}

// Balances returns a snapshot of every balance keyed by account id.
func (r *MemoryRepository) Balances() map[int64]domain.Money {
	r.mu.Lock()
	defer r.mu.Unlock()
	balances := make(map[int64]domain.Money, len(r.accounts))
	for id, account := range r.accounts {
		balances[id] = account.Balance
	}
	return balances
}

// TransferCount returns the number of recorded transfers.
func (r *MemoryRepository) TransferCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transfers)
}

func (r *MemoryRepository) enqueueLocked(routingKey string, payload []byte) {
	r.nextOutboxID++
	now := r.now()
	r.outbox = append(r.outbox, &memoryOutboxEntry{
		message: OutboxMessage{
			ID:         r.nextOutboxID,
			Exchange:   r.eventExchange,
			RoutingKey: routingKey,
			Payload:    payload,
		},
		status:        outboxPending,
		nextAttemptAt: now,
		createdAt:     now,
	})
}

func (r *MemoryRepository) findOutboxLocked(id int64) *memoryOutboxEntry {
	for _, entry := range r.outbox {
		if entry.message.ID == id {
			return entry
		}
	}
	return nil
}

func (r *MemoryRepository) ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]OutboxMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	if staleAfterSeconds <= 0 {
		staleAfterSeconds = 120
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	staleBefore := now.Add(-time.Duration(staleAfterSeconds) * time.Second)

	claimed := make([]OutboxMessage, 0, limit)
	for _, entry := range r.outbox {
		if len(claimed) >= limit {
			break
		}
		due := entry.status == outboxPending && !entry.nextAttemptAt.After(now)
		stale := entry.status == outboxProcessing && entry.processingStartedAt.Before(staleBefore)
		if !due && !stale {
			continue
		}
		entry.status = outboxProcessing
		entry.processingStartedAt = now
		entry.message.Attempts++
		claimed = append(claimed, entry.message)
	}
	return claimed, nil
}

func (r *MemoryRepository) MarkOutboxPublished(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry := r.findOutboxLocked(id); entry != nil {
		entry.status = outboxPublished
		entry.publishedAt = r.now()
		entry.lastError = ""
	}
	return nil
}

func (r *MemoryRepository) MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error {
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry := r.findOutboxLocked(id); entry != nil {
		entry.status = outboxPending
		entry.nextAttemptAt = r.now().Add(time.Duration(retryAfterSeconds) * time.Second)
		entry.lastError = truncateOutboxError(reason)
	}
	return nil
}

func (r *MemoryRepository) PurgePublishedOutbox(ctx context.Context, publishedBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.outbox[:0]
	var purged int64
	for _, entry := range r.outbox {
		if entry.status == outboxPublished && entry.publishedAt.Before(publishedBefore) {
			purged++
			continue
		}
		kept = append(kept, entry)
	}
	r.outbox = kept
	return purged, nil
}

// PendingOutbox counts messages not yet published.
func (r *MemoryRepository) PendingOutbox() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, entry := range r.outbox {
		if entry.status != outboxPublished {
			count++
		}
	}
	return count
}
