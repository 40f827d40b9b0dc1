package domain

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys for events published on the configured exchange.
const (
	RoutingKeyTransferCompleted = "transfer.completed"
	RoutingKeyUserBlocked       = "user.blocked"
	RoutingKeyUserUnblocked     = "user.unblocked"
	RoutingKeyAccountUnfrozen   = "account.unfrozen"
)

// TransferCompletedEvent is written to the outbox in the same database transaction as the transfer.
type TransferCompletedEvent struct {
	EventID              uuid.UUID `json:"event_id"`
	TransferID           int64     `json:"transfer_id"`
	Reference            uuid.UUID `json:"reference"`
	SourceAccountID      int64     `json:"source_account_id"`
	DestinationAccountID int64     `json:"destination_account_id"`
	Amount               Money     `json:"amount"`
	Concept              string    `json:"concept"`
	OccurredAt           time.Time `json:"occurred_at"`
}

// NewTransferCompletedEvent builds the outbox payload for a committed transfer.
func NewTransferCompletedEvent(t Transfer) TransferCompletedEvent {
	return TransferCompletedEvent{
		EventID:              uuid.New(),
		TransferID:           t.ID,
		Reference:            t.Reference,
		SourceAccountID:      t.SourceAccountID,
		DestinationAccountID: t.DestinationAccountID,
		Amount:               t.Amount,
		Concept:              t.Concept,
		OccurredAt:           t.TransferDate,
	}
}

// UserStatusEvent is published when the login guard blocks a user or an admin unblocks one.
type UserStatusEvent struct {
	EventID        uuid.UUID  `json:"event_id"`
	UserID         int64      `json:"user_id"`
	Username       string     `json:"username"`
	Status         UserStatus `json:"status"`
	FailedAttempts int        `json:"failed_attempts"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// AccountStatusEvent is published when an admin changes an account's status.
type AccountStatusEvent struct {
	EventID    uuid.UUID     `json:"event_id"`
	AccountID  int64         `json:"account_id"`
	Status     AccountStatus `json:"status"`
	OccurredAt time.Time     `json:"occurred_at"`
}
