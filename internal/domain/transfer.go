/**
 * @description
 * Transfer models: the immutable transfer record, the command handed to the executor,
 * the request body accepted from the mobile client and the history projection.
 *
 * @dependencies
 * - github.com/google/uuid: Public transfer references.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdentifierKind is the syntactic class of a destination string.
type IdentifierKind string

const (
	IdentifierAccountNumber IdentifierKind = "account_number"
	IdentifierNationalID    IdentifierKind = "clabe"
	IdentifierInvalid       IdentifierKind = "invalid"
)

// Identifier is a classified destination string.
type Identifier struct {
	Kind  IdentifierKind `json:"kind"`
	Value string         `json:"value"`
}

// Transfer is a completed movement of money between two accounts. It is never updated.
type Transfer struct {
	ID                   int64     `json:"id"`
	Reference            uuid.UUID `json:"reference"`
	SourceAccountID      int64     `json:"source_account_id"`
	DestinationAccountID int64     `json:"destination_account_id"`
	Amount               Money     `json:"amount"`
	Concept              string    `json:"concept"`
	TransferDate         time.Time `json:"transfer_date"`
}

// TransferCommand is the executor input, produced after authorization.
type TransferCommand struct {
	SourceAccountID      int64
	DestinationAccountID int64
	Amount               Money
	Concept              string
}

// TransferRequest is the body of POST /api/transfer.
type TransferRequest struct {
	SenderID    int64      `json:"sender_id"`
	Destination string     `json:"destination"`
	Amount      AmountText `json:"amount"`
	Concept     string     `json:"concept"`
}

// TransferReceipt is a completed transfer plus any advisory warnings raised while authorizing it.
type TransferReceipt struct {
	Transfer
	Warnings []Reason `json:"warnings,omitempty"`
}

// Direction of a history entry relative to the user asking for it.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
	DirectionInternal Direction = "internal"
)

// HistoryEntry is a transfer annotated with both parties' names.
type HistoryEntry struct {
	Transfer
	Direction                Direction `json:"direction"`
	SourceAccountNumber      string    `json:"source_account_number"`
	DestinationAccountNumber string    `json:"destination_account_number"`
	SourceClientID           int64     `json:"source_client_id"`
	DestinationClientID      int64     `json:"destination_client_id"`
	SourceClientName         string    `json:"source_client_name"`
	DestinationClientName    string    `json:"destination_client_name"`
	CounterpartyName         string    `json:"counterparty_name"`
}

// Annotate fills Direction and CounterpartyName for the client that owns the history.
func (h *HistoryEntry) Annotate(viewerClientID int64) {
	switch {
	case h.SourceClientID == viewerClientID && h.DestinationClientID == viewerClientID:
		h.Direction = DirectionInternal
		h.CounterpartyName = h.DestinationClientName
	case h.SourceClientID == viewerClientID:
		h.Direction = DirectionSent
		h.CounterpartyName = h.DestinationClientName
	default:
		h.Direction = DirectionReceived
		h.CounterpartyName = h.SourceClientName
	}
}

// DestinationView is what a sender may see about a resolved destination. No balance.
type DestinationView struct {
	Kind          IdentifierKind `json:"kind"`
	AccountNumber string         `json:"account_number"`
	HolderName    string         `json:"holder_name"`
}
