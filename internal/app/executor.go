package app

import (
	"context"
	"errors"

	"github.com/upbank/core-service/internal/domain"
	"github.com/upbank/core-service/internal/store"
	"go.uber.org/zap"
)

// TransferExecutor commits an authorized transfer. The store runs the debit, the credit and the
// transfer insert as one unit and re-checks funds and account status under row locks.
type TransferExecutor struct {
	transfers store.TransferStore
	logger    *zap.Logger
}

func NewTransferExecutor(transfers store.TransferStore, logger *zap.Logger) *TransferExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferExecutor{transfers: transfers, logger: logger.With(zap.String("component", "transfer_executor"))}
}

func (e *TransferExecutor) Execute(ctx context.Context, cmd domain.TransferCommand) (*domain.Transfer, error) {
	if cmd.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	transfer, err := e.transfers.ExecuteTransfer(ctx, cmd)
	if err == nil {
		e.logger.Info("transfer committed",
			zap.Int64("transfer_id", transfer.ID),
			zap.String("reference", transfer.Reference.String()),
			zap.Int64("source_account_id", transfer.SourceAccountID),
			zap.Int64("destination_account_id", transfer.DestinationAccountID),
			zap.String("amount", transfer.Amount.String()),
		)
		return transfer, nil
	}

	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		return nil, domain.ErrInsufficientFunds
	case errors.Is(err, store.ErrAccountNotActive):
		return nil, domain.ErrAccountNotActive
	case errors.Is(err, store.ErrSameAccount):
		return nil, domain.ErrSelfTransferNotAllowed
	}

	e.logger.Error("transfer rolled back",
		zap.Int64("source_account_id", cmd.SourceAccountID),
		zap.Int64("destination_account_id", cmd.DestinationAccountID),
		zap.Error(err),
	)
	return nil, domain.ErrTransferFailed.Wrap(err)
}
