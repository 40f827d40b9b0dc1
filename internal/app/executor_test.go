package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/upbank/core-service/internal/domain"
	"github.com/upbank/core-service/internal/store"
)

type transferStoreStub struct {
	store.Repository
	err   error
	calls int
}

func (s *transferStoreStub) ExecuteTransfer(ctx context.Context, cmd domain.TransferCommand) (*domain.Transfer, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Transfer{ID: 1, SourceAccountID: cmd.SourceAccountID, DestinationAccountID: cmd.DestinationAccountID, Amount: cmd.Amount}, nil
}

func TestTransferExecutor_MapsStoreErrors(t *testing.T) {
	tests := []struct {
		name     string
		storeErr error
		wantErr  error
	}{
		{name: "funds drained by a concurrent transfer", storeErr: store.ErrInsufficientFunds, wantErr: domain.ErrInsufficientFunds},
		{name: "account frozen meanwhile", storeErr: store.ErrAccountNotActive, wantErr: domain.ErrAccountNotActive},
		{name: "same account", storeErr: store.ErrSameAccount, wantErr: domain.ErrSelfTransferNotAllowed},
		{name: "wrapped store error", storeErr: fmt.Errorf("commit: %w", store.ErrInsufficientFunds), wantErr: domain.ErrInsufficientFunds},
		{name: "account deleted meanwhile", storeErr: store.ErrAccountNotFound, wantErr: domain.ErrTransferFailed},
		{name: "balance overflow", storeErr: store.ErrBalanceOverflow, wantErr: domain.ErrTransferFailed},
		{name: "connection lost", storeErr: errors.New("conn closed"), wantErr: domain.ErrTransferFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := NewTransferExecutor(&transferStoreStub{err: tt.storeErr}, nil)
			_, err := executor.Execute(context.Background(), domain.TransferCommand{SourceAccountID: 1, DestinationAccountID: 2, Amount: 100})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTransferExecutor_TransferFailedKeepsCause(t *testing.T) {
	cause := errors.New("deadlock detected")
	executor := NewTransferExecutor(&transferStoreStub{err: cause}, nil)

	_, err := executor.Execute(context.Background(), domain.TransferCommand{SourceAccountID: 1, DestinationAccountID: 2, Amount: 100})
	if !errors.Is(err, domain.ErrTransferFailed) || !errors.Is(err, cause) {
		t.Fatalf("expected TransferFailed wrapping the cause, got %v", err)
	}
}

func TestTransferExecutor_RejectsNonPositiveAmount(t *testing.T) {
	stub := &transferStoreStub{}
	executor := NewTransferExecutor(stub, nil)

	for _, amount := range []domain.Money{0, -1} {
		_, err := executor.Execute(context.Background(), domain.TransferCommand{SourceAccountID: 1, DestinationAccountID: 2, Amount: amount})
		if !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("expected ErrInvalidAmount for %d, got %v", amount, err)
		}
	}
	if stub.calls != 0 {
		t.Fatalf("expected the store not to be called")
	}
}
