package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestRejectionMatchesByReason(t *testing.T) {
	wrapped := fmt.Errorf("submit transfer: %w", ErrTransferFailed.Wrap(errors.New("connection reset")))

	if !errors.Is(wrapped, ErrTransferFailed) {
		t.Fatalf("expected wrapped rejection to match its sentinel")
	}
	if errors.Is(wrapped, ErrStoreUnavailable) {
		t.Fatalf("rejection matched a sentinel with a different reason")
	}

	rejection, ok := AsRejection(wrapped)
	if !ok {
		t.Fatalf("expected AsRejection to find the rejection")
	}
	if rejection.Reason != ReasonTransferFailed {
		t.Fatalf("expected reason %s, got %s", ReasonTransferFailed, rejection.Reason)
	}
	if ErrTransferFailed.Unwrap() != nil {
		t.Fatalf("Wrap must not mutate the shared sentinel")
	}
}

func TestInvalidCredentialsCarriesAttemptsLeft(t *testing.T) {
	err := InvalidCredentials(2)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected InvalidCredentials to match sentinel")
	}
	if err.AttemptsLeft == nil || *err.AttemptsLeft != 2 {
		t.Fatalf("expected attemptsLeft=2, got %v", err.AttemptsLeft)
	}
	if ErrInvalidCredentials.AttemptsLeft != nil {
		t.Fatalf("sentinel must not carry attempts")
	}

	clamped := InvalidCredentials(-1)
	if *clamped.AttemptsLeft != 0 {
		t.Fatalf("expected negative attempts to clamp at zero, got %d", *clamped.AttemptsLeft)
	}
}

func TestHistoryEntryAnnotate(t *testing.T) {
	base := HistoryEntry{
		SourceClientID:        1,
		DestinationClientID:   2,
		SourceClientName:      "Ana Gomez",
		DestinationClientName: "Luis Perez",
	}

	sent := base
	sent.Annotate(1)
	if sent.Direction != DirectionSent || sent.CounterpartyName != "Luis Perez" {
		t.Fatalf("unexpected sent annotation: %+v", sent)
	}

	received := base
	received.Annotate(2)
	if received.Direction != DirectionReceived || received.CounterpartyName != "Ana Gomez" {
		t.Fatalf("unexpected received annotation: %+v", received)
	}

	internal := base
	internal.DestinationClientID = 1
	internal.Annotate(1)
	if internal.Direction != DirectionInternal {
		t.Fatalf("expected internal direction, got %s", internal.Direction)
	}
}
