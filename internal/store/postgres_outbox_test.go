package store

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/upbank/core-service/internal/domain"
)

func TestTruncateOutboxError(t *testing.T) {
	tests := []struct {
		name    string
		reason  string
		wantLen int
	}{
		{name: "short reason untouched", reason: "broker down", wantLen: len("broker down")},
		{name: "ascii cut at limit", reason: strings.Repeat("a", maxOutboxErrorLength+10), wantLen: maxOutboxErrorLength},
		// 1999 ASCII bytes then "ñ" (2 bytes) straddles the limit.
		{name: "two byte rune at boundary", reason: strings.Repeat("a", maxOutboxErrorLength-1) + "ñ" + "tail", wantLen: maxOutboxErrorLength - 1},
		// "€" is 3 bytes; 1998 + 3 straddles the limit.
		{name: "three byte rune at boundary", reason: strings.Repeat("a", maxOutboxErrorLength-2) + "€", wantLen: maxOutboxErrorLength - 2},
		{name: "rune ending exactly at limit", reason: strings.Repeat("a", maxOutboxErrorLength-2) + "ñ" + "x", wantLen: maxOutboxErrorLength},
		{name: "invalid bytes replaced", reason: "conexión \xff rechazada", wantLen: len("conexión � rechazada")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateOutboxError(tt.reason)
			if !utf8.ValidString(got) {
				t.Fatalf("expected valid UTF-8, got %q", got)
			}
			if len(got) != tt.wantLen {
				t.Fatalf("expected %d bytes, got %d", tt.wantLen, len(got))
			}
			if !strings.HasPrefix(strings.ToValidUTF8(tt.reason, "�"), got) {
				t.Fatalf("expected a prefix of the original reason")
			}
		})
	}
}

func TestMemoryRepository_MarkOutboxFailedKeepsValidUTF8(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	if _, err := f.repo.ExecuteTransfer(ctx, domain.TransferCommand{SourceAccountID: f.accountA.ID, DestinationAccountID: f.accountB.ID, Amount: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	messages, _ := f.repo.ClaimOutboxMessages(ctx, 10, 60)
	if len(messages) != 1 {
		t.Fatalf("expected one message, got %d", len(messages))
	}

	reason := strings.Repeat("é", maxOutboxErrorLength)
	if err := f.repo.MarkOutboxFailed(ctx, messages[0].ID, 5, reason); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.repo.mu.Lock()
	stored := f.repo.findOutboxLocked(messages[0].ID).lastError
	f.repo.mu.Unlock()
	if !utf8.ValidString(stored) || len(stored) > maxOutboxErrorLength {
		t.Fatalf("expected valid UTF-8 within %d bytes, got %d bytes", maxOutboxErrorLength, len(stored))
	}
}
