package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Money
		wantErr error
	}{
		{name: "whole units", input: "150", want: 15000},
		{name: "one decimal", input: "150.5", want: 15050},
		{name: "two decimals", input: "0.01", want: 1},
		{name: "surrounding spaces", input: "  12.34 ", want: 1234},
		{name: "exponent form", input: "1e3", want: 100000},
		{name: "negative is parsed", input: "-5", want: -500},
		{name: "zero", input: "0", want: 0},
		{name: "empty", input: "   ", wantErr: ErrAmountEmpty},
		{name: "letters", input: "abc", wantErr: ErrAmountMalformed},
		{name: "nan", input: "NaN", wantErr: ErrAmountMalformed},
		{name: "infinity", input: "Inf", wantErr: ErrAmountMalformed},
		{name: "sub-cent", input: "0.001", wantErr: ErrAmountPrecision},
		{name: "overflow", input: "999999999999999999999", wantErr: ErrAmountOutOfRange},
		{name: "trailing zeros", input: "1.50000000000000000000", want: 150},
		{name: "zero with huge exponent", input: "0e99999999", want: 0},
		{name: "tiny exponent", input: "1e-20000000", wantErr: ErrAmountPrecision},
		{name: "huge exponent", input: "1e20000000", wantErr: ErrAmountOutOfRange},
		{name: "just past int64", input: "1e19", wantErr: ErrAmountOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMoney(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v (value %d)", tt.wantErr, err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestParseMoneyRejectsExtremeExponentsQuickly(t *testing.T) {
	for _, input := range []string{"1e-20000000", "1e20000000", "-7E-999999999", "5e999999999"} {
		start := time.Now()
		if _, err := ParseMoney(input); err == nil {
			t.Fatalf("expected %q to be rejected", input)
		}
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Fatalf("parsing %q took %s", input, elapsed)
		}
	}
}

func TestMoneyString(t *testing.T) {
	tests := []struct {
		in   Money
		want string
	}{
		{in: 0, want: "0.00"},
		{in: 1, want: "0.01"},
		{in: 15050, want: "150.50"},
		{in: -250, want: "-2.50"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Fatalf("Money(%d).String() = %q, want %q", int64(tt.in), got, tt.want)
		}
	}
}

func TestMoneyJSONAcceptsNumbersAndStrings(t *testing.T) {
	var payload struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12.5, "b": "7.25"}`), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.A != 1250 || payload.B != 725 {
		t.Fatalf("unexpected values: a=%d b=%d", payload.A, payload.B)
	}

	out, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != `{"a":"12.50","b":"7.25"}` {
		t.Fatalf("unexpected encoding: %s", out)
	}
}

func TestAmountTextKeepsRawInput(t *testing.T) {
	tests := []struct {
		body string
		want AmountText
	}{
		{body: `{"amount": 100.10}`, want: "100.10"},
		{body: `{"amount": "  42 "}`, want: "  42 "},
		{body: `{"amount": null}`, want: ""},
		{body: `{}`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var req TransferRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if req.Amount != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, req.Amount)
			}
		})
	}

	var req TransferRequest
	if err := json.Unmarshal([]byte(`{"amount": true}`), &req); err == nil {
		t.Fatalf("expected boolean amount to be rejected")
	}
}
